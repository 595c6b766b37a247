package classify

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// CentroidModel is a nearest-centroid classifier over mean feature vectors.
//
// Model files are YAML:
//
//	dimension: 31
//	centroids:
//	  normal: [ ... ]
//	  murmur: [ ... ]
type CentroidModel struct {
	Dimension int                 `yaml:"dimension"`
	Centroids map[Label][]float64 `yaml:"centroids"`

	order []Label
}

// LoadCentroidModel reads and validates a model file.
func LoadCentroidModel(path string) (*CentroidModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	m, err := ParseCentroidModel(data)
	if err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}

	logging.Info("Loaded classifier model", logging.Fields{
		"component": "classifier",
		"path":      path,
		"labels":    len(m.Centroids),
		"dimension": m.Dimension,
	})
	return m, nil
}

// ParseCentroidModel decodes and validates a YAML model.
func ParseCentroidModel(data []byte) (*CentroidModel, error) {
	var m CentroidModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewCentroidModel builds a model from in-memory centroids.
func NewCentroidModel(centroids map[Label][]float64) (*CentroidModel, error) {
	m := &CentroidModel{Centroids: centroids}
	for _, c := range centroids {
		m.Dimension = len(c)
		break
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CentroidModel) init() error {
	if len(m.Centroids) == 0 {
		return fmt.Errorf("model has no centroids")
	}
	if m.Dimension <= 0 {
		return fmt.Errorf("model dimension must be positive, got %d", m.Dimension)
	}

	m.order = m.order[:0]
	for label, c := range m.Centroids {
		if _, err := ParseLabel(string(label)); err != nil {
			return err
		}
		if len(c) != m.Dimension {
			return fmt.Errorf("centroid %s has %d values, want %d", label, len(c), m.Dimension)
		}
		m.order = append(m.order, label)
	}
	sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
	return nil
}

// Classify returns the label of the nearest centroid by Euclidean distance.
// Ties go to the alphabetically first label.
func (m *CentroidModel) Classify(vector []float64) (Label, error) {
	if len(vector) != m.Dimension {
		return "", fmt.Errorf("feature vector has %d values, model expects %d", len(vector), m.Dimension)
	}

	best := Label("")
	bestDist := math.Inf(1)
	for _, label := range m.order {
		d := floats.Distance(vector, m.Centroids[label], 2)
		if d < bestDist {
			best, bestDist = label, d
		}
	}
	if best == "" {
		return "", fmt.Errorf("no finite distance to any centroid")
	}
	return best, nil
}

// Save writes the model as YAML.
func (m *CentroidModel) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
