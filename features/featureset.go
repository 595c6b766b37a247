package features

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-pcg/pcm"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Kind names a feature matrix.
type Kind string

// Feature kinds
const (
	MFCC     Kind = "mfcc"
	Chroma   Kind = "chroma"
	Contrast Kind = "contrast"

	// Descriptors holds per-frame scalar measures, one row each as named by
	// DescriptorNames. It is opt-in and never part of Vector.
	Descriptors Kind = "spectral"
)

// Rows of the Descriptors matrix.
const (
	DescCentroid = iota
	DescBandwidth
	DescRolloff
	DescFlatness
	DescZeroCrossing
	DescRMS
	numDescriptors
)

// DescriptorNames labels the Descriptors rows.
var DescriptorNames = [numDescriptors]string{"centroid", "bandwidth", "rolloff", "flatness", "zcr", "rms"}

// AllKinds lists the core kinds in the order Vector concatenates them.
func AllKinds() []Kind {
	return []Kind{MFCC, Chroma, Contrast}
}

func knownKinds() []Kind {
	return append(AllKinds(), Descriptors)
}

// ParseKind converts a name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case MFCC, Chroma, Contrast, Descriptors:
		return k, nil
	}
	return "", pcm.InvalidParameter("features.ParseKind", "kind", "mfcc, chroma, contrast or spectral", s)
}

// FeatureSet maps each computed kind to a coefficient x frame matrix. All
// matrices in a set share the same frame count.
type FeatureSet struct {
	SampleRate int
	Frames     int
	Config     Config
	matrices   map[Kind]*mat.Dense
}

// Matrix returns the matrix for kind, or nil when it was not computed.
func (fs *FeatureSet) Matrix(kind Kind) *mat.Dense {
	return fs.matrices[kind]
}

// Kinds returns the computed kinds in canonical order.
func (fs *FeatureSet) Kinds() []Kind {
	var out []Kind
	for _, k := range knownKinds() {
		if _, ok := fs.matrices[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Shape returns (coefficients, frames) for kind.
func (fs *FeatureSet) Shape(kind Kind) (rows, cols int, err error) {
	m, ok := fs.matrices[kind]
	if !ok {
		return 0, 0, pcm.InvalidParameter("features.Shape", "kind", "a computed kind", kind)
	}
	rows, cols = m.Dims()
	return rows, cols, nil
}

// Reduce averages the kind's matrix across frames into one value per coefficient.
func (fs *FeatureSet) Reduce(kind Kind) ([]float64, error) {
	m, ok := fs.matrices[kind]
	if !ok {
		return nil, pcm.InvalidParameter("features.Reduce", "kind", "a computed kind", kind)
	}
	return reduceRows(m), nil
}

// Summary reduces every computed kind.
func (fs *FeatureSet) Summary() map[Kind][]float64 {
	out := make(map[Kind][]float64, len(fs.matrices))
	for k, m := range fs.matrices {
		out[k] = reduceRows(m)
	}
	return out
}

// HasCore reports whether every kind Vector needs was computed.
func (fs *FeatureSet) HasCore() bool {
	for _, k := range AllKinds() {
		if _, ok := fs.matrices[k]; !ok {
			return false
		}
	}
	return true
}

// Vector concatenates the MFCC, chroma and contrast means, in that order,
// into the fixed-length classifier input. Every kind must have been computed.
func (fs *FeatureSet) Vector() ([]float64, error) {
	var vec []float64
	for _, k := range AllKinds() {
		m, ok := fs.matrices[k]
		if !ok {
			return nil, fmt.Errorf("feature vector needs %s, which was not computed", k)
		}
		vec = append(vec, reduceRows(m)...)
	}
	return vec, nil
}

// VectorLength is the length of Vector for a config.
func VectorLength(cfg Config) int {
	n := 0
	for _, k := range AllKinds() {
		n += cfg.Rows(k)
	}
	return n
}

func reduceRows(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	out := make([]float64, rows)
	for i := range rows {
		out[i] = stat.Mean(m.RawRowView(i), nil)
	}
	return out
}

// Snapshot is the persisted form of a FeatureSet: mean vectors per kind.
type Snapshot struct {
	Frames int                  `json:"frames" yaml:"frames" msgpack:"frames"`
	Means  map[string][]float64 `json:"means" yaml:"means" msgpack:"means"`
}

// Snapshot flattens the set for storage alongside a case record.
func (fs *FeatureSet) Snapshot() *Snapshot {
	s := &Snapshot{Frames: fs.Frames, Means: map[string][]float64{}}
	for k, v := range fs.Summary() {
		s.Means[string(k)] = v
	}
	return s
}

// Kinds returns the snapshot's kinds sorted by name.
func (s *Snapshot) Kinds() []string {
	out := make([]string, 0, len(s.Means))
	for k := range s.Means {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
