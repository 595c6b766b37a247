// Package classify is the boundary to an external diagnostic model: a
// feature vector goes in, one of a small fixed set of labels comes out.
package classify

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// Label is a diagnostic category.
type Label string

// Labels the classifier may return
const (
	Normal       Label = "normal"
	Murmur       Label = "murmur"
	ExtraHeart   Label = "extrahls"
	Artifact     Label = "artifact"
	Extrasystole Label = "extrasystole"
)

// Labels returns every valid label.
func Labels() []Label {
	return []Label{Normal, Murmur, ExtraHeart, Artifact, Extrasystole}
}

// ParseLabel validates a label name.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if slices.Contains(Labels(), l) {
		return l, nil
	}
	return "", pcm.InvalidParameter("classify.ParseLabel", "label",
		"one of normal, murmur, extrahls, artifact, extrasystole", s)
}

// Classifier maps a fixed-length feature vector to a label.
type Classifier interface {
	Classify(vector []float64) (Label, error)
}

// Func adapts a plain function to Classifier.
type Func func(vector []float64) (Label, error)

// Classify calls f.
func (f Func) Classify(vector []float64) (Label, error) {
	return f(vector)
}

// Diagnose runs c on vector. A nil classifier, an error, a panic inside the
// classifier or a label outside the fixed set all skip diagnosis (ok false)
// instead of failing the analysis.
func Diagnose(c Classifier, vector []float64) (label Label, ok bool) {
	logger := logging.WithFields(logging.Fields{
		"component": "classifier",
		"function":  "Diagnose",
	})

	if c == nil {
		logger.Debug("No classifier configured, skipping diagnosis")
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Errorf("%v", r), "Classifier panicked, skipping diagnosis")
			label, ok = "", false
		}
	}()

	got, err := c.Classify(vector)
	if err != nil {
		logger.Warn("Classifier failed, skipping diagnosis", logging.Fields{"error": err.Error()})
		return "", false
	}
	if _, err := ParseLabel(string(got)); err != nil {
		logger.Warn("Classifier returned unknown label, skipping diagnosis", logging.Fields{"label": string(got)})
		return "", false
	}

	logger.Debug("Diagnosis", logging.Fields{"label": string(got)})
	return got, true
}
