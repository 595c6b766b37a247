package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-pcg/classify"
	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// Age bounds, inclusive.
const (
	MinAge = 0
	MaxAge = 120
)

// Gender is the patient's recorded gender.
type Gender string

const (
	GenderFemale      Gender = "female"
	GenderMale        Gender = "male"
	GenderOther       Gender = "other"
	GenderUnspecified Gender = "unspecified"
)

// Genders lists the accepted values.
func Genders() []Gender {
	return []Gender{GenderFemale, GenderMale, GenderOther, GenderUnspecified}
}

// ParseGender accepts any case. The empty string maps to GenderUnspecified.
func ParseGender(s string) (Gender, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return GenderUnspecified, nil
	}
	for _, g := range Genders() {
		if string(g) == s {
			return g, nil
		}
	}
	return "", pcm.InvalidParameter("archive.ParseGender", "gender", "one of female, male, other, unspecified", s)
}

// Metadata is the patient information recorded with a case.
type Metadata struct {
	Name   string `json:"name" yaml:"name" msgpack:"name"`
	Age    int    `json:"age" yaml:"age" msgpack:"age"`
	Gender Gender `json:"gender" yaml:"gender" msgpack:"gender"`
	Notes  string `json:"notes,omitempty" yaml:"notes,omitempty" msgpack:"notes,omitempty"`
}

// NewMetadata validates its arguments and returns the record.
func NewMetadata(name string, age int, gender, notes string) (Metadata, error) {
	g, err := ParseGender(gender)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Name: strings.TrimSpace(name), Age: age, Gender: g, Notes: notes}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Validate checks the field constraints. Out-of-range ages are rejected,
// never clamped.
func (m Metadata) Validate() error {
	const op = "archive.Metadata"
	if strings.TrimSpace(m.Name) == "" {
		return pcm.InvalidParameter(op, "name", "non-empty", fmt.Sprintf("%q", m.Name))
	}
	if m.Age < MinAge || m.Age > MaxAge {
		return pcm.InvalidParameter(op, "age", fmt.Sprintf("%d..%d", MinAge, MaxAge), m.Age)
	}
	switch m.Gender {
	case GenderFemale, GenderMale, GenderOther, GenderUnspecified:
	default:
		return pcm.InvalidParameter(op, "gender", "one of female, male, other, unspecified", m.Gender)
	}
	return nil
}

// PatientCase is one archived recording with its metadata.
type PatientCase struct {
	ID         string             `json:"id" yaml:"id" msgpack:"id"`
	Metadata   Metadata           `json:"metadata" yaml:"metadata" msgpack:"metadata"`
	CreatedAt  time.Time          `json:"created_at" yaml:"created_at" msgpack:"created_at"`
	BlobKey    string             `json:"blob_key" yaml:"blob_key" msgpack:"blob_key"`
	SourceKey  string             `json:"source_key,omitempty" yaml:"source_key,omitempty" msgpack:"source_key,omitempty"`
	SampleRate int                `json:"sample_rate" yaml:"sample_rate" msgpack:"sample_rate"`
	NumSamples int                `json:"num_samples" yaml:"num_samples" msgpack:"num_samples"`
	Label      classify.Label     `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Features   *features.Snapshot `json:"features,omitempty" yaml:"features,omitempty" msgpack:"features,omitempty"`
}

// Duration of the stored recording.
func (c PatientCase) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.NumSamples) / float64(c.SampleRate) * float64(time.Second))
}

// Summary returns the listing view of the case.
func (c PatientCase) Summary() Summary {
	return Summary{
		ID:        c.ID,
		Name:      c.Metadata.Name,
		Age:       c.Metadata.Age,
		Gender:    c.Metadata.Gender,
		CreatedAt: c.CreatedAt,
		Duration:  c.Duration(),
		Label:     c.Label,
	}
}

// Summary is a case without notes, features or blob reference.
type Summary struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Age       int            `json:"age" yaml:"age"`
	Gender    Gender         `json:"gender" yaml:"gender"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
	Label     classify.Label `json:"label,omitempty" yaml:"label,omitempty"`
}

// Derived carries optional analysis results stored with a case. Source is
// the recording before conditioning; when set it is kept as a second blob.
type Derived struct {
	Label    classify.Label
	Features *features.Snapshot
	Source   *pcm.Buffer
}

func blobKey(id string) string {
	return "cases/" + id + ".wav"
}

func sourceKey(id string) string {
	return "cases/" + id + ".source.wav"
}
