package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// Config fixes the analysis grid. Frame and hop determine the time axis of
// every matrix, so they must stay constant across a comparison.
type Config struct {
	FrameSize       int     `json:"frame_size" yaml:"frame_size" mapstructure:"frame_size"`
	HopSize         int     `json:"hop_size" yaml:"hop_size" mapstructure:"hop_size"`
	NumMFCC         int     `json:"num_mfcc" yaml:"num_mfcc" mapstructure:"num_mfcc"`
	NumMelFilters   int     `json:"num_mel_filters" yaml:"num_mel_filters" mapstructure:"num_mel_filters"`
	ContrastBands   int     `json:"contrast_bands" yaml:"contrast_bands" mapstructure:"contrast_bands"`
	ChromaMinFreq   float64 `json:"chroma_min_freq" yaml:"chroma_min_freq" mapstructure:"chroma_min_freq"`
	ContrastMinFreq float64 `json:"contrast_min_freq" yaml:"contrast_min_freq" mapstructure:"contrast_min_freq"`
	TuningFreq      float64 `json:"tuning_freq" yaml:"tuning_freq" mapstructure:"tuning_freq"`
	Lifter          float64 `json:"lifter" yaml:"lifter" mapstructure:"lifter"`
}

// MFCC coefficient bounds accepted by Validate
const (
	MinMFCC = 1
	MaxMFCC = 40
)

// DefaultConfig returns a 2048 sample frame, 512 hop, 13 MFCC, 40 mel
// filters, 6 contrast bands and 12 chroma bins.
func DefaultConfig() Config {
	return Config{
		FrameSize:       2048,
		HopSize:         512,
		NumMFCC:         13,
		NumMelFilters:   40,
		ContrastBands:   6,
		ChromaMinFreq:   20,
		ContrastMinFreq: 20,
		TuningFreq:      440,
		Lifter:          0,
	}
}

// Validate checks the configuration independently of any sample rate.
func (c Config) Validate() error {
	const op = "features.Config.Validate"

	switch {
	case c.FrameSize < 16:
		return pcm.InvalidParameter(op, "frame_size", ">= 16", c.FrameSize)
	case c.HopSize <= 0 || c.HopSize > c.FrameSize:
		return pcm.InvalidParameter(op, "hop_size", fmt.Sprintf("1..%d", c.FrameSize), c.HopSize)
	case c.NumMFCC < MinMFCC || c.NumMFCC > MaxMFCC:
		return pcm.InvalidParameter(op, "num_mfcc", fmt.Sprintf("%d..%d", MinMFCC, MaxMFCC), c.NumMFCC)
	case c.NumMelFilters < c.NumMFCC:
		return pcm.InvalidParameter(op, "num_mel_filters", fmt.Sprintf(">= num_mfcc (%d)", c.NumMFCC), c.NumMelFilters)
	case c.ContrastBands < 1:
		return pcm.InvalidParameter(op, "contrast_bands", ">= 1", c.ContrastBands)
	case c.ChromaMinFreq <= 0:
		return pcm.InvalidParameter(op, "chroma_min_freq", "> 0", c.ChromaMinFreq)
	case c.ContrastMinFreq <= 0:
		return pcm.InvalidParameter(op, "contrast_min_freq", "> 0", c.ContrastMinFreq)
	case c.TuningFreq <= 0:
		return pcm.InvalidParameter(op, "tuning_freq", "> 0", c.TuningFreq)
	case c.Lifter < 0:
		return pcm.InvalidParameter(op, "lifter", ">= 0", c.Lifter)
	}
	return nil
}

// Rows returns the fixed coefficient count of a kind under this config.
func (c Config) Rows(kind Kind) int {
	switch kind {
	case MFCC:
		return c.NumMFCC
	case Chroma:
		return 12
	case Contrast:
		return c.ContrastBands
	case Descriptors:
		return numDescriptors
	default:
		return 0
	}
}
