package conditioning

import (
	"math"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// Params configures one pass of the conditioning chain.
type Params struct {
	Gain      float64 `json:"gain" yaml:"gain" mapstructure:"gain"`
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Normalize bool    `json:"normalize" yaml:"normalize" mapstructure:"normalize"`

	// Start and End select the analysis window in seconds. A nil End keeps
	// everything after Start; any set End is clipped like Start.
	Start float64  `json:"start" yaml:"start" mapstructure:"start"`
	End   *float64 `json:"end,omitempty" yaml:"end,omitempty" mapstructure:"end"`
}

// DefaultParams returns unity gain, a 0.01 gate, normalisation on and the
// full recording.
func DefaultParams() Params {
	return Params{
		Gain:      1.0,
		Threshold: 0.01,
		Normalize: true,
	}
}

// Result is the conditioned buffer plus any non-fatal warnings raised on the way.
type Result struct {
	Buffer   *pcm.Buffer
	Warnings []error
}

// Apply runs gain, gate, normalise and trim in that order.
func Apply(buf *pcm.Buffer, p Params) (*Result, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "conditioning",
		"function":  "Apply",
	})

	res := &Result{}

	out, err := Gain(buf, p.Gain)
	if err != nil {
		return nil, err
	}

	out, err = Gate(out, p.Threshold)
	if err != nil {
		return nil, err
	}

	if p.Normalize {
		normalized, err := Normalize(out)
		switch {
		case err == nil:
			out = normalized
		case pcm.IsWarning(err):
			logger.Warn("Skipping normalisation of silent buffer", logging.Fields{
				"samples": out.Len(),
			})
			res.Warnings = append(res.Warnings, err)
			out = normalized
		default:
			return nil, err
		}
	}

	end := math.Inf(1)
	if p.End != nil {
		end = *p.End
	}
	out, err = Trim(out, p.Start, end)
	if err != nil {
		return nil, err
	}

	logger.Debug("Conditioned buffer", logging.Fields{
		"gain":        p.Gain,
		"threshold":   p.Threshold,
		"normalize":   p.Normalize,
		"samples_in":  buf.Len(),
		"samples_out": out.Len(),
		"peak":        out.Peak(),
	})

	res.Buffer = out
	return res, nil
}
