package filters

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// MaxOrder is the highest Butterworth order accepted by Spec.Validate.
const MaxOrder = 12

// Spec describes a band-pass filter: cutoffs in Hz and the prototype order.
type Spec struct {
	Low   float64 `json:"low" yaml:"low" mapstructure:"low"`
	High  float64 `json:"high" yaml:"high" mapstructure:"high"`
	Order int     `json:"order" yaml:"order" mapstructure:"order"`
}

// DefaultSpec returns the 25-400 Hz order 4 band used for heart sounds.
func DefaultSpec() Spec {
	return Spec{Low: 25, High: 400, Order: 4}
}

// Validate checks 0 < low < high < sampleRate/2 and 1 <= order <= MaxOrder.
// Invalid specs are rejected, never clamped.
func (s Spec) Validate(sampleRate int) error {
	const op = "filters.Spec.Validate"

	if sampleRate <= 0 {
		return pcm.InvalidFilterSpec(op, "sample_rate", "> 0", fmt.Sprintf("invalid sample rate %d", sampleRate))
	}
	nyquist := float64(sampleRate) / 2

	switch {
	case math.IsNaN(s.Low) || math.IsInf(s.Low, 0) || s.Low <= 0:
		return pcm.InvalidFilterSpec(op, "low", "> 0", fmt.Sprintf("invalid low cutoff %v Hz", s.Low))
	case math.IsNaN(s.High) || math.IsInf(s.High, 0):
		return pcm.InvalidFilterSpec(op, "high", "finite", fmt.Sprintf("invalid high cutoff %v Hz", s.High))
	case s.Low >= s.High:
		return pcm.InvalidFilterSpec(op, "low", "< high",
			fmt.Sprintf("low cutoff %v Hz is not below high cutoff %v Hz", s.Low, s.High))
	case s.High >= nyquist:
		return pcm.InvalidFilterSpec(op, "high", fmt.Sprintf("< %v (Nyquist)", nyquist),
			fmt.Sprintf("high cutoff %v Hz is not below Nyquist", s.High))
	case s.Order < 1 || s.Order > MaxOrder:
		return pcm.InvalidFilterSpec(op, "order", fmt.Sprintf("1..%d", MaxOrder),
			fmt.Sprintf("invalid filter order %d", s.Order))
	}
	return nil
}

// Butterworth is a designed band-pass filter held as second-order sections.
// It carries no sample state and is safe for concurrent use; each FiltFilt
// call works on its own copies of the sections.
type Butterworth struct {
	spec       Spec
	sampleRate int
	sections   []Biquad
}

// DesignButterworth designs a digital Butterworth band-pass filter.
//
// The analog low-pass prototype of the given order is shifted to a band-pass
// around the pre-warped cutoffs (normalised by Nyquist), mapped to the z-plane
// with the bilinear transform and factored into Order second-order sections.
func DesignButterworth(spec Spec, sampleRate int) (*Butterworth, error) {
	if err := spec.Validate(sampleRate); err != nil {
		return nil, err
	}

	n := spec.Order
	nyquist := float64(sampleRate) / 2

	// Pre-warp for the bilinear transform with fs = 2
	const fs2 = 4.0
	wl := fs2 * math.Tan(math.Pi*(spec.Low/nyquist)/2)
	wh := fs2 * math.Tan(math.Pi*(spec.High/nyquist)/2)
	bw := wh - wl
	wo2 := wl * wh

	// Analog prototype poles on the left half of the unit circle
	proto := make([]complex128, n)
	for k := range n {
		m := float64(-n + 1 + 2*k)
		proto[k] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*n)))
	}

	// Low-pass to band-pass: each prototype pole splits in two
	poles := make([]complex128, 0, 2*n)
	for _, p := range proto {
		plp := p * complex(bw/2, 0)
		d := cmplx.Sqrt(plp*plp - complex(wo2, 0))
		poles = append(poles, plp+d, plp-d)
	}
	gain := math.Pow(bw, float64(n))

	// Bilinear transform. The n analog zeros at s=0 map to z=1 and the n
	// zeros at infinity map to z=-1.
	den := complex(1, 0)
	for i, p := range poles {
		den *= complex(fs2, 0) - p
		poles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
	}
	gain *= real(complex(math.Pow(fs2, float64(n)), 0) / den)

	for _, p := range poles {
		if cmplx.Abs(p) >= 1 {
			return nil, pcm.InvalidFilterSpec("filters.DesignButterworth", "order", "a stable design",
				fmt.Sprintf("pole %v outside the unit circle", p))
		}
	}

	sections, err := pairSections(poles, math.Pow(gain, 1/float64(n)))
	if err != nil {
		return nil, err
	}

	return &Butterworth{
		spec:       spec,
		sampleRate: sampleRate,
		sections:   sections,
	}, nil
}

// pairSections groups conjugate pole pairs, then the remaining real poles, into
// sections that each carry one zero at z=1 and one at z=-1.
func pairSections(poles []complex128, sectionGain float64) ([]Biquad, error) {
	const imagTol = 1e-10

	var upper []complex128
	var reals []float64
	for _, p := range poles {
		switch {
		case math.Abs(imag(p)) <= imagTol*math.Max(1, cmplx.Abs(p)):
			reals = append(reals, real(p))
		case imag(p) > 0:
			upper = append(upper, p)
		}
	}
	sort.Float64s(reals)

	if 2*len(upper)+len(reals) != len(poles) || len(reals)%2 != 0 {
		return nil, fmt.Errorf("unpaired poles in band-pass design: %d complex, %d real", len(upper), len(reals))
	}

	sections := make([]Biquad, 0, len(poles)/2)
	for _, p := range upper {
		sections = append(sections, Biquad{
			B0: sectionGain, B1: 0, B2: -sectionGain,
			A1: -2 * real(p),
			A2: real(p)*real(p) + imag(p)*imag(p),
		})
	}
	for i := 0; i < len(reals); i += 2 {
		p1, p2 := reals[i], reals[i+1]
		sections = append(sections, Biquad{
			B0: sectionGain, B1: 0, B2: -sectionGain,
			A1: -(p1 + p2),
			A2: p1 * p2,
		})
	}
	return sections, nil
}

// Spec returns the spec the filter was designed from.
func (b *Butterworth) Spec() Spec {
	return b.spec
}

// SampleRate returns the design sample rate.
func (b *Butterworth) SampleRate() int {
	return b.sampleRate
}

// Sections returns a copy of the second-order sections.
func (b *Butterworth) Sections() []Biquad {
	out := make([]Biquad, len(b.sections))
	copy(out, b.sections)
	for i := range out {
		out[i].Reset()
	}
	return out
}

// Response returns the single-pass magnitude (linear) and phase (radians) at
// freq Hz. FiltFilt applies the magnitude twice and cancels the phase.
func (b *Butterworth) Response(freq float64) (magnitude, phase float64) {
	w := 2.0 * math.Pi * freq / float64(b.sampleRate)
	magnitude = 1
	for i := range b.sections {
		m, p := b.sections[i].FrequencyResponse(w)
		magnitude *= m
		phase += p
	}
	return magnitude, math.Remainder(phase, 2*math.Pi)
}
