package filters

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
)

// PadLength is the odd-extension length used by FiltFilt at each end. The
// input must be strictly longer than this.
func (b *Butterworth) PadLength() int {
	return 3 * (2*len(b.sections) + 1)
}

// FiltFilt applies the filter forward and then backward so the output has no
// net phase shift and exactly the input's length.
//
// Both ends are padded with an odd extension of PadLength samples and each
// pass starts from the sections' steady state scaled by the first sample,
// which suppresses start-up transients.
func (b *Butterworth) FiltFilt(buf *pcm.Buffer) (*pcm.Buffer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "butterworth",
		"function":  "FiltFilt",
	})

	if buf.SampleRate() != b.sampleRate {
		return nil, pcm.InvalidFilterSpec("filters.FiltFilt", "sample_rate", fmt.Sprintf("%d", b.sampleRate),
			fmt.Sprintf("filter designed for %d Hz applied to %d Hz signal", b.sampleRate, buf.SampleRate()))
	}

	padlen := b.PadLength()
	if buf.Len() <= padlen {
		return nil, pcm.InvalidFilterSpec("filters.FiltFilt", "length", fmt.Sprintf("> %d samples", padlen),
			fmt.Sprintf("signal too short for order %d zero-phase filtering: %d samples", b.spec.Order, buf.Len()))
	}

	x := buf.Samples()
	ext := oddExtend(x, padlen)
	zi := b.steadyState()

	y := b.run(ext, zi, ext[0])
	slices.Reverse(y)
	y = b.run(y, zi, y[0])
	slices.Reverse(y)

	out := make([]float64, len(x))
	copy(out, y[padlen:padlen+len(x)])

	logger.Debug("Applied zero-phase band-pass", logging.Fields{
		"low":      b.spec.Low,
		"high":     b.spec.High,
		"order":    b.spec.Order,
		"samples":  len(x),
		"sections": len(b.sections),
	})

	return pcm.Wrap(out, buf.SampleRate()), nil
}

// steadyState returns per-section initial conditions for a unit step, each
// scaled by the DC gain of the sections before it.
func (b *Butterworth) steadyState() [][2]float64 {
	zi := make([][2]float64, len(b.sections))
	scale := 1.0
	for i := range b.sections {
		z0, z1 := b.sections[i].SteadyState()
		zi[i] = [2]float64{scale * z0, scale * z1}
		scale *= b.sections[i].DCGain()
	}
	return zi
}

// run filters x through the cascade starting from zi*x0.
func (b *Butterworth) run(x []float64, zi [][2]float64, x0 float64) []float64 {
	sections := b.Sections()
	out := x
	for i := range sections {
		sections[i].SetState(zi[i][0]*x0, zi[i][1]*x0)
		out = sections[i].ProcessBuffer(out)
	}
	return out
}

// oddExtend reflects padlen samples about each endpoint:
// 2*x[0] - x[padlen..1] on the left, 2*x[n-1] - x[n-2..n-1-padlen] on the right.
func oddExtend(x []float64, padlen int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*padlen)
	for i := range padlen {
		ext = append(ext, 2*x[0]-x[padlen-i])
	}
	ext = append(ext, x...)
	for i := range padlen {
		ext = append(ext, 2*x[n-1]-x[n-2-i])
	}
	return ext
}

// BandLimit validates spec, designs the filter and applies it zero-phase.
// An invalid spec fails before any samples are touched.
func BandLimit(buf *pcm.Buffer, spec Spec) (*pcm.Buffer, error) {
	bw, err := DesignButterworth(spec, buf.SampleRate())
	if err != nil {
		return nil, err
	}
	return bw.FiltFilt(buf)
}
