package spectral

import "math"

// SpectralFlatness is the ratio of geometric to arithmetic mean of a frame's
// power spectrum. Values near 1 indicate noise, near 0 a tonal frame.
type SpectralFlatness struct {
	amin float64
}

// NewSpectralFlatness floors power at 1e-10 before taking logs.
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{amin: logFloor}
}

// Compute takes a magnitude spectrum and returns flatness in [0, 1].
func (sf *SpectralFlatness) Compute(magnitude []float64) float64 {
	if len(magnitude) == 0 {
		return 0
	}

	logSum, sum := 0.0, 0.0
	for _, m := range magnitude {
		p := math.Max(m*m, sf.amin)
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(magnitude))
	flatness := math.Exp(logSum/n) / (sum / n)
	return math.Min(flatness, 1)
}

// ComputeFrames applies Compute to every frame.
func (sf *SpectralFlatness) ComputeFrames(spectrogram [][]float64) []float64 {
	out := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		out[t] = sf.Compute(spectrum)
	}
	return out
}
