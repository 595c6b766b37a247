package spectral

import "fmt"

// DefaultRollPercent is the share of spectral magnitude below the rolloff.
const DefaultRollPercent = 0.85

// SpectralRolloff finds the frequency below which a fixed share of a frame's
// magnitude lies.
type SpectralRolloff struct {
	freqBins    []float64
	rollPercent float64
}

// NewSpectralRolloff creates a rolloff calculator; rollPercent must be in (0, 1).
func NewSpectralRolloff(sampleRate, fftSize int, rollPercent float64) (*SpectralRolloff, error) {
	if sampleRate <= 0 || fftSize < 2 {
		return nil, fmt.Errorf("invalid spectral rolloff parameters: sample rate %d, fft size %d", sampleRate, fftSize)
	}
	if rollPercent <= 0 || rollPercent >= 1 {
		return nil, fmt.Errorf("roll percent must be in (0, 1), got %v", rollPercent)
	}
	return &SpectralRolloff{
		freqBins:    BinFrequencies(fftSize, sampleRate),
		rollPercent: rollPercent,
	}, nil
}

// Compute returns the rolloff frequency in Hz, or 0 for a silent frame.
func (sr *SpectralRolloff) Compute(spectrum []float64) float64 {
	n := min(len(spectrum), len(sr.freqBins))
	total := 0.0
	for i := range n {
		total += spectrum[i]
	}
	if total == 0 {
		return 0
	}

	target := sr.rollPercent * total
	cumulative := 0.0
	for i := range n {
		cumulative += spectrum[i]
		if cumulative >= target {
			return sr.freqBins[i]
		}
	}
	return sr.freqBins[n-1]
}

// ComputeFrames applies Compute to every frame.
func (sr *SpectralRolloff) ComputeFrames(spectrogram [][]float64) []float64 {
	out := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		out[t] = sr.Compute(spectrum)
	}
	return out
}
