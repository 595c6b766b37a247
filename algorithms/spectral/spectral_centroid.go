package spectral

import (
	"fmt"
	"math"
)

// SpectralCentroid computes the magnitude-weighted mean frequency of each
// frame and the spread around it.
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64
}

// NewSpectralCentroid precomputes bin frequencies for an fftSize-point STFT.
func NewSpectralCentroid(sampleRate, fftSize int) (*SpectralCentroid, error) {
	if sampleRate <= 0 || fftSize < 2 {
		return nil, fmt.Errorf("invalid spectral centroid parameters: sample rate %d, fft size %d", sampleRate, fftSize)
	}
	return &SpectralCentroid{
		sampleRate: sampleRate,
		freqBins:   BinFrequencies(fftSize, sampleRate),
	}, nil
}

// Compute returns the centroid in Hz. A silent frame yields 0.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	numerator, denominator := 0.0, 0.0
	for i := 0; i < len(spectrum) && i < len(sc.freqBins); i++ {
		numerator += sc.freqBins[i] * spectrum[i]
		denominator += spectrum[i]
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// Bandwidth returns the second-order spread around centroid in Hz.
func (sc *SpectralCentroid) Bandwidth(spectrum []float64, centroid float64) float64 {
	numerator, denominator := 0.0, 0.0
	for i := 0; i < len(spectrum) && i < len(sc.freqBins); i++ {
		d := sc.freqBins[i] - centroid
		numerator += spectrum[i] * d * d
		denominator += spectrum[i]
	}
	if denominator == 0 {
		return 0
	}
	return math.Sqrt(numerator / denominator)
}

// ComputeFrames returns centroid and bandwidth per frame.
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) (centroids, bandwidths []float64) {
	centroids = make([]float64, len(spectrogram))
	bandwidths = make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
		bandwidths[t] = sc.Bandwidth(spectrum, centroids[t])
	}
	return centroids, bandwidths
}

// FrequencyBins returns a copy of the bin frequencies.
func (sc *SpectralCentroid) FrequencyBins() []float64 {
	bins := make([]float64, len(sc.freqBins))
	copy(bins, sc.freqBins)
	return bins
}
