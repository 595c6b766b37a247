package spectral

import (
	"fmt"
	"math"
)

// HzToMel converts frequency in Hz to the HTK mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts HTK mel back to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a bank of triangular filters equally spaced on the mel
// scale, applied to power spectra of a fixed FFT size.
type MelFilterBank struct {
	weights [][]float64 // filter x bin
}

// NewMelFilterBank builds numFilters triangles between lowFreq and highFreq.
// Weights are evaluated at each bin's centre frequency, so narrow filters at
// low sample rates still receive energy from their neighbouring bins.
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) (*MelFilterBank, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid mel filter bank: filters=%d fft=%d sample_rate=%d", numFilters, fftSize, sampleRate)
	}
	if lowFreq < 0 || highFreq <= lowFreq || highFreq > float64(sampleRate)/2 {
		return nil, fmt.Errorf("invalid mel band %.1f-%.1f Hz at %d Hz", lowFreq, highFreq, sampleRate)
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	hzPoints := make([]float64, numFilters+2)
	for i := range hzPoints {
		hzPoints[i] = MelToHz(lowMel + float64(i)*melStep)
	}

	freqs := BinFrequencies(fftSize, sampleRate)
	weights := make([][]float64, numFilters)
	for m := range numFilters {
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		weights[m] = make([]float64, len(freqs))
		for k, f := range freqs {
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			weights[m][k] = math.Max(0, math.Min(rising, falling))
		}
	}

	return &MelFilterBank{weights: weights}, nil
}

// NumFilters returns the number of filters in the bank.
func (mb *MelFilterBank) NumFilters() int {
	return len(mb.weights)
}

// Apply applies the filter bank to one power spectrum.
func (mb *MelFilterBank) Apply(powerSpectrum []float64) []float64 {
	melSpectrum := make([]float64, len(mb.weights))
	for i, filter := range mb.weights {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}
	return melSpectrum
}

// Weights returns a copy of the filter weights (for visualisation).
func (mb *MelFilterBank) Weights() [][]float64 {
	out := make([][]float64, len(mb.weights))
	for i, w := range mb.weights {
		out[i] = append([]float64(nil), w...)
	}
	return out
}
