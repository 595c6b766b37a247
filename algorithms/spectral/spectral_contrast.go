package spectral

import (
	"fmt"
	"math"
	"sort"
)

// contrastQuantile is the share of a band's bins averaged for the peak and
// for the valley.
const contrastQuantile = 0.2

// SpectralContrast computes spectral contrast features: the dB difference
// between the strongest and weakest 20% of power in each of a fixed number
// of log-spaced bands.
type SpectralContrast struct {
	numBands  int
	bandEdges []int // numBands+1 bin indices, strictly increasing
	bandFreqs []float64
}

// NewSpectralContrast splits minFreq..Nyquist into numBands log-spaced bands
// for spectra of the given FFT size.
func NewSpectralContrast(sampleRate, fftSize, numBands int, minFreq float64) (*SpectralContrast, error) {
	if numBands <= 0 {
		return nil, fmt.Errorf("invalid number of contrast bands: %d", numBands)
	}
	nyquist := float64(sampleRate) / 2.0
	if minFreq <= 0 || minFreq >= nyquist {
		return nil, fmt.Errorf("contrast min frequency %.1f Hz must be in (0, %.1f)", minFreq, nyquist)
	}

	numBins := fftSize/2 + 1
	if numBins < numBands+1 {
		return nil, fmt.Errorf("%d frequency bins cannot hold %d contrast bands", numBins, numBands)
	}

	logMin := math.Log10(minFreq)
	logStep := (math.Log10(nyquist) - logMin) / float64(numBands)

	edges := make([]int, numBands+1)
	freqs := make([]float64, numBands+1)
	binHz := float64(sampleRate) / float64(fftSize)
	for i := range edges {
		freq := math.Pow(10.0, logMin+float64(i)*logStep)
		edges[i] = min(int(math.Round(freq/binHz)), numBins-1)
	}
	edges[numBands] = numBins - 1

	// Ensure monotonic increasing band edges
	for i := 1; i <= numBands; i++ {
		if edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
	}
	if edges[numBands] > numBins-1 {
		return nil, fmt.Errorf("contrast bands from %.1f Hz do not fit %d bins", minFreq, numBins)
	}
	for i, e := range edges {
		freqs[i] = float64(e) * binHz
	}

	return &SpectralContrast{
		numBands:  numBands,
		bandEdges: edges,
		bandFreqs: freqs,
	}, nil
}

// NumBands returns the number of contrast values per frame.
func (sc *SpectralContrast) NumBands() int {
	return sc.numBands
}

// BandFrequencies returns the band edges in Hz.
func (sc *SpectralContrast) BandFrequencies() []float64 {
	return append([]float64(nil), sc.bandFreqs...)
}

// Compute calculates spectral contrast for one power spectrum. The last band
// includes the Nyquist bin.
func (sc *SpectralContrast) Compute(powerSpectrum []float64) []float64 {
	contrast := make([]float64, sc.numBands)
	for band := range sc.numBands {
		start := sc.bandEdges[band]
		end := sc.bandEdges[band+1]
		if band == sc.numBands-1 {
			end++
		}
		end = min(end, len(powerSpectrum))
		if start >= end {
			continue
		}
		contrast[band] = bandContrast(powerSpectrum[start:end])
	}
	return contrast
}

// ComputeFrames processes a frame x bin power spectrogram into frame x band.
func (sc *SpectralContrast) ComputeFrames(power [][]float64) [][]float64 {
	contrasts := make([][]float64, len(power))
	for t, spectrum := range power {
		contrasts[t] = sc.Compute(spectrum)
	}
	return contrasts
}

// bandContrast returns 10*log10(peak/valley) of one band's power.
func bandContrast(band []float64) float64 {
	sorted := append([]float64(nil), band...)
	sort.Float64s(sorted)

	count := max(int(contrastQuantile*float64(len(sorted))), 1)

	valley := 0.0
	for _, p := range sorted[:count] {
		valley += p
	}
	valley /= float64(count)

	peak := 0.0
	for _, p := range sorted[len(sorted)-count:] {
		peak += p
	}
	peak /= float64(count)

	return 10.0*math.Log10(math.Max(peak, logFloor)) - 10.0*math.Log10(math.Max(valley, logFloor))
}
