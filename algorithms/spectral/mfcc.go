package spectral

import (
	"fmt"
	"math"
)

// logFloor keeps log mel energies finite for silent frames.
const logFloor = 1e-10

// MFCC computes Mel-Frequency Cepstral Coefficients from power spectra.
// It is immutable after construction and safe for concurrent use.
type MFCC struct {
	params     MFCCParams
	filterBank *MelFilterBank
	dctMatrix  [][]float64
	lifter     []float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (0 = Nyquist)
	LifterCoeff     float64 `json:"lifter_coeff"`     // Sinusoidal lifter, 0 disables it
}

// NewMFCC creates an MFCC computer for spectra of the given FFT size.
func NewMFCC(sampleRate, fftSize int, params MFCCParams) (*MFCC, error) {
	if params.NumCoefficients <= 0 {
		return nil, fmt.Errorf("invalid number of coefficients: %d", params.NumCoefficients)
	}
	if params.NumMelFilters < params.NumCoefficients {
		return nil, fmt.Errorf("need at least %d mel filters for %d coefficients, got %d",
			params.NumCoefficients, params.NumCoefficients, params.NumMelFilters)
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}

	bank, err := NewMelFilterBank(params.NumMelFilters, fftSize, sampleRate, params.LowFreq, params.HighFreq)
	if err != nil {
		return nil, fmt.Errorf("failed to create mel filter bank: %w", err)
	}

	m := &MFCC{
		params:     params,
		filterBank: bank,
		dctMatrix:  dctMatrix(params.NumCoefficients, params.NumMelFilters),
	}
	if params.LifterCoeff > 0 {
		m.lifter = make([]float64, params.NumCoefficients)
		for i := range m.lifter {
			m.lifter[i] = 1.0 + (params.LifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/params.LifterCoeff)
		}
	}
	return m, nil
}

// Compute calculates MFCC coefficients from one power spectrum
func (m *MFCC) Compute(powerSpectrum []float64) []float64 {
	melSpectrum := m.filterBank.Apply(powerSpectrum)

	for i, mel := range melSpectrum {
		melSpectrum[i] = math.Log(math.Max(mel, logFloor))
	}

	coeffs := make([]float64, len(m.dctMatrix))
	for k, row := range m.dctMatrix {
		sum := 0.0
		for n, c := range row {
			sum += melSpectrum[n] * c
		}
		coeffs[k] = sum
	}

	if m.lifter != nil {
		for i := range coeffs {
			coeffs[i] *= m.lifter[i]
		}
	}
	return coeffs
}

// ComputeFrames processes a frame x bin power spectrogram into frame x coefficient.
func (m *MFCC) ComputeFrames(power [][]float64) [][]float64 {
	frames := make([][]float64, len(power))
	for t, spectrum := range power {
		frames[t] = m.Compute(spectrum)
	}
	return frames
}

// Params returns the MFCC parameters in effect.
func (m *MFCC) Params() MFCCParams {
	return m.params
}

// dctMatrix builds an orthonormal DCT-II matrix of size coeffs x filters.
func dctMatrix(coeffs, filters int) [][]float64 {
	matrix := make([][]float64, coeffs)
	for k := range coeffs {
		matrix[k] = make([]float64, filters)
		norm := math.Sqrt(2.0 / float64(filters))
		if k == 0 {
			norm = math.Sqrt(1.0 / float64(filters))
		}
		for n := range filters {
			matrix[k][n] = norm * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(filters))
		}
	}
	return matrix
}
