package windowing

import (
	"fmt"
	"math"
)

// Hann is a precomputed Hann window.
//
// The periodic form (symmetric=false) divides by size rather than size-1 and
// is the one used for STFT analysis, since it tiles exactly under overlap-add.
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}

	coefficients := make([]float64, size)
	if size == 1 {
		coefficients[0] = 1
	} else {
		for i := range size {
			coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
		}
	}

	return &Hann{
		size:         size,
		symmetric:    symmetric,
		coefficients: coefficients,
	}
}

// NewPeriodicHann is shorthand for NewHann(size, false).
func NewPeriodicHann(size int) *Hann {
	return NewHann(size, false)
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i, c := range h.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the window coefficients
func (h *Hann) Coefficients() []float64 {
	return append([]float64(nil), h.coefficients...)
}

// Size returns the window size
func (h *Hann) Size() int {
	return h.size
}

// Symmetric reports whether the window is the symmetric form.
func (h *Hann) Symmetric() bool {
	return h.symmetric
}
