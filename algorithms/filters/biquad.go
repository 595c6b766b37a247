package filters

import (
	"math"
)

// Biquad is one second-order section with a0 normalised to 1.
//
// Samples are processed in transposed direct form II:
//
//	y[n]  = b0*x[n] + z0
//	z0    = b1*x[n] - a1*y[n] + z1
//	z1    = b2*x[n] - a2*y[n]
type Biquad struct {
	B0, B1, B2 float64 // Numerator coefficients
	A1, A2     float64 // Denominator coefficients (a0 == 1)

	// State variables
	z0, z1 float64
}

// Process applies the section to a single sample.
func (bq *Biquad) Process(input float64) float64 {
	output := bq.B0*input + bq.z0
	bq.z0 = bq.B1*input - bq.A1*output + bq.z1
	bq.z1 = bq.B2*input - bq.A2*output
	return output
}

// ProcessBuffer applies the section to an entire buffer of samples.
func (bq *Biquad) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = bq.Process(sample)
	}
	return output
}

// Reset clears the filter's internal state (delay line).
func (bq *Biquad) Reset() {
	bq.z0, bq.z1 = 0, 0
}

// SetState loads the delay line, used to start from a steady state.
func (bq *Biquad) SetState(z0, z1 float64) {
	bq.z0, bq.z1 = z0, z1
}

// SteadyState returns the delay line values that make a unit step input
// produce a constant output from the first sample.
//
// Solves (I - A^T) zi = B for the 2x2 companion matrix of the section, where
// B = [b1 - a1*b0, b2 - a2*b0].
func (bq *Biquad) SteadyState() (z0, z1 float64) {
	rb1 := bq.B1 - bq.A1*bq.B0
	rb2 := bq.B2 - bq.A2*bq.B0
	z0 = (rb1 + rb2) / (1 + bq.A1 + bq.A2)
	z1 = rb2 - bq.A2*z0
	return z0, z1
}

// DCGain returns the section's gain at 0 Hz.
func (bq *Biquad) DCGain() float64 {
	return (bq.B0 + bq.B1 + bq.B2) / (1 + bq.A1 + bq.A2)
}

// FrequencyResponse computes the magnitude and phase response at the
// normalised angular frequency w (radians per sample).
//
// H(e^jw) = (b0 + b1*e^-jw + b2*e^-j2w) / (1 + a1*e^-jw + a2*e^-j2w)
func (bq *Biquad) FrequencyResponse(w float64) (magnitude, phase float64) {
	cosW := math.Cos(w)
	sinW := math.Sin(w)
	cos2W := math.Cos(2 * w)
	sin2W := math.Sin(2 * w)

	numReal := bq.B0 + bq.B1*cosW + bq.B2*cos2W
	numImag := -bq.B1*sinW - bq.B2*sin2W

	denReal := 1 + bq.A1*cosW + bq.A2*cos2W
	denImag := -bq.A1*sinW - bq.A2*sin2W

	denMagSq := denReal*denReal + denImag*denImag

	hReal := (numReal*denReal + numImag*denImag) / denMagSq
	hImag := (numImag*denReal - numReal*denImag) / denMagSq

	magnitude = math.Sqrt(hReal*hReal + hImag*hImag)
	phase = math.Atan2(hImag, hReal)

	return magnitude, phase
}

// Coefficients returns the section coefficients as [b0 b1 b2 1 a1 a2].
func (bq *Biquad) Coefficients() [6]float64 {
	return [6]float64{bq.B0, bq.B1, bq.B2, 1, bq.A1, bq.A2}
}
