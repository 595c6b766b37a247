// Package temporal holds time-domain frame measures.
package temporal

import (
	"fmt"
	"math"
)

// Envelope extracts amplitude envelopes on a centred frame grid: frame t
// covers frameSize samples centred on sample t*hopSize, zero padded past
// either end of the signal.
type Envelope struct {
	frameSize int
	hopSize   int
}

// NewEnvelope creates an envelope extractor for the given frame grid.
func NewEnvelope(frameSize, hopSize int) (*Envelope, error) {
	if frameSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid envelope parameters: frame %d, hop %d", frameSize, hopSize)
	}
	return &Envelope{frameSize: frameSize, hopSize: hopSize}, nil
}

// NumFrames returns the frame count for n samples, matching a centred STFT.
func (e *Envelope) NumFrames(n int) int {
	if n <= 0 {
		return 0
	}
	return (n+2*(e.frameSize/2)-e.frameSize)/e.hopSize + 1
}

// ComputeRMS returns the root mean square of each frame. Padding counts
// towards the frame length.
func (e *Envelope) ComputeRMS(signal []float64) []float64 {
	return e.each(signal, func(frame []float64) float64 {
		sumSquares := 0.0
		for _, x := range frame {
			sumSquares += x * x
		}
		return math.Sqrt(sumSquares / float64(len(frame)))
	})
}

// ComputePeak returns the largest absolute sample of each frame.
func (e *Envelope) ComputePeak(signal []float64) []float64 {
	return e.each(signal, func(frame []float64) float64 {
		peak := 0.0
		for _, x := range frame {
			peak = math.Max(peak, math.Abs(x))
		}
		return peak
	})
}

func (e *Envelope) each(signal []float64, fn func([]float64) float64) []float64 {
	frames := e.NumFrames(len(signal))
	if frames == 0 {
		return nil
	}

	half := e.frameSize / 2
	frame := make([]float64, e.frameSize)
	out := make([]float64, frames)
	for t := range frames {
		start := t*e.hopSize - half
		for i := range frame {
			j := start + i
			if j < 0 || j >= len(signal) {
				frame[i] = 0
				continue
			}
			frame[i] = signal[j]
		}
		out[t] = fn(frame)
	}
	return out
}
