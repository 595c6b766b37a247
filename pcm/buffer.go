// Package pcm holds the mono audio buffer shared by every pipeline stage and
// the error taxonomy those stages report.
package pcm

import (
	"math"
	"time"
)

// Buffer is a mono sequence of float64 samples plus its sample rate.
//
// A Buffer is immutable once constructed: constructors copy their input and
// Samples returns a copy, so one Buffer can be shared across concurrent
// analyses without aliasing hazards. Every stage returns a new Buffer.
type Buffer struct {
	samples    []float64
	sampleRate int
}

// NewBuffer creates a buffer from a copy of samples.
func NewBuffer(samples []float64, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, InvalidParameter("pcm.NewBuffer", "sample_rate", "> 0", sampleRate)
	}
	data := make([]float64, len(samples))
	copy(data, samples)
	return &Buffer{samples: data, sampleRate: sampleRate}, nil
}

// Silence returns a zero-valued buffer covering the given duration.
func Silence(duration time.Duration, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, InvalidParameter("pcm.Silence", "sample_rate", "> 0", sampleRate)
	}
	n := int(math.Round(duration.Seconds() * float64(sampleRate)))
	return &Buffer{samples: make([]float64, max(n, 0)), sampleRate: sampleRate}, nil
}

// Wrap takes ownership of samples without copying. Callers must not touch the
// slice afterwards; it exists so stages that already allocated a fresh output
// slice avoid a second copy.
func Wrap(samples []float64, sampleRate int) *Buffer {
	if samples == nil {
		samples = []float64{}
	}
	return &Buffer{samples: samples, sampleRate: sampleRate}
}

// Samples returns a copy of the sample data.
func (b *Buffer) Samples() []float64 {
	out := make([]float64, len(b.samples))
	copy(out, b.samples)
	return out
}

// At returns sample i.
func (b *Buffer) At(i int) float64 {
	return b.samples[i]
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(float64(len(b.samples)) / float64(b.sampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds.
func (b *Buffer) Seconds() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// Peak returns the maximum absolute amplitude.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// IsEmpty reports whether the buffer holds no samples.
func (b *Buffer) IsEmpty() bool {
	return len(b.samples) == 0
}

// Map returns a new buffer with fn applied to every sample.
func (b *Buffer) Map(fn func(float64) float64) *Buffer {
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = fn(s)
	}
	return &Buffer{samples: out, sampleRate: b.sampleRate}
}

// Slice returns a new buffer holding samples [from, to).
func (b *Buffer) Slice(from, to int) *Buffer {
	out := make([]float64, to-from)
	copy(out, b.samples[from:to])
	return &Buffer{samples: out, sampleRate: b.sampleRate}
}
