// Package conditioning implements the amplitude and time-window operations
// applied to a recording before band-limiting: gain, gate, peak
// normalisation and trim. Every operation returns a new buffer.
package conditioning

import (
	"math"

	"github.com/RyanBlaney/sonido-pcg/pcm"
	"gonum.org/v1/gonum/floats"
)

// silenceFloor is the peak below which a buffer is treated as silent.
const silenceFloor = 1e-12

// Gain multiplies every sample by g. g must be finite and positive.
func Gain(buf *pcm.Buffer, g float64) (*pcm.Buffer, error) {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return nil, pcm.InvalidParameter("conditioning.Gain", "gain", "> 0", g)
	}

	out := make([]float64, buf.Len())
	floats.ScaleTo(out, g, buf.Samples())
	return pcm.Wrap(out, buf.SampleRate()), nil
}

// Gate zeroes every sample whose absolute amplitude is below threshold.
//
// This is a hard binary gate, a crude denoising heuristic rather than a noise
// model: quiet heart sounds below the threshold are removed along with the
// noise. A threshold of zero returns an unchanged copy.
func Gate(buf *pcm.Buffer, threshold float64) (*pcm.Buffer, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return nil, pcm.InvalidParameter("conditioning.Gate", "threshold", ">= 0", threshold)
	}

	return buf.Map(func(s float64) float64 {
		if math.Abs(s) < threshold {
			return 0
		}
		return s
	}), nil
}

// Normalize rescales the buffer so its peak absolute amplitude is 1.0.
//
// A silent buffer is returned unchanged together with a SILENT_BUFFER
// warning; callers should treat that error as informational.
func Normalize(buf *pcm.Buffer) (*pcm.Buffer, error) {
	peak := buf.Peak()
	if peak < silenceFloor {
		return buf, pcm.NewError(pcm.ErrCodeSilentBuffer, "conditioning.Normalize",
			"buffer is silent, left unnormalised", nil)
	}

	out := make([]float64, buf.Len())
	floats.ScaleTo(out, 1/peak, buf.Samples())
	return pcm.Wrap(out, buf.SampleRate()), nil
}

// Trim returns the samples covering [start, end) seconds. Bounds outside the
// buffer are clipped rather than rejected, so a negative end yields an empty
// buffer; pass math.Inf(1) to keep everything after start. start >= end
// after clipping yields an empty buffer.
func Trim(buf *pcm.Buffer, start, end float64) (*pcm.Buffer, error) {
	if math.IsNaN(start) {
		return nil, pcm.InvalidParameter("conditioning.Trim", "start", "a number", start)
	}
	if math.IsNaN(end) {
		return nil, pcm.InvalidParameter("conditioning.Trim", "end", "a number", end)
	}

	n := buf.Len()
	sr := float64(buf.SampleRate())

	from := toIndex(start, sr, n)
	to := toIndex(end, sr, n)
	if to < from {
		to = from
	}
	return buf.Slice(from, to), nil
}

// TrimDuration returns duration seconds starting at start. A non-positive
// duration runs to the end of the buffer.
func TrimDuration(buf *pcm.Buffer, start, duration float64) (*pcm.Buffer, error) {
	if math.IsNaN(duration) {
		return nil, pcm.InvalidParameter("conditioning.TrimDuration", "duration", "a number", duration)
	}
	if duration <= 0 {
		return Trim(buf, start, math.Inf(1))
	}
	return Trim(buf, start, math.Max(start, 0)+duration)
}

func toIndex(seconds, sampleRate float64, n int) int {
	if seconds <= 0 {
		return 0
	}
	idx := math.Round(seconds * sampleRate)
	if idx >= float64(n) {
		return n
	}
	return int(idx)
}
