package spectral

import "fmt"

// ZeroCrossingRate counts sign changes per sample over frames laid out on the
// same centred grid as the STFT, so frame t of both line up.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
}

// NewZeroCrossingRate creates a calculator for the given frame grid.
func NewZeroCrossingRate(frameSize, hopSize int) (*ZeroCrossingRate, error) {
	if frameSize < 2 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid zero crossing parameters: frame %d, hop %d", frameSize, hopSize)
	}
	return &ZeroCrossingRate{frameSize: frameSize, hopSize: hopSize}, nil
}

// Compute returns the fraction of adjacent sample pairs in frame whose sign
// differs. Zero counts as positive.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

// ComputeFrames returns one rate per STFT frame. Frame t is centred on
// sample t*hop and zero padded at both ends, as the STFT is.
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) == 0 {
		return nil
	}
	frames := NewSTFT().NumFrames(len(signal), zcr.frameSize, zcr.hopSize)
	half := zcr.frameSize / 2
	frame := make([]float64, zcr.frameSize)
	out := make([]float64, frames)
	for t := range frames {
		start := t*zcr.hopSize - half
		for i := range frame {
			j := start + i
			if j < 0 || j >= len(signal) {
				frame[i] = 0
				continue
			}
			frame[i] = signal[j]
		}
		out[t] = zcr.Compute(frame)
	}
	return out
}
