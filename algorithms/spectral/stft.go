package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-pcg/logging"
)

// STFT provides Short-Time Fourier Transform functionality.
//
// With Center set the signal is zero padded by windowSize/2 on both sides so
// frame t is centred on sample t*hopSize, giving 1 + len/hop frames for any
// non-empty signal.
type STFT struct {
	fft    *FFT
	Center bool
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a centred STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft:    NewFFT(),
		Center: true,
	}
}

// NumFrames returns the frame count Compute produces for n samples.
func (s *STFT) NumFrames(n, windowSize, hopSize int) int {
	if n <= 0 || windowSize <= 0 || hopSize <= 0 {
		return 0
	}
	if s.Center {
		n += 2 * (windowSize / 2)
	}
	if n < windowSize {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// ComputeWithWindow computes the magnitude STFT over a worker pool. Each
// frame is computed independently into its own row, so the result does not
// depend on scheduling.
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "stft",
		"function":  "ComputeWithWindow",
	})

	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	padded := signal
	if s.Center {
		pad := windowSize / 2
		padded = make([]float64, len(signal)+2*pad)
		copy(padded[pad:], signal)
	}

	numFrames := s.NumFrames(len(signal), windowSize, hopSize)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1
	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := max(s.getOptimalWorkerCount(numFrames), 1)
	jobs := make(chan int, numFrames)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		frameErr error
	)

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, padded[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { frameErr = err })
						continue
					}
				}

				fftResult := s.fft.Compute(frameBuffer)
				for i := range freqBins {
					magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	if frameErr != nil {
		logger.Error(frameErr, "Failed to window frame")
		return nil, fmt.Errorf("failed to apply window: %w", frameErr)
	}

	logger.Debug("Computed STFT", logging.Fields{
		"frames":      numFrames,
		"freq_bins":   freqBins,
		"window_size": windowSize,
		"hop_size":    hopSize,
		"workers":     numWorkers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Power returns the squared magnitude spectrogram, frame x bin.
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, r.TimeFrames)
	for t := range r.TimeFrames {
		power[t] = make([]float64, r.FreqBins)
		for f, mag := range r.Magnitude[t] {
			power[t][f] = mag * mag
		}
	}
	return power
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return min(numCPU/2, numFrames)
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
