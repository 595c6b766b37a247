package chroma

import (
	"fmt"
	"math"
)

// NumBins is the number of pitch classes.
const NumBins = 12

// ChromaSTFT folds STFT power spectra into 12 pitch classes.
//
// Each FFT bin between minFreq and Nyquist is assigned to the pitch class of
// its nearest equal-tempered semitone (A4 = tuningFreq). Heart sounds are not
// harmonic, so the result is an exploratory texture descriptor rather than a
// musical one.
type ChromaSTFT struct {
	tuningFreq float64
	minFreq    float64
	mapping    []int // FFT bin -> pitch class, -1 when outside range
}

// NewChromaSTFT precomputes the bin mapping for spectra of the given FFT size.
func NewChromaSTFT(sampleRate, fftSize int, tuningFreq, minFreq float64) (*ChromaSTFT, error) {
	if sampleRate <= 0 || fftSize <= 0 {
		return nil, fmt.Errorf("invalid chroma configuration: sample_rate=%d fft=%d", sampleRate, fftSize)
	}
	if tuningFreq <= 0 {
		return nil, fmt.Errorf("invalid tuning frequency: %v", tuningFreq)
	}
	nyquist := float64(sampleRate) / 2
	if minFreq <= 0 || minFreq >= nyquist {
		return nil, fmt.Errorf("chroma min frequency %.1f Hz must be in (0, %.1f)", minFreq, nyquist)
	}

	cs := &ChromaSTFT{
		tuningFreq: tuningFreq,
		minFreq:    minFreq,
		mapping:    make([]int, fftSize/2+1),
	}

	binHz := float64(sampleRate) / float64(fftSize)
	for f := range cs.mapping {
		frequency := float64(f) * binHz
		if frequency < minFreq || frequency > nyquist {
			cs.mapping[f] = -1
			continue
		}
		cs.mapping[f] = pitchClass(cs.frequencyToMIDI(frequency))
	}

	return cs, nil
}

// pitchClass maps a MIDI note number to 0..11 with C = 0.
func pitchClass(midi float64) int {
	pc := int(math.Round(midi)) % NumBins
	if pc < 0 {
		pc += NumBins
	}
	return pc
}

// frequencyToMIDI converts frequency to MIDI note number
func (cs *ChromaSTFT) frequencyToMIDI(frequency float64) float64 {
	// MIDI note number: 69 + 12 * log2(f/A4)
	return 69.0 + 12.0*math.Log2(frequency/cs.tuningFreq)
}

// Compute folds one power spectrum into a chroma vector normalised so its
// largest bin is 1. Frames without energy stay all zero.
func (cs *ChromaSTFT) Compute(powerSpectrum []float64) []float64 {
	frame := make([]float64, NumBins)
	for f, p := range powerSpectrum {
		if f >= len(cs.mapping) {
			break
		}
		if bin := cs.mapping[f]; bin >= 0 {
			frame[bin] += p
		}
	}

	peak := 0.0
	for _, e := range frame {
		peak = math.Max(peak, e)
	}
	if peak > 1e-10 {
		for i := range frame {
			frame[i] /= peak
		}
	} else {
		clear(frame)
	}
	return frame
}

// ComputeFrames processes a frame x bin power spectrogram into frame x pitch class.
func (cs *ChromaSTFT) ComputeFrames(power [][]float64) [][]float64 {
	chromagram := make([][]float64, len(power))
	for t, spectrum := range power {
		chromagram[t] = cs.Compute(spectrum)
	}
	return chromagram
}

// Labels returns the chroma bin labels
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// Tuning returns the A4 reference frequency.
func (cs *ChromaSTFT) Tuning() float64 {
	return cs.tuningFreq
}
