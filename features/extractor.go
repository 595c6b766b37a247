// Package features computes fixed-shape descriptor matrices from a
// conditioned recording: MFCC, chroma and spectral contrast, each laid out as
// coefficient x frame, plus their mean-vector reductions. A fourth opt-in
// kind carries scalar spectral descriptors on the same frame grid.
package features

import (
	"sync"

	"github.com/RyanBlaney/sonido-pcg/algorithms/chroma"
	"github.com/RyanBlaney/sonido-pcg/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pcg/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pcg/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"gonum.org/v1/gonum/mat"
)

// Extractor computes feature matrices under one fixed Config. It is safe for
// concurrent use; per-sample-rate kernels are built once and shared.
type Extractor struct {
	config Config
	stft   *spectral.STFT
	window *windowing.Hann

	mu      sync.Mutex
	kernels map[int]*kernels
}

type kernels struct {
	mfcc     *spectral.MFCC
	chroma   *chroma.ChromaSTFT
	contrast *spectral.SpectralContrast
	centroid *spectral.SpectralCentroid
	rolloff  *spectral.SpectralRolloff
	flatness *spectral.SpectralFlatness
	zcr      *spectral.ZeroCrossingRate
	envelope *temporal.Envelope
}

// NewExtractor validates cfg and returns an extractor bound to it.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		config:  cfg,
		stft:    spectral.NewSTFT(),
		window:  windowing.NewPeriodicHann(cfg.FrameSize),
		kernels: make(map[int]*kernels),
	}, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// Frames returns the frame count produced for n samples.
func (e *Extractor) Frames(n int) int {
	return e.stft.NumFrames(n, e.config.FrameSize, e.config.HopSize)
}

// MFCC returns the cepstral coefficient matrix, NumMFCC x frames.
func (e *Extractor) MFCC(buf *pcm.Buffer) (*mat.Dense, error) {
	return e.single(buf, MFCC)
}

// Chroma returns the chroma matrix, 12 x frames.
func (e *Extractor) Chroma(buf *pcm.Buffer) (*mat.Dense, error) {
	return e.single(buf, Chroma)
}

// Contrast returns the spectral contrast matrix, ContrastBands x frames.
func (e *Extractor) Contrast(buf *pcm.Buffer) (*mat.Dense, error) {
	return e.single(buf, Contrast)
}

func (e *Extractor) single(buf *pcm.Buffer, kind Kind) (*mat.Dense, error) {
	fs, err := e.Extract(buf, kind)
	if err != nil {
		return nil, err
	}
	return fs.Matrix(kind), nil
}

// Extract computes one STFT and derives the requested kinds from it. With no
// kinds every core kind is computed; Descriptors must be asked for.
func (e *Extractor) Extract(buf *pcm.Buffer, kinds ...Kind) (*FeatureSet, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "feature_extractor",
		"function":  "Extract",
	})

	if buf == nil || buf.IsEmpty() {
		return nil, pcm.NewError(pcm.ErrCodeEmptyBuffer, "features.Extract", "cannot extract features from an empty buffer", nil)
	}
	if len(kinds) == 0 {
		kinds = AllKinds()
	}
	for _, k := range kinds {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
	}

	k, err := e.kernelsFor(buf.SampleRate())
	if err != nil {
		return nil, err
	}

	stftResult, err := e.stft.ComputeWithWindow(buf.Samples(), e.config.FrameSize, e.config.HopSize, buf.SampleRate(), e.window)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, "features.Extract", "STFT failed", err)
	}
	power := stftResult.Power()

	fs := &FeatureSet{
		SampleRate: buf.SampleRate(),
		Frames:     stftResult.TimeFrames,
		Config:     e.config,
		matrices:   make(map[Kind]*mat.Dense, len(kinds)),
	}

	for _, kind := range kinds {
		var frames [][]float64
		switch kind {
		case MFCC:
			frames = k.mfcc.ComputeFrames(power)
		case Chroma:
			frames = k.chroma.ComputeFrames(power)
		case Contrast:
			frames = k.contrast.ComputeFrames(power)
		case Descriptors:
			frames = k.descriptors(stftResult.Magnitude, buf.Samples())
		}
		fs.matrices[kind] = toMatrix(frames, e.config.Rows(kind))
	}

	logger.Debug("Extracted features", logging.Fields{
		"kinds":       kinds,
		"frames":      fs.Frames,
		"samples":     buf.Len(),
		"sample_rate": buf.SampleRate(),
	})

	return fs, nil
}

// Spectrogram returns the dB magnitude spectrogram, frequency bin x frame,
// clamped to 80 dB below its peak.
func (e *Extractor) Spectrogram(buf *pcm.Buffer) (*mat.Dense, error) {
	if buf == nil || buf.IsEmpty() {
		return nil, pcm.NewError(pcm.ErrCodeEmptyBuffer, "features.Spectrogram", "cannot compute spectrogram of an empty buffer", nil)
	}

	stftResult, err := e.stft.ComputeWithWindow(buf.Samples(), e.config.FrameSize, e.config.HopSize, buf.SampleRate(), e.window)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, "features.Spectrogram", "STFT failed", err)
	}

	db := spectral.AmplitudeToDB(stftResult.Magnitude, 1.0, spectral.DefaultAmin, spectral.DefaultTopDB)
	return toMatrix(db, stftResult.FreqBins), nil
}

func (e *Extractor) kernelsFor(sampleRate int) (*kernels, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if k, ok := e.kernels[sampleRate]; ok {
		return k, nil
	}

	const op = "features.Extractor"
	cfg := e.config

	mfcc, err := spectral.NewMFCC(sampleRate, cfg.FrameSize, spectral.MFCCParams{
		NumCoefficients: cfg.NumMFCC,
		NumMelFilters:   cfg.NumMelFilters,
		LifterCoeff:     cfg.Lifter,
	})
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build MFCC kernel", err)
	}

	cs, err := chroma.NewChromaSTFT(sampleRate, cfg.FrameSize, cfg.TuningFreq, cfg.ChromaMinFreq)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build chroma kernel", err)
	}

	sc, err := spectral.NewSpectralContrast(sampleRate, cfg.FrameSize, cfg.ContrastBands, cfg.ContrastMinFreq)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build contrast kernel", err)
	}

	centroid, err := spectral.NewSpectralCentroid(sampleRate, cfg.FrameSize)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build centroid kernel", err)
	}
	rolloff, err := spectral.NewSpectralRolloff(sampleRate, cfg.FrameSize, spectral.DefaultRollPercent)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build rolloff kernel", err)
	}
	zcr, err := spectral.NewZeroCrossingRate(cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build zero crossing kernel", err)
	}
	envelope, err := temporal.NewEnvelope(cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeInvalidParameter, op, "cannot build envelope kernel", err)
	}

	k := &kernels{
		mfcc:     mfcc,
		chroma:   cs,
		contrast: sc,
		centroid: centroid,
		rolloff:  rolloff,
		flatness: spectral.NewSpectralFlatness(),
		zcr:      zcr,
		envelope: envelope,
	}
	e.kernels[sampleRate] = k
	return k, nil
}

// descriptors lays out one row per descriptor for each frame.
func (k *kernels) descriptors(magnitude [][]float64, signal []float64) [][]float64 {
	centroids, bandwidths := k.centroid.ComputeFrames(magnitude)
	rolloffs := k.rolloff.ComputeFrames(magnitude)
	flatness := k.flatness.ComputeFrames(magnitude)
	zcr := k.zcr.ComputeFrames(signal)
	rms := k.envelope.ComputeRMS(signal)

	out := make([][]float64, len(magnitude))
	for t := range out {
		row := make([]float64, numDescriptors)
		row[DescCentroid] = centroids[t]
		row[DescBandwidth] = bandwidths[t]
		row[DescRolloff] = rolloffs[t]
		row[DescFlatness] = flatness[t]
		if t < len(zcr) {
			row[DescZeroCrossing] = zcr[t]
		}
		if t < len(rms) {
			row[DescRMS] = rms[t]
		}
		out[t] = row
	}
	return out
}

// toMatrix transposes frame-major rows into a rows x frames matrix.
func toMatrix(frames [][]float64, rows int) *mat.Dense {
	m := mat.NewDense(rows, len(frames), nil)
	for t, frame := range frames {
		for i := 0; i < rows && i < len(frame); i++ {
			m.Set(i, t, frame[i])
		}
	}
	return m
}
