// Package pipeline wires the analysis stages together: signal loader,
// conditioning, band-limiting filter, feature extraction and the optional
// classifier.
package pipeline

import (
	"context"
	"time"

	"github.com/RyanBlaney/sonido-pcg/algorithms/filters"
	"github.com/RyanBlaney/sonido-pcg/archive"
	"github.com/RyanBlaney/sonido-pcg/classify"
	"github.com/RyanBlaney/sonido-pcg/conditioning"
	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"gonum.org/v1/gonum/mat"
)

// Request holds the per-analysis parameters.
type Request struct {
	Conditioning conditioning.Params `json:"conditioning" yaml:"conditioning" mapstructure:"conditioning"`
	Filter       filters.Spec        `json:"filter" yaml:"filter" mapstructure:"filter"`

	// Kinds limits feature extraction. Empty means every kind; the
	// classifier only runs when all kinds are present.
	Kinds []features.Kind `json:"kinds,omitempty" yaml:"kinds,omitempty" mapstructure:"kinds"`

	// Spectrogram also computes the dB spectrogram of the denoised signal.
	Spectrogram bool `json:"spectrogram" yaml:"spectrogram" mapstructure:"spectrogram"`
}

// DefaultRequest returns the default conditioning chain and the 25-400 Hz
// order 4 heart-sound band.
func DefaultRequest() Request {
	return Request{
		Conditioning: conditioning.DefaultParams(),
		Filter:       filters.DefaultSpec(),
	}
}

// Analysis is the result of one pass through the pipeline. Each stage's
// output is kept so callers can display or re-encode any of them.
type Analysis struct {
	Raw         *pcm.Buffer
	Conditioned *pcm.Buffer
	Denoised    *pcm.Buffer
	Features    *features.FeatureSet
	Vector      []float64
	Spectrogram *mat.Dense

	Label     classify.Label
	Diagnosed bool

	// Warnings are non-fatal conditions such as a silent buffer skipping
	// normalisation.
	Warnings []error
	Elapsed  time.Duration
}

// Analyzer runs analyses. It holds no per-request state and is safe for
// concurrent use.
type Analyzer struct {
	decoder    *transcode.Decoder
	extractor  *features.Extractor
	classifier classify.Classifier
	playback   *transcode.Encoder
}

// Options configures an Analyzer. Zero values select defaults; a nil
// Classifier skips diagnosis.
type Options struct {
	Decoder    *transcode.DecoderConfig
	Features   *features.Config
	Classifier classify.Classifier
}

// NewAnalyzer validates the options and builds the stages.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	decCfg := opts.Decoder
	if decCfg == nil {
		decCfg = transcode.DefaultDecoderConfig()
	}
	if err := decCfg.Validate(); err != nil {
		return nil, err
	}

	featCfg := features.DefaultConfig()
	if opts.Features != nil {
		featCfg = *opts.Features
	}
	extractor, err := features.NewExtractor(featCfg)
	if err != nil {
		return nil, err
	}

	playback, err := transcode.NewEncoder(transcode.PlaybackBitDepth)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		decoder:    transcode.NewDecoder(decCfg),
		extractor:  extractor,
		classifier: opts.Classifier,
		playback:   playback,
	}, nil
}

// Extractor returns the feature extractor, for callers that need kernels
// outside a full analysis.
func (a *Analyzer) Extractor() *features.Extractor {
	return a.extractor
}

// Analyze decodes data and runs the full pipeline on it.
func (a *Analyzer) Analyze(data []byte, req Request) (*Analysis, error) {
	buf, err := a.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeBuffer(buf, req)
}

// AnalyzeFile decodes the WAV file at path and analyses it.
func (a *Analyzer) AnalyzeFile(path string, req Request) (*Analysis, error) {
	buf, err := a.decoder.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeBuffer(buf, req)
}

// AnalyzeBuffer runs conditioning, filtering and feature extraction on buf.
// The filter spec is validated before any stage touches the samples.
func (a *Analyzer) AnalyzeBuffer(buf *pcm.Buffer, req Request) (*Analysis, error) {
	const op = "pipeline.Analyze"
	logger := logging.WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "AnalyzeBuffer",
	})
	start := time.Now()

	if buf == nil || buf.IsEmpty() {
		return nil, pcm.NewError(pcm.ErrCodeEmptyBuffer, op, "nothing to analyse", nil)
	}
	if err := req.Filter.Validate(buf.SampleRate()); err != nil {
		return nil, err
	}

	cond, err := conditioning.Apply(buf, req.Conditioning)
	if err != nil {
		return nil, err
	}
	if cond.Buffer.IsEmpty() {
		return nil, pcm.NewError(pcm.ErrCodeEmptyBuffer, op, "trim window selected no samples", nil)
	}

	denoised, err := filters.BandLimit(cond.Buffer, req.Filter)
	if err != nil {
		return nil, err
	}

	fs, err := a.extractor.Extract(denoised, req.Kinds...)
	if err != nil {
		return nil, err
	}

	an := &Analysis{
		Raw:         buf,
		Conditioned: cond.Buffer,
		Denoised:    denoised,
		Features:    fs,
		Warnings:    cond.Warnings,
	}

	if fs.HasCore() {
		vec, err := fs.Vector()
		if err != nil {
			return nil, err
		}
		an.Vector = vec
		an.Label, an.Diagnosed = classify.Diagnose(a.classifier, vec)
	}

	if req.Spectrogram {
		spec, err := a.extractor.Spectrogram(denoised)
		if err != nil {
			return nil, err
		}
		an.Spectrogram = spec
	}

	an.Elapsed = time.Since(start)
	logger.Info("Analysis complete", logging.Fields{
		"samples":     buf.Len(),
		"sample_rate": buf.SampleRate(),
		"frames":      fs.Frames,
		"label":       string(an.Label),
		"diagnosed":   an.Diagnosed,
		"warnings":    len(an.Warnings),
		"elapsed_ms":  an.Elapsed.Milliseconds(),
	})
	return an, nil
}

// PlaybackWAV encodes the denoised signal as 16-bit WAV.
func (a *Analyzer) PlaybackWAV(an *Analysis) ([]byte, error) {
	if an == nil {
		return nil, pcm.NewError(pcm.ErrCodeEmptyBuffer, "pipeline.PlaybackWAV", "no analysis", nil)
	}
	return a.playback.Encode(an.Denoised)
}

// Save archives the denoised signal together with the analysis label and
// feature means. The recording as loaded is kept alongside as the case's
// source blob.
func (a *Analyzer) Save(ctx context.Context, arc *archive.Archive, meta archive.Metadata, an *Analysis) (archive.PatientCase, error) {
	if an == nil {
		return archive.PatientCase{}, pcm.NewError(pcm.ErrCodeEmptyBuffer, "pipeline.Save", "no analysis", nil)
	}
	derived := archive.Derived{Features: an.Features.Snapshot(), Source: an.Raw}
	if an.Diagnosed {
		derived.Label = an.Label
	}
	return arc.AppendDerived(ctx, meta, an.Denoised, derived)
}

// Reanalyze loads a stored case's primary payload and runs it through the
// pipeline again, entering at the loader stage like a fresh upload.
func (a *Analyzer) Reanalyze(ctx context.Context, arc *archive.Archive, id string, req Request) (archive.PatientCase, *Analysis, error) {
	c, buf, err := arc.Load(ctx, id)
	if err != nil {
		return archive.PatientCase{}, nil, err
	}
	an, err := a.AnalyzeBuffer(buf, req)
	if err != nil {
		return c, nil, err
	}
	return c, an, nil
}
