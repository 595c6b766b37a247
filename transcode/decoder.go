package transcode

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF format tag for integer PCM.
const wavFormatPCM = 1

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate resamples the decoded signal when non-zero and
	// different from the native rate. Zero keeps the native rate.
	TargetSampleRate int    `json:"target_sample_rate" yaml:"target_sample_rate" mapstructure:"target_sample_rate"`
	ResampleQuality  string `json:"resample_quality" yaml:"resample_quality" mapstructure:"resample_quality"` // "quick", "low", "medium", "high", "very_high"
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		ResampleQuality:  "high",
	}
}

// Validate checks the decoder configuration
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate < 0 {
		return pcm.InvalidParameter("transcode.DecoderConfig", "target_sample_rate", ">= 0", c.TargetSampleRate)
	}
	if _, ok := qualityPresets[c.ResampleQuality]; !ok && c.ResampleQuality != "" {
		return pcm.InvalidParameter("transcode.DecoderConfig", "resample_quality",
			"one of quick, low, medium, high, very_high", c.ResampleQuality)
	}
	return nil
}

// Decoder turns WAV bytes into a mono pcm.Buffer. It holds no state between
// calls and is safe for concurrent use.
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// Config returns the decoder configuration
func (d *Decoder) Config() DecoderConfig {
	return *d.config
}

// DecodeFile decodes a WAV file from disk
func (d *Decoder) DecodeFile(filename string) (*pcm.Buffer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeDecode, "transcode.DecodeFile", "failed to open audio file", err)
	}
	defer f.Close()

	return d.decode(f, filename)
}

// Decode decodes audio from a byte slice
func (d *Decoder) Decode(data []byte) (*pcm.Buffer, error) {
	if len(data) == 0 {
		return nil, pcm.NewError(pcm.ErrCodeEmptyInput, "transcode.Decode", "empty audio data", nil)
	}
	return d.decode(bytes.NewReader(data), "")
}

// DecodeReader decodes audio from an io.Reader. Readers that cannot seek are
// read fully into memory first.
func (d *Decoder) DecodeReader(reader io.Reader) (*pcm.Buffer, error) {
	if rs, ok := reader.(io.ReadSeeker); ok {
		return d.decode(rs, "")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, pcm.NewError(pcm.ErrCodeDecode, "transcode.DecodeReader", "failed to read audio data", err)
	}
	return d.Decode(data)
}

func (d *Decoder) decode(r io.ReadSeeker, source string) (*pcm.Buffer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "decode",
	})
	if source != "" {
		logger = logger.WithFields(logging.Fields{"filename": source})
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		err := pcm.NewError(pcm.ErrCodeDecode, "transcode.Decode", "not a valid WAV stream", dec.Err())
		logger.Error(err, "Failed to read WAV header")
		return nil, err
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, pcm.NewError(pcm.ErrCodeDecode, "transcode.Decode",
			fmt.Sprintf("unsupported WAV format tag %d, want integer PCM", dec.WavAudioFormat), nil)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		err = pcm.NewError(pcm.ErrCodeDecode, "transcode.Decode", "failed to read PCM data", err)
		logger.Error(err, "Failed to decode WAV body")
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, pcm.NewError(pcm.ErrCodeDecode, "transcode.Decode", "WAV header carries no usable format", nil)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": sampleRate,
		"input_channels":    channels,
		"input_bit_depth":   bitDepth,
		"input_samples":     len(buf.Data),
	})

	samples := downmix(buf.Data, channels, bitDepth)
	if len(samples) == 0 {
		return nil, pcm.NewError(pcm.ErrCodeEmptyInput, "transcode.Decode", "decoded zero samples", nil)
	}

	target := d.config.TargetSampleRate
	if target > 0 && target != sampleRate {
		resampled, err := resample(samples, sampleRate, target, d.config.ResampleQuality)
		if err != nil {
			err = pcm.NewError(pcm.ErrCodeDecode, "transcode.Decode", "resampling failed", err)
			logger.Error(err, "Failed to resample", logging.Fields{
				"from": sampleRate,
				"to":   target,
			})
			return nil, err
		}
		logger.Debug("Resampled audio", logging.Fields{
			"from":            sampleRate,
			"to":              target,
			"samples_before":  len(samples),
			"samples_after":   len(resampled),
			"resample_preset": d.config.ResampleQuality,
		})
		samples = resampled
		sampleRate = target
	}

	if len(samples) == 0 {
		return nil, pcm.NewError(pcm.ErrCodeEmptyInput, "transcode.Decode", "resampling produced zero samples", nil)
	}

	return pcm.Wrap(samples, sampleRate), nil
}

// downmix averages interleaved integer frames into mono floats in [-1, 1].
// 8-bit WAV is unsigned; every other depth is signed.
func downmix(data []int, channels, bitDepth int) []float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = scale
	}

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(data[i*channels+c]) - offset) / scale
		}
		out[i] = clamp(sum / float64(channels))
	}
	return out
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
