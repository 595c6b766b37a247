package transcode

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := sine(50, 2000, 4000, 0.8)
	buf, err := pcm.NewBuffer(samples, 2000)
	require.NoError(t, err)

	tests := []struct {
		bitDepth  int
		tolerance float64
	}{
		{PlaybackBitDepth, 1e-4},
		{ArchiveBitDepth, 1e-6},
	}

	for _, tt := range tests {
		enc, err := NewEncoder(tt.bitDepth)
		require.NoError(t, err)

		data, err := enc.Encode(buf)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(data[:4]))

		decoded, err := NewDecoder(nil).Decode(data)
		require.NoError(t, err)
		require.Equal(t, buf.Len(), decoded.Len())
		assert.Equal(t, 2000, decoded.SampleRate())
		for i := range samples {
			assert.InDelta(t, samples[i], decoded.At(i), tt.tolerance, "bit depth %d sample %d", tt.bitDepth, i)
		}
	}
}

func TestEncoderClipsOutOfRange(t *testing.T) {
	buf, err := pcm.NewBuffer([]float64{2.5, -3, 0.5}, 1000)
	require.NoError(t, err)

	enc, err := NewEncoder(PlaybackBitDepth)
	require.NoError(t, err)
	data, err := enc.Encode(buf)
	require.NoError(t, err)

	decoded, err := NewDecoder(nil).Decode(data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, decoded.At(0), 1e-4)
	assert.InDelta(t, -1.0, decoded.At(1), 1e-4)
	assert.InDelta(t, 0.5, decoded.At(2), 1e-4)
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error)      { return 0, errors.New("disk full") }
func (brokenSink) Seek(int64, int) (int64, error) { return 0, nil }

func TestEncodeFailureIsNotDecodeError(t *testing.T) {
	buf, err := pcm.NewBuffer([]float64{0.1, 0.2}, 1000)
	require.NoError(t, err)
	enc, err := NewEncoder(ArchiveBitDepth)
	require.NoError(t, err)

	err = enc.EncodeTo(brokenSink{}, buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, pcm.ErrEncode)
	assert.NotErrorIs(t, err, pcm.ErrDecode)
}

func TestNewEncoderRejectsBitDepth(t *testing.T) {
	_, err := NewEncoder(12)
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)
}

func TestDecodeStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 1000, 16, 2, 1)
	// left +16384, right 0 averages to 0.25
	data := make([]int, 0, 200)
	for range 100 {
		data = append(data, 16384, 0)
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 1000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	buf, err := NewDecoder(nil).DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 100, buf.Len())
	assert.Equal(t, 1000, buf.SampleRate())
	for i := range buf.Len() {
		assert.InDelta(t, 0.25, buf.At(i), 1e-9)
	}
}

func TestDecodeFailures(t *testing.T) {
	d := NewDecoder(nil)

	_, err := d.Decode(nil)
	assert.ErrorIs(t, err, pcm.ErrEmptyInput)

	_, err = d.Decode([]byte("definitely not a riff container, just text"))
	assert.ErrorIs(t, err, pcm.ErrDecode)
	var pe *pcm.Error
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.Retryable())

	_, err = d.DecodeFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, pcm.ErrDecode)
}

func TestDecodeZeroSamples(t *testing.T) {
	empty, err := pcm.NewBuffer(nil, 1000)
	require.NoError(t, err)
	enc, err := NewEncoder(PlaybackBitDepth)
	require.NoError(t, err)
	data, err := enc.Encode(empty)
	require.NoError(t, err)

	_, err = NewDecoder(nil).Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcm.ErrEmptyInput) || errors.Is(err, pcm.ErrDecode))
}

func TestDecodeResamplesToTarget(t *testing.T) {
	buf, err := pcm.NewBuffer(sine(100, 8000, 8000, 0.5), 8000)
	require.NoError(t, err)
	enc, err := NewEncoder(PlaybackBitDepth)
	require.NoError(t, err)
	data, err := enc.Encode(buf)
	require.NoError(t, err)

	d := NewDecoder(&DecoderConfig{TargetSampleRate: 4000, ResampleQuality: "medium"})
	out, err := d.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 4000, out.SampleRate())
	assert.InDelta(t, 4000, out.Len(), 200)
	assert.Greater(t, out.Peak(), 0.3)
}

func TestDecodeKeepsNativeRate(t *testing.T) {
	buf, err := pcm.NewBuffer(sine(100, 4000, 400, 0.5), 4000)
	require.NoError(t, err)
	enc, err := NewEncoder(PlaybackBitDepth)
	require.NoError(t, err)
	data, err := enc.Encode(buf)
	require.NoError(t, err)

	out, err := NewDecoder(&DecoderConfig{TargetSampleRate: 4000}).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 400, out.Len())
}

func TestDecoderConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultDecoderConfig().Validate())
	assert.ErrorIs(t, (&DecoderConfig{TargetSampleRate: -1}).Validate(), pcm.ErrInvalidParameter)
	assert.ErrorIs(t, (&DecoderConfig{ResampleQuality: "ultra"}).Validate(), pcm.ErrInvalidParameter)
}
