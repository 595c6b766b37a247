package transcode

import (
	"errors"
	"io"
	"math"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Bit depths used by the encoder
const (
	PlaybackBitDepth = 16
	ArchiveBitDepth  = 24
)

// Encoder writes mono pcm.Buffers as integer PCM WAV.
type Encoder struct {
	bitDepth int
}

// NewEncoder creates an encoder for 16 or 24 bit output.
func NewEncoder(bitDepth int) (*Encoder, error) {
	if bitDepth != PlaybackBitDepth && bitDepth != ArchiveBitDepth {
		return nil, pcm.InvalidParameter("transcode.NewEncoder", "bit_depth", "16 or 24", bitDepth)
	}
	return &Encoder{bitDepth: bitDepth}, nil
}

// BitDepth returns the output sample width.
func (e *Encoder) BitDepth() int {
	return e.bitDepth
}

// Encode returns the buffer as a complete WAV file.
func (e *Encoder) Encode(buf *pcm.Buffer) ([]byte, error) {
	w := &memWriteSeeker{}
	if err := e.EncodeTo(w, buf); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo writes the buffer as WAV to w. Samples outside [-1, 1] are clipped.
func (e *Encoder) EncodeTo(w io.WriteSeeker, buf *pcm.Buffer) error {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_encoder",
		"function":  "EncodeTo",
	})

	if buf == nil {
		return pcm.NewError(pcm.ErrCodeEmptyBuffer, "transcode.Encode", "nil buffer", nil)
	}

	scale := float64(int64(1)<<(e.bitDepth-1)) - 1
	data := make([]int, buf.Len())
	for i := range data {
		data[i] = int(math.Round(clamp(buf.At(i)) * scale))
	}

	enc := wav.NewEncoder(w, buf.SampleRate(), e.bitDepth, 1, wavFormatPCM)
	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: buf.SampleRate()},
		Data:           data,
		SourceBitDepth: e.bitDepth,
	}
	if err := enc.Write(intBuf); err != nil {
		logger.Error(err, "Failed to write PCM data")
		return pcm.NewError(pcm.ErrCodeEncode, "transcode.Encode", "failed to write PCM data", err)
	}
	if err := enc.Close(); err != nil {
		logger.Error(err, "Failed to finalise WAV header")
		return pcm.NewError(pcm.ErrCodeEncode, "transcode.Encode", "failed to finalise WAV header", err)
	}

	logger.Debug("Encoded WAV", logging.Fields{
		"samples":     buf.Len(),
		"sample_rate": buf.SampleRate(),
		"bit_depth":   e.bitDepth,
	})
	return nil
}

// memWriteSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes on Close.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, max(end, 2*cap(m.buf)))
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memWriteSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memWriteSeeker: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}

func (m *memWriteSeeker) Bytes() []byte {
	return m.buf
}
