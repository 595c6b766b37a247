package pcm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferCopiesInput(t *testing.T) {
	in := []float64{0.1, -0.2, 0.3}
	buf, err := NewBuffer(in, 1000)
	require.NoError(t, err)

	in[0] = 99
	assert.Equal(t, 0.1, buf.At(0))

	out := buf.Samples()
	out[1] = 99
	assert.Equal(t, -0.2, buf.At(1))
}

func TestNewBufferRejectsSampleRate(t *testing.T) {
	_, err := NewBuffer([]float64{0}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestEmptyBufferIsValid(t *testing.T) {
	buf, err := NewBuffer(nil, 8000)
	require.NoError(t, err)
	assert.True(t, buf.IsEmpty())
	assert.Equal(t, time.Duration(0), buf.Duration())
	assert.Equal(t, 0.0, buf.Peak())
}

func TestSilence(t *testing.T) {
	buf, err := Silence(3*time.Second, 1000)
	require.NoError(t, err)
	assert.Equal(t, 3000, buf.Len())
	assert.Equal(t, 3.0, buf.Seconds())
	assert.Equal(t, 0.0, buf.Peak())
}

func TestErrorMatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidParameter("conditioning.Gain", "gain", "> 0", -1.0))

	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrDecode)
	assert.Equal(t, ErrCodeInvalidParameter, CodeOf(err))
	assert.Contains(t, err.Error(), "param gain, want > 0")
}

func TestRetryableOnlyForPersistence(t *testing.T) {
	cause := errors.New("disk full")
	assert.True(t, IsRetryable(Persistence("archive.Append", "write blob", cause)))
	assert.False(t, IsRetryable(NewError(ErrCodeDecode, "transcode.Decode", "not a wav", nil)))
	assert.ErrorIs(t, Persistence("op", "msg", cause), cause)
}

func TestSilentBufferIsWarning(t *testing.T) {
	err := NewError(ErrCodeSilentBuffer, "conditioning.Normalize", "buffer is silent", nil)
	assert.True(t, IsWarning(err))
	assert.False(t, IsWarning(ErrNotFound))
}
