package conditioning

import (
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func mustBuffer(t *testing.T, samples []float64, sr int) *pcm.Buffer {
	t.Helper()
	buf, err := pcm.NewBuffer(samples, sr)
	require.NoError(t, err)
	return buf
}

func TestGainRoundTrip(t *testing.T) {
	samples := []float64{0.1, -0.25, 0.5, -0.75, 0.0, 0.333}
	buf := mustBuffer(t, samples, 1000)

	for _, g := range []float64{1e-6, 0.1, 0.7, 1, 2, 5, 1234.5} {
		scaled, err := Gain(buf, g)
		require.NoError(t, err)
		back, err := Gain(scaled, 1/g)
		require.NoError(t, err)

		require.Equal(t, buf.Len(), back.Len())
		for i, s := range samples {
			assert.InDelta(t, s, back.At(i), 1e-12, "gain %v sample %d", g, i)
		}
	}
}

func TestGainRejectsNonPositive(t *testing.T) {
	buf := mustBuffer(t, []float64{0.5}, 1000)
	for _, g := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Gain(buf, g)
		require.ErrorIs(t, err, pcm.ErrInvalidParameter)

		var pe *pcm.Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "gain", pe.Param)
		assert.Equal(t, "> 0", pe.Bound)
	}
}

func TestGainDoesNotMutateInput(t *testing.T) {
	buf := mustBuffer(t, []float64{0.5, -0.5}, 1000)
	_, err := Gain(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, buf.Samples())
}

func TestGate(t *testing.T) {
	buf := mustBuffer(t, []float64{0.005, -0.009, 0.01, -0.2, 0}, 1000)

	out, err := Gate(buf, 0.01)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.01, -0.2, 0}, out.Samples())

	same, err := Gate(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, buf.Samples(), same.Samples())

	_, err = Gate(buf, -0.1)
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)
}

func TestNormalize(t *testing.T) {
	buf := mustBuffer(t, []float64{0.1, -0.4, 0.2}, 1000)
	out, err := Normalize(buf)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out.Peak(), 1e-12)
	assert.InDelta(t, 0.25, out.At(0), 1e-12)
	assert.InDelta(t, -1.0, out.At(1), 1e-12)
}

func TestNormalizeSilentBuffer(t *testing.T) {
	buf, err := pcm.Silence(time.Second, 100)
	require.NoError(t, err)

	out, err := Normalize(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, pcm.ErrSilentBuffer)
	assert.True(t, pcm.IsWarning(err))
	require.NotNil(t, out)
	assert.Equal(t, buf.Samples(), out.Samples())
	for _, s := range out.Samples() {
		assert.False(t, math.IsNaN(s))
	}
}

func TestTrimClipsBounds(t *testing.T) {
	samples := make([]float64, 1000)
	for i := range samples {
		samples[i] = float64(i)
	}
	buf := mustBuffer(t, samples, 100) // 10 s

	tests := []struct {
		name       string
		start, end float64
		wantLen    int
		wantFirst  float64
	}{
		{"inside", 1, 2, 100, 100},
		{"end beyond buffer", 5, 60, 500, 500},
		{"negative start", -3, 1, 100, 0},
		{"open end", 9, math.Inf(1), 100, 900},
		{"end zero clips to empty", 0, 0, 0, 0},
		{"negative end clips to empty", 0, -1, 0, 0},
		{"start beyond buffer", 20, 30, 0, 0},
		{"inverted window", 5, 2, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Trim(buf, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, out.Len())
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, out.At(0))
			}
		})
	}

	_, err := Trim(buf, math.NaN(), 1)
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)
}

func TestTrimDuration(t *testing.T) {
	buf := mustBuffer(t, make([]float64, 1000), 100)

	out, err := TrimDuration(buf, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 300, out.Len())

	out, err = TrimDuration(buf, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, 200, out.Len())

	out, err = TrimDuration(buf, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 600, out.Len())
}

func TestApplySilentScenario(t *testing.T) {
	buf, err := pcm.Silence(3*time.Second, 1000)
	require.NoError(t, err)

	res, err := Apply(buf, Params{Gain: 2.0, Threshold: 0.01, Normalize: true})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], pcm.ErrSilentBuffer)

	assert.Equal(t, 3000, res.Buffer.Len())
	for _, s := range res.Buffer.Samples() {
		assert.Equal(t, 0.0, s)
	}
}

func TestApplyOrder(t *testing.T) {
	// gain lifts 0.004 above the gate, then normalisation rescales
	buf := mustBuffer(t, []float64{0.004, 0.001, -0.002, 0.5}, 2)

	res, err := Apply(buf, Params{Gain: 3, Threshold: 0.01, Normalize: true, Start: 0, End: seconds(1)})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Equal(t, 2, res.Buffer.Len())
	assert.InDelta(t, 0.008, res.Buffer.At(0), 1e-12)
	assert.Equal(t, 0.0, res.Buffer.At(1))
}

func TestApplyRejectsBadParams(t *testing.T) {
	buf := mustBuffer(t, []float64{0.5}, 10)
	_, err := Apply(buf, Params{Gain: 0})
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)

	_, err = Apply(buf, Params{Gain: 1, Threshold: -1})
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.0, p.Gain)
	assert.Equal(t, 0.01, p.Threshold)
	assert.True(t, p.Normalize)
	assert.Nil(t, p.End)
}

func seconds(v float64) *float64 { return &v }

func TestApplyWindow(t *testing.T) {
	buf := mustBuffer(t, []float64{0.5, 0.5, 0.5, 0.5}, 2)
	p := Params{Gain: 1, Start: 1}

	res, err := Apply(buf, p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Buffer.Len(), "unset end keeps the rest")

	p.End = seconds(-1)
	res, err = Apply(buf, p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Buffer.Len(), "out-of-range end is clipped")
}
