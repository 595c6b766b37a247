package filters

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func tone(t *testing.T, freq float64, sampleRate, n int) *pcm.Buffer {
	t.Helper()
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	buf, err := pcm.NewBuffer(samples, sampleRate)
	require.NoError(t, err)
	return buf
}

// rms over the middle half, away from edge effects
func middleRMS(buf *pcm.Buffer) float64 {
	from, to := buf.Len()/4, 3*buf.Len()/4
	sum := 0.0
	for i := from; i < to; i++ {
		sum += buf.At(i) * buf.At(i)
	}
	return math.Sqrt(sum / float64(to-from))
}

func attenuationDB(t *testing.T, spec Spec, freq float64, sampleRate int) float64 {
	t.Helper()
	in := tone(t, freq, sampleRate, 2*sampleRate)
	out, err := BandLimit(in, spec)
	require.NoError(t, err)
	return -20 * math.Log10(middleRMS(out)/middleRMS(in))
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		sr    int
		param string
	}{
		{"inverted", Spec{Low: 500, High: 100, Order: 4}, 4000, "low"},
		{"inverted low rate", Spec{Low: 500, High: 100, Order: 4}, 100, "low"},
		{"zero low", Spec{Low: 0, High: 100, Order: 4}, 4000, "low"},
		{"negative low", Spec{Low: -5, High: 100, Order: 4}, 4000, "low"},
		{"high at nyquist", Spec{Low: 20, High: 500, Order: 4}, 1000, "high"},
		{"high above nyquist", Spec{Low: 20, High: 800, Order: 4}, 1000, "high"},
		{"nan high", Spec{Low: 20, High: math.NaN(), Order: 4}, 1000, "high"},
		{"zero order", Spec{Low: 20, High: 400, Order: 0}, 4000, "order"},
		{"order too high", Spec{Low: 20, High: 400, Order: MaxOrder + 1}, 4000, "order"},
		{"bad sample rate", Spec{Low: 20, High: 400, Order: 4}, 0, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate(tt.sr)
			require.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)
			var pe *pcm.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.param, pe.Param)
			assert.NotEmpty(t, pe.Bound)
		})
	}

	assert.NoError(t, DefaultSpec().Validate(4000))
}

func TestInvertedSpecFailsBeforeProcessing(t *testing.T) {
	// a buffer far too short to filter: the filter spec error must win
	buf, err := pcm.NewBuffer([]float64{0.1, 0.2}, 8000)
	require.NoError(t, err)

	_, err = BandLimit(buf, Spec{Low: 500, High: 100, Order: 4})
	require.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)
	var pe *pcm.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "low", pe.Param)
}

func TestDesignSections(t *testing.T) {
	for order := 1; order <= MaxOrder; order++ {
		bw, err := DesignButterworth(Spec{Low: 25, High: 400, Order: order}, 4000)
		require.NoError(t, err, "order %d", order)
		assert.Len(t, bw.Sections(), order)
		assert.Equal(t, 3*(2*order+1), bw.PadLength())
	}
}

func TestResponseAtCutoffs(t *testing.T) {
	for _, order := range []int{1, 2, 4, 6} {
		bw, err := DesignButterworth(Spec{Low: 25, High: 400, Order: order}, 4000)
		require.NoError(t, err)

		lowMag, _ := bw.Response(25)
		highMag, _ := bw.Response(400)
		assert.InDelta(t, 1/math.Sqrt2, lowMag, 1e-6, "order %d low cutoff", order)
		assert.InDelta(t, 1/math.Sqrt2, highMag, 1e-6, "order %d high cutoff", order)

		dc, _ := bw.Response(0)
		assert.InDelta(t, 0, dc, 1e-9)
	}
}

func TestFiltFiltPreservesLength(t *testing.T) {
	specs := []Spec{
		DefaultSpec(),
		{Low: 20, High: 500, Order: 2},
		{Low: 50, High: 150, Order: 6},
		{Low: 10, High: 900, Order: 1},
	}
	for _, spec := range specs {
		for _, n := range []int{100, 1001, 4096} {
			bw, err := DesignButterworth(spec, 2000)
			require.NoError(t, err)
			if n <= bw.PadLength() {
				continue
			}
			out, err := bw.FiltFilt(tone(t, 100, 2000, n))
			require.NoError(t, err)
			assert.Equal(t, n, out.Len(), "spec %+v n %d", spec, n)
			assert.Equal(t, 2000, out.SampleRate())
		}
	}
}

func TestPassbandAndStopband(t *testing.T) {
	spec := DefaultSpec()
	sr := 4000

	for _, f := range []float64{60, 100, 200} {
		att := attenuationDB(t, spec, f, sr)
		assert.Less(t, math.Abs(att), 1.0, "passband %v Hz attenuated %.3f dB", f, att)
	}

	for _, f := range []float64{1200, 1500} {
		att := attenuationDB(t, spec, f, sr)
		assert.Greater(t, att, 20.0, "stopband %v Hz attenuated only %.3f dB", f, att)
	}
}

func TestFiltFiltZeroPhase(t *testing.T) {
	sr := 2000
	in := tone(t, 100, sr, 2000)
	out, err := BandLimit(in, DefaultSpec())
	require.NoError(t, err)

	// zero phase: output stays aligned with the input in the interior
	for i := 500; i < 1500; i++ {
		assert.InDelta(t, in.At(i), out.At(i), 0.02, "sample %d", i)
	}
}

func TestFiltFiltTooShort(t *testing.T) {
	bw, err := DesignButterworth(DefaultSpec(), 4000)
	require.NoError(t, err)
	padlen := bw.PadLength()

	_, err = bw.FiltFilt(tone(t, 100, 4000, padlen))
	require.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)
	assert.Contains(t, err.Error(), "too short")

	_, err = bw.FiltFilt(tone(t, 100, 4000, 0))
	assert.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)

	out, err := bw.FiltFilt(tone(t, 100, 4000, padlen+1))
	require.NoError(t, err)
	assert.Equal(t, padlen+1, out.Len())
}

func TestFiltFiltSampleRateMismatch(t *testing.T) {
	bw, err := DesignButterworth(DefaultSpec(), 4000)
	require.NoError(t, err)
	_, err = bw.FiltFilt(tone(t, 100, 8000, 1000))
	assert.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)
}

func TestFiltFiltDoesNotMutateInput(t *testing.T) {
	in := tone(t, 100, 4000, 500)
	before := in.Samples()
	_, err := BandLimit(in, DefaultSpec())
	require.NoError(t, err)
	assert.Equal(t, before, in.Samples())
}

func TestBiquadSteadyState(t *testing.T) {
	// low-pass style section with non-zero DC gain
	bq := Biquad{B0: 0.2, B1: 0.4, B2: 0.2, A1: -0.5, A2: 0.3}
	z0, z1 := bq.SteadyState()
	bq.SetState(z0, z1)

	want := bq.DCGain()
	for range 20 {
		assert.InDelta(t, want, bq.Process(1), 1e-12)
	}
}
