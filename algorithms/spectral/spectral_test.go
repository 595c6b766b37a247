package spectral

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-pcg/algorithms/windowing"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestSTFTFrameCount(t *testing.T) {
	s := NewSTFT()
	win := windowing.NewPeriodicHann(256)

	for _, n := range []int{1, 63, 64, 1000, 4096} {
		res, err := s.ComputeWithWindow(sine(50, 1000, n), 256, 64, 1000, win)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, 1+n/64, res.TimeFrames, "n=%d", n)
		assert.Equal(t, 129, res.FreqBins)
		assert.Len(t, res.Magnitude, res.TimeFrames)
	}
}

func TestSTFTPeakBin(t *testing.T) {
	sr, size := 1000, 250
	res, err := NewSTFT().ComputeWithWindow(sine(100, sr, 2000), size, 50, sr, windowing.NewPeriodicHann(size))
	require.NoError(t, err)

	mid := res.Magnitude[res.TimeFrames/2]
	peak := 0
	for i, m := range mid {
		if m > mid[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 100.0, float64(peak)*res.FreqResolution, res.FreqResolution)
}

func TestSTFTDeterministic(t *testing.T) {
	signal := sine(37, 2000, 5000)
	win := windowing.NewPeriodicHann(512)

	a, err := NewSTFT().ComputeWithWindow(signal, 512, 128, 2000, win)
	require.NoError(t, err)
	b, err := NewSTFT().ComputeWithWindow(signal, 512, 128, 2000, win)
	require.NoError(t, err)
	assert.Equal(t, a.Magnitude, b.Magnitude)
}

func TestSTFTErrors(t *testing.T) {
	s := NewSTFT()
	_, err := s.ComputeWithWindow(nil, 256, 64, 1000, nil)
	assert.Error(t, err)
	_, err = s.ComputeWithWindow([]float64{1}, 0, 64, 1000, nil)
	assert.Error(t, err)
	_, err = s.ComputeWithWindow([]float64{1}, 256, 0, 1000, nil)
	assert.Error(t, err)
	_, err = s.ComputeWithWindow(make([]float64, 300), 256, 64, 1000, windowing.NewPeriodicHann(128))
	assert.Error(t, err)
}

func TestMelConversionRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 20, 100, 440, 1000, 8000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-9)
	}
	assert.InDelta(t, 1000.0, HzToMel(1000), 0.5)
}

func TestMelFilterBank(t *testing.T) {
	bank, err := NewMelFilterBank(40, 2048, 1000, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 40, bank.NumFilters())

	for i, w := range bank.Weights() {
		sum := 0.0
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			sum += v
		}
		assert.Greater(t, sum, 0.0, "filter %d is empty", i)
	}

	_, err = NewMelFilterBank(40, 2048, 1000, 0, 800)
	assert.Error(t, err)
}

func TestMFCCShapeAndSilence(t *testing.T) {
	m, err := NewMFCC(1000, 2048, MFCCParams{NumCoefficients: 13, NumMelFilters: 40})
	require.NoError(t, err)

	silent := make([]float64, 1025)
	coeffs := m.Compute(silent)
	require.Len(t, coeffs, 13)

	// constant log energy lands entirely in c0
	assert.InDelta(t, math.Sqrt(40)*math.Log(logFloor), coeffs[0], 1e-9)
	for _, c := range coeffs[1:] {
		assert.InDelta(t, 0, c, 1e-9)
	}

	frames := m.ComputeFrames([][]float64{silent, silent, silent})
	assert.Len(t, frames, 3)

	_, err = NewMFCC(1000, 2048, MFCCParams{NumCoefficients: 20, NumMelFilters: 10})
	assert.Error(t, err)
}

func TestMFCCLifter(t *testing.T) {
	plain, err := NewMFCC(1000, 512, MFCCParams{NumCoefficients: 13, NumMelFilters: 26})
	require.NoError(t, err)
	liftered, err := NewMFCC(1000, 512, MFCCParams{NumCoefficients: 13, NumMelFilters: 26, LifterCoeff: 22})
	require.NoError(t, err)

	spectrum := make([]float64, 257)
	for i := range spectrum {
		spectrum[i] = 1 / float64(i+1)
	}
	a, b := plain.Compute(spectrum), liftered.Compute(spectrum)
	assert.InDelta(t, a[0], b[0], 1e-12)
	assert.NotEqual(t, a[1], b[1])
}

func TestSpectralContrast(t *testing.T) {
	sc, err := NewSpectralContrast(1000, 2048, 6, 20)
	require.NoError(t, err)
	assert.Equal(t, 6, sc.NumBands())

	freqs := sc.BandFrequencies()
	require.Len(t, freqs, 7)
	for i := 1; i < len(freqs); i++ {
		assert.Greater(t, freqs[i], freqs[i-1])
	}

	flat := make([]float64, 1025)
	for i := range flat {
		flat[i] = 1
	}
	for _, c := range sc.Compute(flat) {
		assert.InDelta(t, 0, c, 1e-9)
	}

	peaky := make([]float64, 1025)
	for i := range peaky {
		peaky[i] = 1e-4
		if i%10 == 0 {
			peaky[i] = 1
		}
	}
	for _, c := range sc.Compute(peaky) {
		assert.Greater(t, c, 10.0)
	}

	_, err = NewSpectralContrast(1000, 2048, 0, 20)
	assert.Error(t, err)
	_, err = NewSpectralContrast(1000, 2048, 6, 600)
	assert.Error(t, err)
}

func TestAmplitudeToDB(t *testing.T) {
	mag := [][]float64{{1, 0.1, 0}, {10, 1e-9, 0.5}}
	db := AmplitudeToDB(mag, 1, DefaultAmin, DefaultTopDB)

	assert.InDelta(t, 0, db[0][0], 1e-9)
	assert.InDelta(t, -20, db[0][1], 1e-9)
	assert.InDelta(t, 20, db[1][0], 1e-9)
	// floored at 20 - 80 dB
	assert.InDelta(t, -60, db[0][2], 1e-9)
	assert.InDelta(t, -60, db[1][1], 1e-9)
}

func TestSpectralCentroidAndBandwidth(t *testing.T) {
	sc, err := NewSpectralCentroid(1000, 8)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 125, 250, 375, 500}, sc.FrequencyBins())

	// All energy in one bin: centroid on that bin, no spread.
	peak := []float64{0, 0, 3, 0, 0}
	c := sc.Compute(peak)
	assert.InDelta(t, 250.0, c, 1e-9)
	assert.InDelta(t, 0.0, sc.Bandwidth(peak, c), 1e-9)

	// Two equal bins: centroid halfway, spread half the distance.
	pair := []float64{0, 1, 0, 1, 0}
	c = sc.Compute(pair)
	assert.InDelta(t, 250.0, c, 1e-9)
	assert.InDelta(t, 125.0, sc.Bandwidth(pair, c), 1e-9)

	assert.Zero(t, sc.Compute(make([]float64, 5)))

	_, err = NewSpectralCentroid(0, 8)
	assert.Error(t, err)
}

func TestSpectralRolloff(t *testing.T) {
	sr, err := NewSpectralRolloff(1000, 8, DefaultRollPercent)
	require.NoError(t, err)

	assert.InDelta(t, 375.0, sr.Compute([]float64{1, 1, 1, 1, 0}), 1e-9)
	assert.InDelta(t, 125.0, sr.Compute([]float64{0, 10, 0, 0, 1}), 1e-9)
	assert.Zero(t, sr.Compute(make([]float64, 5)))

	_, err = NewSpectralRolloff(1000, 8, 1)
	assert.Error(t, err)
}

func TestSpectralFlatness(t *testing.T) {
	sf := NewSpectralFlatness()
	assert.InDelta(t, 1.0, sf.Compute([]float64{2, 2, 2, 2}), 1e-9)
	assert.Less(t, sf.Compute([]float64{0, 0, 5, 0}), 1e-6)
	assert.InDelta(t, 1.0, sf.Compute(make([]float64, 4)), 1e-9)
}

func TestZeroCrossingRate(t *testing.T) {
	zcr, err := NewZeroCrossingRate(4, 2)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, zcr.Compute([]float64{1, -1, 1, -1}), 1e-9)
	assert.Zero(t, zcr.Compute([]float64{1, 2, 3, 4}))

	signal := sine(100, 1000, 1000)
	frames := zcr.ComputeFrames(signal)
	assert.Len(t, frames, NewSTFT().NumFrames(len(signal), 4, 2))

	wide, err := NewZeroCrossingRate(200, 100)
	require.NoError(t, err)
	rates := wide.ComputeFrames(signal)
	// 100 Hz at 1 kHz crosses zero twice every 10 samples.
	assert.InDelta(t, 0.2, rates[len(rates)/2], 0.02)

	_, err = NewZeroCrossingRate(1, 1)
	assert.Error(t, err)
}
