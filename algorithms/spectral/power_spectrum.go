package spectral

import (
	"math"
)

// Defaults for AmplitudeToDB
const (
	DefaultAmin  = 1e-5
	DefaultTopDB = 80.0
)

// AmplitudeToDB converts a frame x bin magnitude spectrogram to dB relative
// to ref, flooring magnitudes at amin. When topDB > 0 values more than topDB
// below the spectrogram's maximum are raised to that level.
func AmplitudeToDB(magnitude [][]float64, ref, amin, topDB float64) [][]float64 {
	if ref <= 0 {
		ref = 1.0
	}
	if amin <= 0 {
		amin = DefaultAmin
	}
	refDB := 20 * math.Log10(math.Max(ref, amin))

	peak := math.Inf(-1)
	out := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		out[t] = make([]float64, len(frame))
		for f, mag := range frame {
			db := 20*math.Log10(math.Max(mag, amin)) - refDB
			out[t][f] = db
			peak = math.Max(peak, db)
		}
	}

	if topDB > 0 {
		floor := peak - topDB
		for t := range out {
			for f := range out[t] {
				out[t][f] = math.Max(out[t][f], floor)
			}
		}
	}
	return out
}
