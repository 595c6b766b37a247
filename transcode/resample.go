package transcode

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

var qualityPresets = map[string]resampling.QualitySpec{
	"quick":     {Preset: resampling.QualityQuick},
	"low":       {Preset: resampling.QualityLow},
	"medium":    {Preset: resampling.QualityMedium},
	"high":      {Preset: resampling.QualityHigh},
	"very_high": {Preset: resampling.QualityVeryHigh},
}

// resample converts mono samples between rates in one pass.
func resample(samples []float64, from, to int, quality string) ([]float64, error) {
	spec, ok := qualityPresets[quality]
	if !ok {
		spec = qualityPresets["high"]
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    spec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to process samples: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("failed to flush resampler: %w", err)
	}

	return append(out, tail...), nil
}
