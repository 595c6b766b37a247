package configs

import (
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-pcg/algorithms/filters"
	"github.com/RyanBlaney/sonido-pcg/conditioning"
	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/spf13/viper"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_format", "table")
	v.SetDefault("data_dir", defaultDataDir())

	// Signal loader defaults
	dec := transcode.DefaultDecoderConfig()
	v.SetDefault("audio.target_sample_rate", dec.TargetSampleRate)
	v.SetDefault("audio.resample_quality", dec.ResampleQuality)

	// Conditioning defaults
	cond := conditioning.DefaultParams()
	v.SetDefault("conditioning.gain", cond.Gain)
	v.SetDefault("conditioning.threshold", cond.Threshold)
	v.SetDefault("conditioning.normalize", cond.Normalize)
	v.SetDefault("conditioning.start", cond.Start)
	// No default: an unset end keeps the rest of the recording.
	_ = v.BindEnv("conditioning.end")

	// Filter defaults
	spec := filters.DefaultSpec()
	v.SetDefault("filter.low", spec.Low)
	v.SetDefault("filter.high", spec.High)
	v.SetDefault("filter.order", spec.Order)

	// Feature defaults
	feat := features.DefaultConfig()
	v.SetDefault("features.frame_size", feat.FrameSize)
	v.SetDefault("features.hop_size", feat.HopSize)
	v.SetDefault("features.num_mfcc", feat.NumMFCC)
	v.SetDefault("features.num_mel_filters", feat.NumMelFilters)
	v.SetDefault("features.contrast_bands", feat.ContrastBands)
	v.SetDefault("features.chroma_min_freq", feat.ChromaMinFreq)
	v.SetDefault("features.contrast_min_freq", feat.ContrastMinFreq)
	v.SetDefault("features.tuning_freq", feat.TuningFreq)
	v.SetDefault("features.lifter", feat.Lifter)

	// Archive defaults
	v.SetDefault("archive.index", "sqlite")
	v.SetDefault("archive.index_path", "index.db")
	v.SetDefault("archive.blobs", "local")
	v.SetDefault("archive.blob_dir", "blobs")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.prefix", "sonido-pcg")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.use_path_style", false)

	// Classifier defaults
	v.SetDefault("classifier.model_path", "")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sonido-pcg")
	}
	return filepath.Join(home, ".local", "share", "sonido-pcg")
}

// ResolvePath makes p absolute under the data directory unless it already
// is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
