package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/RyanBlaney/sonido-pcg/algorithms/filters"
	"github.com/RyanBlaney/sonido-pcg/archive"
	"github.com/RyanBlaney/sonido-pcg/conditioning"
	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/storage"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	OutputFormat string `mapstructure:"output_format"`
	DataDir      string `mapstructure:"data_dir"`

	// Signal loader
	Audio transcode.DecoderConfig `mapstructure:"audio"`

	// Conditioning chain defaults
	Conditioning conditioning.Params `mapstructure:"conditioning"`

	// Band-limiting filter
	Filter filters.Spec `mapstructure:"filter"`

	// Feature extraction grid
	Features features.Config `mapstructure:"features"`

	// Case archive storage
	Archive ArchiveConfig `mapstructure:"archive"`

	// Optional classifier
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

// ArchiveConfig selects the index and blob backends.
type ArchiveConfig struct {
	Index     string   `mapstructure:"index"`      // sqlite, badger, file
	IndexPath string   `mapstructure:"index_path"` // file or directory, relative to data_dir
	Blobs     string   `mapstructure:"blobs"`      // local, s3
	BlobDir   string   `mapstructure:"blob_dir"`   // relative to data_dir
	S3        S3Config `mapstructure:"s3"`
}

// S3Config contains object storage settings for the s3 blob backend
type S3Config struct {
	Bucket            string `mapstructure:"bucket"`
	Prefix            string `mapstructure:"prefix"`
	storage.S3Options `mapstructure:",squash"`
}

// ClassifierConfig points at a centroid model file. Empty disables diagnosis.
type ClassifierConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

// EnvPrefix is the prefix of environment variables read into the config,
// e.g. SONIDO_PCG_FILTER_LOW.
const EnvPrefix = "SONIDO_PCG"

// ConfigureEnv makes v read SONIDO_PCG_* variables. Variables from envFiles
// (default ".env") are loaded into the process environment first without
// overriding ones already set. Missing files are skipped; a file that
// exists but does not parse is an error.
func ConfigureEnv(v *viper.Viper, envFiles ...string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load decodes v into a Config, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", config.LogFormat)
	}

	switch strings.ToLower(config.OutputFormat) {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output format must be table, json or yaml, got %q", config.OutputFormat)
	}

	if err := config.Audio.Validate(); err != nil {
		return err
	}

	if config.Conditioning.Gain <= 0 {
		return fmt.Errorf("conditioning gain must be positive")
	}

	if config.Conditioning.Threshold < 0 {
		return fmt.Errorf("conditioning threshold cannot be negative")
	}

	// Cutoffs are checked against the sample rate per recording.
	if config.Filter.Order < 1 || config.Filter.Order > filters.MaxOrder {
		return fmt.Errorf("filter order must be between 1 and %d", filters.MaxOrder)
	}

	if err := config.Features.Validate(); err != nil {
		return err
	}

	switch archive.IndexKind(strings.ToLower(config.Archive.Index)) {
	case archive.IndexSQLite, archive.IndexBadger, archive.IndexFile:
	default:
		return fmt.Errorf("archive index must be sqlite, badger or file, got %q", config.Archive.Index)
	}

	switch strings.ToLower(config.Archive.Blobs) {
	case "local":
	case "s3":
		if config.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required for the s3 blob backend")
		}
		if config.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("archive blobs must be local or s3, got %q", config.Archive.Blobs)
	}

	return nil
}
