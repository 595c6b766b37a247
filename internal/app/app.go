// Package app builds the long-lived components the CLI commands share from
// a loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/RyanBlaney/sonido-pcg/archive"
	"github.com/RyanBlaney/sonido-pcg/classify"
	"github.com/RyanBlaney/sonido-pcg/configs"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pipeline"
	"github.com/RyanBlaney/sonido-pcg/storage"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/mattn/go-isatty"
)

// App holds the analyzer and, once opened, the case archive.
type App struct {
	Config   *configs.Config
	Logger   logging.Logger
	Analyzer *pipeline.Analyzer

	archive *archive.Archive
}

// New installs the configured logger and builds the analyzer. The archive
// is opened lazily by Archive so commands that never touch it do not create
// storage.
func New(cfg *configs.Config, logOut io.Writer) (*App, error) {
	if err := configs.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := SetupLogging(cfg, logOut)
	if err != nil {
		return nil, err
	}

	var classifier classify.Classifier
	if cfg.Classifier.ModelPath != "" {
		model, err := classify.LoadCentroidModel(cfg.Classifier.ModelPath)
		if err != nil {
			return nil, err
		}
		classifier = model
	}

	dec := cfg.Audio
	feat := cfg.Features
	analyzer, err := pipeline.NewAnalyzer(pipeline.Options{
		Decoder:    &dec,
		Features:   &feat,
		Classifier: classifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	logger.Debug("Application initialized", logging.Fields{
		"index":      cfg.Archive.Index,
		"blobs":      cfg.Archive.Blobs,
		"data_dir":   cfg.DataDir,
		"classifier": cfg.Classifier.ModelPath != "",
	})

	return &App{Config: cfg, Logger: logger, Analyzer: analyzer}, nil
}

// SetupLogging installs the global logger described by cfg and returns it.
func SetupLogging(cfg *configs.Config, out io.Writer) (logging.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose && level > logging.DebugLevel {
		level = logging.DebugLevel
	}

	var logger logging.Logger
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger = logging.NewJSONLogger(out)
	default:
		logger = logging.NewDefaultLoggerWithWriters(out, out, isTerminal(out))
	}
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return logger, nil
}

// Request returns the pipeline request built from the configured defaults.
func (a *App) Request() pipeline.Request {
	return pipeline.Request{
		Conditioning: a.Config.Conditioning,
		Filter:       a.Config.Filter,
	}
}

// Archive opens the configured archive on first use.
func (a *App) Archive(ctx context.Context) (*archive.Archive, error) {
	if a.archive != nil {
		return a.archive, nil
	}

	blobs, err := OpenBlobStore(a.Config)
	if err != nil {
		return nil, err
	}
	idx, err := archive.OpenIndex(ctx, archive.IndexKind(a.Config.Archive.Index), a.Config.ResolvePath(a.Config.Archive.IndexPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive index: %w", err)
	}

	dec := a.Config.Audio
	arc, err := archive.Open(ctx, idx, blobs,
		archive.WithDecoder(transcode.NewDecoder(&dec)),
		archive.WithLogger(a.Logger.WithFields(logging.Fields{"component": "archive"})),
	)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	a.archive = arc
	return arc, nil
}

// OpenBlobStore builds the configured blob backend.
func OpenBlobStore(cfg *configs.Config) (storage.FileStore, error) {
	switch strings.ToLower(cfg.Archive.Blobs) {
	case "s3":
		s3cfg := cfg.Archive.S3
		client := storage.NewS3Client(s3cfg.S3Options)
		return storage.NewS3(client, s3cfg.Bucket, s3cfg.Prefix), nil
	default:
		store, err := storage.NewLocal(cfg.ResolvePath(cfg.Archive.BlobDir))
		if err != nil {
			return nil, fmt.Errorf("failed to open blob directory: %w", err)
		}
		return store, nil
	}
}

// Close releases the archive if it was opened.
func (a *App) Close() error {
	if a.archive == nil {
		return nil
	}
	err := a.archive.Close()
	a.archive = nil
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
