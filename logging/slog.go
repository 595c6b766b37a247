package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// SlogLogger adapts a *slog.Logger to Logger. The CLI installs it when
// log.format is "json".
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewSlogLogger wraps an existing slog handler.
func NewSlogLogger(handler slog.Handler, level *slog.LevelVar) *SlogLogger {
	if level == nil {
		level = new(slog.LevelVar)
	}
	return &SlogLogger{logger: slog.New(handler), level: level}
}

// NewJSONLogger writes one JSON object per record to w.
func NewJSONLogger(w io.Writer) *SlogLogger {
	level := new(slog.LevelVar)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(handler, level)
}

func toAttrs(fields []Fields) []any {
	var args []any
	for _, f := range fields {
		for k, v := range f {
			args = append(args, slog.Any(k, v))
		}
	}
	return args
}

func (s *SlogLogger) Debug(msg string, fields ...Fields) {
	s.logger.Debug(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Info(msg string, fields ...Fields) {
	s.logger.Info(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Warn(msg string, fields ...Fields) {
	s.logger.Warn(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Error(err error, msg string, fields ...Fields) {
	args := toAttrs(fields)
	if err != nil {
		args = append(args, slog.String("err", err.Error()))
	}
	s.logger.Error(msg, args...)
}

func (s *SlogLogger) Fatal(err error, msg string, fields ...Fields) {
	s.Error(err, msg, fields...)
	os.Exit(1)
}

func (s *SlogLogger) WithFields(fields Fields) Logger {
	return &SlogLogger{logger: s.logger.With(toAttrs([]Fields{fields})...), level: s.level}
}

func (s *SlogLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return s.WithFields(fields)
	}
	return s
}

func (s *SlogLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		s.level.Set(slog.LevelDebug)
	case InfoLevel:
		s.level.Set(slog.LevelInfo)
	case WarnLevel:
		s.level.Set(slog.LevelWarn)
	default:
		s.level.Set(slog.LevelError)
	}
}
