// Package logging builds the zap logger shared by every command.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pdfqa/internal/domain"
)

// Options selects level and destinations.
type Options struct {
	// Level is a zap level name; empty means info.
	Level string
	// Debug forces debug level and turns on callers and stacktraces.
	Debug bool
	// File receives log lines when set. The parent directory is created.
	File string
	// Console also writes to stderr. With no File, stderr is always used.
	Console bool
}

// New returns a development-style console logger with ISO8601 timestamps.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	level := zapcore.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level: %v", domain.ErrConfig, err)
		}
		level = l
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if level == zapcore.DebugLevel {
		cfg.DisableStacktrace = false
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	} else {
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
	}

	cfg.OutputPaths = nil
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if opts.Console || opts.File == "" {
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config for logger: %w", err)
	}
	return logger, nil
}
