package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
)

func TestNewWritesToFile(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantDebug   bool
		wantWarning bool
	}{
		{name: "default level is info", opts: Options{}},
		{name: "debug flag", opts: Options{Debug: true}, wantDebug: true},
		{name: "level from config", opts: Options{Level: "debug"}, wantDebug: true},
		{name: "warn hides info", opts: Options{Level: "warn"}, wantWarning: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "pdfqa.log")
			tt.opts.File = path
			logger, err := New(tt.opts)
			require.NoError(t, err)

			logger.Debug("debug line")
			logger.Info("info line")
			logger.Warn("warn line")
			_ = logger.Sync()

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			out := string(data)
			assert.Contains(t, out, "warn line")
			if tt.wantDebug {
				assert.Contains(t, out, "debug line")
			} else {
				assert.NotContains(t, out, "debug line")
			}
			if tt.wantWarning {
				assert.NotContains(t, out, "info line")
			} else {
				assert.Contains(t, out, "info line")
			}
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}
