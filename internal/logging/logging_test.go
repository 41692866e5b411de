package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{verbosity: -1, want: zapcore.WarnLevel},
		{verbosity: 0, want: zapcore.WarnLevel},
		{verbosity: 1, want: zapcore.InfoLevel},
		{verbosity: 2, want: zapcore.DebugLevel},
		{verbosity: 5, want: zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestNewFiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := New(1, &buf)
	logger.Debug("hidden")
	logger.Info("Preprocessing -- Parsing time", zap.Float64("ms", 1.5))
	logger.Warn("careful")
	_ = logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "shprep")
	assert.Contains(t, out, "Preprocessing -- Parsing time")
	assert.Contains(t, out, `"ms": 1.5`)
	assert.Contains(t, out, "careful")
}

func TestNewQuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(0, &buf)
	logger.Info("timing")
	logger.Error("Preprocessing failed")
	_ = logger.Sync()

	assert.NotContains(t, buf.String(), "timing")
	assert.Contains(t, buf.String(), "ERROR")
}
