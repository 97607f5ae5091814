package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoggerSafeBeforeInitialize(t *testing.T) {
	// The package-level logger must be usable before Initialize.
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Info("pre-init message")
		Warnw("pre-init", "k", "v")
	})
}

func TestInitialize(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		require.NoError(t, Initialize(false))
		assert.False(t, JSONOutput)
		assert.NotNil(t, Logger)
	})

	t.Run("json output", func(t *testing.T) {
		require.NoError(t, Initialize(true))
		assert.True(t, JSONOutput)
		assert.NotNil(t, Logger)
	})
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"debug", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"bogus", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv("GANTRY_LOG_LEVEL", tt.value)
		assert.Equal(t, tt.want, levelFromEnv(), "value=%q", tt.value)
	}
}

func TestNamed(t *testing.T) {
	require.NoError(t, Initialize(true))
	child := Named("export-csv")
	assert.NotNil(t, child)
	assert.NotPanics(t, func() { child.Infow("hello", "phase", "init") })
}
