package logg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  zap.AtomicLevel
	}{
		{"debug", false, zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", false, zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"error", true, zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{"loud", false, zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"loud", true, zap.NewAtomicLevelAt(zap.DebugLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, tt.debug)
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(tt.want.Level()))
			assert.False(t, logger.Core().Enabled(tt.want.Level()-1))
		})
	}
}
