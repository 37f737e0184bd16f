package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"default level", config.LoggingConfig{}, zapcore.InfoLevel, false},
		{"debug console", config.LoggingConfig{Level: "debug"}, zapcore.DebugLevel, false},
		{"warn json", config.LoggingConfig{Level: "warn", JSON: true}, zapcore.WarnLevel, false},
		{"bad level", config.LoggingConfig{Level: "loud"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	require.NotNil(t, l)
	l.Infof("discarded %d", 1)
}
