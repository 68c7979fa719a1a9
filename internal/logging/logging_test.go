package logging

import (
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("json logger at info", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, logger)

		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("console logger at debug", func(t *testing.T) {
		logger, err := New(config.LoggingConfig{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Level: "chatty", Format: "json"})
		assert.Error(t, err)
	})
}
