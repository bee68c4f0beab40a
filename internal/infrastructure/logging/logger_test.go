package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_UnknownLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "verbose", Env: "development"})
	require.Error(t, err)
}

func TestNewLogger_Production(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "warn", Env: "production", AppID: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestExtractLoggerFromContext(t *testing.T) {
	logger := zap.NewNop()
	ctx := SetLoggerInContext(context.Background(), logger)
	assert.Same(t, logger, ExtractLoggerFromContext(ctx))

	// falls back to the global logger
	assert.NotNil(t, ExtractLoggerFromContext(context.Background()))
}
