package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLevel("debug").Level())
	assert.Equal(t, zap.WarnLevel, parseLevel(" WARN ").Level())
	assert.Equal(t, zap.InfoLevel, parseLevel("").Level())
	assert.Equal(t, zap.InfoLevel, parseLevel("verbose").Level())
}

func TestNew(t *testing.T) {
	log, err := New("production", "error")
	require.NoError(t, err)
	assert.False(t, log.SugaredLogger.Desugar().Core().Enabled(zap.InfoLevel))
	assert.True(t, log.SugaredLogger.Desugar().Core().Enabled(zap.ErrorLevel))

	child := log.With("component", "test")
	assert.NotNil(t, child.SugaredLogger)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("discarded", "key", "value")
	log.Sync()
}
