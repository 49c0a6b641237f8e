package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoggerDefaultsToNonNil(t *testing.T) {
	assert.NotNil(t, Logger())
}

func TestSetLoggerReplacesGlobal(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	replacement := zap.NewNop()
	SetLogger(replacement)
	assert.Same(t, replacement, Logger())
}

func TestToggleDebugFlipsLevelIdempotently(t *testing.T) {
	Level().SetLevel(zapcore.InfoLevel)

	got := ToggleDebug()
	assert.Equal(t, zapcore.DebugLevel, got)

	got = ToggleDebug()
	assert.Equal(t, zapcore.InfoLevel, got)
}
