package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	wlog "github.com/weftlang/weft/internal/log"
)

// TestToggleDebugLoggingFlipsSharedLevel is the maintainer-reported fix:
// toggleDebugLogging previously only logged and never called
// internal/log.ToggleDebug, so the SIGUSR2 path was a no-op.
func TestToggleDebugLoggingFlipsSharedLevel(t *testing.T) {
	k, _ := newTestKernel(t)
	wlog.Level().SetLevel(zapcore.InfoLevel)
	defer wlog.Level().SetLevel(zapcore.InfoLevel)

	k.toggleDebugLogging()
	assert.Equal(t, zapcore.DebugLevel, wlog.Level().Level())

	k.toggleDebugLogging()
	assert.Equal(t, zapcore.InfoLevel, wlog.Level().Level())
}

// TestReloadConfigAppliesReloadedLogLevel is the maintainer-reported fix:
// reloadConfig previously only logged and never re-applied anything, and
// the reloader hook it now calls is what cmd/weftd wires to viper/fsnotify.
func TestReloadConfigAppliesReloadedLogLevel(t *testing.T) {
	k, _ := newTestKernel(t)
	wlog.Level().SetLevel(zapcore.InfoLevel)
	defer wlog.Level().SetLevel(zapcore.InfoLevel)

	k.SetConfigReloader(func() (string, error) { return "debug", nil })
	k.ReloadConfig()
	assert.Equal(t, zapcore.DebugLevel, wlog.Level().Level())
}

func TestReloadConfigWithoutReloaderIsANoop(t *testing.T) {
	k, _ := newTestKernel(t)
	wlog.Level().SetLevel(zapcore.InfoLevel)
	defer wlog.Level().SetLevel(zapcore.InfoLevel)

	k.ReloadConfig()
	assert.Equal(t, zapcore.InfoLevel, wlog.Level().Level())
}
