// Package log provides the package-level logger every core package shares,
// following the pattern in teradata-labs/loom's internal/log: a swappable
// *zap.Logger singleton so the CLI host controls verbosity and tests can
// install an observed logger. Core packages never call zap.NewProduction or
// zap.NewDevelopment themselves.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	logger, _ = zap.NewDevelopment()
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger replaces the global logger, e.g. with one built around Level()
// so SIGUSR2 can retune it at runtime.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Level is the shared atomic level SIGUSR2's toggle_debug_logging flips
// between Info and Debug (spec.md §4.10); the CLI host builds its zap
// core with this level so the change takes effect without rebuilding the
// logger.
func Level() *zap.AtomicLevel {
	return &level
}

// ToggleDebug flips the shared level between Info and Debug, idempotently
// safe to call on a replayed signal.
func ToggleDebug() zapcore.Level {
	if level.Level() == zapcore.DebugLevel {
		level.SetLevel(zapcore.InfoLevel)
	} else {
		level.SetLevel(zapcore.DebugLevel)
	}
	return level.Level()
}
