package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weftlang/weft/internal/config"
	wlog "github.com/weftlang/weft/internal/log"
)

// hostConfig is the flag/viper-only surface (ports, paths, kernel id) that
// sits above config.Config — the core struct never sees these directly;
// buildConfig translates them.
type hostConfig struct {
	KernelID       string
	ConnectionFile string
	Port           int
	IP             string
	TransportKind  string
	WorkingDir     string
	LogFile        string
	PIDFile        string
	Daemon         bool
}

func defaultKernelID() string {
	return "kernel-" + uuid.NewString()[:8]
}

// randomHex generates the per-kernel HMAC signing key (spec.md §6: "the
// connection file's key is generated fresh per kernel, never reused").
func randomHex(n int) string {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

// loadConfig builds a config.Config from viper (flags + optional YAML
// file), matching spec.md §4: "the core itself never calls os.Getenv" —
// only this function, part of the CLI host, touches viper/env/flags.
func loadConfig(h hostConfig) (config.Config, error) {
	cfg := config.Defaults()
	cfg.KernelID = h.KernelID
	cfg.ConnectionFile = h.ConnectionFile
	cfg.PIDFile = h.PIDFile
	cfg.Transport = h.TransportKind
	cfg.IP = h.IP

	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("tracing_endpoint"); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetInt("executor_workers"); v > 0 {
		cfg.ExecutorWorkers = v
	}
	if v := viper.GetDuration("execute_timeout"); v > 0 {
		cfg.ExecuteTimeout = v
	}
	if v := viper.GetDuration("tool_invoke_timeout"); v > 0 {
		cfg.ToolInvokeTimeout = v
	}
	if v := viper.GetDuration("grace_period"); v > 0 {
		cfg.GracePeriod = v
	}
	if v := viper.GetDuration("operation_timeout"); v > 0 {
		cfg.OperationTimeout = v
	}

	if cfg.KernelID == "" {
		cfg.KernelID = defaultKernelID()
	}
	if cfg.ConnectionFile == "" {
		dir, err := kernelsDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve kernels directory: %w", err)
		}
		cfg.ConnectionFile = filepath.Join(dir, cfg.KernelID+".json")
	}
	return cfg, nil
}

func kernelsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".weftd", "kernels"), nil
}

// buildLogger constructs the zap.Logger core code receives, wired to
// internal/log's shared atomic level so SIGUSR2's toggle_debug_logging
// takes effect without rebuilding the core (spec.md's ambient-stack
// logging section).
func buildLogger(cfg config.Config, logFile string) (*zap.Logger, error) {
	level := wlog.Level()
	if cfg.LogLevel == "debug" {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var writer zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, level)
	logger := zap.New(core)
	wlog.SetLogger(logger)
	return logger, nil
}

// watchConfigReload wires fsnotify (via viper's own WatchConfig hook) so a
// live edit of the config file triggers the same log-level re-read as a
// SIGHUP/config_reload, without a restart (spec.md §4.10, SPEC_FULL's
// "Config hot-reload" supplement). Timeouts are not reloaded.
func watchConfigReload(onChange func(fsnotify.Event)) {
	viper.OnConfigChange(onChange)
	viper.WatchConfig()
}
