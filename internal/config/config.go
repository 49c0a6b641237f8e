// Package config defines the single struct through which every core package
// learns about timeouts, paths, and feature flags. Core code never reads
// environment variables or flags directly — only the CLI host (cmd/weftd)
// populates a Config and hands it down.
package config

import "time"

// Config is the root configuration object. Zero value is usable; Defaults
// fills in every field a caller leaves unset.
type Config struct {
	// KernelID identifies this kernel instance in its connection file name.
	KernelID string

	// ConnectionFile is the path written/read at bind/shutdown time
	// (<config_dir>/kernels/<kernel_id>.json per spec.md §6).
	ConnectionFile string

	// DataDir is the root for persisted state (<data_dir>/kernel_state.json,
	// <data_dir>/vectors/*.idx).
	DataDir string

	// PIDFile, when non-empty, is written on bind and removed on Cleanup.
	PIDFile string

	// Transport selects "tcp" or "ipc" for the network transport; ignored
	// for the in-process transport.
	Transport string
	IP        string

	// Timeouts, all spec.md §5 defaults.
	ExecuteTimeout    time.Duration
	ToolInvokeTimeout time.Duration
	GracePeriod       time.Duration
	OperationTimeout  time.Duration

	// ExecutorWorkers sizes the global I/O executor's fixed worker pool
	// (spec.md §9, "default: 4").
	ExecutorWorkers int

	// LogLevel is "info" or "debug"; SIGUSR2 flips it at runtime.
	LogLevel string

	// TracingEndpoint is the OTLP/HTTP collector endpoint. Empty disables
	// tracing (a no-op tracer is installed). Never read from the
	// environment by core code — the host resolves it from flags/viper and
	// places it here.
	TracingEndpoint string

	// Vector store parameters (spec.md §4.8).
	HNSWM             int
	HNSWEfConstruction int
	HNSWEfSearch      int
	HNSWMaxElements   int
	ParallelBatchSize int
}

// Defaults returns a Config with every spec-mandated default populated.
func Defaults() Config {
	return Config{
		KernelID:           "",
		Transport:          "tcp",
		IP:                 "127.0.0.1",
		ExecuteTimeout:     300 * time.Second,
		ToolInvokeTimeout:  60 * time.Second,
		GracePeriod:        5 * time.Second,
		OperationTimeout:   10 * time.Second,
		ExecutorWorkers:    4,
		LogLevel:           "info",
		HNSWM:              16,
		HNSWEfConstruction: 200,
		HNSWEfSearch:       50,
		HNSWMaxElements:    1024,
		ParallelBatchSize:  8,
	}
}

// Merge overlays the non-zero LogLevel, ExecuteTimeout, ToolInvokeTimeout
// and GracePeriod of o onto c, returning the result; ports and transport
// settings always come from c.
func (c Config) Merge(o Config) Config {
	out := c
	if o.LogLevel != "" {
		out.LogLevel = o.LogLevel
	}
	if o.ExecuteTimeout > 0 {
		out.ExecuteTimeout = o.ExecuteTimeout
	}
	if o.ToolInvokeTimeout > 0 {
		out.ToolInvokeTimeout = o.ToolInvokeTimeout
	}
	if o.GracePeriod > 0 {
		out.GracePeriod = o.GracePeriod
	}
	return out
}
