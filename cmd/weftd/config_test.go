package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/kernel"
	"github.com/weftlang/weft/internal/wire"
)

func TestRandomHexProducesRequestedLength(t *testing.T) {
	h := randomHex(32)
	assert.Len(t, h, 32)
}

func TestRandomHexIsNotReused(t *testing.T) {
	assert.NotEqual(t, randomHex(32), randomHex(32))
}

func TestPerChannelPortsAllZeroWhenBaseIsZero(t *testing.T) {
	ports := perChannelPorts(0)
	for _, ch := range wire.AllChannels {
		assert.Equal(t, 0, ports[ch])
	}
}

func TestPerChannelPortsSeedsOnlyShellWhenBaseSet(t *testing.T) {
	ports := perChannelPorts(5000)
	assert.Equal(t, 5000, ports[wire.ChannelShell])
	assert.Equal(t, 0, ports[wire.ChannelControl])
}

func TestLoadConfigFillsDefaultsWhenUnset(t *testing.T) {
	cfg, err := loadConfig(hostConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.KernelID)
	assert.Contains(t, cfg.ConnectionFile, cfg.KernelID+".json")
}

func TestLoadConfigHonorsExplicitKernelID(t *testing.T) {
	cfg, err := loadConfig(hostConfig{KernelID: "kernel-fixed", ConnectionFile: "/tmp/fixed.json"})
	require.NoError(t, err)
	assert.Equal(t, "kernel-fixed", cfg.KernelID)
	assert.Equal(t, "/tmp/fixed.json", cfg.ConnectionFile)
}

func TestReadConnectionInfoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k.json")
	want := kernel.ConnectionInfo{KernelID: "k", PID: os.Getpid(), Transport: "tcp", ShellPort: 1234}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := readConnectionInfo(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadConnectionInfoErrorsOnMissingFile(t *testing.T) {
	_, err := readConnectionInfo(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestProcessAliveReportsTrueForSelf(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
}
