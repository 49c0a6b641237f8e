package kernel

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/weftlang/weft/internal/wire"
)

// ConnectionInfo is the JSON descriptor written to <config_dir>/kernels/
// <kernel_id>.json on bind and removed on Cleanup (spec.md §3, §6) — the
// same fields the teacher's kernel.ConnectionInfo reads from a file handed
// to it externally, except here the kernel itself owns writing it.
type ConnectionInfo struct {
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	ShellPort       int    `json:"shell_port"`
	ControlPort     int    `json:"control_port"`
	IOPubPort       int    `json:"iopub_port"`
	StdinPort       int    `json:"stdin_port"`
	HBPort          int    `json:"hb_port"`
	Key             string `json:"key"`
	SignatureScheme string `json:"signature_scheme"`
	KernelID        string `json:"kernel_id"`
	PID             int    `json:"pid"`
}

func connectionFilePath(configDir, kernelID string) string {
	return filepath.Join(configDir, "kernels", kernelID+".json")
}

// writeConnectionFile atomically writes info to <config_dir>/kernels/
// <kernel_id>.json (spec.md §6: "a JSON file is written atomically").
func writeConnectionFile(path string, info ConnectionInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "kernel: create connection file directory")
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errors.Wrap(err, "kernel: marshal connection file")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "kernel: write connection file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "kernel: rename connection file into place")
	}
	return nil
}

func removeConnectionFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "kernel: remove connection file")
	}
	return nil
}

func readConnectionFile(path string) (ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConnectionInfo{}, errors.Wrap(err, "kernel: read connection file")
	}
	var info ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ConnectionInfo{}, errors.Wrap(err, "kernel: parse connection file")
	}
	return info, nil
}

func portsFromEndpoints(ep map[wire.Channel]int) ConnectionInfo {
	return ConnectionInfo{
		ShellPort:   ep[wire.ChannelShell],
		ControlPort: ep[wire.ChannelControl],
		IOPubPort:   ep[wire.ChannelIOPub],
		StdinPort:   ep[wire.ChannelStdin],
		HBPort:      ep[wire.ChannelHeartbeat],
	}
}
