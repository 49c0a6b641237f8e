package kernel

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// persistedState mirrors spec.md §6's "<data_dir>/kernel_state.json
// (sessions + execution count)".
type persistedState struct {
	Sessions map[string]int `json:"sessions"` // session id -> execution_count
}

// persistState runs at the SavingState phase (spec.md §4.9): it flushes
// per-session execution counts and, if a vector store is configured,
// persists its indexes under <data_dir>/vectors.
func (k *Kernel) persistState(ctx context.Context) error {
	k.mu.Lock()
	state := persistedState{Sessions: make(map[string]int, len(k.sessions))}
	for id, s := range k.sessions {
		s.mu.Lock()
		state.Sessions[id] = s.executionCount
		s.mu.Unlock()
	}
	k.mu.Unlock()

	if err := os.MkdirAll(k.cfg.DataDir, 0o755); err != nil {
		return errors.Wrap(err, "kernel: create data dir")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "kernel: marshal kernel state")
	}
	path := filepath.Join(k.cfg.DataDir, "kernel_state.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "kernel: write kernel state")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "kernel: rename kernel state into place")
	}

	if k.deps.Vectors != nil {
		vecDir := filepath.Join(k.cfg.DataDir, "vectors")
		if err := k.deps.Vectors.Persist(vecDir); err != nil {
			return errors.Wrap(err, "kernel: persist vector store")
		}
	}
	return nil
}

// loadState restores execution counts from a prior kernel_state.json, if
// present; a missing or unreadable file is not fatal (spec.md §7:
// "StateCorruption ... start with empty state").
func (k *Kernel) loadState() {
	path := filepath.Join(k.cfg.DataDir, "kernel_state.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		k.log.Warn("kernel_state.json unreadable, starting with empty state")
		return
	}
	for id, count := range state.Sessions {
		s := k.session(id)
		s.mu.Lock()
		s.executionCount = count
		s.mu.Unlock()
	}
}
