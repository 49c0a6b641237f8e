// Package registry defines the ComponentRegistry contract spec.md §1
// treats as an external collaborator ("LLM provider backends, tool
// implementations, and agent factory ... seen through a ComponentRegistry
// that returns opaque tools/agents") and ships one minimal in-memory
// implementation, good enough to exercise tool_request's list/info/invoke/
// search sub-commands end to end (spec.md §4.5.3) in tests and in a bare
// kernel with no real tool backend wired up.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ToolInfo is the metadata tool_request{command:"list"|"info"} reports.
type ToolInfo struct {
	Name        string
	Category    string
	Version     string
	Description string
	ParamSchema map[string]any
}

// InvokeFunc is a tool's actual behavior; params is the decoded
// tool_request.params object.
type InvokeFunc func(ctx context.Context, params map[string]any) (any, error)

// Registry is the contract the kernel's tool_request handler depends on.
// A real deployment supplies an implementation backed by whatever process
// actually owns LLM providers and tool/agent construction; this package's
// Registry is not that — it is the one concrete, in-tree stand-in.
type Registry interface {
	List(category string) []ToolInfo
	Info(name string) (ToolInfo, bool)
	Search(tokens []string) []ToolInfo
	Invoke(ctx context.Context, name string, params map[string]any) (any, error)
}

type entry struct {
	info   ToolInfo
	invoke InvokeFunc
}

// InMemory is a sufficient-for-tests Registry: tools are registered up
// front (typically by the CLI host at startup) and looked up by name.
type InMemory struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewInMemory returns an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{tools: map[string]entry{}}
}

// Register adds or replaces a tool definition.
func (r *InMemory) Register(info ToolInfo, fn InvokeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[info.Name] = entry{info: info, invoke: fn}
}

func (r *InMemory) List(category string) []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for _, e := range r.tools {
		if category != "" && e.info.Category != category {
			continue
		}
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *InMemory) Info(name string) (ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.info, ok
}

// Search matches tokens against name, category, and description,
// case-insensitively, returning a tool if any token matches any field
// (spec.md §4.5.3).
func (r *InMemory) Search(tokens []string) []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := make([]string, len(tokens))
	for i, t := range tokens {
		lowered[i] = strings.ToLower(t)
	}

	out := make([]ToolInfo, 0)
	for _, e := range r.tools {
		haystack := strings.ToLower(e.info.Name + " " + e.info.Category + " " + e.info.Description)
		for _, tok := range lowered {
			if tok != "" && strings.Contains(haystack, tok) {
				out = append(out, e.info)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *InMemory) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown tool %q", name)
	}
	return e.invoke(ctx, params)
}
