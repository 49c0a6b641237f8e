// Package vectorstore implements the tenant-isolated HNSW approximate
// nearest-neighbor index of spec.md §4.8. No example in the retrieval pack
// wires an embeddable ANN library (the pack's vector dependencies —
// pgvector-go, qdrant/go-client, pinecone-io/go-pinecone, milvus-sdk-go,
// weaviate-go-client — are all remote service clients, not in-process
// index libraries), so the graph itself is a from-scratch core deliverable,
// grounded directly on the textbook HNSW algorithm the spec names rather
// than on any one pack file.
package vectorstore

import (
	"fmt"
	"strings"
)

// ScopeKind tags the Scope sum type (spec.md §3: "a tagged variant encoded
// as a string prefix").
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeSession
	ScopeTenant
	ScopeWorkflow
	ScopeComponent
)

func (k ScopeKind) prefix() string {
	switch k {
	case ScopeSession:
		return "session"
	case ScopeTenant:
		return "tenant"
	case ScopeWorkflow:
		return "workflow"
	case ScopeComponent:
		return "component"
	default:
		return "global"
	}
}

// Scope is the in-memory tagged union; Encode/ParseScope round-trip it to
// the wire/on-disk string form ("tenant:ACME") so adding a new kind never
// requires a schema migration (spec.md §9).
type Scope struct {
	Kind ScopeKind
	ID   string
}

func Global() Scope                { return Scope{Kind: ScopeGlobal} }
func Session(id string) Scope      { return Scope{Kind: ScopeSession, ID: id} }
func Tenant(id string) Scope       { return Scope{Kind: ScopeTenant, ID: id} }
func Workflow(id string) Scope     { return Scope{Kind: ScopeWorkflow, ID: id} }
func Component(id string) Scope    { return Scope{Kind: ScopeComponent, ID: id} }

// Encode renders the string-prefix wire form.
func (s Scope) Encode() string {
	if s.Kind == ScopeGlobal {
		return "global"
	}
	return fmt.Sprintf("%s:%s", s.Kind.prefix(), s.ID)
}

func (s Scope) String() string { return s.Encode() }

// ParseScope is the inverse of Encode.
func ParseScope(raw string) (Scope, error) {
	if raw == "global" {
		return Global(), nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Scope{}, fmt.Errorf("vectorstore: invalid scope %q", raw)
	}
	switch parts[0] {
	case "session":
		return Session(parts[1]), nil
	case "tenant":
		return Tenant(parts[1]), nil
	case "workflow":
		return Workflow(parts[1]), nil
	case "component":
		return Component(parts[1]), nil
	default:
		return Scope{}, fmt.Errorf("vectorstore: unknown scope kind %q", parts[0])
	}
}

// Matches reports whether a stored scope satisfies a query filter scope.
// Equality on (kind, id) — a global filter matches only global-scoped
// vectors, never acting as a wildcard (spec.md invariant: "two vectors with
// the same id but different scopes are distinct entities").
func (s Scope) Matches(filter Scope) bool {
	return s.Kind == filter.Kind && s.ID == filter.ID
}

// HasPrefix reports whether s falls under other. Scopes have no
// hierarchical nesting beyond kind+id in this model, so this is the same
// test as Matches.
func (s Scope) HasPrefix(other Scope) bool {
	return s.Matches(other)
}
