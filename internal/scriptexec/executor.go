// Package scriptexec defines the ScriptExecutor contract spec.md §1 treats
// as an external collaborator ("the core sees it as a ScriptExecutor with
// execute(code, args) -> output and a method to install per-line debug
// hooks") and ships the one concrete implementation this repository
// carries forward: the weft language engine (ast/lexer/parser/interpreter),
// kept in-tree as the language this kernel actually runs scripts in.
package scriptexec

import (
	"context"
	"time"

	"github.com/weftlang/weft/internal/debugmgr"
)

// Output is what a completed (or timed-out/interrupted) execution reports
// back to the execute_request handler.
type Output struct {
	Result     string // Inspect() of the returned value, "" if none
	ResultType string
	Stdout     []string
	Stderr     []string
	Status     string // "ok" | "error" | "aborted"
	ErrorKind  string
	ErrorText  string
}

// Executor is the contract internal/kernel depends on; it knows nothing
// about the wire protocol. One Executor instance is created per session
// (spec.md §3: "the script executor owns the script engine instance").
type Executor interface {
	// Execute runs code to completion, under ctx's deadline (spec.md §4.5.1:
	// "configurable wall-clock budget"), or until Interrupt is called.
	// args become the script's program arguments.
	Execute(ctx context.Context, code string, args []string) (Output, error)

	// Interrupt sets the cooperative cancel flag the running script's hook
	// observes at its next yield point (spec.md §4.5.5). It does not kill
	// anything; a script that never yields cannot be interrupted.
	Interrupt()

	// InstallDebugger wires a debug manager as the engine's per-line hook
	// (spec.md §1: "a method to install per-line debug hooks").
	InstallDebugger(mgr *debugmgr.Manager)
}

// Timeout wraps ctx with the configured execute_request budget, returning
// the same cancel func contract as context.WithTimeout so Execute callers
// compose normally.
func Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 300 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
