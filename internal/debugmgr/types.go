// Package debugmgr implements the Debug Execution Manager of spec.md §4.6: a
// breakpoint store, per-frame variable cache, and atomic-flag-plus-wait-
// primitive pause state machine that lets a running script be interrupted
// without spawning a thread per execution. It is adapted directly from the
// teacher's interpreter.DebugController, lifted out of the interpreter
// package so the kernel depends on it as the "DebugCapability handle"
// design note in spec.md §9 describes — a dependency the kernel owns and
// the script engine's hook implementation (internal/scriptexec) satisfies.
package debugmgr

import (
	"errors"
	"fmt"

	"github.com/weftlang/weft/interpreter"
)

// StopReason distinguishes why WaitForStop returned.
type StopReason int

const (
	StopPaused StopReason = iota + 1
	StopDone
)

type stepMode int

const (
	stepNone stepMode = iota
	stepIn
	stepOver
	stepOut
)

// ErrNotPaused is returned by any operation that requires Running→Paused*
// (spec.md §4.6, §7: "NotPaused").
var ErrNotPaused = errors.New("debugmgr: not paused")

// ErrTerminated is surfaced through the installed hook so the script
// engine's per-line callback can unwind cleanly on shutdown.
type ErrTerminated struct{}

func (e *ErrTerminated) Error() string { return "debug session terminated" }

// IsTerminated reports whether err is (or wraps) ErrTerminated.
func IsTerminated(err error) bool {
	var t *ErrTerminated
	return errors.As(err, &t)
}

// Breakpoint mirrors spec.md §3's Breakpoint entity.
type Breakpoint struct {
	ID        int
	SourcePath string
	Line      int
	Condition string
	HitCount  uint64
	Enabled   bool
}

// StackFrame mirrors spec.md §3's Stack frame entity. The Manager records
// one on every frame push and drops it on the matching pop.
type StackFrame struct {
	ID       int
	Name     string
	Source   string
	Line     int
	Column   int
	env      *interpreter.Environment
}

// Variable is the flat name/value/type triple returned by FrameVariables
// (spec.md §4.7: "no lazy child expansion (variables are flat)").
type Variable struct {
	Name  string
	Value string
	Type  string
}

func fmtErr(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
