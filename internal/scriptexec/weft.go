package scriptexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/weftlang/weft/interpreter"
	"github.com/weftlang/weft/internal/debugmgr"
	"github.com/weftlang/weft/lexer"
	"github.com/weftlang/weft/parser"
)

// ErrInterrupted is returned (wrapped) when a script unwinds because
// Interrupt was called (spec.md §4.5.5).
var ErrInterrupted = errors.New("scriptexec: interrupted")

// WeftExecutor is the Executor grounded directly on the teacher's own
// interpreter.Evaluator — this project's one shipped ScriptExecutor. It
// also implements interpreter.Debugger/FrameAwareDebugger itself, so it is
// always the engine's installed hook: it checks the cooperative cancel
// flag on every node and, when a debugmgr.Manager has been installed,
// delegates breakpoint/step handling to it. That dual role is what lets
// interrupt_request and debug_request share one evaluator hook instead of
// racing two.
type WeftExecutor struct {
	mu        sync.Mutex
	mgr       *debugmgr.Manager
	input     io.Reader
	cancelled atomic.Bool
}

var (
	_ Executor                       = (*WeftExecutor)(nil)
	_ interpreter.Debugger           = (*WeftExecutor)(nil)
	_ interpreter.FrameAwareDebugger = (*WeftExecutor)(nil)
)

// New returns an Executor with no debug manager installed; InstallDebugger
// adds one before the first Execute call that needs breakpoints.
func New() *WeftExecutor {
	return &WeftExecutor{}
}

// SetInput wires the stream the script's input builtins read from
// (spec.md: kernel stdin request/reply loop feeds this).
func (w *WeftExecutor) SetInput(r io.Reader) {
	w.mu.Lock()
	w.input = r
	w.mu.Unlock()
}

func (w *WeftExecutor) InstallDebugger(mgr *debugmgr.Manager) {
	w.mu.Lock()
	w.mgr = mgr
	w.mu.Unlock()
}

func (w *WeftExecutor) Interrupt() {
	w.cancelled.Store(true)
}

func (w *WeftExecutor) manager() *debugmgr.Manager {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mgr
}

// BeforeNode implements interpreter.Debugger: the cooperative cancel check
// runs first (spec.md §4.5.5/§5), then control passes to the installed
// debug manager, if any.
func (w *WeftExecutor) BeforeNode(event interpreter.DebugEvent) error {
	if w.cancelled.Load() {
		return ErrInterrupted
	}
	if mgr := w.manager(); mgr != nil {
		return mgr.BeforeNode(event)
	}
	return nil
}

func (w *WeftExecutor) AfterNode(event interpreter.DebugEvent, result interpreter.Value, signal *interpreter.Signal, evalErr error) error {
	if mgr := w.manager(); mgr != nil {
		return mgr.AfterNode(event, result, signal, evalErr)
	}
	return nil
}

func (w *WeftExecutor) OnFramePush(frame interpreter.DebugFrame) {
	if mgr := w.manager(); mgr != nil {
		mgr.OnFramePush(frame)
	}
}

func (w *WeftExecutor) OnFramePop(frame interpreter.DebugFrame) {
	if mgr := w.manager(); mgr != nil {
		mgr.OnFramePop(frame)
	}
}

type execResult struct {
	val interpreter.Value
	err error
}

const scriptFilename = "<script>"

// Execute parses and runs code to completion inside its own goroutine so
// that ctx's deadline (or a prior Interrupt) can race it — the goroutine
// itself only stops once the evaluator's hook observes the cancel flag, in
// keeping with spec.md §5's "cooperative cancel flag is the only
// mechanism; executions that never call the hook cannot be cancelled short
// of killing the process."
func (w *WeftExecutor) Execute(ctx context.Context, code string, args []string) (Output, error) {
	w.cancelled.Store(false)

	p := parser.New(lexer.New(code))
	program := p.ParseProgram()
	if errs := p.ErrorsDetailed(); len(errs) > 0 {
		return Output{
			Status:    "error",
			ErrorKind: "SchemaViolation",
			ErrorText: parser.FormatParseErrors(errs, code, scriptFilename),
		}, nil
	}

	eval := interpreter.NewEvaluatorWithSourceAndFilename(code, scriptFilename)
	if err := eval.SetTaskFailurePolicy(interpreter.TaskFailurePolicyFailFast); err != nil {
		return Output{}, fmt.Errorf("scriptexec: configure evaluator: %w", err)
	}
	eval.SetProgramArgs(args)
	eval.SetProgramPath(scriptFilename)
	if in := w.currentInput(); in != nil {
		eval.SetInput(in)
	}
	eval.SetDebugger(w)

	env := interpreter.NewBaseEnvironment()

	done := make(chan execResult, 1)
	go func() {
		val, sig, err := eval.Eval(program, env)
		if err == nil && sig != nil {
			err = fmt.Errorf("break/continue outside loop")
		}
		if err == nil {
			err = eval.CheckUnhandledTaskFailures()
		}
		done <- execResult{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		w.Interrupt()
		<-done
		return Output{Status: "aborted"}, nil
	case r := <-done:
		if errors.Is(r.err, ErrInterrupted) {
			return Output{Status: "aborted"}, nil
		}
		if r.err != nil {
			return Output{
				Status:    "error",
				ErrorKind: "ExecutionError",
				ErrorText: interpreter.FormatRuntimeError(r.err, code, scriptFilename),
			}, nil
		}
		out := Output{Status: "ok"}
		if r.val != nil {
			out.Result = r.val.Inspect()
			out.ResultType = string(r.val.Type())
		}
		return out, nil
	}
}

func (w *WeftExecutor) currentInput() io.Reader {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}
