package debugmgr

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/weftlang/weft/interpreter"
)

// Manager implements spec.md §4.6's pause/resume state machine, and also
// satisfies interpreter.Debugger / interpreter.FrameAwareDebugger so it can
// be installed directly as the evaluator's debug hook. One Manager is
// shared between the kernel event loop (which dispatches DAP-translated
// operations) and the evaluator's per-node hook (BeforeNode); the pause
// flag and wait primitive use a sync.Cond rather than a coarse lock so the
// hook can block without stalling unrelated Manager reads.
var (
	_ interpreter.Debugger           = (*Manager)(nil)
	_ interpreter.FrameAwareDebugger = (*Manager)(nil)
)

type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *zap.Logger

	breakpoints   map[string]map[int]int // source -> line -> id
	breakpointIDs map[int]*Breakpoint
	nextBPID      int

	stepMode  stepMode
	stepDepth int
	pauseReq  bool
	terminate bool
	paused    bool
	done      bool
	skipFile  string
	skipLine  int

	epoch   uint64
	current DebugEvent
	stack   []StackFrame

	result interpreter.Value
	err    error

	pauseCh  chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once
}

// DebugEvent is the per-statement callback payload the script engine's hook
// passes to OnLine (spec.md §3: "Stack frame ... built from the script
// engine's call stack at pause time").
type DebugEvent struct {
	Source     string
	Line       int
	Column     int
	FrameDepth int
	Env        *interpreter.Environment
}

// NewManager creates a Manager. A nil log is replaced by a no-op logger.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:           log,
		breakpoints:   make(map[string]map[int]int),
		breakpointIDs: make(map[int]*Breakpoint),
		pauseCh:       make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// AddBreakpoint implements spec.md §4.6. The (source, line) invariant —
// unique among enabled breakpoints — is enforced by reusing the existing ID
// when the pair already exists.
func (m *Manager) AddBreakpoint(source string, line int, condition string) (int, error) {
	if line <= 0 {
		return 0, fmtErr("line must be > 0")
	}
	if strings.TrimSpace(source) == "" {
		return 0, fmtErr("source is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.breakpoints[source]
	if lines == nil {
		lines = make(map[int]int)
		m.breakpoints[source] = lines
	}
	if id, ok := lines[line]; ok {
		bp := m.breakpointIDs[id]
		bp.Condition = condition
		return id, nil
	}
	m.nextBPID++
	id := m.nextBPID
	lines[line] = id
	m.breakpointIDs[id] = &Breakpoint{
		ID: id, SourcePath: source, Line: line, Condition: condition, Enabled: true,
	}
	return id, nil
}

func (m *Manager) RemoveBreakpoint(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpointIDs[id]
	if !ok {
		return fmtErr("breakpoint #%d not found", id)
	}
	delete(m.breakpointIDs, id)
	if lines := m.breakpoints[bp.SourcePath]; lines != nil {
		delete(lines, bp.Line)
		if len(lines) == 0 {
			delete(m.breakpoints, bp.SourcePath)
		}
	}
	return nil
}

// ClearBreakpoints removes every breakpoint for source, or all breakpoints
// when source is empty. Idempotent: clearing an already-empty set is a
// no-op (spec.md §8).
func (m *Manager) ClearBreakpoints(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if source == "" {
		n := len(m.breakpointIDs)
		m.breakpoints = make(map[string]map[int]int)
		m.breakpointIDs = make(map[int]*Breakpoint)
		return n
	}
	lines := m.breakpoints[source]
	n := len(lines)
	for _, id := range lines {
		delete(m.breakpointIDs, id)
	}
	delete(m.breakpoints, source)
	return n
}

func (m *Manager) ListBreakpoints(source string) []Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Breakpoint, 0, len(m.breakpointIDs))
	for _, bp := range m.breakpointIDs {
		if source != "" && bp.SourcePath != source {
			continue
		}
		out = append(out, *bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// Continue implements spec.md §4.6: PausedAt* + continue → Running.
func (m *Manager) Continue() {
	m.mu.Lock()
	m.stepMode = stepNone
	m.stepDepth = 0
	m.armSkipCurrentLocked()
	m.wakeLocked()
	m.mu.Unlock()
}

func (m *Manager) StepIn() {
	m.mu.Lock()
	m.stepMode = stepIn
	m.stepDepth = m.current.FrameDepth
	m.armSkipCurrentLocked()
	m.wakeLocked()
	m.mu.Unlock()
}

func (m *Manager) StepOver() {
	m.mu.Lock()
	m.stepMode = stepOver
	m.stepDepth = m.current.FrameDepth
	m.armSkipCurrentLocked()
	m.wakeLocked()
	m.mu.Unlock()
}

func (m *Manager) StepOut() {
	m.mu.Lock()
	m.stepMode = stepOut
	m.stepDepth = m.current.FrameDepth
	m.armSkipCurrentLocked()
	m.wakeLocked()
	m.mu.Unlock()
}

// Pause sets a one-shot "pause on next line" flag (spec.md §4.6).
func (m *Manager) Pause() {
	m.mu.Lock()
	m.pauseReq = true
	m.mu.Unlock()
}

// Terminate transitions to Terminating: any blocked hook wakes with
// ErrTerminated and the script unwinds (spec.md §4.6).
func (m *Manager) Terminate() {
	m.mu.Lock()
	m.terminate = true
	m.wakeLocked()
	m.mu.Unlock()
}

func (m *Manager) wakeLocked() {
	m.paused = false
	m.epoch++
	m.cond.Broadcast()
}

// WaitForStop blocks until the script either pauses or finishes, waking
// exactly once per transition (spec.md §8: "at most one continue/step_*
// call wakes the script hook").
func (m *Manager) WaitForStop() StopReason {
	for {
		m.mu.Lock()
		if m.done {
			m.mu.Unlock()
			return StopDone
		}
		if m.paused {
			m.mu.Unlock()
			return StopPaused
		}
		m.mu.Unlock()

		select {
		case <-m.pauseCh:
		case <-m.doneCh:
		}
	}
}

func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Finish records the script's terminal value/error and wakes any waiter
// (called by the ScriptExecutor when execution completes).
func (m *Manager) Finish(result interpreter.Value, err error) {
	m.mu.Lock()
	m.result = result
	m.err = err
	m.done = true
	m.paused = false
	m.cond.Broadcast()
	m.mu.Unlock()

	m.doneOnce.Do(func() { close(m.doneCh) })
}

func (m *Manager) Result() (interpreter.Value, error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.err, m.done
}

// BeforeNode implements interpreter.Debugger — it is the per-statement hook
// the script engine calls before evaluating each node (spec.md §4.6: "called
// by the script engine hook before each statement; may block"). It decides
// whether to pause, evaluates conditional breakpoints, and blocks on the
// Manager's cond var while paused.
func (m *Manager) BeforeNode(event interpreter.DebugEvent) error {
	de := DebugEvent{Source: event.Filename, Line: event.Line, Column: event.Column, FrameDepth: event.FrameDepth, Env: event.Env}

	m.mu.Lock()
	m.current = de

	if m.terminate {
		m.mu.Unlock()
		return &ErrTerminated{}
	}

	if m.shouldPauseLocked(de) {
		m.paused = true
		select {
		case m.pauseCh <- struct{}{}:
		default:
		}
		for m.paused && !m.done {
			m.cond.Wait()
		}
		if m.terminate {
			m.mu.Unlock()
			return &ErrTerminated{}
		}
	}
	m.mu.Unlock()
	return nil
}

// AfterNode implements interpreter.Debugger. The manager only acts on
// statement entry (BeforeNode); post-evaluation results aren't currently
// surfaced through DAP, so this is a no-op hook point.
func (m *Manager) AfterNode(event interpreter.DebugEvent, result interpreter.Value, signal *interpreter.Signal, evalErr error) error {
	return nil
}

func (m *Manager) shouldPauseLocked(event DebugEvent) bool {
	if m.pauseReq {
		m.pauseReq = false
		return true
	}
	if event.Line <= 0 {
		return false
	}
	if m.skipLine > 0 {
		if event.Source == m.skipFile && event.Line == m.skipLine {
			return false
		}
		m.skipFile, m.skipLine = "", 0
	}
	if m.shouldPauseForStepLocked(event) {
		return true
	}
	lines := m.breakpoints[event.Source]
	if lines == nil {
		return false
	}
	id, ok := lines[event.Line]
	if !ok {
		return false
	}
	bp := m.breakpointIDs[id]
	if bp == nil || !bp.Enabled {
		return false
	}
	if bp.Condition != "" {
		// Conditional breakpoint: an evaluation error must not block
		// execution (spec.md §4.6) — logged as a warning, treated as false.
		val, err := interpreter.EvalDebugExpression(bp.Condition, event.Env)
		if err != nil {
			m.log.Warn("breakpoint condition error", zap.Int("id", id), zap.Error(err))
			return false
		}
		if !truthy(val) {
			return false
		}
	}
	bp.HitCount++
	return true
}

func (m *Manager) shouldPauseForStepLocked(event DebugEvent) bool {
	switch m.stepMode {
	case stepNone:
		return false
	case stepIn:
		m.stepMode, m.stepDepth = stepNone, 0
		return true
	case stepOver:
		if event.FrameDepth <= m.stepDepth {
			m.stepMode, m.stepDepth = stepNone, 0
			return true
		}
		return false
	case stepOut:
		if m.stepDepth <= 0 {
			m.stepMode, m.stepDepth = stepNone, 0
			return false
		}
		if event.FrameDepth < m.stepDepth {
			m.stepMode, m.stepDepth = stepNone, 0
			return true
		}
		return false
	default:
		return false
	}
}

func (m *Manager) armSkipCurrentLocked() {
	if m.paused && m.current.Line > 0 {
		m.skipFile, m.skipLine = m.current.Source, m.current.Line
	}
}

// OnFramePush / OnFramePop implement interpreter.FrameAwareDebugger, tracking
// the call stack so CurrentFrames can answer without walking the evaluator
// directly (spec.md §4.6: "frame IDs are assigned 1..N from innermost").
func (m *Manager) OnFramePush(frame interpreter.DebugFrame) {
	m.mu.Lock()
	m.stack = append(m.stack, StackFrame{
		ID: frame.ID, Name: frame.Name, Source: frame.Filename, Line: frame.Line, Column: frame.Column, env: frame.Env,
	})
	m.mu.Unlock()
}

func (m *Manager) OnFramePop(frame interpreter.DebugFrame) {
	m.mu.Lock()
	if n := len(m.stack); n > 0 {
		m.stack = m.stack[:n-1]
	}
	m.mu.Unlock()
}

// CurrentFrames implements spec.md §4.6; valid only while paused.
func (m *Manager) CurrentFrames() ([]StackFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		return nil, ErrNotPaused
	}
	if len(m.stack) == 0 {
		return []StackFrame{{ID: 1, Name: "main", Source: m.current.Source, Line: m.current.Line, Column: m.current.Column, env: m.current.Env}}, nil
	}
	out := make([]StackFrame, len(m.stack))
	for i := range m.stack {
		out[len(m.stack)-1-i] = m.stack[i]
	}
	return out, nil
}

func (m *Manager) envForFrame(frameID int) (*interpreter.Environment, error) {
	frames, err := m.CurrentFrames()
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if f.ID == frameID {
			if f.env == nil {
				return nil, fmtErr("frame #%d has no environment", frameID)
			}
			return f.env, nil
		}
	}
	return nil, fmtErr("frame #%d out of range", frameID)
}

// FrameVariables implements spec.md §4.6 ("flat", no child expansion).
func (m *Manager) FrameVariables(frameID int) ([]Variable, error) {
	env, err := m.envForFrame(frameID)
	if err != nil {
		return nil, err
	}
	snapshot := env.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Variable, 0, len(names))
	for _, name := range names {
		val := snapshot[name]
		if _, ok := val.(*interpreter.Builtin); ok {
			continue
		}
		out = append(out, Variable{Name: name, Value: val.Inspect(), Type: string(val.Type())})
	}
	return out, nil
}

// Evaluate implements spec.md §4.6; errors propagate as DAP success:false.
func (m *Manager) Evaluate(frameID int, expression string) (value string, typ string, err error) {
	env, err := m.envForFrame(frameID)
	if err != nil {
		return "", "", err
	}
	val, err := interpreter.EvalDebugExpression(expression, env)
	if err != nil {
		return "", "", err
	}
	return val.Inspect(), string(val.Type()), nil
}

func truthy(v interpreter.Value) bool {
	switch val := v.(type) {
	case nil:
		return false
	case *interpreter.Boolean:
		return val.Value
	default:
		return true
	}
}
