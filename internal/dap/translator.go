// Package dap translates the DAP commands listed in supportedCommands onto
// debugmgr.Manager operations. Unlike the teacher's debugger/dap package —
// which spoke raw Content-Length-framed DAP over stdio and owned the whole
// program lifecycle (parse, launch, run) — this translator never parses or
// runs anything itself: the script is already running inside the kernel's
// scriptexec, sharing one Manager for the whole session, and DAP messages
// arrive as the content of Jupyter debug_request/debug_reply control-channel
// messages (spec.md §4.5.6). Asynchronous DAP events are handed to an
// EventPublisher the kernel wires to an iopub debug_event publish.
package dap

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/weftlang/weft/internal/debugmgr"
)

// Request mirrors the DAP request envelope tunneled as debug_request
// content (spec.md §4.5.6: "{seq, type: 'request', command, arguments}").
type Request struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response mirrors the DAP response envelope returned as debug_reply
// content.
type Response struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// EventPublisher emits an asynchronous DAP event (stopped, continued,
// terminated, output) for the kernel to wrap in a debug_event iopub
// message.
type EventPublisher func(event string, body any)

const defaultThreadID = 1

// supportedCommands is the set of commands Handle answers; everything else
// gets success:false, message:"unsupported".
var supportedCommands = map[string]bool{
	"initialize":     true,
	"launch":         true,
	"attach":         true,
	"setBreakpoints": true,
	"continue":       true,
	"next":           true,
	"stepIn":         true,
	"stepOut":        true,
	"pause":          true,
	"stackTrace":     true,
	"scopes":         true,
	"variables":      true,
	"evaluate":       true,
	"disconnect":     true,
	"terminate":      true,
}

// Translator is the shared DAP<->Manager bridge (spec.md §4.4: "the debug
// manager is shared; kernel holds it, DAP translator holds a reference").
type Translator struct {
	mgr     *debugmgr.Manager
	publish EventPublisher
	onQuit  func()

	mu          sync.Mutex
	breakpoints map[string][]int
	lastAction  string
	firstStop   bool
	stopOnEntry bool
}

// New builds a Translator around an already-installed Manager and starts
// its stop-event watcher immediately. onQuit is invoked once when a
// disconnect/terminate request arrives, so the kernel can tear down or
// continue the script's execution appropriately.
//
// The watcher must not wait for a "launch" request to start: a session can
// pause at a breakpoint set before any execute_request ever runs (spec.md
// scenario #2 sends setBreakpoints then execute_request with no launch at
// all), and the stopped/continued/terminated events it publishes are the
// only way a client learns the script paused.
func New(mgr *debugmgr.Manager, publish EventPublisher, onQuit func()) *Translator {
	if publish == nil {
		publish = func(string, any) {}
	}
	if onQuit == nil {
		onQuit = func() {}
	}
	t := &Translator{
		mgr:         mgr,
		publish:     publish,
		onQuit:      onQuit,
		breakpoints: map[string][]int{},
		firstStop:   true,
	}
	go t.watchStops()
	return t
}

// Handle dispatches a single DAP request and returns the reply to send as
// debug_reply content.
func (t *Translator) Handle(req Request) Response {
	if !supportedCommands[req.Command] {
		return t.errResponse(req, fmt.Errorf("unsupported"))
	}

	switch req.Command {
	case "initialize":
		return t.ok(req, map[string]any{
			"supportsConfigurationDoneRequest": false,
			"supportsConditionalBreakpoints":   true,
			"supportsEvaluateForHovers":        true,
			"supportsStepBack":                 false,
			"supportsTerminateRequest":         true,
		})
	case "launch", "attach":
		return t.launch(req)
	case "setBreakpoints":
		return t.setBreakpoints(req)
	case "continue":
		t.setLastAction("continue")
		t.mgr.Continue()
		return t.ok(req, map[string]any{"allThreadsContinued": true})
	case "next":
		t.setLastAction("next")
		t.mgr.StepOver()
		return t.ok(req, map[string]any{})
	case "stepIn":
		t.setLastAction("stepIn")
		t.mgr.StepIn()
		return t.ok(req, map[string]any{})
	case "stepOut":
		t.setLastAction("stepOut")
		t.mgr.StepOut()
		return t.ok(req, map[string]any{})
	case "pause":
		t.setLastAction("pause")
		t.mgr.Pause()
		return t.ok(req, map[string]any{})
	case "stackTrace":
		return t.stackTrace(req)
	case "scopes":
		return t.scopes(req)
	case "variables":
		return t.variables(req)
	case "evaluate":
		return t.evaluate(req)
	case "disconnect", "terminate":
		t.mgr.Terminate()
		t.onQuit()
		return t.ok(req, map[string]any{})
	default:
		return t.errResponse(req, fmt.Errorf("unsupported"))
	}
}

type launchArgs struct {
	Program     string `json:"program"`
	StopOnEntry *bool  `json:"stopOnEntry,omitempty"`
}

// launch/attach never start a process — the script is already running in
// the kernel (spec.md §4.7) — but stopOnEntry arms a breakpoint at line 1.
// The stop-event watcher is already running (started in New), so launch
// only needs to record whether entry should count as a "stopped" reason.
func (t *Translator) launch(req Request) Response {
	var args launchArgs
	if err := unmarshalArgs(req.Arguments, &args); err != nil {
		return t.errResponse(req, err)
	}
	stopOnEntry := true
	if args.StopOnEntry != nil {
		stopOnEntry = *args.StopOnEntry
	}

	t.mu.Lock()
	t.stopOnEntry = stopOnEntry
	t.mu.Unlock()

	if stopOnEntry && strings.TrimSpace(args.Program) != "" {
		_, _ = t.mgr.AddBreakpoint(args.Program, 1, "")
	}
	return t.ok(req, map[string]any{})
}

// watchStops runs for the lifetime of a debug session, translating each
// Manager stop/resume transition into a DAP event on iopub (spec.md
// §4.5.6), exactly as the teacher's server.watchStops loop did for raw
// stdio DAP.
func (t *Translator) watchStops() {
	for {
		reason := t.mgr.WaitForStop()
		if reason == debugmgr.StopDone {
			t.publish("terminated", map[string]any{})
			t.publish("exited", map[string]any{"exitCode": 0})
			return
		}

		t.mu.Lock()
		firstStop := t.firstStop
		t.firstStop = false
		stopOnEntry := t.stopOnEntry
		lastAction := t.lastAction
		t.lastAction = ""
		t.mu.Unlock()

		stopReason := "breakpoint"
		switch {
		case firstStop && stopOnEntry:
			stopReason = "entry"
		case lastAction == "pause":
			stopReason = "pause"
		case lastAction == "stepIn" || lastAction == "next" || lastAction == "stepOut":
			stopReason = "step"
		}
		t.publish("stopped", map[string]any{
			"reason":            stopReason,
			"threadId":          defaultThreadID,
			"allThreadsStopped": true,
		})
	}
}

func (t *Translator) setLastAction(action string) {
	t.mu.Lock()
	t.lastAction = action
	t.mu.Unlock()
}

type setBreakpointsArgs struct {
	Source struct {
		Path string `json:"path"`
	} `json:"source"`
	Breakpoints []struct {
		Line      int    `json:"line"`
		Condition string `json:"condition,omitempty"`
	} `json:"breakpoints,omitempty"`
}

// setBreakpoints clears and re-adds every breakpoint for a source file
// (spec.md §4.7: "clear_breakpoints(source) then add_breakpoint each").
// Every line is reported verified — like the teacher, this translator does
// no static reachability analysis, it only guards malformed input.
func (t *Translator) setBreakpoints(req Request) Response {
	var args setBreakpointsArgs
	if err := unmarshalArgs(req.Arguments, &args); err != nil {
		return t.errResponse(req, err)
	}
	source := strings.TrimSpace(args.Source.Path)
	if source == "" {
		return t.errResponse(req, fmt.Errorf("source.path is required"))
	}

	t.mgr.ClearBreakpoints(source)
	lines := make([]int, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		if bp.Line <= 0 {
			continue
		}
		if _, err := t.mgr.AddBreakpoint(source, bp.Line, bp.Condition); err != nil {
			continue
		}
		lines = append(lines, bp.Line)
	}
	sort.Ints(lines)

	t.mu.Lock()
	t.breakpoints[source] = lines
	t.mu.Unlock()

	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, map[string]any{"verified": true, "line": line})
	}
	return t.ok(req, map[string]any{"breakpoints": out})
}

type stackTraceArgs struct {
	StartFrame int `json:"startFrame,omitempty"`
	Levels     int `json:"levels,omitempty"`
}

func (t *Translator) stackTrace(req Request) Response {
	var args stackTraceArgs
	_ = unmarshalArgs(req.Arguments, &args)

	frames, err := t.mgr.CurrentFrames()
	if err != nil {
		return t.errResponse(req, err)
	}

	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		name := f.Name
		if name == "" {
			name = "<lambda>"
		}
		out = append(out, map[string]any{
			"id":     f.ID,
			"name":   name,
			"line":   clamp(f.Line),
			"column": clamp(f.Column),
			"source": map[string]any{"path": f.Source, "name": path.Base(f.Source)},
		})
	}

	start := args.StartFrame
	if start < 0 || start > len(out) {
		start = 0
	}
	end := len(out)
	if args.Levels > 0 && start+args.Levels < end {
		end = start + args.Levels
	}
	return t.ok(req, map[string]any{"stackFrames": out[start:end], "totalFrames": len(out)})
}

type scopesArgs struct {
	FrameID int `json:"frameId"`
}

// scopes always reports two scopes as spec.md §4.7 specifies (Locals,
// Upvalues); the Manager's environment model does not distinguish closed-
// over bindings from locals, so the Upvalues scope is reported empty
// rather than duplicating Locals' contents.
func (t *Translator) scopes(req Request) Response {
	var args scopesArgs
	if err := unmarshalArgs(req.Arguments, &args); err != nil {
		return t.errResponse(req, err)
	}
	if args.FrameID <= 0 {
		return t.errResponse(req, fmt.Errorf("frameId must be > 0"))
	}
	if _, err := t.mgr.FrameVariables(args.FrameID); err != nil {
		return t.errResponse(req, err)
	}
	return t.ok(req, map[string]any{
		"scopes": []map[string]any{
			{"name": "Locals", "variablesReference": args.FrameID, "expensive": false},
			{"name": "Upvalues", "variablesReference": args.FrameID + upvalueRefOffset, "expensive": false},
		},
	})
}

const upvalueRefOffset = 1 << 20

type variablesArgs struct {
	VariablesReference int `json:"variablesReference"`
}

func (t *Translator) variables(req Request) Response {
	var args variablesArgs
	if err := unmarshalArgs(req.Arguments, &args); err != nil {
		return t.errResponse(req, err)
	}
	if args.VariablesReference <= 0 {
		return t.errResponse(req, fmt.Errorf("variablesReference must be > 0"))
	}
	if args.VariablesReference >= upvalueRefOffset {
		return t.ok(req, map[string]any{"variables": []map[string]any{}})
	}

	vars, err := t.mgr.FrameVariables(args.VariablesReference)
	if err != nil {
		return t.errResponse(req, err)
	}
	out := make([]map[string]any, 0, len(vars))
	for _, v := range vars {
		out = append(out, map[string]any{
			"name":               v.Name,
			"value":              v.Value,
			"type":               v.Type,
			"variablesReference": 0,
		})
	}
	return t.ok(req, map[string]any{"variables": out})
}

type evaluateArgs struct {
	Expression string `json:"expression"`
	FrameID    int    `json:"frameId,omitempty"`
	Context    string `json:"context,omitempty"`
}

// evaluate supports both "hover" and "repl" contexts identically (spec.md
// §4.7); evaluation errors surface as success:false rather than panicking
// the session.
func (t *Translator) evaluate(req Request) Response {
	var args evaluateArgs
	if err := unmarshalArgs(req.Arguments, &args); err != nil {
		return t.errResponse(req, err)
	}
	if strings.TrimSpace(args.Expression) == "" {
		return t.errResponse(req, fmt.Errorf("expression is required"))
	}
	frameID := args.FrameID
	if frameID <= 0 {
		frameID = 1
	}
	value, typ, err := t.mgr.Evaluate(frameID, args.Expression)
	if err != nil {
		return t.errResponse(req, err)
	}
	return t.ok(req, map[string]any{"result": value, "type": typ, "variablesReference": 0})
}

func (t *Translator) ok(req Request, body any) Response {
	return Response{Type: "response", RequestSeq: req.Seq, Success: true, Command: req.Command, Body: body}
}

func (t *Translator) errResponse(req Request, err error) Response {
	return Response{Type: "response", RequestSeq: req.Seq, Success: false, Command: req.Command, Message: err.Error()}
}

func unmarshalArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func clamp(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
