package kernel

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/weftlang/weft/internal/dap"
	"github.com/weftlang/weft/internal/debugmgr"
	"github.com/weftlang/weft/internal/scriptexec"
)

// session is the per-client-session state the teacher's Kernel kept as bare
// fields (eval/env/executionCount) — here promoted to its own type because
// spec.md's Session entity (§3) also owns a debug manager, a DAP
// translator, and the pending_input_request invariant (§5: "at most one
// live").
type session struct {
	id string

	mu             sync.Mutex
	executor       *scriptexec.WeftExecutor
	executionCount int

	debugMgr  *debugmgr.Manager
	translator *dap.Translator

	pendingInput  chan string
	inputRequested atomic.Bool

	// execLock serializes execute_request handling for this session
	// (spec.md §4.4's concurrency note: "at most one execute_request is
	// being handled at any instant"). Execution now runs off the event
	// loop goroutine so a paused script never blocks other channels; a
	// second execute_request arriving for the same session while the
	// first is still running (or paused at a breakpoint) queues on this
	// lock rather than running concurrently against the shared evaluator.
	execLock sync.Mutex
}

func newSession(id string) *session {
	return &session{
		id:       id,
		executor: scriptexec.New(),
	}
}

// nextExecutionCount increments and returns the new execution_count
// (spec.md §4.5.1).
func (s *session) nextExecutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executionCount++
	return s.executionCount
}

// requestInput arms pending_input_request; returns false if one is already
// outstanding (spec.md §5 invariant: at most one live).
func (s *session) requestInput() (<-chan string, bool) {
	if !s.inputRequested.CompareAndSwap(false, true) {
		return nil, false
	}
	s.mu.Lock()
	s.pendingInput = make(chan string, 1)
	ch := s.pendingInput
	s.mu.Unlock()
	return ch, true
}

// fulfillInput satisfies the pending request, if any, with the reply's
// value content. Returns false if nothing was pending.
func (s *session) fulfillInput(value string) bool {
	s.mu.Lock()
	ch := s.pendingInput
	s.pendingInput = nil
	s.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- value
	close(ch)
	s.inputRequested.Store(false)
	return true
}

func (s *session) hasPendingInput() bool {
	return s.inputRequested.Load()
}

// stdinReader is the io.Reader handed to the script executor's SetInput: a
// script's input builtin reading from it publishes an input_request on the
// stdin channel (spec.md §4.4 step 4: "poll stdin ... if a pending_input_
// request exists, fulfill it") and blocks until the kernel's stdin poll
// delivers an input_reply.
type stdinReader struct {
	s       *session
	request func(prompt string) (string, bool)
	buf     strings.Reader
	primed  bool
}

func newStdinReader(s *session, request func(prompt string) (string, bool)) *stdinReader {
	return &stdinReader{s: s, request: request}
}

func (r *stdinReader) Read(p []byte) (int, error) {
	if !r.primed {
		value, ok := r.request("")
		if !ok {
			return 0, io.EOF
		}
		r.buf = *strings.NewReader(value + "\n")
		r.primed = true
	}
	n, err := r.buf.Read(p)
	if err == io.EOF {
		r.primed = false
	}
	return n, err
}
