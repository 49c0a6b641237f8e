package debugmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/interpreter"
)

func TestAddBreakpointIsIdempotentPerSourceLine(t *testing.T) {
	m := NewManager(nil)
	id1, err := m.AddBreakpoint("main.weft", 10, "")
	require.NoError(t, err)
	id2, err := m.AddBreakpoint("main.weft", 10, "x > 1")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	bps := m.ListBreakpoints("main.weft")
	require.Len(t, bps, 1)
	assert.Equal(t, "x > 1", bps[0].Condition)
}

func TestAddBreakpointValidatesInput(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddBreakpoint("main.weft", 0, "")
	assert.Error(t, err)
	_, err = m.AddBreakpoint("", 5, "")
	assert.Error(t, err)
}

func TestRemoveAndClearBreakpoints(t *testing.T) {
	m := NewManager(nil)
	id, err := m.AddBreakpoint("a.weft", 1, "")
	require.NoError(t, err)
	_, err = m.AddBreakpoint("a.weft", 2, "")
	require.NoError(t, err)

	require.NoError(t, m.RemoveBreakpoint(id))
	assert.Len(t, m.ListBreakpoints("a.weft"), 1)

	assert.Error(t, m.RemoveBreakpoint(999))

	removed := m.ClearBreakpoints("")
	assert.Equal(t, 1, removed)
	assert.Empty(t, m.ListBreakpoints(""))
}

func TestBeforeNodePausesAtBreakpointAndContinueResumes(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddBreakpoint("main.weft", 5, "")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.BeforeNode(interpreter.DebugEvent{Filename: "main.weft", Line: 5, FrameDepth: 0})
	}()

	reason := m.WaitForStop()
	assert.Equal(t, StopPaused, reason)
	assert.True(t, m.IsPaused())

	m.Continue()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("BeforeNode never returned after Continue")
	}
	assert.False(t, m.IsPaused())
}

func TestTerminateUnblocksPausedHookWithError(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddBreakpoint("main.weft", 1, "")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.BeforeNode(interpreter.DebugEvent{Filename: "main.weft", Line: 1})
	}()
	m.WaitForStop()

	m.Terminate()
	select {
	case err := <-errCh:
		assert.True(t, IsTerminated(err))
	case <-time.After(time.Second):
		t.Fatal("BeforeNode never returned after Terminate")
	}
}

func TestCurrentFramesRequiresPaused(t *testing.T) {
	m := NewManager(nil)
	_, err := m.CurrentFrames()
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestConditionalBreakpointSkipsOnEvalError(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddBreakpoint("main.weft", 3, "not a valid expression ###")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- m.BeforeNode(interpreter.DebugEvent{Filename: "main.weft", Line: 3, Env: interpreter.NewBaseEnvironment()})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("BeforeNode blocked despite a breakpoint condition eval error")
	}
	assert.False(t, m.IsPaused())
}
