package scriptexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/debugmgr"
)

func TestExecuteReturnsOkStatusOnSuccess(t *testing.T) {
	w := New()
	out, err := w.Execute(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
}

func TestExecuteReportsParseErrors(t *testing.T) {
	w := New()
	out, err := w.Execute(context.Background(), "let = = =", nil)
	require.NoError(t, err)
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, "SchemaViolation", out.ErrorKind)
}

func TestExecuteAbortsOnContextDeadline(t *testing.T) {
	w := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, err := w.Execute(ctx, "for true { }", nil)
	require.NoError(t, err)
	assert.Equal(t, "aborted", out.Status)
}

func TestInterruptAbortsRunningScript(t *testing.T) {
	w := New()
	done := make(chan Output, 1)
	go func() {
		out, _ := w.Execute(context.Background(), "for true { }", nil)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	w.Interrupt()

	select {
	case out := <-done:
		assert.Equal(t, "aborted", out.Status)
	case <-time.After(time.Second):
		t.Fatal("Execute never returned after Interrupt")
	}
}

func TestInstallDebuggerDelegatesBeforeNode(t *testing.T) {
	w := New()
	mgr := debugmgr.NewManager(nil)
	w.InstallDebugger(mgr)

	_, err := mgr.AddBreakpoint("<script>", 1, "")
	require.NoError(t, err)

	done := make(chan Output, 1)
	go func() {
		out, _ := w.Execute(context.Background(), "1", nil)
		done <- out
	}()

	reason := mgr.WaitForStop()
	assert.Equal(t, debugmgr.StopPaused, reason)
	mgr.Continue()

	select {
	case out := <-done:
		assert.Equal(t, "ok", out.Status)
	case <-time.After(time.Second):
		t.Fatal("Execute never returned after Continue")
	}
}

func TestTimeoutDefaultsWhenZero(t *testing.T) {
	ctx, cancel := Timeout(context.Background(), 0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(300*time.Second), deadline, 2*time.Second)
}
