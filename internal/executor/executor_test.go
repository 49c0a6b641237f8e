package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToDefaultWorkerCountWhenNonPositive(t *testing.T) {
	e := New(0)
	require.NotNil(t, e)

	var running int32
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_ = e.Run(context.Background(), func(ctx context.Context) error {
				atomic.AddInt32(&running, 1)
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				done <- struct{}{}
				return nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

func TestRunBlocksUntilASlotIsFree(t *testing.T) {
	e := New(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- e.Run(context.Background(), func(ctx context.Context) error { return nil })
	}()

	select {
	case <-secondDone:
		t.Fatal("second Run completed before the first released its slot")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-secondDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Run never completed after the slot freed up")
	}
}

func TestRunReturnsCtxErrOnCancelledAcquire(t *testing.T) {
	e := New(1)
	block := make(chan struct{})
	go func() {
		_ = e.Run(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := e.Run(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestGoSendsResultExactlyOnce(t *testing.T) {
	e := New(2)
	ch := e.Go(context.Background(), func(ctx context.Context) error { return nil })
	select {
	case err := <-ch:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Go never sent a result")
	}
}

func TestSetGlobalWorkersIsNoopAfterGlobalUsed(t *testing.T) {
	first := Global()
	SetGlobalWorkers(99)
	assert.Same(t, first, Global())
}
