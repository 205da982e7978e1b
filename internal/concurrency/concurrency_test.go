package concurrency

import (
	"testing"
	"time"

	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/testing/require"
	"github.com/wavmgo/wavm/internal/trap"
)

func newSharedMemory(t *testing.T) (*runtime.Compartment, *runtime.Memory) {
	t.Helper()
	c := runtime.NewCompartment()
	mem, err := runtime.NewMemory(c, 1, 1, true, true)
	require.NoError(t, err)
	return c, mem
}

func TestWait32NotEqualReturnsImmediately(t *testing.T) {
	c, mem := newSharedMemory(t)
	defer c.TryCollect()
	wq := NewWaitQueues()
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	res, err := Wait32(ctx, wq, mem, 0, 42, 0)
	require.NoError(t, err)
	require.Equal(t, WaitNotEqual, res)
}

func TestWait32OnNonSharedMemoryTraps(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()
	mem, err := runtime.NewMemory(c, 1, 1, true, false)
	require.NoError(t, err)
	wq := NewWaitQueues()
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	_, err = Wait32(ctx, wq, mem, 0, 0, 0)
	require.Error(t, err)
	trapErr, ok := err.(*trap.Error)
	require.True(t, ok)
	require.Equal(t, trap.KindUnreachable, trapErr.Kind)
}

func TestWait32TimesOut(t *testing.T) {
	c, mem := newSharedMemory(t)
	defer c.TryCollect()
	wq := NewWaitQueues()
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	deadline := time.Now().Add(20 * time.Millisecond).UnixNano()
	res, err := Wait32(ctx, wq, mem, 0, 0, deadline)
	require.NoError(t, err)
	require.Equal(t, WaitTimedOut, res)
}

func TestNotifyWakesWaiter(t *testing.T) {
	c, mem := newSharedMemory(t)
	defer c.TryCollect()
	wq := NewWaitQueues()
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	done := make(chan WaitResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := Wait32(ctx, wq, mem, 0, 0, 0)
		errCh <- err
		done <- res
	}()

	// Give the waiter time to register before notifying.
	time.Sleep(20 * time.Millisecond)
	woken := Notify(wq, mem, 0, 1)
	require.Equal(t, uint32(1), woken)

	select {
	case res := <-done:
		require.Equal(t, WaitOK, res)
		require.NoError(t, <-errCh)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken within timeout")
	}
}

func TestNotifyWithNoWaitersReturnsZero(t *testing.T) {
	c, mem := newSharedMemory(t)
	defer c.TryCollect()
	wq := NewWaitQueues()

	woken := Notify(wq, mem, 0, 5)
	require.Equal(t, uint32(0), woken)
}

func TestSpawnAndJoin(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	h := Spawn(c, func(ctx *runtime.Context, arg int32) (int64, error) {
		return int64(arg) * 2, nil
	}, 21)

	result, err := h.Join()
	require.NoError(t, err)
	require.Equal(t, int64(42), result)
}

func TestFenceDoesNotPanic(t *testing.T) {
	Fence()
}
