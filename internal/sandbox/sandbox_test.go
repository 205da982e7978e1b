package sandbox

import (
	"testing"

	"github.com/wavmgo/wavm/internal/testing/require"
)

func TestReserveAndCommit(t *testing.T) {
	r, err := Reserve(4, 16) // 4 pages of 64KiB
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, uint64(4*WasmPageSize), r.Len())
	require.NoError(t, r.Commit(0, WasmPageSize, AccessReadWrite))

	b := r.Bytes()
	b[0] = 0x42
	require.Equal(t, byte(0x42), b[0])
}

func TestReserveAlignedRoundsUpPageSize(t *testing.T) {
	r, err := ReserveAligned(1, 16, 16)
	require.NoError(t, err)
	defer r.Release()
	require.True(t, r.Len() >= WasmPageSize)
}

func TestRegionCommitOutOfRange(t *testing.T) {
	r, err := Reserve(1, 16)
	require.NoError(t, err)
	defer r.Release()
	require.Error(t, r.Commit(0, 2*WasmPageSize, AccessReadWrite))
}

func TestLinearMemoryGrow(t *testing.T) {
	m, err := NewLinearMemory(1, 4)
	require.NoError(t, err)
	defer m.Release()

	require.Equal(t, uint32(1), m.Pages())
	require.Equal(t, WasmPageSize, len(m.Bytes()))

	prev, ok := m.Grow(2)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), m.Pages())
	require.Equal(t, 3*WasmPageSize, len(m.Bytes()))
}

func TestLinearMemoryGrowPastMaxFails(t *testing.T) {
	m, err := NewLinearMemory(1, 1)
	require.NoError(t, err)
	defer m.Release()

	_, ok := m.Grow(1)
	require.False(t, ok)
	require.Equal(t, uint32(1), m.Pages())
}

func TestLinearMemoryIsolation(t *testing.T) {
	m, err := NewLinearMemory(1, 1)
	require.NoError(t, err)
	defer m.Release()

	var faulted bool
	faulted, _ = Guarded(func() {
		// One page past the committed end, still inside the guard: a
		// direct write here must fault rather than silently succeed.
		base := &m.region.mem[WasmPageSize]
		*base = 1
	})
	require.True(t, faulted)
}

func TestMutexDebugOwnerMismatchPanics(t *testing.T) {
	var mu Mutex
	mu.Lock(1)
	defer mu.Unlock(1)

	captured := require.CapturePanic(func() {
		mu.Unlock(2)
	})
	require.NotNil(t, captured)
}

func TestEventAutoreset(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Wait() // does not block: primed by Set above

	require.False(t, e.WaitTimeout(1))
}
