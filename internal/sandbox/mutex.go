package sandbox

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const noOwner = 0

// Mutex wraps sync.Mutex with a debug "locked by this thread" check
// (spec.md §4.E). Callers identify themselves with a stable, non-zero
// owner token — the engine uses the owning Context's id — rather than an
// introspected goroutine id, since every caller already has one to hand.
type Mutex struct {
	mu    sync.Mutex
	owner int64
}

// Lock acquires the mutex on behalf of owner.
func (m *Mutex) Lock(owner int64) {
	if owner == noOwner {
		panic("sandbox: Mutex.Lock requires a non-zero owner token")
	}
	m.mu.Lock()
	atomic.StoreInt64(&m.owner, owner)
}

// Unlock releases the mutex. It panics if owner did not hold it, catching
// the common bug of unlocking from the wrong context.
func (m *Mutex) Unlock(owner int64) {
	cur := atomic.LoadInt64(&m.owner)
	if cur != owner {
		panic(fmt.Sprintf("sandbox: Mutex unlocked by %d but locked by %d", owner, cur))
	}
	atomic.StoreInt64(&m.owner, noOwner)
	m.mu.Unlock()
}

// HeldBy reports whether owner currently holds the lock. For assertions;
// the answer is stale the instant it's returned unless owner is the
// caller checking its own hold.
func (m *Mutex) HeldBy(owner int64) bool {
	return atomic.LoadInt64(&m.owner) == owner
}
