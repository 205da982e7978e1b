package runtime

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/sandbox"
)

// Memory is a linear memory object (spec.md §3 "Memory", §4.F), backed by
// a sandbox.LinearMemory reservation with a guard region so small
// constant-offset accesses never need an explicit bounds check at the
// generated-code level (spec.md §4.E).
type Memory struct {
	objectHeader

	id               uint32
	mem              *sandbox.LinearMemory
	max              uint32
	hasMax           bool
	shared           bool
	reservedMaxPages uint32 // the cap sandbox.NewLinearMemory was actually given
}

func (m *Memory) Kind() Kind { return KindMemory }

// ID is the compartment-wide small integer generated code uses to
// address this memory's base pointer in the runtime-data region.
func (m *Memory) ID() uint32 { return m.id }

// Bytes returns the live, committed byte slice (spec.md §8 "Isolation":
// no access outside this range may ever be observed as succeeding).
func (m *Memory) Bytes() []byte { return m.mem.Bytes() }

// Pages returns the current size in 65536-byte pages ("memory.size").
func (m *Memory) Pages() uint32 { return m.mem.Pages() }

// Shared reports whether this memory is declared shared (the threads
// proposal): atomics on it use host sequential-consistency semantics and
// memory.grow is serialized under the compartment mutex (spec.md §5).
func (m *Memory) Shared() bool { return m.shared }

// Max and HasMax report the memory's declared maximum, for the linker's
// extern-type subtyping check (spec.md §4.G).
func (m *Memory) Max() uint32  { return m.max }
func (m *Memory) HasMax() bool { return m.hasMax }

// NewMemory reserves and commits a memory per its declared limits
// (spec.md §6.3 "createMemory").
func NewMemory(c *Compartment, initialPages, maxPages uint32, hasMax bool, shared bool) (*Memory, error) {
	capPages := maxPages
	if !hasMax {
		capPages = 1 << 16 // wasm32 address-space ceiling in pages, matching internal/validate.MaxMemoryAbsoluteCap
	}
	lm, err := sandbox.NewLinearMemory(initialPages, capPages)
	if err != nil {
		return nil, fmt.Errorf("runtime: create memory: %w", err)
	}
	c.lock()
	id := c.memoryIDs.alloc()
	m := &Memory{
		objectHeader:     objectHeader{compartment: c, refs: 1},
		id:               id,
		mem:              lm,
		max:              maxPages,
		hasMax:           hasMax,
		shared:           shared,
		reservedMaxPages: capPages,
	}
	c.memories = append(c.memories, m)
	c.unlock()
	return m, nil
}

// Grow commits deltaPages more pages in place ("growMemory"/"memory.grow").
// Shared memories must be grown under the compartment mutex so readers
// observe either the pre- or post-grow size atomically (spec.md §5); the
// caller (internal/boundary) is responsible for taking that lock for
// shared memories before calling Grow.
func (m *Memory) Grow(deltaPages uint32) (previousPages uint32, ok bool) {
	return m.mem.Grow(deltaPages)
}

// Retain adds a strong reference on behalf of a second owner (e.g. a
// second instance importing this memory from the one that created it).
// The compartment lock is taken internally.
func (m *Memory) Retain() {
	c := m.compartment
	c.lock()
	m.retain()
	c.unlock()
}

// Release drops a strong reference, freeing the underlying reservation
// once the last owner releases it.
func (m *Memory) Release() {
	c := m.compartment
	c.lock()
	if m.release() {
		c.removeMemoryLocked(m)
	}
	c.unlock()
}

func cloneMemory(c *Compartment, orig *Memory) *Memory {
	lm, err := sandbox.NewLinearMemory(orig.mem.Pages(), orig.reservedMaxPages)
	if err != nil {
		// The original memory already proved this reservation size is
		// satisfiable on this host; a clone failing the identical
		// reservation is a fatal, not a recoverable, condition (spec.md
		// §7 "host allocation failure of core runtime data").
		panic(fmt.Sprintf("runtime: clone memory: %v", err))
	}
	copy(lm.Bytes(), orig.mem.Bytes())
	return &Memory{
		objectHeader:     objectHeader{compartment: c, refs: 1},
		id:               orig.id,
		mem:              lm,
		max:              orig.max,
		hasMax:           orig.hasMax,
		shared:           orig.shared,
		reservedMaxPages: orig.reservedMaxPages,
	}
}
