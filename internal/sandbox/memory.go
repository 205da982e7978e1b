package sandbox

import "fmt"

// guardPages is sized so that any load/store with a 32-bit effective
// address (the largest a wasm memory.{load,store} operator can compute:
// a 32-bit index plus a 32-bit static offset, before any multi-byte
// access width) lands inside the guard rather than past the reservation.
// 2^33 bytes covers index+offset overflow up to 2^32-1 plus the widest
// access (16 bytes for v128), with headroom; real engines (wasmtime,
// wasmer) reserve a comparable multi-GiB guard for the same reason. The
// guard is address space only: Reserve maps it PROT_NONE, so it costs no
// physical memory until something invalid touches it and faults.
const guardPages = (1 << 33) / WasmPageSize

// LinearMemory implements the §4.E "linear memory layout": reserve
// maxPages×65536+guard bytes up front, commit the first initialPages×65536
// read-write, and grow by committing more pages in place.
type LinearMemory struct {
	region       *Region
	currentPages uint32
	maxPages     uint32
}

// NewLinearMemory reserves and commits a memory per the module's declared
// limits (ir.MemType, already validated by internal/validate).
func NewLinearMemory(initialPages, maxPages uint32) (*LinearMemory, error) {
	region, err := Reserve(uint64(maxPages)+guardPages, 16) // 2^16 = WasmPageSize
	if err != nil {
		return nil, fmt.Errorf("sandbox: reserve linear memory: %w", err)
	}
	if initialPages > 0 {
		if err := region.Commit(0, uint64(initialPages)*WasmPageSize, AccessReadWrite); err != nil {
			_ = region.Release()
			return nil, fmt.Errorf("sandbox: commit initial %d pages: %w", initialPages, err)
		}
	}
	return &LinearMemory{region: region, currentPages: initialPages, maxPages: maxPages}, nil
}

// Pages returns the current committed size in pages.
func (m *LinearMemory) Pages() uint32 { return m.currentPages }

// Bytes returns the live, committed byte slice (length == Pages()*65536).
// Unlike Region.Bytes, it never exposes the guard or any uncommitted page.
func (m *LinearMemory) Bytes() []byte {
	return m.region.Bytes()[:uint64(m.currentPages)*WasmPageSize]
}

// Grow commits deltaPages more pages in place and returns the previous
// page count, or reports failure (host-exhaustion or exceeding the
// declared maximum) without changing state, matching memory.grow's trap-
// vs-return(-1) contract at the bytecode level (the caller decides which).
func (m *LinearMemory) Grow(deltaPages uint32) (previousPages uint32, ok bool) {
	if deltaPages == 0 {
		return m.currentPages, true
	}
	newPages := uint64(m.currentPages) + uint64(deltaPages)
	if newPages > uint64(m.maxPages) {
		return m.currentPages, false
	}
	if err := m.region.Commit(uint64(m.currentPages)*WasmPageSize, uint64(deltaPages)*WasmPageSize, AccessReadWrite); err != nil {
		return m.currentPages, false
	}
	previousPages = m.currentPages
	m.currentPages = uint32(newPages)
	return previousPages, true
}

// Release gives back the entire reservation, including the guard.
func (m *LinearMemory) Release() error {
	return m.region.Release()
}
