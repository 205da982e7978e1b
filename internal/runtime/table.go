package runtime

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/ir"
)

// Table holds a resizable array of funcref or externref elements
// (spec.md §4.F; §3 "Table"). Like Memory, it carries a compartment-wide
// small integer id so generated code can index into the runtime-data
// region.
type Table struct {
	objectHeader

	id       uint32
	elemType ir.ValueType
	elems    []Object
	max      uint32 // 0 means unbounded, matching ir.Limits' HasMax convention inverted for "unbounded"; see hasMax
	hasMax   bool
}

func (t *Table) Kind() Kind { return KindTable }

// ID is the compartment-wide small integer generated code uses to
// address this table's slot in the runtime-data region.
func (t *Table) ID() uint32 { return t.id }

// ElemType reports whether this table holds funcref or externref values.
func (t *Table) ElemType() ir.ValueType { return t.elemType }

// Size returns the current element count ("table.size").
func (t *Table) Size() uint32 { return uint32(len(t.elems)) }

// Max and HasMax report the table's declared maximum, for the linker's
// extern-type subtyping check (spec.md §4.G).
func (t *Table) Max() uint32   { return t.max }
func (t *Table) HasMax() bool  { return t.hasMax }

// NewTable allocates a table of the given element type, initial length,
// and optional maximum (spec.md §6.3 "createTable").
func NewTable(c *Compartment, elemType ir.ValueType, initial uint32, max uint32, hasMax bool) *Table {
	c.lock()
	id := c.tableIDs.alloc()
	tb := &Table{
		objectHeader: objectHeader{compartment: c, refs: 1},
		id:           id,
		elemType:     elemType,
		elems:        make([]Object, initial),
		max:          max,
		hasMax:       hasMax,
	}
	c.tables = append(c.tables, tb)
	c.unlock()
	return tb
}

// Get returns the element at idx ("getTableElement"), or a bounds error
// matching table.get's trap ("outOfBoundsTableAccess" at the bytecode
// level; the boundary layer translates this error into that trap kind).
func (t *Table) Get(idx uint32) (Object, error) {
	if idx >= uint32(len(t.elems)) {
		return nil, fmt.Errorf("runtime: table index %d out of bounds (size %d)", idx, len(t.elems))
	}
	return t.elems[idx], nil
}

// Set stores an element at idx ("setTableElement").
func (t *Table) Set(idx uint32, v Object) error {
	if idx >= uint32(len(t.elems)) {
		return fmt.Errorf("runtime: table index %d out of bounds (size %d)", idx, len(t.elems))
	}
	t.elems[idx] = v
	return nil
}

// Grow appends delta elements initialized to init, returning the previous
// size, or fails without changing state if the new size would exceed the
// declared maximum ("growTable"/"table.grow").
func (t *Table) Grow(delta uint32, init Object) (previous uint32, ok bool) {
	previous = uint32(len(t.elems))
	newSize := uint64(previous) + uint64(delta)
	if t.hasMax && newSize > uint64(t.max) {
		return previous, false
	}
	grown := make([]Object, newSize)
	copy(grown, t.elems)
	for i := previous; uint64(i) < newSize; i++ {
		grown[i] = init
	}
	t.elems = grown
	return previous, true
}

// Retain adds a strong reference on behalf of a second owner.
func (t *Table) Retain() {
	c := t.compartment
	c.lock()
	t.retain()
	c.unlock()
}

// Release drops a strong reference, deregistering the table from its
// compartment once the last owner releases it.
func (t *Table) Release() {
	c := t.compartment
	c.lock()
	if t.release() {
		c.removeTableLocked(t)
	}
	c.unlock()
}

func cloneTable(c *Compartment, orig *Table) *Table {
	return &Table{
		objectHeader: objectHeader{compartment: c, refs: 1},
		id:           orig.id,
		elemType:     orig.elemType,
		elems:        append([]Object(nil), orig.elems...),
		max:          orig.max,
		hasMax:       orig.hasMax,
	}
}
