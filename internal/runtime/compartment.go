package runtime

import (
	"sync/atomic"

	"github.com/wavmgo/wavm/internal/sandbox"
)

// idAllocator hands out small, reusable integers for generated code to
// index into a compartment's runtime-data region (spec.md §4.F).
type idAllocator struct {
	next uint32
	free []uint32
}

func (a *idAllocator) alloc() uint32 {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *idAllocator) release(id uint32) {
	a.free = append(a.free, id)
}

func (a *idAllocator) clone() idAllocator {
	return idAllocator{next: a.next, free: append([]uint32(nil), a.free...)}
}

var compartmentCounter int64

// Compartment is an isolation domain (spec.md §3 GLOSSARY, §4.F): it owns
// a set of instances and the memories/tables/contexts they reference,
// each addressable by a compartment-wide small integer for generated
// code, plus the set of external strong handles (GCPointer) keeping
// otherwise-unreachable objects alive.
type Compartment struct {
	mu sandbox.Mutex
	id int64 // also this compartment's owner token for mu

	memoryIDs  idAllocator
	tableIDs   idAllocator
	contextIDs idAllocator
	funcIDs    idAllocator

	instances map[*Instance]struct{}
	memories  []*Memory
	tables    []*Table
	contexts  []*Context
	roots     map[*GCPointer]struct{}
}

func (c *Compartment) Kind() Kind                 { return KindCompartment }
func (c *Compartment) Compartment() *Compartment { return c }

// NewCompartment creates an empty compartment ("createCompartment", §6.3).
func NewCompartment() *Compartment {
	return &Compartment{
		id:        atomic.AddInt64(&compartmentCounter, 1),
		instances: make(map[*Instance]struct{}),
		roots:     make(map[*GCPointer]struct{}),
	}
}

func (c *Compartment) lock()   { c.mu.Lock(c.id) }
func (c *Compartment) unlock() { c.mu.Unlock(c.id) }

// Lock acquires the compartment-wide mutex that serializes operations
// spec.md §5 requires to be atomic across every context sharing this
// compartment — currently just memory.grow on a shared memory
// (internal/boundary takes this before calling Memory.Grow when
// Memory.Shared() is true). Callers must call Unlock.
func (c *Compartment) Lock() { c.lock() }

// Unlock releases the mutex acquired by Lock.
func (c *Compartment) Unlock() { c.unlock() }

// Clone produces a new compartment whose globals, memories, and tables
// are value-copies of the original and whose instances share the same
// immutable code, with ids preserved across the clone so generated code
// stays source-compatible ("cloneCompartment", spec.md §4.F, §6.3).
func (c *Compartment) Clone() *Compartment {
	c.lock()
	defer c.unlock()

	clone := &Compartment{
		id:         atomic.AddInt64(&compartmentCounter, 1),
		memoryIDs:  c.memoryIDs.clone(),
		tableIDs:   c.tableIDs.clone(),
		contextIDs: c.contextIDs.clone(),
		funcIDs:    c.funcIDs.clone(),
		instances:  make(map[*Instance]struct{}, len(c.instances)),
		roots:      make(map[*GCPointer]struct{}),
	}

	memByOrig := make(map[*Memory]*Memory, len(c.memories))
	for _, m := range c.memories {
		cm := cloneMemory(clone, m)
		clone.memories = append(clone.memories, cm)
		memByOrig[m] = cm
	}
	tblByOrig := make(map[*Table]*Table, len(c.tables))
	for _, tb := range c.tables {
		ct := cloneTable(clone, tb)
		clone.tables = append(clone.tables, ct)
		tblByOrig[tb] = ct
	}

	instByOrig := make(map[*Instance]*Instance, len(c.instances))
	for inst := range c.instances {
		instByOrig[inst] = cloneInstanceShell(clone, inst)
	}
	for orig, ci := range instByOrig {
		globByOrig := make(map[*Global]*Global, len(orig.globals))
		for _, g := range orig.globals {
			cg := cloneGlobal(clone, g)
			ci.globals = append(ci.globals, cg)
			globByOrig[g] = cg
		}
		for _, m := range orig.memories {
			ci.memories = append(ci.memories, memByOrig[m])
		}
		for _, tb := range orig.tables {
			ci.tables = append(ci.tables, tblByOrig[tb])
		}
		for _, fn := range orig.funcs {
			ci.funcs = append(ci.funcs, cloneFunction(ci, fn))
		}
		ci.exceptionTypes = orig.exceptionTypes // shared, immutable
		for name, o := range orig.exports {
			ci.exports[name] = remapObject(o, memByOrig, tblByOrig, globByOrig, instByOrig, ci)
		}
		clone.instances[ci] = struct{}{}
	}

	// Table elements may hold function references into any instance in
	// the compartment (the cycle shape §9 calls out); rewrite them to the
	// cloned instances' functions now that every instance has been
	// cloned.
	for _, ct := range clone.tables {
		for i, o := range ct.elems {
			if fn, ok := o.(*Function); ok && fn.instance != nil {
				ct.elems[i] = remapFunctionInto(fn, instByOrig)
			}
		}
	}

	return clone
}

func remapObject(
	o Object,
	memByOrig map[*Memory]*Memory,
	tblByOrig map[*Table]*Table,
	globByOrig map[*Global]*Global,
	instByOrig map[*Instance]*Instance,
	self *Instance,
) Object {
	switch v := o.(type) {
	case *Memory:
		return memByOrig[v]
	case *Table:
		return tblByOrig[v]
	case *Global:
		return globByOrig[v]
	case *Instance:
		if v == nil {
			return self
		}
		if mapped, ok := instByOrig[v]; ok {
			return mapped
		}
		return self
	case *Function:
		if v.instance == nil {
			return v // a free-standing host function: shared as-is
		}
		return remapFunctionInto(v, instByOrig)
	default:
		return o // *ExceptionType: immutable, shared
	}
}

func remapFunctionInto(fn *Function, instByOrig map[*Instance]*Instance) Object {
	owner, ok := instByOrig[fn.instance]
	if !ok {
		return fn
	}
	for i, of := range fn.instance.funcs {
		if of == fn {
			return owner.funcs[i]
		}
	}
	return fn
}

// TryCollect traces reachability from every external strong handle and
// frees instances unreachable from outside the compartment, in
// dependency order: instances first, then their owned objects (spec.md
// §4.F "Garbage collection"). It reports whether anything was freed.
//
// Reachability is traced at instance granularity: an instance is marked
// live if a GCPointer roots it directly, or roots one of its exported
// functions, or roots a function reachable through one of its tables —
// the cycle shape §9 calls out ("tables holding function references").
// Freestanding memories/tables/globals/exception types (created via
// createMemory et al. with no owning instance) are kept alive purely by
// refcount, since nothing traces into them except through an instance.
func (c *Compartment) TryCollect() bool {
	c.lock()
	defer c.unlock()

	marked := make(map[*Instance]bool, len(c.instances))
	var mark func(inst *Instance)
	mark = func(inst *Instance) {
		if inst == nil || marked[inst] {
			return
		}
		marked[inst] = true
		for _, tb := range inst.tables {
			for _, o := range tb.elems {
				if fn, ok := o.(*Function); ok {
					mark(fn.instance)
				}
			}
		}
		for _, o := range inst.exports {
			if fn, ok := o.(*Function); ok {
				mark(fn.instance)
			}
			if sub, ok := o.(*Instance); ok {
				mark(sub)
			}
		}
	}

	for root := range c.roots {
		switch o := root.target.(type) {
		case *Instance:
			mark(o)
		case *Function:
			mark(o.instance)
		}
	}

	collected := false
	for inst := range c.instances {
		if marked[inst] {
			continue
		}
		c.freeInstanceLocked(inst)
		delete(c.instances, inst)
		collected = true
	}
	return collected
}

// freeInstanceLocked releases an unreachable instance's owned objects
// (caller holds c.mu).
func (c *Compartment) freeInstanceLocked(inst *Instance) {
	for _, m := range inst.memories {
		if m.release() {
			c.removeMemoryLocked(m)
		}
	}
	for _, tb := range inst.tables {
		if tb.release() {
			c.removeTableLocked(tb)
		}
	}
	for _, fn := range inst.funcs {
		if fn.instance == inst {
			c.funcIDs.release(fn.id)
		}
	}
}

func (c *Compartment) removeMemoryLocked(m *Memory) {
	c.memoryIDs.release(m.id)
	for i, om := range c.memories {
		if om == m {
			c.memories = append(c.memories[:i], c.memories[i+1:]...)
			break
		}
	}
	_ = m.mem.Release()
}

func (c *Compartment) removeTableLocked(tb *Table) {
	c.tableIDs.release(tb.id)
	for i, ot := range c.tables {
		if ot == tb {
			c.tables = append(c.tables[:i], c.tables[i+1:]...)
			break
		}
	}
}

// GCPointer is an external strong handle registered with a compartment
// (spec.md §4.F "Roots"); it keeps its target, and everything the
// target's owning instance reaches, alive across TryCollect.
type GCPointer struct {
	compartment *Compartment
	target      Object
}

// NewGCPointer roots target for as long as the returned handle is not
// Released.
func (c *Compartment) NewGCPointer(target Object) *GCPointer {
	p := &GCPointer{compartment: c, target: target}
	c.lock()
	c.roots[p] = struct{}{}
	c.unlock()
	return p
}

// Get returns the handle's target.
func (p *GCPointer) Get() Object { return p.target }

// Release unroots the handle; the target may be collected on the next
// TryCollect if nothing else reaches it.
func (p *GCPointer) Release() {
	c := p.compartment
	c.lock()
	delete(c.roots, p)
	c.unlock()
}
