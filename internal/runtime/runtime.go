// Package runtime implements the object model from spec.md §4.F: the
// compartment as an arena of refcounted, compartment-owned objects, the
// per-instance/function/table/memory/global/exception-type objects
// themselves, per-thread contexts, and tracing garbage collection.
//
// Per §9's "flatten to a tagged union" design note, every object in a
// compartment satisfies the Object interface and can be switched on by
// Kind rather than navigated through a class hierarchy.
package runtime

import "fmt"

// Kind is the tag of the flattened Object union (spec.md §9).
type Kind int

const (
	KindFunction Kind = iota
	KindTable
	KindMemory
	KindGlobal
	KindInstance
	KindExceptionType
	KindCompartment
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindInstance:
		return "instance"
	case KindExceptionType:
		return "exceptionType"
	case KindCompartment:
		return "compartment"
	case KindContext:
		return "context"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Object is any compartment-owned value: a Function, Table, Memory,
// Global, Instance, or ExceptionType (spec.md §4.F). Table elements and
// instance export maps are typed as Object so they can hold any of these.
type Object interface {
	Kind() Kind
	Compartment() *Compartment
}

// objectHeader is embedded by every concrete Object to provide the
// refcount and compartment back-pointer spec.md §4.F requires ("Each is
// refcounted and holds a back-pointer to its compartment").
type objectHeader struct {
	compartment *Compartment
	refs        int32
}

func (h *objectHeader) Compartment() *Compartment { return h.compartment }

// retain and release implement the external-strong-handle side of the
// refcount invariant (spec.md §8 "Refcount invariant"); tracing GC
// (Compartment.TryCollect) is the other side, operating at instance
// granularity per §4.F's stated free order.
func (h *objectHeader) retain() { h.refs++ }

// release decrements the refcount and reports whether it reached zero.
// Callers must hold the owning compartment's lock.
func (h *objectHeader) release() bool {
	h.refs--
	if h.refs < 0 {
		panic("runtime: refcount went negative")
	}
	return h.refs == 0
}
