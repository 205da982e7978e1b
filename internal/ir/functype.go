package ir

import (
	"strings"
	"sync"
)

// MaxResults bounds the number of results a function type may declare
// (spec.md §3 "multi-result allowed up to a configured cap, default 16").
const MaxResults = 16

// FuncType is an ordered sequence of parameter value types and an ordered
// sequence of result value types (spec.md §3 "Function types"). FuncType
// values are only ever obtained from an Interner, which guarantees that
// structurally-equal types compare == (interning, §4.B).
type FuncType struct {
	Params  []ValueType
	Results []ValueType

	// key caches the canonical string used for interning and hashing, set
	// once by the Interner and never mutated afterward.
	key string
}

// String renders a function type as "[params] -> [results]" for error
// messages and disassembly.
func (f *FuncType) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	b.WriteString("] -> [")
	for i, r := range f.Results {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(r.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports structural equality. Once both types come from the same
// Interner this degenerates to pointer equality, but Equal stays correct
// even across interners (e.g. comparing an import's declared type before
// it is resolved against an instance built in a different engine).
func (f *FuncType) Equal(o *FuncType) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	return valueTypesEqual(f.Params, o.Params) && valueTypesEqual(f.Results, o.Results)
}

func valueTypesEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func canonicalKey(params, results []ValueType) string {
	var b strings.Builder
	b.Grow(len(params) + len(results) + 2)
	for _, p := range params {
		b.WriteByte(byte(p))
	}
	b.WriteByte(0xff)
	for _, r := range results {
		b.WriteByte(byte(r))
	}
	return b.String()
}

// Interner is the engine-wide registry of function types described in
// spec.md §9 ("Global static tables"): a lazily populated map keyed by a
// canonical hash, protected by a single lock, so two structurally-equal
// function types anywhere in the engine are the same *FuncType object. The
// IR stores indices into one Interner per loaded Module (see Module.Types);
// the linker and instantiation paths additionally intern against a single
// process-wide Interner so cross-module function-type equality (required
// by the linker's "exact function-type equality" rule, §4.G) is a pointer
// comparison.
type Interner struct {
	mu    sync.Mutex
	types map[string]*FuncType
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{types: make(map[string]*FuncType)}
}

// Intern returns the canonical *FuncType for (params, results), creating
// it on first use. The returned slices are defensively copied so the
// caller's backing arrays may be reused or mutated afterward.
func (in *Interner) Intern(params, results []ValueType) *FuncType {
	key := canonicalKey(params, results)
	in.mu.Lock()
	defer in.mu.Unlock()
	if ft, ok := in.types[key]; ok {
		return ft
	}
	ft := &FuncType{
		Params:  append([]ValueType(nil), params...),
		Results: append([]ValueType(nil), results...),
		key:     key,
	}
	in.types[key] = ft
	return ft
}

// process is the process-wide Interner backing cross-module function-type
// identity (spec.md §9). It is intentionally the only mutable package-level
// state in this package.
var process = NewInterner()

// Intern interns (params, results) against the process-wide table.
func Intern(params, results []ValueType) *FuncType { return process.Intern(params, results) }

// Limits bounds a table's or memory's length: Min <= length, and if
// HasMax, length <= Max (spec.md §3 "Memory", "Table").
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Valid reports whether the limits satisfy "min <= max <= absoluteCap"
// (spec.md §4.D precondition 4).
func (l Limits) Valid(absoluteCap uint32) bool {
	if l.Min > absoluteCap {
		return false
	}
	if !l.HasMax {
		return true
	}
	return l.Min <= l.Max && l.Max <= absoluteCap
}

// TableType describes a table's element kind and length limits.
type TableType struct {
	ElemType RefKind
	Limits   Limits
}

// MemType describes a memory's page-count limits. A memory is Shared if
// it may be accessed concurrently by multiple contexts (spec.md §5).
type MemType struct {
	Limits Limits
	Shared bool
}

// GlobalType describes a global cell's value type and mutability.
type GlobalType struct {
	ValueType ValueType
	Mutable   bool
}

// ExternKind classifies an ExternType, mirroring the wire format's export
// kind byte (spec.md §6.1).
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
	// ExternKindExceptionType classifies an exception-type import/export
	// (the exception-handling proposal, §1); it has no wire-format
	// counterpart in the WebAssembly 1.0 binary but is threaded through
	// the same ExternType union (spec.md §4.B).
	ExternKindExceptionType
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	case ExternKindExceptionType:
		return "tag"
	default:
		return "unknown"
	}
}

// ExternType is the tagged union {function, table, memory, global,
// exceptionType} from spec.md §4.B. Exactly one of the typed fields is
// meaningful, selected by Kind.
type ExternType struct {
	Kind ExternKind

	Func          *FuncType // Kind == ExternKindFunc
	Table         TableType // Kind == ExternKindTable
	Mem           MemType   // Kind == ExternKindMemory
	Global        GlobalType
	ExceptionType *FuncType // Kind == ExternKindExceptionType; payload types
}

// Equal implements the subtyping rules used by the linker (§4.G):
// functions and exception types require exact FuncType equality; tables
// and memories require the import's limits to fit within the offered
// limits (not exact equality) so a generously sized export can satisfy a
// narrower import declaration; globals require exact mutability and value
// type match.
func (e ExternType) Equal(offered ExternType) bool {
	if e.Kind != offered.Kind {
		return false
	}
	switch e.Kind {
	case ExternKindFunc:
		return e.Func.Equal(offered.Func)
	case ExternKindExceptionType:
		return e.ExceptionType.Equal(offered.ExceptionType)
	case ExternKindTable:
		return e.Table.ElemType == offered.Table.ElemType && limitsFitWithin(e.Table.Limits, offered.Table.Limits)
	case ExternKindMemory:
		return e.Mem.Shared == offered.Mem.Shared && limitsFitWithin(e.Mem.Limits, offered.Mem.Limits)
	case ExternKindGlobal:
		return e.Global == offered.Global
	default:
		return false
	}
}

// limitsFitWithin reports whether an import declaring `want` is satisfied
// by an object whose actual limits are `have`: have must guarantee at
// least as much minimum capacity and no more than the declared maximum.
func limitsFitWithin(want, have Limits) bool {
	if have.Min < want.Min {
		return false
	}
	if want.HasMax {
		if !have.HasMax || have.Max > want.Max {
			return false
		}
	}
	return true
}
