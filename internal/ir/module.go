package ir

// Module is the in-memory, immutable-after-load container for a decoded
// binary module (spec.md §3 "Module"). No cross-references are resolved:
// every field that names "another part of the module" is stored as an
// index, not a pointer, so the validator, linker, and execution boundary
// can all share this one representation without aliasing concerns.
type Module struct {
	// Types holds every function type named by the type section, in
	// declaration order; TypeIndex fields below index into it. Each
	// entry is also the module's local handle into the process-wide
	// Interner (spec.md §4.B).
	Types []*FuncType

	Imports []Import

	// FunctionTypeIndexes holds, for each module-defined (non-imported)
	// function, the index into Types of its declared signature.
	FunctionTypeIndexes []uint32

	Tables  []TableType
	Memories []MemType
	Globals []GlobalDefinition

	// ExceptionTypes holds the module-defined tags' payload types; each
	// is itself a FuncType with no results (spec.md §4.D.9, exception
	// handling proposal).
	ExceptionTypes []uint32 // indexes into Types

	Exports []Export

	// Start is the index of the start function, or -1 if none (§4.D.7).
	Start int64

	Elements []ElementSegment
	Code     []Code
	Data     []DataSegment

	// DataCount mirrors the optional data-count section: HasCount is
	// false when the section was absent, in which case validator rule
	// §4.D.9 does not apply and bulk-memory data.drop/memory.init must
	// use a count recovered differently (the decoder always records the
	// actual segment count once the data section itself is parsed).
	DataCount    uint32
	HasDataCount bool

	// CustomSections preserves every custom section's name and payload in
	// encounter order, regardless of where they appeared relative to
	// standard sections (§3 "Ordering invariant").
	CustomSections []CustomSection
}

// Import carries a (module, name, expected extern type) triple, and the
// kind-specific index space slot it occupies once linked.
type Import struct {
	Module string
	Name   string
	Type   ExternType
}

// GlobalDefinition is a module-defined (non-imported) global: its type
// plus a constant initializer expression (§4.D.5).
type GlobalDefinition struct {
	Type GlobalType
	Init ConstExpr
}

// ConstExprOp distinguishes the handful of operators legal in a constant
// initializer expression (§4.D.5/.8).
type ConstExprOp byte

const (
	ConstExprI32Const ConstExprOp = iota
	ConstExprI64Const
	ConstExprF32Const
	ConstExprF64Const
	ConstExprV128Const
	ConstExprRefNull
	ConstExprRefFunc
	ConstExprGlobalGet
)

// ConstExpr is a decoded constant initializer: exactly one operator
// (spec.md §4.D.5 "iNN.const, ... followed by end. No other operators.").
type ConstExpr struct {
	Op          ConstExprOp
	I32         int32
	I64         int64
	F32Bits     uint32
	F64Bits     uint64
	V128Lo      uint64
	V128Hi      uint64
	RefNullType RefKind
	Index       uint32 // function index (RefFunc) or global index (GlobalGet)
}

// Export carries a name, extern kind, and index into the corresponding
// combined (imports ++ definitions) index space.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// ElementSegment initializes a range of a table with function/extern
// references (§3, §4.D.8).
type ElementSegment struct {
	// TableIndex is the target table; Active segments have an Offset
	// constant expression, Passive/Declarative ones do not (bulk memory
	// proposal adds the latter two modes).
	TableIndex uint32
	Mode       SegmentMode
	Offset     ConstExpr
	RefType    RefKind
	// Init holds each element's constant initializer (func index via
	// ConstExprRefFunc, or an explicit ref.null/ref.func expression list
	// in the expression-init encoding).
	Init []ConstExpr
}

// DataSegment initializes a range of linear memory (§3, §4.D.8).
type DataSegment struct {
	MemoryIndex uint32
	Mode        SegmentMode
	Offset      ConstExpr
	Init        []byte
}

// SegmentMode classifies an element/data segment per the bulk-memory
// proposal: Active segments copy at instantiation time; Passive segments
// are only copied by an explicit memory.init/table.init; Declarative
// segments (elements only) exist solely to make ref.func validation see
// the referenced function and are dropped immediately.
type SegmentMode byte

const (
	SegmentActive SegmentMode = iota
	SegmentPassive
	SegmentDeclarative
)

// CustomSection preserves a custom section's name and payload verbatim,
// per §3's "preserved for tools" requirement.
type CustomSection struct {
	Name    string
	Payload []byte
}

// Code is one function body: its declared locals (grouped by run-length
// per the wire format) and its operator stream.
type Code struct {
	// LocalGroups records (count, type) runs exactly as encoded, since
	// the codec round-trip property (§8) requires reproducing the
	// original grouping byte-for-byte.
	LocalGroups []LocalGroup
	Body        OperatorStream
}

// LocalGroup is one (count, type) run in a function's local declarations.
type LocalGroup struct {
	Count uint32
	Type  ValueType
}

// NumLocals returns the total number of locals declared by the groups.
func (c Code) NumLocals() uint32 {
	var n uint32
	for _, g := range c.LocalGroups {
		n += g.Count
	}
	return n
}

// OperatorStream is a function body's decoded operator sequence alongside
// an index from byte offset (within the original wire-format function
// body, counted from the first operator byte) to logical operator index,
// so the validator, disassembler, and any future code generator can all
// refer to "the operator at byte offset N" without re-scanning (spec.md
// §4.C "share a single representation").
type OperatorStream struct {
	Ops []DecodedOp
	// ByteOffsets[i] is the byte offset of Ops[i] within the body.
	ByteOffsets []uint32
}

// Len returns the number of decoded operators.
func (s OperatorStream) Len() int { return len(s.Ops) }

// OperatorIndexAtByteOffset returns the logical index of the operator
// starting at or containing byteOffset, using the monotonic ByteOffsets
// index (binary search, since decode always appends in increasing offset
// order).
func (s OperatorStream) OperatorIndexAtByteOffset(byteOffset uint32) (int, bool) {
	lo, hi := 0, len(s.ByteOffsets)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.ByteOffsets[mid] <= byteOffset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, len(s.ByteOffsets) > 0
	}
	return lo - 1, true
}

// DecodedOp is one operator plus its decoded immediate(s). Only the
// fields relevant to Opcode's ImmKind are meaningful; the rest are zero.
type DecodedOp struct {
	Opcode Opcode

	BlockType      BlockType
	LabelIndex     uint32
	LabelTable     []uint32 // br_table: all targets, last is the default
	LocalIndex     uint32
	GlobalIndex    uint32
	FuncIndex      uint32
	TypeIndex      uint32
	TableIndex     uint32
	TagIndex       uint32
	SecondaryIndex uint32 // call_indirect's table index, table.init/copy's second table, memory.init/copy's second memory
	MemArgAlign    uint32 // log2
	MemArgOffset   uint32

	I32Const   int32
	I64Const   int64
	F32Bits    uint32
	F64Bits    uint64
	V128Lo     uint64
	V128Hi     uint64
	RefNullType RefKind
	SelectTypes []ValueType
	LaneIndexes []byte
}

// BlockType is block/loop/if/try's immediate: either an inline value type
// (0 or 1 results, the common case) or an index into Types for a full
// function type (multi-value).
type BlockType struct {
	// Kind selects interpretation: Empty (no params or results), Value
	// (single result in ValueResult), or Index (TypeIndex into Types).
	Kind       BlockTypeKind
	ValueResult ValueType
	TypeIndex   uint32
}

// BlockTypeKind discriminates BlockType's encoding.
type BlockTypeKind byte

const (
	BlockTypeEmpty BlockTypeKind = iota
	BlockTypeValue
	BlockTypeIndex
)

// FuncType resolves a BlockType against a module's interned type table,
// for use by the validator when establishing a control frame's param and
// result types (§4.D).
func (bt BlockType) FuncType(types []*FuncType) *FuncType {
	switch bt.Kind {
	case BlockTypeEmpty:
		return Intern(nil, nil)
	case BlockTypeValue:
		return Intern(nil, []ValueType{bt.ValueResult})
	default:
		return types[bt.TypeIndex]
	}
}
