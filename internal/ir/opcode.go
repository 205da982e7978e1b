package ir

// Opcode identifies one bytecode operator. The low byte is the wire-format
// opcode byte; operators introduced by a 2-byte encoding (prefix bytes
// 0xFC, 0xFD, 0xFE, 0xFB, §6.1) are packed into the high byte as a prefix
// tag so the whole space fits one Go integer without collisions between,
// say, plain opcode 0xFC and misc sub-opcode 0 (which would otherwise both
// be "0").
type Opcode uint32

// Prefix bytes that introduce a 2-byte opcode, per spec.md §6.1.
const (
	PrefixNone   byte = 0 // single-byte opcode, no prefix
	PrefixMisc   byte = 0xFC
	PrefixSIMD   byte = 0xFD
	PrefixAtomic byte = 0xFE
	PrefixExcept byte = 0xFB
)

const prefixShift = 8

// Pack builds the Opcode for a (prefix, sub-opcode) pair; prefix is
// PrefixNone for a plain single-byte opcode, in which case sub is the
// opcode byte itself.
func Pack(prefix, sub byte) Opcode { return Opcode(prefix)<<prefixShift | Opcode(sub) }

// Byte returns the wire-format opcode byte (the sub-opcode if prefixed).
func (o Opcode) Byte() byte { return byte(o) }

// Prefix returns the prefix byte, or PrefixNone for an unprefixed opcode.
func (o Opcode) Prefix() byte { return byte(o >> prefixShift) }

// Single-byte control, variable, table, and memory opcodes (WebAssembly
// 1.0 core plus the reference-types proposal's ref.* and table.get/set,
// and this core's single-byte exception-handling forms).
const (
	OpUnreachable  = Opcode(0x00)
	OpNop          = Opcode(0x01)
	OpBlock        = Opcode(0x02)
	OpLoop         = Opcode(0x03)
	OpIf           = Opcode(0x04)
	OpElse         = Opcode(0x05)
	OpTry          = Opcode(0x06)
	OpCatch        = Opcode(0x07)
	OpThrow        = Opcode(0x08)
	OpRethrow      = Opcode(0x09)
	OpEnd          = Opcode(0x0B)
	OpBr           = Opcode(0x0C)
	OpBrIf         = Opcode(0x0D)
	OpBrTable      = Opcode(0x0E)
	OpReturn       = Opcode(0x0F)
	OpCall         = Opcode(0x10)
	OpCallIndirect = Opcode(0x11)

	OpDrop    = Opcode(0x1A)
	OpSelect  = Opcode(0x1B)
	OpSelectT = Opcode(0x1C) // operand-typed select (reference types, §4.D)

	OpLocalGet  = Opcode(0x20)
	OpLocalSet  = Opcode(0x21)
	OpLocalTee  = Opcode(0x22)
	OpGlobalGet = Opcode(0x23)
	OpGlobalSet = Opcode(0x24)

	OpTableGet = Opcode(0x25)
	OpTableSet = Opcode(0x26)

	OpI32Load    = Opcode(0x28)
	OpI64Load    = Opcode(0x29)
	OpF32Load    = Opcode(0x2A)
	OpF64Load    = Opcode(0x2B)
	OpI32Load8S  = Opcode(0x2C)
	OpI32Load8U  = Opcode(0x2D)
	OpI32Load16S = Opcode(0x2E)
	OpI32Load16U = Opcode(0x2F)
	OpI64Load8S  = Opcode(0x30)
	OpI64Load8U  = Opcode(0x31)
	OpI64Load16S = Opcode(0x32)
	OpI64Load16U = Opcode(0x33)
	OpI64Load32S = Opcode(0x34)
	OpI64Load32U = Opcode(0x35)
	OpI32Store   = Opcode(0x36)
	OpI64Store   = Opcode(0x37)
	OpF32Store   = Opcode(0x38)
	OpF64Store   = Opcode(0x39)
	OpI32Store8  = Opcode(0x3A)
	OpI32Store16 = Opcode(0x3B)
	OpI64Store8  = Opcode(0x3C)
	OpI64Store16 = Opcode(0x3D)
	OpI64Store32 = Opcode(0x3E)
	OpMemorySize = Opcode(0x3F)
	OpMemoryGrow = Opcode(0x40)

	OpI32Const = Opcode(0x41)
	OpI64Const = Opcode(0x42)
	OpF32Const = Opcode(0x43)
	OpF64Const = Opcode(0x44)

	// Comparison, arithmetic, and conversion operators occupy 0x45-0xC4
	// contiguously (i32 compare, i64 compare, f32 compare, f64 compare,
	// i32 arithmetic, i64 arithmetic, f32 arithmetic, f64 arithmetic,
	// conversions, sign-extension). operatorTable in operators.go assigns
	// each its signature; see that file for the exhaustive list rather
	// than naming all ~120 of them here.

	OpRefNull   = Opcode(0xD0)
	OpRefIsNull = Opcode(0xD1)
	OpRefFunc   = Opcode(0xD2)
)

// Misc (0xFC-prefixed) sub-opcodes: non-trapping float-to-int conversions,
// and the bulk-memory/table proposal.
const (
	MiscI32TruncSatF32S byte = iota
	MiscI32TruncSatF32U
	MiscI32TruncSatF64S
	MiscI32TruncSatF64U
	MiscI64TruncSatF32S
	MiscI64TruncSatF32U
	MiscI64TruncSatF64S
	MiscI64TruncSatF64U
	MiscMemoryInit
	MiscDataDrop
	MiscMemoryCopy
	MiscMemoryFill
	MiscTableInit
	MiscElemDrop
	MiscTableCopy
	MiscTableGrow
	MiscTableSize
	MiscTableFill
)

// Atomic (0xFE-prefixed) sub-opcodes, the subset of the threads proposal
// this core implements: fence/notify/wait plus the width-tagged load,
// store, and read-modify-write operators needed for §4.I and §5.
const (
	AtomicNotify byte = 0x00
	AtomicWait32 byte = 0x01
	AtomicWait64 byte = 0x02
	AtomicFence  byte = 0x03

	AtomicI32Load byte = 0x10
	AtomicI64Load byte = 0x11
	AtomicI32Store byte = 0x17
	AtomicI64Store byte = 0x18

	AtomicI32RmwAdd byte = 0x1E
	AtomicI64RmwAdd byte = 0x1F
	AtomicI32RmwSub byte = 0x25
	AtomicI64RmwSub byte = 0x26
	AtomicI32RmwAnd byte = 0x2C
	AtomicI64RmwAnd byte = 0x2D
	AtomicI32RmwOr  byte = 0x33
	AtomicI64RmwOr  byte = 0x34
	AtomicI32RmwXor byte = 0x3A
	AtomicI64RmwXor byte = 0x3B
	AtomicI32RmwXchg byte = 0x41
	AtomicI64RmwXchg byte = 0x42
	AtomicI32RmwCmpxchg byte = 0x48
	AtomicI64RmwCmpxchg byte = 0x49
)

// Exception-handling (0xFB-prefixed) sub-opcodes beyond the single-byte
// throw/rethrow/try/catch forms already in the core opcode space.
const (
	ExceptCatchAll byte = 0x05
)
