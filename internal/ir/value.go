// Package ir defines the in-memory representation of a module shared by
// the codec, validator, linker, and execution boundary: value and
// function types (spec.md §3 "Value types and runtime values", "Function
// types") and the module container (§3 "Module").
package ir

import "fmt"

// ValueType is one of the scalar or reference kinds a value slot on the
// operand stack or in a local/global/parameter may hold.
type ValueType byte

const (
	// ValueTypeI32 is a 32-bit integer; arithmetic is two's-complement and
	// sign-agnostic except where an operator spells out signedness.
	ValueTypeI32 ValueType = iota
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64
	// ValueTypeF32 is a 32-bit IEEE-754 float.
	ValueTypeF32
	// ValueTypeF64 is a 64-bit IEEE-754 float.
	ValueTypeF64
	// ValueTypeV128 is a 128-bit SIMD vector (the SIMD proposal, §1).
	ValueTypeV128
	// ValueTypeFuncRef is a reference to a function, or null.
	ValueTypeFuncRef
	// ValueTypeExternRef is a host-opaque reference, or null.
	ValueTypeExternRef

	// valueTypeAny is the internal "any" marker used by the validator to
	// model polymorphic stack slots after unreachable code (§4.D). It is
	// never a type a producer may declare.
	valueTypeAny
)

// String renders the value type the way the binary format's human-readable
// dumps and trap messages do.
func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExternRef:
		return "externref"
	case valueTypeAny:
		return "<any>"
	default:
		return fmt.Sprintf("<unknown value type 0x%x>", byte(v))
	}
}

// IsReference reports whether v is one of the two reference kinds.
func (v ValueType) IsReference() bool {
	return v == ValueTypeFuncRef || v == ValueTypeExternRef
}

// IsNumeric reports whether v is an integer, float, or vector kind.
func (v ValueType) IsNumeric() bool {
	switch v {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128:
		return true
	}
	return false
}

// Size returns the storage width of v in bytes, as used by global and
// local slot layout.
func (v ValueType) Size() int {
	switch v {
	case ValueTypeI32, ValueTypeF32:
		return 4
	case ValueTypeI64, ValueTypeF64:
		return 8
	case ValueTypeV128:
		return 16
	case ValueTypeFuncRef, ValueTypeExternRef:
		return 8
	default:
		return 0
	}
}

// RefKind is the subset of ValueType that is a reference type; kept as a
// distinct type so table element kinds can't accidentally hold a numeric
// ValueType.
type RefKind = ValueType

// Value is a tagged runtime value: a 16-byte untagged union plus its kind
// (spec.md §3 "A tagged value"). Equality is bitwise per kind; floats
// compare by bit pattern so NaN payloads survive round-trips through the
// operand stack.
type Value struct {
	Type ValueType
	lo   uint64
	hi   uint64 // only the low 64 bits of hi are used, reserved for v128's upper half
}

// I32 constructs an i32 value, sign-extending into the bitwise slot.
func I32(v int32) Value { return Value{Type: ValueTypeI32, lo: uint64(uint32(v))} }

// I64 constructs an i64 value.
func I64(v int64) Value { return Value{Type: ValueTypeI64, lo: uint64(v)} }

// F32Bits constructs an f32 value from its raw bit pattern, preserving NaN
// payloads exactly (spec.md §3).
func F32Bits(bits uint32) Value { return Value{Type: ValueTypeF32, lo: uint64(bits)} }

// F64Bits constructs an f64 value from its raw bit pattern.
func F64Bits(bits uint64) Value { return Value{Type: ValueTypeF64, lo: bits} }

// V128 constructs a 128-bit vector value from its two 64-bit lanes.
func V128(lo, hi uint64) Value { return Value{Type: ValueTypeV128, lo: lo, hi: hi} }

// NullRef constructs a null reference of the given reference kind.
func NullRef(kind RefKind) Value { return Value{Type: kind, lo: 0} }

// Zero constructs the zero value of t: 0/0.0 for numeric kinds, null for
// reference kinds. Used for default local slots and for a StubResolver's
// synthesized global initializers (internal/linker.StubResolver).
func Zero(t ValueType) Value {
	if t.IsReference() {
		return NullRef(t)
	}
	return Value{Type: t}
}

// FuncRef constructs a non-null funcref pointing at a compartment-local
// function id (see internal/runtime.Function.ID).
func FuncRef(funcID uint64) Value { return Value{Type: ValueTypeFuncRef, lo: funcID + 1} }

// I32 returns the i32 bit pattern reinterpreted as a signed int32.
func (v Value) I32() int32 { return int32(uint32(v.lo)) }

// U32 returns the i32 bit pattern as an unsigned uint32.
func (v Value) U32() uint32 { return uint32(v.lo) }

// I64 returns the i64 value.
func (v Value) I64() int64 { return int64(v.lo) }

// U64 returns the i64 bit pattern as an unsigned uint64.
func (v Value) U64() uint64 { return v.lo }

// F32Bits returns the raw f32 bit pattern.
func (v Value) F32Bits() uint32 { return uint32(v.lo) }

// F64Bits returns the raw f64 bit pattern.
func (v Value) F64Bits() uint64 { return v.lo }

// V128Lanes returns the two 64-bit lanes of a v128 value.
func (v Value) V128Lanes() (lo, hi uint64) { return v.lo, v.hi }

// IsNullRef reports whether v is a null reference.
func (v Value) IsNullRef() bool { return v.Type.IsReference() && v.lo == 0 }

// FuncRefIndex returns the compartment-local function id held by a
// non-null funcref.
func (v Value) FuncRefIndex() uint64 { return v.lo - 1 }

// Equal implements the spec's bitwise-per-kind equality: same kind and
// identical underlying bits, so two differently-signaled NaNs with
// different payloads are unequal even though IEEE-754 comparison would
// consider both "not equal to anything" anyway.
func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.lo == o.lo && v.hi == o.hi
}
