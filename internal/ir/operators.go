package ir

// ImmKind classifies the shape of an operator's immediate operand(s), so
// the codec (internal/binary) and validator can decode/check generically
// instead of switching on each opcode by hand (spec.md §9 "Visitor over
// the operator table").
type ImmKind byte

const (
	ImmNone ImmKind = iota
	ImmBlockType
	ImmLabel       // a single branch-depth LEB
	ImmLabelTable  // br_table: a vector of depths plus a default
	ImmLocalIndex
	ImmGlobalIndex
	ImmFuncIndex
	ImmTypeIndex // call_indirect: type index + table index
	ImmTagIndex  // throw/rethrow/catch: exception-type index (rethrow's is a label depth, handled specially)
	ImmTableIndex
	ImmMemArg    // alignmentLog2 + offset
	ImmI32Const
	ImmI64Const
	ImmF32Const
	ImmF64Const
	ImmV128Const
	ImmRefType    // ref.null's type immediate
	ImmSelectType // select's explicit type-vector immediate
	ImmMemoryInit // data segment index + memory index (bulk memory)
	ImmDataIndex
	ImmElemIndex
	ImmTableInit // elem segment index + table index
	ImmTableCopy // dst table index + src table index
	ImmLaneIndex // SIMD lane-select immediates
)

// Feature names the proposal an operator belongs to, for the validator's
// feature-gating (spec.md §1 "a curated set of proposals") and for
// RuntimeConfig's CoreFeatures toggles (SPEC_FULL.md §A.3).
type Feature uint32

const (
	FeatureMVP Feature = 1 << iota
	FeatureSignExtension
	FeatureNonTrappingFloatToInt
	FeatureBulkMemory
	FeatureReferenceTypes
	FeatureSIMD
	FeatureThreads
	FeatureExceptionHandling

	// FeatureAll enables every proposal this module implements, the
	// default a RuntimeConfig starts from (SPEC_FULL.md §A.3), mirroring
	// the teacher's api.CoreFeaturesV2 "everything up to the current
	// snapshot" convention.
	FeatureAll = FeatureMVP | FeatureSignExtension | FeatureNonTrappingFloatToInt |
		FeatureBulkMemory | FeatureReferenceTypes | FeatureSIMD | FeatureThreads |
		FeatureExceptionHandling
)

// Name returns the proposal's wast-style hyphenated name, for error
// messages naming a disabled feature (mirrors the teacher's
// api.CoreFeatures.String()).
func (f Feature) Name() string {
	switch f {
	case FeatureMVP:
		return "mvp"
	case FeatureSignExtension:
		return "sign-extension-ops"
	case FeatureNonTrappingFloatToInt:
		return "non-trapping-float-to-int"
	case FeatureBulkMemory:
		return "bulk-memory"
	case FeatureReferenceTypes:
		return "reference-types"
	case FeatureSIMD:
		return "simd"
	case FeatureThreads:
		return "threads"
	case FeatureExceptionHandling:
		return "exception-handling"
	default:
		return "unknown"
	}
}

// Signature describes an operator's static stack effect for the common
// case where it does not depend on a block type or the target's label
// type (those are handled specially by the validator).
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// OperatorInfo is one row of the operator table: opcode, name, immediate
// shape, static signature (when applicable), and feature gate. It is the
// single source of truth the codec and validator both read
// (spec.md glossary "operator table").
type OperatorInfo struct {
	Opcode    Opcode
	Name      string
	Imm       ImmKind
	Signature Signature
	Feature   Feature
}

var operatorTable = map[Opcode]*OperatorInfo{}

func reg(op Opcode, name string, imm ImmKind, feature Feature, params, results []ValueType) {
	operatorTable[op] = &OperatorInfo{Opcode: op, Name: name, Imm: imm, Feature: feature, Signature: Signature{params, results}}
}

func i32(n int) []ValueType { return repeat(ValueTypeI32, n) }
func repeat(t ValueType, n int) []ValueType {
	if n == 0 {
		return nil
	}
	out := make([]ValueType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func v(ts ...ValueType) []ValueType { return ts }

func init() {
	const (
		i32t = ValueTypeI32
		i64t = ValueTypeI64
		f32t = ValueTypeF32
		f64t = ValueTypeF64
		v128 = ValueTypeV128
	)

	// Control & structured instructions: most have special-cased stack
	// effects in the validator (block types, label unification) and are
	// registered here mainly for name/immediate-shape lookup.
	reg(OpUnreachable, "unreachable", ImmNone, FeatureMVP, nil, nil)
	reg(OpNop, "nop", ImmNone, FeatureMVP, nil, nil)
	reg(OpBlock, "block", ImmBlockType, FeatureMVP, nil, nil)
	reg(OpLoop, "loop", ImmBlockType, FeatureMVP, nil, nil)
	reg(OpIf, "if", ImmBlockType, FeatureMVP, v(i32t), nil)
	reg(OpElse, "else", ImmNone, FeatureMVP, nil, nil)
	reg(OpTry, "try", ImmBlockType, FeatureExceptionHandling, nil, nil)
	reg(OpCatch, "catch", ImmTagIndex, FeatureExceptionHandling, nil, nil)
	reg(OpThrow, "throw", ImmTagIndex, FeatureExceptionHandling, nil, nil)
	reg(OpRethrow, "rethrow", ImmLabel, FeatureExceptionHandling, nil, nil)
	reg(OpEnd, "end", ImmNone, FeatureMVP, nil, nil)
	reg(OpBr, "br", ImmLabel, FeatureMVP, nil, nil)
	reg(OpBrIf, "br_if", ImmLabel, FeatureMVP, nil, nil)
	reg(OpBrTable, "br_table", ImmLabelTable, FeatureMVP, nil, nil)
	reg(OpReturn, "return", ImmNone, FeatureMVP, nil, nil)
	reg(OpCall, "call", ImmFuncIndex, FeatureMVP, nil, nil)
	reg(OpCallIndirect, "call_indirect", ImmTypeIndex, FeatureMVP, nil, nil)

	reg(OpDrop, "drop", ImmNone, FeatureMVP, nil, nil)
	reg(OpSelect, "select", ImmNone, FeatureMVP, nil, nil)
	reg(OpSelectT, "select", ImmSelectType, FeatureReferenceTypes, nil, nil)

	reg(OpLocalGet, "local.get", ImmLocalIndex, FeatureMVP, nil, nil)
	reg(OpLocalSet, "local.set", ImmLocalIndex, FeatureMVP, nil, nil)
	reg(OpLocalTee, "local.tee", ImmLocalIndex, FeatureMVP, nil, nil)
	reg(OpGlobalGet, "global.get", ImmGlobalIndex, FeatureMVP, nil, nil)
	reg(OpGlobalSet, "global.set", ImmGlobalIndex, FeatureMVP, nil, nil)

	reg(OpTableGet, "table.get", ImmTableIndex, FeatureReferenceTypes, nil, nil)
	reg(OpTableSet, "table.set", ImmTableIndex, FeatureReferenceTypes, nil, nil)

	// Loads/stores: natural alignment in bytes is encoded in the name
	// comment for the validator's alignment check (§4.D "Memory operators").
	reg(OpI32Load, "i32.load", ImmMemArg, FeatureMVP, v(i32t), v(i32t))
	reg(OpI64Load, "i64.load", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpF32Load, "f32.load", ImmMemArg, FeatureMVP, v(i32t), v(f32t))
	reg(OpF64Load, "f64.load", ImmMemArg, FeatureMVP, v(i32t), v(f64t))
	reg(OpI32Load8S, "i32.load8_s", ImmMemArg, FeatureMVP, v(i32t), v(i32t))
	reg(OpI32Load8U, "i32.load8_u", ImmMemArg, FeatureMVP, v(i32t), v(i32t))
	reg(OpI32Load16S, "i32.load16_s", ImmMemArg, FeatureMVP, v(i32t), v(i32t))
	reg(OpI32Load16U, "i32.load16_u", ImmMemArg, FeatureMVP, v(i32t), v(i32t))
	reg(OpI64Load8S, "i64.load8_s", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI64Load8U, "i64.load8_u", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI64Load16S, "i64.load16_s", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI64Load16U, "i64.load16_u", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI64Load32S, "i64.load32_s", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI64Load32U, "i64.load32_u", ImmMemArg, FeatureMVP, v(i32t), v(i64t))
	reg(OpI32Store, "i32.store", ImmMemArg, FeatureMVP, v(i32t, i32t), nil)
	reg(OpI64Store, "i64.store", ImmMemArg, FeatureMVP, v(i32t, i64t), nil)
	reg(OpF32Store, "f32.store", ImmMemArg, FeatureMVP, v(i32t, f32t), nil)
	reg(OpF64Store, "f64.store", ImmMemArg, FeatureMVP, v(i32t, f64t), nil)
	reg(OpI32Store8, "i32.store8", ImmMemArg, FeatureMVP, v(i32t, i32t), nil)
	reg(OpI32Store16, "i32.store16", ImmMemArg, FeatureMVP, v(i32t, i32t), nil)
	reg(OpI64Store8, "i64.store8", ImmMemArg, FeatureMVP, v(i32t, i64t), nil)
	reg(OpI64Store16, "i64.store16", ImmMemArg, FeatureMVP, v(i32t, i64t), nil)
	reg(OpI64Store32, "i64.store32", ImmMemArg, FeatureMVP, v(i32t, i64t), nil)
	reg(OpMemorySize, "memory.size", ImmNone, FeatureMVP, nil, v(i32t))
	reg(OpMemoryGrow, "memory.grow", ImmNone, FeatureMVP, v(i32t), v(i32t))

	reg(OpI32Const, "i32.const", ImmI32Const, FeatureMVP, nil, v(i32t))
	reg(OpI64Const, "i64.const", ImmI64Const, FeatureMVP, nil, v(i64t))
	reg(OpF32Const, "f32.const", ImmF32Const, FeatureMVP, nil, v(f32t))
	reg(OpF64Const, "f64.const", ImmF64Const, FeatureMVP, nil, v(f64t))

	// i32 relational/arithmetic (0x45-0x78 in the real encoding; this
	// core allocates them by name rather than by the official byte so
	// the table stays a single readable source of truth).
	numName := []string{
		"eqz", "eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u",
	}
	for i, n := range numName {
		op := Opcode(0x45 + i)
		params := v(i32t, i32t)
		if n == "eqz" {
			params = v(i32t)
		}
		reg(op, "i32."+n, ImmNone, FeatureMVP, params, v(i32t))
	}
	base := 0x45 + len(numName)
	for i, n := range numName {
		op := Opcode(base + i)
		params := v(i64t, i64t)
		if n == "eqz" {
			params = v(i64t)
		}
		reg(op, "i64."+n, ImmNone, FeatureMVP, params, v(i32t))
	}
	base += len(numName)
	floatCmp := []string{"eq", "ne", "lt", "gt", "le", "ge"}
	for i, n := range floatCmp {
		reg(Opcode(base+i), "f32."+n, ImmNone, FeatureMVP, v(f32t, f32t), v(i32t))
	}
	base += len(floatCmp)
	for i, n := range floatCmp {
		reg(Opcode(base+i), "f64."+n, ImmNone, FeatureMVP, v(f64t, f64t), v(i32t))
	}
	base += len(floatCmp)

	i32arith := []string{"clz", "ctz", "popcnt"}
	for i, n := range i32arith {
		reg(Opcode(base+i), "i32."+n, ImmNone, FeatureMVP, v(i32t), v(i32t))
	}
	base += len(i32arith)
	i32bin := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u", "and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	for i, n := range i32bin {
		reg(Opcode(base+i), "i32."+n, ImmNone, FeatureMVP, v(i32t, i32t), v(i32t))
	}
	base += len(i32bin)

	i64arith := []string{"clz", "ctz", "popcnt"}
	for i, n := range i64arith {
		reg(Opcode(base+i), "i64."+n, ImmNone, FeatureMVP, v(i64t), v(i64t))
	}
	base += len(i64arith)
	i64bin := []string{"add", "sub", "mul", "div_s", "div_u", "rem_s", "rem_u", "and", "or", "xor", "shl", "shr_s", "shr_u", "rotl", "rotr"}
	for i, n := range i64bin {
		reg(Opcode(base+i), "i64."+n, ImmNone, FeatureMVP, v(i64t, i64t), v(i64t))
	}
	base += len(i64bin)

	f32unary := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt"}
	for i, n := range f32unary {
		reg(Opcode(base+i), "f32."+n, ImmNone, FeatureMVP, v(f32t), v(f32t))
	}
	base += len(f32unary)
	f32bin := []string{"add", "sub", "mul", "div", "min", "max", "copysign"}
	for i, n := range f32bin {
		reg(Opcode(base+i), "f32."+n, ImmNone, FeatureMVP, v(f32t, f32t), v(f32t))
	}
	base += len(f32bin)
	f64unary := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt"}
	for i, n := range f64unary {
		reg(Opcode(base+i), "f64."+n, ImmNone, FeatureMVP, v(f64t), v(f64t))
	}
	base += len(f64unary)
	f64bin := []string{"add", "sub", "mul", "div", "min", "max", "copysign"}
	for i, n := range f64bin {
		reg(Opcode(base+i), "f64."+n, ImmNone, FeatureMVP, v(f64t, f64t), v(f64t))
	}
	base += len(f64bin)

	// Conversions.
	type conv struct {
		name    string
		from    ValueType
		to      ValueType
		feature Feature
	}
	convs := []conv{
		{"i32.wrap_i64", i64t, i32t, FeatureMVP},
		{"i32.trunc_f32_s", f32t, i32t, FeatureMVP},
		{"i32.trunc_f32_u", f32t, i32t, FeatureMVP},
		{"i32.trunc_f64_s", f64t, i32t, FeatureMVP},
		{"i32.trunc_f64_u", f64t, i32t, FeatureMVP},
		{"i64.extend_i32_s", i32t, i64t, FeatureMVP},
		{"i64.extend_i32_u", i32t, i64t, FeatureMVP},
		{"i64.trunc_f32_s", f32t, i64t, FeatureMVP},
		{"i64.trunc_f32_u", f32t, i64t, FeatureMVP},
		{"i64.trunc_f64_s", f64t, i64t, FeatureMVP},
		{"i64.trunc_f64_u", f64t, i64t, FeatureMVP},
		{"f32.convert_i32_s", i32t, f32t, FeatureMVP},
		{"f32.convert_i32_u", i32t, f32t, FeatureMVP},
		{"f32.convert_i64_s", i64t, f32t, FeatureMVP},
		{"f32.convert_i64_u", i64t, f32t, FeatureMVP},
		{"f32.demote_f64", f64t, f32t, FeatureMVP},
		{"f64.convert_i32_s", i32t, f64t, FeatureMVP},
		{"f64.convert_i32_u", i32t, f64t, FeatureMVP},
		{"f64.convert_i64_s", i64t, f64t, FeatureMVP},
		{"f64.convert_i64_u", i64t, f64t, FeatureMVP},
		{"f64.promote_f32", f32t, f64t, FeatureMVP},
		{"i32.reinterpret_f32", f32t, i32t, FeatureMVP},
		{"i64.reinterpret_f64", f64t, i64t, FeatureMVP},
		{"f32.reinterpret_i32", i32t, f32t, FeatureMVP},
		{"f64.reinterpret_i64", i64t, f64t, FeatureMVP},
	}
	for i, c := range convs {
		reg(Opcode(base+i), c.name, ImmNone, c.feature, v(c.from), v(c.to))
	}
	base += len(convs)

	// Sign-extension proposal (single-byte forms 0xC0-0xC4 in the real
	// encoding, kept contiguous here too).
	signExt := []struct {
		name string
		t    ValueType
	}{
		{"i32.extend8_s", i32t}, {"i32.extend16_s", i32t},
		{"i64.extend8_s", i64t}, {"i64.extend16_s", i64t}, {"i64.extend32_s", i64t},
	}
	for i, s := range signExt {
		reg(Opcode(base+i), s.name, ImmNone, FeatureSignExtension, v(s.t), v(s.t))
	}

	reg(OpRefNull, "ref.null", ImmRefType, FeatureReferenceTypes, nil, nil)
	reg(OpRefIsNull, "ref.is_null", ImmNone, FeatureReferenceTypes, nil, v(i32t))
	reg(OpRefFunc, "ref.func", ImmFuncIndex, FeatureReferenceTypes, nil, v(ValueTypeFuncRef))

	// Non-trapping (saturating) float-to-int conversions, 0xFC-prefixed.
	satConvs := []struct {
		sub  byte
		name string
		from, to ValueType
	}{
		{MiscI32TruncSatF32S, "i32.trunc_sat_f32_s", f32t, i32t},
		{MiscI32TruncSatF32U, "i32.trunc_sat_f32_u", f32t, i32t},
		{MiscI32TruncSatF64S, "i32.trunc_sat_f64_s", f64t, i32t},
		{MiscI32TruncSatF64U, "i32.trunc_sat_f64_u", f64t, i32t},
		{MiscI64TruncSatF32S, "i64.trunc_sat_f32_s", f32t, i64t},
		{MiscI64TruncSatF32U, "i64.trunc_sat_f32_u", f32t, i64t},
		{MiscI64TruncSatF64S, "i64.trunc_sat_f64_s", f64t, i64t},
		{MiscI64TruncSatF64U, "i64.trunc_sat_f64_u", f64t, i64t},
	}
	for _, s := range satConvs {
		reg(Pack(PrefixMisc, s.sub), s.name, ImmNone, FeatureNonTrappingFloatToInt, v(s.from), v(s.to))
	}

	reg(Pack(PrefixMisc, MiscMemoryInit), "memory.init", ImmMemoryInit, FeatureBulkMemory, v(i32t, i32t, i32t), nil)
	reg(Pack(PrefixMisc, MiscDataDrop), "data.drop", ImmDataIndex, FeatureBulkMemory, nil, nil)
	reg(Pack(PrefixMisc, MiscMemoryCopy), "memory.copy", ImmNone, FeatureBulkMemory, v(i32t, i32t, i32t), nil)
	reg(Pack(PrefixMisc, MiscMemoryFill), "memory.fill", ImmNone, FeatureBulkMemory, v(i32t, i32t, i32t), nil)
	reg(Pack(PrefixMisc, MiscTableInit), "table.init", ImmTableInit, FeatureBulkMemory, v(i32t, i32t, i32t), nil)
	reg(Pack(PrefixMisc, MiscElemDrop), "elem.drop", ImmElemIndex, FeatureBulkMemory, nil, nil)
	reg(Pack(PrefixMisc, MiscTableCopy), "table.copy", ImmTableCopy, FeatureBulkMemory, v(i32t, i32t, i32t), nil)
	reg(Pack(PrefixMisc, MiscTableGrow), "table.grow", ImmTableIndex, FeatureReferenceTypes, nil, v(i32t)) // operand types depend on table's elem kind; validator special-cases
	reg(Pack(PrefixMisc, MiscTableSize), "table.size", ImmTableIndex, FeatureReferenceTypes, nil, v(i32t))
	reg(Pack(PrefixMisc, MiscTableFill), "table.fill", ImmTableIndex, FeatureReferenceTypes, v(i32t, i32t), nil) // + elem operand, validator special-cases

	// Atomics (threads proposal, §4.I / §5).
	reg(Pack(PrefixAtomic, AtomicFence), "atomic.fence", ImmNone, FeatureThreads, nil, nil)
	reg(Pack(PrefixAtomic, AtomicNotify), "memory.atomic.notify", ImmMemArg, FeatureThreads, v(i32t, i32t), v(i32t))
	reg(Pack(PrefixAtomic, AtomicWait32), "memory.atomic.wait32", ImmMemArg, FeatureThreads, v(i32t, i32t, i64t), v(i32t))
	reg(Pack(PrefixAtomic, AtomicWait64), "memory.atomic.wait64", ImmMemArg, FeatureThreads, v(i32t, i64t, i64t), v(i32t))
	reg(Pack(PrefixAtomic, AtomicI32Load), "i32.atomic.load", ImmMemArg, FeatureThreads, v(i32t), v(i32t))
	reg(Pack(PrefixAtomic, AtomicI64Load), "i64.atomic.load", ImmMemArg, FeatureThreads, v(i32t), v(i64t))
	reg(Pack(PrefixAtomic, AtomicI32Store), "i32.atomic.store", ImmMemArg, FeatureThreads, v(i32t, i32t), nil)
	reg(Pack(PrefixAtomic, AtomicI64Store), "i64.atomic.store", ImmMemArg, FeatureThreads, v(i32t, i64t), nil)
	rmw32 := map[byte]string{
		AtomicI32RmwAdd: "add", AtomicI32RmwSub: "sub", AtomicI32RmwAnd: "and",
		AtomicI32RmwOr: "or", AtomicI32RmwXor: "xor", AtomicI32RmwXchg: "xchg",
	}
	for sub, name := range rmw32 {
		reg(Pack(PrefixAtomic, sub), "i32.atomic.rmw."+name, ImmMemArg, FeatureThreads, v(i32t, i32t), v(i32t))
	}
	rmw64 := map[byte]string{
		AtomicI64RmwAdd: "add", AtomicI64RmwSub: "sub", AtomicI64RmwAnd: "and",
		AtomicI64RmwOr: "or", AtomicI64RmwXor: "xor", AtomicI64RmwXchg: "xchg",
	}
	for sub, name := range rmw64 {
		reg(Pack(PrefixAtomic, sub), "i64.atomic.rmw."+name, ImmMemArg, FeatureThreads, v(i32t, i64t), v(i64t))
	}
	reg(Pack(PrefixAtomic, AtomicI32RmwCmpxchg), "i32.atomic.rmw.cmpxchg", ImmMemArg, FeatureThreads, v(i32t, i32t, i32t), v(i32t))
	reg(Pack(PrefixAtomic, AtomicI64RmwCmpxchg), "i64.atomic.rmw.cmpxchg", ImmMemArg, FeatureThreads, v(i32t, i64t, i64t), v(i64t))

	// SIMD: a representative subset (spec.md §9 open question — the
	// validator's accepted set is authoritative; this core does not
	// attempt the full ~230-operator SIMD matrix).
	reg(Pack(PrefixSIMD, 0x00), "v128.load", ImmMemArg, FeatureSIMD, v(i32t), v(v128))
	reg(Pack(PrefixSIMD, 0x0B), "v128.store", ImmMemArg, FeatureSIMD, v(i32t, v128), nil)
	reg(Pack(PrefixSIMD, 0x0C), "v128.const", ImmV128Const, FeatureSIMD, nil, v(v128))
	reg(Pack(PrefixSIMD, 0x4D), "v128.any_true", ImmNone, FeatureSIMD, v(v128), v(i32t))
	reg(Pack(PrefixSIMD, 0x0D), "i8x16.shuffle", ImmLaneIndex, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x0E), "i8x16.swizzle", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x0F), "i8x16.splat", ImmNone, FeatureSIMD, v(i32t), v(v128))
	reg(Pack(PrefixSIMD, 0x12), "i32x4.splat", ImmNone, FeatureSIMD, v(i32t), v(v128))
	reg(Pack(PrefixSIMD, 0x13), "i64x2.splat", ImmNone, FeatureSIMD, v(i64t), v(v128))
	reg(Pack(PrefixSIMD, 0x14), "f32x4.splat", ImmNone, FeatureSIMD, v(f32t), v(v128))
	reg(Pack(PrefixSIMD, 0x15), "f64x2.splat", ImmNone, FeatureSIMD, v(f64t), v(v128))
	reg(Pack(PrefixSIMD, 0x6E), "i32x4.add", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x71), "i32x4.sub", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x75), "i32x4.mul", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0xE0), "f32x4.add", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0xE4), "f32x4.mul", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x51), "v128.and", ImmNone, FeatureSIMD, v(v128, v128), v(v128))
	reg(Pack(PrefixSIMD, 0x50), "v128.not", ImmNone, FeatureSIMD, v(v128), v(v128))

	// Exception handling: catch_all (§1), the remaining forms are
	// single-byte (try/catch/throw/rethrow above).
	reg(Pack(PrefixExcept, ExceptCatchAll), "catch_all", ImmNone, FeatureExceptionHandling, nil, nil)
}

// Lookup returns the operator-table row for op, or nil if op is not a
// known opcode (a malformed-module condition, never `invalid`).
func Lookup(op Opcode) *OperatorInfo { return operatorTable[op] }

// NaturalAlignmentLog2 returns an operator's natural alignment (as log2
// of the byte count), used by the validator's "alignmentLog2 <=
// naturalAlignmentLog2" rule (§4.D) and by atomics' "must equal exactly"
// rule.
func NaturalAlignmentLog2(op Opcode) uint32 {
	info := Lookup(op)
	if info == nil {
		return 0
	}
	return uint32(resultWidthLog2(info, op))
}

// resultWidthLog2 derives natural alignment from the access width implied
// by the operator's name suffix (8/16/32/64), falling back to the result
// or first-param type's own width.
func resultWidthLog2(info *OperatorInfo, op Opcode) int {
	name := info.Name
	switch {
	case hasSuffix(name, "8") || hasSuffix(name, "8_s") || hasSuffix(name, "8_u"):
		return 0
	case hasSuffix(name, "16") || hasSuffix(name, "16_s") || hasSuffix(name, "16_u"):
		return 1
	case hasSuffix(name, "32") || hasSuffix(name, "32_s") || hasSuffix(name, "32_u"):
		return 2
	case hasSuffix(name, "64"):
		// memory.atomic.wait64's result is the i32 wake/timeout code, not
		// the i64 value it reads, so the result-type fallback below would
		// under-report its natural alignment; the name suffix is authoritative.
		return 3
	}
	var t ValueType
	if len(info.Signature.Results) > 0 {
		t = info.Signature.Results[0]
	} else if len(info.Signature.Params) > 0 {
		t = info.Signature.Params[len(info.Signature.Params)-1]
	}
	switch t.Size() {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	default:
		return 2
	}
}

func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}
