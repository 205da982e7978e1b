// Package validate implements the static preconditions from spec.md §4.D:
// module-level well-formedness (index bounds, limits, ordering) and the
// per-function streaming abstract interpreter that type-checks every
// operator stream against the operator table in internal/ir.
package validate

import "github.com/wavmgo/wavm/internal/ir"

// MaxTableAbsoluteCap and MaxMemoryAbsoluteCap bound table length (elements)
// and memory size (pages) respectively, matching the "configured cap,
// default ..." language of spec.md §3; RuntimeConfig may tighten these but
// never loosen them past what this validator enforces as an absolute
// ceiling.
const (
	MaxTableAbsoluteCap  = 1 << 20
	MaxMemoryAbsoluteCap = 1 << 16 // 64Ki pages = 4GiB, the wasm32 address space ceiling
)

// Module validates m with every proposal this package implements enabled
// (ir.FeatureAll) and the absolute table/memory caps. Most callers that
// don't need a RuntimeConfig's tighter toggles (tests, internal tooling)
// want this rather than ModuleWithFeatures/ModuleWithLimits directly.
func Module(m *ir.Module) error {
	return ModuleWithFeatures(m, ir.FeatureAll)
}

// ModuleWithFeatures validates m like Module, gating the operator table's
// feature-tagged instructions and shared-memory declarations against
// enabled, but otherwise using the absolute table/memory caps.
func ModuleWithFeatures(m *ir.Module, enabled ir.Feature) error {
	return ModuleWithLimits(m, enabled, MaxTableAbsoluteCap, MaxMemoryAbsoluteCap)
}

// ModuleWithLimits validates every module-level precondition in spec.md
// §4.D (preconditions 1-9) and then every function body (§4.D, the
// per-function streaming interpreter in func.go). tableCap and memoryCap
// let a CompartmentConfig tighten the table-length/memory-page ceiling
// below MaxTableAbsoluteCap/MaxMemoryAbsoluteCap (SPEC_FULL.md §A.3
// sandbox sizing); a zero value falls back to the absolute cap, since
// zero is never a legal configured cap (an all-zero CompartmentConfig
// means "use the default", not "allow no tables/memories at all"). It
// does not mutate m.
func ModuleWithLimits(m *ir.Module, enabled ir.Feature, tableCap, memoryCap uint32) error {
	if tableCap == 0 || tableCap > MaxTableAbsoluteCap {
		tableCap = MaxTableAbsoluteCap
	}
	if memoryCap == 0 || memoryCap > MaxMemoryAbsoluteCap {
		memoryCap = MaxMemoryAbsoluteCap
	}

	if len(m.FunctionTypeIndexes) != len(m.Code) {
		return invalid(-1, "function and code section counts differ (%d vs %d)", len(m.FunctionTypeIndexes), len(m.Code))
	}

	for i, idx := range m.FunctionTypeIndexes {
		if idx >= uint32(len(m.Types)) {
			return invalid(-1, "function %d: type index %d out of range", i, idx)
		}
	}

	funcCount := m.FunctionCount()
	tableCount := m.TableCount()
	memCount := m.MemoryCount()
	globalCount := m.GlobalCount()
	exceptionCount := m.ExceptionTypeCount()

	for i, t := range m.Tables {
		if !t.Limits.Valid(tableCap) {
			return invalid(-1, "table %d: invalid limits", i)
		}
	}
	for i, mt := range m.Memories {
		if !mt.Limits.Valid(memoryCap) {
			return invalid(-1, "memory %d: invalid limits", i)
		}
		if mt.Shared && enabled&ir.FeatureThreads == 0 {
			return invalid(-1, "memory %d: shared memory requires feature %q", i, ir.FeatureThreads.Name())
		}
	}
	if memCount > 1 {
		return invalid(-1, "at most one memory is allowed")
	}

	for i, g := range m.Globals {
		if err := checkConstExpr(m, g.Init, g.Type.ValueType, globalCount-uint32(len(m.Globals))+uint32(i)); err != nil {
			return err
		}
	}

	for i, idx := range m.ExceptionTypes {
		if idx >= uint32(len(m.Types)) {
			return invalid(-1, "tag %d: type index %d out of range", i, idx)
		}
		if len(m.Types[idx].Results) != 0 {
			return invalid(-1, "tag %d: exception type must have no results", i)
		}
	}

	for i, e := range m.Exports {
		var count uint32
		switch e.Kind {
		case ir.ExternKindFunc:
			count = funcCount
		case ir.ExternKindTable:
			count = tableCount
		case ir.ExternKindMemory:
			count = memCount
		case ir.ExternKindGlobal:
			count = globalCount
		case ir.ExternKindExceptionType:
			count = exceptionCount
		}
		if e.Index >= count {
			return invalid(-1, "export %d (%q): index %d out of range", i, e.Name, e.Index)
		}
	}
	seen := make(map[string]bool, len(m.Exports))
	for _, e := range m.Exports {
		if seen[e.Name] {
			return invalid(-1, "duplicate export name %q", e.Name)
		}
		seen[e.Name] = true
	}

	if m.Start >= 0 {
		if uint32(m.Start) >= funcCount {
			return invalid(-1, "start function index %d out of range", m.Start)
		}
		ft, err := m.FuncTypeOf(uint32(m.Start))
		if err != nil {
			return invalid(-1, "%s", err)
		}
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return invalid(-1, "start function must have no params or results")
		}
	}

	for i, seg := range m.Elements {
		if seg.Mode == ir.SegmentActive {
			if seg.TableIndex >= tableCount {
				return invalid(-1, "element segment %d: table index %d out of range", i, seg.TableIndex)
			}
			if err := checkConstExpr(m, seg.Offset, ir.ValueTypeI32, 0); err != nil {
				return err
			}
		}
		for _, ce := range seg.Init {
			switch ce.Op {
			case ir.ConstExprRefFunc:
				if ce.Index >= funcCount {
					return invalid(-1, "element segment %d: function index %d out of range", i, ce.Index)
				}
			case ir.ConstExprRefNull, ir.ConstExprGlobalGet:
			default:
				return invalid(-1, "element segment %d: invalid initializer", i)
			}
		}
	}

	for i, seg := range m.Data {
		if seg.Mode == ir.SegmentActive {
			if seg.MemoryIndex >= memCount {
				return invalid(-1, "data segment %d: memory index %d out of range", i, seg.MemoryIndex)
			}
			if err := checkConstExpr(m, seg.Offset, ir.ValueTypeI32, 0); err != nil {
				return err
			}
		}
	}

	if m.HasDataCount && uint32(len(m.Data)) != m.DataCount {
		return invalid(-1, "data count %d does not match data section length %d", m.DataCount, len(m.Data))
	}

	for i := range m.Code {
		if err := validateFunc(m, i, enabled); err != nil {
			return err
		}
	}
	return nil
}

// checkConstExpr validates a constant initializer expression's shape and
// declared type (spec.md §4.D precondition 5): only the handful of
// constant-producing operators are legal, and a global.get target must
// name an imported, immutable global of the matching type (globals can
// only read imports in their own initializers, since no module-defined
// global is available yet at the point any initializer runs).
func checkConstExpr(m *ir.Module, ce ir.ConstExpr, want ir.ValueType, _ uint32) error {
	var got ir.ValueType
	switch ce.Op {
	case ir.ConstExprI32Const:
		got = ir.ValueTypeI32
	case ir.ConstExprI64Const:
		got = ir.ValueTypeI64
	case ir.ConstExprF32Const:
		got = ir.ValueTypeF32
	case ir.ConstExprF64Const:
		got = ir.ValueTypeF64
	case ir.ConstExprV128Const:
		got = ir.ValueTypeV128
	case ir.ConstExprRefNull:
		got = ce.RefNullType
	case ir.ConstExprRefFunc:
		if ce.Index >= m.FunctionCount() {
			return invalid(-1, "const expr: function index %d out of range", ce.Index)
		}
		got = ir.ValueTypeFuncRef
	case ir.ConstExprGlobalGet:
		if ce.Index >= uint32(m.ImportGlobalCount()) {
			return invalid(-1, "const expr: global.get may only reference an imported global")
		}
		gt := resolveImportedGlobalType(m, ce.Index)
		if gt.Mutable {
			return invalid(-1, "const expr: global.get target must be immutable")
		}
		got = gt.ValueType
	default:
		return invalid(-1, "invalid constant expression operator")
	}
	if got != want {
		return invalid(-1, "const expr: expected %s, got %s", want, got)
	}
	return nil
}

// resolveImportedGlobalType finds the i'th imported global's declared
// type, where i indexes the combined global index space (imports first).
func resolveImportedGlobalType(m *ir.Module, globalIdx uint32) ir.GlobalType {
	var n uint32
	for _, im := range m.Imports {
		if im.Type.Kind == ir.ExternKindGlobal {
			if n == globalIdx {
				return im.Type.Global
			}
			n++
		}
	}
	return ir.GlobalType{}
}
