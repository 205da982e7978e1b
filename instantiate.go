package wavm

import (
	"context"
	"fmt"

	"github.com/wavmgo/wavm/internal/boundary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/linker"
	"github.com/wavmgo/wavm/internal/runtime"
)

// Instantiate links compiled against cfg's imports and instantiates it
// into r's compartment ("instantiate", spec.md §6.3): resolving imports,
// creating every module-defined function/table/memory/global/exception
// type, copying active element and data segments, and finally running
// the start function if one is declared.
func (r *Runtime) Instantiate(ctx context.Context, compiled *CompiledModule, cfg *ModuleConfig) (*Instance, error) {
	m := compiled.module
	c := r.compartment

	var resolver linker.Resolver = cfg.imports
	if cfg.stubMissing {
		resolver = &linker.StubResolver{Inner: cfg.imports, Compartment: c}
	}
	resolved, err := linker.Link(c, m, resolver)
	if err != nil {
		return nil, err
	}

	shell := runtime.NewInstanceShell(c, m, cfg.name)

	funcs := make([]*runtime.Function, 0, m.FunctionCount())
	tables := make([]*runtime.Table, 0, m.TableCount())
	memories := make([]*runtime.Memory, 0, m.MemoryCount())
	globals := make([]*runtime.Global, 0, m.GlobalCount())
	exceptionTypes := make([]*runtime.ExceptionType, 0, m.ExceptionTypeCount())

	for i, imp := range m.Imports {
		obj := resolved[i]
		switch imp.Type.Kind {
		case ir.ExternKindFunc:
			funcs = append(funcs, obj.(*runtime.Function))
		case ir.ExternKindTable:
			tb := obj.(*runtime.Table)
			tb.Retain()
			tables = append(tables, tb)
		case ir.ExternKindMemory:
			mem := obj.(*runtime.Memory)
			mem.Retain()
			memories = append(memories, mem)
		case ir.ExternKindGlobal:
			globals = append(globals, obj.(*runtime.Global))
		case ir.ExternKindExceptionType:
			exceptionTypes = append(exceptionTypes, obj.(*runtime.ExceptionType))
		}
	}

	for i, typeIdx := range m.FunctionTypeIndexes {
		typ := m.Types[typeIdx]
		body := &m.Code[i]
		funcs = append(funcs, runtime.NewGuestFunction(c, typ, body, shell))
	}

	for _, t := range m.Tables {
		tables = append(tables, runtime.NewTable(c, t.ElemType, t.Limits.Min, t.Limits.Max, t.Limits.HasMax))
	}

	for _, mt := range m.Memories {
		mem, err := runtime.NewMemory(c, mt.Limits.Min, mt.Limits.Max, mt.Limits.HasMax, mt.Shared)
		if err != nil {
			return nil, fmt.Errorf("wavm: instantiate %q: %w", cfg.name, err)
		}
		memories = append(memories, mem)
	}

	for _, g := range m.Globals {
		globals = append(globals, runtime.NewGlobal(c, g.Type, evalConstExpr(g.Init, funcs, globals)))
	}

	for _, typeIdx := range m.ExceptionTypes {
		exceptionTypes = append(exceptionTypes, runtime.NewExceptionType(c, m.Types[typeIdx]))
	}

	if err := initElementSegments(m, tables, funcs, globals); err != nil {
		return nil, fmt.Errorf("wavm: instantiate %q: %w", cfg.name, err)
	}
	if err := initDataSegments(m, memories, funcs, globals); err != nil {
		return nil, fmt.Errorf("wavm: instantiate %q: %w", cfg.name, err)
	}

	exports := make(map[string]runtime.Object, len(m.Exports))
	for _, e := range m.Exports {
		switch e.Kind {
		case ir.ExternKindFunc:
			exports[e.Name] = funcs[e.Index]
		case ir.ExternKindTable:
			exports[e.Name] = tables[e.Index]
		case ir.ExternKindMemory:
			exports[e.Name] = memories[e.Index]
		case ir.ExternKindGlobal:
			exports[e.Name] = globals[e.Index]
		case ir.ExternKindExceptionType:
			exports[e.Name] = exceptionTypes[e.Index]
		}
	}

	shell.Finalize(funcs, tables, memories, globals, exceptionTypes, exports)

	if m.Start >= 0 {
		startCtx := runtime.NewContext(c)
		defer startCtx.Close()
		if _, err := boundary.Invoke(startCtx, shell.Func(uint32(m.Start)), nil); err != nil {
			return nil, fmt.Errorf("wavm: instantiate %q: start function: %w", cfg.name, err)
		}
	}

	return &Instance{runtime: r, inst: shell}, nil
}

// evalConstExpr evaluates a module-level constant initializer (spec.md
// §4.D.5) to the ir.Value it denotes. validate.Module has already
// checked every const expr's shape and index bounds, so this never needs
// to report an error of its own; funcs must already hold every
// module-defined function (ref.func may name one) and globals must
// already hold every global global.get may legally reference (imports
// only, per the validator).
func evalConstExpr(ce ir.ConstExpr, funcs []*runtime.Function, globals []*runtime.Global) ir.Value {
	switch ce.Op {
	case ir.ConstExprI32Const:
		return ir.I32(ce.I32)
	case ir.ConstExprI64Const:
		return ir.I64(ce.I64)
	case ir.ConstExprF32Const:
		return ir.F32Bits(ce.F32Bits)
	case ir.ConstExprF64Const:
		return ir.F64Bits(ce.F64Bits)
	case ir.ConstExprV128Const:
		return ir.V128(ce.V128Lo, ce.V128Hi)
	case ir.ConstExprRefNull:
		return ir.NullRef(ce.RefNullType)
	case ir.ConstExprRefFunc:
		return ir.FuncRef(uint64(funcs[ce.Index].ID()))
	case ir.ConstExprGlobalGet:
		return globals[ce.Index].Get()
	default:
		panic(fmt.Sprintf("wavm: unreachable: invalid const expr operator %v", ce.Op))
	}
}

// elementObject resolves one element segment entry to the runtime object
// a table slot should hold: a *runtime.Function for a funcref, or nil for
// ref.null. global.get entries resolve through the referenced global's
// current (funcref-typed) value.
func elementObject(ce ir.ConstExpr, funcs []*runtime.Function, globals []*runtime.Global) runtime.Object {
	switch ce.Op {
	case ir.ConstExprRefFunc:
		return funcs[ce.Index]
	case ir.ConstExprRefNull:
		return nil
	case ir.ConstExprGlobalGet:
		v := globals[ce.Index].Get()
		if v.IsNullRef() {
			return nil
		}
		return funcs[v.FuncRefIndex()]
	default:
		panic(fmt.Sprintf("wavm: unreachable: invalid element initializer operator %v", ce.Op))
	}
}

func initElementSegments(m *ir.Module, tables []*runtime.Table, funcs []*runtime.Function, globals []*runtime.Global) error {
	for i, seg := range m.Elements {
		if seg.Mode != ir.SegmentActive {
			continue
		}
		tb := tables[seg.TableIndex]
		offset := uint32(evalConstExpr(seg.Offset, funcs, globals).I32())
		for j, ce := range seg.Init {
			if err := tb.Set(offset+uint32(j), elementObject(ce, funcs, globals)); err != nil {
				return fmt.Errorf("element segment %d: %w", i, err)
			}
		}
	}
	return nil
}

func initDataSegments(m *ir.Module, memories []*runtime.Memory, funcs []*runtime.Function, globals []*runtime.Global) error {
	for i, seg := range m.Data {
		if seg.Mode != ir.SegmentActive {
			continue
		}
		mem := memories[seg.MemoryIndex]
		offset := uint32(evalConstExpr(seg.Offset, funcs, globals).I32())
		dst := mem.Bytes()
		if uint64(offset)+uint64(len(seg.Init)) > uint64(len(dst)) {
			return fmt.Errorf("data segment %d: out of bounds (offset %d, length %d, memory size %d)", i, offset, len(seg.Init), len(dst))
		}
		copy(dst[offset:], seg.Init)
	}
	return nil
}
