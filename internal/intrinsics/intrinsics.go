// Package intrinsics implements spec.md §4.J, the declarative host-module
// framework: a host module is described as a collection of named
// functions, memories, tables, and globals, materialized at instantiate
// time into a runtime.Instance.
//
// The builder shape (HostModuleBuilder / HostFunctionBuilder /
// NewFunctionBuilder().WithFunc(...).Export(name)) is carried over from
// the teacher's own root-level builder.go, generalized from wazero's
// api.Module/context.Context convention to this engine's
// runtime.Context/ir.Value convention. WithFunc's reflection machinery
// (mapping a plain Go function's parameter/result kinds to WebAssembly
// value types) plays the same role as the teacher's internal/makefunc,
// just wrapping in the opposite calling direction: makefunc builds a Go
// function that calls into wasm, WithFunc here builds the
// runtime.HostFunc wasm calls into.
package intrinsics

import (
	"fmt"
	"math"
	"reflect"

	"github.com/wavmgo/wavm/internal/boundary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
)

var (
	contextType = reflect.TypeOf((*runtime.Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// FuncDef is one function entry of a HostModule, after WithFunc/
// WithGoFunc has resolved it to a concrete signature and callback.
type FuncDef struct {
	ExportName string
	Type       *ir.FuncType
	Func       runtime.HostFunc
}

// MemoryDef, TableDef, and GlobalDef are the non-function export kinds
// §4.J's "collection of named... memories, tables, and globals" names.
type MemoryDef struct {
	ExportName             string
	InitialPages, MaxPages uint32
	HasMax, Shared         bool
}

type TableDef struct {
	ExportName   string
	ElemType     ir.ValueType
	Initial, Max uint32
	HasMax       bool
}

type GlobalDef struct {
	ExportName string
	Type       ir.GlobalType
	Init       ir.Value
}

// HostModule is the fully-resolved declarative description §4.J names.
// Build one with a HostModuleBuilder, or by appending to the slices
// directly for tests.
type HostModule struct {
	ModuleName string
	Funcs      []FuncDef
	Memories   []MemoryDef
	Tables     []TableDef
	Globals    []GlobalDef
}

// Materialize builds a runtime.Instance exporting every entry in hm
// ("the framework materializes them as runtime objects and produces an
// Instance whose export map is the declared set", spec.md §4.J). The
// returned instance has no owning ir.Module, since host modules are
// never interpreted bodies — only ever called into as HostFunc.
func Materialize(c *runtime.Compartment, hm *HostModule) (*runtime.Instance, error) {
	shell := runtime.NewInstanceShell(c, nil, hm.ModuleName)

	funcs := make([]*runtime.Function, 0, len(hm.Funcs))
	memories := make([]*runtime.Memory, 0, len(hm.Memories))
	tables := make([]*runtime.Table, 0, len(hm.Tables))
	globals := make([]*runtime.Global, 0, len(hm.Globals))
	exports := make(map[string]runtime.Object, len(hm.Funcs)+len(hm.Memories)+len(hm.Tables)+len(hm.Globals))

	for _, f := range hm.Funcs {
		fn := runtime.NewHostFunction(c, f.Type, f.Func)
		funcs = append(funcs, fn)
		exports[f.ExportName] = fn
	}
	for _, m := range hm.Memories {
		mem, err := runtime.NewMemory(c, m.InitialPages, m.MaxPages, m.HasMax, m.Shared)
		if err != nil {
			return nil, fmt.Errorf("intrinsics: materialize memory %q: %w", m.ExportName, err)
		}
		memories = append(memories, mem)
		exports[m.ExportName] = mem
	}
	for _, tdef := range hm.Tables {
		tb := runtime.NewTable(c, tdef.ElemType, tdef.Initial, tdef.Max, tdef.HasMax)
		tables = append(tables, tb)
		exports[tdef.ExportName] = tb
	}
	for _, g := range hm.Globals {
		gl := runtime.NewGlobal(c, g.Type, g.Init)
		globals = append(globals, gl)
		exports[g.ExportName] = gl
	}

	shell.Finalize(funcs, tables, memories, globals, nil, exports)
	return shell, nil
}

// HostModuleBuilder incrementally builds a HostModule, mirroring the
// teacher's wazero.HostModuleBuilder/HostFunctionBuilder chain.
type HostModuleBuilder struct {
	hm  HostModule
	err error // first WithFunc reflection failure, if any; surfaced by Build
}

func NewHostModuleBuilder(moduleName string) *HostModuleBuilder {
	return &HostModuleBuilder{hm: HostModule{ModuleName: moduleName}}
}

// ExportMemory adds a plain (non-shared) linear memory export.
func (b *HostModuleBuilder) ExportMemory(name string, initialPages uint32) *HostModuleBuilder {
	b.hm.Memories = append(b.hm.Memories, MemoryDef{ExportName: name, InitialPages: initialPages})
	return b
}

// ExportMemoryWithMax adds a bounded linear memory export.
func (b *HostModuleBuilder) ExportMemoryWithMax(name string, initialPages, maxPages uint32, shared bool) *HostModuleBuilder {
	b.hm.Memories = append(b.hm.Memories, MemoryDef{ExportName: name, InitialPages: initialPages, MaxPages: maxPages, HasMax: true, Shared: shared})
	return b
}

// ExportTable adds a table export.
func (b *HostModuleBuilder) ExportTable(name string, elemType ir.ValueType, initial, max uint32, hasMax bool) *HostModuleBuilder {
	b.hm.Tables = append(b.hm.Tables, TableDef{ExportName: name, ElemType: elemType, Initial: initial, Max: max, HasMax: hasMax})
	return b
}

// ExportGlobal adds a global export with its initial value.
func (b *HostModuleBuilder) ExportGlobal(name string, typ ir.GlobalType, init ir.Value) *HostModuleBuilder {
	b.hm.Globals = append(b.hm.Globals, GlobalDef{ExportName: name, Type: typ, Init: init})
	return b
}

// NewFunctionBuilder begins defining one host function.
func (b *HostModuleBuilder) NewFunctionBuilder() *HostFunctionBuilder {
	return &HostFunctionBuilder{b: b}
}

// Build resolves every NewFunctionBuilder call's deferred errors, if
// any, and returns the finished declarative description.
func (b *HostModuleBuilder) Build() (*HostModule, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &b.hm, nil
}

// HostFunctionBuilder defines one host function before Export.
type HostFunctionBuilder struct {
	b    *HostModuleBuilder
	typ  *ir.FuncType
	fn   runtime.HostFunc
	name string
}

// WithGoFunc attaches an already-typed, already-adapted runtime.HostFunc
// directly — the "advanced" path the teacher's WithGoFunction/
// WithGoModuleFunction occupies, for callers that want to avoid
// reflection overhead or need the raw ir.Value argument slice.
func (h *HostFunctionBuilder) WithGoFunc(typ *ir.FuncType, fn runtime.HostFunc) *HostFunctionBuilder {
	h.typ = typ
	h.fn = boundary.IntrinsicThunk(fn)
	return h
}

// WithFunc uses reflection to map a plain Go function to a
// WebAssembly-compatible runtime.HostFunc, mirroring the teacher's
// HostFunctionBuilder.WithFunc: an optional leading *runtime.Context
// parameter, then numeric parameters (int32/uint32/int64/uint64/float32/
// float64), then the same numeric result types plus an optional
// trailing error. Any other shape is a deferred error surfaced by Build.
func (h *HostFunctionBuilder) WithFunc(goFn interface{}) *HostFunctionBuilder {
	typ, fn, err := reflectHostFunc(goFn)
	if err != nil {
		h.b.err = err
		return h
	}
	h.typ = typ
	h.fn = boundary.IntrinsicThunk(fn)
	return h
}

// Export finalizes this function under name and returns to the parent
// builder for chaining.
func (h *HostFunctionBuilder) Export(name string) *HostModuleBuilder {
	h.b.hm.Funcs = append(h.b.hm.Funcs, FuncDef{ExportName: name, Type: h.typ, Func: h.fn})
	return h.b
}

func reflectHostFunc(goFn interface{}) (*ir.FuncType, func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error), error) {
	rv := reflect.ValueOf(goFn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("intrinsics: WithFunc requires a func, got %s", rt.Kind())
	}

	paramOffset := 0
	if rt.NumIn() > 0 && rt.In(0) == contextType {
		paramOffset = 1
	}

	params := make([]ir.ValueType, rt.NumIn()-paramOffset)
	for i := range params {
		vt, err := goKindToValueType(rt.In(i + paramOffset).Kind())
		if err != nil {
			return nil, nil, fmt.Errorf("intrinsics: param %d: %w", i, err)
		}
		params[i] = vt
	}

	hasErrorResult := rt.NumOut() > 0 && rt.Out(rt.NumOut()-1) == errorType
	numValueResults := rt.NumOut()
	if hasErrorResult {
		numValueResults--
	}
	results := make([]ir.ValueType, numValueResults)
	for i := range results {
		vt, err := goKindToValueType(rt.Out(i).Kind())
		if err != nil {
			return nil, nil, fmt.Errorf("intrinsics: result %d: %w", i, err)
		}
		results[i] = vt
	}

	typ := &ir.FuncType{Params: params, Results: results}

	call := func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		in := make([]reflect.Value, rt.NumIn())
		if paramOffset == 1 {
			in[0] = reflect.ValueOf(ctx)
		}
		for i, v := range args {
			in[i+paramOffset] = valueToReflect(v, rt.In(i+paramOffset).Kind())
		}
		out := rv.Call(in)
		if hasErrorResult {
			if errVal := out[len(out)-1]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		results := make([]ir.Value, len(out))
		for i, o := range out {
			results[i] = reflectToValue(o)
		}
		return results, nil
	}
	return typ, call, nil
}

func goKindToValueType(k reflect.Kind) (ir.ValueType, error) {
	switch k {
	case reflect.Int32, reflect.Uint32:
		return ir.ValueTypeI32, nil
	case reflect.Int64, reflect.Uint64:
		return ir.ValueTypeI64, nil
	case reflect.Float32:
		return ir.ValueTypeF32, nil
	case reflect.Float64:
		return ir.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unsupported Go kind %s (need int32/uint32/int64/uint64/float32/float64)", k)
	}
}

func valueToReflect(v ir.Value, k reflect.Kind) reflect.Value {
	switch k {
	case reflect.Int32:
		return reflect.ValueOf(v.I32())
	case reflect.Uint32:
		return reflect.ValueOf(v.U32())
	case reflect.Int64:
		return reflect.ValueOf(v.I64())
	case reflect.Uint64:
		return reflect.ValueOf(v.U64())
	case reflect.Float32:
		return reflect.ValueOf(math.Float32frombits(v.F32Bits()))
	case reflect.Float64:
		return reflect.ValueOf(math.Float64frombits(v.F64Bits()))
	default:
		panic(fmt.Sprintf("intrinsics: BUG: unreachable Go kind %s", k))
	}
}

func reflectToValue(rv reflect.Value) ir.Value {
	switch rv.Kind() {
	case reflect.Int32:
		return ir.I32(int32(rv.Int()))
	case reflect.Uint32:
		return ir.I32(int32(rv.Uint()))
	case reflect.Int64:
		return ir.I64(rv.Int())
	case reflect.Uint64:
		return ir.I64(int64(rv.Uint()))
	case reflect.Float32:
		return ir.F32Bits(math.Float32bits(float32(rv.Float())))
	case reflect.Float64:
		return ir.F64Bits(math.Float64bits(rv.Float()))
	default:
		panic(fmt.Sprintf("intrinsics: BUG: unreachable Go kind %s", rv.Kind()))
	}
}
