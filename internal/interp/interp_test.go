package interp

import (
	"testing"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/testing/require"
	"github.com/wavmgo/wavm/internal/trap"
	"github.com/wavmgo/wavm/internal/validate"
)

// instantiateNoImports decodes and validates wasmBytes (which must import
// nothing) and builds a runtime.Instance whose guest functions all run
// through this package's Run, recursing through callGuest for call/
// call_indirect.
func instantiateNoImports(t *testing.T, wasmBytes []byte) (*runtime.Compartment, *runtime.Instance) {
	t.Helper()
	m, err := binary.Decode(wasmBytes)
	require.NoError(t, err)
	require.NoError(t, validate.Module(m))

	c := runtime.NewCompartment()
	shell := runtime.NewInstanceShell(c, m, "test")

	funcs := make([]*runtime.Function, len(m.Code))
	for i := range m.Code {
		typ := m.Types[m.FunctionTypeIndexes[i]]
		funcs[i] = runtime.NewGuestFunction(c, typ, &m.Code[i], shell)
	}

	exports := make(map[string]runtime.Object, len(m.Exports))
	for _, e := range m.Exports {
		if e.Kind == ir.ExternKindFunc {
			exports[e.Name] = funcs[e.Index]
		}
	}
	shell.Finalize(funcs, nil, nil, nil, nil, exports)
	return c, shell
}

func callGuest(ctx *runtime.Context, fn *runtime.Function, args []ir.Value) ([]ir.Value, error) {
	if fn.IsHost() {
		return fn.CallHost(ctx, args)
	}
	return Run(ctx, fn, args, callGuest)
}

func invokeExport(t *testing.T, inst *runtime.Instance, name string, args ...ir.Value) []ir.Value {
	t.Helper()
	o, ok := inst.Export(name)
	require.True(t, ok)
	fn := o.(*runtime.Function)
	ctx := runtime.NewContext(inst.Compartment())
	results, err := callGuest(ctx, fn, args)
	require.NoError(t, err)
	return results
}

func TestRunAddsTwoParams(t *testing.T) {
	c, inst := instantiateNoImports(t, addModuleBytes)
	defer c.TryCollect()

	results := invokeExport(t, inst, "add", ir.I32(3), ir.I32(4))
	require.Equal(t, 1, len(results))
	require.Equal(t, ir.I32(7), results[0])
}

func TestRunLoopAccumulates(t *testing.T) {
	c, inst := instantiateNoImports(t, sumToModuleBytes)
	defer c.TryCollect()

	results := invokeExport(t, inst, "sumTo", ir.I32(5))
	require.Equal(t, 1, len(results))
	require.Equal(t, ir.I32(10), results[0]) // 0+1+2+3+4

	results = invokeExport(t, inst, "sumTo", ir.I32(0))
	require.Equal(t, ir.I32(0), results[0])
}

func TestRunCallsAnotherGuestFunction(t *testing.T) {
	c, inst := instantiateNoImports(t, callModuleBytes)
	defer c.TryCollect()

	results := invokeExport(t, inst, "double", ir.I32(5))
	require.Equal(t, ir.I32(10), results[0])

	results = invokeExport(t, inst, "quad", ir.I32(5))
	require.Equal(t, ir.I32(20), results[0])
}

func TestRunDivideByZeroTraps(t *testing.T) {
	c, inst := instantiateNoImports(t, divModuleBytes)
	defer c.TryCollect()

	o, ok := inst.Export("div")
	require.True(t, ok)
	fn := o.(*runtime.Function)
	ctx := runtime.NewContext(inst.Compartment())
	_, err := callGuest(ctx, fn, []ir.Value{ir.I32(10), ir.I32(0)})
	require.Error(t, err)
	trapErr, ok := err.(*trap.Error)
	require.True(t, ok)
	require.Equal(t, trap.KindIntegerDivideByZeroOrOverflow, trapErr.Kind)
}

// addModuleBytes is `(module (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add))`.
var addModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// sumToModuleBytes is `(module (func (export "sumTo") (param i32) (result i32)
// (local i32 i32)
//   block
//     loop
//       local.get 2
//       local.get 0
//       i32.ge_s
//       br_if 1
//       local.get 1
//       local.get 2
//       i32.add
//       local.set 1
//       local.get 2
//       i32.const 1
//       i32.add
//       local.set 2
//       br 0
//     end
//   end
//   local.get 1))`
// — sums 0..n-1 via a loop/br_if/br, exercising this package's branch
// depth handling and per-target stack trimming.
var sumToModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x09, 0x01, 0x05, 0x73, 0x75, 0x6d, 0x54, 0x6f, 0x00, 0x00, 0x0a, 0x25, 0x01, 0x23, 0x01, 0x02, 0x7f, 0x02, 0x40, 0x03, 0x40, 0x20, 0x02, 0x20, 0x00, 0x4e, 0x0d, 0x01, 0x20, 0x01, 0x20, 0x02, 0x6a, 0x21, 0x01, 0x20, 0x02, 0x41, 0x01, 0x6a, 0x21, 0x02, 0x0c, 0x00, 0x0b, 0x0b, 0x20, 0x01, 0x0b,
}

// callModuleBytes is two functions: `double(x) = x + x` and
// `quad(x) = double(double(x))`, exercising OpCall's recursive dispatch
// through the CallFunc callback.
var callModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x03, 0x03, 0x02, 0x00, 0x00, 0x07, 0x11, 0x02, 0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00, 0x04, 0x71, 0x75, 0x61, 0x64, 0x00, 0x01, 0x0a, 0x12, 0x02, 0x07, 0x00, 0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b, 0x08, 0x00, 0x20, 0x00, 0x10, 0x00, 0x10, 0x00, 0x0b,
}

// divModuleBytes is `(func (export "div") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.div_s)`.
var divModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x64, 0x69, 0x76, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b,
}
