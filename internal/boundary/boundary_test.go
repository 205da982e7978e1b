package boundary

import (
	"testing"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/testing/require"
	"github.com/wavmgo/wavm/internal/trap"
	"github.com/wavmgo/wavm/internal/validate"
)

// addModuleBytes is `(module (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add))`.
var addModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// divModuleBytes is `(module (func (export "div") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.div_s))`.
var divModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x64, 0x69, 0x76, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b,
}

func instantiateNoImports(t *testing.T, wasmBytes []byte, debugName string) (*runtime.Compartment, *runtime.Instance) {
	t.Helper()
	m, err := binary.Decode(wasmBytes)
	require.NoError(t, err)
	require.NoError(t, validate.Module(m))

	c := runtime.NewCompartment()
	shell := runtime.NewInstanceShell(c, m, debugName)

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

func TestInvokeRunsGuestFunction(t *testing.T) {
	c, inst := instantiateNoImports(t, addModuleBytes, "adder")
	defer c.TryCollect()

	o, ok := inst.Export("add")
	require.True(t, ok)
	fn := o.(*runtime.Function)
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	results, err := Invoke(ctx, fn, []ir.Value{ir.I32(3), ir.I32(4)})
	require.NoError(t, err)
	require.Equal(t, 1, len(results))
	require.Equal(t, ir.I32(7), results[0])
}

func TestInvokeRunsHostFunction(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	typ := &ir.FuncType{Params: []ir.ValueType{ir.ValueTypeI32}, Results: []ir.ValueType{ir.ValueTypeI32}}
	fn := runtime.NewHostFunction(c, typ, IntrinsicThunk(func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		return []ir.Value{ir.I32(args[0].I32() * 2)}, nil
	}))

	ctx := runtime.NewContext(c)
	defer ctx.Close()

	results, err := Invoke(ctx, fn, []ir.Value{ir.I32(21)})
	require.NoError(t, err)
	require.Equal(t, ir.I32(42), results[0])
}

func TestInvokeConvertsTrapAndAttachesFrame(t *testing.T) {
	c, inst := instantiateNoImports(t, divModuleBytes, "divider")
	defer c.TryCollect()

	o, ok := inst.Export("div")
	require.True(t, ok)
	fn := o.(*runtime.Function)
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	_, err := Invoke(ctx, fn, []ir.Value{ir.I32(10), ir.I32(0)})
	require.Error(t, err)
	trapErr, ok := err.(*trap.Error)
	require.True(t, ok)
	require.Equal(t, trap.KindIntegerDivideByZeroOrOverflow, trapErr.Kind)
	require.Equal(t, 1, len(trapErr.CallStack))
	require.Equal(t, "divider", trapErr.CallStack[0].DebugName)
}

func TestIntrinsicThunkConvertsPanicTrapToError(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	typ := &ir.FuncType{}
	hostFn := IntrinsicThunk(func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		panic(trap.ErrOutOfMemory)
	})
	fn := runtime.NewHostFunction(c, typ, hostFn)

	ctx := runtime.NewContext(c)
	defer ctx.Close()

	_, err := Invoke(ctx, fn, nil)
	require.Error(t, err)
	trapErr, ok := err.(*trap.Error)
	require.True(t, ok)
	require.Equal(t, trap.KindOutOfMemory, trapErr.Kind)
}

func TestThunkCacheReusesThunkPerFunction(t *testing.T) {
	c, inst := instantiateNoImports(t, addModuleBytes, "adder")
	defer c.TryCollect()

	o, ok := inst.Export("add")
	require.True(t, ok)
	fn := o.(*runtime.Function)

	cache := NewThunkCache()
	t1 := cache.Thunk(fn)
	t2 := cache.Thunk(fn)
	require.Same(t, t1, t2)

	ctx := runtime.NewContext(c)
	defer ctx.Close()
	results, err := t1.Call(ctx, []ir.Value{ir.I32(1), ir.I32(2)})
	require.NoError(t, err)
	require.Equal(t, ir.I32(3), results[0])
}

func TestGrowMemorySerializesSharedGrowUnderCompartmentLock(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	mem, err := runtime.NewMemory(c, 1, 10, true, true)
	require.NoError(t, err)
	prev, ok := GrowMemory(c, mem, 2)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), mem.Pages())
}
