package intrinsics

import (
	"errors"
	"testing"

	"github.com/wavmgo/wavm/internal/boundary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/testing/require"
)

func TestMaterializeExportsFunctionsMemoriesTablesGlobals(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	b, err := NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx *runtime.Context, x, y int32) int32 { return x + y }).
		Export("add").
		ExportMemory("memory", 1).
		ExportTable("table", ir.ValueTypeFuncRef, 0, 0, false).
		ExportGlobal("version", ir.GlobalType{ValueType: ir.ValueTypeI32, Mutable: false}, ir.I32(1)).
		Build()
	require.NoError(t, err)

	inst, err := Materialize(c, b)
	require.NoError(t, err)

	fnObj, ok := inst.Export("add")
	require.True(t, ok)
	fn := fnObj.(*runtime.Function)

	ctx := runtime.NewContext(c)
	defer ctx.Close()
	results, err := boundary.Invoke(ctx, fn, []ir.Value{ir.I32(3), ir.I32(4)})
	require.NoError(t, err)
	require.Equal(t, ir.I32(7), results[0])

	_, ok = inst.Export("memory")
	require.True(t, ok)
	_, ok = inst.Export("table")
	require.True(t, ok)
	gObj, ok := inst.Export("version")
	require.True(t, ok)
	require.Equal(t, ir.I32(1), gObj.(*runtime.Global).Get())
}

func TestWithFuncSupportsContextAndErrorReturn(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	b, err := NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx *runtime.Context, divisor int32) (int32, error) {
			if divisor == 0 {
				return 0, errors.New("divide by zero")
			}
			return 100 / divisor, nil
		}).
		Export("div100").
		Build()
	require.NoError(t, err)

	inst, err := Materialize(c, b)
	require.NoError(t, err)

	fnObj, _ := inst.Export("div100")
	fn := fnObj.(*runtime.Function)
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	results, err := boundary.Invoke(ctx, fn, []ir.Value{ir.I32(5)})
	require.NoError(t, err)
	require.Equal(t, ir.I32(20), results[0])

	_, err = boundary.Invoke(ctx, fn, []ir.Value{ir.I32(0)})
	require.Error(t, err)
}

func TestWithFuncRejectsNonFunc(t *testing.T) {
	_, err := NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(42).
		Export("bad").
		Build()
	require.Error(t, err)
}

func TestWithGoFuncUsesRawValueSlice(t *testing.T) {
	c := runtime.NewCompartment()
	defer c.TryCollect()

	typ := &ir.FuncType{Params: []ir.ValueType{ir.ValueTypeI32}, Results: []ir.ValueType{ir.ValueTypeI32}}
	b, err := NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoFunc(typ, func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
			return []ir.Value{ir.I32(args[0].I32() * 3)}, nil
		}).
		Export("triple").
		Build()
	require.NoError(t, err)

	inst, err := Materialize(c, b)
	require.NoError(t, err)

	fnObj, _ := inst.Export("triple")
	fn := fnObj.(*runtime.Function)
	ctx := runtime.NewContext(c)
	defer ctx.Close()

	results, err := boundary.Invoke(ctx, fn, []ir.Value{ir.I32(7)})
	require.NoError(t, err)
	require.Equal(t, ir.I32(21), results[0])
}
