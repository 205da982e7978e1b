package linker

import (
	"testing"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/testing/require"
)

func voidVoid() *ir.FuncType { return ir.Intern(nil, nil) }

func moduleWithOneFuncImport(name string, typ *ir.FuncType) *ir.Module {
	return &ir.Module{
		Imports: []ir.Import{{Module: "env", Name: name, Type: ir.ExternType{Kind: ir.ExternKindFunc, Func: typ}}},
	}
}

func TestLinkResolvesMatchingImport(t *testing.T) {
	c := runtime.NewCompartment()
	fn := runtime.NewHostFunction(c, voidVoid(), func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		return nil, nil
	})
	resolver := MapResolver{"env.hostfn": fn}

	m := moduleWithOneFuncImport("hostfn", voidVoid())
	resolved, err := Link(c, m, resolver)
	require.NoError(t, err)
	require.Equal(t, 1, len(resolved))
	require.Same(t, fn, resolved[0])
}

func TestLinkReportsMissingImport(t *testing.T) {
	c := runtime.NewCompartment()
	m := moduleWithOneFuncImport("does_not_exist", ir.Intern([]ir.ValueType{ir.ValueTypeI32}, nil))

	_, err := Link(c, m, MapResolver{})
	require.Error(t, err)
	linkErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, 1, len(linkErr.Missing))
	require.Equal(t, "env", linkErr.Missing[0].Module)
	require.Equal(t, "does_not_exist", linkErr.Missing[0].Name)
}

func TestLinkRejectsMistypedImport(t *testing.T) {
	c := runtime.NewCompartment()
	wrongType := ir.Intern([]ir.ValueType{ir.ValueTypeI64}, nil)
	fn := runtime.NewHostFunction(c, wrongType, func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
		return nil, nil
	})
	resolver := MapResolver{"env.f": fn}

	m := moduleWithOneFuncImport("f", voidVoid())
	_, err := Link(c, m, resolver)
	require.Error(t, err)
}

func TestStubResolverTrapsOnCall(t *testing.T) {
	c := runtime.NewCompartment()
	stub := &StubResolver{Compartment: c, Mode: StubTrap}

	m := moduleWithOneFuncImport("does_not_exist", voidVoid())
	resolved, err := Link(c, m, stub)
	require.NoError(t, err)
	require.Equal(t, 1, len(resolved))

	fn := resolved[0].(*runtime.Function)
	require.True(t, fn.IsHost())
}

func TestStubResolverZeroMode(t *testing.T) {
	c := runtime.NewCompartment()
	stub := &StubResolver{Compartment: c, Mode: StubZero}

	typ := ir.Intern(nil, []ir.ValueType{ir.ValueTypeI32})
	m := moduleWithOneFuncImport("missing", typ)
	resolved, err := Link(c, m, stub)
	require.NoError(t, err)

	fn := resolved[0].(*runtime.Function)
	require.Equal(t, typ, fn.Type())
}

func TestStubResolverSynthesizesNonFuncImports(t *testing.T) {
	c := runtime.NewCompartment()
	stub := &StubResolver{Compartment: c, Mode: StubTrap}

	m := &ir.Module{
		Imports: []ir.Import{
			{Module: "env", Name: "tbl", Type: ir.ExternType{Kind: ir.ExternKindTable, Table: ir.TableType{
				ElemType: ir.ValueTypeFuncRef, Limits: ir.Limits{Min: 2, Max: 4, HasMax: true},
			}}},
			{Module: "env", Name: "mem", Type: ir.ExternType{Kind: ir.ExternKindMemory, Mem: ir.MemType{
				Limits: ir.Limits{Min: 1, Max: 2, HasMax: true},
			}}},
			{Module: "env", Name: "g", Type: ir.ExternType{Kind: ir.ExternKindGlobal, Global: ir.GlobalType{
				ValueType: ir.ValueTypeI32, Mutable: false,
			}}},
		},
	}
	resolved, err := Link(c, m, stub)
	require.NoError(t, err)
	require.Equal(t, 3, len(resolved))

	tb := resolved[0].(*runtime.Table)
	require.Equal(t, uint32(2), tb.Size())

	mem := resolved[1].(*runtime.Memory)
	require.Equal(t, uint32(1), mem.Pages())

	g := resolved[2].(*runtime.Global)
	require.Equal(t, ir.I32(0), g.Get())
}
