package runtime

import (
	"testing"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/testing/require"
)

func i32i32() *ir.FuncType {
	return ir.Intern(&ir.FuncType{Params: []ir.ValueType{ir.ValueTypeI32}, Results: []ir.ValueType{ir.ValueTypeI32}})
}

func TestCompartmentMemoryLifecycle(t *testing.T) {
	c := NewCompartment()
	m, err := NewMemory(c, 1, 2, true, false)
	require.NoError(t, err)
	require.Equal(t, uint32(1), m.Pages())

	prev, ok := m.Grow(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.Pages())

	m.Release()
}

func TestCompartmentTableGrow(t *testing.T) {
	c := NewCompartment()
	tb := NewTable(c, ir.ValueTypeFuncRef, 1, 4, true)
	require.Equal(t, uint32(1), tb.Size())

	prev, ok := tb.Grow(2, nil)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), tb.Size())

	_, ok = tb.Grow(10, nil)
	require.False(t, ok)
}

func TestGlobalImmutableSetFails(t *testing.T) {
	c := NewCompartment()
	g := NewGlobal(c, ir.GlobalType{ValueType: ir.ValueTypeI32, Mutable: false}, ir.I32(1))
	require.Error(t, g.Set(ir.I32(2)))

	mg := NewGlobal(c, ir.GlobalType{ValueType: ir.ValueTypeI32, Mutable: true}, ir.I32(1))
	require.NoError(t, mg.Set(ir.I32(2)))
	require.Equal(t, ir.I32(2), mg.Get())
}

func TestInstanceExportAndGCPointer(t *testing.T) {
	c := NewCompartment()
	fn := NewHostFunction(c, i32i32(), func(ctx *Context, args []ir.Value) ([]ir.Value, error) {
		return args, nil
	})
	inst := NewInstance(c, nil, "test", []*Function{fn}, nil, nil, nil, nil, map[string]Object{"identity": fn})

	exported, ok := inst.Export("identity")
	require.True(t, ok)
	require.Same(t, fn, exported)

	p := c.NewGCPointer(inst)
	require.False(t, c.TryCollect()) // rooted, nothing to collect
	p.Release()
	require.True(t, c.TryCollect()) // now unreachable
}

func TestCloneCompartmentValueCopiesState(t *testing.T) {
	c := NewCompartment()
	mem, err := NewMemory(c, 1, 1, true, false)
	require.NoError(t, err)
	mem.Bytes()[0] = 7

	inst := NewInstance(c, nil, "test", nil, nil, []*Memory{mem}, nil, nil, map[string]Object{"mem": mem})

	clone := c.Clone()
	var cloned *Instance
	for ci := range clone.instances {
		cloned = ci
	}
	require.NotNil(t, cloned)

	clonedMem, ok := cloned.Export("mem")
	require.True(t, ok)
	cm := clonedMem.(*Memory)
	require.Equal(t, byte(7), cm.Bytes()[0])

	// Mutating the clone must not affect the original (value-copy, not alias).
	cm.Bytes()[0] = 9
	require.Equal(t, byte(7), mem.Bytes()[0])

	_ = inst
}

func TestContextLifecycle(t *testing.T) {
	c := NewCompartment()
	ctx := NewContext(c)
	require.Equal(t, uint32(0), ctx.ID())
	ctx.Close()

	ctx2 := NewContext(c)
	require.Equal(t, uint32(0), ctx2.ID()) // id reused after release
}
