package wavm

import (
	"context"
	"testing"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/testing/require"
)

// addModuleBytes is `(module (func (export "add") (param i32 i32) (result i32)
//   local.get 0 local.get 1 i32.add))`.
var addModuleBytes = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestCompileInstantiateAndCallExportedFunction(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, addModuleBytes)
	require.NoError(t, err)

	inst, err := r.Instantiate(ctx, compiled, NewModuleConfig().WithName("math"))
	require.NoError(t, err)

	add := inst.ExportedFunction("add")
	require.True(t, add != nil)

	results, err := add.Call(ctx, ir.I32(3), ir.I32(4))
	require.NoError(t, err)
	require.Equal(t, 1, len(results))
	require.Equal(t, ir.I32(7), results[0])
}

func TestRuntimeConfigRejectsDisabledFeature(t *testing.T) {
	// (module (memory (export "mem") 1)) with the shared flag set, legal
	// only under the threads proposal; hand-encoded since there's no
	// parser here to build it from text.
	sharedMemModuleBytes := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x04, 0x01, 0x03, 0x01, 0x01, // memory section: 1 memory, limits flag 0x03 (shared+max), min=1 max=1
	}

	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)
	_, err := r.CompileModule(ctx, sharedMemModuleBytes)
	require.NoError(t, err)

	rc := NewRuntimeConfig().WithCoreFeatures(ir.FeatureAll &^ ir.FeatureThreads)
	r2 := NewRuntimeWithConfig(ctx, rc, NewCompartmentConfig())
	defer r2.Close(ctx)
	_, err = r2.CompileModule(ctx, sharedMemModuleBytes)
	require.Error(t, err)
}

func TestInstantiateStubsMissingImportsWhenConfigured(t *testing.T) {
	// (module (import "env" "double" (func (param i32) (result i32)))
	//   (func (export "quad") (param i32) (result i32)
	//     local.get 0 call 0 call 0))
	quadModuleBytes := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x02, 0x0e, 0x01, 0x03, 0x65, 0x6e, 0x76, 0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x08, 0x01, 0x04, 0x71, 0x75, 0x61, 0x64, 0x00, 0x01,
		0x0a, 0x0a, 0x01, 0x08, 0x00, 0x20, 0x00, 0x10, 0x00, 0x10, 0x00, 0x0b,
	}

	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, quadModuleBytes)
	require.NoError(t, err)

	_, err = r.Instantiate(ctx, compiled, NewModuleConfig())
	require.Error(t, err)

	inst, err := r.Instantiate(ctx, compiled, NewModuleConfig().WithStubMissingImports())
	require.NoError(t, err)

	quad := inst.ExportedFunction("quad")
	_, err = quad.Call(ctx, ir.I32(5))
	require.Error(t, err)
}

func TestCompileModuleRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := r.CompileModule(ctx, []byte("not wasm"))
	require.Error(t, err)
}

func TestInstantiateWiresHostImport(t *testing.T) {
	// (module (import "env" "double" (func $double (param i32) (result i32)))
	//   (func (export "quad") (param i32) (result i32)
	//     local.get 0 call $double call $double))
	var quadModuleBytes = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x02, 0x0e, 0x01, 0x03, 0x65, 0x6e, 0x76, 0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x08, 0x01, 0x04, 0x71, 0x75, 0x61, 0x64, 0x00, 0x01,
		0x0a, 0x0a, 0x01, 0x08, 0x00, 0x20, 0x00, 0x10, 0x00, 0x10, 0x00, 0x0b,
	}

	ctx := context.Background()
	r := NewRuntime(ctx)
	defer r.Close(ctx)

	hm, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(x int32) int32 { return x * 2 }).
		Export("double").
		Build()
	require.NoError(t, err)
	env, err := r.InstantiateHostModule(hm)
	require.NoError(t, err)

	compiled, err := r.CompileModule(ctx, quadModuleBytes)
	require.NoError(t, err)

	inst, err := r.Instantiate(ctx, compiled, NewModuleConfig().WithImportedInstance("env", env))
	require.NoError(t, err)

	quad := inst.ExportedFunction("quad")
	require.True(t, quad != nil)

	results, err := quad.Call(ctx, ir.I32(5))
	require.NoError(t, err)
	require.Equal(t, ir.I32(20), results[0])
}
