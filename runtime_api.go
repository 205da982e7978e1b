// Package wavm is the host-visible embedding API (spec.md §6.3): loading
// and validating a binary module, linking it against host-provided
// imports, instantiating it, and invoking its exports.
//
// The teacher's own root package plays the identical role
// (NewRuntime/CompileModule/InstantiateModule over its own internal/wasm
// representation); this package keeps that same three-step shape —
// compile once, instantiate per Compartment, call through an exported
// function handle — generalized onto this module's own
// internal/ir/internal/runtime/internal/linker/internal/boundary stack
// instead of the teacher's internal/wasm engine abstraction.
package wavm

import (
	"context"
	"fmt"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/boundary"
	"github.com/wavmgo/wavm/internal/concurrency"
	"github.com/wavmgo/wavm/internal/intrinsics"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/linker"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/validate"
)

// RuntimeConfig carries the settings that apply to every module this
// Runtime compiles: which proposal toggles (api.CoreFeatures, in the
// teacher's naming) the validator gates instructions against
// (SPEC_FULL.md §A.3). The zero value is not ready to use; build one with
// NewRuntimeConfig.
type RuntimeConfig struct {
	enabledFeatures ir.Feature
}

// NewRuntimeConfig returns a RuntimeConfig with every proposal this
// module implements enabled (ir.FeatureAll), the same "everything the
// engine supports" default the teacher's NewRuntimeConfig ships.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{enabledFeatures: ir.FeatureAll}
}

// WithCoreFeatures replaces the enabled proposal set wholesale (not
// additive), mirroring the teacher's RuntimeConfig.WithCoreFeatures.
func (c *RuntimeConfig) WithCoreFeatures(f ir.Feature) *RuntimeConfig {
	cp := *c
	cp.enabledFeatures = f
	return &cp
}

// CompartmentConfig carries the sandbox-sizing settings for one
// compartment (SPEC_FULL.md §A.3, spec.md §4.E): the absolute table
// length and memory page ceilings the validator enforces against every
// module instantiated into it. Both may only tighten
// validate.MaxTableAbsoluteCap/MaxMemoryAbsoluteCap, never loosen past
// them. The zero value is not ready to use; build one with
// NewCompartmentConfig.
type CompartmentConfig struct {
	memoryCapPages   uint32
	tableCapElements uint32
}

// NewCompartmentConfig returns a CompartmentConfig using the validator's
// absolute caps unchanged.
func NewCompartmentConfig() *CompartmentConfig {
	return &CompartmentConfig{
		memoryCapPages:   validate.MaxMemoryAbsoluteCap,
		tableCapElements: validate.MaxTableAbsoluteCap,
	}
}

// WithMemoryCapPages tightens the memory page ceiling below
// validate.MaxMemoryAbsoluteCap.
func (c *CompartmentConfig) WithMemoryCapPages(pages uint32) *CompartmentConfig {
	cp := *c
	cp.memoryCapPages = pages
	return &cp
}

// WithTableCapElements tightens the table length ceiling below
// validate.MaxTableAbsoluteCap.
func (c *CompartmentConfig) WithTableCapElements(elems uint32) *CompartmentConfig {
	cp := *c
	cp.tableCapElements = elems
	return &cp
}

// Runtime owns one compartment (spec.md §4.F "Compartment") plus the
// cross-cutting engine state every instance in it shares: the invoke-
// thunk cache (internal/boundary), the shared-memory wait-queue table
// (internal/concurrency), and the RuntimeConfig/CompartmentConfig every
// CompileModule call validates against.
type Runtime struct {
	compartment *runtime.Compartment
	thunks      *boundary.ThunkCache
	waitQueues  *concurrency.WaitQueues

	enabledFeatures  ir.Feature
	memoryCapPages   uint32
	tableCapElements uint32
}

// NewRuntime creates a Runtime with its own fresh compartment
// ("createCompartment", spec.md §6.3) using NewRuntimeConfig and
// NewCompartmentConfig's defaults. ctx is accepted for API symmetry with
// every other entry point here, matching the teacher's context-everywhere
// convention; nothing in compartment creation itself blocks or needs
// cancellation.
func NewRuntime(ctx context.Context) *Runtime {
	return NewRuntimeWithConfig(ctx, NewRuntimeConfig(), NewCompartmentConfig())
}

// NewRuntimeWithConfig creates a Runtime honoring an explicit
// RuntimeConfig (feature toggles) and CompartmentConfig (sandbox sizing
// for its one compartment).
func NewRuntimeWithConfig(ctx context.Context, rc *RuntimeConfig, cc *CompartmentConfig) *Runtime {
	return &Runtime{
		compartment:      runtime.NewCompartment(),
		thunks:           boundary.NewThunkCache(),
		waitQueues:       concurrency.NewWaitQueues(),
		enabledFeatures:  rc.enabledFeatures,
		memoryCapPages:   cc.memoryCapPages,
		tableCapElements: cc.tableCapElements,
	}
}

// Compartment exposes the underlying compartment, for callers building
// their own host modules directly against internal/runtime or
// internal/intrinsics rather than through this package's convenience
// wrappers.
func (r *Runtime) Compartment() *runtime.Compartment { return r.compartment }

// WaitQueues exposes the shared atomics wait-queue table backing every
// atomic.wait32/64 and atomic.notify issued by code running in this
// runtime's compartment (internal/concurrency).
func (r *Runtime) WaitQueues() *concurrency.WaitQueues { return r.waitQueues }

// Close collects every instance, memory, and table left in the
// compartment whose reference count has already dropped to zero
// ("tryCollect", spec.md §4.F "Garbage collection").
func (r *Runtime) Close(ctx context.Context) error {
	r.compartment.TryCollect()
	return nil
}

// CompiledModule is a decoded and validated module, ready to be
// instantiated any number of times ("loadBinaryModule" + "validate",
// spec.md §6.3).
type CompiledModule struct {
	module *ir.Module
}

// Module exposes the underlying decoded module, primarily so tests and
// tooling can inspect it without a round trip through the binary codec.
func (c *CompiledModule) Module() *ir.Module { return c.module }

// CompileModule decodes wasmBytes and validates the result, in the two
// load-time steps spec.md §6.3 and §7 name separately ("a module that
// fails to parse" vs. "a module that fails validation" are distinct
// error categories).
func (r *Runtime) CompileModule(ctx context.Context, wasmBytes []byte) (*CompiledModule, error) {
	m, err := binary.Decode(wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wavm: decode module: %w", err)
	}
	if err := validate.ModuleWithLimits(m, r.enabledFeatures, r.tableCapElements, r.memoryCapPages); err != nil {
		return nil, fmt.Errorf("wavm: validate module: %w", err)
	}
	return &CompiledModule{module: m}, nil
}

// NewHostModuleBuilder starts building a host module under moduleName,
// using internal/intrinsics' declarative function/memory/table/global
// builder API.
func (r *Runtime) NewHostModuleBuilder(moduleName string) *intrinsics.HostModuleBuilder {
	return intrinsics.NewHostModuleBuilder(moduleName)
}

// InstantiateHostModule materializes a built host module into this
// runtime's compartment as an Instance, so its exports can be wired into
// a later Instantiate call's ModuleConfig the same way a guest module's
// exports are.
func (r *Runtime) InstantiateHostModule(hm *intrinsics.HostModule) (*Instance, error) {
	inst, err := intrinsics.Materialize(r.compartment, hm)
	if err != nil {
		return nil, err
	}
	return &Instance{runtime: r, inst: inst}, nil
}

// ModuleConfig carries the per-instantiation settings for Instantiate
// (the "InstantiationConfig" of SPEC_FULL.md §A.3): the debug name
// surfaced in trap call stacks, the imports offered to the module being
// instantiated, and whether unresolved imports should be stubbed out
// rather than failing the link (spec.md §4.G StubResolver).
type ModuleConfig struct {
	name        string
	imports     linker.MapResolver
	stubMissing bool
}

// NewModuleConfig returns an empty ModuleConfig with no imports offered.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{imports: linker.MapResolver{}}
}

// WithName sets the debug name surfaced in trap call stacks and
// Instance.DebugName.
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	c.name = name
	return c
}

// WithImport offers a single runtime object under (moduleName, name).
func (c *ModuleConfig) WithImport(moduleName, name string, obj runtime.Object) *ModuleConfig {
	c.imports[moduleName+"."+name] = obj
	return c
}

// WithImportedInstance offers every export of inst under moduleName, the
// common case of wiring one already-instantiated module's exports as
// another module's imports.
func (c *ModuleConfig) WithImportedInstance(moduleName string, inst *Instance) *ModuleConfig {
	for name, obj := range inst.inst.Exports() {
		c.imports[moduleName+"."+name] = obj
	}
	return c
}

// WithStubMissingImports makes Instantiate synthesize a trapping stand-in
// for any import this config doesn't explicitly offer (linker.StubResolver)
// instead of failing the link. Intended for running partial or
// fuzz-generated modules where the embedder doesn't implement every host
// import the module happens to declare.
func (c *ModuleConfig) WithStubMissingImports() *ModuleConfig {
	c.stubMissing = true
	return c
}

// Instance is an instantiated module (spec.md §4.F), with convenience
// accessors for its exports and a Close that drops this reference.
type Instance struct {
	runtime *Runtime
	inst    *runtime.Instance
}

// DebugName returns the name Instantiate was called with.
func (i *Instance) DebugName() string { return i.inst.DebugName() }

// Unwrap exposes the underlying *runtime.Instance for callers that need
// lower-level access (e.g. internal/linker.MapResolver construction).
func (i *Instance) Unwrap() *runtime.Instance { return i.inst }

// ExportedFunction looks up name among i's exports, returning nil if it
// is absent or not a function.
func (i *Instance) ExportedFunction(name string) *ExportedFunction {
	obj, ok := i.inst.Export(name)
	if !ok {
		return nil
	}
	fn, ok := obj.(*runtime.Function)
	if !ok {
		return nil
	}
	return &ExportedFunction{runtime: i.runtime, fn: fn}
}

// ExportedMemory looks up name among i's exports, returning nil if it is
// absent or not a memory.
func (i *Instance) ExportedMemory(name string) *runtime.Memory {
	obj, ok := i.inst.Export(name)
	if !ok {
		return nil
	}
	mem, _ := obj.(*runtime.Memory)
	return mem
}

// ExportedTable looks up name among i's exports, returning nil if it is
// absent or not a table.
func (i *Instance) ExportedTable(name string) *runtime.Table {
	obj, ok := i.inst.Export(name)
	if !ok {
		return nil
	}
	tb, _ := obj.(*runtime.Table)
	return tb
}

// ExportedGlobal looks up name among i's exports, returning nil if it is
// absent or not a global.
func (i *Instance) ExportedGlobal(name string) *runtime.Global {
	obj, ok := i.inst.Export(name)
	if !ok {
		return nil
	}
	g, _ := obj.(*runtime.Global)
	return g
}

// ExportedFunction is a callable handle to one of an Instance's exported
// functions ("getInstanceExport" + "invokeFunction", spec.md §6.3).
type ExportedFunction struct {
	runtime *Runtime
	fn      *runtime.Function
}

// Type reports the function's declared signature.
func (f *ExportedFunction) Type() *ir.FuncType { return f.fn.Type() }

// Call invokes the function with args in a fresh context, running it
// through internal/boundary.Invoke (guest functions via the interpreter,
// host functions directly), and returns its results or the trap/error
// it raised.
func (f *ExportedFunction) Call(ctx context.Context, args ...ir.Value) ([]ir.Value, error) {
	rc := runtime.NewContext(f.runtime.compartment)
	defer rc.Close()
	return boundary.Invoke(rc, f.fn, args)
}
