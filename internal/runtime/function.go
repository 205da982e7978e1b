package runtime

import "github.com/wavmgo/wavm/internal/ir"

// HostFunc is a host (intrinsic) function body: it receives the context
// it was invoked from and the argument values, in the order
// ir.FuncType.Params declares, and returns results in ir.FuncType.Results
// order or a trap (spec.md §4.H "Intrinsic thunks").
type HostFunc func(ctx *Context, args []ir.Value) ([]ir.Value, error)

// Function is a callable object (spec.md §4.F): either a guest function
// (body non-nil, owned by instance) or a host function (hostFn non-nil).
// A guest Function's instance field is the module instance that supplies
// its runtime-data region (memories/tables/globals it references by
// index) — not necessarily the instance that calls it, since a funcref
// stored in one instance's table and called via call_indirect from
// another must still run against its own defining instance's data,
// exactly as real engines pair a function pointer with its vmctx.
type Function struct {
	objectHeader

	id       uint32
	typ      *ir.FuncType
	body     *ir.Code // nil for host functions
	instance *Instance
	hostFn   HostFunc
}

func (f *Function) Kind() Kind { return KindFunction }

// ID is the compartment-local handle a funcref value carries
// (see ir.FuncRef).
func (f *Function) ID() uint32 { return f.id }

// Type returns the function's signature.
func (f *Function) Type() *ir.FuncType { return f.typ }

// Instance returns the module instance this function runs against, or
// nil for a free-standing host function not tied to any instance.
func (f *Function) Instance() *Instance { return f.instance }

// IsHost reports whether calling f runs hostFn rather than interpreting
// or executing compiled guest code.
func (f *Function) IsHost() bool { return f.hostFn != nil }

// Body returns the guest function's decoded code, or nil for a host
// function.
func (f *Function) Body() *ir.Code { return f.body }

// CallHost invokes a host function's callback directly. Callers must
// check IsHost first; calling this on a guest function panics.
func (f *Function) CallHost(ctx *Context, args []ir.Value) ([]ir.Value, error) {
	return f.hostFn(ctx, args)
}

// NewGuestFunction wires a function defined by inst's module at the given
// index into a callable Function object; used by the linker/instantiate
// path in internal/runtime's sibling packages.
func NewGuestFunction(c *Compartment, typ *ir.FuncType, body *ir.Code, inst *Instance) *Function {
	c.lock()
	id := c.funcIDs.alloc()
	c.unlock()
	return &Function{objectHeader: objectHeader{compartment: c, refs: 1}, id: id, typ: typ, body: body, instance: inst}
}

// NewHostFunction wraps a host callback as a callable Function
// (spec.md §4.J "materializes them as runtime objects").
func NewHostFunction(c *Compartment, typ *ir.FuncType, fn HostFunc) *Function {
	c.lock()
	id := c.funcIDs.alloc()
	c.unlock()
	return &Function{objectHeader: objectHeader{compartment: c, refs: 1}, id: id, typ: typ, hostFn: fn}
}

func cloneFunction(newInstance *Instance, orig *Function) *Function {
	if orig.instance == nil {
		return orig // host function: shared, no per-instance state to clone
	}
	return &Function{
		objectHeader: objectHeader{compartment: newInstance.Compartment(), refs: 1},
		id:           orig.id,
		typ:          orig.typ,
		body:         orig.body,
		instance:     newInstance,
		hostFn:       orig.hostFn,
	}
}
