package runtime

import "github.com/wavmgo/wavm/internal/ir"

// Instance is a module instance (spec.md §4.F): the funcs/tables/memories/
// globals/exception types a linked, instantiated module owns, plus its
// export map. Instances form the unit of garbage collection (§4.F
// "Garbage collection" frees "instances first, then their owned
// objects").
type Instance struct {
	objectHeader

	module    *ir.Module
	debugName string

	funcs          []*Function
	tables         []*Table
	memories       []*Memory
	globals        []*Global
	exceptionTypes []*ExceptionType

	exports map[string]Object
}

func (i *Instance) Kind() Kind { return KindInstance }

// DebugName is the name Instantiate was called with ("instantiate(...,
// debugName)", spec.md §6.3), surfaced in trap call stacks.
func (i *Instance) DebugName() string { return i.debugName }

// Module returns the IR module this instance was instantiated from, used
// to resolve block-type signatures during execution.
func (i *Instance) Module() *ir.Module { return i.module }

// Export looks up a name in the instance's export map
// ("getInstanceExport", spec.md §6.3).
func (i *Instance) Export(name string) (Object, bool) {
	o, ok := i.exports[name]
	return o, ok
}

// Exports returns a copy of this instance's export map, for a host that
// wants to re-offer every export of one instance as the imports of
// another under a single module name (spec.md §6.3's "instantiate" lets
// a Resolver be built from a prior instance's exports wholesale).
func (i *Instance) Exports() map[string]Object {
	out := make(map[string]Object, len(i.exports))
	for k, v := range i.exports {
		out[k] = v
	}
	return out
}

// Func returns the funcIdx'th function in the combined function index
// space (imports then module-defined), used by call_indirect and start.
func (i *Instance) Func(funcIdx uint32) *Function {
	if funcIdx >= uint32(len(i.funcs)) {
		return nil
	}
	return i.funcs[funcIdx]
}

func (i *Instance) Table(idx uint32) *Table {
	if idx >= uint32(len(i.tables)) {
		return nil
	}
	return i.tables[idx]
}

func (i *Instance) Memory(idx uint32) *Memory {
	if idx >= uint32(len(i.memories)) {
		return nil
	}
	return i.memories[idx]
}

func (i *Instance) Global(idx uint32) *Global {
	if idx >= uint32(len(i.globals)) {
		return nil
	}
	return i.globals[idx]
}

func (i *Instance) ExceptionType(idx uint32) *ExceptionType {
	if idx >= uint32(len(i.exceptionTypes)) {
		return nil
	}
	return i.exceptionTypes[idx]
}

// NewInstance assembles an Instance from its already-resolved
// funcs/tables/memories/globals/exceptionTypes and export map
// (internal/linker.Link builds these from the module's import/export
// sections plus the Resolver's answers, then calls this).
func NewInstance(
	c *Compartment,
	module *ir.Module,
	debugName string,
	funcs []*Function,
	tables []*Table,
	memories []*Memory,
	globals []*Global,
	exceptionTypes []*ExceptionType,
	exports map[string]Object,
) *Instance {
	inst := &Instance{
		objectHeader:   objectHeader{compartment: c, refs: 1},
		module:         module,
		debugName:      debugName,
		funcs:          funcs,
		tables:         tables,
		memories:       memories,
		globals:        globals,
		exceptionTypes: exceptionTypes,
		exports:        exports,
	}
	// Module-defined memories/tables are created with their owning
	// instance already counted as the single reference (NewMemory/
	// NewTable start at refs=1); a memory or table an instance merely
	// imports from another instance's export needs its own Retain call
	// from the linker before it lands in the memories/tables slice here,
	// since it already has an owner.
	c.lock()
	c.instances[inst] = struct{}{}
	c.unlock()
	return inst
}

// NewInstanceShell allocates an Instance before its owned funcs/tables/
// memories/globals/exceptionTypes are known. Instantiation needs this
// two-phase split because a guest Function must hold a back-pointer to
// the instance it runs against (see Function's doc comment) before that
// instance's own slices can be filled in — callers build each guest
// Function with NewGuestFunction(c, typ, body, shell), then call
// Finalize once every function/table/memory/global is ready.
func NewInstanceShell(c *Compartment, module *ir.Module, debugName string) *Instance {
	inst := &Instance{
		objectHeader: objectHeader{compartment: c, refs: 1},
		module:       module,
		debugName:    debugName,
		exports:      make(map[string]Object),
	}
	c.lock()
	c.instances[inst] = struct{}{}
	c.unlock()
	return inst
}

// Finalize completes an instance shell created by NewInstanceShell,
// recording its owned objects and export map. Must be called exactly
// once, before the instance is used.
func (i *Instance) Finalize(
	funcs []*Function,
	tables []*Table,
	memories []*Memory,
	globals []*Global,
	exceptionTypes []*ExceptionType,
	exports map[string]Object,
) {
	i.funcs = funcs
	i.tables = tables
	i.memories = memories
	i.globals = globals
	i.exceptionTypes = exceptionTypes
	i.exports = exports
}

// cloneInstanceShell builds the destination Instance for Clone before its
// slices are filled in (Compartment.Clone needs the pointer to exist so
// cross-referencing instances — e.g. via exported sub-instances — can
// resolve it).
func cloneInstanceShell(c *Compartment, orig *Instance) *Instance {
	return &Instance{
		objectHeader: objectHeader{compartment: c, refs: 1},
		module:       orig.module,
		debugName:    orig.debugName,
		exports:      make(map[string]Object, len(orig.exports)),
	}
}
