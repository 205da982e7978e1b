// Package boundary implements spec.md §4.H, the execution boundary
// between a host caller and a guest or intrinsic function: calling
// convention, invoke thunks, intrinsic thunks, context passing, and trap
// unwinding.
//
// The teacher keeps this split across its call engine (deferredOnCall /
// moduleEngine.doCall) and api.Function.Call; in the absence of real
// native codegen here (§6.2's producer is external to this module), the
// "calling convention" collapses to a plain Go call into
// internal/interp, but the thunk-caching and panic-to-trap-conversion
// shape the teacher uses survives unchanged, since those concerns are
// about the boundary, not the codegen.
package boundary

import (
	"sync"

	"github.com/wavmgo/wavm/internal/interp"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/trap"
)

// Invoke calls fn with args, running host functions directly and guest
// functions through the reference interpreter, recursing back through
// Invoke itself for any call/call_indirect the guest body issues — this
// is the "invoke thunk", cached implicitly by fn's own identity rather
// than generated per function type, since there is no machine code here
// to cache a trampoline into. It never lets a Go panic escape: any panic
// reaching catchRuntimeExceptions, including a recovered hardware fault
// from internal/sandbox.Guarded, crosses back out as a *trap.Error.
func Invoke(ctx *runtime.Context, fn *runtime.Function, args []ir.Value) (results []ir.Value, err error) {
	defer catchRuntimeExceptions(&err, fn)

	if fn.IsHost() {
		results, err = fn.CallHost(ctx, args)
	} else {
		results, err = interp.Run(ctx, fn, args, Invoke)
	}
	if err != nil {
		err = attachFrame(err, fn)
	}
	return results, err
}

// catchRuntimeExceptions recovers any panic unwinding through an Invoke
// frame and converts it to a trap, the same role the teacher's
// deferredOnCall plays around its own interpreter/compiler call loop
// (recovering a Go runtime panic — stack overflow, nil deref, the
// recovered-and-repanicked hardware fault from a guarded memory access —
// into the engine's own runtime.Error type) so that no panic is ever
// visible above the outermost invoke-thunk call.
func catchRuntimeExceptions(err *error, fn *runtime.Function) {
	r := recover()
	if r == nil {
		return
	}
	if trapErr, ok := r.(*trap.Error); ok {
		*err = attachFrame(trapErr, fn)
		return
	}
	// Any other panic (nil dereference, index out of range, a hardware
	// fault bubbled up without going through sandbox.Guarded first) is an
	// engine bug, not a guest-triggerable condition; re-panic so it
	// surfaces as a fatal error (spec.md §7 paragraph 3), not a trap a
	// guest's try/catch could swallow.
	panic(r)
}

func attachFrame(err error, fn *runtime.Function) error {
	trapErr, ok := err.(*trap.Error)
	if !ok {
		return err
	}
	name := ""
	if inst := fn.Instance(); inst != nil {
		name = inst.DebugName()
	}
	return trapErr.WithFrame(trap.Frame{FuncIndex: fn.ID(), DebugName: name})
}

// InvokeThunk is an invoke thunk bound to one function, the shape
// spec.md §4.H describes as "cached by function type" — here cached by
// function identity, since Invoke itself carries no per-type generated
// code to amortize. Exported types' Invoke calls and internal
// boundary-crossing calls (table-stored call_indirect targets, start
// functions) share this single entry point.
type InvokeThunk struct {
	fn *runtime.Function
}

// ThunkCache hands out one InvokeThunk per *runtime.Function, reusing it
// across repeated calls the way the teacher's moduleEngine memoizes a
// function's compiled entry point.
type ThunkCache struct {
	mu     sync.Mutex
	thunks map[*runtime.Function]*InvokeThunk
}

func NewThunkCache() *ThunkCache {
	return &ThunkCache{thunks: make(map[*runtime.Function]*InvokeThunk)}
}

func (c *ThunkCache) Thunk(fn *runtime.Function) *InvokeThunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.thunks[fn]; ok {
		return t
	}
	t := &InvokeThunk{fn: fn}
	c.thunks[fn] = t
	return t
}

// Call runs the thunk's bound function against args in ctx.
func (t *InvokeThunk) Call(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error) {
	return Invoke(ctx, t.fn, args)
}

// IntrinsicThunk wraps a plain Go function as a runtime.HostFunc, the
// "intrinsic thunk" of spec.md §4.H: it inserts ctx as the callee's first
// argument (generated guest code's calling convention already does this
// implicitly; a host function written in Go just takes it as a normal
// parameter) and translates any panic the native function raises into a
// guest trap rather than letting it unwind past the host/guest boundary.
// internal/intrinsics builds these when materializing a declarative
// HostModule.
func IntrinsicThunk(fn func(ctx *runtime.Context, args []ir.Value) ([]ir.Value, error)) runtime.HostFunc {
	return func(ctx *runtime.Context, args []ir.Value) (results []ir.Value, err error) {
		defer func() {
			if r := recover(); r == nil {
				return
			} else if trapErr, ok := r.(*trap.Error); ok {
				err = trapErr
			} else {
				panic(r)
			}
		}()
		return fn(ctx, args)
	}
}

// GrowMemory grows mem by deltaPages, taking c's compartment-wide mutex
// first when mem is shared (spec.md §5 "memory.grow on a shared memory
// is serialized under a per-memory mutex"; this engine reuses the single
// compartment mutex rather than allocating one mutex per memory, since
// §5 only requires growth to be serialized, not lock-free for unrelated
// memories).
func GrowMemory(c *runtime.Compartment, mem *runtime.Memory, deltaPages uint32) (previousPages uint32, ok bool) {
	if mem.Shared() {
		c.Lock()
		defer c.Unlock()
	}
	return mem.Grow(deltaPages)
}
