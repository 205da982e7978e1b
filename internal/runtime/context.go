package runtime

import "github.com/wavmgo/wavm/internal/ir"

// ExceptionValue is a user-thrown exception in flight: a tag plus payload
// values (spec.md §4.H "user-thrown exception instances carrying a tag
// and payload values").
type ExceptionValue struct {
	Type    *ExceptionType
	Payload []ir.Value
}

// Context is a per-thread execution record bound to one compartment
// (spec.md §3 GLOSSARY "Context", §5): it is the unit internal/boundary
// and internal/concurrency suspend, resume, and deliver traps to. A
// single compartment may have many live contexts; a context is used by
// one goroutine/OS thread at a time (spec.md §5 "Scheduling model").
type Context struct {
	objectHeader

	id uint32

	// pendingException holds an in-flight exception between a `throw`/
	// hardware trap and the catching `try` frame or invoke-thunk
	// boundary (spec.md §4.H).
	pendingException *ExceptionValue
}

func (ctx *Context) Kind() Kind { return KindContext }

// ID is the compartment-wide small integer used to index this context's
// slab in the runtime-data region.
func (ctx *Context) ID() uint32 { return ctx.id }

// NewContext creates a new per-thread context bound to c.
func NewContext(c *Compartment) *Context {
	c.lock()
	id := c.contextIDs.alloc()
	ctx := &Context{objectHeader: objectHeader{compartment: c, refs: 1}, id: id}
	c.contexts = append(c.contexts, ctx)
	c.unlock()
	return ctx
}

// Close releases a context's slab back to its compartment. A context
// must not be used by more than one thread concurrently, and must be
// closed by the thread that owns it (spec.md §5).
func (ctx *Context) Close() {
	c := ctx.compartment
	c.lock()
	c.contextIDs.release(ctx.id)
	for i, oc := range c.contexts {
		if oc == ctx {
			c.contexts = append(c.contexts[:i], c.contexts[i+1:]...)
			break
		}
	}
	c.unlock()
}

// Throw sets the in-flight exception, to be picked up by the nearest
// enclosing try/catch frame or, failing that, surfaced at the invoke-
// thunk boundary as a trap carrying it.
func (ctx *Context) Throw(v *ExceptionValue) { ctx.pendingException = v }

// PendingException returns and clears the in-flight exception, if any.
func (ctx *Context) PendingException() *ExceptionValue {
	v := ctx.pendingException
	ctx.pendingException = nil
	return v
}
