package runtime

import "github.com/wavmgo/wavm/internal/ir"

// ExceptionType is an exception-handling-proposal tag: an identity for a
// user-thrown exception plus the value types it carries as payload
// (spec.md §4.F; validated at module level to have no results,
// internal/validate).
type ExceptionType struct {
	objectHeader

	payload *ir.FuncType // Params is the payload shape; Results is always empty
}

func (e *ExceptionType) Kind() Kind { return KindExceptionType }

// Payload returns the value types carried by an exception of this type.
func (e *ExceptionType) Payload() []ir.ValueType { return e.payload.Params }

// PayloadFuncType returns the underlying FuncType (params only, no
// results) used by the linker to compare tag shapes structurally
// (spec.md §4.G).
func (e *ExceptionType) PayloadFuncType() *ir.FuncType { return e.payload }

// NewExceptionType constructs a fresh, distinct exception-type identity.
// Two ExceptionType values are the same tag iff they are the same
// pointer — matching "exact function-type equality" style identity used
// elsewhere, but by object identity rather than structural equality,
// since two modules declaring identical payload shapes must still be
// distinguishable tags (spec.md §4.G StubResolver "synthetic tag").
func NewExceptionType(c *Compartment, payload *ir.FuncType) *ExceptionType {
	return &ExceptionType{objectHeader: objectHeader{compartment: c, refs: 1}, payload: payload}
}
