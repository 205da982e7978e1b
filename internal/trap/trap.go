// Package trap defines the structured guest-runtime failure that unwinds
// to the nearest invoke-thunk boundary (spec.md §4.H "Trap delivery",
// §7 "Runtime traps").
package trap

import (
	"fmt"
	"strings"

	"github.com/wavmgo/wavm/internal/ir"
)

// Kind enumerates the trap kinds named in spec.md §4.H, plus KindException
// for a user-thrown exception that escaped every enclosing try/catch.
type Kind int

const (
	KindOutOfBoundsMemoryAccess Kind = iota
	KindOutOfBoundsTableAccess
	KindUndefinedElement
	KindIndirectCallSignatureMismatch
	KindIntegerDivideByZeroOrOverflow
	KindInvalidFloatOperation
	KindStackOverflow
	KindUnreachable
	KindCalledUnimplementedIntrinsic
	KindOutOfMemory
	KindException
)

func (k Kind) String() string {
	switch k {
	case KindOutOfBoundsMemoryAccess:
		return "outOfBoundsMemoryAccess"
	case KindOutOfBoundsTableAccess:
		return "outOfBoundsTableAccess"
	case KindUndefinedElement:
		return "undefinedElement"
	case KindIndirectCallSignatureMismatch:
		return "indirectCallSignatureMismatch"
	case KindIntegerDivideByZeroOrOverflow:
		return "integerDivideByZeroOrOverflow"
	case KindInvalidFloatOperation:
		return "invalidFloatOperation"
	case KindStackOverflow:
		return "stackOverflow"
	case KindUnreachable:
		return "unreachable"
	case KindCalledUnimplementedIntrinsic:
		return "calledUnimplementedIntrinsic"
	case KindOutOfMemory:
		return "outOfMemory"
	case KindException:
		return "exception"
	default:
		return "unknown trap"
	}
}

// MaxOperands bounds the number of operand values a trap carries
// (spec.md §7 "up to 16 operand values").
const MaxOperands = 16

// Frame is one entry of a trap's captured call stack (spec.md §4.H).
type Frame struct {
	FuncIndex uint32
	DebugName string
}

// Error is a structured trap: its kind, up to MaxOperands operands, and
// the call stack captured at the point it was raised. It implements
// error so it can travel as a normal Go error value up to the nearest
// catchRuntimeExceptions boundary (internal/boundary), mirroring how the
// teacher's interpreter panics with a sentinel runtime error and recovers
// it at the call-engine boundary.
type Error struct {
	Kind      Kind
	Operands  []ir.Value
	CallStack []Frame
}

func New(kind Kind, operands ...ir.Value) *Error {
	if len(operands) > MaxOperands {
		operands = operands[:MaxOperands]
	}
	return &Error{Kind: kind, Operands: operands}
}

// WithFrame returns a copy of e with frame appended to its call stack,
// for use by each unwinding call level as a trap propagates outward.
func (e *Error) WithFrame(f Frame) *Error {
	cp := *e
	cp.CallStack = append(append([]Frame(nil), e.CallStack...), f)
	return &cp
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("trap: ")
	b.WriteString(e.Kind.String())
	for _, o := range e.Operands {
		fmt.Fprintf(&b, " %s", o.Type)
	}
	for i := len(e.CallStack) - 1; i >= 0; i-- {
		f := e.CallStack[i]
		fmt.Fprintf(&b, "\n\tat %s (func %d)", f.DebugName, f.FuncIndex)
	}
	return b.String()
}

// Sentinel traps for the common, operand-free cases, following the
// teacher's own convention of package-level sentinel errors for each
// runtime trap kind (wasmruntime.ErrRuntime*).
var (
	ErrUnreachable               = New(KindUnreachable)
	ErrStackOverflow             = New(KindStackOverflow)
	ErrUndefinedElement          = New(KindUndefinedElement)
	ErrIndirectCallMismatch      = New(KindIndirectCallSignatureMismatch)
	ErrIntegerDivideByZero       = New(KindIntegerDivideByZeroOrOverflow)
	ErrInvalidFloatOperation     = New(KindInvalidFloatOperation)
	ErrCalledUnimplemented       = New(KindCalledUnimplementedIntrinsic)
	ErrOutOfMemory               = New(KindOutOfMemory)
)

// OutOfBoundsMemoryAccess reports an access at the given effective
// address against a memory of the given byte length (spec.md §7 seed
// test 4: "operand 65536").
func OutOfBoundsMemoryAccess(effectiveAddr uint64) *Error {
	return New(KindOutOfBoundsMemoryAccess, ir.I64(int64(effectiveAddr)))
}

// OutOfBoundsTableAccess reports a table access at idx against a table
// of the given size.
func OutOfBoundsTableAccess(idx uint32) *Error {
	return New(KindOutOfBoundsTableAccess, ir.I32(int32(idx)))
}
