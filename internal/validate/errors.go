package validate

import "fmt"

// InvalidError reports that a well-formed (codec-decodable) module violates
// a static precondition: type mismatches, out-of-range indices, malformed
// control-flow nesting, and every other rule in spec.md §4.D. It is
// distinct from the codec's MalformedError: an InvalidError always comes
// with a complete internal/ir.Module to point into.
type InvalidError struct {
	FuncIndex int // -1 for module-level (non-function) preconditions
	Reason    string
}

func (e *InvalidError) Error() string {
	if e.FuncIndex < 0 {
		return fmt.Sprintf("invalid module: %s", e.Reason)
	}
	return fmt.Sprintf("invalid module: function %d: %s", e.FuncIndex, e.Reason)
}

func invalid(funcIndex int, format string, args ...interface{}) error {
	return &InvalidError{FuncIndex: funcIndex, Reason: fmt.Sprintf(format, args...)}
}
