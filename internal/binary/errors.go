package binary

import "fmt"

// MalformedError reports that the codec could not parse the input bytes
// at all (spec.md §7 "malformed (codec rejects the bytes)"). It is
// distinct from the validator's InvalidError: malformed bytes never even
// produce a candidate ir.Module to validate.
type MalformedError struct {
	Offset  uint64
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed module at offset %#x: %s", e.Offset, e.Reason)
}

func malformed(offset uint64, format string, args ...interface{}) error {
	return &MalformedError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
