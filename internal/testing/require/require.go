// Package require implements a minimal assertion library used by every
// white-box _test.go file in this module, so that test intent reads the
// same way from package to package.
package require

import (
	"errors"
	"fmt"
	"reflect"
)

// TestingT is satisfied by *testing.T; it is an interface so tests of this
// package itself can supply a mock that records the log line instead of
// failing outright.
type TestingT interface {
	Fatal(args ...interface{})
}

// CapturePanic runs fn and returns the recovered panic value as an error,
// or nil if fn did not panic.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	fn()
	return
}

func fail(t TestingT, msg, format string, args ...interface{}) {
	if format != "" {
		msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(format, args...))
	} else if len(args) == 1 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	} else if len(args) > 1 {
		if s, ok := args[0].(string); ok {
			msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(s, args[1:]...))
		}
	}
	t.Fatal(msg)
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%#v", x)
	case nil:
		return "nil"
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Struct {
			return fmt.Sprintf("%#v", v)
		}
		return fmt.Sprintf("%v", v)
	}
}

// Contains fails unless haystack contains needle.
func Contains(t TestingT, haystack, needle string, formatWithArgs ...interface{}) {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return
		}
	}
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	fail(t, fmt.Sprintf("expected %q to contain %q", haystack, needle), format, args...)
}

func typedEqual(expected, actual interface{}) bool {
	return reflect.DeepEqual(expected, actual)
}

// Equal fails unless expected and actual are the same type and deeply equal.
func Equal(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if actual == nil {
		if expected == nil {
			return
		}
		fail(t, fmt.Sprintf("expected %s, but was nil", formatValue(expected)), format, args...)
		return
	}
	et, at := reflect.TypeOf(expected), reflect.TypeOf(actual)
	if et != at {
		fail(t, fmt.Sprintf("expected %s(%v), but was %s(%v)", et, expected, at, actual), format, args...)
		return
	}
	if typedEqual(expected, actual) {
		return
	}
	switch expected.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		fail(t, fmt.Sprintf("expected %s, but was %s", formatValue(expected), formatValue(actual)), format, args...)
	default:
		msg := "unexpected value"
		if format != "" {
			msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(format, args...))
		} else if len(args) > 0 {
			msg = fmt.Sprintf("%s: %v", msg, args[0])
		}
		t.Fatal(fmt.Sprintf("%s\nexpected:\n\t%s\nwas:\n\t%s\n", msg, formatValue(expected), formatValue(actual)))
	}
}

// NotEqual fails if expected and actual are deeply equal.
func NotEqual(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if typedEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected to not equal %s", formatValue(expected)), format, args...)
	}
}

// Same fails unless a and b point to the same object.
func Same(t TestingT, a, b interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() || av.Pointer() != bv.Pointer() {
		fail(t, fmt.Sprintf("expected %v to point to the same object as %v", a, b), format, args...)
	}
}

// NotSame fails if a and b point to the same object.
func NotSame(t TestingT, a, b interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() == bv.Type() && av.Pointer() == bv.Pointer() {
		fail(t, fmt.Sprintf("expected %v to point to a different object", a), format, args...)
	}
}

// EqualError fails unless err is non-nil and err.Error() == msg.
func EqualError(t TestingT, err error, msg string, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if err == nil {
		fail(t, "expected an error, but was nil", format, args...)
		return
	}
	if err.Error() != msg {
		fail(t, fmt.Sprintf("expected error %q, but was %q", msg, err.Error()), format, args...)
	}
}

// Error fails if err is nil.
func Error(t TestingT, err error, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if err == nil {
		fail(t, "expected an error, but was nil", format, args...)
	}
}

// ErrorIs fails unless errors.Is(err, target).
func ErrorIs(t TestingT, err, target error, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if !errors.Is(err, target) {
		fail(t, fmt.Sprintf("expected errors.Is(%v, %v), but it wasn't", err, target), format, args...)
	}
}

// Nil fails unless v is nil.
func Nil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if v != nil {
		fail(t, fmt.Sprintf("expected nil, but was %v", v), format, args...)
	}
}

// NotNil fails if v is nil.
func NotNil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if v == nil {
		fail(t, "expected to not be nil", format, args...)
	}
}

// NoError fails if err is non-nil.
func NoError(t TestingT, err error, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if err != nil {
		fail(t, fmt.Sprintf("expected no error, but was %v", err), format, args...)
	}
}

// True fails unless v is true.
func True(t TestingT, v bool, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if !v {
		fail(t, "expected true, but was false", format, args...)
	}
}

// False fails unless v is false.
func False(t TestingT, v bool, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	if v {
		fail(t, "expected false, but was true", format, args...)
	}
}

// Zero fails unless v is the zero value of its type.
func Zero(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	var format string
	var args []interface{}
	if len(formatWithArgs) > 0 {
		format, args = formatWithArgs[0].(string), formatWithArgs[1:]
	}
	rv := reflect.ValueOf(v)
	if !rv.IsZero() {
		fail(t, fmt.Sprintf("expected zero, but was %v", v), format, args...)
	}
}
