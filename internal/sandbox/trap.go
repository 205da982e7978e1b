package sandbox

import "runtime"

// Guarded runs fn with hardware-fault interception enabled for the
// calling goroutine (spec.md §4.E "hardware-trap interception"): an
// access violation raised while fn dereferences a pointer into a guard
// page or a decommitted range is recovered as a Go runtime error instead
// of crashing the process, and reported back as faulted.
//
// This is the idiomatic Go substitute for installing a platform signal /
// vectored-exception handler: runtime.SetPanicOnFault arms the runtime to
// convert the next invalid-memory-access fault on this goroutine into a
// recoverable panic. The trade-off is that Go does not surface the
// faulting address through this path (that detail lives in the OS
// siginfo, which the runtime consumes internally); callers that need the
// address the generated code was about to touch must carry it themselves
// — internal/runtime's execution boundary does this by recording the
// effective address immediately before issuing the access.
func Guarded(fn func()) (faulted bool, err error) {
	old := runtime.SetPanicOnFault(true)
	defer runtime.SetPanicOnFault(old)
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			faulted = true
			err = rerr
		}
	}()
	fn()
	return false, nil
}
