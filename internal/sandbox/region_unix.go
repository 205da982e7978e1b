//go:build unix

package sandbox

import (
	"fmt"
	"syscall"
	"unsafe"
)

// Region is a single address-space reservation (spec.md §4.E): a range of
// pages mapped PROT_NONE at Reserve time, with sub-ranges committed to
// readOnly/readWrite/execute/readWriteExecute as the owner needs them.
type Region struct {
	mem []byte
}

func accessToProt(a Access) int {
	switch a {
	case AccessNone:
		return syscall.PROT_NONE
	case AccessReadOnly:
		return syscall.PROT_READ
	case AccessReadWrite:
		return syscall.PROT_READ | syscall.PROT_WRITE
	case AccessExecute:
		return syscall.PROT_EXEC
	case AccessReadWriteExecute:
		return syscall.PROT_READ | syscall.PROT_WRITE | syscall.PROT_EXEC
	default:
		panic(fmt.Sprintf("sandbox: unknown access %d", a))
	}
}

// Reserve reserves numPages<<pageLog2 bytes of address space with no
// access granted yet ("reserve(numPages) → base").
func Reserve(numPages uint64, pageLog2 uint) (*Region, error) {
	return ReserveAligned(numPages, pageLog2, pageLog2)
}

// ReserveAligned reserves the same range aligned to a 1<<alignmentLog2
// boundary, used by compartments to place runtime-data regions at
// addresses generated code can index into cheaply.
func ReserveAligned(numPages uint64, pageLog2, alignmentLog2 uint) (*Region, error) {
	size := roundUpToPage(uintptr(numPages)<<pageLog2, PageSize())
	if size == 0 {
		return &Region{}, nil
	}
	align := uintptr(1) << alignmentLog2
	if align <= PageSize() {
		mem, err := syscall.Mmap(-1, 0, int(size), syscall.PROT_NONE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
		if err != nil {
			return nil, fmt.Errorf("sandbox: reserve %d bytes: %w", size, err)
		}
		return &Region{mem: mem}, nil
	}

	// No anonymous-mmap API hands back a pre-aligned address directly, so
	// over-reserve by one alignment unit and trim the slack on either
	// side of the aligned sub-range.
	big, err := syscall.Mmap(-1, 0, int(size+align), syscall.PROT_NONE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("sandbox: reserve %d bytes aligned to %d: %w", size, align, err)
	}
	base := uintptr(unsafe.Pointer(&big[0]))
	alignedBase := alignUp(base, align)
	preSlack := alignedBase - base
	postSlack := uintptr(len(big)) - preSlack - size

	if preSlack > 0 {
		if err := syscall.Munmap(big[:preSlack]); err != nil {
			return nil, fmt.Errorf("sandbox: trim leading slack: %w", err)
		}
	}
	if postSlack > 0 {
		if err := syscall.Munmap(big[preSlack+size:]); err != nil {
			return nil, fmt.Errorf("sandbox: trim trailing slack: %w", err)
		}
	}
	return &Region{mem: big[preSlack : preSlack+size]}, nil
}

func (r *Region) subrange(offset, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if r == nil || offset+n > uint64(len(r.mem)) {
		var have int
		if r != nil {
			have = len(r.mem)
		}
		return nil, fmt.Errorf("sandbox: range [%d,%d) outside reservation of %d bytes", offset, offset+n, have)
	}
	return r.mem[offset : offset+n], nil
}

// mprotectRange changes protection over the page-aligned superset of
// [offset, offset+n), since mprotect operates on whole pages.
func (r *Region) mprotectRange(offset, n uint64, prot int) error {
	if n == 0 {
		return nil
	}
	ps := PageSize()
	start := roundDownToPage(uintptr(offset), ps)
	end := roundUpToPage(uintptr(offset+n), ps)
	sub, err := r.subrange(uint64(start), uint64(end-start))
	if err != nil {
		return err
	}
	if len(sub) == 0 {
		return nil
	}
	if err := syscall.Mprotect(sub, prot); err != nil {
		return fmt.Errorf("sandbox: mprotect [%d,%d): %w", start, end, err)
	}
	return nil
}

// Commit grants access over [offset, offset+n) ("commit(base, n, access)").
func (r *Region) Commit(offset, n uint64, access Access) error {
	return r.mprotectRange(offset, n, accessToProt(access))
}

// SetAccess changes protection over an already-committed range.
func (r *Region) SetAccess(offset, n uint64, access Access) error {
	return r.mprotectRange(offset, n, accessToProt(access))
}

// Decommit revokes access over [offset, offset+n) without releasing the
// address-space reservation; a later Commit can re-grant it.
func (r *Region) Decommit(offset, n uint64) error {
	return r.mprotectRange(offset, n, syscall.PROT_NONE)
}

// Release gives back the entire reservation. The Region must not be used
// afterward.
func (r *Region) Release() error {
	if r == nil || len(r.mem) == 0 {
		return nil
	}
	err := syscall.Munmap(r.mem)
	r.mem = nil
	if err != nil {
		return fmt.Errorf("sandbox: release: %w", err)
	}
	return nil
}

// Bytes returns the live byte slice spanning the whole reservation.
// Reading or writing outside a Commit'ed sub-range faults (spec.md §4.E).
func (r *Region) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.mem
}

// Len reports the reservation's total size in bytes.
func (r *Region) Len() uint64 {
	if r == nil {
		return 0
	}
	return uint64(len(r.mem))
}
