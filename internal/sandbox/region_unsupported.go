//go:build !unix

package sandbox

import "errors"

// Region is the non-unix stub: no host in the engine's supported matrix
// currently builds this, but it keeps the package importable everywhere.
type Region struct{}

var errUnsupportedPlatform = errors.New("sandbox: address-space reservation is not supported on this platform")

func Reserve(numPages uint64, pageLog2 uint) (*Region, error) {
	return nil, errUnsupportedPlatform
}

func ReserveAligned(numPages uint64, pageLog2, alignmentLog2 uint) (*Region, error) {
	return nil, errUnsupportedPlatform
}

func (r *Region) Commit(offset, n uint64, access Access) error { return errUnsupportedPlatform }
func (r *Region) SetAccess(offset, n uint64, access Access) error {
	return errUnsupportedPlatform
}
func (r *Region) Decommit(offset, n uint64) error { return errUnsupportedPlatform }
func (r *Region) Release() error                  { return nil }
func (r *Region) Bytes() []byte                    { return nil }
func (r *Region) Len() uint64                      { return 0 }
