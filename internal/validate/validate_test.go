package validate

import (
	"testing"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/testing/require"
)

func TestValidateEmptyModule(t *testing.T) {
	m, err := binary.Decode([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.NoError(t, Module(m))
}

// identityModuleBytes is `(module (type (func (param i32) (result i32)))
// (func (type 0) local.get 0) (export "identity" (func 0)))` encoded by
// hand (the seed case in spec.md §8).
func identityModuleBytes() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f, // type section
		0x03, 0x02, 0x01, 0x00, // function section
		0x07, 0x0c, 0x01, 0x08, 'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0x00, 0x00, // export section
		0x0a, 0x07, 0x01, 0x05, 0x00, 0x20, 0x00, 0x0b, // code section
	}
}

func TestValidateIdentityFunction(t *testing.T) {
	m, err := binary.Decode(identityModuleBytes())
	require.NoError(t, err)
	require.NoError(t, Module(m))
}

func TestValidateRejectsBadLocalIndex(t *testing.T) {
	m, err := binary.Decode(identityModuleBytes())
	require.NoError(t, err)
	// local.get of an index beyond the function's single param.
	m.Code[0].Body.Ops[0].LocalIndex = 5
	require.Error(t, Module(m))
}
