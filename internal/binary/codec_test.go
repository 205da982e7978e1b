package binary

import (
	"testing"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/testing/require"
)

func emptyModuleBytes() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func TestDecodeEmptyModule(t *testing.T) {
	m, err := Decode(emptyModuleBytes())
	require.NoError(t, err)
	require.Zero(t, len(m.Types))
	require.Zero(t, len(m.Imports))
	require.Equal(t, int64(-1), m.Start)
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
	_, ok := err.(*MalformedError)
	require.True(t, ok, "expected a *MalformedError")
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73})
	require.Error(t, err)
}

// identityModuleBytes encodes a single function `(func (param i32) (result
// i32) local.get 0)` exported as "identity" (the seed case in spec.md §8).
func identityModuleBytes() []byte {
	w := &writer{}
	w.bytes(emptyModuleBytes())
	// type section: [i32] -> [i32]
	w.byte(sectionType)
	w.bytes(w.sized(func(b *writer) {
		b.vec(1, func(b *writer) {
			b.byte(0x60)
			b.vec(1, func(b *writer) { b.byte(encI32) })
			b.vec(1, func(b *writer) { b.byte(encI32) })
		})
	}))
	// function section: func 0 has type 0
	w.byte(sectionFunction)
	w.bytes(w.sized(func(b *writer) {
		b.vec(1, func(b *writer) { b.u32(0) })
	}))
	// export section: "identity" -> func 0
	w.byte(sectionExport)
	w.bytes(w.sized(func(b *writer) {
		b.vec(1, func(b *writer) {
			b.name("identity")
			b.byte(byte(ir.ExternKindFunc))
			b.u32(0)
		})
	}))
	// code section: one empty-locals body, local.get 0; end
	w.byte(sectionCode)
	w.bytes(w.sized(func(b *writer) {
		b.vec(1, func(b *writer) {
			body := b.sized(func(b *writer) {
				b.vec(0, func(*writer) {})
				b.byte(byte(ir.OpLocalGet))
				b.u32(0)
				b.byte(byte(ir.OpEnd))
			})
			b.bytes(body)
		})
	}))
	return w.buf
}

func TestDecodeIdentityFunction(t *testing.T) {
	m, err := Decode(identityModuleBytes())
	require.NoError(t, err)
	require.Equal(t, 1, len(m.Types))
	require.Equal(t, 1, len(m.Code))
	require.Equal(t, 1, len(m.Exports))
	require.Equal(t, "identity", m.Exports[0].Name)
	ops := m.Code[0].Body.Ops
	require.Equal(t, 2, len(ops))
	require.Equal(t, ir.OpLocalGet, ops[0].Opcode)
	require.Equal(t, uint32(0), ops[0].LocalIndex)
	require.Equal(t, ir.OpEnd, ops[1].Opcode)
}

func TestCodecRoundTrip(t *testing.T) {
	for _, tc := range [][]byte{emptyModuleBytes(), identityModuleBytes()} {
		m, err := Decode(tc)
		require.NoError(t, err)
		out := Encode(m)
		require.Equal(t, tc, out)
	}
}
