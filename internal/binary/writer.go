package binary

import (
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/leb128"
)

// writer accumulates encoded bytes. Unlike reader it never fails: encoding
// an ir.Module that came from a successful decode (or was otherwise built
// to satisfy ir's invariants) cannot run out of representable values.
type writer struct {
	buf []byte
	// typeIndex resolves a *ir.FuncType back to its slot in the module's
	// type section, for encoding the few immediates (import func/tag types)
	// that the IR stores as a resolved pointer rather than a raw index.
	// Only populated by Encode; nil (and unused) when a writer is used
	// purely for constExpr/operator encoding in isolation (e.g. tests).
	typeIndex map[*ir.FuncType]uint32
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) u32(v uint32) { w.buf = append(w.buf, leb128.EncodeUint32(v)...) }

func (w *writer) u64(v uint64) { w.buf = append(w.buf, leb128.EncodeUint64(v)...) }

func (w *writer) i32(v int32) { w.buf = append(w.buf, leb128.EncodeInt32(v)...) }

func (w *writer) i64(v int64) { w.buf = append(w.buf, leb128.EncodeInt64(v)...) }

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// vec encodes a LEB128 count immediately followed by whatever enc appends.
func (w *writer) vec(count int, enc func(*writer)) {
	w.u32(uint32(count))
	enc(w)
}

// sized encodes enc's output into a nested writer sharing this writer's
// typeIndex, then returns the nested bytes. Callers that need the
// length-prefixed framing for a section body immediately wrap the result
// with emit (see Encode); sized itself is also used for the per-function
// body framing within the code section, which is sized but not itself a
// top-level section.
func (w *writer) sized(enc func(*writer)) []byte {
	inner := &writer{typeIndex: w.typeIndex}
	enc(inner)
	return inner.buf
}
