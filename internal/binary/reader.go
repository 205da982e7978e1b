package binary

import (
	"github.com/wavmgo/wavm/internal/leb128"
)

// reader is a movable cursor over a byte buffer, giving advance(n)
// semantics that fail with MalformedError on truncation (spec.md §4.A
// "Operates over a seekable byte buffer with a movable cursor").
type reader struct {
	buf []byte
	pos uint64
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) offset() uint64 { return r.pos }

func (r *reader) remaining() []byte { return r.buf[r.pos:] }

func (r *reader) eof() bool { return r.pos >= uint64(len(r.buf)) }

// advance consumes and returns the next n bytes, failing with a
// MalformedError on truncation.
func (r *reader) advance(n uint64) ([]byte, error) {
	if r.pos+n > uint64(len(r.buf)) || r.pos+n < r.pos {
		return nil, malformed(r.pos, "unexpected end of input, need %d bytes, have %d", n, uint64(len(r.buf))-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.advance(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	start := r.pos
	v, n, err := leb128.LoadUint32(r.remaining())
	if err != nil {
		return 0, malformed(start, "%s", err)
	}
	r.pos += n
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	start := r.pos
	v, n, err := leb128.LoadUint64(r.remaining())
	if err != nil {
		return 0, malformed(start, "%s", err)
	}
	r.pos += n
	return v, nil
}

func (r *reader) i32() (int32, error) {
	start := r.pos
	v, n, err := leb128.LoadInt32(r.remaining())
	if err != nil {
		return 0, malformed(start, "%s", err)
	}
	r.pos += n
	return v, nil
}

func (r *reader) i64() (int64, error) {
	start := r.pos
	v, n, err := leb128.LoadInt64(r.remaining())
	if err != nil {
		return 0, malformed(start, "%s", err)
	}
	r.pos += n
	return v, nil
}

// i33 decodes the 33-bit signed LEB used by block-type immediates, which
// must be wide enough to distinguish the small negative value-type
// encodings (as low as -0x40) from a non-negative type index up to 2^32-1
// (spec.md §6.1). The general signed decoder accepts up to 64 bits; this
// additionally rejects anything outside the 33-bit signed range so an
// over-wide encoding is caught here rather than silently truncated by a
// later uint32 cast.
func (r *reader) i33() (int64, error) {
	start := r.pos
	v, n, err := leb128.LoadInt64(r.remaining())
	if err != nil {
		return 0, malformed(start, "%s", err)
	}
	if v < -(1<<32) || v >= (1<<32) {
		return 0, malformed(start, "block type index %d does not fit in 33 bits", v)
	}
	r.pos += n
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.advance(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
