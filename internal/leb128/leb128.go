// Package leb128 implements the signed and unsigned LEB128 variable-length
// integer encoding used throughout the binary format (see SPEC_FULL.md §A,
// spec.md §4.A). Decoding is strict: an encoding that does not consume
// exactly the number of bytes needed to represent its declared width is
// rejected, per the "no overlong forms" rule in §4.A.
package leb128

import (
	"errors"
	"io"
)

var (
	errOverflow32 = errors.New("leb128: value out of range for 32 bits")
	errOverflow64 = errors.New("leb128: value out of range for 64 bits")
	errTruncated  = io.ErrUnexpectedEOF
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return appendUleb64(nil, uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return appendUleb64(nil, v) }

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return appendSleb64(nil, int64(v)) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte { return appendSleb64(nil, v) }

func appendUleb64(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}

func appendSleb64(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value of at most 32 bits from the
// head of buf, returning the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUvarint(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned LEB128 value of at most 64 bits from the
// head of buf, returning the number of bytes consumed.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUvarint(buf, 64)
}

// LoadInt32 decodes a signed LEB128 value of at most 32 bits from the head
// of buf, returning the number of bytes consumed.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSvarint(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed LEB128 value of at most 64 bits from the head
// of buf, returning the number of bytes consumed.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadSvarint(buf, 64)
}

func loadUvarint(buf []byte, width uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, errTruncated
		}
		b := buf[i]
		if shift+7 >= 64 && b&0x7f>>(64-shift) != 0 {
			return 0, 0, errOverflow64
		}
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if width < 64 && shift > width && (result>>width) != 0 {
				return 0, 0, errOverflow32
			}
			return result, uint64(i + 1), nil
		}
	}
}

func loadSvarint(buf []byte, width uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	i := 0
	for {
		if i >= len(buf) {
			return 0, 0, errTruncated
		}
		b = buf[i]
		result |= int64(b&0x7f) << shift
		shift += 7
		i++
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if width < 64 {
		top := result >> (width - 1)
		if top != 0 && top != -1 {
			return 0, 0, errOverflow32
		}
	}
	return result, uint64(i), nil
}

// DecodeUint32 reads an unsigned LEB128 value of at most 32 bits from r.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUvarint(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 reads an unsigned LEB128 value of at most 64 bits from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUvarint(r, 64)
}

// DecodeInt32 reads a signed LEB128 value of at most 32 bits from r.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSvarint(r, 32)
	return int32(v), n, err
}

// DecodeInt64 reads a signed LEB128 value of at most 64 bits from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSvarint(r, 64)
}

// DecodeInt33AsInt64 reads a signed LEB128 value of at most 33 bits (the
// width used for block-type immediates, which must distinguish the small
// negative value-type encodings from a positive type-index) from r,
// widened to int64.
func DecodeInt33AsInt64(r io.Reader) (int64, uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}
	return decodeSvarint(br, 33)
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func decodeUvarint(r io.ByteReader, width uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, 0, err
		}
		n++
		if shift+7 >= 64 && b&0x7f>>(64-shift) != 0 {
			return 0, 0, errOverflow64
		}
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if width < 64 && shift > width && (result>>width) != 0 {
				return 0, 0, errOverflow32
			}
			return result, n, nil
		}
	}
}

func decodeSvarint(r io.ByteReader, width uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	var n uint64
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, 0, err
		}
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if width < 64 {
		top := result >> (width - 1)
		if top != 0 && top != -1 {
			return 0, 0, errOverflow32
		}
	}
	return result, n, nil
}
