package binary

import "github.com/wavmgo/wavm/internal/ir"

// Value-type encoding bytes (spec.md §6.1); these are negative small
// integers in LEB form, i.e. single bytes with the high bit clear but the
// sign bit (0x40) set, by WebAssembly convention.
const (
	encI32       = 0x7F
	encI64       = 0x7E
	encF32       = 0x7D
	encF64       = 0x7C
	encV128      = 0x7B
	encFuncRef   = 0x70
	encExternRef = 0x6F
)

func decodeValueType(b byte) (ir.ValueType, bool) {
	switch b {
	case encI32:
		return ir.ValueTypeI32, true
	case encI64:
		return ir.ValueTypeI64, true
	case encF32:
		return ir.ValueTypeF32, true
	case encF64:
		return ir.ValueTypeF64, true
	case encV128:
		return ir.ValueTypeV128, true
	case encFuncRef:
		return ir.ValueTypeFuncRef, true
	case encExternRef:
		return ir.ValueTypeExternRef, true
	default:
		return 0, false
	}
}

func encodeValueType(t ir.ValueType) byte {
	switch t {
	case ir.ValueTypeI32:
		return encI32
	case ir.ValueTypeI64:
		return encI64
	case ir.ValueTypeF32:
		return encF32
	case ir.ValueTypeF64:
		return encF64
	case ir.ValueTypeV128:
		return encV128
	case ir.ValueTypeFuncRef:
		return encFuncRef
	case ir.ValueTypeExternRef:
		return encExternRef
	default:
		panic("binary: unencodable value type")
	}
}

func (r *reader) valueType() (ir.ValueType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	vt, ok := decodeValueType(b)
	if !ok {
		return 0, malformed(r.pos-1, "invalid value type 0x%x", b)
	}
	return vt, nil
}

func (r *reader) refType() (ir.RefKind, error) {
	vt, err := r.valueType()
	if err != nil {
		return 0, err
	}
	if !vt.IsReference() {
		return 0, malformed(r.pos-1, "expected a reference type, got %s", vt)
	}
	return vt, nil
}

func (r *reader) limits() (ir.Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return ir.Limits{}, err
	}
	if flag > 3 {
		return ir.Limits{}, malformed(r.pos-1, "invalid limits flag 0x%x", flag)
	}
	min, err := r.u32()
	if err != nil {
		return ir.Limits{}, err
	}
	l := ir.Limits{Min: min}
	if flag&0x1 != 0 {
		l.HasMax = true
		if l.Max, err = r.u32(); err != nil {
			return ir.Limits{}, err
		}
	}
	return l, nil
}
