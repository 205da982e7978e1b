package binary

import "github.com/wavmgo/wavm/internal/ir"

// constExpr decodes a constant initializer expression: exactly one
// constant-producing operator followed by `end` (spec.md §4.D.5). The
// binary codec only recognizes the shape here; whether a global.get
// target is actually an imported immutable global of the matching type is
// a validator concern (§4.D precondition 5), not a codec one.
func (r *reader) constExpr() (ir.ConstExpr, error) {
	op, err := r.byte()
	if err != nil {
		return ir.ConstExpr{}, err
	}
	var ce ir.ConstExpr
	switch ir.Opcode(op) {
	case ir.OpI32Const:
		v, err := r.i32()
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprI32Const, I32: v}
	case ir.OpI64Const:
		v, err := r.i64()
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprI64Const, I64: v}
	case ir.OpF32Const:
		b, err := r.advance(4)
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprF32Const, F32Bits: leUint32(b)}
	case ir.OpF64Const:
		b, err := r.advance(8)
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprF64Const, F64Bits: leUint64(b)}
	case ir.OpRefNull:
		rt, err := r.refType()
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprRefNull, RefNullType: rt}
	case ir.OpRefFunc:
		idx, err := r.u32()
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprRefFunc, Index: idx}
	case ir.OpGlobalGet:
		idx, err := r.u32()
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprGlobalGet, Index: idx}
	case ir.Opcode(ir.PrefixSIMD):
		sub, err := r.u32()
		if err != nil {
			return ce, err
		}
		const simdV128Const = 0x0C
		if byte(sub) != simdV128Const {
			return ce, malformed(r.pos-1, "simd opcode 0x%x is not valid in a constant expression", sub)
		}
		b, err := r.advance(16)
		if err != nil {
			return ce, err
		}
		ce = ir.ConstExpr{Op: ir.ConstExprV128Const, V128Lo: leUint64(b[:8]), V128Hi: leUint64(b[8:])}
	default:
		return ce, malformed(r.pos-1, "opcode 0x%x is not valid in a constant expression", op)
	}
	end, err := r.byte()
	if err != nil {
		return ce, err
	}
	if ir.Opcode(end) != ir.OpEnd {
		return ce, malformed(r.pos-1, "expected end of constant expression, got 0x%x", end)
	}
	return ce, nil
}

func (w *writer) constExpr(ce ir.ConstExpr) {
	switch ce.Op {
	case ir.ConstExprI32Const:
		w.byte(byte(ir.OpI32Const))
		w.i32(ce.I32)
	case ir.ConstExprI64Const:
		w.byte(byte(ir.OpI64Const))
		w.i64(ce.I64)
	case ir.ConstExprF32Const:
		w.byte(byte(ir.OpF32Const))
		w.bytes(leBytes32(ce.F32Bits))
	case ir.ConstExprF64Const:
		w.byte(byte(ir.OpF64Const))
		w.bytes(leBytes64(ce.F64Bits))
	case ir.ConstExprV128Const:
		w.byte(ir.PrefixSIMD)
		w.u32(0x0C)
		w.bytes(leBytes64(ce.V128Lo))
		w.bytes(leBytes64(ce.V128Hi))
	case ir.ConstExprRefNull:
		w.byte(byte(ir.OpRefNull))
		w.byte(encodeValueType(ce.RefNullType))
	case ir.ConstExprRefFunc:
		w.byte(byte(ir.OpRefFunc))
		w.u32(ce.Index)
	case ir.ConstExprGlobalGet:
		w.byte(byte(ir.OpGlobalGet))
		w.u32(ce.Index)
	}
	w.byte(byte(ir.OpEnd))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func leBytes32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func leBytes64(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}
