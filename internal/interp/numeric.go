package interp

import (
	"math"
	"math/bits"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/moremath"
	"github.com/wavmgo/wavm/internal/trap"
)

// execNumeric executes one of the ~120 arithmetic/comparison/conversion
// operators, dispatched on the name ir.Lookup already assigns it (e.g.
// "i32.add", "f64.trunc_i32_s") rather than re-enumerating opcodes by
// hand, so internal/ir/operators.go's table stays the single source of
// truth for which operators exist.
func execNumeric(name string, st *opStack) error {
	switch name {
	// i32 comparisons
	case "i32.eqz":
		st.push(boolI32(st.pop().I32() == 0))
	case "i32.eq":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a == b))
	case "i32.ne":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a != b))
	case "i32.lt_s":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a < b))
	case "i32.lt_u":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(boolI32(a < b))
	case "i32.gt_s":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a > b))
	case "i32.gt_u":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(boolI32(a > b))
	case "i32.le_s":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a <= b))
	case "i32.le_u":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(boolI32(a <= b))
	case "i32.ge_s":
		b, a := st.pop().I32(), st.pop().I32()
		st.push(boolI32(a >= b))
	case "i32.ge_u":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(boolI32(a >= b))

	// i64 comparisons
	case "i64.eqz":
		st.push(boolI32(st.pop().I64() == 0))
	case "i64.eq":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a == b))
	case "i64.ne":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a != b))
	case "i64.lt_s":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a < b))
	case "i64.lt_u":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(boolI32(a < b))
	case "i64.gt_s":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a > b))
	case "i64.gt_u":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(boolI32(a > b))
	case "i64.le_s":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a <= b))
	case "i64.le_u":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(boolI32(a <= b))
	case "i64.ge_s":
		b, a := st.pop().I64(), st.pop().I64()
		st.push(boolI32(a >= b))
	case "i64.ge_u":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(boolI32(a >= b))

	// f32/f64 comparisons
	case "f32.eq":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a == b))
	case "f32.ne":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a != b))
	case "f32.lt":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a < b))
	case "f32.gt":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a > b))
	case "f32.le":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a <= b))
	case "f32.ge":
		b, a := popF32(st), popF32(st)
		st.push(boolI32(a >= b))
	case "f64.eq":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a == b))
	case "f64.ne":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a != b))
	case "f64.lt":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a < b))
	case "f64.gt":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a > b))
	case "f64.le":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a <= b))
	case "f64.ge":
		b, a := popF64(st), popF64(st)
		st.push(boolI32(a >= b))

	// i32 arithmetic
	case "i32.clz":
		st.push(ir.I32(int32(bits.LeadingZeros32(st.pop().U32()))))
	case "i32.ctz":
		st.push(ir.I32(int32(bits.TrailingZeros32(st.pop().U32()))))
	case "i32.popcnt":
		st.push(ir.I32(int32(bits.OnesCount32(st.pop().U32()))))
	case "i32.add":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a + b)))
	case "i32.sub":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a - b)))
	case "i32.mul":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a * b)))
	case "i32.div_s":
		b, a := st.pop().I32(), st.pop().I32()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		if a == math.MinInt32 && b == -1 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I32(a / b))
	case "i32.div_u":
		b, a := st.pop().U32(), st.pop().U32()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I32(int32(a / b)))
	case "i32.rem_s":
		b, a := st.pop().I32(), st.pop().I32()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		if a == math.MinInt32 && b == -1 {
			st.push(ir.I32(0))
		} else {
			st.push(ir.I32(a % b))
		}
	case "i32.rem_u":
		b, a := st.pop().U32(), st.pop().U32()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I32(int32(a % b)))
	case "i32.and":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a & b)))
	case "i32.or":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a | b)))
	case "i32.xor":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a ^ b)))
	case "i32.shl":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a << (b & 31))))
	case "i32.shr_s":
		b, a := st.pop().U32(), st.pop().I32()
		st.push(ir.I32(a >> (b & 31)))
	case "i32.shr_u":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(a >> (b & 31))))
	case "i32.rotl":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(bits.RotateLeft32(a, int(b&31)))))
	case "i32.rotr":
		b, a := st.pop().U32(), st.pop().U32()
		st.push(ir.I32(int32(bits.RotateLeft32(a, -int(b&31)))))

	// i64 arithmetic
	case "i64.clz":
		st.push(ir.I64(int64(bits.LeadingZeros64(st.pop().U64()))))
	case "i64.ctz":
		st.push(ir.I64(int64(bits.TrailingZeros64(st.pop().U64()))))
	case "i64.popcnt":
		st.push(ir.I64(int64(bits.OnesCount64(st.pop().U64()))))
	case "i64.add":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a + b)))
	case "i64.sub":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a - b)))
	case "i64.mul":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a * b)))
	case "i64.div_s":
		b, a := st.pop().I64(), st.pop().I64()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		if a == math.MinInt64 && b == -1 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I64(a / b))
	case "i64.div_u":
		b, a := st.pop().U64(), st.pop().U64()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I64(int64(a / b)))
	case "i64.rem_s":
		b, a := st.pop().I64(), st.pop().I64()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		if a == math.MinInt64 && b == -1 {
			st.push(ir.I64(0))
		} else {
			st.push(ir.I64(a % b))
		}
	case "i64.rem_u":
		b, a := st.pop().U64(), st.pop().U64()
		if b == 0 {
			return trap.ErrIntegerDivideByZero
		}
		st.push(ir.I64(int64(a % b)))
	case "i64.and":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a & b)))
	case "i64.or":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a | b)))
	case "i64.xor":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a ^ b)))
	case "i64.shl":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a << (b & 63))))
	case "i64.shr_s":
		b, a := st.pop().U64(), st.pop().I64()
		st.push(ir.I64(a >> (b & 63)))
	case "i64.shr_u":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(a >> (b & 63))))
	case "i64.rotl":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(bits.RotateLeft64(a, int(b&63)))))
	case "i64.rotr":
		b, a := st.pop().U64(), st.pop().U64()
		st.push(ir.I64(int64(bits.RotateLeft64(a, -int(b&63)))))

	// f32 arithmetic
	case "f32.abs":
		st.push(f32v(float32(math.Abs(float64(popF32(st))))))
	case "f32.neg":
		st.push(f32v(-popF32(st)))
	case "f32.ceil":
		st.push(f32v(float32(math.Ceil(float64(popF32(st))))))
	case "f32.floor":
		st.push(f32v(float32(math.Floor(float64(popF32(st))))))
	case "f32.trunc":
		st.push(f32v(float32(math.Trunc(float64(popF32(st))))))
	case "f32.nearest":
		st.push(f32v(float32(math.RoundToEven(float64(popF32(st))))))
	case "f32.sqrt":
		st.push(f32v(float32(math.Sqrt(float64(popF32(st))))))
	case "f32.add":
		b, a := popF32(st), popF32(st)
		st.push(f32v(a + b))
	case "f32.sub":
		b, a := popF32(st), popF32(st)
		st.push(f32v(a - b))
	case "f32.mul":
		b, a := popF32(st), popF32(st)
		st.push(f32v(a * b))
	case "f32.div":
		b, a := popF32(st), popF32(st)
		st.push(f32v(a / b))
	case "f32.min":
		b, a := popF32(st), popF32(st)
		st.push(f32v(float32(moremath.WasmCompatMin(float64(a), float64(b)))))
	case "f32.max":
		b, a := popF32(st), popF32(st)
		st.push(f32v(float32(moremath.WasmCompatMax(float64(a), float64(b)))))
	case "f32.copysign":
		b, a := popF32(st), popF32(st)
		st.push(f32v(float32(math.Copysign(float64(a), float64(b)))))

	// f64 arithmetic
	case "f64.abs":
		st.push(ir.F64Bits(math.Float64bits(math.Abs(popF64(st)))))
	case "f64.neg":
		st.push(f64v(-popF64(st)))
	case "f64.ceil":
		st.push(f64v(math.Ceil(popF64(st))))
	case "f64.floor":
		st.push(f64v(math.Floor(popF64(st))))
	case "f64.trunc":
		st.push(f64v(math.Trunc(popF64(st))))
	case "f64.nearest":
		st.push(f64v(math.RoundToEven(popF64(st))))
	case "f64.sqrt":
		st.push(f64v(math.Sqrt(popF64(st))))
	case "f64.add":
		b, a := popF64(st), popF64(st)
		st.push(f64v(a + b))
	case "f64.sub":
		b, a := popF64(st), popF64(st)
		st.push(f64v(a - b))
	case "f64.mul":
		b, a := popF64(st), popF64(st)
		st.push(f64v(a * b))
	case "f64.div":
		b, a := popF64(st), popF64(st)
		st.push(f64v(a / b))
	case "f64.min":
		b, a := popF64(st), popF64(st)
		st.push(f64v(moremath.WasmCompatMin(a, b)))
	case "f64.max":
		b, a := popF64(st), popF64(st)
		st.push(f64v(moremath.WasmCompatMax(a, b)))
	case "f64.copysign":
		b, a := popF64(st), popF64(st)
		st.push(f64v(math.Copysign(a, b)))

	// Conversions
	case "i32.wrap_i64":
		st.push(ir.I32(int32(st.pop().U64())))
	case "i32.trunc_f32_s":
		v, err := truncToI32(float64(popF32(st)), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(v)))
	case "i32.trunc_f32_u":
		v, err := truncToU32(float64(popF32(st)))
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(v)))
	case "i32.trunc_f64_s":
		v, err := truncToI32(popF64(st), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(v)))
	case "i32.trunc_f64_u":
		v, err := truncToU32(popF64(st))
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(v)))
	case "i64.extend_i32_s":
		st.push(ir.I64(int64(st.pop().I32())))
	case "i64.extend_i32_u":
		st.push(ir.I64(int64(st.pop().U32())))
	case "i64.trunc_f32_s":
		v, err := truncToI64(float64(popF32(st)))
		if err != nil {
			return err
		}
		st.push(ir.I64(v))
	case "i64.trunc_f32_u":
		v, err := truncToU64(float64(popF32(st)))
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(v)))
	case "i64.trunc_f64_s":
		v, err := truncToI64(popF64(st))
		if err != nil {
			return err
		}
		st.push(ir.I64(v))
	case "i64.trunc_f64_u":
		v, err := truncToU64(popF64(st))
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(v)))
	case "f32.convert_i32_s":
		st.push(f32v(float32(st.pop().I32())))
	case "f32.convert_i32_u":
		st.push(f32v(float32(st.pop().U32())))
	case "f32.convert_i64_s":
		st.push(f32v(float32(st.pop().I64())))
	case "f32.convert_i64_u":
		st.push(f32v(float32(st.pop().U64())))
	case "f32.demote_f64":
		st.push(f32v(float32(popF64(st))))
	case "f64.convert_i32_s":
		st.push(f64v(float64(st.pop().I32())))
	case "f64.convert_i32_u":
		st.push(f64v(float64(st.pop().U32())))
	case "f64.convert_i64_s":
		st.push(f64v(float64(st.pop().I64())))
	case "f64.convert_i64_u":
		st.push(f64v(float64(st.pop().U64())))
	case "f64.promote_f32":
		st.push(f64v(float64(popF32(st))))
	case "i32.reinterpret_f32":
		st.push(ir.I32(int32(st.pop().F32Bits())))
	case "i64.reinterpret_f64":
		st.push(ir.I64(int64(st.pop().F64Bits())))
	case "f32.reinterpret_i32":
		st.push(ir.F32Bits(st.pop().U32()))
	case "f64.reinterpret_i64":
		st.push(ir.F64Bits(st.pop().U64()))

	// Sign extension
	case "i32.extend8_s":
		st.push(ir.I32(int32(int8(st.pop().U32()))))
	case "i32.extend16_s":
		st.push(ir.I32(int32(int16(st.pop().U32()))))
	case "i64.extend8_s":
		st.push(ir.I64(int64(int8(st.pop().U64()))))
	case "i64.extend16_s":
		st.push(ir.I64(int64(int16(st.pop().U64()))))
	case "i64.extend32_s":
		st.push(ir.I64(int64(int32(st.pop().U64()))))

	// Non-trapping float-to-int
	case "i32.trunc_sat_f32_s":
		st.push(ir.I32(satToI32(float64(popF32(st)))))
	case "i32.trunc_sat_f32_u":
		st.push(ir.I32(int32(satToU32(float64(popF32(st))))))
	case "i32.trunc_sat_f64_s":
		st.push(ir.I32(satToI32(popF64(st))))
	case "i32.trunc_sat_f64_u":
		st.push(ir.I32(int32(satToU32(popF64(st)))))
	case "i64.trunc_sat_f32_s":
		st.push(ir.I64(satToI64(float64(popF32(st)))))
	case "i64.trunc_sat_f32_u":
		st.push(ir.I64(int64(satToU64(float64(popF32(st))))))
	case "i64.trunc_sat_f64_s":
		st.push(ir.I64(satToI64(popF64(st))))
	case "i64.trunc_sat_f64_u":
		st.push(ir.I64(int64(satToU64(popF64(st)))))

	default:
		return trap.New(trap.KindUnreachable)
	}
	return nil
}

func popF32(st *opStack) float32 { return math.Float32frombits(st.pop().F32Bits()) }
func popF64(st *opStack) float64 { return math.Float64frombits(st.pop().F64Bits()) }

func boolI32(b bool) ir.Value {
	if b {
		return ir.I32(1)
	}
	return ir.I32(0)
}

func f32v(f float32) ir.Value { return ir.F32Bits(math.Float32bits(f)) }
func f64v(f float64) ir.Value { return ir.F64Bits(math.Float64bits(f)) }

func truncToI32(f float64, lo, hi int64) (int64, error) {
	if math.IsNaN(f) {
		return 0, trap.ErrInvalidFloatOperation
	}
	t := math.Trunc(f)
	if t < float64(lo) || t > float64(hi) {
		return 0, trap.ErrIntegerDivideByZero
	}
	return int64(t), nil
}

func truncToU32(f float64) (uint64, error) {
	if math.IsNaN(f) {
		return 0, trap.ErrInvalidFloatOperation
	}
	t := math.Trunc(f)
	if t < 0 || t > math.MaxUint32 {
		return 0, trap.ErrIntegerDivideByZero
	}
	return uint64(t), nil
}

func truncToI64(f float64) (int64, error) {
	if math.IsNaN(f) {
		return 0, trap.ErrInvalidFloatOperation
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, trap.ErrIntegerDivideByZero
	}
	return int64(t), nil
}

func truncToU64(f float64) (uint64, error) {
	if math.IsNaN(f) {
		return 0, trap.ErrInvalidFloatOperation
	}
	t := math.Trunc(f)
	if t < 0 || t >= math.MaxUint64 {
		return 0, trap.ErrIntegerDivideByZero
	}
	return uint64(t), nil
}

func satToI32(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	switch {
	case t < math.MinInt32:
		return math.MinInt32
	case t > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(t)
	}
}

func satToU32(f float64) uint32 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	t := math.Trunc(f)
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t)
}

func satToI64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	switch {
	case t < math.MinInt64:
		return math.MinInt64
	case t >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(t)
	}
}

func satToU64(f float64) uint64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	t := math.Trunc(f)
	if t >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(t)
}
