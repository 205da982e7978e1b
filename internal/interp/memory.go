package interp

import (
	"encoding/binary"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/trap"
)

func isMemOp(op ir.Opcode) bool {
	switch op {
	case ir.OpI32Load, ir.OpI64Load, ir.OpF32Load, ir.OpF64Load,
		ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Load16S, ir.OpI32Load16U,
		ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Load16S, ir.OpI64Load16U,
		ir.OpI64Load32S, ir.OpI64Load32U,
		ir.OpI32Store, ir.OpI64Store, ir.OpF32Store, ir.OpF64Store,
		ir.OpI32Store8, ir.OpI32Store16, ir.OpI64Store8, ir.OpI64Store16, ir.OpI64Store32:
		return true
	}
	return false
}

// execMemOp executes one non-atomic load/store instruction against m.mem,
// bounds-checking the effective address and translating an out-of-range
// access into a trap.OutOfBoundsMemoryAccess (spec.md §7 seed test 4).
func (m *machine) execMemOp(op ir.DecodedOp, st *opStack) error {
	mem := m.mem.Bytes()

	bounds := func(addr, width uint64) ([]byte, error) {
		if addr+width > uint64(len(mem)) {
			return nil, trap.OutOfBoundsMemoryAccess(addr)
		}
		return mem[addr : addr+width], nil
	}
	read, write := bounds, bounds
	effAddr := func() uint64 {
		return uint64(uint32(st.pop().I32())) + uint64(op.MemArgOffset)
	}

	switch op.Opcode {
	case ir.OpI32Load:
		addr := effAddr()
		b, err := read(addr, 4)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(binary.LittleEndian.Uint32(b))))
	case ir.OpI64Load:
		addr := effAddr()
		b, err := read(addr, 8)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(binary.LittleEndian.Uint64(b))))
	case ir.OpF32Load:
		addr := effAddr()
		b, err := read(addr, 4)
		if err != nil {
			return err
		}
		st.push(ir.F32Bits(binary.LittleEndian.Uint32(b)))
	case ir.OpF64Load:
		addr := effAddr()
		b, err := read(addr, 8)
		if err != nil {
			return err
		}
		st.push(ir.F64Bits(binary.LittleEndian.Uint64(b)))
	case ir.OpI32Load8S:
		addr := effAddr()
		b, err := read(addr, 1)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(int8(b[0]))))
	case ir.OpI32Load8U:
		addr := effAddr()
		b, err := read(addr, 1)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(b[0])))
	case ir.OpI32Load16S:
		addr := effAddr()
		b, err := read(addr, 2)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(int16(binary.LittleEndian.Uint16(b)))))
	case ir.OpI32Load16U:
		addr := effAddr()
		b, err := read(addr, 2)
		if err != nil {
			return err
		}
		st.push(ir.I32(int32(binary.LittleEndian.Uint16(b))))
	case ir.OpI64Load8S:
		addr := effAddr()
		b, err := read(addr, 1)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(int8(b[0]))))
	case ir.OpI64Load8U:
		addr := effAddr()
		b, err := read(addr, 1)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(b[0])))
	case ir.OpI64Load16S:
		addr := effAddr()
		b, err := read(addr, 2)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(int16(binary.LittleEndian.Uint16(b)))))
	case ir.OpI64Load16U:
		addr := effAddr()
		b, err := read(addr, 2)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(binary.LittleEndian.Uint16(b))))
	case ir.OpI64Load32S:
		addr := effAddr()
		b, err := read(addr, 4)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(int32(binary.LittleEndian.Uint32(b)))))
	case ir.OpI64Load32U:
		addr := effAddr()
		b, err := read(addr, 4)
		if err != nil {
			return err
		}
		st.push(ir.I64(int64(binary.LittleEndian.Uint32(b))))

	case ir.OpI32Store:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b, uint32(v.I32()))
	case ir.OpI64Store:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 8)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(b, uint64(v.I64()))
	case ir.OpF32Store:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b, v.F32Bits())
	case ir.OpF64Store:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 8)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(b, v.F64Bits())
	case ir.OpI32Store8:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 1)
		if err != nil {
			return err
		}
		b[0] = byte(v.I32())
	case ir.OpI32Store16:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 2)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(b, uint16(v.I32()))
	case ir.OpI64Store8:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 1)
		if err != nil {
			return err
		}
		b[0] = byte(v.I64())
	case ir.OpI64Store16:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 2)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(b, uint16(v.I64()))
	case ir.OpI64Store32:
		v := st.pop()
		addr := effAddr()
		b, err := write(addr, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b, uint32(v.I64()))
	}
	return nil
}
