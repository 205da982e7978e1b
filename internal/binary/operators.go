package binary

import "github.com/wavmgo/wavm/internal/ir"

// decodeOperatorStream decodes a function body's operator sequence,
// stopping after the `end` that matches the function's implicit outermost
// block (spec.md §4.C). It is driven entirely by ir.Lookup's ImmKind, the
// single source of truth named in spec.md §9.
func (r *reader) decodeOperatorStream(bodyStart uint64) (ir.OperatorStream, error) {
	var s ir.OperatorStream
	depth := 1 // the function body's own implicit block
	for depth > 0 {
		opByteOffset := uint32(r.pos - bodyStart)
		b, err := r.byte()
		if err != nil {
			return s, err
		}
		var opcode ir.Opcode
		switch b {
		case ir.PrefixMisc, ir.PrefixSIMD, ir.PrefixAtomic, ir.PrefixExcept:
			sub, err := r.u32()
			if err != nil {
				return s, err
			}
			opcode = ir.Pack(b, byte(sub))
		default:
			opcode = ir.Opcode(b)
		}

		info := ir.Lookup(opcode)
		if info == nil {
			return s, malformed(r.pos-1, "unknown opcode 0x%x", opcode)
		}

		d := ir.DecodedOp{Opcode: opcode}
		switch info.Imm {
		case ir.ImmNone:
		case ir.ImmBlockType:
			bt, err := r.blockType()
			if err != nil {
				return s, err
			}
			d.BlockType = bt
			depth++
		case ir.ImmLabel:
			if d.LabelIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmLabelTable:
			n, err := r.u32()
			if err != nil {
				return s, err
			}
			targets := make([]uint32, n+1)
			for i := range targets {
				if targets[i], err = r.u32(); err != nil {
					return s, err
				}
			}
			d.LabelTable = targets
		case ir.ImmLocalIndex:
			if d.LocalIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmGlobalIndex:
			if d.GlobalIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmFuncIndex:
			if d.FuncIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmTypeIndex:
			if d.TypeIndex, err = r.u32(); err != nil {
				return s, err
			}
			if d.SecondaryIndex, err = r.u32(); err != nil { // table index
				return s, err
			}
		case ir.ImmTagIndex:
			if d.TagIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmTableIndex:
			if d.TableIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmMemArg:
			align, err := r.u32()
			if err != nil {
				return s, err
			}
			off, err := r.u32()
			if err != nil {
				return s, err
			}
			d.MemArgAlign, d.MemArgOffset = align, off
		case ir.ImmI32Const:
			if d.I32Const, err = r.i32(); err != nil {
				return s, err
			}
		case ir.ImmI64Const:
			if d.I64Const, err = r.i64(); err != nil {
				return s, err
			}
		case ir.ImmF32Const:
			b4, err := r.advance(4)
			if err != nil {
				return s, err
			}
			d.F32Bits = leUint32(b4)
		case ir.ImmF64Const:
			b8, err := r.advance(8)
			if err != nil {
				return s, err
			}
			d.F64Bits = leUint64(b8)
		case ir.ImmV128Const:
			b16, err := r.advance(16)
			if err != nil {
				return s, err
			}
			d.V128Lo = leUint64(b16[:8])
			d.V128Hi = leUint64(b16[8:])
		case ir.ImmRefType:
			if d.RefNullType, err = r.refType(); err != nil {
				return s, err
			}
		case ir.ImmSelectType:
			n, err := r.u32()
			if err != nil {
				return s, err
			}
			types := make([]ir.ValueType, n)
			for i := range types {
				if types[i], err = r.valueType(); err != nil {
					return s, err
				}
			}
			d.SelectTypes = types
		case ir.ImmMemoryInit:
			// FuncIndex doubles as the data-segment index here.
			if d.FuncIndex, err = r.u32(); err != nil {
				return s, err
			}
			if d.SecondaryIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmDataIndex:
			if d.FuncIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmElemIndex:
			if d.FuncIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmTableInit:
			// FuncIndex doubles as the element-segment index here.
			if d.FuncIndex, err = r.u32(); err != nil {
				return s, err
			}
			if d.TableIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmTableCopy:
			if d.TableIndex, err = r.u32(); err != nil {
				return s, err
			}
			if d.SecondaryIndex, err = r.u32(); err != nil {
				return s, err
			}
		case ir.ImmLaneIndex:
			lanes := make([]byte, 16)
			for i := range lanes {
				if lanes[i], err = r.byte(); err != nil {
					return s, err
				}
			}
			d.LaneIndexes = lanes
		}

		switch opcode {
		case ir.OpEnd:
			depth--
		case ir.OpElse:
			// does not change depth; re-opens the `if` arm
		}

		s.Ops = append(s.Ops, d)
		s.ByteOffsets = append(s.ByteOffsets, opByteOffset)
	}
	return s, nil
}

func (r *reader) blockType() (ir.BlockType, error) {
	start := r.pos
	v, err := r.i33()
	if err != nil {
		return ir.BlockType{}, err
	}
	if v == -64 { // 0x40 sign-extended: empty block type
		return ir.BlockType{Kind: ir.BlockTypeEmpty}, nil
	}
	if v < 0 {
		vt, ok := decodeValueType(byte(v & 0x7f))
		if !ok {
			return ir.BlockType{}, malformed(start, "invalid inline block value type")
		}
		return ir.BlockType{Kind: ir.BlockTypeValue, ValueResult: vt}, nil
	}
	return ir.BlockType{Kind: ir.BlockTypeIndex, TypeIndex: uint32(v)}, nil
}

// encodeOperatorStream is the encoder's mirror of decodeOperatorStream,
// used both by the public Encode entry point and by round-trip tests
// (spec.md §8 "Codec round-trip").
func (w *writer) encodeOperatorStream(s ir.OperatorStream) {
	for _, d := range s.Ops {
		info := ir.Lookup(d.Opcode)
		if prefix := d.Opcode.Prefix(); prefix != ir.PrefixNone {
			w.byte(prefix)
			w.u32(uint32(d.Opcode.Byte()))
		} else {
			w.byte(d.Opcode.Byte())
		}
		switch info.Imm {
		case ir.ImmNone:
		case ir.ImmBlockType:
			w.encodeBlockType(d.BlockType)
		case ir.ImmLabel:
			w.u32(d.LabelIndex)
		case ir.ImmLabelTable:
			w.u32(uint32(len(d.LabelTable) - 1))
			for _, t := range d.LabelTable {
				w.u32(t)
			}
		case ir.ImmLocalIndex:
			w.u32(d.LocalIndex)
		case ir.ImmGlobalIndex:
			w.u32(d.GlobalIndex)
		case ir.ImmFuncIndex:
			w.u32(d.FuncIndex)
		case ir.ImmTypeIndex:
			w.u32(d.TypeIndex)
			w.u32(d.SecondaryIndex)
		case ir.ImmTagIndex:
			w.u32(d.TagIndex)
		case ir.ImmTableIndex:
			w.u32(d.TableIndex)
		case ir.ImmMemArg:
			w.u32(d.MemArgAlign)
			w.u32(d.MemArgOffset)
		case ir.ImmI32Const:
			w.i32(d.I32Const)
		case ir.ImmI64Const:
			w.i64(d.I64Const)
		case ir.ImmF32Const:
			w.bytes(leBytes32(d.F32Bits))
		case ir.ImmF64Const:
			w.bytes(leBytes64(d.F64Bits))
		case ir.ImmV128Const:
			w.bytes(leBytes64(d.V128Lo))
			w.bytes(leBytes64(d.V128Hi))
		case ir.ImmRefType:
			w.byte(encodeValueType(d.RefNullType))
		case ir.ImmSelectType:
			w.u32(uint32(len(d.SelectTypes)))
			for _, t := range d.SelectTypes {
				w.byte(encodeValueType(t))
			}
		case ir.ImmMemoryInit:
			w.u32(d.FuncIndex)
			w.u32(d.SecondaryIndex)
		case ir.ImmDataIndex, ir.ImmElemIndex:
			w.u32(d.FuncIndex)
		case ir.ImmTableInit:
			w.u32(d.FuncIndex)
			w.u32(d.TableIndex)
		case ir.ImmTableCopy:
			w.u32(d.TableIndex)
			w.u32(d.SecondaryIndex)
		case ir.ImmLaneIndex:
			w.bytes(d.LaneIndexes)
		}
	}
}

func (w *writer) encodeBlockType(bt ir.BlockType) {
	switch bt.Kind {
	case ir.BlockTypeEmpty:
		w.byte(0x40)
	case ir.BlockTypeValue:
		w.byte(encodeValueType(bt.ValueResult))
	case ir.BlockTypeIndex:
		w.i64(int64(bt.TypeIndex))
	}
}
