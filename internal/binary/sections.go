package binary

import "github.com/wavmgo/wavm/internal/ir"

// Section ids, in the canonical order mandated by spec.md §3 "Ordering
// invariant". sectionCustom may interleave anywhere.
const (
	sectionCustom = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
	sectionDataCount
	// sectionTag is the exception-handling proposal's tag section id. It
	// sorts after datacount in encounter order like every proposal-added
	// section; the ordering invariant only constrains sections relative to
	// the ones already defined when each was standardized.
	sectionTag = 13
)

func (r *reader) typeSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Types = make([]*ir.FuncType, n)
	for i := range m.Types {
		b, err := r.byte()
		if err != nil {
			return err
		}
		if b != 0x60 {
			return malformed(r.pos-1, "expected func type tag 0x60, got 0x%x", b)
		}
		params, err := r.valueTypeVec()
		if err != nil {
			return err
		}
		results, err := r.valueTypeVec()
		if err != nil {
			return err
		}
		m.Types[i] = ir.Intern(params, results)
	}
	return nil
}

func (r *reader) valueTypeVec() ([]ir.ValueType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]ir.ValueType, n)
	for i := range out {
		if out[i], err = r.valueType(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) externType(types []*ir.FuncType) (ir.ExternType, error) {
	kind, err := r.byte()
	if err != nil {
		return ir.ExternType{}, err
	}
	switch kind {
	case 0x00:
		idx, err := r.u32()
		if err != nil {
			return ir.ExternType{}, err
		}
		if idx >= uint32(len(types)) {
			return ir.ExternType{}, malformed(r.pos, "type index %d out of range", idx)
		}
		return ir.ExternType{Kind: ir.ExternKindFunc, Func: types[idx]}, nil
	case 0x01:
		elem, err := r.refType()
		if err != nil {
			return ir.ExternType{}, err
		}
		lim, err := r.limits()
		if err != nil {
			return ir.ExternType{}, err
		}
		return ir.ExternType{Kind: ir.ExternKindTable, Table: ir.TableType{ElemType: elem, Limits: lim}}, nil
	case 0x02:
		mt, err := r.memType()
		if err != nil {
			return ir.ExternType{}, err
		}
		return ir.ExternType{Kind: ir.ExternKindMemory, Mem: mt}, nil
	case 0x03:
		vt, err := r.valueType()
		if err != nil {
			return ir.ExternType{}, err
		}
		mutByte, err := r.byte()
		if err != nil {
			return ir.ExternType{}, err
		}
		if mutByte > 1 {
			return ir.ExternType{}, malformed(r.pos-1, "invalid global mutability 0x%x", mutByte)
		}
		return ir.ExternType{Kind: ir.ExternKindGlobal, Global: ir.GlobalType{ValueType: vt, Mutable: mutByte == 1}}, nil
	case 0x04: // exception-handling proposal tag import
		idx, err := r.u32()
		if err != nil {
			return ir.ExternType{}, err
		}
		if idx >= uint32(len(types)) {
			return ir.ExternType{}, malformed(r.pos, "type index %d out of range", idx)
		}
		return ir.ExternType{Kind: ir.ExternKindExceptionType, ExceptionType: types[idx]}, nil
	default:
		return ir.ExternType{}, malformed(r.pos-1, "invalid extern kind 0x%x", kind)
	}
}

func (r *reader) memType() (ir.MemType, error) {
	flag, err := r.byte()
	if err != nil {
		return ir.MemType{}, err
	}
	if flag > 3 {
		return ir.MemType{}, malformed(r.pos-1, "invalid limits flag 0x%x", flag)
	}
	min, err := r.u32()
	if err != nil {
		return ir.MemType{}, err
	}
	mt := ir.MemType{Limits: ir.Limits{Min: min}, Shared: flag&0x2 != 0}
	if flag&0x1 != 0 {
		mt.Limits.HasMax = true
		if mt.Limits.Max, err = r.u32(); err != nil {
			return ir.MemType{}, err
		}
	}
	return mt, nil
}

func (r *reader) importSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Imports = make([]ir.Import, n)
	for i := range m.Imports {
		mod, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		et, err := r.externType(m.Types)
		if err != nil {
			return err
		}
		m.Imports[i] = ir.Import{Module: mod, Name: name, Type: et}
	}
	return nil
}

func (r *reader) functionSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.FunctionTypeIndexes = make([]uint32, n)
	for i := range m.FunctionTypeIndexes {
		if m.FunctionTypeIndexes[i], err = r.u32(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) tableSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Tables = make([]ir.TableType, n)
	for i := range m.Tables {
		elem, err := r.refType()
		if err != nil {
			return err
		}
		lim, err := r.limits()
		if err != nil {
			return err
		}
		m.Tables[i] = ir.TableType{ElemType: elem, Limits: lim}
	}
	return nil
}

func (r *reader) memorySection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Memories = make([]ir.MemType, n)
	for i := range m.Memories {
		if m.Memories[i], err = r.memType(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) globalSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Globals = make([]ir.GlobalDefinition, n)
	for i := range m.Globals {
		vt, err := r.valueType()
		if err != nil {
			return err
		}
		mutByte, err := r.byte()
		if err != nil {
			return err
		}
		init, err := r.constExpr()
		if err != nil {
			return err
		}
		m.Globals[i] = ir.GlobalDefinition{Type: ir.GlobalType{ValueType: vt, Mutable: mutByte == 1}, Init: init}
	}
	return nil
}

func (r *reader) exportSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Exports = make([]ir.Export, n)
	for i := range m.Exports {
		name, err := r.name()
		if err != nil {
			return err
		}
		kindByte, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		if kindByte > byte(ir.ExternKindExceptionType) {
			return malformed(r.pos-1, "invalid export kind 0x%x", kindByte)
		}
		m.Exports[i] = ir.Export{Name: name, Kind: ir.ExternKind(kindByte), Index: idx}
	}
	return nil
}

func (r *reader) elementSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Elements = make([]ir.ElementSegment, n)
	for i := range m.Elements {
		flag, err := r.u32()
		if err != nil {
			return err
		}
		seg := ir.ElementSegment{RefType: ir.ValueTypeFuncRef}
		usesExprs := flag&0x4 != 0
		switch flag & 0x3 {
		case 0:
			seg.Mode = ir.SegmentActive
			if seg.Offset, err = r.constExpr(); err != nil {
				return err
			}
		case 1:
			seg.Mode = ir.SegmentPassive
		case 2:
			seg.Mode = ir.SegmentActive
			if seg.TableIndex, err = r.u32(); err != nil {
				return err
			}
			if seg.Offset, err = r.constExpr(); err != nil {
				return err
			}
		case 3:
			seg.Mode = ir.SegmentDeclarative
		}
		if flag&0x3 == 1 || flag&0x3 == 2 || flag&0x3 == 3 {
			if usesExprs {
				if seg.RefType, err = r.refType(); err != nil {
					return err
				}
			} else {
				kindByte, err := r.byte()
				if err != nil {
					return err
				}
				if kindByte != 0 {
					return malformed(r.pos-1, "invalid elemkind 0x%x", kindByte)
				}
				seg.RefType = ir.ValueTypeFuncRef
			}
		}
		count, err := r.u32()
		if err != nil {
			return err
		}
		seg.Init = make([]ir.ConstExpr, count)
		for j := range seg.Init {
			if usesExprs {
				if seg.Init[j], err = r.constExpr(); err != nil {
					return err
				}
			} else {
				idx, err := r.u32()
				if err != nil {
					return err
				}
				seg.Init[j] = ir.ConstExpr{Op: ir.ConstExprRefFunc, Index: idx}
			}
		}
		m.Elements[i] = seg
	}
	return nil
}

func (r *reader) dataSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Data = make([]ir.DataSegment, n)
	for i := range m.Data {
		flag, err := r.u32()
		if err != nil {
			return err
		}
		var seg ir.DataSegment
		switch flag {
		case 0:
			seg.Mode = ir.SegmentActive
			if seg.Offset, err = r.constExpr(); err != nil {
				return err
			}
		case 1:
			seg.Mode = ir.SegmentPassive
		case 2:
			seg.Mode = ir.SegmentActive
			if seg.MemoryIndex, err = r.u32(); err != nil {
				return err
			}
			if seg.Offset, err = r.constExpr(); err != nil {
				return err
			}
		default:
			return malformed(r.pos-1, "invalid data segment flag %d", flag)
		}
		length, err := r.u32()
		if err != nil {
			return err
		}
		b, err := r.advance(uint64(length))
		if err != nil {
			return err
		}
		seg.Init = append([]byte(nil), b...)
		m.Data[i] = seg
	}
	return nil
}

// tagSection decodes the exception-handling proposal's tag section: each
// entry names the type-table index of a zero-result FuncType describing
// the tag's payload (spec.md §4.D.9).
func (r *reader) tagSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.ExceptionTypes = make([]uint32, n)
	for i := range m.ExceptionTypes {
		attr, err := r.byte()
		if err != nil {
			return err
		}
		if attr != 0 {
			return malformed(r.pos-1, "invalid tag attribute 0x%x", attr)
		}
		if m.ExceptionTypes[i], err = r.u32(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) codeSection(m *ir.Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	m.Code = make([]ir.Code, n)
	for i := range m.Code {
		bodySize, err := r.u32()
		if err != nil {
			return err
		}
		bodyStart := r.pos
		numGroups, err := r.u32()
		if err != nil {
			return err
		}
		groups := make([]ir.LocalGroup, numGroups)
		for g := range groups {
			count, err := r.u32()
			if err != nil {
				return err
			}
			vt, err := r.valueType()
			if err != nil {
				return err
			}
			groups[g] = ir.LocalGroup{Count: count, Type: vt}
		}
		opsStart := r.pos
		stream, err := r.decodeOperatorStream(opsStart)
		if err != nil {
			return err
		}
		if r.pos != bodyStart+uint64(bodySize) {
			return malformed(r.pos, "function body size mismatch")
		}
		m.Code[i] = ir.Code{LocalGroups: groups, Body: stream}
	}
	return nil
}
