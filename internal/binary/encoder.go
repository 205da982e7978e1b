package binary

import "github.com/wavmgo/wavm/internal/ir"

// Encode serializes an ir.Module back to the binary format. It is Decode's
// exact inverse for any Module that Decode could have produced (spec.md §8
// "Codec round-trip": decode(encode(m)) reproduces m bit-for-bit, including
// custom sections and local-group run-length grouping).
func Encode(m *ir.Module) []byte {
	w := &writer{typeIndex: make(map[*ir.FuncType]uint32, len(m.Types))}
	for i, ft := range m.Types {
		// First occurrence wins: process-wide interning (ir.Intern) may have
		// collapsed two structurally-identical wire-format type entries onto
		// the same *FuncType, so a module whose type section declared the
		// same signature twice does not round-trip which of the two indexes
		// an import referenced. Re-encoding is still semantically equivalent
		// (the offered and required types compare Equal either way) even
		// though it may not reproduce the original bytes in that one case.
		if _, ok := w.typeIndex[ft]; !ok {
			w.typeIndex[ft] = uint32(i)
		}
	}
	w.bytes(magic[:])
	w.bytes(leBytes32(version))

	emit := func(id byte, body []byte) {
		w.byte(id)
		w.u32(uint32(len(body)))
		w.bytes(body)
	}

	for _, cs := range m.CustomSections {
		emit(sectionCustom, w.sized(func(b *writer) {
			b.name(cs.Name)
			b.bytes(cs.Payload)
		}))
	}

	if len(m.Types) > 0 {
		emit(sectionType, w.sized(func(b *writer) {
			b.vec(len(m.Types), func(b *writer) {
				for _, ft := range m.Types {
					b.byte(0x60)
					b.vec(len(ft.Params), func(b *writer) {
						for _, p := range ft.Params {
							b.byte(encodeValueType(p))
						}
					})
					b.vec(len(ft.Results), func(b *writer) {
						for _, r := range ft.Results {
							b.byte(encodeValueType(r))
						}
					})
				}
			})
		}))
	}

	if len(m.Imports) > 0 {
		emit(sectionImport, w.sized(func(b *writer) {
			b.vec(len(m.Imports), func(b *writer) {
				for _, im := range m.Imports {
					b.name(im.Module)
					b.name(im.Name)
					b.encodeExternType(im.Type)
				}
			})
		}))
	}

	if len(m.FunctionTypeIndexes) > 0 {
		emit(sectionFunction, w.sized(func(b *writer) {
			b.vec(len(m.FunctionTypeIndexes), func(b *writer) {
				for _, idx := range m.FunctionTypeIndexes {
					b.u32(idx)
				}
			})
		}))
	}

	if len(m.Tables) > 0 {
		emit(sectionTable, w.sized(func(b *writer) {
			b.vec(len(m.Tables), func(b *writer) {
				for _, t := range m.Tables {
					b.byte(encodeValueType(t.ElemType))
					b.encodeLimits(t.Limits, false)
				}
			})
		}))
	}

	if len(m.Memories) > 0 {
		emit(sectionMemory, w.sized(func(b *writer) {
			b.vec(len(m.Memories), func(b *writer) {
				for _, mt := range m.Memories {
					b.encodeLimits(mt.Limits, mt.Shared)
				}
			})
		}))
	}

	if len(m.Globals) > 0 {
		emit(sectionGlobal, w.sized(func(b *writer) {
			b.vec(len(m.Globals), func(b *writer) {
				for _, g := range m.Globals {
					b.byte(encodeValueType(g.Type.ValueType))
					if g.Type.Mutable {
						b.byte(1)
					} else {
						b.byte(0)
					}
					b.constExpr(g.Init)
				}
			})
		}))
	}

	if len(m.Exports) > 0 {
		emit(sectionExport, w.sized(func(b *writer) {
			b.vec(len(m.Exports), func(b *writer) {
				for _, e := range m.Exports {
					b.name(e.Name)
					b.byte(byte(e.Kind))
					b.u32(e.Index)
				}
			})
		}))
	}

	if m.Start >= 0 {
		emit(sectionStart, w.sized(func(b *writer) {
			b.u32(uint32(m.Start))
		}))
	}

	if len(m.Elements) > 0 {
		emit(sectionElement, w.sized(func(b *writer) {
			b.vec(len(m.Elements), func(b *writer) {
				for _, seg := range m.Elements {
					b.encodeElementSegment(seg)
				}
			})
		}))
	}

	if len(m.Code) > 0 {
		emit(sectionCode, w.sized(func(b *writer) {
			b.vec(len(m.Code), func(b *writer) {
				for _, c := range m.Code {
					body := b.sized(func(b *writer) {
						b.vec(len(c.LocalGroups), func(b *writer) {
							for _, g := range c.LocalGroups {
								b.u32(g.Count)
								b.byte(encodeValueType(g.Type))
							}
						})
						b.encodeOperatorStream(c.Body)
					})
					b.bytes(body)
				}
			})
		}))
	}

	if len(m.Data) > 0 {
		emit(sectionData, w.sized(func(b *writer) {
			b.vec(len(m.Data), func(b *writer) {
				for _, seg := range m.Data {
					b.encodeDataSegment(seg)
				}
			})
		}))
	}

	if m.HasDataCount {
		emit(sectionDataCount, w.sized(func(b *writer) {
			b.u32(uint32(len(m.Data)))
		}))
	}

	if len(m.ExceptionTypes) > 0 {
		emit(sectionTag, w.sized(func(b *writer) {
			b.vec(len(m.ExceptionTypes), func(b *writer) {
				for _, typeIdx := range m.ExceptionTypes {
					b.byte(0)
					b.u32(typeIdx)
				}
			})
		}))
	}

	return w.buf
}

func (w *writer) encodeExternType(et ir.ExternType) {
	switch et.Kind {
	case ir.ExternKindFunc:
		w.byte(0x00)
		w.u32(w.typeIndex[et.Func])
	case ir.ExternKindTable:
		w.byte(0x01)
		w.byte(encodeValueType(et.Table.ElemType))
		w.encodeLimits(et.Table.Limits, false)
	case ir.ExternKindMemory:
		w.byte(0x02)
		w.encodeLimits(et.Mem.Limits, et.Mem.Shared)
	case ir.ExternKindGlobal:
		w.byte(0x03)
		w.byte(encodeValueType(et.Global.ValueType))
		if et.Global.Mutable {
			w.byte(1)
		} else {
			w.byte(0)
		}
	case ir.ExternKindExceptionType:
		w.byte(0x04)
		w.u32(w.typeIndex[et.ExceptionType])
	}
}

func (w *writer) encodeLimits(l ir.Limits, shared bool) {
	var flag byte
	if l.HasMax {
		flag |= 0x1
	}
	if shared {
		flag |= 0x2
	}
	w.byte(flag)
	w.u32(l.Min)
	if l.HasMax {
		w.u32(l.Max)
	}
}

func (w *writer) encodeElementSegment(seg ir.ElementSegment) {
	usesExprs := seg.RefType != ir.ValueTypeFuncRef
	var flag uint32
	switch seg.Mode {
	case ir.SegmentActive:
		if seg.TableIndex == 0 {
			flag = 0
		} else {
			flag = 2
		}
	case ir.SegmentPassive:
		flag = 1
	case ir.SegmentDeclarative:
		flag = 3
	}
	if usesExprs {
		flag |= 0x4
	}
	w.u32(flag)
	if seg.Mode == ir.SegmentActive {
		if flag&0x3 == 2 {
			w.u32(seg.TableIndex)
		}
		w.constExpr(seg.Offset)
	}
	if seg.Mode != ir.SegmentActive || flag&0x3 == 2 {
		if usesExprs {
			w.byte(encodeValueType(seg.RefType))
		} else {
			w.byte(0)
		}
	}
	w.vec(len(seg.Init), func(b *writer) {
		for _, ce := range seg.Init {
			if usesExprs {
				b.constExpr(ce)
			} else {
				b.u32(ce.Index)
			}
		}
	})
}

func (w *writer) encodeDataSegment(seg ir.DataSegment) {
	switch seg.Mode {
	case ir.SegmentActive:
		if seg.MemoryIndex == 0 {
			w.u32(0)
			w.constExpr(seg.Offset)
		} else {
			w.u32(2)
			w.u32(seg.MemoryIndex)
			w.constExpr(seg.Offset)
		}
	case ir.SegmentPassive:
		w.u32(1)
	}
	w.vec(len(seg.Init), func(b *writer) {
		b.bytes(seg.Init)
	})
}
