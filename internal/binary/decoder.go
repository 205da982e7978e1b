// Package binary implements the loadBinaryModule/encode codec described in
// spec.md §4.A and §6.1: a streaming decoder that turns the WebAssembly
// binary format (core 1.0 plus the sign-extension, reference-types,
// bulk-memory, SIMD, threads, and exception-handling proposals this engine
// supports) into an internal/ir.Module, and an encoder that is its exact
// inverse for the codec round-trip property (spec.md §8).
//
// Decoding never validates cross-references or type-checks operator
// sequences; that is internal/validate's job once a Module exists. This
// package only rejects input that cannot even be framed as a module: bad
// magic/version, truncated LEB128s, out-of-range section/type tags, and
// structurally nonsensical immediates (spec.md §7 "malformed").
package binary

import "github.com/wavmgo/wavm/internal/ir"

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const version = 1

// Decode parses a binary module into its internal/ir representation. It
// performs no validation beyond what is needed to produce a well-formed
// Module (spec.md §4.A precondition 1, §7 "malformed").
func Decode(buf []byte) (*ir.Module, error) {
	r := newReader(buf)
	hdr, err := r.advance(4)
	if err != nil {
		return nil, malformed(0, "truncated magic number")
	}
	if [4]byte(hdr) != magic {
		return nil, malformed(0, "not a wasm module (bad magic)")
	}
	verBytes, err := r.advance(4)
	if err != nil {
		return nil, malformed(4, "truncated version")
	}
	if leUint32(verBytes) != version {
		return nil, malformed(4, "unsupported version %d", leUint32(verBytes))
	}

	m := &ir.Module{Start: -1}
	var lastSection = -1
	for !r.eof() {
		idByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		id := int(idByte)
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		sectionStart := r.pos
		if id != sectionCustom {
			if id <= lastSection {
				return nil, malformed(sectionStart, "section id %d out of order after %d", id, lastSection)
			}
			lastSection = id
		}
		if err := r.dispatchSection(id, size, m); err != nil {
			return nil, err
		}
		if r.pos != sectionStart+uint64(size) {
			return nil, malformed(r.pos, "section %d size mismatch", id)
		}
	}
	return m, nil
}

func (r *reader) dispatchSection(id int, size uint32, m *ir.Module) error {
	switch id {
	case sectionCustom:
		sectionEnd := r.pos + uint64(size)
		name, err := r.name()
		if err != nil {
			return err
		}
		if r.pos > sectionEnd {
			return malformed(r.pos, "custom section name overruns its declared size")
		}
		payload, err := r.advance(sectionEnd - r.pos)
		if err != nil {
			return err
		}
		m.CustomSections = append(m.CustomSections, ir.CustomSection{Name: name, Payload: append([]byte(nil), payload...)})
		return nil
	case sectionType:
		return r.typeSection(m)
	case sectionImport:
		return r.importSection(m)
	case sectionFunction:
		return r.functionSection(m)
	case sectionTable:
		return r.tableSection(m)
	case sectionMemory:
		return r.memorySection(m)
	case sectionGlobal:
		return r.globalSection(m)
	case sectionExport:
		return r.exportSection(m)
	case sectionStart:
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.Start = int64(idx)
		return nil
	case sectionElement:
		return r.elementSection(m)
	case sectionCode:
		return r.codeSection(m)
	case sectionData:
		return r.dataSection(m)
	case sectionDataCount:
		n, err := r.u32()
		if err != nil {
			return err
		}
		m.DataCount, m.HasDataCount = n, true
		return nil
	case sectionTag:
		return r.tagSection(m)
	default:
		return malformed(r.pos, "unknown section id %d", id)
	}
}
