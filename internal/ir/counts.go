package ir

// Each kind-specific index space (functions, tables, memories, globals,
// exception types) is the imports of that kind, in import order, followed
// by the module-defined objects of that kind, in declaration order
// (spec.md §3 "Module"). These helpers compute the split so the
// validator, linker, and runtime don't each re-derive it.

// ImportFuncCount returns the number of function imports.
func (m *Module) ImportFuncCount() uint32 { return m.importCount(ExternKindFunc) }

// ImportTableCount returns the number of table imports.
func (m *Module) ImportTableCount() uint32 { return m.importCount(ExternKindTable) }

// ImportMemoryCount returns the number of memory imports.
func (m *Module) ImportMemoryCount() uint32 { return m.importCount(ExternKindMemory) }

// ImportGlobalCount returns the number of global imports.
func (m *Module) ImportGlobalCount() uint32 { return m.importCount(ExternKindGlobal) }

// ImportExceptionTypeCount returns the number of exception-type imports.
func (m *Module) ImportExceptionTypeCount() uint32 { return m.importCount(ExternKindExceptionType) }

func (m *Module) importCount(k ExternKind) uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Type.Kind == k {
			n++
		}
	}
	return n
}

// FunctionCount returns the total number of functions (imported plus
// module-defined).
func (m *Module) FunctionCount() uint32 { return m.ImportFuncCount() + uint32(len(m.FunctionTypeIndexes)) }

// TableCount returns the total number of tables.
func (m *Module) TableCount() uint32 { return m.ImportTableCount() + uint32(len(m.Tables)) }

// MemoryCount returns the total number of memories.
func (m *Module) MemoryCount() uint32 { return m.ImportMemoryCount() + uint32(len(m.Memories)) }

// GlobalCount returns the total number of globals.
func (m *Module) GlobalCount() uint32 { return m.ImportGlobalCount() + uint32(len(m.Globals)) }

// ExceptionTypeCount returns the total number of exception types.
func (m *Module) ExceptionTypeCount() uint32 {
	return m.ImportExceptionTypeCount() + uint32(len(m.ExceptionTypes))
}

// FunctionTypeIndex returns the type-table index of function funcIdx
// (which may name either an import or a module-defined function).
func (m *Module) FunctionTypeIndex(funcIdx uint32) (uint32, bool) {
	importFuncs := m.ImportFuncCount()
	if funcIdx < importFuncs {
		i := -1
		for idx, imp := range m.Imports {
			if imp.Type.Kind != ExternKindFunc {
				continue
			}
			i++
			if uint32(i) == funcIdx {
				for ti, t := range m.Types {
					if t == imp.Type.Func {
						return uint32(ti), true
					}
				}
				return 0, false
			}
			_ = idx
		}
		return 0, false
	}
	local := funcIdx - importFuncs
	if local >= uint32(len(m.FunctionTypeIndexes)) {
		return 0, false
	}
	return m.FunctionTypeIndexes[local], true
}

// IsImportedFunc reports whether funcIdx names an imported function.
func (m *Module) IsImportedFunc(funcIdx uint32) bool { return funcIdx < m.ImportFuncCount() }

// FuncTypeOf resolves funcIdx (imported or module-defined) to its declared
// *FuncType, the form every caller outside this file actually wants.
func (m *Module) FuncTypeOf(funcIdx uint32) (*FuncType, error) {
	if funcIdx < m.ImportFuncCount() {
		i := -1
		for _, imp := range m.Imports {
			if imp.Type.Kind != ExternKindFunc {
				continue
			}
			i++
			if uint32(i) == funcIdx {
				return imp.Type.Func, nil
			}
		}
		return nil, errOutOfRange
	}
	local := funcIdx - m.ImportFuncCount()
	if local >= uint32(len(m.FunctionTypeIndexes)) {
		return nil, errOutOfRange
	}
	return m.Types[m.FunctionTypeIndexes[local]], nil
}

var errOutOfRange = &outOfRangeError{}

type outOfRangeError struct{}

func (*outOfRangeError) Error() string { return "function index out of range" }
