package wasm

// ImportFuncCount returns the number of imported functions, which precede
// locally-defined functions in the function index space.
func (m *Module) ImportFuncCount() (n uint32) {
	for _, im := range m.ImportSection {
		if im.Type == ExternTypeFunc {
			n++
		}
	}
	return
}

// ImportTableCount returns the number of imported tables. The baseline
// profile allows at most one table in total, imported
// or local.
func (m *Module) ImportTableCount() (n uint32) {
	for _, im := range m.ImportSection {
		if im.Type == ExternTypeTable {
			n++
		}
	}
	return
}

// ImportMemoryCount returns the number of imported memories. The baseline
// profile allows at most one memory in total, imported or local.
func (m *Module) ImportMemoryCount() (n uint32) {
	for _, im := range m.ImportSection {
		if im.Type == ExternTypeMemory {
			n++
		}
	}
	return
}

// ImportGlobalCount returns the number of imported globals, which precede
// locally-defined globals in the global index space.
func (m *Module) ImportGlobalCount() (n uint32) {
	for _, im := range m.ImportSection {
		if im.Type == ExternTypeGlobal {
			n++
		}
	}
	return
}

// AllDeclarations walks the import section and the local sections to
// produce, for each of the four external kinds, the flattened sequence of
// declarations in index-space order: imports first, then locally-defined
// entries. Validation uses it to range-check indices referenced by
// instructions and initializers.
func (m *Module) AllDeclarations() (functions []Index, globals []*GlobalType, table *Table, memory *Memory) {
	for _, im := range m.ImportSection {
		switch im.Type {
		case ExternTypeFunc:
			functions = append(functions, im.DescFunc)
		case ExternTypeGlobal:
			globals = append(globals, im.DescGlobal)
		case ExternTypeTable:
			table = im.DescTable
		case ExternTypeMemory:
			memory = im.DescMem
		}
	}
	functions = append(functions, m.FunctionSection...)
	for _, g := range m.GlobalSection {
		globals = append(globals, g.Type)
	}
	if m.TableSection != nil {
		table = m.TableSection
	}
	if m.MemorySection != nil {
		memory = m.MemorySection
	}
	return
}
