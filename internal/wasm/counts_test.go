package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_ImportCounts(t *testing.T) {
	m := &Module{
		ImportSection: []*Import{
			{Type: ExternTypeFunc, DescFunc: 0},
			{Type: ExternTypeFunc, DescFunc: 0},
			{Type: ExternTypeTable, DescTable: &Table{Min: 1}},
			{Type: ExternTypeMemory, DescMem: &Memory{Min: 1}},
			{Type: ExternTypeGlobal, DescGlobal: &GlobalType{ValType: ValueTypeI32}},
		},
	}
	require.Equal(t, uint32(2), m.ImportFuncCount())
	require.Equal(t, uint32(1), m.ImportTableCount())
	require.Equal(t, uint32(1), m.ImportMemoryCount())
	require.Equal(t, uint32(1), m.ImportGlobalCount())
}

func TestModule_AllDeclarations(t *testing.T) {
	importedTable := &Table{Min: 1}
	importedMemory := &Memory{Min: 1}
	m := &Module{
		ImportSection: []*Import{
			{Type: ExternTypeFunc, DescFunc: 0},
			{Type: ExternTypeTable, DescTable: importedTable},
			{Type: ExternTypeMemory, DescMem: importedMemory},
		},
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0, 0},
		GlobalSection: []*Global{
			{Type: &GlobalType{ValType: ValueTypeI64}, Init: &ConstantExpression{Opcode: OpcodeI64Const, Data: []byte{0}}},
		},
	}

	functions, globals, table, memory := m.AllDeclarations()
	require.Len(t, functions, 3) // 1 imported + 2 local
	require.Len(t, globals, 1)
	require.Same(t, importedTable, table)
	require.Same(t, importedMemory, memory)
}

func TestModule_AllDeclarations_localTableAndMemory(t *testing.T) {
	localTable := &Table{Min: 2}
	localMemory := &Memory{Min: 2}
	m := &Module{TableSection: localTable, MemorySection: localMemory}

	_, _, table, memory := m.AllDeclarations()
	require.Same(t, localTable, table)
	require.Same(t, localMemory, memory)
}
