package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_validateStartSection(t *testing.T) {
	t.Run("no start section", func(t *testing.T) {
		require.NoError(t, (&Module{}).validateStartSection())
	})
	t.Run("valid empty signature", func(t *testing.T) {
		start := Index(0)
		m := &Module{
			TypeSection:     []*FunctionType{{}},
			FunctionSection: []Index{0},
			CodeSection:     []*Code{{Body: []byte{OpcodeEnd}}},
			StartSection:    &start,
		}
		require.NoError(t, m.validateStartSection())
	})
	t.Run("non-empty signature rejected", func(t *testing.T) {
		start := Index(0)
		m := &Module{
			TypeSection:     []*FunctionType{{Results: []ValueType{ValueTypeI32}}},
			FunctionSection: []Index{0},
			CodeSection:     []*Code{{Body: []byte{OpcodeI32Const, 0, OpcodeEnd}}},
			StartSection:    &start,
		}
		err := m.validateStartSection()
		require.Error(t, err)
	})
	t.Run("index out of range", func(t *testing.T) {
		start := Index(3)
		m := &Module{StartSection: &start}
		err := m.validateStartSection()
		require.EqualError(t, err, "start function index out of range: 3")
	})
}

func TestModule_validateExports(t *testing.T) {
	m := &Module{
		ExportSection: map[string]*Export{
			"f": {Name: "f", Type: ExternTypeFunc, Index: 0},
		},
	}
	require.NoError(t, m.validateExports([]Index{0}, nil, nil, nil))

	m.ExportSection["missing"] = &Export{Name: "missing", Type: ExternTypeFunc, Index: 5}
	err := m.validateExports([]Index{0}, nil, nil, nil)
	require.Error(t, err)
}

func TestModule_validateTable(t *testing.T) {
	t.Run("min greater than max", func(t *testing.T) {
		max := uint32(1)
		err := (&Module{}).validateTable(&Table{Min: 2, Max: &max}, nil)
		require.EqualError(t, err, "invalid table limits: min 2 is greater than max 1")
	})
	t.Run("element segment with no table", func(t *testing.T) {
		m := &Module{ElementSection: []*ElementSegment{{TableIndex: 0}}}
		err := m.validateTable(nil, nil)
		require.Error(t, err)
	})
}

func TestModule_validateMemory(t *testing.T) {
	t.Run("max exceeds page limit", func(t *testing.T) {
		err := (&Module{}).validateMemory(&Memory{Min: 1, Max: MemoryMaxPages + 1, IsMaxEncoded: true}, nil)
		require.Error(t, err)
	})
	t.Run("data segment with no memory", func(t *testing.T) {
		m := &Module{DataSection: []*DataSegment{{MemoryIndex: 0}}}
		err := m.validateMemory(nil, nil)
		require.EqualError(t, err, "data segment[0]: unknown memory")
	})
}

func TestModule_Validate(t *testing.T) {
	// A minimal, fully valid module: one function, no imports/exports.
	m := &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: []byte{OpcodeEnd}}},
	}
	require.NoError(t, m.Validate(FeaturesBaseline))
}
