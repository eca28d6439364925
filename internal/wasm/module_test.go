package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectionIDName(t *testing.T) {
	tests := []struct {
		id       SectionID
		expected string
	}{
		{SectionIDCustom, "custom"},
		{SectionIDType, "type"},
		{SectionIDFunction, "function"},
		{SectionIDCode, "code"},
		{SectionIDData, "data"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, SectionIDName(tt.id))
	}
}

func TestFunctionType_String(t *testing.T) {
	tests := []struct {
		name     string
		ft       *FunctionType
		expected string
	}{
		{name: "null_null", ft: &FunctionType{}, expected: "null_null"},
		{name: "i32_i32", ft: &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}}, expected: "i32_i32"},
		{
			name:     "i32i64_f32f64",
			ft:       &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeI64}, Results: []ValueType{ValueTypeF32, ValueTypeF64}},
			expected: "i32i64_f32f64",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.ft.String())
			// memoized: calling twice returns the same value
			require.Equal(t, tt.expected, tt.ft.String())
		})
	}
}

func TestFunctionType_EqualsSignature(t *testing.T) {
	ft := &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI64}}

	require.True(t, ft.EqualsSignature([]ValueType{ValueTypeI32}, []ValueType{ValueTypeI64}))
	require.False(t, ft.EqualsSignature([]ValueType{ValueTypeI64}, []ValueType{ValueTypeI64}))
	require.False(t, ft.EqualsSignature([]ValueType{ValueTypeI32}, []ValueType{ValueTypeF32}))
	require.False(t, ft.EqualsSignature(nil, []ValueType{ValueTypeI64}))
}

func TestModule_SectionElementCount(t *testing.T) {
	one := Index(1)
	m := &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		TableSection:    &Table{Min: 1},
		MemorySection:   &Memory{Min: 1},
		StartSection:    &one,
		CodeSection:     []*Code{{Body: []byte{OpcodeEnd}}},
	}

	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDType))
	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDFunction))
	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDTable))
	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDMemory))
	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDStart))
	require.Equal(t, uint32(1), m.SectionElementCount(SectionIDCode))
	require.Equal(t, uint32(0), m.SectionElementCount(SectionIDGlobal))
	require.Equal(t, uint32(0), m.SectionElementCount(SectionIDElement))
}

func TestModule_String(t *testing.T) {
	require.Equal(t, "foo", (&Module{Name: "foo"}).String())
	require.Equal(t, "foo.wasm", (&Module{Path: "foo.wasm"}).String())
}
