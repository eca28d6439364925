package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

func TestDecodeModule_invalidHeader(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := DecodeModule([]byte{0x00, 0x61, 0x73}, false)
		require.ErrorIs(t, err, ErrInvalidMagicNumber)
	})
	t.Run("wrong magic", func(t *testing.T) {
		_, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00}, false)
		require.ErrorIs(t, err, ErrInvalidMagicNumber)
	})
	t.Run("wrong version", func(t *testing.T) {
		_, err := DecodeModule(append(append([]byte{}, Magic...), 0x02, 0x00, 0x00, 0x00), false)
		require.ErrorIs(t, err, ErrInvalidVersion)
	})
}

func TestDecodeModule_empty(t *testing.T) {
	// Spec scenario: `\0asm\x01\x00\x00\x00` decodes to a module with zero sections.
	m, err := DecodeModule(append(append([]byte{}, Magic...), Version...), false)
	require.NoError(t, err)
	require.Equal(t, &wasm.Module{}, m)
}

func TestDecodeModule_roundTrip(t *testing.T) {
	i32, f32 := wasm.ValueTypeI32, wasm.ValueTypeF32
	max := uint32(10)

	tests := []struct {
		name  string
		input *wasm.Module
	}{
		{name: "empty", input: &wasm.Module{}},
		{
			name: "type section",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{
					{},
					{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}},
				},
			},
		},
		{
			name: "import and function",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{f32}}},
				ImportSection: []*wasm.Import{
					{Module: "env", Name: "tbl", Type: wasm.ExternTypeTable, DescTable: &wasm.Table{Min: 1, Max: &max}},
				},
				FunctionSection: []wasm.Index{0},
				CodeSection: []*wasm.Code{
					{LocalTypes: []wasm.ValueType{i32, i32}, Body: []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeEnd}},
				},
			},
		},
		{
			name: "export and global",
			input: &wasm.Module{
				GlobalSection: []*wasm.Global{
					{Type: &wasm.GlobalType{ValType: i32, Mutable: false}, Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{5}}},
				},
				ExportSection: map[string]*wasm.Export{
					"g": {Name: "g", Type: wasm.ExternTypeGlobal, Index: 0},
				},
			},
		},
		{
			name: "memory and data",
			input: &wasm.Module{
				MemorySection: &wasm.Memory{Min: 1, Max: 2, IsMaxEncoded: true},
				DataSection: []*wasm.DataSegment{
					{MemoryIndex: 0, OffsetExpression: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0}}, Init: []byte("hi")},
				},
			},
		},
		{
			name: "name section",
			input: &wasm.Module{
				NameSection: &wasm.NameSection{
					ModuleName:    "m",
					FunctionNames: wasm.NameMap{{Index: 0, Name: "f"}},
				},
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeModule(tc.input)
			decoded, err := DecodeModule(encoded, true)
			require.NoError(t, err)
			require.Equal(t, tc.input, decoded)
		})
	}
}

func TestDecodeModule_sectionErrors(t *testing.T) {
	t.Run("unknown section id", func(t *testing.T) {
		data := append(append([]byte{}, Magic...), Version...)
		data = append(data, 200, 0x00) // invalid id, zero-length payload
		_, err := DecodeModule(data, false)
		require.Error(t, err)
	})
	t.Run("duplicate section", func(t *testing.T) {
		data := append(append([]byte{}, Magic...), Version...)
		data = append(data, wasm.SectionIDType, 0x01, 0x00) // type section, 0 entries
		data = append(data, wasm.SectionIDType, 0x01, 0x00) // duplicate
		_, err := DecodeModule(data, false)
		require.Error(t, err)
	})
	t.Run("out of order section", func(t *testing.T) {
		data := append(append([]byte{}, Magic...), Version...)
		data = append(data, wasm.SectionIDFunction, 0x01, 0x00)
		data = append(data, wasm.SectionIDType, 0x01, 0x00)
		_, err := DecodeModule(data, false)
		require.Error(t, err)
	})
	t.Run("truncated section", func(t *testing.T) {
		data := append(append([]byte{}, Magic...), Version...)
		data = append(data, wasm.SectionIDType, 0x05) // claims 5 bytes, provides none
		_, err := DecodeModule(data, false)
		require.Error(t, err)
	})
	t.Run("at most one table", func(t *testing.T) {
		data := append(append([]byte{}, Magic...), Version...)
		// table section: count=2
		data = append(data, wasm.SectionIDTable, 0x07,
			0x02,
			wasm.ValueTypeFuncref, 0x00, 0x01,
			wasm.ValueTypeFuncref, 0x00, 0x01,
		)
		_, err := DecodeModule(data, false)
		require.ErrorContains(t, err, "at most one table")
	})
}
