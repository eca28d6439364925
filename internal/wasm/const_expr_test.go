package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateConstExpression(t *testing.T) {
	immutableI32 := &GlobalType{ValType: ValueTypeI32, Mutable: false}
	mutableI32 := &GlobalType{ValType: ValueTypeI32, Mutable: true}

	tests := []struct {
		name    string
		globals []*GlobalType
		expr    *ConstantExpression
		expType ValueType
		expErr  string
	}{
		{
			name:    "i32.const ok",
			expr:    &ConstantExpression{Opcode: OpcodeI32Const, Data: []byte{1}},
			expType: ValueTypeI32,
		},
		{
			name:    "i32.const type mismatch",
			expr:    &ConstantExpression{Opcode: OpcodeI32Const, Data: []byte{1}},
			expType: ValueTypeI64,
			expErr:  "const expression type mismatch expected i64 but was i32",
		},
		{
			name:    "f64.const too short",
			expr:    &ConstantExpression{Opcode: OpcodeF64Const, Data: []byte{1, 2, 3}},
			expType: ValueTypeF64,
			expErr:  "f64.const: need 8 bytes but was 3 bytes",
		},
		{
			name:    "global.get of immutable global ok",
			globals: []*GlobalType{immutableI32},
			expr:    &ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0}},
			expType: ValueTypeI32,
		},
		{
			name:    "global.get of mutable global rejected",
			globals: []*GlobalType{mutableI32},
			expr:    &ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0}},
			expType: ValueTypeI32,
			expErr:  "constant expression cannot reference a mutable global: 0",
		},
		{
			name:    "global.get out of range",
			globals: nil,
			expr:    &ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0}},
			expType: ValueTypeI32,
			expErr:  "global index out of range: 0",
		},
		{
			name:   "invalid opcode",
			expr:   &ConstantExpression{Opcode: OpcodeNop},
			expErr: "invalid opcode for const expression: 0x1",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			err := validateConstExpression(tc.globals, tc.expr, tc.expType)
			if tc.expErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expErr)
			}
		})
	}
}
