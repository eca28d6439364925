package wasm

import (
	"bytes"
	"fmt"

	"github.com/wasmaot/wasmaot/internal/leb128"
)

// validateConstExpression checks a constant expression used as a global
// initializer or an element/data segment offset: only
// the four `*.const` opcodes and `global.get` of an already-declared,
// immutable, type-matching global are permitted.
func validateConstExpression(globals []*GlobalType, expr *ConstantExpression, expectedType ValueType) error {
	var actualType ValueType
	switch expr.Opcode {
	case OpcodeI32Const:
		if _, _, err := leb128.DecodeInt32(bytes.NewReader(expr.Data)); err != nil {
			return fmt.Errorf("i32.const: %w", err)
		}
		actualType = ValueTypeI32
	case OpcodeI64Const:
		if _, _, err := leb128.DecodeInt64(bytes.NewReader(expr.Data)); err != nil {
			return fmt.Errorf("i64.const: %w", err)
		}
		actualType = ValueTypeI64
	case OpcodeF32Const:
		if len(expr.Data) < 4 {
			return fmt.Errorf("f32.const: need 4 bytes but was %d bytes", len(expr.Data))
		}
		actualType = ValueTypeF32
	case OpcodeF64Const:
		if len(expr.Data) < 8 {
			return fmt.Errorf("f64.const: need 8 bytes but was %d bytes", len(expr.Data))
		}
		actualType = ValueTypeF64
	case OpcodeGlobalGet:
		index, _, err := leb128.DecodeUint32(bytes.NewReader(expr.Data))
		if err != nil {
			return fmt.Errorf("failed to read global index for const expression: %w", err)
		}
		if index >= uint32(len(globals)) {
			return fmt.Errorf("global index out of range: %d", index)
		}
		referenced := globals[index]
		if referenced == nil {
			return fmt.Errorf("global index out of range: %d", index)
		}
		if referenced.Mutable {
			return fmt.Errorf("constant expression cannot reference a mutable global: %d", index)
		}
		actualType = referenced.ValType
	default:
		return fmt.Errorf("invalid opcode for const expression: %#x", expr.Opcode)
	}

	if expectedType != valueTypeUnknown && actualType != expectedType {
		return fmt.Errorf("const expression type mismatch expected %s but was %s",
			ValueTypeName(expectedType), ValueTypeName(actualType))
	}
	return nil
}
