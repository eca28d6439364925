package wasm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFunction_valueStackLimit(t *testing.T) {
	const max = 100
	const valuesNum = max + 1

	// Build a function which has max+1 const instructions.
	var body []byte
	for i := 0; i < valuesNum; i++ {
		body = append(body, OpcodeI32Const, 1)
	}

	// Drop all the consts so that if the max is higher, this function body would be sound.
	for i := 0; i < valuesNum; i++ {
		body = append(body, OpcodeDrop)
	}

	// Plus all functions must end with End opcode.
	body = append(body, OpcodeEnd)

	t.Run("not exceed", func(t *testing.T) {
		err := validateFunction(FeaturesBaseline, &FunctionType{}, body, nil, nil, nil, nil, nil, nil, max+1)
		require.NoError(t, err)
	})
	t.Run("exceed", func(t *testing.T) {
		err := validateFunction(FeaturesBaseline, &FunctionType{}, body, nil, nil, nil, nil, nil, nil, max)
		require.Error(t, err)
		expMsg := fmt.Sprintf("function may have %d stack values, which exceeds limit %d", valuesNum, max)
		require.Equal(t, expMsg, err.Error())
	})
}

func TestValidateFunction_signExtensionGated(t *testing.T) {
	body := []byte{OpcodeI32Const, 1, OpcodeI32Extend8S, OpcodeDrop, OpcodeEnd}
	ft := &FunctionType{}

	t.Run("disabled", func(t *testing.T) {
		err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
		require.Error(t, err)
		require.Equal(t, "i32.extend8_s invalid as feature sign-extension-ops is disabled", err.Error())
	})
	t.Run("enabled", func(t *testing.T) {
		err := validateFunction(FeatureSignExtensionOps, ft, body, nil, nil, nil, nil, nil, nil, 0)
		require.NoError(t, err)
	})
}

func TestValidateFunction_typeMismatch(t *testing.T) {
	// i32.add expects two i32 operands; the stack holds a single i64.
	body := []byte{OpcodeI64Const, 1, OpcodeI32Add, OpcodeEnd}
	ft := &FunctionType{}
	err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.Error(t, err)
}

func TestValidateFunction_blockAndBranch(t *testing.T) {
	// (block (result i32) (i32.const 1) (br 0)) followed by drop.
	body := []byte{
		OpcodeBlock, ValueTypeI32,
		OpcodeI32Const, 1,
		OpcodeBr, 0,
		OpcodeEnd,
		OpcodeDrop,
		OpcodeEnd,
	}
	ft := &FunctionType{}
	err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.NoError(t, err)
}

func TestValidateFunction_callIndex(t *testing.T) {
	body := []byte{OpcodeCall, 5, OpcodeEnd}
	ft := &FunctionType{}
	err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.Error(t, err)
	require.Equal(t, "call: function index out of range: 5", err.Error())
}

func TestValidateFunction_brTableOutOfRangeTargetRejected(t *testing.T) {
	// br_table with a single enclosing block (depth 0 valid) but a default
	// target of depth 9, which has no matching control frame.
	body := []byte{
		OpcodeBlock, 0x40,
		OpcodeI32Const, 0,
		OpcodeBrTable, 1, 0, 9,
		OpcodeEnd,
		OpcodeEnd,
	}
	ft := &FunctionType{}
	err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds enclosing block count")
}

func TestValidateFunction_brTableOutOfRangeNonDefaultTargetRejected(t *testing.T) {
	// br_table whose default target is valid (depth 0) but whose single
	// listed target is not.
	body := []byte{
		OpcodeBlock, 0x40,
		OpcodeI32Const, 0,
		OpcodeBrTable, 1, 9, 0,
		OpcodeEnd,
		OpcodeEnd,
	}
	ft := &FunctionType{}
	err := validateFunction(FeaturesBaseline, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds enclosing block count")
}

func TestValidateFunction_blockTypeIndexOutOfRangeRejected(t *testing.T) {
	// block type immediate 5 is a type-section index, but no types are
	// declared at all.
	body := []byte{OpcodeBlock, 5, OpcodeEnd, OpcodeEnd}
	ft := &FunctionType{}
	err := validateFunction(FeatureMultiValue, ft, body, nil, nil, nil, nil, nil, nil, 0)
	require.Error(t, err)
	require.Equal(t, "block type index out of range: 5", err.Error())
}
