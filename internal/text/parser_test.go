package text

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

func parseOneFunc(t *testing.T, src string, features wasm.Features) *wasm.Module {
	t.Helper()
	m, err := ParseModule([]byte(src), features)
	require.NoError(t, err)
	return m
}

func TestParseModule_emptyFunc(t *testing.T) {
	m := parseOneFunc(t, `(module (func))`, wasm.FeaturesBaseline)
	require.Len(t, m.TypeSection, 1)
	require.Equal(t, &wasm.FunctionType{}, m.TypeSection[0])
	require.Equal(t, []wasm.Index{0}, m.FunctionSection)
	require.Equal(t, []byte{wasm.OpcodeEnd}, m.CodeSection[0].Body)
}

func TestParseModule_localGetAndAdd(t *testing.T) {
	m := parseOneFunc(t, `(module (func (param $a i32) (param i32) (result i32)
		local.get $a
		local.get 1
		i32.add))`, wasm.FeaturesBaseline)
	require.Equal(t, []byte{
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeLocalGet, 1,
		wasm.OpcodeI32Add,
		wasm.OpcodeEnd,
	}, m.CodeSection[0].Body)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.TypeSection[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.TypeSection[0].Results)
}

func TestParseModule_signExtensionFeatureGating(t *testing.T) {
	src := `(module (func (param i32) local.get 0 i32.extend8_s))`
	_, err := ParseModule([]byte(src), wasm.FeaturesBaseline)
	require.ErrorContains(t, err, "disabled feature")

	m := parseOneFunc(t, src, wasm.FeatureSignExtensionOps)
	require.Equal(t, []byte{
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeI32Extend8S,
		wasm.OpcodeEnd,
	}, m.CodeSection[0].Body)
}

func TestParseModule_callByIndex(t *testing.T) {
	m := parseOneFunc(t, `(module
		(func)
		(func call 0))`, wasm.FeaturesBaseline)
	require.Equal(t, []byte{wasm.OpcodeCall, 0, wasm.OpcodeEnd}, m.CodeSection[1].Body)
}

func TestParseModule_callByNameForwardReference(t *testing.T) {
	m := parseOneFunc(t, `(module
		(func $caller call $callee)
		(func $callee))`, wasm.FeaturesBaseline)
	require.Equal(t, []byte{wasm.OpcodeCall, 1, wasm.OpcodeEnd}, m.CodeSection[0].Body)
}

func TestParseModule_callUnknownIdentifier(t *testing.T) {
	_, err := ParseModule([]byte(`(module (func call $nope))`), wasm.FeaturesBaseline)
	require.ErrorContains(t, err, "unknown function identifier")
}

func TestParseModule_paramAfterResultRejected(t *testing.T) {
	_, err := ParseModule([]byte(`(module (func (result i32) (param i32)))`), wasm.FeaturesBaseline)
	require.Error(t, err)
}

func TestParseModule_unsupportedInstruction(t *testing.T) {
	_, err := ParseModule([]byte(`(module (func v128.load))`), wasm.FeaturesBaseline)
	require.ErrorContains(t, err, "unsupported instruction")
}

func TestParseModule_foldedInstructionsNotSupported(t *testing.T) {
	_, err := ParseModule([]byte(`(module (func (i32.add (i32.const 1) (i32.const 2))))`), wasm.FeaturesBaseline)
	require.ErrorContains(t, err, "folded instructions are not supported")

	_, err = ParseModule([]byte(`(module (func i32.const 1 (i32.const 2)))`), wasm.FeaturesBaseline)
	require.ErrorContains(t, err, "folded instructions are not supported")
}

func TestParseModule_exportAndImport(t *testing.T) {
	m := parseOneFunc(t, `(module
		(import "env" "log" (func $log (param i32)))
		(func $main call $log)
		(export "main" (func $main)))`, wasm.FeaturesBaseline)
	require.Len(t, m.ImportSection, 1)
	require.Equal(t, "env", m.ImportSection[0].Module)
	require.Equal(t, []byte{wasm.OpcodeCall, 0, wasm.OpcodeEnd}, m.CodeSection[0].Body)
	exp, ok := m.ExportSection["main"]
	require.True(t, ok)
	require.Equal(t, wasm.Index(1), exp.Index)
}

func TestParseModule_globalForwardReference(t *testing.T) {
	m := parseOneFunc(t, `(module
		(func $get_g global.get $g)
		(global $g i32 (i32.const 42)))`, wasm.FeaturesBaseline)
	require.Equal(t, []byte{wasm.OpcodeGlobalGet, 0, wasm.OpcodeEnd}, m.CodeSection[0].Body)
	require.Len(t, m.GlobalSection, 1)
}
