package text

import "github.com/wasmaot/wasmaot/internal/wasm"

// plainOpcodes lists instruction mnemonics that take no immediate operand
// and are always available in the baseline profile.
var plainOpcodes = map[string]wasm.Opcode{
	"unreachable": wasm.OpcodeUnreachable,
	"nop":         wasm.OpcodeNop,
	"return":      wasm.OpcodeReturn,
	"drop":        wasm.OpcodeDrop,
	"select":      wasm.OpcodeSelect,

	"i32.eqz": wasm.OpcodeI32Eqz, "i32.eq": wasm.OpcodeI32Eq, "i32.ne": wasm.OpcodeI32Ne,
	"i32.lt_s": wasm.OpcodeI32LtS, "i32.lt_u": wasm.OpcodeI32LtU,
	"i32.gt_s": wasm.OpcodeI32GtS, "i32.gt_u": wasm.OpcodeI32GtU,
	"i32.le_s": wasm.OpcodeI32LeS, "i32.le_u": wasm.OpcodeI32LeU,
	"i32.ge_s": wasm.OpcodeI32GeS, "i32.ge_u": wasm.OpcodeI32GeU,

	"i64.eqz": wasm.OpcodeI64Eqz, "i64.eq": wasm.OpcodeI64Eq, "i64.ne": wasm.OpcodeI64Ne,
	"i64.lt_s": wasm.OpcodeI64LtS, "i64.lt_u": wasm.OpcodeI64LtU,
	"i64.gt_s": wasm.OpcodeI64GtS, "i64.gt_u": wasm.OpcodeI64GtU,
	"i64.le_s": wasm.OpcodeI64LeS, "i64.le_u": wasm.OpcodeI64LeU,
	"i64.ge_s": wasm.OpcodeI64GeS, "i64.ge_u": wasm.OpcodeI64GeU,

	"f32.eq": wasm.OpcodeF32Eq, "f32.ne": wasm.OpcodeF32Ne,
	"f32.lt": wasm.OpcodeF32Lt, "f32.gt": wasm.OpcodeF32Gt, "f32.le": wasm.OpcodeF32Le, "f32.ge": wasm.OpcodeF32Ge,
	"f64.eq": wasm.OpcodeF64Eq, "f64.ne": wasm.OpcodeF64Ne,
	"f64.lt": wasm.OpcodeF64Lt, "f64.gt": wasm.OpcodeF64Gt, "f64.le": wasm.OpcodeF64Le, "f64.ge": wasm.OpcodeF64Ge,

	"i32.clz": wasm.OpcodeI32Clz, "i32.ctz": wasm.OpcodeI32Ctz, "i32.popcnt": wasm.OpcodeI32Popcnt,
	"i32.add": wasm.OpcodeI32Add, "i32.sub": wasm.OpcodeI32Sub, "i32.mul": wasm.OpcodeI32Mul,
	"i32.div_s": wasm.OpcodeI32DivS, "i32.div_u": wasm.OpcodeI32DivU,
	"i32.rem_s": wasm.OpcodeI32RemS, "i32.rem_u": wasm.OpcodeI32RemU,
	"i32.and": wasm.OpcodeI32And, "i32.or": wasm.OpcodeI32Or, "i32.xor": wasm.OpcodeI32Xor,
	"i32.shl": wasm.OpcodeI32Shl, "i32.shr_s": wasm.OpcodeI32ShrS, "i32.shr_u": wasm.OpcodeI32ShrU,
	"i32.rotl": wasm.OpcodeI32Rotl, "i32.rotr": wasm.OpcodeI32Rotr,

	"i64.clz": wasm.OpcodeI64Clz, "i64.ctz": wasm.OpcodeI64Ctz, "i64.popcnt": wasm.OpcodeI64Popcnt,
	"i64.add": wasm.OpcodeI64Add, "i64.sub": wasm.OpcodeI64Sub, "i64.mul": wasm.OpcodeI64Mul,
	"i64.div_s": wasm.OpcodeI64DivS, "i64.div_u": wasm.OpcodeI64DivU,
	"i64.rem_s": wasm.OpcodeI64RemS, "i64.rem_u": wasm.OpcodeI64RemU,
	"i64.and": wasm.OpcodeI64And, "i64.or": wasm.OpcodeI64Or, "i64.xor": wasm.OpcodeI64Xor,
	"i64.shl": wasm.OpcodeI64Shl, "i64.shr_s": wasm.OpcodeI64ShrS, "i64.shr_u": wasm.OpcodeI64ShrU,
	"i64.rotl": wasm.OpcodeI64Rotl, "i64.rotr": wasm.OpcodeI64Rotr,

	"f32.abs": wasm.OpcodeF32Abs, "f32.neg": wasm.OpcodeF32Neg, "f32.ceil": wasm.OpcodeF32Ceil,
	"f32.floor": wasm.OpcodeF32Floor, "f32.trunc": wasm.OpcodeF32Trunc, "f32.nearest": wasm.OpcodeF32Nearest,
	"f32.sqrt": wasm.OpcodeF32Sqrt, "f32.add": wasm.OpcodeF32Add, "f32.sub": wasm.OpcodeF32Sub,
	"f32.mul": wasm.OpcodeF32Mul, "f32.div": wasm.OpcodeF32Div, "f32.min": wasm.OpcodeF32Min,
	"f32.max": wasm.OpcodeF32Max, "f32.copysign": wasm.OpcodeF32Copysign,

	"f64.abs": wasm.OpcodeF64Abs, "f64.neg": wasm.OpcodeF64Neg, "f64.ceil": wasm.OpcodeF64Ceil,
	"f64.floor": wasm.OpcodeF64Floor, "f64.trunc": wasm.OpcodeF64Trunc, "f64.nearest": wasm.OpcodeF64Nearest,
	"f64.sqrt": wasm.OpcodeF64Sqrt, "f64.add": wasm.OpcodeF64Add, "f64.sub": wasm.OpcodeF64Sub,
	"f64.mul": wasm.OpcodeF64Mul, "f64.div": wasm.OpcodeF64Div, "f64.min": wasm.OpcodeF64Min,
	"f64.max": wasm.OpcodeF64Max, "f64.copysign": wasm.OpcodeF64Copysign,

	"i32.wrap_i64": wasm.OpcodeI32WrapI64,
	"i32.trunc_f32_s": wasm.OpcodeI32TruncF32S, "i32.trunc_f32_u": wasm.OpcodeI32TruncF32U,
	"i32.trunc_f64_s": wasm.OpcodeI32TruncF64S, "i32.trunc_f64_u": wasm.OpcodeI32TruncF64U,
	"i64.extend_i32_s": wasm.OpcodeI64ExtendI32S, "i64.extend_i32_u": wasm.OpcodeI64ExtendI32U,
	"i64.trunc_f32_s": wasm.OpcodeI64TruncF32S, "i64.trunc_f32_u": wasm.OpcodeI64TruncF32U,
	"i64.trunc_f64_s": wasm.OpcodeI64TruncF64S, "i64.trunc_f64_u": wasm.OpcodeI64TruncF64U,
	"f32.convert_i32_s": wasm.OpcodeF32ConvertI32S, "f32.convert_i32_u": wasm.OpcodeF32ConvertI32U,
	"f32.convert_i64_s": wasm.OpcodeF32ConvertI64S, "f32.convert_i64_u": wasm.OpcodeF32ConvertI64U,
	"f32.demote_f64": wasm.OpcodeF32DemoteF64,
	"f64.convert_i32_s": wasm.OpcodeF64ConvertI32S, "f64.convert_i32_u": wasm.OpcodeF64ConvertI32U,
	"f64.convert_i64_s": wasm.OpcodeF64ConvertI64S, "f64.convert_i64_u": wasm.OpcodeF64ConvertI64U,
	"f64.promote_f32": wasm.OpcodeF64PromoteF32,
	"i32.reinterpret_f32": wasm.OpcodeI32ReinterpretF32, "i64.reinterpret_f64": wasm.OpcodeI64ReinterpretF64,
	"f32.reinterpret_i32": wasm.OpcodeF32ReinterpretI32, "f64.reinterpret_i64": wasm.OpcodeF64ReinterpretI64,
}

// featureGatedOpcodes lists mnemonics that require a specific optional
// feature to be enabled.
var featureGatedOpcodes = map[string]struct {
	opcode  wasm.Opcode
	feature wasm.Features
}{
	"i32.extend8_s":  {wasm.OpcodeI32Extend8S, wasm.FeatureSignExtensionOps},
	"i32.extend16_s": {wasm.OpcodeI32Extend16S, wasm.FeatureSignExtensionOps},
	"i64.extend8_s":  {wasm.OpcodeI64Extend8S, wasm.FeatureSignExtensionOps},
	"i64.extend16_s": {wasm.OpcodeI64Extend16S, wasm.FeatureSignExtensionOps},
	"i64.extend32_s": {wasm.OpcodeI64Extend32S, wasm.FeatureSignExtensionOps},
}

// indexOpcodes lists mnemonics that take a single index operand (a local,
// global, or function index, possibly written as a "$name").
var indexOpcodes = map[string]wasm.Opcode{
	"local.get":  wasm.OpcodeLocalGet,
	"local.set":  wasm.OpcodeLocalSet,
	"local.tee":  wasm.OpcodeLocalTee,
	"global.get": wasm.OpcodeGlobalGet,
	"global.set": wasm.OpcodeGlobalSet,
	"call":       wasm.OpcodeCall,
}

// constOpcodes lists the immediate-carrying *.const mnemonics.
var constOpcodes = map[string]wasm.Opcode{
	"i32.const": wasm.OpcodeI32Const,
	"i64.const": wasm.OpcodeI64Const,
}

// isKnownInstruction reports whether name is any recognized instruction
// mnemonic, used to distinguish "folded instruction" from "not an
// instruction at all" when a "(" is seen where a header group was expected.
func isKnownInstruction(name string) bool {
	if _, ok := plainOpcodes[name]; ok {
		return true
	}
	if _, ok := featureGatedOpcodes[name]; ok {
		return true
	}
	if _, ok := indexOpcodes[name]; ok {
		return true
	}
	if _, ok := constOpcodes[name]; ok {
		return true
	}
	return false
}
