package wasm

// loadOpcodeNames, storeOpcodeNames, and numericOpcodeNames back
// opcodeName's error-message rendering for the table-driven instruction
// classes in func_validation.go.
var loadOpcodeNames = map[Opcode]string{
	OpcodeI32Load: "i32.load", OpcodeI32Load8S: "i32.load8_s", OpcodeI32Load8U: "i32.load8_u",
	OpcodeI32Load16S: "i32.load16_s", OpcodeI32Load16U: "i32.load16_u",
	OpcodeI64Load: "i64.load", OpcodeI64Load8S: "i64.load8_s", OpcodeI64Load8U: "i64.load8_u",
	OpcodeI64Load16S: "i64.load16_s", OpcodeI64Load16U: "i64.load16_u",
	OpcodeI64Load32S: "i64.load32_s", OpcodeI64Load32U: "i64.load32_u",
	OpcodeF32Load: "f32.load",
	OpcodeF64Load: "f64.load",
}

var storeOpcodeNames = map[Opcode]string{
	OpcodeI32Store: "i32.store", OpcodeI32Store8: "i32.store8", OpcodeI32Store16: "i32.store16",
	OpcodeI64Store: "i64.store", OpcodeI64Store8: "i64.store8", OpcodeI64Store16: "i64.store16", OpcodeI64Store32: "i64.store32",
	OpcodeF32Store: "f32.store",
	OpcodeF64Store: "f64.store",
}

var numericOpcodeNames = map[Opcode]string{
	OpcodeI32Eqz: "i32.eqz", OpcodeI64Eqz: "i64.eqz",
	OpcodeI32Eq: "i32.eq", OpcodeI32Ne: "i32.ne",
	OpcodeI32LtS: "i32.lt_s", OpcodeI32LtU: "i32.lt_u", OpcodeI32GtS: "i32.gt_s", OpcodeI32GtU: "i32.gt_u",
	OpcodeI32LeS: "i32.le_s", OpcodeI32LeU: "i32.le_u", OpcodeI32GeS: "i32.ge_s", OpcodeI32GeU: "i32.ge_u",
	OpcodeI64Eq: "i64.eq", OpcodeI64Ne: "i64.ne",
	OpcodeI64LtS: "i64.lt_s", OpcodeI64LtU: "i64.lt_u", OpcodeI64GtS: "i64.gt_s", OpcodeI64GtU: "i64.gt_u",
	OpcodeI64LeS: "i64.le_s", OpcodeI64LeU: "i64.le_u", OpcodeI64GeS: "i64.ge_s", OpcodeI64GeU: "i64.ge_u",
	OpcodeF32Eq: "f32.eq", OpcodeF32Ne: "f32.ne", OpcodeF32Lt: "f32.lt", OpcodeF32Gt: "f32.gt",
	OpcodeF32Le: "f32.le", OpcodeF32Ge: "f32.ge",
	OpcodeF64Eq: "f64.eq", OpcodeF64Ne: "f64.ne", OpcodeF64Lt: "f64.lt", OpcodeF64Gt: "f64.gt",
	OpcodeF64Le: "f64.le", OpcodeF64Ge: "f64.ge",

	OpcodeI32Clz: "i32.clz", OpcodeI32Ctz: "i32.ctz", OpcodeI32Popcnt: "i32.popcnt",
	OpcodeI32Add: "i32.add", OpcodeI32Sub: "i32.sub", OpcodeI32Mul: "i32.mul",
	OpcodeI32DivS: "i32.div_s", OpcodeI32DivU: "i32.div_u", OpcodeI32RemS: "i32.rem_s", OpcodeI32RemU: "i32.rem_u",
	OpcodeI32And: "i32.and", OpcodeI32Or: "i32.or", OpcodeI32Xor: "i32.xor",
	OpcodeI32Shl: "i32.shl", OpcodeI32ShrS: "i32.shr_s", OpcodeI32ShrU: "i32.shr_u",
	OpcodeI32Rotl: "i32.rotl", OpcodeI32Rotr: "i32.rotr",

	OpcodeI64Clz: "i64.clz", OpcodeI64Ctz: "i64.ctz", OpcodeI64Popcnt: "i64.popcnt",
	OpcodeI64Add: "i64.add", OpcodeI64Sub: "i64.sub", OpcodeI64Mul: "i64.mul",
	OpcodeI64DivS: "i64.div_s", OpcodeI64DivU: "i64.div_u", OpcodeI64RemS: "i64.rem_s", OpcodeI64RemU: "i64.rem_u",
	OpcodeI64And: "i64.and", OpcodeI64Or: "i64.or", OpcodeI64Xor: "i64.xor",
	OpcodeI64Shl: "i64.shl", OpcodeI64ShrS: "i64.shr_s", OpcodeI64ShrU: "i64.shr_u",
	OpcodeI64Rotl: "i64.rotl", OpcodeI64Rotr: "i64.rotr",

	OpcodeF32Abs: "f32.abs", OpcodeF32Neg: "f32.neg", OpcodeF32Ceil: "f32.ceil", OpcodeF32Floor: "f32.floor",
	OpcodeF32Trunc: "f32.trunc", OpcodeF32Nearest: "f32.nearest", OpcodeF32Sqrt: "f32.sqrt",
	OpcodeF32Add: "f32.add", OpcodeF32Sub: "f32.sub", OpcodeF32Mul: "f32.mul", OpcodeF32Div: "f32.div",
	OpcodeF32Min: "f32.min", OpcodeF32Max: "f32.max", OpcodeF32Copysign: "f32.copysign",

	OpcodeF64Abs: "f64.abs", OpcodeF64Neg: "f64.neg", OpcodeF64Ceil: "f64.ceil", OpcodeF64Floor: "f64.floor",
	OpcodeF64Trunc: "f64.trunc", OpcodeF64Nearest: "f64.nearest", OpcodeF64Sqrt: "f64.sqrt",
	OpcodeF64Add: "f64.add", OpcodeF64Sub: "f64.sub", OpcodeF64Mul: "f64.mul", OpcodeF64Div: "f64.div",
	OpcodeF64Min: "f64.min", OpcodeF64Max: "f64.max", OpcodeF64Copysign: "f64.copysign",

	OpcodeI32WrapI64: "i32.wrap_i64",
	OpcodeI32TruncF32S: "i32.trunc_f32_s", OpcodeI32TruncF32U: "i32.trunc_f32_u",
	OpcodeI32TruncF64S: "i32.trunc_f64_s", OpcodeI32TruncF64U: "i32.trunc_f64_u",
	OpcodeI64ExtendI32S: "i64.extend_i32_s", OpcodeI64ExtendI32U: "i64.extend_i32_u",
	OpcodeI64TruncF32S: "i64.trunc_f32_s", OpcodeI64TruncF32U: "i64.trunc_f32_u",
	OpcodeI64TruncF64S: "i64.trunc_f64_s", OpcodeI64TruncF64U: "i64.trunc_f64_u",
	OpcodeF32ConvertI32S: "f32.convert_i32_s", OpcodeF32ConvertI32U: "f32.convert_i32_u",
	OpcodeF32ConvertI64S: "f32.convert_i64_s", OpcodeF32ConvertI64U: "f32.convert_i64_u",
	OpcodeF32DemoteF64: "f32.demote_f64",
	OpcodeF64ConvertI32S: "f64.convert_i32_s", OpcodeF64ConvertI32U: "f64.convert_i32_u",
	OpcodeF64ConvertI64S: "f64.convert_i64_s", OpcodeF64ConvertI64U: "f64.convert_i64_u",
	OpcodeF64PromoteF32: "f64.promote_f32",
	OpcodeI32ReinterpretF32: "i32.reinterpret_f32", OpcodeI64ReinterpretF64: "i64.reinterpret_f64",
	OpcodeF32ReinterpretI32: "f32.reinterpret_i32", OpcodeF64ReinterpretI64: "f64.reinterpret_i64",

	OpcodeI32Extend8S: "i32.extend8_s", OpcodeI32Extend16S: "i32.extend16_s",
	OpcodeI64Extend8S: "i64.extend8_s", OpcodeI64Extend16S: "i64.extend16_s", OpcodeI64Extend32S: "i64.extend32_s",
}
