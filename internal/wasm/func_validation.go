package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmaot/wasmaot/internal/leb128"
)

// valUnknown is the "don't care" operand-stack entry used while validating
// unreachable code: after an unconditional branch, the stack is logically
// polymorphic, so pops beneath the current control frame's height succeed
// regardless of type, per the WebAssembly validation algorithm.
const valUnknown ValueType = 0xff

// ctrlFrame is one entry of the control-flow stack maintained while
// validating a function body: one per block/loop/if/the implicit
// outermost frame.
type ctrlFrame struct {
	opcode      Opcode // OpcodeBlock, OpcodeLoop, OpcodeIf, or 0 for the outermost frame
	startTypes  []ValueType
	endTypes    []ValueType
	height      int // operand stack height when this frame was entered
	unreachable bool
	sawElse     bool
}

// funcValidator carries the state of a single function body's type-stack
// simulation.
type funcValidator struct {
	enabledFeatures Features
	functionType    *FunctionType
	functions       []Index
	globals         []*GlobalType
	memory          *Memory
	table           *Table
	types           []*FunctionType
	locals          []ValueType
	maxStackValues  int

	opStack       []ValueType
	ctrlStack     []ctrlFrame
	peakStackSize int

	r *bytes.Reader
}

// validateFunction runs the type-stack simulation over a single function
// body. functionType is the function's own signature; locals holds its
// declared locals beyond its parameters; the remaining slices are the
// module's flattened declaration lists from Module.AllDeclarations,
// providing the index spaces instructions may reference.
func validateFunction(
	enabledFeatures Features,
	functionType *FunctionType,
	body []byte,
	localTypes []ValueType,
	functions []Index,
	globals []*GlobalType,
	memory *Memory,
	table *Table,
	types []*FunctionType,
	maxStackValues int,
) error {
	locals := make([]ValueType, 0, len(functionType.Params)+len(localTypes))
	locals = append(locals, functionType.Params...)
	locals = append(locals, localTypes...)

	v := &funcValidator{
		enabledFeatures: enabledFeatures,
		functionType:    functionType,
		functions:       functions,
		globals:         globals,
		memory:          memory,
		table:           table,
		types:           types,
		locals:          locals,
		maxStackValues:  maxStackValues,
		r:               bytes.NewReader(body),
	}
	v.pushCtrl(0, nil, functionType.Results)

	for {
		op, err := v.r.ReadByte()
		if err == io.EOF {
			return fmt.Errorf("function body missing final end")
		} else if err != nil {
			return err
		}
		done, err := v.validateInstruction(op)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	if v.r.Len() != 0 {
		return fmt.Errorf("%d bytes left after function", v.r.Len())
	}
	if v.maxStackValues > 0 && v.peakStackSize > v.maxStackValues {
		return fmt.Errorf("function may have %d stack values, which exceeds limit %d", v.peakStackSize, v.maxStackValues)
	}
	return nil
}

// validateInstruction validates a single instruction, returning done=true
// once the outermost OpcodeEnd (matching the function body itself) has
// been consumed.
func (v *funcValidator) validateInstruction(op Opcode) (done bool, err error) {
	switch op {
	case OpcodeUnreachable:
		v.unreachable()
	case OpcodeNop:
	case OpcodeBlock, OpcodeLoop, OpcodeIf:
		bt, err := v.readBlockType()
		if err != nil {
			return false, err
		}
		params, results, err := v.blockSignature(bt)
		if err != nil {
			return false, err
		}
		if op == OpcodeIf {
			if err := v.popOperand(ValueTypeI32); err != nil {
				return false, fmt.Errorf("if condition: %w", err)
			}
		}
		if err := v.popOperands(params); err != nil {
			return false, fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		if op == OpcodeLoop {
			v.pushCtrl(op, params, params)
		} else {
			v.pushCtrl(op, params, results)
		}
		for _, p := range params {
			v.pushOperand(p)
		}
	case OpcodeElse:
		frame, err := v.popCtrlKeepingFrame()
		if err != nil {
			return false, err
		}
		if frame.opcode != OpcodeIf {
			return false, fmt.Errorf("else without matching if")
		}
		if frame.sawElse {
			return false, fmt.Errorf("else already seen for this if")
		}
		v.ctrlStack[len(v.ctrlStack)-1].sawElse = true
		v.ctrlStack[len(v.ctrlStack)-1].unreachable = false
		v.opStack = v.opStack[:frame.height]
		for _, p := range frame.startTypes {
			v.pushOperand(p)
		}
	case OpcodeEnd:
		frame, err := v.popCtrl()
		if err != nil {
			return false, err
		}
		for _, r := range frame.endTypes {
			v.pushOperand(r)
		}
		if len(v.ctrlStack) == 0 {
			return true, nil
		}
	case OpcodeBr:
		n, err := v.readLabelIndex()
		if err != nil {
			return false, err
		}
		if err := v.checkBranch(n); err != nil {
			return false, err
		}
		v.unreachable()
	case OpcodeBrIf:
		n, err := v.readLabelIndex()
		if err != nil {
			return false, err
		}
		if err := v.popOperand(ValueTypeI32); err != nil {
			return false, fmt.Errorf("br_if condition: %w", err)
		}
		if err := v.checkBranch(n); err != nil {
			return false, err
		}
		v.pushOperands(v.labelTypes(n))
	case OpcodeBrTable:
		count, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("br_table count: %w", err)
		}
		targets := make([]uint32, count)
		for i := range targets {
			targets[i], _, err = leb128.DecodeUint32(v.r)
			if err != nil {
				return false, fmt.Errorf("br_table target[%d]: %w", i, err)
			}
		}
		defaultTarget, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("br_table default target: %w", err)
		}
		if err := v.popOperand(ValueTypeI32); err != nil {
			return false, fmt.Errorf("br_table index: %w", err)
		}
		if defaultTarget >= uint32(len(v.ctrlStack)) {
			return false, fmt.Errorf("br_table default target depth %d exceeds enclosing block count %d", defaultTarget, len(v.ctrlStack))
		}
		defaultTypes := v.labelTypes(defaultTarget)
		if err := v.checkBranch(defaultTarget); err != nil {
			return false, err
		}
		for i, t := range targets {
			if t >= uint32(len(v.ctrlStack)) {
				return false, fmt.Errorf("br_table target[%d] depth %d exceeds enclosing block count %d", i, t, len(v.ctrlStack))
			}
			if len(v.labelTypes(t)) != len(defaultTypes) {
				return false, fmt.Errorf("br_table target[%d] arity mismatch with default", i)
			}
			if err := v.checkBranch(t); err != nil {
				return false, err
			}
		}
		v.unreachable()
	case OpcodeReturn:
		if err := v.checkBranch(uint32(len(v.ctrlStack) - 1)); err != nil {
			return false, fmt.Errorf("return: %w", err)
		}
		v.unreachable()
	case OpcodeCall:
		funcIndex, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("call operand: %w", err)
		}
		if funcIndex >= uint32(len(v.functions)) {
			return false, fmt.Errorf("call: function index out of range: %d", funcIndex)
		}
		typeIndex := v.functions[funcIndex]
		if typeIndex >= uint32(len(v.types)) {
			return false, fmt.Errorf("call: function type index out of range: %d", typeIndex)
		}
		ft := v.types[typeIndex]
		if err := v.popOperands(ft.Params); err != nil {
			return false, fmt.Errorf("call[%d]: %w", funcIndex, err)
		}
		for _, r := range ft.Results {
			v.pushOperand(r)
		}
	case OpcodeCallIndirect:
		typeIndex, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("call_indirect type operand: %w", err)
		}
		tableIndex, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("call_indirect table operand: %w", err)
		}
		if v.table == nil || tableIndex != 0 {
			return false, fmt.Errorf("call_indirect: unknown table %d", tableIndex)
		}
		if typeIndex >= uint32(len(v.types)) {
			return false, fmt.Errorf("call_indirect: type index out of range: %d", typeIndex)
		}
		if err := v.popOperand(ValueTypeI32); err != nil {
			return false, fmt.Errorf("call_indirect table index: %w", err)
		}
		ft := v.types[typeIndex]
		if err := v.popOperands(ft.Params); err != nil {
			return false, fmt.Errorf("call_indirect[%d]: %w", typeIndex, err)
		}
		for _, r := range ft.Results {
			v.pushOperand(r)
		}
	case OpcodeDrop:
		if err := v.popAnyOperand(); err != nil {
			return false, fmt.Errorf("drop: %w", err)
		}
	case OpcodeSelect:
		if err := v.popOperand(ValueTypeI32); err != nil {
			return false, fmt.Errorf("select condition: %w", err)
		}
		t2, err := v.popAnyOperandType()
		if err != nil {
			return false, fmt.Errorf("select: %w", err)
		}
		if err := v.popOperand(t2); err != nil {
			return false, fmt.Errorf("select: %w", err)
		}
		v.pushOperand(t2)
	case OpcodeLocalGet, OpcodeLocalSet, OpcodeLocalTee:
		index, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("local operand: %w", err)
		}
		if index >= uint32(len(v.locals)) {
			return false, fmt.Errorf("local index out of range: %d", index)
		}
		t := v.locals[index]
		switch op {
		case OpcodeLocalGet:
			v.pushOperand(t)
		case OpcodeLocalSet:
			if err := v.popOperand(t); err != nil {
				return false, fmt.Errorf("local.set[%d]: %w", index, err)
			}
		case OpcodeLocalTee:
			if err := v.popOperand(t); err != nil {
				return false, fmt.Errorf("local.tee[%d]: %w", index, err)
			}
			v.pushOperand(t)
		}
	case OpcodeGlobalGet, OpcodeGlobalSet:
		index, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("global operand: %w", err)
		}
		if index >= uint32(len(v.globals)) {
			return false, fmt.Errorf("global index out of range: %d", index)
		}
		g := v.globals[index]
		if op == OpcodeGlobalGet {
			v.pushOperand(g.ValType)
		} else {
			if !g.Mutable {
				return false, fmt.Errorf("global.set[%d]: immutable global", index)
			}
			if err := v.popOperand(g.ValType); err != nil {
				return false, fmt.Errorf("global.set[%d]: %w", index, err)
			}
		}
	case OpcodeMemorySize, OpcodeMemoryGrow:
		if v.memory == nil {
			return false, fmt.Errorf("%s: unknown memory", opcodeName(op))
		}
		if _, err := v.readMemAlignUnused(); err != nil {
			return false, err
		}
		if op == OpcodeMemoryGrow {
			if err := v.popOperand(ValueTypeI32); err != nil {
				return false, fmt.Errorf("memory.grow: %w", err)
			}
		}
		v.pushOperand(ValueTypeI32)
	case OpcodeI32Const:
		if _, _, err := leb128.DecodeInt32(v.r); err != nil {
			return false, fmt.Errorf("i32.const: %w", err)
		}
		v.pushOperand(ValueTypeI32)
	case OpcodeI64Const:
		if _, _, err := leb128.DecodeInt64(v.r); err != nil {
			return false, fmt.Errorf("i64.const: %w", err)
		}
		v.pushOperand(ValueTypeI64)
	case OpcodeF32Const:
		if err := v.skip(4); err != nil {
			return false, fmt.Errorf("f32.const: %w", err)
		}
		v.pushOperand(ValueTypeF32)
	case OpcodeF64Const:
		if err := v.skip(8); err != nil {
			return false, fmt.Errorf("f64.const: %w", err)
		}
		v.pushOperand(ValueTypeF64)
	case OpcodeMiscPrefix:
		sub, _, err := leb128.DecodeUint32(v.r)
		if err != nil {
			return false, fmt.Errorf("misc opcode operand: %w", err)
		}
		if err := v.validateMiscInstruction(Opcode(sub)); err != nil {
			return false, err
		}
	default:
		if err := v.validateSignatureOpcode(op); err != nil {
			return false, err
		}
	}
	return false, nil
}

// memArg is the (align, offset) immediate pair carried by every load/store
// instruction. The validator only needs to consume it; alignment and
// offset are meaningful to the backend, not to type-checking.
func (v *funcValidator) readMemArg() error {
	if _, _, err := leb128.DecodeUint32(v.r); err != nil {
		return fmt.Errorf("align: %w", err)
	}
	if _, _, err := leb128.DecodeUint32(v.r); err != nil {
		return fmt.Errorf("offset: %w", err)
	}
	return nil
}

// readMemAlignUnused consumes the single reserved zero byte that follows
// memory.size and memory.grow (a vestige of future multi-memory support).
func (v *funcValidator) readMemAlignUnused() (byte, error) {
	return v.r.ReadByte()
}

func (v *funcValidator) skip(n int) error {
	buf := make([]byte, n)
	read, err := io.ReadFull(v.r, buf)
	if err != nil {
		return err
	}
	if read != n {
		return fmt.Errorf("need %d bytes but was %d bytes", n, read)
	}
	return nil
}

// signature describes a fixed-arity instruction's effect on the operand
// stack: it pops len(pop) operands of the given types (checked in order,
// topmost last) and pushes len(push) operands.
type signature struct {
	pop  []ValueType
	push []ValueType
}

func sig(pop, push []ValueType) signature { return signature{pop: pop, push: push} }

var (
	i32    = []ValueType{ValueTypeI32}
	i64    = []ValueType{ValueTypeI64}
	f32    = []ValueType{ValueTypeF32}
	f64    = []ValueType{ValueTypeF64}
	i32i32 = []ValueType{ValueTypeI32, ValueTypeI32}
	i64i64 = []ValueType{ValueTypeI64, ValueTypeI64}
	f32f32 = []ValueType{ValueTypeF32, ValueTypeF32}
	f64f64 = []ValueType{ValueTypeF64, ValueTypeF64}
)

// loadSignatures and storeSignatures describe the (valueType, memArg)
// effect of every load/store opcode: all load result/store operand types,
// independent of the narrower width actually read or written: sub-word
// loads/stores are purely a backend concern, not a type-stack concern.
var loadSignatures = map[Opcode]ValueType{
	OpcodeI32Load: ValueTypeI32, OpcodeI32Load8S: ValueTypeI32, OpcodeI32Load8U: ValueTypeI32,
	OpcodeI32Load16S: ValueTypeI32, OpcodeI32Load16U: ValueTypeI32,
	OpcodeI64Load: ValueTypeI64, OpcodeI64Load8S: ValueTypeI64, OpcodeI64Load8U: ValueTypeI64,
	OpcodeI64Load16S: ValueTypeI64, OpcodeI64Load16U: ValueTypeI64,
	OpcodeI64Load32S: ValueTypeI64, OpcodeI64Load32U: ValueTypeI64,
	OpcodeF32Load: ValueTypeF32,
	OpcodeF64Load: ValueTypeF64,
}

var storeSignatures = map[Opcode]ValueType{
	OpcodeI32Store: ValueTypeI32, OpcodeI32Store8: ValueTypeI32, OpcodeI32Store16: ValueTypeI32,
	OpcodeI64Store: ValueTypeI64, OpcodeI64Store8: ValueTypeI64, OpcodeI64Store16: ValueTypeI64, OpcodeI64Store32: ValueTypeI64,
	OpcodeF32Store: ValueTypeF32,
	OpcodeF64Store: ValueTypeF64,
}

// numericSignatures covers every fixed-arity numeric instruction that
// isn't a load, store, or const: comparisons, arithmetic, conversions,
// and bit manipulation.
var numericSignatures = map[Opcode]signature{
	OpcodeI32Eqz: sig(i32, i32), OpcodeI64Eqz: sig(i64, i32),
	OpcodeI32Eq: sig(i32i32, i32), OpcodeI32Ne: sig(i32i32, i32),
	OpcodeI32LtS: sig(i32i32, i32), OpcodeI32LtU: sig(i32i32, i32),
	OpcodeI32GtS: sig(i32i32, i32), OpcodeI32GtU: sig(i32i32, i32),
	OpcodeI32LeS: sig(i32i32, i32), OpcodeI32LeU: sig(i32i32, i32),
	OpcodeI32GeS: sig(i32i32, i32), OpcodeI32GeU: sig(i32i32, i32),
	OpcodeI64Eq: sig(i64i64, i32), OpcodeI64Ne: sig(i64i64, i32),
	OpcodeI64LtS: sig(i64i64, i32), OpcodeI64LtU: sig(i64i64, i32),
	OpcodeI64GtS: sig(i64i64, i32), OpcodeI64GtU: sig(i64i64, i32),
	OpcodeI64LeS: sig(i64i64, i32), OpcodeI64LeU: sig(i64i64, i32),
	OpcodeI64GeS: sig(i64i64, i32), OpcodeI64GeU: sig(i64i64, i32),
	OpcodeF32Eq: sig(f32f32, i32), OpcodeF32Ne: sig(f32f32, i32),
	OpcodeF32Lt: sig(f32f32, i32), OpcodeF32Gt: sig(f32f32, i32),
	OpcodeF32Le: sig(f32f32, i32), OpcodeF32Ge: sig(f32f32, i32),
	OpcodeF64Eq: sig(f64f64, i32), OpcodeF64Ne: sig(f64f64, i32),
	OpcodeF64Lt: sig(f64f64, i32), OpcodeF64Gt: sig(f64f64, i32),
	OpcodeF64Le: sig(f64f64, i32), OpcodeF64Ge: sig(f64f64, i32),

	OpcodeI32Clz: sig(i32, i32), OpcodeI32Ctz: sig(i32, i32), OpcodeI32Popcnt: sig(i32, i32),
	OpcodeI32Add: sig(i32i32, i32), OpcodeI32Sub: sig(i32i32, i32), OpcodeI32Mul: sig(i32i32, i32),
	OpcodeI32DivS: sig(i32i32, i32), OpcodeI32DivU: sig(i32i32, i32),
	OpcodeI32RemS: sig(i32i32, i32), OpcodeI32RemU: sig(i32i32, i32),
	OpcodeI32And: sig(i32i32, i32), OpcodeI32Or: sig(i32i32, i32), OpcodeI32Xor: sig(i32i32, i32),
	OpcodeI32Shl: sig(i32i32, i32), OpcodeI32ShrS: sig(i32i32, i32), OpcodeI32ShrU: sig(i32i32, i32),
	OpcodeI32Rotl: sig(i32i32, i32), OpcodeI32Rotr: sig(i32i32, i32),

	OpcodeI64Clz: sig(i64, i64), OpcodeI64Ctz: sig(i64, i64), OpcodeI64Popcnt: sig(i64, i64),
	OpcodeI64Add: sig(i64i64, i64), OpcodeI64Sub: sig(i64i64, i64), OpcodeI64Mul: sig(i64i64, i64),
	OpcodeI64DivS: sig(i64i64, i64), OpcodeI64DivU: sig(i64i64, i64),
	OpcodeI64RemS: sig(i64i64, i64), OpcodeI64RemU: sig(i64i64, i64),
	OpcodeI64And: sig(i64i64, i64), OpcodeI64Or: sig(i64i64, i64), OpcodeI64Xor: sig(i64i64, i64),
	OpcodeI64Shl: sig(i64i64, i64), OpcodeI64ShrS: sig(i64i64, i64), OpcodeI64ShrU: sig(i64i64, i64),
	OpcodeI64Rotl: sig(i64i64, i64), OpcodeI64Rotr: sig(i64i64, i64),

	OpcodeF32Abs: sig(f32, f32), OpcodeF32Neg: sig(f32, f32), OpcodeF32Ceil: sig(f32, f32),
	OpcodeF32Floor: sig(f32, f32), OpcodeF32Trunc: sig(f32, f32), OpcodeF32Nearest: sig(f32, f32),
	OpcodeF32Sqrt: sig(f32, f32),
	OpcodeF32Add: sig(f32f32, f32), OpcodeF32Sub: sig(f32f32, f32), OpcodeF32Mul: sig(f32f32, f32),
	OpcodeF32Div: sig(f32f32, f32), OpcodeF32Min: sig(f32f32, f32), OpcodeF32Max: sig(f32f32, f32),
	OpcodeF32Copysign: sig(f32f32, f32),

	OpcodeF64Abs: sig(f64, f64), OpcodeF64Neg: sig(f64, f64), OpcodeF64Ceil: sig(f64, f64),
	OpcodeF64Floor: sig(f64, f64), OpcodeF64Trunc: sig(f64, f64), OpcodeF64Nearest: sig(f64, f64),
	OpcodeF64Sqrt: sig(f64, f64),
	OpcodeF64Add: sig(f64f64, f64), OpcodeF64Sub: sig(f64f64, f64), OpcodeF64Mul: sig(f64f64, f64),
	OpcodeF64Div: sig(f64f64, f64), OpcodeF64Min: sig(f64f64, f64), OpcodeF64Max: sig(f64f64, f64),
	OpcodeF64Copysign: sig(f64f64, f64),

	OpcodeI32WrapI64: sig(i64, i32),
	OpcodeI32TruncF32S: sig(f32, i32), OpcodeI32TruncF32U: sig(f32, i32),
	OpcodeI32TruncF64S: sig(f64, i32), OpcodeI32TruncF64U: sig(f64, i32),
	OpcodeI64ExtendI32S: sig(i32, i64), OpcodeI64ExtendI32U: sig(i32, i64),
	OpcodeI64TruncF32S: sig(f32, i64), OpcodeI64TruncF32U: sig(f32, i64),
	OpcodeI64TruncF64S: sig(f64, i64), OpcodeI64TruncF64U: sig(f64, i64),
	OpcodeF32ConvertI32S: sig(i32, f32), OpcodeF32ConvertI32U: sig(i32, f32),
	OpcodeF32ConvertI64S: sig(i64, f32), OpcodeF32ConvertI64U: sig(i64, f32),
	OpcodeF32DemoteF64: sig(f64, f32),
	OpcodeF64ConvertI32S: sig(i32, f64), OpcodeF64ConvertI32U: sig(i32, f64),
	OpcodeF64ConvertI64S: sig(i64, f64), OpcodeF64ConvertI64U: sig(i64, f64),
	OpcodeF64PromoteF32: sig(f32, f64),
	OpcodeI32ReinterpretF32: sig(f32, i32), OpcodeI64ReinterpretF64: sig(f64, i64),
	OpcodeF32ReinterpretI32: sig(i32, f32), OpcodeF64ReinterpretI64: sig(i64, f64),

	// FeatureSignExtensionOps.
	OpcodeI32Extend8S: sig(i32, i32), OpcodeI32Extend16S: sig(i32, i32),
	OpcodeI64Extend8S: sig(i64, i64), OpcodeI64Extend16S: sig(i64, i64), OpcodeI64Extend32S: sig(i64, i64),
}

// signExtensionOpcodes gates the opcodes added by FeatureSignExtensionOps.
var signExtensionOpcodes = map[Opcode]bool{
	OpcodeI32Extend8S: true, OpcodeI32Extend16S: true,
	OpcodeI64Extend8S: true, OpcodeI64Extend16S: true, OpcodeI64Extend32S: true,
}

func (v *funcValidator) validateSignatureOpcode(op Opcode) error {
	if t, ok := loadSignatures[op]; ok {
		if v.memory == nil {
			return fmt.Errorf("%s: unknown memory", opcodeName(op))
		}
		if err := v.readMemArg(); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		if err := v.popOperand(ValueTypeI32); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		v.pushOperand(t)
		return nil
	}
	if t, ok := storeSignatures[op]; ok {
		if v.memory == nil {
			return fmt.Errorf("%s: unknown memory", opcodeName(op))
		}
		if err := v.readMemArg(); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		if err := v.popOperand(t); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		if err := v.popOperand(ValueTypeI32); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		return nil
	}
	if s, ok := numericSignatures[op]; ok {
		if signExtensionOpcodes[op] && !v.enabledFeatures.Get(FeatureSignExtensionOps) {
			return fmt.Errorf("%s invalid as feature %s is disabled", opcodeName(op), featureName(FeatureSignExtensionOps))
		}
		if err := v.popOperands(s.pop); err != nil {
			return fmt.Errorf("%s: %w", opcodeName(op), err)
		}
		for _, p := range s.push {
			v.pushOperand(p)
		}
		return nil
	}
	return fmt.Errorf("invalid opcode: %#x", op)
}

// validateMiscInstruction validates the two-byte "misc" opcode space
// (FeatureNonTrappingFloatToIntConversion's saturating truncations and
// FeatureBulkMemoryOperations' bulk memory/table instructions).
func (v *funcValidator) validateMiscInstruction(sub Opcode) error {
	switch sub {
	case OpcodeMiscI32TruncSatF32S, OpcodeMiscI32TruncSatF32U:
		return v.requireFeature(FeatureNonTrappingFloatToIntConversion, sub, f32, ValueTypeI32)
	case OpcodeMiscI32TruncSatF64S, OpcodeMiscI32TruncSatF64U:
		return v.requireFeature(FeatureNonTrappingFloatToIntConversion, sub, f64, ValueTypeI32)
	case OpcodeMiscI64TruncSatF32S, OpcodeMiscI64TruncSatF32U:
		return v.requireFeature(FeatureNonTrappingFloatToIntConversion, sub, f32, ValueTypeI64)
	case OpcodeMiscI64TruncSatF64S, OpcodeMiscI64TruncSatF64U:
		return v.requireFeature(FeatureNonTrappingFloatToIntConversion, sub, f64, ValueTypeI64)
	case OpcodeMiscMemoryCopy:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("memory.copy invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		if v.memory == nil {
			return fmt.Errorf("memory.copy: unknown memory")
		}
		if _, err := v.r.ReadByte(); err != nil { // dst memory index, reserved zero
			return err
		}
		if _, err := v.r.ReadByte(); err != nil { // src memory index, reserved zero
			return err
		}
		return v.popOperands(i32i32, ValueTypeI32)
	case OpcodeMiscMemoryFill:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("memory.fill invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		if v.memory == nil {
			return fmt.Errorf("memory.fill: unknown memory")
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		return v.popOperands(i32i32, ValueTypeI32)
	case OpcodeMiscMemoryInit:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("memory.init invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		if _, _, err := leb128.DecodeUint32(v.r); err != nil {
			return err
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		return v.popOperands(i32i32, ValueTypeI32)
	case OpcodeMiscDataDrop:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("data.drop invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		_, _, err := leb128.DecodeUint32(v.r)
		return err
	case OpcodeMiscTableCopy:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("table.copy invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		return v.popOperands(i32i32, ValueTypeI32)
	case OpcodeMiscTableInit:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("table.init invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		if _, _, err := leb128.DecodeUint32(v.r); err != nil {
			return err
		}
		if _, err := v.r.ReadByte(); err != nil {
			return err
		}
		return v.popOperands(i32i32, ValueTypeI32)
	case OpcodeMiscElemDrop:
		if !v.enabledFeatures.Get(FeatureBulkMemoryOperations) {
			return fmt.Errorf("elem.drop invalid as feature %s is disabled", featureName(FeatureBulkMemoryOperations))
		}
		_, _, err := leb128.DecodeUint32(v.r)
		return err
	}
	return fmt.Errorf("invalid misc opcode: %#x", sub)
}

func (v *funcValidator) requireFeature(feature Features, op Opcode, pop []ValueType, push ValueType) error {
	if !v.enabledFeatures.Get(feature) {
		return fmt.Errorf("misc opcode %#x invalid as feature %s is disabled", op, featureName(feature))
	}
	if err := v.popOperands(pop); err != nil {
		return err
	}
	v.pushOperand(push)
	return nil
}

func (v *funcValidator) popOperands(types []ValueType, alsoExpect ...ValueType) error {
	for i := len(types) - 1; i >= 0; i-- {
		if err := v.popOperand(types[i]); err != nil {
			return err
		}
	}
	for i := len(alsoExpect) - 1; i >= 0; i-- {
		if err := v.popOperand(alsoExpect[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *funcValidator) pushOperand(t ValueType) {
	v.opStack = append(v.opStack, t)
	if len(v.opStack) > v.peakStackSize {
		v.peakStackSize = len(v.opStack)
	}
}

func (v *funcValidator) pushOperands(types []ValueType) {
	for _, t := range types {
		v.pushOperand(t)
	}
}

func (v *funcValidator) popAnyOperand() error {
	_, err := v.popAnyOperandType()
	return err
}

func (v *funcValidator) popAnyOperandType() (ValueType, error) {
	top := &v.ctrlStack[len(v.ctrlStack)-1]
	if len(v.opStack) == top.height {
		if top.unreachable {
			return valUnknown, nil
		}
		return 0, fmt.Errorf("expected an operand, but the stack was empty")
	}
	t := v.opStack[len(v.opStack)-1]
	v.opStack = v.opStack[:len(v.opStack)-1]
	return t, nil
}

func (v *funcValidator) popOperand(expected ValueType) error {
	actual, err := v.popAnyOperandType()
	if err != nil {
		return err
	}
	if actual == valUnknown || expected == valUnknown {
		return nil
	}
	if actual != expected {
		return fmt.Errorf("type mismatch: expected %s, but was %s", ValueTypeName(expected), ValueTypeName(actual))
	}
	return nil
}

func (v *funcValidator) pushCtrl(opcode Opcode, startTypes, endTypes []ValueType) {
	v.ctrlStack = append(v.ctrlStack, ctrlFrame{
		opcode:     opcode,
		startTypes: startTypes,
		endTypes:   endTypes,
		height:     len(v.opStack),
	})
}

// popCtrlKeepingFrame pops the current control frame's operand types
// (verifying its end types were produced) without removing the frame
// itself, for use by OpcodeElse which reuses the if-frame.
func (v *funcValidator) popCtrlKeepingFrame() (ctrlFrame, error) {
	if len(v.ctrlStack) == 0 {
		return ctrlFrame{}, fmt.Errorf("control stack is empty")
	}
	top := v.ctrlStack[len(v.ctrlStack)-1]
	if err := v.popOperands(top.endTypes); err != nil {
		return ctrlFrame{}, err
	}
	if len(v.opStack) != top.height {
		return ctrlFrame{}, fmt.Errorf("type mismatch: values remaining on stack at end of block")
	}
	return top, nil
}

func (v *funcValidator) popCtrl() (ctrlFrame, error) {
	top, err := v.popCtrlKeepingFrame()
	if err != nil {
		return ctrlFrame{}, err
	}
	v.ctrlStack = v.ctrlStack[:len(v.ctrlStack)-1]
	return top, nil
}

func (v *funcValidator) unreachable() {
	top := &v.ctrlStack[len(v.ctrlStack)-1]
	v.opStack = v.opStack[:top.height]
	top.unreachable = true
}

// labelTypes returns the operand types a branch to the n-th enclosing
// label (0 being the innermost) must supply: a loop's label types are its
// start types (the loop re-enters at the top); every other label's are
// its end types (the block, if, or function exits).
func (v *funcValidator) labelTypes(n uint32) []ValueType {
	frame := v.ctrlStack[len(v.ctrlStack)-1-int(n)]
	if frame.opcode == OpcodeLoop {
		return frame.startTypes
	}
	return frame.endTypes
}

func (v *funcValidator) checkBranch(n uint32) error {
	if n >= uint32(len(v.ctrlStack)) {
		return fmt.Errorf("branch depth %d exceeds enclosing block count %d", n, len(v.ctrlStack))
	}
	types := v.labelTypes(n)
	saved := append([]ValueType(nil), v.opStack...)
	err := v.popOperands(types)
	v.opStack = saved
	return err
}

func (v *funcValidator) readLabelIndex() (uint32, error) {
	n, _, err := leb128.DecodeUint32(v.r)
	if err != nil {
		return 0, fmt.Errorf("label operand: %w", err)
	}
	return n, nil
}

// readBlockType decodes a block's signature immediate: 0x40 for empty,
// one of the four value-type bytes for a single result, or a non-negative
// SLEB128 value for a type-section index (FeatureMultiValue).
func (v *funcValidator) readBlockType() (blockSignature, error) {
	b, err := v.r.ReadByte()
	if err != nil {
		return blockSignature{}, fmt.Errorf("block type: %w", err)
	}
	switch b {
	case 0x40:
		return blockSignature{kind: 0}, nil
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeFuncref:
		return blockSignature{kind: 1, valueType: b}, nil
	}
	if err := v.r.UnreadByte(); err != nil {
		return blockSignature{}, err
	}
	n, _, err := leb128.DecodeInt64(v.r)
	if err != nil {
		return blockSignature{}, fmt.Errorf("block type index: %w", err)
	}
	if n < 0 {
		return blockSignature{}, fmt.Errorf("invalid block type: %d", n)
	}
	return blockSignature{kind: 2, typeIndex: Index(n)}, nil
}

func (v *funcValidator) blockSignature(bt blockSignature) (params, results []ValueType, err error) {
	switch bt.kind {
	case 0:
		return nil, nil, nil
	case 1:
		return nil, []ValueType{bt.valueType}, nil
	default:
		if int(bt.typeIndex) >= len(v.types) {
			return nil, nil, fmt.Errorf("block type index out of range: %d", bt.typeIndex)
		}
		ft := v.types[bt.typeIndex]
		return ft.Params, ft.Results, nil
	}
}

// opcodeName returns a human-readable instruction name for error messages.
// It is not exhaustive: opcodes validated through the table-driven paths
// above are named there; this covers the remaining control/variable/
// parametric/memory-management instructions.
func opcodeName(op Opcode) string {
	switch op {
	case OpcodeUnreachable:
		return "unreachable"
	case OpcodeNop:
		return "nop"
	case OpcodeBlock:
		return "block"
	case OpcodeLoop:
		return "loop"
	case OpcodeIf:
		return "if"
	case OpcodeElse:
		return "else"
	case OpcodeEnd:
		return "end"
	case OpcodeBr:
		return "br"
	case OpcodeBrIf:
		return "br_if"
	case OpcodeBrTable:
		return "br_table"
	case OpcodeReturn:
		return "return"
	case OpcodeCall:
		return "call"
	case OpcodeCallIndirect:
		return "call_indirect"
	case OpcodeDrop:
		return "drop"
	case OpcodeSelect:
		return "select"
	case OpcodeLocalGet:
		return "local.get"
	case OpcodeLocalSet:
		return "local.set"
	case OpcodeLocalTee:
		return "local.tee"
	case OpcodeGlobalGet:
		return "global.get"
	case OpcodeGlobalSet:
		return "global.set"
	case OpcodeMemorySize:
		return "memory.size"
	case OpcodeMemoryGrow:
		return "memory.grow"
	}
	if name, ok := loadOpcodeNames[op]; ok {
		return name
	}
	if name, ok := storeOpcodeNames[op]; ok {
		return name
	}
	if name, ok := numericOpcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode %#x", op)
}
