package text

import (
	"fmt"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// onFunc is invoked once a "(func ...)" form has been fully parsed. pending
// lists the call-by-$name fixups still outstanding in code.Body, to be
// resolved once the whole module's function namespace is known.
type onFunc func(name string, typeIdx wasm.Index, code *wasm.Code, pending []unresolvedIndex) error

// funcParser drives the token-level state machine for a single
// "(func $name? (param ...)* (result ...)* (local ...)* instr*)" form. It is
// constructed once per func and its begin field is the tokenParser the
// module parser resumes lexing with immediately after the opening "(func".
type funcParser struct {
	enabledFeatures wasm.Features
	typeUse         *typeUseParser
	funcNamespace   *indexNamespace // the module's function index space, for call resolution
	globalNamespace *indexNamespace // the module's global index space, for global.get/set resolution
	onFunc          onFunc

	begin tokenParser

	name       string
	locals     []wasm.ValueType
	localNames map[string]wasm.Index
	body       []byte
	unresolved []unresolvedIndex
}

// newFuncParser constructs a funcParser ready to resume lexing right after
// the "(func" tokens have been consumed by the caller.
func newFuncParser(enabledFeatures wasm.Features, typeUse *typeUseParser, funcNamespace, globalNamespace *indexNamespace, onFunc onFunc) *funcParser {
	p := &funcParser{
		enabledFeatures: enabledFeatures,
		typeUse:         typeUse,
		funcNamespace:   funcNamespace,
		globalNamespace: globalNamespace,
		onFunc:          onFunc,
		localNames:      map[string]wasm.Index{},
	}
	p.begin = p.parseNameOrHeader
	return p
}

func (p *funcParser) parseErr(line, col int, format string, args ...interface{}) error {
	return wrapError(line, col, fmt.Errorf(format, args...))
}

func (p *funcParser) parseNameOrHeader(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	if tok == tokenID {
		p.name = string(b)
		return p.header, nil
	}
	return p.header(tok, b, line, col)
}

// header consumes "(param ...)", "(result ...)" and "(local ...)" groups in
// any order preceding the instruction list, then hands off to the body once
// an instruction keyword or the closing ")" of the func is seen.
func (p *funcParser) header(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	switch tok {
	case tokenOpen:
		return p.headerGroupKeyword, nil
	case tokenClose:
		return nil, p.finish()
	case tokenKeyword:
		return p.instr(tok, b, line, col)
	}
	return nil, p.parseErr(line, col, "unexpected token in function header: %s", b)
}

func (p *funcParser) headerGroupKeyword(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	if tok != tokenKeyword {
		return nil, p.parseErr(line, col, "expected param, result, or local, got %s", b)
	}
	switch string(b) {
	case "param":
		return p.paramGroup, nil
	case "result":
		return p.resultGroup, nil
	case "local":
		return p.localGroup, nil
	}
	if isKnownInstruction(string(b)) {
		return nil, p.parseErr(line, col, "folded instructions are not supported")
	}
	return nil, p.parseErr(line, col, "expected param, result, or local, got %s", b)
}

func (p *funcParser) paramGroup(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	switch tok {
	case tokenClose:
		return p.header, nil
	case tokenID:
		// A named param must be immediately followed by exactly one type.
		// Locals index space numbers params first, so the name is bound
		// to the count of params seen so far.
		p.localNames[string(b)] = wasm.Index(len(p.typeUse.params))
		return p.namedParamType, nil
	case tokenKeyword:
		vt, err := parseValueType(b)
		if err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		if err := p.typeUse.addParam(vt); err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		return p.paramGroup, nil
	}
	return nil, p.parseErr(line, col, "unexpected token in param list: %s", b)
}

func (p *funcParser) namedParamType(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	if tok != tokenKeyword {
		return nil, p.parseErr(line, col, "expected a value type after named param, got %s", b)
	}
	vt, err := parseValueType(b)
	if err != nil {
		return nil, p.parseErr(line, col, "%v", err)
	}
	if err := p.typeUse.addParam(vt); err != nil {
		return nil, p.parseErr(line, col, "%v", err)
	}
	// A named param holds exactly one type, so the very next token closes
	// the whole group (there is no extra nesting).
	return p.closeGroup(p.header), nil
}

func (p *funcParser) resultGroup(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	switch tok {
	case tokenClose:
		return p.header, nil
	case tokenKeyword:
		vt, err := parseValueType(b)
		if err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		if !p.enabledFeatures.Get(wasm.FeatureMultiValue) && (len(p.typeUse.results) > 0 || p.typeUse.sawResult) {
			return nil, p.parseErr(line, col, "at most one result allowed: multi-value is disabled")
		}
		if err := p.typeUse.addResult(vt); err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		return p.resultGroup, nil
	}
	return nil, p.parseErr(line, col, "unexpected token in result list: %s", b)
}

func (p *funcParser) localGroup(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	switch tok {
	case tokenClose:
		return p.header, nil
	case tokenID:
		// Locals index space continues after params.
		p.localNames[string(b)] = wasm.Index(len(p.typeUse.params) + len(p.locals))
		return p.namedLocalType, nil
	case tokenKeyword:
		vt, err := parseValueType(b)
		if err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		p.locals = append(p.locals, vt)
		return p.localGroup, nil
	}
	return nil, p.parseErr(line, col, "unexpected token in local list: %s", b)
}

func (p *funcParser) namedLocalType(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	if tok != tokenKeyword {
		return nil, p.parseErr(line, col, "expected a value type after named local, got %s", b)
	}
	vt, err := parseValueType(b)
	if err != nil {
		return nil, p.parseErr(line, col, "%v", err)
	}
	p.locals = append(p.locals, vt)
	// A named local holds exactly one type, so the very next token closes
	// the whole group.
	return p.closeGroup(p.header), nil
}

// closeGroup expects exactly one ")" before resuming next.
func (p *funcParser) closeGroup(next tokenParser) tokenParser {
	return func(tok tokenType, b []byte, line, col int) (tokenParser, error) {
		if tok != tokenClose {
			return nil, p.parseErr(line, col, "expected ) to close named param/local, got %s", b)
		}
		return next, nil
	}
}

// instr dispatches on the current keyword token to decide how to encode one
// instruction and continue lexing the rest of the instruction list.
func (p *funcParser) instr(tok tokenType, b []byte, line, col int) (tokenParser, error) {
	switch tok {
	case tokenOpen:
		return nil, p.parseErr(line, col, "folded instructions are not supported")
	case tokenClose:
		return nil, p.finish()
	case tokenKeyword:
		return p.dispatchInstr(string(b), line, col)
	}
	return nil, p.parseErr(line, col, "unexpected token in function body: %s", b)
}

func (p *funcParser) dispatchInstr(name string, line, col int) (tokenParser, error) {
	if op, ok := plainOpcodes[name]; ok {
		p.body = append(p.body, op)
		return p.instr, nil
	}
	if gated, ok := featureGatedOpcodes[name]; ok {
		if !p.enabledFeatures.Get(gated.feature) {
			return nil, p.parseErr(line, col, "instruction %s requires a disabled feature", name)
		}
		p.body = append(p.body, gated.opcode)
		return p.instr, nil
	}
	if op, ok := indexOpcodes[name]; ok {
		p.body = append(p.body, op)
		switch name {
		case "local.get", "local.set", "local.tee":
			return p.operandLocal(name), nil
		case "global.get", "global.set":
			return p.operandDeferred(fixupGlobal), nil
		case "call":
			return p.operandDeferred(fixupFunc), nil
		}
	}
	if op, ok := constOpcodes[name]; ok {
		p.body = append(p.body, op)
		return p.operandConst(op), nil
	}
	return nil, p.parseErr(line, col, "unsupported instruction: %s", name)
}

// operandLocal reads the index operand of a local.get/set/tee. Locals are
// always fully declared before the first instruction, so a "$name" local
// reference resolves immediately rather than being deferred.
func (p *funcParser) operandLocal(mnemonic string) tokenParser {
	return func(tok tokenType, b []byte, line, col int) (tokenParser, error) {
		switch tok {
		case tokenUint:
			idx, err := parseUint32(b)
			if err != nil {
				return nil, p.parseErr(line, col, "%v", err)
			}
			p.body = append(p.body, leb128Uint(idx)...)
			return p.instr, nil
		case tokenID:
			idx, ok := p.localNames[string(b)]
			if !ok {
				return nil, p.parseErr(line, col, "unknown local identifier: %s", b)
			}
			p.body = append(p.body, leb128Uint(idx)...)
			return p.instr, nil
		}
		return nil, p.parseErr(line, col, "%s: expected an index or $name, got %s", mnemonic, b)
	}
}

// operandDeferred reads the index operand of a call or global.get/set,
// either a literal integer (recorded for a later bounds check) or a
// "$name" reference that cannot resolve until the whole module's
// namespaces are known (deferred fixup model).
func (p *funcParser) operandDeferred(kind fixupKind) tokenParser {
	return func(tok tokenType, b []byte, line, col int) (tokenParser, error) {
		switch tok {
		case tokenUint:
			idx, err := parseUint32(b)
			if err != nil {
				return nil, p.parseErr(line, col, "%v", err)
			}
			p.body = append(p.body, leb128Uint(idx)...)
			p.unresolved = append(p.unresolved, unresolvedIndex{kind: kind, bodyOffset: -1, targetIdx: idx, line: line, col: col})
			return p.instr, nil
		case tokenID:
			// Reserve a fixed-width 5-byte slot now; the byte offset is
			// fixed up once the whole module's namespaces are known and the
			// name resolves to a concrete index.
			offset := len(p.body)
			placeholder := leb128Uint32Fixed5(0)
			p.body = append(p.body, placeholder[:]...)
			p.unresolved = append(p.unresolved, unresolvedIndex{
				kind: kind, bodyOffset: offset, targetID: string(b), line: line, col: col,
			})
			return p.instr, nil
		}
		return nil, p.parseErr(line, col, "expected an index or $name, got %s", b)
	}
}

func (p *funcParser) operandConst(op wasm.Opcode) tokenParser {
	return func(tok tokenType, b []byte, line, col int) (tokenParser, error) {
		if tok != tokenUint {
			return nil, p.parseErr(line, col, "expected an integer literal, got %s", b)
		}
		v, err := parseInt64(b)
		if err != nil {
			return nil, p.parseErr(line, col, "%v", err)
		}
		if op == wasm.OpcodeI32Const {
			p.body = append(p.body, leb128Int32(int32(v))...)
		} else {
			p.body = append(p.body, leb128Int64(v)...)
		}
		return p.instr, nil
	}
}

func (p *funcParser) finish() error {
	p.body = append(p.body, wasm.OpcodeEnd)
	typeIdx := p.typeUse.resolve()
	if _, err := p.funcNamespace.setID([]byte(p.name)); err != nil {
		return err
	}
	code := &wasm.Code{LocalTypes: p.locals, Body: p.body}
	return p.onFunc(p.name, typeIdx, code, p.unresolved)
}
