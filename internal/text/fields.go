package text

import (
	"fmt"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// unquote strips the surrounding quotes from a tokenString and resolves its
// backslash escapes: string literals use \n \t \\ \" and \XX hex-byte
// escapes.
func unquote(b []byte) (string, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return "", fmt.Errorf("malformed string literal: %s", b)
	}
	in := b[1 : len(b)-1]
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '\\' || i+1 >= len(in) {
			out = append(out, in[i])
			continue
		}
		i++
		switch in[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '\\', '"', '\'':
			out = append(out, in[i])
		default:
			if i+1 < len(in) && isHexDigit(in[i]) && isHexDigit(in[i+1]) {
				out = append(out, hexByte(in[i], in[i+1]))
				i++
				continue
			}
			return "", fmt.Errorf("invalid escape sequence in string literal: %s", b)
		}
	}
	return string(out), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func hexByte(hi, lo byte) byte { return hexVal(hi)<<4 | hexVal(lo) }

// parseTypeUseGroups consumes zero or more "(param ...)"/"(result ...)"
// groups starting at toks[i], returning the index just past the last one
// consumed.
func parseTypeUseGroups(m *wasm.Module, typeUse *typeUseParser, toks []token, i int) (int, error) {
	for i < len(toks) && toks[i].typ == tokenOpen {
		if toks[i+1].typ != tokenKeyword {
			return i, fmt.Errorf("expected param or result, got %s", toks[i+1].bytes)
		}
		kw := string(toks[i+1].bytes)
		if kw != "param" && kw != "result" {
			return i, nil
		}
		i += 2
		for toks[i].typ != tokenClose {
			if toks[i].typ == tokenID {
				i++ // named param identifier; its type follows
				continue
			}
			vt, err := parseValueType(toks[i].bytes)
			if err != nil {
				return i, err
			}
			if kw == "param" {
				if err := typeUse.addParam(vt); err != nil {
					return i, err
				}
			} else {
				if err := typeUse.addResult(vt); err != nil {
					return i, err
				}
			}
			i++
		}
		i++ // consume the group's ")"
	}
	return i, nil
}

func parseImport(m *wasm.Module, toks []token, f fieldSpan, funcNS, globalNS *indexNamespace) error {
	i := f.start + 2
	modName, err := unquote(toks[i].bytes)
	if err != nil {
		return err
	}
	i++
	name, err := unquote(toks[i].bytes)
	if err != nil {
		return err
	}
	i++
	if toks[i].typ != tokenOpen {
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected an import descriptor"))
	}
	i++
	kind := string(toks[i].bytes)
	i++

	im := &wasm.Import{Module: modName, Name: name}
	switch kind {
	case "func":
		im.Type = wasm.ExternTypeFunc
		var id []byte
		if toks[i].typ == tokenID {
			id = toks[i].bytes
			i++
		}
		typeUse := newTypeUseParser(m)
		var perr error
		i, perr = parseTypeUseGroups(m, typeUse, toks, i)
		if perr != nil {
			return perr
		}
		im.DescFunc = typeUse.resolve()
		if _, err := funcNS.setID(id); err != nil {
			return err
		}
	case "memory":
		min, err := parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
		i++
		mem := &wasm.Memory{Min: min}
		if toks[i].typ == tokenUint {
			max, err := parseUint32(toks[i].bytes)
			if err != nil {
				return err
			}
			mem.Max, mem.IsMaxEncoded = max, true
			i++
		}
		im.DescMem = mem
	case "table":
		min, err := parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
		i++
		tbl := &wasm.Table{Min: min}
		if toks[i].typ == tokenUint {
			max, err := parseUint32(toks[i].bytes)
			if err != nil {
				return err
			}
			tbl.Max = &max
			i++
		}
		i++ // funcref/anyfunc keyword
		im.DescTable = tbl
	case "global":
		mutable := false
		var vt wasm.ValueType
		if toks[i].typ == tokenOpen {
			i += 2 // "(" "mut"
			var err error
			vt, err = parseValueType(toks[i].bytes)
			if err != nil {
				return err
			}
			i += 2 // type, ")"
			mutable = true
		} else {
			var err error
			vt, err = parseValueType(toks[i].bytes)
			if err != nil {
				return err
			}
			i++
		}
		im.DescGlobal = &wasm.GlobalType{ValType: vt, Mutable: mutable}
		if _, err := globalNS.setID(nil); err != nil {
			return err
		}
	default:
		return wrapError(toks[i-1].line, toks[i-1].col, fmt.Errorf("unsupported import kind: %s", kind))
	}
	m.ImportSection = append(m.ImportSection, im)
	return nil
}

func parseType(m *wasm.Module, toks []token, f fieldSpan) error {
	i := f.start + 2
	if toks[i].typ == tokenID {
		i++
	}
	if toks[i].typ != tokenOpen || string(toks[i+1].bytes) != "func" {
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected (func ...) in type definition"))
	}
	i += 2
	typeUse := newTypeUseParser(m)
	var err error
	i, err = parseTypeUseGroups(m, typeUse, toks, i)
	if err != nil {
		return err
	}
	m.TypeSection = append(m.TypeSection, &wasm.FunctionType{Params: typeUse.params, Results: typeUse.results})
	return nil
}

func parseExport(m *wasm.Module, toks []token, f fieldSpan, funcNS, globalNS *indexNamespace) error {
	i := f.start + 2
	name, err := unquote(toks[i].bytes)
	if err != nil {
		return err
	}
	i++
	if toks[i].typ != tokenOpen {
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected an export descriptor"))
	}
	i++
	kindKw := string(toks[i].bytes)
	i++

	var kind wasm.ExternType
	var ns *indexNamespace
	switch kindKw {
	case "func":
		kind, ns = wasm.ExternTypeFunc, funcNS
	case "global":
		kind, ns = wasm.ExternTypeGlobal, globalNS
	case "memory":
		kind = wasm.ExternTypeMemory
	case "table":
		kind = wasm.ExternTypeTable
	default:
		return wrapError(toks[i-1].line, toks[i-1].col, fmt.Errorf("unsupported export kind: %s", kindKw))
	}

	var idx wasm.Index
	switch toks[i].typ {
	case tokenUint:
		idx, err = parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
	case tokenID:
		if ns == nil {
			return wrapError(toks[i].line, toks[i].col, fmt.Errorf("%s export cannot be referenced by name", kindKw))
		}
		resolved, ok := ns.resolve(string(toks[i].bytes))
		if !ok {
			return wrapError(toks[i].line, toks[i].col, fmt.Errorf("unknown identifier: %s", toks[i].bytes))
		}
		idx = resolved
	default:
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected an index or $name in export"))
	}

	if m.ExportSection == nil {
		m.ExportSection = map[string]*wasm.Export{}
	}
	if _, dup := m.ExportSection[name]; dup {
		return fmt.Errorf("duplicate export name: %s", name)
	}
	m.ExportSection[name] = &wasm.Export{Name: name, Type: kind, Index: idx}
	return nil
}

func parseMemory(m *wasm.Module, toks []token, f fieldSpan) error {
	i := f.start + 2
	min, err := parseUint32(toks[i].bytes)
	if err != nil {
		return err
	}
	i++
	mem := &wasm.Memory{Min: min}
	if i < f.end && toks[i].typ == tokenUint {
		max, err := parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
		mem.Max, mem.IsMaxEncoded = max, true
	}
	m.MemorySection = mem
	return nil
}

func parseTable(m *wasm.Module, toks []token, f fieldSpan) error {
	i := f.start + 2
	min, err := parseUint32(toks[i].bytes)
	if err != nil {
		return err
	}
	i++
	tbl := &wasm.Table{Min: min}
	if toks[i].typ == tokenUint {
		max, err := parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
		tbl.Max = &max
	}
	m.TableSection = tbl
	return nil
}

func parseGlobal(m *wasm.Module, toks []token, f fieldSpan, globalNS *indexNamespace) error {
	i := f.start + 2
	var id []byte
	if toks[i].typ == tokenID {
		id = toks[i].bytes
		i++
	}
	mutable := false
	var vt wasm.ValueType
	var err error
	if toks[i].typ == tokenOpen {
		i += 2 // "(" "mut"
		vt, err = parseValueType(toks[i].bytes)
		if err != nil {
			return err
		}
		i += 2 // type, ")"
		mutable = true
	} else {
		vt, err = parseValueType(toks[i].bytes)
		if err != nil {
			return err
		}
		i++
	}

	if toks[i].typ != tokenOpen {
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected a constant initializer expression"))
	}
	i++
	op := string(toks[i].bytes)
	i++

	var ce *wasm.ConstantExpression
	switch op {
	case "i32.const":
		v, err := parseInt64(toks[i].bytes)
		if err != nil {
			return err
		}
		ce = &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128Int32(int32(v))}
		i++
	case "i64.const":
		v, err := parseInt64(toks[i].bytes)
		if err != nil {
			return err
		}
		ce = &wasm.ConstantExpression{Opcode: wasm.OpcodeI64Const, Data: leb128Int64(v)}
		i++
	case "global.get":
		var idx wasm.Index
		if toks[i].typ == tokenUint {
			idx, err = parseUint32(toks[i].bytes)
			if err != nil {
				return err
			}
		} else {
			resolved, ok := globalNS.resolve(string(toks[i].bytes))
			if !ok {
				return wrapError(toks[i].line, toks[i].col, fmt.Errorf("unknown global identifier: %s", toks[i].bytes))
			}
			idx = resolved
		}
		ce = &wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: leb128Uint(idx)}
		i++
	default:
		return wrapError(toks[i-1].line, toks[i-1].col, fmt.Errorf("unsupported global initializer: %s", op))
	}

	if _, err := globalNS.setID(id); err != nil {
		return err
	}
	m.GlobalSection = append(m.GlobalSection, &wasm.Global{Type: &wasm.GlobalType{ValType: vt, Mutable: mutable}, Init: ce})
	return nil
}

func parseStart(m *wasm.Module, toks []token, f fieldSpan, funcNS *indexNamespace) error {
	i := f.start + 2
	var idx wasm.Index
	switch toks[i].typ {
	case tokenUint:
		v, err := parseUint32(toks[i].bytes)
		if err != nil {
			return err
		}
		idx = v
	case tokenID:
		resolved, ok := funcNS.resolve(string(toks[i].bytes))
		if !ok {
			return wrapError(toks[i].line, toks[i].col, fmt.Errorf("unknown function identifier: %s", toks[i].bytes))
		}
		idx = resolved
	default:
		return wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected a function index or $name in start"))
	}
	m.StartSection = &idx
	return nil
}
