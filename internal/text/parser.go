package text

import (
	"fmt"
	"sort"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// token is one lexed unit, captured for the module-level recursive-descent
// parser to index into directly rather than re-driving lex byte by byte.
type token struct {
	typ       tokenType
	bytes     []byte
	line, col int
}

func tokenize(source []byte) ([]token, error) {
	var toks []token
	var collector tokenParser
	collector = func(tok tokenType, b []byte, line, col int) (tokenParser, error) {
		toks = append(toks, token{tok, b, line, col})
		return collector, nil
	}
	_, _, err := lex(collector, source)
	return toks, err
}

// runTokenParser drives a CPS tokenParser (such as a funcParser's begin
// state) from a pre-lexed token slice, returning the index immediately
// after the token that terminated it.
func runTokenParser(begin tokenParser, toks []token, start int) (int, error) {
	next := begin
	i := start
	for ; i < len(toks); i++ {
		t := toks[i]
		var err error
		next, err = next(t.typ, t.bytes, t.line, t.col)
		if err != nil {
			return i, err
		}
		if next == nil {
			return i + 1, nil
		}
	}
	return i, fmt.Errorf("unexpected end of input")
}

// fieldSpan is the token range [start, end] of one top-level "(keyword ...)"
// form inside a module, end being the index of its closing ")".
type fieldSpan struct {
	keyword    string
	start, end int
}

func splitFields(toks []token, from, to int) ([]fieldSpan, error) {
	var fields []fieldSpan
	i := from
	for i < to {
		if toks[i].typ != tokenOpen {
			return nil, wrapError(toks[i].line, toks[i].col, fmt.Errorf("expected a module field, got %s", toks[i].bytes))
		}
		start := i
		depth := 1
		i++
		var keyword string
		if i < to && toks[i].typ == tokenKeyword {
			keyword = string(toks[i].bytes)
		}
		for depth > 0 {
			if i >= to {
				return nil, fmt.Errorf("unterminated module field starting at %d:%d", toks[start].line, toks[start].col)
			}
			switch toks[i].typ {
			case tokenOpen:
				depth++
			case tokenClose:
				depth--
			}
			i++
		}
		fields = append(fields, fieldSpan{keyword: keyword, start: start, end: i})
	}
	return fields, nil
}

// ParseModule parses the textual S-expression format into the same Module
// IR the binary decoder produces. Folded instructions are not supported;
// every instruction must be written unnested.
func ParseModule(source []byte, enabledFeatures wasm.Features) (*wasm.Module, error) {
	toks, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	if len(toks) < 2 || toks[0].typ != tokenOpen || string(toks[1].bytes) != "module" {
		return nil, fmt.Errorf("expected a top-level (module ...) form")
	}
	i := 2
	m := &wasm.Module{}
	if i < len(toks) && toks[i].typ == tokenID {
		m.Name = string(toks[i].bytes)
		i++
	}
	if len(toks) == 0 || toks[len(toks)-1].typ != tokenClose {
		return nil, fmt.Errorf("expected ) to close module")
	}
	fields, err := splitFields(toks, i, len(toks)-1)
	if err != nil {
		return nil, err
	}

	funcNamespace := newIndexNamespace()
	globalNamespace := newIndexNamespace()

	// Pass 1: imports must occupy the low end of each index space, so they
	// are registered before any locally defined function, table, memory, or
	// global regardless of their position in the source text.
	for _, f := range fields {
		if f.keyword == "import" {
			if err := parseImport(m, toks, f, funcNamespace, globalNamespace); err != nil {
				return nil, err
			}
		}
	}

	type pendingFunc struct {
		code    *wasm.Code
		pending []unresolvedIndex
	}
	var pendingFuncs []pendingFunc

	// Pass 2: everything else, in source order.
	for _, f := range fields {
		switch f.keyword {
		case "import":
			continue
		case "func":
			typeUse := newTypeUseParser(m)
			var collected pendingFunc
			fp := newFuncParser(enabledFeatures, typeUse, funcNamespace, globalNamespace, func(name string, typeIdx wasm.Index, code *wasm.Code, pending []unresolvedIndex) error {
				m.FunctionSection = append(m.FunctionSection, typeIdx)
				collected = pendingFunc{code: code, pending: pending}
				return nil
			})
			if _, err := runTokenParser(fp.begin, toks, f.start+2); err != nil {
				return nil, err
			}
			m.CodeSection = append(m.CodeSection, collected.code)
			pendingFuncs = append(pendingFuncs, collected)
		case "type":
			if err := parseType(m, toks, f); err != nil {
				return nil, err
			}
		case "export":
			if err := parseExport(m, toks, f, funcNamespace, globalNamespace); err != nil {
				return nil, err
			}
		case "memory":
			if err := parseMemory(m, toks, f); err != nil {
				return nil, err
			}
		case "table":
			if err := parseTable(m, toks, f); err != nil {
				return nil, err
			}
		case "global":
			if err := parseGlobal(m, toks, f, globalNamespace); err != nil {
				return nil, err
			}
		case "start":
			if err := parseStart(m, toks, f, funcNamespace); err != nil {
				return nil, err
			}
		default:
			return nil, wrapError(toks[f.start].line, toks[f.start].col, fmt.Errorf("unsupported module field: %s", f.keyword))
		}
	}

	// Resolve deferred "$name" (and bounds-check numeric) fixups against the
	// now-complete function and global namespaces (deferred
	// fixup model): calls may forward-reference functions declared later in
	// the module, and global.get/set may forward-reference globals. Each
	// resolved name is spliced in at its minimal LEB128 width, replacing
	// the fixed 5-byte placeholder reserved for it while the name was
	// still unknown.
	for _, pf := range pendingFuncs {
		type splice struct {
			offset int
			value  []byte
		}
		var splices []splice
		for _, u := range pf.pending {
			ns := funcNamespace
			kindName := "function"
			if u.kind == fixupGlobal {
				ns, kindName = globalNamespace, "global"
			}

			if u.targetID == "" {
				if u.targetIdx >= ns.count() {
					return nil, wrapError(u.line, u.col, fmt.Errorf("%s index %d out of range", kindName, u.targetIdx))
				}
				continue
			}
			idx, ok := ns.resolve(u.targetID)
			if !ok {
				return nil, wrapError(u.line, u.col, fmt.Errorf("unknown %s identifier: $%s", kindName, u.targetID))
			}
			splices = append(splices, splice{offset: u.bodyOffset, value: leb128Uint(idx)})
		}
		if len(splices) == 0 {
			continue
		}
		sort.Slice(splices, func(i, j int) bool { return splices[i].offset < splices[j].offset })
		var body []byte
		pos := 0
		for _, s := range splices {
			body = append(body, pf.code.Body[pos:s.offset]...)
			body = append(body, s.value...)
			pos = s.offset + 5 // width of the reserved placeholder
		}
		body = append(body, pf.code.Body[pos:]...)
		pf.code.Body = body
	}

	return m, nil
}
