package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

func decodeTypeSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("type count: %w", err)
	}
	m.TypeSection = make([]*wasm.FunctionType, count)
	for i := range m.TypeSection {
		form, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("type[%d]: %w", i, err)
		}
		if form != 0x60 {
			return fmt.Errorf("type[%d]: invalid form: %#x", i, form)
		}
		ft := &wasm.FunctionType{}
		if ft.Params, err = readValueTypeVec(r); err != nil {
			return fmt.Errorf("type[%d] params: %w", i, err)
		}
		if ft.Results, err = readValueTypeVec(r); err != nil {
			return fmt.Errorf("type[%d] results: %w", i, err)
		}
		m.TypeSection[i] = ft
	}
	return nil
}

func readValueTypeVec(r *bytes.Reader) ([]wasm.ValueType, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	vs := make([]wasm.ValueType, n)
	for i := range vs {
		if vs[i], err = readValueType(r); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func decodeImportSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("import count: %w", err)
	}
	m.ImportSection = make([]*wasm.Import, count)
	for i := range m.ImportSection {
		mod, err := readName(r)
		if err != nil {
			return fmt.Errorf("import[%d] module: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return fmt.Errorf("import[%d] name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("import[%d] kind: %w", i, err)
		}
		im := &wasm.Import{Module: mod, Name: name, Type: kind}
		switch kind {
		case wasm.ExternTypeFunc:
			if im.DescFunc, err = readIndex(r); err != nil {
				return fmt.Errorf("import[%d] func type: %w", i, err)
			}
		case wasm.ExternTypeTable:
			elemType, err := r.ReadByte()
			if err != nil || elemType != wasm.ValueTypeFuncref {
				return fmt.Errorf("import[%d] table: invalid element type", i)
			}
			min, max, err := readLimits(r)
			if err != nil {
				return fmt.Errorf("import[%d] table limits: %w", i, err)
			}
			im.DescTable = &wasm.Table{Min: min, Max: max}
		case wasm.ExternTypeMemory:
			min, max, err := readLimits(r)
			if err != nil {
				return fmt.Errorf("import[%d] memory limits: %w", i, err)
			}
			mem := &wasm.Memory{Min: min}
			if max != nil {
				mem.Max, mem.IsMaxEncoded = *max, true
			}
			im.DescMem = mem
		case wasm.ExternTypeGlobal:
			vt, err := readValueType(r)
			if err != nil {
				return fmt.Errorf("import[%d] global type: %w", i, err)
			}
			mut, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("import[%d] global mutability: %w", i, err)
			}
			im.DescGlobal = &wasm.GlobalType{ValType: vt, Mutable: mut == 1}
		default:
			return fmt.Errorf("import[%d]: invalid kind: %#x", i, kind)
		}
		m.ImportSection[i] = im
	}
	return nil
}

func decodeFunctionSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("function count: %w", err)
	}
	m.FunctionSection = make([]wasm.Index, count)
	for i := range m.FunctionSection {
		if m.FunctionSection[i], err = readIndex(r); err != nil {
			return fmt.Errorf("function[%d]: %w", i, err)
		}
	}
	return nil
}

func decodeTableSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("table count: %w", err)
	}
	if count > 1 {
		return fmt.Errorf("at most one table allowed in the baseline profile, got %d", count)
	}
	for i := uint32(0); i < count; i++ {
		elemType, err := r.ReadByte()
		if err != nil || elemType != wasm.ValueTypeFuncref {
			return fmt.Errorf("table[%d]: invalid element type", i)
		}
		min, max, err := readLimits(r)
		if err != nil {
			return fmt.Errorf("table[%d] limits: %w", i, err)
		}
		m.TableSection = &wasm.Table{Min: min, Max: max}
	}
	return nil
}

func decodeMemorySection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("memory count: %w", err)
	}
	if count > 1 {
		return fmt.Errorf("at most one memory allowed in the baseline profile, got %d", count)
	}
	for i := uint32(0); i < count; i++ {
		min, max, err := readLimits(r)
		if err != nil {
			return fmt.Errorf("memory[%d] limits: %w", i, err)
		}
		mem := &wasm.Memory{Min: min}
		if max != nil {
			mem.Max, mem.IsMaxEncoded = *max, true
		}
		m.MemorySection = mem
	}
	return nil
}

func decodeGlobalSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("global count: %w", err)
	}
	m.GlobalSection = make([]*wasm.Global, count)
	for i := range m.GlobalSection {
		vt, err := readValueType(r)
		if err != nil {
			return fmt.Errorf("global[%d] type: %w", i, err)
		}
		mut, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("global[%d] mutability: %w", i, err)
		}
		init, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("global[%d] init: %w", i, err)
		}
		m.GlobalSection[i] = &wasm.Global{Type: &wasm.GlobalType{ValType: vt, Mutable: mut == 1}, Init: init}
	}
	return nil
}

func decodeExportSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("export count: %w", err)
	}
	m.ExportSection = make(map[string]*wasm.Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return fmt.Errorf("export[%d] name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("export[%d] kind: %w", i, err)
		}
		idx, err := readIndex(r)
		if err != nil {
			return fmt.Errorf("export[%d] index: %w", i, err)
		}
		if _, dup := m.ExportSection[name]; dup {
			return fmt.Errorf("duplicate export name: %s", name)
		}
		m.ExportSection[name] = &wasm.Export{Name: name, Type: kind, Index: idx}
	}
	return nil
}

func decodeStartSection(m *wasm.Module, r *bytes.Reader) error {
	idx, err := readIndex(r)
	if err != nil {
		return fmt.Errorf("start function index: %w", err)
	}
	m.StartSection = &idx
	return nil
}

func decodeElementSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("element count: %w", err)
	}
	m.ElementSection = make([]*wasm.ElementSegment, count)
	for i := range m.ElementSection {
		tableIdx, err := readIndex(r)
		if err != nil {
			return fmt.Errorf("element[%d] table index: %w", i, err)
		}
		offset, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("element[%d] offset: %w", i, err)
		}
		n, err := readCount(r)
		if err != nil {
			return fmt.Errorf("element[%d] init count: %w", i, err)
		}
		init := make([]wasm.Index, n)
		for j := range init {
			if init[j], err = readIndex(r); err != nil {
				return fmt.Errorf("element[%d] init[%d]: %w", i, j, err)
			}
		}
		m.ElementSection[i] = &wasm.ElementSegment{TableIndex: tableIdx, OffsetExpr: offset, Init: init}
	}
	return nil
}

func decodeCodeSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("code count: %w", err)
	}
	m.CodeSection = make([]*wasm.Code, count)
	for i := range m.CodeSection {
		size, err := readCount(r)
		if err != nil {
			return fmt.Errorf("code[%d] size: %w", i, err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("code[%d]: truncated body: %w", i, err)
		}
		code, err := decodeCode(body)
		if err != nil {
			return fmt.Errorf("code[%d]: %w", i, err)
		}
		m.CodeSection[i] = code
	}
	return nil
}

// decodeCode splits a function body payload into its local declarations
// (expanded into one entry per local, matching Module.Code.LocalTypes) and
// the remaining raw instruction stream.
func decodeCode(body []byte) (*wasm.Code, error) {
	br := bytes.NewReader(body)
	numLocalDecls, err := readCount(br)
	if err != nil {
		return nil, fmt.Errorf("local decl count: %w", err)
	}
	var locals []wasm.ValueType
	for i := uint32(0); i < numLocalDecls; i++ {
		n, err := readCount(br)
		if err != nil {
			return nil, fmt.Errorf("local decl[%d] count: %w", i, err)
		}
		vt, err := readValueType(br)
		if err != nil {
			return nil, fmt.Errorf("local decl[%d] type: %w", i, err)
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, vt)
		}
	}
	rest := make([]byte, br.Len())
	if _, err := io.ReadFull(br, rest); err != nil {
		return nil, fmt.Errorf("instruction stream: %w", err)
	}
	return &wasm.Code{LocalTypes: locals, Body: rest}, nil
}

func decodeDataSection(m *wasm.Module, r *bytes.Reader) error {
	count, err := readCount(r)
	if err != nil {
		return fmt.Errorf("data count: %w", err)
	}
	m.DataSection = make([]*wasm.DataSegment, count)
	for i := range m.DataSection {
		memIdx, err := readIndex(r)
		if err != nil {
			return fmt.Errorf("data[%d] memory index: %w", i, err)
		}
		offset, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("data[%d] offset: %w", i, err)
		}
		n, err := readCount(r)
		if err != nil {
			return fmt.Errorf("data[%d] length: %w", i, err)
		}
		init := make([]byte, n)
		if _, err := io.ReadFull(r, init); err != nil {
			return fmt.Errorf("data[%d] bytes: %w", i, err)
		}
		m.DataSection[i] = &wasm.DataSegment{MemoryIndex: memIdx, OffsetExpression: offset, Init: init}
	}
	return nil
}

func decodeCustomSection(m *wasm.Module, payload []byte, debug bool) error {
	r := bytes.NewReader(payload)
	name, err := readName(r)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	rest := payload[len(payload)-r.Len():]

	if name == "name" && debug {
		ns, err := decodeNameSection(bytes.NewReader(rest))
		if err != nil {
			return fmt.Errorf("name section: %w", err)
		}
		m.NameSection = ns
		return nil
	}
	if m.CustomSections == nil {
		m.CustomSections = map[string][]byte{}
	}
	m.CustomSections[name] = rest
	return nil // opaque custom section, not otherwise interpreted.
}
