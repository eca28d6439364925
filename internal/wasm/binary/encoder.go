package binary

import (
	"bytes"
	"sort"

	"github.com/wasmaot/wasmaot/internal/leb128"
	"github.com/wasmaot/wasmaot/internal/wasm"
)

func encodeCount(n uint32) []byte  { return leb128.EncodeUint32(n) }
func encodeIndex(i wasm.Index) []byte { return leb128.EncodeUint32(i) }

func encodeName(s string) []byte {
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(s))))
	buf.WriteString(s)
	return buf.Bytes()
}

func encodeValueType(vt wasm.ValueType) []byte { return []byte{vt} }

func encodeLimits(min uint32, max *uint32) []byte {
	var buf bytes.Buffer
	if max == nil {
		buf.WriteByte(0)
		buf.Write(encodeCount(min))
		return buf.Bytes()
	}
	buf.WriteByte(1)
	buf.Write(encodeCount(min))
	buf.Write(encodeCount(*max))
	return buf.Bytes()
}

func encodeConstExpr(e *wasm.ConstantExpression) []byte {
	var buf bytes.Buffer
	buf.WriteByte(e.Opcode)
	buf.Write(e.Data)
	buf.WriteByte(wasm.OpcodeEnd)
	return buf.Bytes()
}

// EncodeModule re-encodes a Module IR into the binary format, the inverse
// of DecodeModule. Used by the round-trip tests.
func EncodeModule(m *wasm.Module) []byte {
	var buf bytes.Buffer
	buf.Write(Magic)
	buf.Write(Version)

	writeSection := func(id wasm.SectionID, payload []byte) {
		if len(payload) == 0 {
			return
		}
		buf.WriteByte(id)
		buf.Write(encodeCount(uint32(len(payload))))
		buf.Write(payload)
	}

	writeSection(wasm.SectionIDType, encodeTypeSection(m))
	writeSection(wasm.SectionIDImport, encodeImportSection(m))
	writeSection(wasm.SectionIDFunction, encodeFunctionSection(m))
	writeSection(wasm.SectionIDTable, encodeTableSection(m))
	writeSection(wasm.SectionIDMemory, encodeMemorySection(m))
	writeSection(wasm.SectionIDGlobal, encodeGlobalSection(m))
	writeSection(wasm.SectionIDExport, encodeExportSection(m))
	if m.StartSection != nil {
		writeSection(wasm.SectionIDStart, encodeIndex(*m.StartSection))
	}
	writeSection(wasm.SectionIDElement, encodeElementSection(m))
	writeSection(wasm.SectionIDCode, encodeCodeSection(m))
	writeSection(wasm.SectionIDData, encodeDataSection(m))
	if m.NameSection != nil {
		writeSection(wasm.SectionIDCustom, encodeNameSection(m.NameSection))
	}
	names := make([]string, 0, len(m.CustomSections))
	for name := range m.CustomSections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var sec bytes.Buffer
		sec.Write(encodeName(name))
		sec.Write(m.CustomSections[name])
		writeSection(wasm.SectionIDCustom, sec.Bytes())
	}

	return buf.Bytes()
}

func encodeTypeSection(m *wasm.Module) []byte {
	if len(m.TypeSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.TypeSection))))
	for _, ft := range m.TypeSection {
		buf.WriteByte(0x60)
		buf.Write(encodeCount(uint32(len(ft.Params))))
		for _, p := range ft.Params {
			buf.Write(encodeValueType(p))
		}
		buf.Write(encodeCount(uint32(len(ft.Results))))
		for _, r := range ft.Results {
			buf.Write(encodeValueType(r))
		}
	}
	return buf.Bytes()
}

func encodeImportSection(m *wasm.Module) []byte {
	if len(m.ImportSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.ImportSection))))
	for _, im := range m.ImportSection {
		buf.Write(encodeName(im.Module))
		buf.Write(encodeName(im.Name))
		buf.WriteByte(im.Type)
		switch im.Type {
		case wasm.ExternTypeFunc:
			buf.Write(encodeIndex(im.DescFunc))
		case wasm.ExternTypeTable:
			buf.WriteByte(wasm.ValueTypeFuncref)
			buf.Write(encodeLimits(im.DescTable.Min, im.DescTable.Max))
		case wasm.ExternTypeMemory:
			buf.Write(encodeMemoryLimits(im.DescMem))
		case wasm.ExternTypeGlobal:
			buf.Write(encodeValueType(im.DescGlobal.ValType))
			buf.WriteByte(boolByte(im.DescGlobal.Mutable))
		}
	}
	return buf.Bytes()
}

func encodeMemoryLimits(mem *wasm.Memory) []byte {
	if mem.IsMaxEncoded {
		max := mem.Max
		return encodeLimits(mem.Min, &max)
	}
	return encodeLimits(mem.Min, nil)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodeFunctionSection(m *wasm.Module) []byte {
	if len(m.FunctionSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.FunctionSection))))
	for _, idx := range m.FunctionSection {
		buf.Write(encodeIndex(idx))
	}
	return buf.Bytes()
}

func encodeTableSection(m *wasm.Module) []byte {
	if m.TableSection == nil {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(1))
	buf.WriteByte(wasm.ValueTypeFuncref)
	buf.Write(encodeLimits(m.TableSection.Min, m.TableSection.Max))
	return buf.Bytes()
}

func encodeMemorySection(m *wasm.Module) []byte {
	if m.MemorySection == nil {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(1))
	buf.Write(encodeMemoryLimits(m.MemorySection))
	return buf.Bytes()
}

func encodeGlobalSection(m *wasm.Module) []byte {
	if len(m.GlobalSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.GlobalSection))))
	for _, g := range m.GlobalSection {
		buf.Write(encodeValueType(g.Type.ValType))
		buf.WriteByte(boolByte(g.Type.Mutable))
		buf.Write(encodeConstExpr(g.Init))
	}
	return buf.Bytes()
}

func encodeExportSection(m *wasm.Module) []byte {
	if len(m.ExportSection) == 0 {
		return nil
	}
	// Export order is not semantically significant but must be stable for
	// round-trip byte comparisons in tests; sort by name.
	names := make([]string, 0, len(m.ExportSection))
	for name := range m.ExportSection {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(names))))
	for _, name := range names {
		e := m.ExportSection[name]
		buf.Write(encodeName(e.Name))
		buf.WriteByte(e.Type)
		buf.Write(encodeIndex(e.Index))
	}
	return buf.Bytes()
}

func encodeElementSection(m *wasm.Module) []byte {
	if len(m.ElementSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.ElementSection))))
	for _, es := range m.ElementSection {
		buf.Write(encodeIndex(es.TableIndex))
		buf.Write(encodeConstExpr(es.OffsetExpr))
		buf.Write(encodeCount(uint32(len(es.Init))))
		for _, idx := range es.Init {
			buf.Write(encodeIndex(idx))
		}
	}
	return buf.Bytes()
}

func encodeCodeSection(m *wasm.Module) []byte {
	if len(m.CodeSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.CodeSection))))
	for _, code := range m.CodeSection {
		body := encodeCode(code)
		buf.Write(encodeCount(uint32(len(body))))
		buf.Write(body)
	}
	return buf.Bytes()
}

func encodeCode(code *wasm.Code) []byte {
	var buf bytes.Buffer
	// Re-run-length-encode LocalTypes into (count, type) decls.
	type decl struct {
		count uint32
		vt    wasm.ValueType
	}
	var decls []decl
	for _, vt := range code.LocalTypes {
		if len(decls) > 0 && decls[len(decls)-1].vt == vt {
			decls[len(decls)-1].count++
			continue
		}
		decls = append(decls, decl{count: 1, vt: vt})
	}
	buf.Write(encodeCount(uint32(len(decls))))
	for _, d := range decls {
		buf.Write(encodeCount(d.count))
		buf.Write(encodeValueType(d.vt))
	}
	buf.Write(code.Body)
	return buf.Bytes()
}

func encodeDataSection(m *wasm.Module) []byte {
	if len(m.DataSection) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(m.DataSection))))
	for _, d := range m.DataSection {
		buf.Write(encodeIndex(d.MemoryIndex))
		buf.Write(encodeConstExpr(d.OffsetExpression))
		buf.Write(encodeCount(uint32(len(d.Init))))
		buf.Write(d.Init)
	}
	return buf.Bytes()
}
