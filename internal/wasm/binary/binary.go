// Package binary implements the WebAssembly binary module format decoder
// and encoder: magic number and version, then a sequence of
// sections framed by (id byte, LEB128 size, payload), producing or
// consuming the shared in-memory representation in internal/wasm.
package binary

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wasmaot/wasmaot/internal/leb128"
	"github.com/wasmaot/wasmaot/internal/wasm"
)

// Magic is the four bytes every WebAssembly binary module begins with.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Version is the only binary format version this decoder understands.
var Version = []byte{0x01, 0x00, 0x00, 0x00}

// ErrInvalidMagicNumber is returned when the input does not begin with Magic.
var ErrInvalidMagicNumber = errors.New("binary: invalid magic number")

// ErrInvalidVersion is returned when the input's version field isn't Version.
var ErrInvalidVersion = errors.New("binary: invalid version header")

// DecodeModule parses a binary-format WebAssembly module from data.
//
// debug mirrors the environment's DEBUG flag: when true, the
// "name" custom section is decoded into Module.NameSection; when false its
// bytes are preserved opaquely in Module.CustomSections but not parsed, to
// save a parse pass.
func DecodeModule(data []byte, debug bool) (*wasm.Module, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || !bytes.Equal(magic, Magic) {
		return nil, ErrInvalidMagicNumber
	}
	version := make([]byte, 4)
	if _, err := io.ReadFull(r, version); err != nil || !bytes.Equal(version, Version) {
		return nil, ErrInvalidVersion
	}

	m := &wasm.Module{}
	var lastSectionID wasm.SectionID = 0
	seen := map[wasm.SectionID]bool{}
	for {
		id, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("section id: %w", err)
		}

		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("section %s size: %w", wasm.SectionIDName(id), err)
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("section %s: truncated payload: %w", wasm.SectionIDName(id), err)
		}

		if id == wasm.SectionIDCustom {
			if err := decodeCustomSection(m, payload, debug); err != nil {
				return nil, fmt.Errorf("custom section: %w", err)
			}
			continue
		}

		if id < wasm.SectionIDType || id > wasm.SectionIDData {
			return nil, fmt.Errorf("invalid section id: %d", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate section: %s", wasm.SectionIDName(id))
		}
		if id <= lastSectionID {
			return nil, fmt.Errorf("out of order section: %s", wasm.SectionIDName(id))
		}
		seen[id] = true
		lastSectionID = id

		sr := bytes.NewReader(payload)
		if err := decodeSection(m, id, sr); err != nil {
			return nil, fmt.Errorf("%s section: %w", wasm.SectionIDName(id), err)
		}
		if sr.Len() != 0 {
			return nil, fmt.Errorf("%s section: %d unread bytes after decoding", wasm.SectionIDName(id), sr.Len())
		}
	}

	return m, nil
}

func decodeSection(m *wasm.Module, id wasm.SectionID, r *bytes.Reader) error {
	switch id {
	case wasm.SectionIDType:
		return decodeTypeSection(m, r)
	case wasm.SectionIDImport:
		return decodeImportSection(m, r)
	case wasm.SectionIDFunction:
		return decodeFunctionSection(m, r)
	case wasm.SectionIDTable:
		return decodeTableSection(m, r)
	case wasm.SectionIDMemory:
		return decodeMemorySection(m, r)
	case wasm.SectionIDGlobal:
		return decodeGlobalSection(m, r)
	case wasm.SectionIDExport:
		return decodeExportSection(m, r)
	case wasm.SectionIDStart:
		return decodeStartSection(m, r)
	case wasm.SectionIDElement:
		return decodeElementSection(m, r)
	case wasm.SectionIDCode:
		return decodeCodeSection(m, r)
	case wasm.SectionIDData:
		return decodeDataSection(m, r)
	}
	return fmt.Errorf("unknown section id: %d", id)
}

func readCount(r *bytes.Reader) (uint32, error) {
	n, _, err := leb128.DecodeUint32(r)
	return n, err
}

func readIndex(r *bytes.Reader) (wasm.Index, error) {
	n, _, err := leb128.DecodeUint32(r)
	return wasm.Index(n), err
}

func readValueType(r *bytes.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64, wasm.ValueTypeFuncref:
		return b, nil
	}
	return 0, fmt.Errorf("invalid value type: %#x", b)
}

func readName(r *bytes.Reader) (string, error) {
	n, err := readCount(r)
	if err != nil {
		return "", fmt.Errorf("name length: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	return string(buf), nil
}

func readLimits(r *bytes.Reader) (min uint32, max *uint32, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	min, err = readCount(r)
	if err != nil {
		return 0, nil, fmt.Errorf("limits min: %w", err)
	}
	if flag == 0 {
		return min, nil, nil
	}
	if flag != 1 {
		return 0, nil, fmt.Errorf("invalid limits flag: %#x", flag)
	}
	maxVal, err := readCount(r)
	if err != nil {
		return 0, nil, fmt.Errorf("limits max: %w", err)
	}
	return min, &maxVal, nil
}

func readConstExpr(r *bytes.Reader) (*wasm.ConstantExpression, error) {
	op, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	var data []byte
	switch op {
	case wasm.OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return nil, fmt.Errorf("i32.const: %w", err)
		}
		data = leb128.EncodeInt32(v)
	case wasm.OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return nil, fmt.Errorf("i64.const: %w", err)
		}
		data = leb128.EncodeInt64(v)
	case wasm.OpcodeF32Const:
		data = make([]byte, 4)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("f32.const: %w", err)
		}
	case wasm.OpcodeF64Const:
		data = make([]byte, 8)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("f64.const: %w", err)
		}
	case wasm.OpcodeGlobalGet:
		idx, err := readIndex(r)
		if err != nil {
			return nil, fmt.Errorf("global.get: %w", err)
		}
		data = leb128.EncodeUint32(idx)
	default:
		return nil, fmt.Errorf("invalid opcode for const expression: %#x", op)
	}
	end, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("const expression: missing end: %w", err)
	}
	if end != wasm.OpcodeEnd {
		return nil, fmt.Errorf("const expression: expected end, got %#x", end)
	}
	return &wasm.ConstantExpression{Opcode: op, Data: data}, nil
}
