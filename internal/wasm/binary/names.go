package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// Name subsection ids within the "name" custom section.
const (
	nameSubsectionModule byte = 0
	nameSubsectionFunc   byte = 1
	nameSubsectionLocal  byte = 2
)

// decodeNameSection decodes the optional "name" custom section, used for
// debug names when DEBUG is set.
func decodeNameSection(r *bytes.Reader) (*wasm.NameSection, error) {
	ns := &wasm.NameSection{}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := readCount(r)
		if err != nil {
			return nil, fmt.Errorf("subsection %d size: %w", id, err)
		}
		payload := make([]byte, size)
		if _, err := r.Read(payload); err != nil {
			return nil, fmt.Errorf("subsection %d: %w", id, err)
		}
		sr := bytes.NewReader(payload)
		switch id {
		case nameSubsectionModule:
			if ns.ModuleName, err = readName(sr); err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
		case nameSubsectionFunc:
			if ns.FunctionNames, err = decodeNameMap(sr); err != nil {
				return nil, fmt.Errorf("function names: %w", err)
			}
		case nameSubsectionLocal:
			if ns.LocalNames, err = decodeIndirectNameMap(sr); err != nil {
				return nil, fmt.Errorf("local names: %w", err)
			}
		}
	}
	return ns, nil
}

func decodeNameMap(r *bytes.Reader) (wasm.NameMap, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	nm := make(wasm.NameMap, count)
	for i := range nm {
		idx, err := readIndex(r)
		if err != nil {
			return nil, fmt.Errorf("assoc[%d] index: %w", i, err)
		}
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("assoc[%d] name: %w", i, err)
		}
		nm[i] = wasm.NameAssoc{Index: idx, Name: name}
	}
	return nm, nil
}

func decodeIndirectNameMap(r *bytes.Reader) (wasm.IndirectNameMap, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	inm := make(wasm.IndirectNameMap, count)
	for i := range inm {
		idx, err := readIndex(r)
		if err != nil {
			return nil, fmt.Errorf("indirect assoc[%d] index: %w", i, err)
		}
		nm, err := decodeNameMap(r)
		if err != nil {
			return nil, fmt.Errorf("indirect assoc[%d] names: %w", i, err)
		}
		inm[i] = wasm.IndirectNameAssoc{Index: idx, NameMap: nm}
	}
	return inm, nil
}

func encodeNameSection(ns *wasm.NameSection) []byte {
	var buf bytes.Buffer
	buf.Write(encodeName("name"))
	if ns.ModuleName != "" {
		payload := encodeName(ns.ModuleName)
		buf.WriteByte(nameSubsectionModule)
		buf.Write(encodeCount(uint32(len(payload))))
		buf.Write(payload)
	}
	if len(ns.FunctionNames) > 0 {
		payload := encodeNameMap(ns.FunctionNames)
		buf.WriteByte(nameSubsectionFunc)
		buf.Write(encodeCount(uint32(len(payload))))
		buf.Write(payload)
	}
	if len(ns.LocalNames) > 0 {
		payload := encodeIndirectNameMap(ns.LocalNames)
		buf.WriteByte(nameSubsectionLocal)
		buf.Write(encodeCount(uint32(len(payload))))
		buf.Write(payload)
	}
	return buf.Bytes()
}

func encodeNameMap(nm wasm.NameMap) []byte {
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(nm))))
	for _, a := range nm {
		buf.Write(encodeIndex(a.Index))
		buf.Write(encodeName(a.Name))
	}
	return buf.Bytes()
}

func encodeIndirectNameMap(inm wasm.IndirectNameMap) []byte {
	var buf bytes.Buffer
	buf.Write(encodeCount(uint32(len(inm))))
	for _, a := range inm {
		buf.Write(encodeIndex(a.Index))
		buf.Write(encodeNameMap(a.NameMap))
	}
	return buf.Bytes()
}
