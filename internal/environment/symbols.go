package environment

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
)

// readSymbols enumerates the exported/defined symbol names of a native
// object or shared library, dispatching on the file's magic bytes so a
// single embedding list can mix ELF, Mach-O, and PE images.
func readSymbols(path string, data []byte) ([]string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		return elfSymbols(data)
	case bytes.HasPrefix(data, []byte("\xfe\xed\xfa")) || bytes.HasPrefix(data, []byte("\xca\xfe\xba\xbe")) ||
		bytes.HasPrefix(data, []byte("\xcf\xfa\xed\xfe")) || bytes.HasPrefix(data, []byte("\xce\xfa\xed\xfe")):
		return machoSymbols(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		return peSymbols(data)
	default:
		return nil, fmt.Errorf("%w: %s: unrecognized object format", ErrInvalidEmbedding, path)
	}
}

func elfSymbols(data []byte) ([]string, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: elf: %v", ErrInvalidEmbedding, err)
	}
	defer f.Close()
	syms, err := f.DynamicSymbols()
	if err != nil {
		// A static object has no dynamic symbol table; fall back to the
		// regular one.
		syms, err = f.Symbols()
		if err != nil {
			return nil, fmt.Errorf("%w: elf: %v", ErrInvalidEmbedding, err)
		}
	}
	var names []string
	for _, s := range syms {
		if s.Name != "" && elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Section != elf.SHN_UNDEF {
			names = append(names, s.Name)
		}
	}
	return names, nil
}

func machoSymbols(data []byte) ([]string, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: macho: %v", ErrInvalidEmbedding, err)
	}
	defer f.Close()
	if f.Symtab == nil {
		return nil, nil
	}
	var names []string
	for _, s := range f.Symtab.Syms {
		if s.Name != "" && s.Sect != 0 {
			names = append(names, s.Name)
		}
	}
	return names, nil
}

func peSymbols(data []byte) ([]string, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: pe: %v", ErrInvalidEmbedding, err)
	}
	defer f.Close()
	var names []string
	for _, s := range f.Symbols {
		if s.Name != "" && s.SectionNumber > 0 {
			names = append(names, s.Name)
		}
	}
	return names, nil
}
