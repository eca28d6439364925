package environment

import (
	"fmt"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// link resolves every module's imports against either another module's
// matching export or, when permitted, a whitelisted native symbol, failing
// the whole environment if any import resolves to neither.
//
// Rules, applied per import:
//  1. If another admitted module exports (import.Module, import.Name) with
//     a matching ExternType, the import resolves to it; no whitelist check
//     applies to inter-module imports.
//  2. Otherwise, if whitelisting is enabled, the import must be present in
//     the whitelist under its canonical name.
//  3. If whitelisting is enabled and the whitelist entry carries a
//     signature, a function import's signature must equal it exactly.
//  4. Otherwise, if whitelisting is disabled, any import whose canonical
//     name is present among the embeddings' native symbols resolves to
//     that embedding.
func link(modules []*wasm.Module, byName map[string]*wasm.Module, whitelist map[string]whitelistEntry, cimports map[string]struct{}, whitelistEnabled bool) error {
	for _, m := range modules {
		if m == nil {
			continue
		}
		for _, imp := range m.ImportSection {
			if err := resolveImport(m, imp, byName, whitelist, cimports, whitelistEnabled); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveImport(m *wasm.Module, imp *wasm.Import, byName map[string]*wasm.Module, whitelist map[string]whitelistEntry, cimports map[string]struct{}, whitelistEnabled bool) error {
	if src, ok := byName[imp.Module]; ok {
		export, ok := src.ExportSection[imp.Name]
		if !ok {
			return fmt.Errorf("%w: %s: %s.%s: no such export in module %q",
				ErrUnresolvedImport, m.Name, imp.Module, imp.Name, imp.Module)
		}
		if export.Type != imp.Type {
			return fmt.Errorf("%w: %s: %s.%s: export kind mismatch", ErrUnresolvedImport, m.Name, imp.Module, imp.Name)
		}
		return nil
	}

	name := CanonicalName(imp.Module, imp.Name)

	if whitelistEnabled {
		entry, ok := whitelist[name]
		if !ok {
			return fmt.Errorf("%w: %s: %s.%s", ErrWhitelistViolation, m.Name, imp.Module, imp.Name)
		}
		if entry.signature != nil {
			if imp.Type != wasm.ExternTypeFunc {
				return fmt.Errorf("%w: %s: %s.%s: signature constraint on non-function import",
					ErrWhitelistViolation, m.Name, imp.Module, imp.Name)
			}
			if imp.DescFunc >= uint32(len(m.TypeSection)) {
				return fmt.Errorf("%w: %s: %s.%s: import type index out of range",
					ErrUnresolvedImport, m.Name, imp.Module, imp.Name)
			}
			actual := m.TypeSection[imp.DescFunc]
			if !entry.signature.EqualsSignature(actual.Params, actual.Results) {
				return fmt.Errorf("%w: %s: %s.%s: signature mismatch with whitelist entry",
					ErrWhitelistViolation, m.Name, imp.Module, imp.Name)
			}
		}
		return nil
	}

	if _, ok := cimports[name]; ok {
		return nil
	}

	return fmt.Errorf("%w: %s: %s.%s", ErrUnresolvedImport, m.Name, imp.Module, imp.Name)
}
