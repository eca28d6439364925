package text

import (
	"fmt"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

// typeUseParser accumulates the inline "(param ...) (result ...)" shorthand
// of a func or import type use and resolves it against the
// module's TypeSection, deduplicating identical signatures rather than
// appending a new entry for every use site.
type typeUseParser struct {
	module *wasm.Module

	params    []wasm.ValueType
	results   []wasm.ValueType
	sawResult bool
}

func newTypeUseParser(m *wasm.Module) *typeUseParser {
	return &typeUseParser{module: m}
}

// addParam records one "(param T)" entry. Every param must precede every
// result in a type use; a param seen after a result is a parse error.
func (p *typeUseParser) addParam(vt wasm.ValueType) error {
	if p.sawResult {
		return fmt.Errorf("param may not follow result in a type use")
	}
	p.params = append(p.params, vt)
	return nil
}

// addResult records one "(result T)" entry. The baseline profile allows at
// most one result unless FeatureMultiValue is enabled; the caller is
// responsible for that check since it requires the enabled feature set.
func (p *typeUseParser) addResult(vt wasm.ValueType) error {
	p.sawResult = true
	p.results = append(p.results, vt)
	return nil
}

// resolve returns the TypeSection index for the accumulated signature,
// appending a new entry only if no existing one matches.
func (p *typeUseParser) resolve() wasm.Index {
	for i, ft := range p.module.TypeSection {
		if ft.EqualsSignature(p.params, p.results) {
			return wasm.Index(i)
		}
	}
	idx := wasm.Index(len(p.module.TypeSection))
	p.module.TypeSection = append(p.module.TypeSection, &wasm.FunctionType{
		Params:  p.params,
		Results: p.results,
	})
	return idx
}
