package environment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

func funcImportModule(name, importModule, importName string) *wasm.Module {
	return &wasm.Module{
		Name:          name,
		TypeSection:   []*wasm.FunctionType{{}},
		ImportSection: []*wasm.Import{{Module: importModule, Name: importName, Type: wasm.ExternTypeFunc, DescFunc: 0}},
		ExportSection: map[string]*wasm.Export{},
	}
}

func exportingModule(name, exportName string) *wasm.Module {
	return &wasm.Module{
		Name:            name,
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
		ExportSection:   map[string]*wasm.Export{exportName: {Name: exportName, Type: wasm.ExternTypeFunc, Index: 0}},
	}
}

func TestLink_resolvesAgainstAnotherModule(t *testing.T) {
	producer := exportingModule("producer", "add")
	consumer := funcImportModule("consumer", "producer", "add")
	modules := []*wasm.Module{producer, consumer}
	byName := map[string]*wasm.Module{"producer": producer, "consumer": consumer}

	err := link(modules, byName, nil, nil, false)
	require.NoError(t, err)
}

func TestLink_unresolvedImportWithoutWhitelist(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "missing")
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}

	err := link(modules, byName, nil, nil, false)
	require.ErrorIs(t, err, ErrUnresolvedImport)
}

func TestLink_resolvesAgainstEmbeddingWithoutWhitelist(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "host_fn")
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}
	cimports := map[string]struct{}{CanonicalName("env", "host_fn"): {}}

	err := link(modules, byName, nil, cimports, false)
	require.NoError(t, err)
}

func TestLink_whitelistEnabledRejectsUnlistedImport(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "host_fn")
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}
	cimports := map[string]struct{}{CanonicalName("env", "host_fn"): {}}

	err := link(modules, byName, map[string]whitelistEntry{}, cimports, true)
	require.ErrorIs(t, err, ErrWhitelistViolation)
}

func TestLink_whitelistEnabledAcceptsListedImport(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "host_fn")
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}
	whitelist := map[string]whitelistEntry{CanonicalName("env", "host_fn"): {}}

	err := link(modules, byName, whitelist, nil, true)
	require.NoError(t, err)
}

func TestLink_whitelistSignatureMismatch(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "host_fn")
	consumer.TypeSection[0] = &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}
	whitelist := map[string]whitelistEntry{
		CanonicalName("env", "host_fn"): {signature: &wasm.FunctionType{}},
	}

	err := link(modules, byName, whitelist, nil, true)
	require.ErrorIs(t, err, ErrWhitelistViolation)
}

func TestLink_whitelistSignatureMatch(t *testing.T) {
	consumer := funcImportModule("consumer", "env", "host_fn")
	modules := []*wasm.Module{consumer}
	byName := map[string]*wasm.Module{"consumer": consumer}
	whitelist := map[string]whitelistEntry{
		CanonicalName("env", "host_fn"): {signature: &wasm.FunctionType{}},
	}

	err := link(modules, byName, whitelist, nil, true)
	require.NoError(t, err)
}

func TestLink_exportKindMismatch(t *testing.T) {
	producer := exportingModule("producer", "add")
	consumer := &wasm.Module{
		Name:          "consumer",
		ImportSection: []*wasm.Import{{Module: "producer", Name: "add", Type: wasm.ExternTypeGlobal}},
	}
	modules := []*wasm.Module{producer, consumer}
	byName := map[string]*wasm.Module{"producer": producer, "consumer": consumer}

	err := link(modules, byName, nil, nil, false)
	require.ErrorIs(t, err, ErrUnresolvedImport)
}
