// Package wasm holds the in-memory module representation shared by the
// binary decoder, the text parser, the validator, and the environment's
// link pass, together with the single-module validation pass
// (Module.Validate). The IR is the interop contract between producers
// (decoder, parser) and consumers (validator, backend).
package wasm

import (
	"fmt"
	"strings"
)

// SectionID identifies the sections of a Module as described by the
// WebAssembly binary format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
type SectionID = byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

// SectionIDName returns the canonical name of a section, as used in error
// messages and the text format.
func SectionIDName(sectionID SectionID) string {
	switch sectionID {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	}
	return "unknown"
}

// Module is the central in-memory representation of a WebAssembly module,
// produced by either the binary decoder or the text parser and consumed by
// the validator and, after linking, the backend.
//
// Per the invariant that functions and code are aligned 1:1,
// len(FunctionSection) always equals len(CodeSection) in a module that has
// passed the single-module validation pass.
type Module struct {
	// Name uniquely identifies this module within an Environment. It is
	// either supplied by the caller of Environment.AddModule or, for
	// unnamed binary modules, assigned by the caller before publication.
	Name string

	// Path is the optional filesystem origin of this module, used only for
	// diagnostics.
	Path string

	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // indices into TypeSection, one per local function
	TableSection    *Table  // nil if no table is locally defined
	MemorySection   *Memory // nil if no memory is locally defined
	GlobalSection   []*Global
	// ExportSection maps each export name to its descriptor. The
	// WebAssembly spec requires export names be unique within a module.
	ExportSection map[string]*Export
	StartSection  *Index // nil if no start function
	ElementSection []*ElementSegment
	// CodeSection is aligned 1:1 with FunctionSection: CodeSection[i] is
	// the body of the function whose type is TypeSection[FunctionSection[i]].
	CodeSection []*Code
	DataSection []*DataSegment

	// NameSection holds the decoded "name" custom section, when present
	// and decoded (see DEBUG flag handling in the environment package).
	NameSection *NameSection

	// CustomSections preserves every custom section's raw payload by name,
	// including "name" when DEBUG is not set and the decoder skipped
	// interpreting it. Unrecognized custom sections are always preserved
	// here but otherwise uninterpreted.
	CustomSections map[string][]byte

	// cache is opaque backend state: nil until the backend populates it,
	// and cleared by Environment.ClearCache.
	cache interface{}
}

// Cache returns the backend-opaque compilation cache attached to this
// module, or nil.
func (m *Module) Cache() interface{} { return m.cache }

// SetCache attaches backend-opaque compilation cache to this module.
func (m *Module) SetCache(c interface{}) { m.cache = c }

// ClearCache detaches any backend-opaque compilation cache.
func (m *Module) ClearCache() { m.cache = nil }

// SectionElementCount returns the count of elements in the given section.
func (m *Module) SectionElementCount(sectionID SectionID) uint32 {
	switch sectionID {
	case SectionIDCustom:
		if m.NameSection != nil {
			return 1
		}
		return 0
	case SectionIDType:
		return uint32(len(m.TypeSection))
	case SectionIDImport:
		return uint32(len(m.ImportSection))
	case SectionIDFunction:
		return uint32(len(m.FunctionSection))
	case SectionIDTable:
		if m.TableSection != nil {
			return 1
		}
		return 0
	case SectionIDMemory:
		if m.MemorySection != nil {
			return 1
		}
		return 0
	case SectionIDGlobal:
		return uint32(len(m.GlobalSection))
	case SectionIDExport:
		return uint32(len(m.ExportSection))
	case SectionIDStart:
		if m.StartSection != nil {
			return 1
		}
		return 0
	case SectionIDElement:
		return uint32(len(m.ElementSection))
	case SectionIDCode:
		return uint32(len(m.CodeSection))
	case SectionIDData:
		return uint32(len(m.DataSection))
	}
	return 0
}

// FunctionType is a function signature: an ordered sequence of parameter
// value types and an ordered sequence of result value types. In the
// baseline profile, len(Results) <= 1.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType

	// cachedString memoizes String.
	cachedString string
}

// String produces a short symbol such as "i32i64_i32" used in validation
// error messages. Signatures are compared with EqualsSignature.
func (t *FunctionType) String() string {
	if t.cachedString != "" {
		return t.cachedString
	}
	var ps, rs string
	if len(t.Params) == 0 {
		ps = "null"
	} else {
		var sb strings.Builder
		for _, p := range t.Params {
			sb.WriteString(ValueTypeName(p))
		}
		ps = sb.String()
	}
	if len(t.Results) == 0 {
		rs = "null"
	} else {
		var sb strings.Builder
		for _, r := range t.Results {
			sb.WriteString(ValueTypeName(r))
		}
		rs = sb.String()
	}
	t.cachedString = ps + "_" + rs
	return t.cachedString
}

// EqualsSignature reports whether two function types have identical
// parameter and result sequences. Used by the link pass
// and inline-type deduplication in the text parser.
func (t *FunctionType) EqualsSignature(params, results []ValueType) bool {
	if len(t.Params) != len(params) || len(t.Results) != len(results) {
		return false
	}
	for i, p := range params {
		if t.Params[i] != p {
			return false
		}
	}
	for i, r := range results {
		if t.Results[i] != r {
			return false
		}
	}
	return true
}

// Code is a function body: its locals (beyond its parameters) and its
// instruction stream, still in binary-opcode form.
type Code struct {
	// LocalTypes holds one entry per declared local (not including
	// parameters, which are addressed by the same index space but are
	// never repeated here).
	LocalTypes []ValueType
	// Body is the raw instruction stream, terminated by OpcodeEnd.
	Body []byte
}

// GlobalType describes the static type of a global: its value type and
// whether it is mutable.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a module-defined global: its type and its initializer, which
// must be a constant expression.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ConstantExpression is an initializer expression for a global, element
// segment offset, or data segment offset. Opcode is restricted by the
// validator to one of the four `*.const` instructions or `global.get`.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// Table is the single table allowed in the baseline profile: a sequence of
// funcref elements with the given size limits.
type Table struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

// Memory is the single linear memory allowed in the baseline profile,
// sized in 64KiB pages.
type Memory struct {
	Min uint32
	Max uint32
	// IsMaxEncoded distinguishes "no max" (false) from "max explicitly
	// equals Max" (true), since zero is otherwise ambiguous with unset.
	IsMaxEncoded bool
}

// MemoryMaxPages is the highest number of 64KiB pages a linear memory is
// allowed to grow to (2^16 pages == 4GiB of address space).
const MemoryMaxPages uint32 = 65536

// Import describes a single imported function, table, memory, or global.
// Exactly one of the Desc* fields is meaningful, selected by Type.
type Import struct {
	Module, Name string
	Type         ExternType

	DescFunc   Index // index into the importing module's TypeSection
	DescTable  *Table
	DescMem    *Memory
	DescGlobal *GlobalType
}

// Export maps an export name to the kind and index of the
// exported entity, within the exporting module's own index space (imports
// counted first, per Index's doc comment).
type Export struct {
	Name  string
	Type  ExternType
	Index Index
}

// ElementSegment initializes a range of the table with function indices.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr *ConstantExpression
	Init       []Index
}

// DataSegment initializes a range of linear memory with literal bytes.
type DataSegment struct {
	MemoryIndex      Index
	OffsetExpression *ConstantExpression
	Init             []byte
}

// NameSection is the decoded form of the optional "name" custom section:
// debug names for the module itself, its functions, and each function's
// locals.
type NameSection struct {
	ModuleName    string
	FunctionNames NameMap
	LocalNames    IndirectNameMap
}

// NameAssoc associates an index-space position with a debug name.
type NameAssoc struct {
	Index Index
	Name  string
}

// NameMap is a sequence of NameAssoc, ordered by ascending Index as
// required by the binary format.
type NameMap []NameAssoc

// IndirectNameAssoc associates an index (e.g. a function index) with a
// NameMap over a second index space (e.g. that function's locals).
type IndirectNameAssoc struct {
	Index   Index
	NameMap NameMap
}

// IndirectNameMap is a sequence of IndirectNameAssoc.
type IndirectNameMap []IndirectNameAssoc

// String renders a human-readable identity for a module, preferring its
// Name and falling back to its Path.
func (m *Module) String() string {
	if m.Name != "" {
		return m.Name
	}
	if m.Path != "" {
		return m.Path
	}
	return fmt.Sprintf("module@%p", m)
}
