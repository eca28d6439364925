package wasm

import "fmt"

// maxStackValues bounds the depth of the type-stack simulation per
// function, guarding against pathological inputs.
const maxStackValues = 65536

// Validate runs the single-module validation pass: section
// well-formedness, per-function type-stack simulation, and
// constant-expression validation for globals, element offsets, and data
// offsets. It must be called, and must succeed, before a Module is handed
// to the link pass.
func (m *Module) Validate(enabledFeatures Features) error {
	functions, globals, table, memory := m.AllDeclarations()

	if err := m.validateStartSection(); err != nil {
		return err
	}
	if err := m.validateGlobals(globals); err != nil {
		return err
	}
	if err := m.validateFunctions(enabledFeatures, functions, globals, memory, table); err != nil {
		return err
	}
	if err := m.validateTable(table, globals); err != nil {
		return err
	}
	if err := m.validateMemory(memory, globals); err != nil {
		return err
	}
	if err := m.validateExports(functions, globals, memory, table); err != nil {
		return err
	}
	return nil
}

// validateStartSection checks that the start function, if present, has
// signature () -> ().
func (m *Module) validateStartSection() error {
	if m.StartSection == nil {
		return nil
	}
	index := *m.StartSection
	functions, _, _, _ := m.AllDeclarations()
	if index >= uint32(len(functions)) {
		return fmt.Errorf("start function index out of range: %d", index)
	}
	typeIndex := functions[index]
	if typeIndex >= uint32(len(m.TypeSection)) {
		return fmt.Errorf("start function type index out of range: %d", typeIndex)
	}
	ft := m.TypeSection[typeIndex]
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function must have an empty (null_null) signature, but has %s", ft.String())
	}
	return nil
}

// validateGlobals checks each locally-defined global's initializer is a
// valid constant expression of the declared type.
func (m *Module) validateGlobals(globalDeclarations []*GlobalType) error {
	importedCount := m.ImportGlobalCount()
	for i, g := range m.GlobalSection {
		// Only imported globals (preceding this one in index space) may be
		// referenced by global.get in a constant expression.
		visibleGlobals := globalDeclarations[:importedCount]
		if err := validateConstExpression(visibleGlobals, g.Init, g.Type.ValType); err != nil {
			return fmt.Errorf("invalid global[%d] init expression: %w", i, err)
		}
	}
	return nil
}

// validateFunctions runs the type-stack simulation
// over every locally-defined function body.
func (m *Module) validateFunctions(enabledFeatures Features, functions []Index, globals []*GlobalType, memory *Memory, table *Table) error {
	n := len(m.FunctionSection)
	if len(m.CodeSection) != n {
		return fmt.Errorf("code count (%d) does not match function count (%d)", len(m.CodeSection), n)
	}
	if n == 0 {
		return nil
	}
	importedFuncs := m.ImportFuncCount()
	for codeIndex, typeIndex := range m.FunctionSection {
		if typeIndex >= uint32(len(m.TypeSection)) {
			return fmt.Errorf("function type index out of range: %d", typeIndex)
		}
		code := m.CodeSection[codeIndex]
		funcIndex := importedFuncs + uint32(codeIndex)
		if err := validateFunction(enabledFeatures, m.TypeSection[typeIndex], code.Body, code.LocalTypes,
			functions, globals, memory, table, m.TypeSection, maxStackValues); err != nil {
			return fmt.Errorf("invalid function (%d/%d): %w", funcIndex, typeIndex, err)
		}
	}
	return nil
}

// validateTable checks the baseline-profile table limits and that every
// element segment's target table index and constant-expression offset are
// valid.
func (m *Module) validateTable(table *Table, globals []*GlobalType) error {
	if table != nil {
		if err := validateLimits(table.Min, table.Max); err != nil {
			return fmt.Errorf("invalid table limits: %w", err)
		}
	}
	for i, elem := range m.ElementSection {
		if table == nil || elem.TableIndex != 0 {
			return fmt.Errorf("element segment[%d]: table index out of range: %d", i, elem.TableIndex)
		}
		if err := validateConstExpression(globals, elem.OffsetExpr, ValueTypeI32); err != nil {
			return fmt.Errorf("element segment[%d]: %w", i, err)
		}
	}
	return nil
}

// validateMemory checks the baseline-profile memory limits (memory max
// <= 65536 pages) and that every data segment's target memory index and
// constant-expression offset are valid.
func (m *Module) validateMemory(memory *Memory, globals []*GlobalType) error {
	if memory != nil {
		var max *uint32
		if memory.IsMaxEncoded {
			v := memory.Max
			max = &v
		}
		if err := validateLimits(memory.Min, max); err != nil {
			return fmt.Errorf("invalid memory limits: %w", err)
		}
		if memory.IsMaxEncoded && memory.Max > MemoryMaxPages {
			return fmt.Errorf("memory max %d pages exceeds limit %d", memory.Max, MemoryMaxPages)
		}
	}
	for i, d := range m.DataSection {
		if memory == nil {
			return fmt.Errorf("data segment[%d]: unknown memory", i)
		}
		if d.MemoryIndex != 0 {
			return fmt.Errorf("data segment[%d]: memory index must be zero", i)
		}
		if err := validateConstExpression(globals, d.OffsetExpression, ValueTypeI32); err != nil {
			return fmt.Errorf("data segment[%d]: %w", i, err)
		}
	}
	return nil
}

// validateLimits checks min <= max, the shared invariant behind both table
// and memory limits.
func validateLimits(min uint32, max *uint32) error {
	if max != nil && min > *max {
		return fmt.Errorf("min %d is greater than max %d", min, *max)
	}
	return nil
}

// validateExports checks every export's index is in range for its
// declared kind. Export names are not checked here: ExportSection is keyed
// by name, and the binary decoder rejects a duplicate name.
func (m *Module) validateExports(functions []Index, globals []*GlobalType, memory *Memory, table *Table) error {
	for name, export := range m.ExportSection {
		switch export.Type {
		case ExternTypeFunc:
			if export.Index >= uint32(len(functions)) {
				return fmt.Errorf("export[%s]: function index out of range: %d", name, export.Index)
			}
		case ExternTypeGlobal:
			if export.Index >= uint32(len(globals)) {
				return fmt.Errorf("export[%s]: global index out of range: %d", name, export.Index)
			}
		case ExternTypeTable:
			if table == nil || export.Index != 0 {
				return fmt.Errorf("export[%s]: table index out of range: %d", name, export.Index)
			}
		case ExternTypeMemory:
			if memory == nil || export.Index != 0 {
				return fmt.Errorf("export[%s]: memory index out of range: %d", name, export.Index)
			}
		default:
			return fmt.Errorf("export[%s]: unknown extern type %#x", name, export.Type)
		}
	}
	return nil
}
