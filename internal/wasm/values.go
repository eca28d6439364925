package wasm

import "github.com/wasmaot/wasmaot/api"

// ValueType is re-exported from api so the rest of the ingestion/validation
// pipeline has a single import to reason about.
type ValueType = api.ValueType

const (
	ValueTypeI32     = api.ValueTypeI32
	ValueTypeI64     = api.ValueTypeI64
	ValueTypeF32     = api.ValueTypeF32
	ValueTypeF64     = api.ValueTypeF64
	ValueTypeFuncref = api.ValueTypeFuncref
)

// ValueTypeName is re-exported from api.
var ValueTypeName = api.ValueTypeName

// valueTypeUnknown is used internally by the validator to mean "no value
// expected here" without colliding with any real value type encoding.
const valueTypeUnknown ValueType = 0x00

// ExternType is re-exported from api.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
)

// ExternTypeName is re-exported from api.
var ExternTypeName = api.ExternTypeName

// Index is a numeric index into one of a module's sections: types, funcs,
// tables, mems, globals. Imports defined in a module are counted before any
// locally-defined entries of the same kind, per the WebAssembly spec.
type Index = uint32
