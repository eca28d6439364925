// Package backend declares the adapter surface a native code generator
// implements. The code generator itself is an external collaborator: this
// package only describes the interface the environment's link pass hands
// a validated module graph to, and the interface method names are kept
// identical to innative's tools.cpp calls (CompileEnvironment, DeleteCache,
// DeleteContext) for traceability back to the source this package was
// distilled from. GetSymbols has no counterpart here: native symbol
// enumeration from an embedding is done directly by the environment
// package (via debug/elf, debug/macho, debug/pe), not delegated to the
// backend.
package backend

import "github.com/wasmaot/wasmaot/internal/wasm"

// Backend is implemented by the native code generator. The environment
// never inspects its internals; it only calls these three operations:
// CompileEnvironment once a module graph has passed validation and
// linking, and DeleteCache/DeleteContext from ClearCache/Destroy.
type Backend interface {
	// CompileEnvironment emits a native object or shared library for every
	// module in modules to outputPath.
	CompileEnvironment(modules []*wasm.Module, outputPath string) error

	// DeleteCache discards a single module's backend-opaque compilation
	// cache.
	DeleteCache(m *wasm.Module)

	// DeleteContext releases all backend-held state. When permanent is
	// false, the backend must remain usable for further compilations in
	// the same process (mirrors innative's inability to permanently shut
	// down its LLVM context mid-process).
	DeleteContext(permanent bool)
}
