// Package environment implements the orchestrator that owns a growing set
// of modules, native embeddings, and an optional import whitelist, and
// drives them through loading, linking, and backend compilation.
//
// Module admission is safe for concurrent use: AddModule may be called
// from multiple goroutines, bounded by Config.WithMaxLoaders, while the
// finalize/compile/destroy lifecycle methods are expected to be called
// from a single coordinating goroutine once loading is complete.
package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wasmaot/wasmaot/internal/backend"
	"github.com/wasmaot/wasmaot/internal/text"
	"github.com/wasmaot/wasmaot/internal/wasm"
	"github.com/wasmaot/wasmaot/internal/wasm/binary"
)

// embedding is one native library contributing importable symbols.
type embedding struct {
	path    string
	symbols []string
}

// whitelistEntry optionally constrains an allowed (module, export) import
// pair to a specific function signature.
type whitelistEntry struct {
	signature *wasm.FunctionType
}

// Environment collects modules and native embeddings, links them against
// each other, and hands the result to a Backend for compilation.
type Environment struct {
	cfg *Config

	libraryPath string
	log         *zap.Logger

	loaderGate *semaphore.Weighted // nil when not multithreaded

	mu         sync.Mutex
	cond       *sync.Cond
	size       int // slots reserved (AddModule calls admitted so far)
	nLoaded    int // modules that have finished loading
	modules    []*wasm.Module
	whitelist  map[string]whitelistEntry
	embeddings []embedding
	cimports   map[string]struct{} // canonical names available from embeddings

	finalized bool
	destroyed bool

	backend backend.Backend
}

// New creates an Environment. argv0 is the invoking program's own path,
// used to derive the default embedding search directory when
// Config.WithLibraryPath was not set.
func New(argv0 string, cfg *Config) *Environment {
	if cfg == nil {
		cfg = NewConfig()
	}
	libPath := cfg.libraryPath
	if libPath == "" {
		if abs, err := filepath.Abs(argv0); err == nil {
			libPath = filepath.Dir(abs)
		}
	}
	env := &Environment{
		cfg:         cfg,
		libraryPath: libPath,
		log:         cfg.log,
		whitelist:   make(map[string]whitelistEntry),
		cimports:    make(map[string]struct{}),
		backend:     cfg.backend,
	}
	env.cond = sync.NewCond(&env.mu)
	if cfg.multithreaded && cfg.maxLoaders > 0 {
		env.loaderGate = semaphore.NewWeighted(int64(cfg.maxLoaders))
	}
	return env
}

// AddModule loads and admits a module from raw bytes, in either the binary
// or (if Config.WithTextEnabled) textual format, auto-detected from the
// first byte. When Config.WithMultithreaded is set, loading happens on a
// separate goroutine bounded by Config.WithMaxLoaders; AddModule itself
// never blocks on that goroutine's completion.
//
// The admission gate is acquired before the module's slot is reserved: if
// the gate were acquired after reservation, every in-flight loader could be
// waiting on a slot that a not-yet-scheduled goroutine is supposed to fill,
// deadlocking the whole environment.
func (e *Environment) AddModule(ctx context.Context, data []byte, name string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinalized
	}
	e.mu.Unlock()

	if e.loaderGate != nil {
		if err := e.loaderGate.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	e.mu.Lock()
	slot := e.size
	e.size++
	e.growLocked(slot + 1)
	e.mu.Unlock()

	load := func() {
		defer func() {
			if e.loaderGate != nil {
				e.loaderGate.Release(1)
			}
			e.mu.Lock()
			e.nLoaded++
			e.cond.Broadcast()
			e.mu.Unlock()
		}()
		m, err := e.loadModule(data, name)
		e.mu.Lock()
		if err != nil {
			e.log.Warn("module load failed", zap.String("module", name), zap.Error(err))
			e.modules[slot] = nil
		} else {
			e.modules[slot] = m
		}
		e.mu.Unlock()
	}

	if e.cfg.multithreaded {
		go load()
		return nil
	}
	load()
	return nil
}

// growLocked ensures e.modules has room for at least n entries, spinning
// (via the condition variable, not a busy loop) until every previously
// reserved slot has finished loading before reallocating, so a concurrent
// loader never writes past a slice a grow is about to replace. If another
// caller's grow makes room for n entries while this one waits, it returns
// without growing.
func (e *Environment) growLocked(n int) {
	for n > len(e.modules) && e.nLoaded < len(e.modules) {
		e.cond.Wait()
	}
	if n <= len(e.modules) {
		return
	}
	grown := make([]*wasm.Module, n)
	copy(grown, e.modules)
	e.modules = grown
	e.cond.Broadcast()
}

// loadModule performs format detection and delegates to the binary decoder
// or, when enabled, the text parser.
func (e *Environment) loadModule(data []byte, name string) (*wasm.Module, error) {
	var m *wasm.Module
	var err error
	if e.cfg.textEnabled && len(data) > 0 && data[0] != 0x00 {
		m, err = text.ParseModule(data, e.cfg.features)
	} else {
		m, err = binary.DecodeModule(data, e.cfg.debug)
	}
	if err != nil {
		return nil, err
	}
	m.Name = name
	if err := m.Validate(e.cfg.features); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return m, nil
}

// AddWhitelist permits imports of the given (module, export) pair. When
// signature is non-nil, the import is additionally required to match that
// exact function signature; a nil signature permits any signature.
func (e *Environment) AddWhitelist(moduleName, exportName string, signature *wasm.FunctionType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.whitelist[CanonicalName(moduleName, exportName)] = whitelistEntry{signature: signature}
	return nil
}

// AddEmbedding registers a native library as a source of importable
// symbols. At Finalize, a path that isn't absolute is looked up under the
// library path (Config.WithLibraryPath, by default the directory of New's
// argv0), then as given, then under /usr/lib on POSIX.
func (e *Environment) AddEmbedding(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.finalized {
		return ErrAlreadyFinalized
	}
	e.embeddings = append(e.embeddings, embedding{path: path})
	return nil
}

// resolvePath locates an embedding relative to the configured library path,
// then as given, falling back to the platform default library directory
// (/usr/lib on POSIX). If none exists, path is returned unchanged.
func (e *Environment) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if e.libraryPath != "" {
		candidate := filepath.Join(e.libraryPath, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if filepath.Separator == '/' {
		candidate := filepath.Join("/usr/lib", path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}

// Finalize reads every registered embedding's symbol table and merges it
// into the set of names the link pass may resolve imports against. It must
// be called at most once, after the last AddEmbedding/AddWhitelist call and
// before Compile.
func (e *Environment) Finalize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.finalized {
		return ErrAlreadyFinalized
	}

	whitelistOnly := e.cfg.whitelistEnabled && len(e.whitelist) == 0
	if !whitelistOnly {
		for i := range e.embeddings {
			resolved := e.resolvePath(e.embeddings[i].path)
			data, err := os.ReadFile(resolved)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidEmbedding, e.embeddings[i].path, err)
			}
			syms, err := readSymbols(resolved, data)
			if err != nil {
				return err
			}
			e.embeddings[i].symbols = syms
			for _, s := range syms {
				if _, dup := e.cimports[s]; dup && !tolerateDuplicateSymbols {
					return fmt.Errorf("%w: duplicate symbol %q from %s", ErrInvalidEmbedding, s, e.embeddings[i].path)
				}
				e.cimports[s] = struct{}{}
			}
			e.log.Debug("embedding loaded", zap.String("path", resolved), zap.Int("symbols", len(syms)))
		}
	}

	for e.nLoaded < e.size {
		e.cond.Wait()
	}
	e.finalized = true
	return nil
}

// Compile runs the link pass over every admitted module and, on success,
// hands the linked module graph to the configured Backend.
func (e *Environment) Compile(outputPath string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if !e.finalized {
		e.mu.Unlock()
		return fmt.Errorf("environment: Compile called before Finalize")
	}
	modules := make([]*wasm.Module, len(e.modules))
	copy(modules, e.modules)
	byName := make(map[string]*wasm.Module, len(modules))
	for _, m := range modules {
		if m == nil {
			continue
		}
		if _, dup := byName[m.Name]; dup {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateModuleName, m.Name)
		}
		byName[m.Name] = m
	}
	whitelist := e.whitelist
	cimports := e.cimports
	whitelistEnabled := e.cfg.whitelistEnabled
	b := e.backend
	e.mu.Unlock()

	if err := link(modules, byName, whitelist, cimports, whitelistEnabled); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("environment: Compile called with no backend configured")
	}
	return b.CompileEnvironment(modules, outputPath)
}

// ClearCache discards backend-opaque compilation state for every module,
// forcing the next Compile to regenerate it from scratch.
func (e *Environment) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.modules {
		if m == nil {
			continue
		}
		m.ClearCache()
		if e.backend != nil {
			e.backend.DeleteCache(m)
		}
	}
}

// Destroy releases all backend-held state. When permanent is false, the
// Environment's backend remains usable for further environments in the
// same process.
func (e *Environment) Destroy(permanent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.backend != nil {
		e.backend.DeleteContext(permanent)
	}
	e.destroyed = true
}
