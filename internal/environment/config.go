package environment

import (
	"go.uber.org/zap"

	"github.com/wasmaot/wasmaot/internal/backend"
	"github.com/wasmaot/wasmaot/internal/wasm"
)

// OptimizationLevel selects the backend's codegen optimization tier.
type OptimizationLevel int

const (
	OptimizationO0 OptimizationLevel = iota
	OptimizationO1
	OptimizationO2
	OptimizationO3
)

// Config is the immutable-builder configuration for an Environment: every
// With* method returns a clone, leaving the receiver untouched.
type Config struct {
	sandbox          bool
	whitelistEnabled bool
	textEnabled      bool
	multithreaded    bool
	debug            bool
	strict           bool
	optimization     OptimizationLevel
	features         wasm.Features
	maxLoaders       int
	libraryPath      string
	system           string
	log              *zap.Logger
	backend          backend.Backend
}

// defaultConfig matches innative::CreateEnvironment's defaults: sandboxed,
// O3, every feature this toolchain understands enabled.
var defaultConfig = &Config{
	sandbox:      true,
	optimization: OptimizationO3,
	features:     wasm.FeaturesAll,
	log:          zap.NewNop(),
}

// NewConfig returns a Config with the default flags an Environment is
// created with, before any With* overrides.
func NewConfig() *Config {
	return defaultConfig.clone()
}

func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// WithSandbox toggles whether generated code may perform direct syscalls.
// Defaults to true.
func (c *Config) WithSandbox(enabled bool) *Config {
	ret := c.clone()
	ret.sandbox = enabled
	return ret
}

// WithWhitelistEnabled toggles enforcement of the import whitelist against
// embedded native symbols. Defaults to false.
func (c *Config) WithWhitelistEnabled(enabled bool) *Config {
	ret := c.clone()
	ret.whitelistEnabled = enabled
	return ret
}

// WithTextEnabled toggles whether AddModule accepts the textual S-expression
// format in addition to the binary format. Defaults to false.
func (c *Config) WithTextEnabled(enabled bool) *Config {
	ret := c.clone()
	ret.textEnabled = enabled
	return ret
}

// WithMultithreaded toggles bounded parallel module loading. Defaults to
// false; when false, AddModule always loads synchronously regardless of
// WithMaxLoaders.
func (c *Config) WithMultithreaded(enabled bool) *Config {
	ret := c.clone()
	ret.multithreaded = enabled
	return ret
}

// WithDebug toggles decoding the "name" custom section and emitting debug
// info. Defaults to false.
func (c *Config) WithDebug(enabled bool) *Config {
	ret := c.clone()
	ret.debug = enabled
	return ret
}

// WithStrict toggles rejection of constructs the WebAssembly spec merely
// discourages rather than forbids. Defaults to false.
func (c *Config) WithStrict(enabled bool) *Config {
	ret := c.clone()
	ret.strict = enabled
	return ret
}

// WithOptimizationLevel sets the backend codegen optimization tier.
func (c *Config) WithOptimizationLevel(level OptimizationLevel) *Config {
	ret := c.clone()
	ret.optimization = level
	return ret
}

// WithFeatures sets the enabled optional-feature bitmap wholesale.
func (c *Config) WithFeatures(features wasm.Features) *Config {
	ret := c.clone()
	ret.features = features
	return ret
}

// WithMaxLoaders bounds the number of modules concurrently decoded/parsed
// when WithMultithreaded is set. Zero means unbounded.
func (c *Config) WithMaxLoaders(n int) *Config {
	ret := c.clone()
	ret.maxLoaders = n
	return ret
}

// WithLogger sets the structured logger used for module load failures
// (Warn) and for each embedding read at Finalize (Debug). Defaults to a
// no-op logger.
func (c *Config) WithLogger(log *zap.Logger) *Config {
	ret := c.clone()
	if log == nil {
		log = zap.NewNop()
	}
	ret.log = log
	return ret
}

// WithLibraryPath overrides the default embedding search path, which
// otherwise defaults to the calling program's own directory.
func (c *Config) WithLibraryPath(path string) *Config {
	ret := c.clone()
	ret.libraryPath = path
	return ret
}

// WithSystem stores an opaque string on the Config. The Environment does
// not read it, and it is not passed to the backend: CompileEnvironment
// receives only the modules and the output path.
func (c *Config) WithSystem(system string) *Config {
	ret := c.clone()
	ret.system = system
	return ret
}

// WithBackend sets the native code generator the environment hands a
// validated, linked module graph to at Compile time.
func (c *Config) WithBackend(b backend.Backend) *Config {
	ret := c.clone()
	ret.backend = b
	return ret
}
