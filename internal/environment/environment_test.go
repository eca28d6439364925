package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

type fakeBackend struct {
	compiled     [][]*wasm.Module
	outputPath   string
	cacheCleared []*wasm.Module
	destroyed    []bool
}

func (f *fakeBackend) CompileEnvironment(modules []*wasm.Module, outputPath string) error {
	f.compiled = append(f.compiled, modules)
	f.outputPath = outputPath
	return nil
}

func (f *fakeBackend) DeleteCache(m *wasm.Module) { f.cacheCleared = append(f.cacheCleared, m) }

func (f *fakeBackend) DeleteContext(permanent bool) { f.destroyed = append(f.destroyed, permanent) }

const producerSrc = `(module
	(func $add (param i32 i32) (result i32)
		local.get 0
		local.get 1
		i32.add)
	(export "add" (func $add)))`

const consumerSrc = `(module (import "producer" "add" (func $add (param i32 i32) (result i32))))`

func TestEnvironment_addFinalizeCompile(t *testing.T) {
	fb := &fakeBackend{}
	cfg := NewConfig().WithTextEnabled(true).WithBackend(fb)
	env := New("wasmaotc", cfg)

	require.NoError(t, env.AddModule(context.Background(), []byte(producerSrc), "producer"))
	require.NoError(t, env.AddModule(context.Background(), []byte(consumerSrc), "consumer"))
	require.NoError(t, env.Finalize())
	require.NoError(t, env.Compile("out.o"))

	require.Len(t, fb.compiled, 1)
	require.Len(t, fb.compiled[0], 2)
	require.Equal(t, "out.o", fb.outputPath)
}

func TestEnvironment_compileBeforeFinalizeFails(t *testing.T) {
	env := New("wasmaotc", NewConfig().WithTextEnabled(true))
	require.NoError(t, env.AddModule(context.Background(), []byte(producerSrc), "producer"))
	require.Error(t, env.Compile("out.o"))
}

func TestEnvironment_unresolvedImportFailsCompile(t *testing.T) {
	fb := &fakeBackend{}
	env := New("wasmaotc", NewConfig().WithTextEnabled(true).WithBackend(fb))
	require.NoError(t, env.AddModule(context.Background(), []byte(consumerSrc), "consumer"))
	require.NoError(t, env.Finalize())
	err := env.Compile("out.o")
	require.ErrorIs(t, err, ErrUnresolvedImport)
}

func TestEnvironment_addModuleAfterFinalizeFails(t *testing.T) {
	env := New("wasmaotc", NewConfig().WithTextEnabled(true))
	require.NoError(t, env.Finalize())
	err := env.AddModule(context.Background(), []byte(producerSrc), "producer")
	require.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestEnvironment_destroyThenUseFails(t *testing.T) {
	fb := &fakeBackend{}
	env := New("wasmaotc", NewConfig().WithTextEnabled(true).WithBackend(fb))
	env.Destroy(true)
	require.Equal(t, []bool{true}, fb.destroyed)

	err := env.AddModule(context.Background(), []byte(producerSrc), "producer")
	require.ErrorIs(t, err, ErrDestroyed)
}

func TestEnvironment_multithreadedAddModule(t *testing.T) {
	fb := &fakeBackend{}
	cfg := NewConfig().WithTextEnabled(true).WithMultithreaded(true).WithMaxLoaders(2).WithBackend(fb)
	env := New("wasmaotc", cfg)

	require.NoError(t, env.AddModule(context.Background(), []byte(producerSrc), "producer"))
	require.NoError(t, env.AddModule(context.Background(), []byte(consumerSrc), "consumer"))
	require.NoError(t, env.Finalize())
	require.NoError(t, env.Compile("out.o"))
	require.Len(t, fb.compiled[0], 2)
}

func TestEnvironment_invalidModuleFailsLoad(t *testing.T) {
	env := New("wasmaotc", NewConfig().WithTextEnabled(true))
	require.NoError(t, env.AddModule(context.Background(), []byte(`(module (func (result i32)))`), "bad"))
	require.NoError(t, env.Finalize())
	var gotNil bool
	for _, m := range env.modules {
		if m == nil {
			gotNil = true
		}
	}
	require.True(t, gotNil, "invalid module should load as nil, not abort AddModule")
}
