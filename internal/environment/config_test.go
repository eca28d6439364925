package environment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmaot/wasmaot/internal/wasm"
)

func TestNewConfig_defaults(t *testing.T) {
	cfg := NewConfig()
	require.True(t, cfg.sandbox)
	require.Equal(t, OptimizationO3, cfg.optimization)
	require.Equal(t, wasm.FeaturesAll, cfg.features)
	require.False(t, cfg.whitelistEnabled)
	require.False(t, cfg.multithreaded)
}

func TestConfig_withMethodsDoNotMutateReceiver(t *testing.T) {
	base := NewConfig()
	derived := base.WithSandbox(false).WithOptimizationLevel(OptimizationO0)

	require.True(t, base.sandbox)
	require.Equal(t, OptimizationO3, base.optimization)
	require.False(t, derived.sandbox)
	require.Equal(t, OptimizationO0, derived.optimization)
}

func TestConfig_withLoggerNilFallsBackToNop(t *testing.T) {
	cfg := NewConfig().WithLogger(nil)
	require.NotNil(t, cfg.log)
}
