package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFeatures_ZeroIsInvalid reminds maintainers that a bitset cannot use zero as a flag!
// This is why the flags are 1 << iota, so the first flag is 1.
func TestFeatures_ZeroIsInvalid(t *testing.T) {
	f := Features(0)
	f = f.Set(0, true)
	require.False(t, f.Get(0))
}

func TestFeatures(t *testing.T) {
	tests := []struct {
		name    string
		feature Features
	}{
		{name: "sign-extension-ops", feature: FeatureSignExtensionOps},
		{name: "reference-types is the largest flag", feature: FeatureReferenceTypes},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			f := Features(0)

			require.False(t, f.Get(tc.feature))

			f = f.Set(tc.feature, true)
			require.True(t, f.Get(tc.feature))

			f = f.Set(tc.feature, false)
			require.False(t, f.Get(tc.feature))
		})
	}
}

func TestFeatures_Name(t *testing.T) {
	tests := []struct {
		feature  Features
		expected string
	}{
		{feature: FeatureSignExtensionOps, expected: "sign-extension-ops"},
		{feature: FeatureMultiValue, expected: "multi-value"},
		{feature: FeatureBulkMemoryOperations, expected: "bulk-memory-operations"},
		{feature: FeatureNonTrappingFloatToIntConversion, expected: "nontrapping-float-to-int-conversion"},
		{feature: FeatureReferenceTypes, expected: "reference-types"},
		{feature: 1 << 63, expected: "unknown"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, featureName(tc.feature))
		})
	}
}

func TestFeaturesAll(t *testing.T) {
	require.True(t, FeaturesAll.Get(FeatureSignExtensionOps))
	require.True(t, FeaturesAll.Get(FeatureMultiValue))
	require.True(t, FeaturesAll.Get(FeatureBulkMemoryOperations))
	require.True(t, FeaturesAll.Get(FeatureNonTrappingFloatToIntConversion))
	require.True(t, FeaturesAll.Get(FeatureReferenceTypes))
	require.False(t, FeaturesBaseline.Get(FeatureSignExtensionOps))
}
