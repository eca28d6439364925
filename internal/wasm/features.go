package wasm

// Features is a bitset gating optional WebAssembly spec features beyond
// the 2019 MVP baseline. No flag has the
// value zero: a Features value of zero unambiguously means "no optional
// features enabled" rather than colliding with an unset flag.
type Features uint64

const (
	FeatureSignExtensionOps Features = 1 << iota
	FeatureMultiValue
	FeatureBulkMemoryOperations
	FeatureNonTrappingFloatToIntConversion
	FeatureReferenceTypes
)

// FeaturesBaseline enables no optional feature: the 2019 MVP plus nothing.
const FeaturesBaseline Features = 0

// FeaturesAll enables every optional feature this toolchain understands,
// matching innative's ENV_FEATURE_ALL default (see original_source) carried
// into the environment Config's defaults.
const FeaturesAll Features = FeatureSignExtensionOps | FeatureMultiValue |
	FeatureBulkMemoryOperations | FeatureNonTrappingFloatToIntConversion | FeatureReferenceTypes

// Get reports whether the given single-bit feature flag is enabled.
func (f Features) Get(feature Features) bool {
	return f&feature != 0
}

// Set returns a copy of f with the given single-bit feature flag set to
// the given value.
func (f Features) Set(feature Features, val bool) Features {
	if val {
		return f | feature
	}
	return f &^ feature
}

// featureName returns a human-readable name for a single feature flag, for
// use in "invalid as feature X is disabled" validator/parser errors.
func featureName(feature Features) string {
	switch feature {
	case FeatureSignExtensionOps:
		return "sign-extension-ops"
	case FeatureMultiValue:
		return "multi-value"
	case FeatureBulkMemoryOperations:
		return "bulk-memory-operations"
	case FeatureNonTrappingFloatToIntConversion:
		return "nontrapping-float-to-int-conversion"
	case FeatureReferenceTypes:
		return "reference-types"
	}
	return "unknown"
}
