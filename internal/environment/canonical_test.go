package environment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalName(t *testing.T) {
	require.Equal(t, "math#add", CanonicalName("math", "add"))
}

func TestCanonicalName_escapesSeparatorAndPercent(t *testing.T) {
	require.Equal(t, "a%23b#c%25d", CanonicalName("a#b", "c%d"))
}

func TestCanonicalName_distinctFromAmbiguousConcatenation(t *testing.T) {
	// "a#b" + "#" + "c" must not collide with "a" + "#" + "b#c": percent
	// escaping the literal '#' in either component keeps the split point
	// unambiguous.
	require.NotEqual(t, CanonicalName("a#b", "c"), CanonicalName("a", "b#c"))
}
