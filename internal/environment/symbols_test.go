package environment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSymbols_unrecognizedFormat(t *testing.T) {
	_, err := readSymbols("bogus.bin", []byte("not an object file"))
	require.ErrorIs(t, err, ErrInvalidEmbedding)
}
