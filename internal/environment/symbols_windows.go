//go:build windows

package environment

// tolerateDuplicateSymbols is true on Windows: multiple embeddings may
// legitimately define the same symbol (e.g. a DLL re-exporting its
// dependencies' symbols), so a later embedding silently shadows an earlier
// one instead of failing.
const tolerateDuplicateSymbols = true
