package environment

import "errors"

// Sentinel errors returned by Environment operations, grouped by the
// stage of the pipeline that detects them: admission, linking, and
// finalization.
var (
	// ErrDuplicateModuleName is returned by Compile when two added modules
	// share a Name.
	ErrDuplicateModuleName = errors.New("environment: duplicate module name")

	// ErrUnresolvedImport is returned by the link pass when an import
	// matches neither another module's export nor a whitelisted native
	// symbol.
	ErrUnresolvedImport = errors.New("environment: unresolved import")

	// ErrWhitelistViolation is returned by the link pass when whitelisting
	// is enabled and an import's (module, export) pair, or its signature,
	// is not present in the whitelist.
	ErrWhitelistViolation = errors.New("environment: import not in whitelist")

	// ErrInvalidEmbedding is returned by Finalize when a
	// native library cannot be read, or (on POSIX, where duplicate symbols
	// are not tolerated) defines a symbol already provided by a prior
	// embedding.
	ErrInvalidEmbedding = errors.New("environment: invalid embedding")

	// ErrValidationFailed wraps a module's single-module validation
	// failure. AddModule does not return it: the loader logs the failure
	// and leaves the module's slot nil, and Compile's link pass skips nil
	// slots, so Compile does not report it either.
	ErrValidationFailed = errors.New("environment: module validation failed")

	// ErrDestroyed is returned by AddModule, AddWhitelist, AddEmbedding,
	// Finalize and Compile once Destroy has been called.
	ErrDestroyed = errors.New("environment: use after destroy")

	// ErrAlreadyFinalized is returned by AddEmbedding or AddWhitelist once
	// Finalize has already run.
	ErrAlreadyFinalized = errors.New("environment: already finalized")
)
