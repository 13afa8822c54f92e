package knowledge

import "errors"

// Error taxonomy for the store boundary. Orchestration code matches
// these with errors.Is and never sees raw pgx errors.
var (
	// ErrStoreUnavailable indicates the vector store is unreachable or
	// timed out. Read paths treat this as "no results" and abstain.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrInvalidInput indicates a malformed record, tenancy or argument.
	// Never retried; reported to the caller as a 4xx-equivalent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
)
