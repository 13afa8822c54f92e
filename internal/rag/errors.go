package rag

import "errors"

var (
	// ErrProviderUnavailable indicates the embedding or generation
	// provider failed or timed out. The pipeline degrades to abstention
	// rather than retrying indefinitely.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrInvalidQuery indicates an empty or unusable query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDimensionMismatch indicates the provider returned a vector
	// whose dimension does not match the configured store schema.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
