// Package knowledge implements the multi-tenant vector store client.
//
// Records are chunks of ingested content (documentation, tickets, code,
// communications, crawled pages, metrics) stored in PostgreSQL with a
// pgvector embedding column. Every read and write is scoped to a
// tenant.Tenancy triple; the store refuses calls with an invalid triple.
//
// The store does not compute embeddings. Callers supply query and
// record vectors, which keeps the embedding provider boundary (and its
// failure modes) out of the storage layer.
//
// Low-level pgx errors never escape this package: they are converted to
// the ErrStoreUnavailable / ErrInvalidInput taxonomy at the boundary so
// orchestration code can decide to abstain instead of failing hard.
package knowledge
