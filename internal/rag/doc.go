// Package rag implements the retrieval-augmented answering pipeline:
// query intent classification, embedding, tenancy-scoped retrieval,
// re-ranking and deduplication, skill-based prompt assembly, and
// grounded synthesis with numbered citations.
//
// The hard invariant of the package is abstention: when retrieval
// yields no usable context, the pipeline returns the fixed abstention
// message and never calls the generation model. An answer without
// retrieved context cannot be grounded, so it is not produced.
package rag
