package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/tenant"
)

// Embedder turns document content into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Upserter is the write surface of the knowledge store.
type Upserter interface {
	Upsert(ctx context.Context, tn tenant.Tenancy, rec knowledge.Record) error
}

// Document is one unit of content prepared for ingestion. Embedding
// happens inside the ingester, so callers only supply text.
type Document struct {
	SourceType knowledge.SourceType `json:"source_type"`
	SourceID   string               `json:"source_id"`
	Content    string               `json:"content"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
}

// Failure records one skipped document in a batch.
type Failure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// Summary reports the outcome of a batch. A batch with failures is not
// an error: the succeeded documents are durable and the caller decides
// whether to retry the rest.
type Summary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Ingester embeds and upserts documents in batches.
type Ingester struct {
	embedder Embedder
	store    Upserter
	logger   *slog.Logger
}

// NewIngester creates an Ingester. logger may be nil.
func NewIngester(embedder Embedder, store Upserter, logger *slog.Logger) (*Ingester, error) {
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("embedder and store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{embedder: embedder, store: store, logger: logger}, nil
}

// IngestBatch processes docs sequentially, skipping failed documents
// and continuing. Re-running the same batch is safe: upserts are
// idempotent on (tenancy, source_type, source_id).
//
// The returned error is non-nil only for batch-level problems (invalid
// tenancy, canceled context); per-document failures live in the
// Summary.
func (i *Ingester) IngestBatch(ctx context.Context, tn tenant.Tenancy, docs []Document) (Summary, error) {
	summary := Summary{Total: len(docs)}
	if err := tn.Validate(); err != nil {
		return summary, fmt.Errorf("%w: %w", knowledge.ErrInvalidInput, err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("batch aborted: %w", err)
		}
		if err := i.ingestOne(ctx, tn, doc); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				SourceID: doc.SourceID,
				Reason:   err.Error(),
			})
			i.logger.Warn("skipping document",
				"tenancy", tn.String(),
				"source_type", doc.SourceType,
				"source_id", doc.SourceID,
				"error", err)
			continue
		}
		summary.Succeeded++
	}

	i.logger.Info("batch ingested",
		"tenancy", tn.String(),
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
	return summary, nil
}

func (i *Ingester) ingestOne(ctx context.Context, tn tenant.Tenancy, doc Document) error {
	content := knowledge.SanitizeContent(doc.Content)
	if content == "" {
		return fmt.Errorf("%w: content empty after sanitization", knowledge.ErrInvalidInput)
	}

	vec, err := i.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding document: %w", err)
	}

	return i.store.Upsert(ctx, tn, knowledge.Record{
		SourceType: doc.SourceType,
		SourceID:   doc.SourceID,
		Content:    content,
		Embedding:  vec,
		Metadata:   doc.Metadata,
	})
}
