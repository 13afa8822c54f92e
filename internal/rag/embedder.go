package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// embedTimeout bounds a single provider round trip.
const embedTimeout = 10 * time.Second

// maxEmbedChars caps the text handed to the provider. Both embedding
// models reject inputs past roughly 2048 tokens; 8000 characters stays
// safely under that for any realistic tokenization.
const maxEmbedChars = 8000

// EmbeddingAdapter wraps a Genkit embedder with the dimension contract
// of the vector store: vectors are requested at the configured
// dimension (the provider truncates) and a response of any other
// dimension is rejected before it can reach the store.
type EmbeddingAdapter struct {
	embedder  ai.Embedder
	dimension int32
	logger    *slog.Logger
}

// NewEmbeddingAdapter creates an adapter producing dimension-sized
// vectors. logger may be nil.
func NewEmbeddingAdapter(embedder ai.Embedder, dimension int, logger *slog.Logger) (*EmbeddingAdapter, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingAdapter{embedder: embedder, dimension: int32(dimension), logger: logger}, nil
}

// Dimension returns the configured vector dimension.
func (a *EmbeddingAdapter) Dimension() int {
	return int(a.dimension)
}

// Embed generates a vector for one text. Texts past the provider input
// limit are truncated rather than rejected. Provider failures and
// timeouts come back wrapping ErrProviderUnavailable; a wrong-sized
// vector wraps ErrDimensionMismatch.
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidQuery)
	}
	if truncated := truncateRunes(text, maxEmbedChars); truncated != text {
		a.logger.Debug("truncating embedding input", "chars", len([]rune(text)), "max", maxEmbedChars)
		text = truncated
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	dim := a.dimension
	resp, err := a.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding text: %w: provider timeout after %s", ErrProviderUnavailable, embedTimeout)
		}
		return nil, fmt.Errorf("embedding text: %w: %w", ErrProviderUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding text: %w: empty response", ErrProviderUnavailable)
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != int(a.dimension) {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, store expects %d",
			ErrDimensionMismatch, len(vec), a.dimension)
	}
	return vec, nil
}

// truncateRunes cuts s to at most max runes, never splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
