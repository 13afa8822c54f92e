package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/siamlabs/siam/internal/knowledge"
)

// AbstentionMessage is the fixed answer returned when retrieval yields
// no usable context. The exact wording is part of the API contract:
// clients detect abstention by comparing against it.
const AbstentionMessage = "I couldn't find anything about that in the SIAM knowledge base. Try rephrasing, or ingest the relevant documents first."

// Passage is one numbered context block handed to the model.
type Passage struct {
	Number     int                  `json:"number"`
	SourceType knowledge.SourceType `json:"source_type"`
	SourceID   string               `json:"source_id"`
	Content    string               `json:"content"`
	Similarity float32              `json:"similarity"`
}

// Citation maps a bracketed number in the answer back to its source.
type Citation struct {
	Number     int                  `json:"number"`
	SourceType knowledge.SourceType `json:"source_type"`
	SourceID   string               `json:"source_id"`
	Similarity float32              `json:"similarity"`
}

// PassagesFromResults numbers merged results 1..n in rank order.
func PassagesFromResults(results []knowledge.Result) []Passage {
	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{
			Number:     i + 1,
			SourceType: r.Record.SourceType,
			SourceID:   r.Record.SourceID,
			Content:    r.Record.Content,
			Similarity: r.Similarity,
		}
	}
	return passages
}

// StreamFunc receives incremental answer text. Returning an error
// aborts generation (used for client disconnects).
type StreamFunc func(ctx context.Context, chunk string) error

// Synthesizer produces grounded answers from context passages via
// Genkit. A shared rate limiter bounds calls to the provider.
type Synthesizer struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewSynthesizer creates a Synthesizer. modelName must be the
// provider-qualified Genkit name (config.FullModelName). limiter may
// be nil to disable rate limiting; logger may be nil.
func NewSynthesizer(g *genkit.Genkit, modelName string, temperature float32, maxTokens int, limiter *rate.Limiter, logger *slog.Logger) (*Synthesizer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		g:           g,
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Synthesize generates an answer for query grounded in passages.
// history holds the conversation's prior turns, oldest first, and is
// replayed ahead of the new query so follow-ups resolve references to
// earlier answers. passages must be non-empty; the abstention decision
// belongs to the pipeline, not here. stream may be nil for
// non-streaming calls.
func (s *Synthesizer) Synthesize(ctx context.Context, query, systemPrompt string, passages []Passage, history []Turn, stream StreamFunc) (string, error) {
	if len(passages) == 0 {
		return "", fmt.Errorf("%w: no context passages", ErrInvalidQuery)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	// Build messages: prior turns, then the new grounded query.
	messages := make([]*ai.Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(turn.Query)),
			ai.NewModelMessage(ai.NewTextPart(turn.Answer)))
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(buildUserPrompt(query, passages))))

	opts := []ai.GenerateOption{
		ai.WithModelName(s.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(s.temperature),
			MaxOutputTokens: s.maxTokens,
		}),
	}
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return stream(ctx, chunk.Text())
		}))
	}

	response, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("generating answer: %w", err)
		}
		return "", fmt.Errorf("generating answer: %w: %w", ErrProviderUnavailable, err)
	}
	return response.Text(), nil
}

// buildUserPrompt lays out numbered context blocks followed by the
// question. The numbering must match PassagesFromResults so the
// model's [n] markers resolve to the right source.
func buildUserPrompt(query string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Context passages:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "\n[%d] (%s: %s)\n%s\n", p.Number, p.SourceType, p.SourceID, p.Content)
	}
	b.WriteString("\nAnswer the question using only the passages above. ")
	b.WriteString("Cite each claim with the bracketed passage number.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// ExtractCitations resolves the [n] markers in the answer against the
// passages that were provided. Markers pointing at numbers outside the
// passage range are dropped. Each passage is cited at most once,
// ordered by number.
func ExtractCitations(answer string, passages []Passage) []Citation {
	byNumber := make(map[int]Passage, len(passages))
	for _, p := range passages {
		byNumber[p.Number] = p
	}

	cited := make(map[int]struct{})
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := byNumber[n]; ok {
			cited[n] = struct{}{}
		}
	}

	numbers := make([]int, 0, len(cited))
	for n := range cited {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	citations := make([]Citation, 0, len(numbers))
	for _, n := range numbers {
		p := byNumber[n]
		citations = append(citations, Citation{
			Number:     p.Number,
			SourceType: p.SourceType,
			SourceID:   p.SourceID,
			Similarity: p.Similarity,
		})
	}
	return citations
}
