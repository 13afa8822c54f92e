package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/tenant"
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the retrieval surface of the knowledge store.
type Searcher interface {
	Search(ctx context.Context, tn tenant.Tenancy, queryVec []float32, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Generator produces a grounded answer from passages, with the
// conversation's prior turns threaded in for follow-up queries.
type Generator interface {
	Synthesize(ctx context.Context, query, systemPrompt string, passages []Passage, history []Turn, stream StreamFunc) (string, error)
}

// Request is one answering request.
type Request struct {
	Tenancy        tenant.Tenancy
	Query          string
	ConversationID string
	// SourceTypes overrides the intent-derived source hints when set.
	SourceTypes []knowledge.SourceType
}

// Answer is the pipeline output.
type Answer struct {
	Text            string     `json:"text"`
	Abstained       bool       `json:"abstained"`
	Intent          Intent     `json:"intent"`
	Skills          []string   `json:"skills,omitempty"`
	EstimatedTokens int        `json:"estimated_tokens,omitempty"`
	Citations       []Citation `json:"citations,omitempty"`
	Passages        []Passage  `json:"passages,omitempty"`
	ResponseID      string     `json:"response_id"`
}

// Pipeline orchestrates the full answering flow: classify, embed,
// retrieve concurrently per source type, merge, assemble skills,
// synthesize.
//
// Degradation policy: embedding or store unavailability produces an
// abstention answer, never a fabricated one. Only generation failures
// after successful retrieval surface as errors, because at that point
// the caller can meaningfully retry.
type Pipeline struct {
	embedder  Embedder
	store     Searcher
	assembler *Assembler
	generator Generator
	cache     *ConversationCache

	searchLimit     int
	searchThreshold float32
	logger          *slog.Logger
}

// NewPipeline wires the pipeline. cache and logger may be nil.
func NewPipeline(embedder Embedder, store Searcher, assembler *Assembler, generator Generator, cache *ConversationCache, searchLimit int, searchThreshold float32, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil || store == nil || assembler == nil || generator == nil {
		return nil, fmt.Errorf("embedder, store, assembler and generator are required")
	}
	if cache == nil {
		cache = NewConversationCache()
	}
	if searchLimit < 1 {
		searchLimit = knowledge.DefaultSearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:        embedder,
		store:           store,
		assembler:       assembler,
		generator:       generator,
		cache:           cache,
		searchLimit:     searchLimit,
		searchThreshold: searchThreshold,
		logger:          logger,
	}, nil
}

// Answer runs the pipeline for one request. stream may be nil.
func (p *Pipeline) Answer(ctx context.Context, req Request, stream StreamFunc) (Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Answer{}, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if err := req.Tenancy.Validate(); err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	cls := ClassifyIntent(query)
	answer := Answer{Intent: cls.Intent, ResponseID: uuid.NewString()}

	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			p.logger.Warn("embedding unavailable, abstaining",
				"tenancy", req.Tenancy.String(), "error", err)
			return p.abstain(ctx, answer, req.ConversationID, query, stream)
		}
		return Answer{}, err
	}

	results := p.retrieve(ctx, req.Tenancy, queryVec, p.sourceTypes(req, cls))
	merged := MergeResults(results, p.searchLimit)
	if len(merged) == 0 {
		p.logger.Info("no context retrieved, abstaining",
			"tenancy", req.Tenancy.String(), "intent", cls.Intent)
		return p.abstain(ctx, answer, req.ConversationID, query, stream)
	}

	present := make([]knowledge.SourceType, 0, len(merged))
	for _, r := range merged {
		present = append(present, r.Record.SourceType)
	}
	assembly, err := p.assembler.Assemble(query, cls, present)
	if err != nil {
		return Answer{}, fmt.Errorf("assembling system prompt: %w", err)
	}
	answer.Skills = assembly.Skills
	answer.EstimatedTokens = assembly.EstimatedTokens

	passages := PassagesFromResults(merged)
	history := p.cache.History(req.ConversationID)
	text, err := p.generator.Synthesize(ctx, query, assembly.Prompt, passages, history, stream)
	if err != nil {
		return Answer{}, err
	}

	answer.Text = text
	answer.Passages = passages
	answer.Citations = ExtractCitations(text, passages)
	p.cache.Record(req.ConversationID, answer.ResponseID, Turn{Query: query, Answer: text})

	p.logger.Info("answered query",
		"tenancy", req.Tenancy.String(),
		"intent", cls.Intent,
		"passages", len(passages),
		"citations", len(answer.Citations),
		"skills", assembly.Skills)
	return answer, nil
}

// sourceTypes picks the search scope: explicit request override first,
// intent hints otherwise.
func (p *Pipeline) sourceTypes(req Request, cls Classification) []knowledge.SourceType {
	if len(req.SourceTypes) > 0 {
		valid := make([]knowledge.SourceType, 0, len(req.SourceTypes))
		for _, st := range req.SourceTypes {
			if knowledge.ValidSourceType(st) {
				valid = append(valid, st)
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}
	return cls.SourceHints
}

// retrieve runs one search per hinted source type concurrently. A
// failing search contributes an empty list; losing one source must not
// sink the whole query.
func (p *Pipeline) retrieve(ctx context.Context, tn tenant.Tenancy, queryVec []float32, types []knowledge.SourceType) [][]knowledge.Result {
	lists := make([][]knowledge.Result, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range types {
		g.Go(func() error {
			results, err := p.store.Search(gctx, tn, queryVec,
				knowledge.WithSourceTypes(st),
				knowledge.WithLimit(p.searchLimit),
				knowledge.WithThreshold(p.searchThreshold))
			if err != nil {
				p.logger.Warn("source search failed",
					"source_type", st, "tenancy", tn.String(), "error", err)
				return nil
			}
			lists[i] = results
			return nil
		})
	}
	// Workers only return nil; Wait is for joining.
	_ = g.Wait()
	return lists
}

// abstain finalizes an abstention answer, streaming the fixed message
// when a stream callback is attached. The abstention still counts as a
// turn so a follow-up query sees it in history.
func (p *Pipeline) abstain(ctx context.Context, answer Answer, conversationID, query string, stream StreamFunc) (Answer, error) {
	answer.Text = AbstentionMessage
	answer.Abstained = true
	if stream != nil {
		if err := stream(ctx, AbstentionMessage); err != nil {
			return Answer{}, fmt.Errorf("streaming abstention: %w", err)
		}
	}
	p.cache.Record(conversationID, answer.ResponseID, Turn{Query: query, Answer: AbstentionMessage})
	return answer, nil
}
