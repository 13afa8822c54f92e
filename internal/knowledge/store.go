package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/siamlabs/siam/internal/tenant"
)

// Operation timeouts. Vector search and writes are bounded so a slow
// store degrades to empty results instead of hanging the request.
const (
	searchTimeout = 10 * time.Second
	writeTimeout  = 15 * time.Second
)

// Querier is the subset of pgx operations the store needs. Satisfied by
// *pgxpool.Pool and pgx.Tx; defined here (consumer side) so tests can
// substitute a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages vector records in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default).
func New(db Querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

const upsertSQL = `INSERT INTO siam_vectors
	(organization, division, application, source_type, source_id, content, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8)
	ON CONFLICT (organization, division, application, source_type, source_id)
	DO UPDATE SET content = EXCLUDED.content,
	              embedding = EXCLUDED.embedding,
	              metadata = EXCLUDED.metadata,
	              updated_at = now()`

// Upsert writes a record scoped to tn. Idempotent on
// (tenancy, source_type, source_id): re-ingesting the same source
// replaces content, embedding and metadata in place.
func (s *Store) Upsert(ctx context.Context, tn tenant.Tenancy, rec Record) error {
	if err := tn.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !ValidSourceType(rec.SourceType) {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, rec.SourceType)
	}
	if rec.SourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrInvalidInput)
	}
	content := SanitizeContent(rec.Content)
	if content == "" {
		return fmt.Errorf("%w: content empty after sanitization", ErrInvalidInput)
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", ErrInvalidInput)
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshaling metadata: %w", ErrInvalidInput, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = s.db.Exec(writeCtx, upsertSQL,
		tn.Organization, tn.Division, tn.Application,
		string(rec.SourceType), rec.SourceID,
		content, pgvector.NewVector(rec.Embedding), metadataJSON)
	if err != nil {
		return storeErr("upserting record", err)
	}

	s.logger.Debug("upserted record",
		"tenancy", tn.String(),
		"source_type", rec.SourceType,
		"source_id", rec.SourceID,
		"content_length", len(content))
	return nil
}

const searchSQL = `SELECT id, source_type, source_id, content, metadata, created_at,
	1 - (embedding <=> $4::vector) AS similarity
	FROM siam_vectors
	WHERE organization = $1 AND division = $2 AND application = $3
	  AND (cardinality($5::text[]) = 0 OR source_type = ANY($5::text[]))
	  AND 1 - (embedding <=> $4::vector) >= $6
	ORDER BY embedding <=> $4::vector
	LIMIT $7`

// Search performs cosine similarity search scoped to tn.
//
// Guarantees: every returned record belongs to tn; similarity is
// non-increasing across the list; records below the threshold are
// excluded. An empty source-type filter searches all types.
//
// On store unavailability the error wraps ErrStoreUnavailable so the
// caller can abstain instead of fabricating an answer.
func (s *Store) Search(ctx context.Context, tn tenant.Tenancy, queryVec []float32, opts ...SearchOption) ([]Result, error) {
	if err := tn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", ErrInvalidInput)
	}
	cfg := buildSearchConfig(opts)

	types := make([]string, 0, len(cfg.sourceTypes))
	for _, t := range cfg.sourceTypes {
		types = append(types, string(t))
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	rows, err := s.db.Query(queryCtx, searchSQL,
		tn.Organization, tn.Division, tn.Application,
		pgvector.NewVector(queryVec), types, cfg.threshold, cfg.limit)
	if err != nil {
		return nil, storeErr("searching records", err)
	}
	defer rows.Close()

	results, err := s.scanResults(rows)
	if err != nil {
		return nil, storeErr("scanning search results", err)
	}
	return results, nil
}

const deleteSQL = `DELETE FROM siam_vectors
	WHERE organization = $1 AND division = $2 AND application = $3
	  AND source_type = $4 AND source_id = $5`

// Delete removes the record addressed by (tenancy, sourceType, sourceID).
// Returns ErrNotFound when no such record exists.
func (s *Store) Delete(ctx context.Context, tn tenant.Tenancy, sourceType SourceType, sourceID string) error {
	if err := tn.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !ValidSourceType(sourceType) {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, sourceType)
	}
	if sourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrInvalidInput)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tag, err := s.db.Exec(writeCtx, deleteSQL,
		tn.Organization, tn.Division, tn.Application, string(sourceType), sourceID)
	if err != nil {
		return storeErr("deleting record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, sourceType, sourceID)
	}

	s.logger.Debug("deleted record",
		"tenancy", tn.String(), "source_type", sourceType, "source_id", sourceID)
	return nil
}

const countSQL = `SELECT count(*) FROM siam_vectors
	WHERE organization = $1 AND division = $2 AND application = $3
	  AND (cardinality($4::text[]) = 0 OR source_type = ANY($4::text[]))`

// Count returns the number of records for tn, optionally restricted to
// the given source types.
func (s *Store) Count(ctx context.Context, tn tenant.Tenancy, types ...SourceType) (int64, error) {
	if err := tn.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	filter := make([]string, 0, len(types))
	for _, t := range types {
		filter = append(filter, string(t))
	}

	var count int64
	if err := s.db.QueryRow(ctx, countSQL,
		tn.Organization, tn.Division, tn.Application, filter).Scan(&count); err != nil {
		return 0, storeErr("counting records", err)
	}
	return count, nil
}

// Ping verifies store connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return storeErr("pinging store", err)
	}
	return nil
}

func (s *Store) scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var (
			rec          Record
			sourceType   string
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&rec.ID, &sourceType, &rec.SourceID, &rec.Content,
			&metadataJSON, &rec.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.SourceType = SourceType(sourceType)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				s.logger.Warn("unparsable record metadata", "id", rec.ID, "error", err)
				rec.Metadata = map[string]string{}
			}
		}
		results = append(results, Result{Record: rec, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return results, nil
}

// storeErr converts low-level database errors to the package taxonomy.
// Invalid-input conditions are classified before any query runs, so
// anything that fails at the wire is an availability problem.
func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
