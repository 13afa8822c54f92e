package knowledge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/siamlabs/siam/internal/tenant"
)

var testTenancy = tenant.Tenancy{
	Organization: "acme",
	Division:     "qa",
	Application:  "webshop",
}

// fakeDB records calls and replays canned rows. It implements Querier.
type fakeDB struct {
	execTag  pgconn.CommandTag
	execErr  error
	queryErr error
	rows     *fakeRows

	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		f.rows = &fakeRows{}
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return &fakeRow{err: f.queryErr}
}

// fakeRows is a minimal pgx.Rows over in-memory data.
type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		case *float32:
			*d = v.(float32)
		case *int64:
			*d = v.(int64)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type fakeRow struct{ err error }

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 1 {
		if d, ok := dest[0].(*int64); ok {
			*d = 3
		}
	}
	return nil
}

func validRecord() Record {
	return Record{
		SourceType: SourceKnowledge,
		SourceID:   "doc-42",
		Content:    "The staging cluster runs behind the shared proxy.",
		Embedding:  []float32{0.1, 0.2, 0.3},
		Metadata:   map[string]string{"title": "Staging setup"},
	}
}

func TestUpsertValidation(t *testing.T) {
	db := &fakeDB{}
	store, err := New(db, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name   string
		tn     tenant.Tenancy
		mutate func(*Record)
	}{
		{"empty tenancy", tenant.Tenancy{}, func(*Record) {}},
		{"unknown source type", testTenancy, func(r *Record) { r.SourceType = "blog" }},
		{"missing source id", testTenancy, func(r *Record) { r.SourceID = "" }},
		{"empty content", testTenancy, func(r *Record) { r.Content = "   \x00\x01  " }},
		{"missing embedding", testTenancy, func(r *Record) { r.Embedding = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := store.Upsert(context.Background(), tt.tn, rec)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Upsert() error = %v, want ErrInvalidInput", err)
			}
			if db.lastSQL != "" {
				t.Error("invalid input must not reach the database")
			}
		})
	}
}

func TestUpsertWritesSanitizedContent(t *testing.T) {
	db := &fakeDB{}
	store, _ := New(db, nil)

	rec := validRecord()
	rec.Content = "line one\x00\x01\nline two  "
	if err := store.Upsert(context.Background(), testTenancy, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// args: org, division, application, source_type, source_id, content, vector, metadata
	if got := db.lastArgs[5].(string); got != "line one\nline two" {
		t.Errorf("stored content = %q, want sanitized text", got)
	}
	if got := db.lastArgs[0].(string); got != "acme" {
		t.Errorf("organization arg = %q", got)
	}
}

func TestUpsertStoreFailure(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	store, _ := New(db, nil)

	err := store.Upsert(context.Background(), testTenancy, validRecord())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Upsert() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSearchScopesAndScans(t *testing.T) {
	now := time.Now()
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{"id-1", "knowledge", "doc-1", "How to reset passwords.", []byte(`{"title":"Reset"}`), now, float32(0.91)},
		{"id-2", "ticket", "PROJ-9", "Password reset fails on Safari.", []byte(nil), now, float32(0.74)},
	}}}
	store, _ := New(db, nil)

	results, err := store.Search(context.Background(), testTenancy,
		[]float32{0.5, 0.5}, WithLimit(5), WithThreshold(0.7), WithSourceTypes(SourceKnowledge, SourceTicket))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results must be ordered by descending similarity")
	}
	if results[0].Record.SourceType != SourceKnowledge || results[0].Record.Metadata["title"] != "Reset" {
		t.Errorf("unexpected first result: %+v", results[0].Record)
	}

	// args: org, division, application, vector, types, threshold, limit
	if got := db.lastArgs[2].(string); got != "webshop" {
		t.Errorf("application arg = %q, search must be tenancy scoped", got)
	}
	if got := db.lastArgs[4].([]string); len(got) != 2 {
		t.Errorf("source type filter = %v, want 2 entries", got)
	}
	if got := db.lastArgs[6].(int); got != 5 {
		t.Errorf("limit arg = %d, want 5", got)
	}
}

func TestSearchClampsLimit(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{}}
	store, _ := New(db, nil)

	if _, err := store.Search(context.Background(), testTenancy, []float32{1}, WithLimit(500)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := db.lastArgs[6].(int); got != MaxSearchLimit {
		t.Errorf("limit arg = %d, want clamped to %d", got, MaxSearchLimit)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("dial tcp: connection refused")}
	store, _ := New(db, nil)

	_, err := store.Search(context.Background(), testTenancy, []float32{1})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Search() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestSearchRejectsEmptyVector(t *testing.T) {
	store, _ := New(&fakeDB{}, nil)
	_, err := store.Search(context.Background(), testTenancy, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Search() error = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 0")}
	store, _ := New(db, nil)

	err := store.Delete(context.Background(), testTenancy, SourceKnowledge, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	store, _ := New(db, nil)

	if err := store.Delete(context.Background(), testTenancy, SourceCrawl, "https://docs.example.com/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := db.lastArgs[3].(string); got != "crawl" {
		t.Errorf("source_type arg = %q", got)
	}
}

func TestCount(t *testing.T) {
	db := &fakeDB{}
	store, _ := New(db, nil)

	n, err := store.Count(context.Background(), testTenancy, SourceKnowledge)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}
