package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/tenant"
)

var testTenancy = tenant.Tenancy{Organization: "acme", Division: "qa", Application: "webshop"}

type fakeEmbedder struct {
	err    error
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("embed failed for this document")
	}
	return []float32{0.1, 0.2}, nil
}

type fakeUpserter struct {
	records []knowledge.Record
	err     error
}

func (f *fakeUpserter) Upsert(_ context.Context, _ tenant.Tenancy, rec knowledge.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func doc(id, content string) Document {
	return Document{SourceType: knowledge.SourceKnowledge, SourceID: id, Content: content}
}

func TestIngestBatch(t *testing.T) {
	store := &fakeUpserter{}
	ing, err := NewIngester(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("NewIngester: %v", err)
	}

	summary, err := ing.IngestBatch(context.Background(), testTenancy, []Document{
		doc("a", "first document"),
		doc("b", "second document"),
	})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.records) != 2 || len(store.records[0].Embedding) == 0 {
		t.Errorf("stored records = %+v", store.records)
	}
}

func TestIngestBatchSkipsFailures(t *testing.T) {
	store := &fakeUpserter{}
	ing, _ := NewIngester(&fakeEmbedder{failOn: "bad document"}, store, nil)

	summary, err := ing.IngestBatch(context.Background(), testTenancy, []Document{
		doc("good-1", "first document"),
		doc("bad", "bad document"),
		doc("empty", "\x00\x01"),
		doc("good-2", "last document"),
	})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}

	if summary.Total != 4 || summary.Succeeded != 2 || summary.Failed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Failures) != 2 {
		t.Fatalf("failures = %+v", summary.Failures)
	}
	if summary.Failures[0].SourceID != "bad" || summary.Failures[1].SourceID != "empty" {
		t.Errorf("failure ids = %+v", summary.Failures)
	}
	// The documents after a failure must still be processed.
	if store.records[len(store.records)-1].SourceID != "good-2" {
		t.Error("batch stopped at the first failure")
	}
}

func TestIngestBatchInvalidTenancy(t *testing.T) {
	ing, _ := NewIngester(&fakeEmbedder{}, &fakeUpserter{}, nil)

	_, err := ing.IngestBatch(context.Background(), tenant.Tenancy{}, []Document{doc("a", "text")})
	if !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("IngestBatch() error = %v, want ErrInvalidInput", err)
	}
}

func TestIngestBatchCanceledContext(t *testing.T) {
	ing, _ := NewIngester(&fakeEmbedder{}, &fakeUpserter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ing.IngestBatch(ctx, testTenancy, []Document{doc("a", "text")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("IngestBatch() error = %v, want context.Canceled", err)
	}
}

func TestIngestBatchEmpty(t *testing.T) {
	ing, _ := NewIngester(&fakeEmbedder{}, &fakeUpserter{}, nil)

	summary, err := ing.IngestBatch(context.Background(), testTenancy, nil)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("summary = %+v", summary)
	}
}
