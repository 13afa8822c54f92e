package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"strips query string",
			"https://docs.example.com/guide?utm_source=mail&v=2",
			"https://docs.example.com/guide",
		},
		{
			"strips fragment",
			"https://docs.example.com/guide#section-3",
			"https://docs.example.com/guide",
		},
		{
			"strips trailing slash",
			"https://docs.example.com/guide/",
			"https://docs.example.com/guide",
		},
		{
			"lowercases host",
			"https://Docs.Example.COM/guide",
			"https://docs.example.com/guide",
		},
		{
			"collapses embed token",
			"https://docs.example.com/embed/aBcD1234efGh/page",
			"https://docs.example.com/embed/-/page",
		},
		{
			"short embed segment untouched",
			"https://docs.example.com/embed/v2/page",
			"https://docs.example.com/embed/v2/page",
		},
		{
			"preserves path case",
			"https://docs.example.com/Guide/Setup",
			"https://docs.example.com/Guide/Setup",
		},
		{
			"invalid url passes through trimmed",
			"  not a url  ",
			"not a url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalURL(tt.in); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalURLGroupsVariants(t *testing.T) {
	variants := []string{
		"https://docs.example.com/guide",
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide?session=9f2a",
		"https://docs.example.com/guide#top",
	}
	want := CanonicalURL(variants[0])
	for _, v := range variants[1:] {
		if got := CanonicalURL(v); got != want {
			t.Errorf("CanonicalURL(%q) = %q, want grouped with %q", v, got, want)
		}
	}
}

func TestDeduplicateCrawl(t *testing.T) {
	now := time.Now()
	// Newest-first, as the query orders them. Three URLs collapse to one
	// canonical form; the newest survives.
	db := &fakeDB{
		execTag: pgconn.NewCommandTag("DELETE 1"),
		rows: &fakeRows{data: [][]any{
			{"https://docs.example.com/guide", now},
			{"https://docs.example.com/guide/", now.Add(-time.Hour)},
			{"https://docs.example.com/guide?session=9f2a", now.Add(-2 * time.Hour)},
			{"https://docs.example.com/other", now.Add(-3 * time.Hour)},
		}},
	}
	store, _ := New(db, nil)

	summary, err := store.DeduplicateCrawl(context.Background(), testTenancy)
	if err != nil {
		t.Fatalf("DeduplicateCrawl: %v", err)
	}
	if summary.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4", summary.Scanned)
	}
	if summary.Duplicate != 2 {
		t.Errorf("Duplicate = %d, want 2", summary.Duplicate)
	}
	if summary.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", summary.Deleted)
	}
}

func TestDeduplicateCrawlIdempotent(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{"https://docs.example.com/guide", time.Now()},
		{"https://docs.example.com/other", time.Now()},
	}}}
	store, _ := New(db, nil)

	summary, err := store.DeduplicateCrawl(context.Background(), testTenancy)
	if err != nil {
		t.Fatalf("DeduplicateCrawl: %v", err)
	}
	if summary.Duplicate != 0 || summary.Deleted != 0 {
		t.Errorf("clean set must delete nothing, got %+v", summary)
	}
}
