package rag

import (
	"strings"
	"testing"

	"github.com/siamlabs/siam/internal/knowledge"
)

func testPassages() []Passage {
	return []Passage{
		{Number: 1, SourceType: knowledge.SourceKnowledge, SourceID: "doc-1", Content: "alpha", Similarity: 0.9},
		{Number: 2, SourceType: knowledge.SourceTicket, SourceID: "PROJ-7", Content: "beta", Similarity: 0.8},
		{Number: 3, SourceType: knowledge.SourceCrawl, SourceID: "https://x.test/p", Content: "gamma", Similarity: 0.7},
	}
}

func TestPassagesFromResults(t *testing.T) {
	results := []knowledge.Result{
		result(knowledge.SourceKnowledge, "doc-1", "alpha", 0.9),
		result(knowledge.SourceTicket, "PROJ-7", "beta", 0.8),
	}
	passages := PassagesFromResults(results)
	if len(passages) != 2 {
		t.Fatalf("got %d passages", len(passages))
	}
	if passages[0].Number != 1 || passages[1].Number != 2 {
		t.Errorf("numbering = %d, %d, want 1, 2", passages[0].Number, passages[1].Number)
	}
	if passages[1].SourceID != "PROJ-7" {
		t.Errorf("order must follow result rank, got %q second", passages[1].SourceID)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt("what is alpha?", testPassages())

	if !strings.Contains(prompt, "[1] (knowledge: doc-1)") {
		t.Error("prompt missing numbered passage header")
	}
	if !strings.Contains(prompt, "Question: what is alpha?") {
		t.Error("prompt missing the question")
	}
	if strings.Index(prompt, "[1]") > strings.Index(prompt, "Question:") {
		t.Error("passages must precede the question")
	}
}

func TestExtractCitations(t *testing.T) {
	answer := "Alpha is documented [1] and tracked in a ticket [2]. See also [2]."
	citations := ExtractCitations(answer, testPassages())

	if len(citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(citations))
	}
	if citations[0].Number != 1 || citations[0].SourceID != "doc-1" {
		t.Errorf("first citation = %+v", citations[0])
	}
	if citations[1].Number != 2 || citations[1].SourceType != knowledge.SourceTicket {
		t.Errorf("second citation = %+v", citations[1])
	}
}

func TestExtractCitationsDropsOutOfRange(t *testing.T) {
	answer := "Claim [1], bogus [9], also [0]."
	citations := ExtractCitations(answer, testPassages())

	if len(citations) != 1 {
		t.Fatalf("got %d citations, want only the valid [1]", len(citations))
	}
}

func TestExtractCitationsNone(t *testing.T) {
	if got := ExtractCitations("no markers here", testPassages()); len(got) != 0 {
		t.Errorf("got %v, want no citations", got)
	}
}

func TestAbstentionMessageStable(t *testing.T) {
	// The wording is an API contract; clients compare against it.
	want := "I couldn't find anything about that in the SIAM knowledge base. Try rephrasing, or ingest the relevant documents first."
	if AbstentionMessage != want {
		t.Errorf("AbstentionMessage changed: %q", AbstentionMessage)
	}
}
