package rag

import (
	"slices"
	"strings"
	"testing"

	"github.com/siamlabs/siam/internal/knowledge"
)

func assemble(t *testing.T, query string, retrieved ...knowledge.SourceType) Assembly {
	t.Helper()
	a := NewAssembler(NewSkillLoader())
	got, err := a.Assemble(query, ClassifyIntent(query), retrieved)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return got
}

func TestAssembleAlwaysIncludesPersona(t *testing.T) {
	queries := []string{
		"tell me about the weather",
		"why does the build fail",
		"",
		"show me a demo of cd-text parsing with tickets",
	}
	for _, q := range queries {
		got := assemble(t, q)
		if len(got.Skills) == 0 || got.Skills[0] != "base-personality" {
			t.Errorf("query %q: skills = %v, want base-personality first", q, got.Skills)
		}
	}
}

func TestAssembleTriggerMatch(t *testing.T) {
	got := assemble(t, "walk me through the demo scenario")
	if !slices.Contains(got.Skills, "demo-mode") {
		t.Errorf("skills = %v, want demo-mode for a demo query", got.Skills)
	}
}

func TestAssembleIntentMatch(t *testing.T) {
	got := assemble(t, "the importer throws an exception on save")
	if !slices.Contains(got.Skills, "troubleshooting") {
		t.Errorf("skills = %v, want troubleshooting via intent", got.Skills)
	}
}

func TestAssembleSourceTypeMatch(t *testing.T) {
	got := assemble(t, "summarize what we know", knowledge.SourceTicket)
	if !slices.Contains(got.Skills, "ticket-analysis") {
		t.Errorf("skills = %v, want ticket-analysis when ticket results are present", got.Skills)
	}
}

func TestAssembleNoDuplicates(t *testing.T) {
	// Query triggers troubleshooting by both trigger and intent, and
	// ticket results activate it a third way.
	got := assemble(t, "debug the error in the failing test", knowledge.SourceTicket)

	seen := make(map[string]int)
	for _, s := range got.Skills {
		seen[s]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("skill %q included %d times", name, n)
		}
	}
}

func TestAssemblePriorityOrder(t *testing.T) {
	got := assemble(t, "demo the cd-text error analysis", knowledge.SourceTicket)

	priorities := map[string]int{}
	for _, s := range skillTable {
		priorities[s.Name] = s.Priority
	}
	for i := 1; i < len(got.Skills); i++ {
		if priorities[got.Skills[i]] > priorities[got.Skills[i-1]] {
			t.Errorf("skills out of priority order: %v", got.Skills)
			break
		}
	}
}

func TestAssembleTokenEstimate(t *testing.T) {
	got := assemble(t, "hello")
	if got.EstimatedTokens <= 0 {
		t.Error("token estimate must be positive when skills are included")
	}
	if got.Prompt == "" {
		t.Error("assembled prompt must not be empty")
	}
}

func TestSkillLoaderCachesAndClears(t *testing.T) {
	l := NewSkillLoader()

	first, err := l.Load("skills/base-personality.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(first, "SIAM") {
		t.Errorf("unexpected persona content: %q", first)
	}

	l.cache["skills/base-personality.md"] = "poisoned"
	if got, _ := l.Load("skills/base-personality.md"); got != "poisoned" {
		t.Error("Load must serve from cache")
	}

	l.Clear()
	if got, _ := l.Load("skills/base-personality.md"); got != first {
		t.Error("Clear must force a re-read from the embedded FS")
	}
}

func TestSkillLoaderUnknownFile(t *testing.T) {
	l := NewSkillLoader()
	if _, err := l.Load("skills/nope.md"); err == nil {
		t.Error("Load of a missing skill must fail")
	}
}

func TestSkillTableFilesExist(t *testing.T) {
	l := NewSkillLoader()
	for _, s := range skillTable {
		if _, err := l.Load(s.File); err != nil {
			t.Errorf("skill %q: %v", s.Name, err)
		}
	}
}
