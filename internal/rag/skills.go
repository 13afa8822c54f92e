package rag

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/siamlabs/siam/internal/knowledge"
)

//go:embed skills/*.md
var skillsFS embed.FS

// Skill is one composable system-prompt fragment. AlwaysOn skills are
// included for every query; the others activate on a trigger match, an
// intent match or a source-type match.
type Skill struct {
	Name        string
	Priority    int // higher assembles earlier
	AlwaysOn    bool
	Trigger     *regexp.Regexp
	Intents     []Intent
	SourceTypes []knowledge.SourceType
	File        string
}

// skillTable is the static registry. base-personality carries the
// assistant persona and is unconditionally first.
var skillTable = []Skill{
	{
		Name:     "base-personality",
		Priority: 100,
		AlwaysOn: true,
		File:     "skills/base-personality.md",
	},
	{
		Name:     "demo-mode",
		Priority: 90,
		Trigger:  regexp.MustCompile(`(?i)\bdemo(nstration)?\b|\bshowcase\b`),
		File:     "skills/demo-mode.md",
	},
	{
		Name:        "troubleshooting",
		Priority:    70,
		Trigger:     regexp.MustCompile(`(?i)\b(error|fail|crash|broken|debug|diagnos)\w*\b`),
		Intents:     []Intent{IntentTroubleshooting},
		SourceTypes: []knowledge.SourceType{knowledge.SourceTicket},
		File:        "skills/troubleshooting.md",
	},
	{
		Name:        "code-formatting",
		Priority:    60,
		Trigger:     regexp.MustCompile("(?i)```|\\b(snippet|code example|source code)\\b"),
		Intents:     []Intent{IntentTechnical},
		SourceTypes: []knowledge.SourceType{knowledge.SourceCode},
		File:        "skills/code-formatting.md",
	},
	{
		Name:        "ticket-analysis",
		Priority:    55,
		Trigger:     regexp.MustCompile(`(?i)\b(ticket|sprint|backlog|[A-Z][A-Z0-9]+-\d+)\b`),
		Intents:     []Intent{IntentStatus},
		SourceTypes: []knowledge.SourceType{knowledge.SourceTicket},
		File:        "skills/ticket-analysis.md",
	},
	{
		Name:     "cdtext-parsing",
		Priority: 50,
		Trigger:  regexp.MustCompile(`(?i)\bcd-?text\b|\b(track|album|disc) (title|metadata)\b`),
		File:     "skills/cdtext-parsing.md",
	},
}

// SkillLoader reads skill content from the embedded filesystem and
// caches it. Clear drops the cache; content is re-read on next use.
type SkillLoader struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewSkillLoader creates an empty loader.
func NewSkillLoader() *SkillLoader {
	return &SkillLoader{cache: make(map[string]string)}
}

// Load returns the content of the named skill file.
func (l *SkillLoader) Load(file string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if content, ok := l.cache[file]; ok {
		return content, nil
	}
	data, err := skillsFS.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("loading skill %q: %w", file, err)
	}
	content := strings.TrimSpace(string(data))
	l.cache[file] = content
	return content, nil
}

// Clear drops the cache.
func (l *SkillLoader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]string)
}

// Assembly is an assembled system prompt plus bookkeeping for the
// response metadata.
type Assembly struct {
	Prompt          string
	Skills          []string
	EstimatedTokens int
}

// Assembler selects and concatenates skills into a system prompt.
type Assembler struct {
	loader *SkillLoader
	skills []Skill
}

// NewAssembler creates an Assembler over the static skill table.
func NewAssembler(loader *SkillLoader) *Assembler {
	return &Assembler{loader: loader, skills: skillTable}
}

// Assemble builds the system prompt for a query. Selection is a union:
// always-on skills, trigger matches against the raw query, intent
// matches, and source-type matches against the retrieved result types.
// Each skill appears at most once, ordered by priority descending with
// table order breaking ties, so the persona always leads.
func (a *Assembler) Assemble(query string, cls Classification, retrieved []knowledge.SourceType) (Assembly, error) {
	present := make(map[knowledge.SourceType]struct{}, len(retrieved))
	for _, st := range retrieved {
		present[st] = struct{}{}
	}

	var selected []Skill
	for _, s := range a.skills {
		if a.applies(s, query, cls, present) {
			selected = append(selected, s)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority > selected[j].Priority
	})

	var (
		parts  []string
		names  []string
		tokens int
	)
	for _, s := range selected {
		content, err := a.loader.Load(s.File)
		if err != nil {
			return Assembly{}, err
		}
		parts = append(parts, content)
		names = append(names, s.Name)
		tokens += estimateTokens(content)
	}

	return Assembly{
		Prompt:          strings.Join(parts, "\n\n"),
		Skills:          names,
		EstimatedTokens: tokens,
	}, nil
}

func (a *Assembler) applies(s Skill, query string, cls Classification, present map[knowledge.SourceType]struct{}) bool {
	if s.AlwaysOn {
		return true
	}
	if s.Trigger != nil && s.Trigger.MatchString(query) {
		return true
	}
	for _, in := range s.Intents {
		if in == cls.Intent {
			return true
		}
	}
	for _, st := range s.SourceTypes {
		if _, ok := present[st]; ok {
			return true
		}
	}
	return false
}

// estimateTokens approximates the token count of English/markdown text.
// Four characters per token is the usual rule of thumb; the value only
// feeds response metadata, not billing.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
