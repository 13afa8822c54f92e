package rag

import (
	"regexp"
	"strings"

	"github.com/siamlabs/siam/internal/knowledge"
)

// Intent is the coarse query category driving source selection and
// skill activation.
type Intent string

// Query intents.
const (
	IntentTechnical       Intent = "technical"
	IntentStatus          Intent = "status"
	IntentCommunication   Intent = "communication"
	IntentProcedural      Intent = "procedural"
	IntentTroubleshooting Intent = "troubleshooting"
	IntentGeneral         Intent = "general"
)

// Classification is the result of intent analysis. Pattern records
// which rule fired so classifications are auditable after the fact.
type Classification struct {
	Intent      Intent
	Pattern     string
	SourceHints []knowledge.SourceType
}

type intentRule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// intentRules is evaluated in order; the first match wins. More
// specific intents come first so "why does the build fail" lands on
// troubleshooting, not technical.
var intentRules = []intentRule{
	{IntentTroubleshooting, regexp.MustCompile(`(?i)\b(error|fail(s|ed|ing)?|broken|crash(es|ed)?|bug|exception|stack ?trace|not work(s|ing)?|doesn'?t work|timeout|flaky)\b`)},
	{IntentStatus, regexp.MustCompile(`(?i)\b(status|progress|sprint|deadline|milestone|blocked|in review|assigned|open tickets?|backlog|due date)\b`)},
	{IntentCommunication, regexp.MustCompile(`(?i)\b(email|e-mail|mail(ed)?|meeting|discussed?|agreed|decision|call|conversation|thread|minutes)\b`)},
	{IntentProcedural, regexp.MustCompile(`(?i)\b(how (do|to|can)|steps?|guide|tutorial|setup|set up|install|configure|procedure|walkthrough|instructions?)\b`)},
	{IntentTechnical, regexp.MustCompile(`(?i)\b(api|function|class|method|implement(ation|ed)?|architecture|code|library|database|schema|endpoint|protocol|algorithm|interface)\b`)},
}

// sourceHints maps each intent to the source types most likely to hold
// the answer. General queries search everything.
var sourceHints = map[Intent][]knowledge.SourceType{
	IntentTechnical:       {knowledge.SourceKnowledge, knowledge.SourceCrawl, knowledge.SourceCode},
	IntentStatus:          {knowledge.SourceTicket, knowledge.SourceCommunication},
	IntentCommunication:   {knowledge.SourceCommunication, knowledge.SourceTicket},
	IntentProcedural:      {knowledge.SourceKnowledge, knowledge.SourceCrawl},
	IntentTroubleshooting: {knowledge.SourceTicket, knowledge.SourceKnowledge, knowledge.SourceCode},
	IntentGeneral:         knowledge.AllSourceTypes,
}

// ClassifyIntent categorizes a query with the ordered heuristic table.
// Deterministic: the same query always yields the same classification.
// Queries matching no rule fall through to the general intent.
func ClassifyIntent(query string) Classification {
	query = strings.TrimSpace(query)
	for _, rule := range intentRules {
		if rule.pattern.MatchString(query) {
			return Classification{
				Intent:      rule.intent,
				Pattern:     rule.pattern.String(),
				SourceHints: sourceHints[rule.intent],
			}
		}
	}
	return Classification{
		Intent:      IntentGeneral,
		SourceHints: sourceHints[IntentGeneral],
	}
}
