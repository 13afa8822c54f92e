package rag

import (
	"sort"

	"github.com/siamlabs/siam/internal/knowledge"
)

// tieEpsilon is the similarity window within which two results are
// considered tied and the source-type preference decides their order.
const tieEpsilon = 0.05

// sourceBoost nudges tied results toward the more authoritative source
// type: curated documentation beats crawled pages beats code, and
// tickets rank last because their content is the least authoritative.
// The boost spread equals tieEpsilon, so two results more than
// tieEpsilon apart never swap on preference alone.
var sourceBoost = map[knowledge.SourceType]float32{
	knowledge.SourceKnowledge:     0.05,
	knowledge.SourceCrawl:         0.04,
	knowledge.SourceCode:          0.03,
	knowledge.SourceCommunication: 0.02,
	knowledge.SourceMetrics:       0.01,
	knowledge.SourceTicket:        0,
}

// MergeResults combines per-source result lists into a single ranked,
// deduplicated list of at most maxResults entries.
//
// Crawl records sharing a canonical URL collapse to the most recently
// crawled one before ranking; exact content duplicates collapse to the
// highest-ranked copy after. Order: similarity plus source boost,
// descending, which realizes the preference tie-break transitively.
// The pass is deterministic and idempotent: merging an already-merged
// list changes nothing.
func MergeResults(lists [][]knowledge.Result, maxResults int) []knowledge.Result {
	if maxResults < 1 {
		maxResults = knowledge.DefaultSearchLimit
	}

	var merged []knowledge.Result
	for _, list := range lists {
		merged = append(merged, list...)
	}
	merged = collapseCrawlDuplicates(merged)
	if len(merged) == 0 {
		return nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := boostedScore(merged[i]), boostedScore(merged[j])
		if a != b {
			return a > b
		}
		return sourceBoost[merged[i].Record.SourceType] > sourceBoost[merged[j].Record.SourceType]
	})

	seenContent := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, r := range merged {
		if _, dup := seenContent[r.Record.Content]; dup {
			continue
		}
		seenContent[r.Record.Content] = struct{}{}
		deduped = append(deduped, r)
	}

	if len(deduped) > maxResults {
		deduped = deduped[:maxResults]
	}
	return deduped
}

func boostedScore(r knowledge.Result) float32 {
	return r.Similarity + sourceBoost[r.Record.SourceType]
}

// collapseCrawlDuplicates keeps, per canonical crawl URL, the most
// recently crawled record. Recency wins over similarity here: the
// newer crawl reflects the page as it is now.
func collapseCrawlDuplicates(results []knowledge.Result) []knowledge.Result {
	index := make(map[string]int)
	out := make([]knowledge.Result, 0, len(results))
	for _, r := range results {
		if r.Record.SourceType != knowledge.SourceCrawl {
			out = append(out, r)
			continue
		}
		key := knowledge.CanonicalURL(r.Record.SourceID)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		if r.Record.CreatedAt.After(out[i].Record.CreatedAt) {
			out[i] = r
		}
	}
	return out
}
