package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/siamlabs/siam/internal/tenant"
)

// embedTokenPattern matches volatile per-session embed tokens that some
// documentation platforms splice into page URLs. Two crawls of the same
// page differ only in this segment, so it is collapsed before comparing.
var embedTokenPattern = regexp.MustCompile(`/embed/[A-Za-z0-9_-]{8,}`)

// CanonicalURL normalizes a crawled URL for duplicate detection:
// query string, fragment and trailing slash are dropped, the scheme and
// host are lowercased, and volatile embed-token segments are collapsed
// to a placeholder. Invalid URLs are returned trimmed but otherwise
// untouched so they still group with byte-identical duplicates.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = embedTokenPattern.ReplaceAllString(u.Path, "/embed/-")
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// DedupSummary reports the outcome of one deduplication pass.
type DedupSummary struct {
	Scanned   int `json:"scanned"`
	Duplicate int `json:"duplicate"`
	Deleted   int `json:"deleted"`
}

const listCrawlSQL = `SELECT source_id, created_at FROM siam_vectors
	WHERE organization = $1 AND division = $2 AND application = $3
	  AND source_type = $4
	ORDER BY created_at DESC`

// DeduplicateCrawl removes crawl records whose canonical URL collides
// with a newer record in the same tenancy. The newest record per
// canonical URL survives. The pass is idempotent: running it twice
// deletes nothing on the second run.
func (s *Store) DeduplicateCrawl(ctx context.Context, tn tenant.Tenancy) (DedupSummary, error) {
	var summary DedupSummary
	if err := tn.Validate(); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	rows, err := s.db.Query(ctx, listCrawlSQL,
		tn.Organization, tn.Division, tn.Application, string(SourceCrawl))
	if err != nil {
		return summary, storeErr("listing crawl records", err)
	}
	defer rows.Close()

	type crawlRow struct {
		sourceID  string
		createdAt time.Time
	}
	var all []crawlRow
	for rows.Next() {
		var r crawlRow
		if err := rows.Scan(&r.sourceID, &r.createdAt); err != nil {
			return summary, storeErr("scanning crawl record", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return summary, storeErr("reading crawl records", err)
	}

	// Rows arrive newest-first, so the first record seen per canonical
	// URL is the survivor.
	seen := make(map[string]struct{}, len(all))
	var stale []string
	for _, r := range all {
		summary.Scanned++
		key := CanonicalURL(r.sourceID)
		if _, dup := seen[key]; dup {
			summary.Duplicate++
			stale = append(stale, r.sourceID)
			continue
		}
		seen[key] = struct{}{}
	}

	for _, sourceID := range stale {
		if err := s.Delete(ctx, tn, SourceCrawl, sourceID); err != nil {
			return summary, fmt.Errorf("deleting stale crawl record %q: %w", sourceID, err)
		}
		summary.Deleted++
	}

	s.logger.Info("crawl deduplication pass complete",
		"tenancy", tn.String(),
		"scanned", summary.Scanned,
		"duplicate", summary.Duplicate,
		"deleted", summary.Deleted)
	return summary, nil
}
