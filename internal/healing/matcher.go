package healing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy confidence scores. Text content is the strongest signal a
// human-visible element kept its identity; bare DOM position is the
// weakest and lands in the reject tier on its own.
const (
	textMatchScore  = 0.95
	attributeScore  = 0.92
	ariaMatchScore  = 0.85
	siblingPosScore = 0.65
)

// attributeOverlapFloor is the share of baseline attributes that must
// be accounted for before the attribute-profile strategy fires on a
// profile with several unaccounted attributes.
const attributeOverlapFloor = 0.75

// Matcher proposes replacement selectors from DOM snapshot pairs.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a Matcher. logger may be nil.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// elementProfile captures the identity signals of the baseline element.
type elementProfile struct {
	tag        string
	text       string
	attrs      map[string]string
	role       string
	ariaLabel  string
	parentTag  string
	tagSibling int // index among same-tag siblings under the parent
}

// Heal proposes a replacement for selector given the baseline snapshot
// it used to match and the current snapshot where it broke. A selector
// that still matches the current snapshot returns an unchanged
// candidate at full confidence without scoring.
func (m *Matcher) Heal(baselineHTML, currentHTML, selector string) (*Candidate, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrSelectorNotInBaseline)
	}

	baseline, err := goquery.NewDocumentFromReader(strings.NewReader(baselineHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: baseline: %w", ErrInvalidSnapshot, err)
	}
	current, err := goquery.NewDocumentFromReader(strings.NewReader(currentHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: current: %w", ErrInvalidSnapshot, err)
	}

	target := baseline.Find(selector).First()
	if target.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSelectorNotInBaseline, selector)
	}

	if current.Find(selector).Length() > 0 {
		return &Candidate{
			Selector:   selector,
			Strategy:   StrategyUnchanged,
			Confidence: 1.0,
			Tier:       TierAutoApply,
		}, nil
	}

	profile := profileElement(target)

	var (
		best         *goquery.Selection
		bestScore    float64
		bestStrategy Strategy
	)
	current.Find(profile.tag).Each(func(_ int, s *goquery.Selection) {
		score, strategy := scoreElement(profile, s)
		if score > bestScore {
			best, bestScore, bestStrategy = s, score, strategy
		}
	})
	if best == nil {
		return nil, fmt.Errorf("%w: selector %q", ErrNoCandidate, selector)
	}

	candidate := &Candidate{
		Selector:   buildSelector(best, current),
		Strategy:   bestStrategy,
		Confidence: bestScore,
		Tier:       ClassifyTier(bestScore),
	}
	m.logger.Debug("healing candidate scored",
		"old_selector", selector,
		"new_selector", candidate.Selector,
		"strategy", candidate.Strategy,
		"confidence", candidate.Confidence,
		"tier", candidate.Tier.String())
	return candidate, nil
}

func profileElement(s *goquery.Selection) elementProfile {
	p := elementProfile{
		tag:   goquery.NodeName(s),
		text:  normalizeText(s.Text()),
		attrs: attributeMap(s),
	}
	p.role = p.attrs["role"]
	p.ariaLabel = p.attrs["aria-label"]

	parent := s.Parent()
	if parent.Length() > 0 {
		p.parentTag = goquery.NodeName(parent)
		idx := 0
		parent.ChildrenFiltered(p.tag).EachWithBreak(func(i int, c *goquery.Selection) bool {
			if c.Nodes[0] == s.Nodes[0] {
				idx = i
				return false
			}
			return true
		})
		p.tagSibling = idx
	}
	return p
}

// scoreElement evaluates every strategy against one candidate element
// and returns the strongest.
func scoreElement(p elementProfile, s *goquery.Selection) (float64, Strategy) {
	var (
		score    float64
		strategy Strategy
	)

	if p.text != "" && normalizeText(s.Text()) == p.text {
		score, strategy = textMatchScore, StrategyText
	}

	if attributeScore > score && attributeOverlap(p.attrs, attributeMap(s)) {
		score, strategy = attributeScore, StrategyAttributes
	}

	if ariaMatchScore > score && p.role != "" && p.ariaLabel != "" {
		role, _ := s.Attr("role")
		label, _ := s.Attr("aria-label")
		if role == p.role && label == p.ariaLabel {
			score, strategy = ariaMatchScore, StrategyAria
		}
	}

	if siblingPosScore > score && p.parentTag != "" {
		parent := s.Parent()
		if goquery.NodeName(parent) == p.parentTag && sameTagIndex(s) == p.tagSibling {
			score, strategy = siblingPosScore, StrategySibling
		}
	}

	return score, strategy
}

func sameTagIndex(s *goquery.Selection) int {
	tag := goquery.NodeName(s)
	idx := 0
	s.Parent().ChildrenFiltered(tag).EachWithBreak(func(i int, c *goquery.Selection) bool {
		if c.Nodes[0] == s.Nodes[0] {
			idx = i
			return false
		}
		return true
	})
	return idx
}

// attributeOverlap reports whether the candidate preserves the
// baseline's attribute identity. An attribute is accounted for when it
// survives unchanged, or when its value reappears under a renamed key.
// The strategy fires when at most one attribute is unaccounted for, or
// when the accounted share clears the floor; at least two attributes
// must be accounted so a lone shared class cannot fake identity.
func attributeOverlap(baseline, candidate map[string]string) bool {
	if len(baseline) == 0 {
		return false
	}
	accounted := 0
	for k, v := range baseline {
		if candidate[k] == v || renamedKey(k, v, baseline, candidate) {
			accounted++
		}
	}
	if accounted < 2 {
		return false
	}
	unaccounted := len(baseline) - accounted
	return unaccounted <= 1 || float64(accounted)/float64(len(baseline)) >= attributeOverlapFloor
}

// renamedKey reports whether the value of baseline attribute k moved
// to a different attribute key on the candidate. Candidate keys whose
// value already matched the baseline do not count: a value shared by
// two attributes must not account for both.
func renamedKey(k, v string, baseline, candidate map[string]string) bool {
	for ck, cv := range candidate {
		if ck == k || cv != v {
			continue
		}
		if bv, ok := baseline[ck]; ok && bv == cv {
			continue
		}
		return true
	}
	return false
}

func attributeMap(s *goquery.Selection) map[string]string {
	attrs := make(map[string]string)
	if len(s.Nodes) == 0 {
		return attrs
	}
	for _, a := range s.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// buildSelector derives a stable selector for an element, preferring
// unique identifying attributes over structural paths.
func buildSelector(s *goquery.Selection, doc *goquery.Document) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	tag := goquery.NodeName(s)
	for _, attr := range []string{"data-testid", "name", "aria-label"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			sel := fmt.Sprintf(`%s[%s="%s"]`, tag, attr, v)
			if doc.Find(sel).Length() == 1 {
				return sel
			}
		}
	}
	if class, ok := s.Attr("class"); ok && class != "" {
		sel := tag + "." + strings.Join(strings.Fields(class), ".")
		if doc.Find(sel).Length() == 1 {
			return sel
		}
	}
	// Structural fallback: tag position under the parent.
	parentTag := goquery.NodeName(s.Parent())
	return fmt.Sprintf("%s > %s:nth-of-type(%d)", parentTag, tag, sameTagIndex(s)+1)
}
