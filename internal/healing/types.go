package healing

import (
	"errors"
	"time"
)

var (
	// ErrSelectorNotInBaseline indicates the broken selector does not
	// match the baseline snapshot either, so there is nothing to heal
	// against.
	ErrSelectorNotInBaseline = errors.New("selector not found in baseline snapshot")

	// ErrNoCandidate indicates no strategy produced a replacement.
	ErrNoCandidate = errors.New("no healing candidate found")

	// ErrInvalidSnapshot indicates unparsable snapshot HTML.
	ErrInvalidSnapshot = errors.New("invalid DOM snapshot")
)

// Tier classifies a healing candidate by confidence.
type Tier int

const (
	// TierAutoApply candidates (confidence > 0.90) are safe to apply
	// without human review.
	TierAutoApply Tier = 1

	// TierReview candidates (0.60 <= confidence <= 0.90) need a human
	// decision.
	TierReview Tier = 2

	// TierReject candidates (confidence < 0.60) are discarded.
	TierReject Tier = 3
)

// Confidence boundaries for tier classification.
const (
	autoApplyThreshold = 0.90
	reviewThreshold    = 0.60
)

// ClassifyTier maps a confidence score to its tier. The auto-apply
// boundary is exclusive: exactly 0.90 still requires review.
func ClassifyTier(confidence float64) Tier {
	switch {
	case confidence > autoApplyThreshold:
		return TierAutoApply
	case confidence >= reviewThreshold:
		return TierReview
	default:
		return TierReject
	}
}

func (t Tier) String() string {
	switch t {
	case TierAutoApply:
		return "auto-apply"
	case TierReview:
		return "review"
	case TierReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Strategy identifies which heuristic produced a candidate.
type Strategy string

const (
	StrategyUnchanged  Strategy = "unchanged"
	StrategyText       Strategy = "text-match"
	StrategyAria       Strategy = "aria-role-label"
	StrategyAttributes Strategy = "attribute-profile"
	StrategySibling    Strategy = "sibling-position"
)

// Candidate is one proposed replacement selector.
type Candidate struct {
	Selector   string   `json:"selector"`
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
	Tier       Tier     `json:"tier"`
}

// Status is one phase of a healing attempt.
type Status string

const (
	StatusDetecting     Status = "detecting"
	StatusComparing     Status = "comparing"
	StatusScoring       Status = "scoring"
	StatusClassified    Status = "classified"
	StatusHealed        Status = "healed"
	StatusPendingReview Status = "pending_review"
	StatusFailed        Status = "failed"
)

// Attempt records one healing run, including the phases it moved
// through. Transitions respects the fixed order detecting → comparing
// → scoring → classified → terminal.
type Attempt struct {
	ID          string     `json:"id"`
	Selector    string     `json:"selector"`
	Status      Status     `json:"status"`
	Candidate   *Candidate `json:"candidate,omitempty"`
	Error       string     `json:"error,omitempty"`
	Transitions []Status   `json:"transitions"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}
