package healing

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultLogCapacity bounds the in-memory attempt log.
const defaultLogCapacity = 100

// Runner executes healing attempts through the fixed state machine and
// records them in a bounded in-memory log. Attempts are demo-scoped
// state: a restart clears the log.
type Runner struct {
	matcher *Matcher
	logger  *slog.Logger

	mu       sync.Mutex
	attempts []Attempt
	capacity int
}

// NewRunner creates a Runner over matcher. logger may be nil.
func NewRunner(matcher *Matcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		matcher:  matcher,
		logger:   logger,
		capacity: defaultLogCapacity,
	}
}

// Run executes one healing attempt. The attempt always walks the phase
// order detecting → comparing → scoring → classified before reaching a
// terminal status: healed for auto-apply candidates, pending_review
// for review-tier candidates, failed for reject-tier candidates and
// errors. The attempt is recorded even when healing fails.
func (r *Runner) Run(baselineHTML, currentHTML, selector string) Attempt {
	attempt := Attempt{
		ID:        uuid.NewString(),
		Selector:  selector,
		CreatedAt: time.Now(),
	}
	advance := func(s Status) {
		attempt.Status = s
		attempt.Transitions = append(attempt.Transitions, s)
	}

	advance(StatusDetecting)
	advance(StatusComparing)

	candidate, err := r.matcher.Heal(baselineHTML, currentHTML, selector)
	if err != nil {
		advance(StatusFailed)
		attempt.Error = err.Error()
		r.finish(&attempt)
		return attempt
	}

	advance(StatusScoring)
	advance(StatusClassified)
	attempt.Candidate = candidate

	switch candidate.Tier {
	case TierAutoApply:
		advance(StatusHealed)
	case TierReview:
		advance(StatusPendingReview)
	default:
		advance(StatusFailed)
	}

	r.finish(&attempt)
	return attempt
}

func (r *Runner) finish(attempt *Attempt) {
	attempt.FinishedAt = time.Now()

	r.mu.Lock()
	r.attempts = append(r.attempts, *attempt)
	if len(r.attempts) > r.capacity {
		r.attempts = r.attempts[len(r.attempts)-r.capacity:]
	}
	r.mu.Unlock()

	fields := []any{
		"attempt_id", attempt.ID,
		"selector", attempt.Selector,
		"status", attempt.Status,
	}
	if attempt.Candidate != nil {
		fields = append(fields,
			"new_selector", attempt.Candidate.Selector,
			"strategy", attempt.Candidate.Strategy,
			"confidence", attempt.Candidate.Confidence)
	}
	r.logger.Info("healing attempt finished", fields...)
}

// Recent returns up to n attempts, newest first.
func (r *Runner) Recent(n int) []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.attempts) {
		n = len(r.attempts)
	}
	out := make([]Attempt, n)
	for i := range n {
		out[i] = r.attempts[len(r.attempts)-1-i]
	}
	return out
}
