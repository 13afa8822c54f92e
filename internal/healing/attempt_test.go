package healing

import (
	"slices"
	"testing"
)

func newTestRunner() *Runner {
	return NewRunner(NewMatcher(nil), nil)
}

func TestRunHealedAttempt(t *testing.T) {
	r := newTestRunner()
	attempt := r.Run(baselinePage, baselinePage, "#login-btn")

	if attempt.Status != StatusHealed {
		t.Errorf("status = %s, want healed", attempt.Status)
	}
	want := []Status{StatusDetecting, StatusComparing, StatusScoring, StatusClassified, StatusHealed}
	if !slices.Equal(attempt.Transitions, want) {
		t.Errorf("transitions = %v, want %v", attempt.Transitions, want)
	}
	if attempt.Candidate == nil || attempt.Candidate.Tier != TierAutoApply {
		t.Errorf("candidate = %+v", attempt.Candidate)
	}
	if attempt.ID == "" || attempt.FinishedAt.IsZero() {
		t.Error("attempt missing id or finish time")
	}
}

func TestRunPendingReviewAttempt(t *testing.T) {
	current := `<html><body>
  <button role="button" aria-label="Log in" class="totally-new">Continue</button>
</body></html>`

	r := newTestRunner()
	attempt := r.Run(baselinePage, current, "#login-btn")

	if attempt.Status != StatusPendingReview {
		t.Errorf("status = %s, want pending_review", attempt.Status)
	}
	if attempt.Candidate == nil || attempt.Candidate.Tier != TierReview {
		t.Errorf("candidate = %+v", attempt.Candidate)
	}
}

func TestRunFailedAttempt(t *testing.T) {
	current := `<html><body><p>gone</p></body></html>`

	r := newTestRunner()
	attempt := r.Run(baselinePage, current, "#login-btn")

	if attempt.Status != StatusFailed {
		t.Errorf("status = %s, want failed", attempt.Status)
	}
	if attempt.Error == "" {
		t.Error("failed attempt must carry the error")
	}
	// The failure is still a complete, recorded attempt.
	if got := r.Recent(10); len(got) != 1 || got[0].ID != attempt.ID {
		t.Errorf("Recent = %+v, want the failed attempt logged", got)
	}
}

func TestRecentOrderAndBound(t *testing.T) {
	r := newTestRunner()
	r.capacity = 3

	selectors := []string{"#username", "#password", "#login-btn", "#username"}
	for _, sel := range selectors {
		r.Run(baselinePage, baselinePage, sel)
	}

	got := r.Recent(10)
	if len(got) != 3 {
		t.Fatalf("Recent = %d attempts, want the capped 3", len(got))
	}
	if got[0].Selector != "#username" || got[2].Selector != "#password" {
		t.Errorf("Recent order wrong: %q ... %q, want newest first", got[0].Selector, got[2].Selector)
	}

	if limited := r.Recent(1); len(limited) != 1 || limited[0].Selector != "#username" {
		t.Errorf("Recent(1) = %+v", limited)
	}
}
