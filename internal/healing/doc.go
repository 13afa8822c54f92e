// Package healing implements the self-healing UI-selector matcher for
// the test-automation demo. Given a baseline DOM snapshot, a current
// snapshot and a broken CSS selector, it proposes a replacement
// selector with a confidence score and classifies the proposal into an
// action tier: auto-apply, human review, or reject.
//
// Matching is heuristic and fully offline: goquery parses both
// snapshots and a fixed set of fallback strategies (text match, ARIA
// role/label, attribute profile, sibling position) is scored against
// the baseline element. No model call is involved, so healing results
// are deterministic for a given pair of snapshots.
package healing
