package tokens

import "unicode/utf8"

// Heuristic estimates tokens with a fixed characters-per-token ratio.
// Good enough for threshold comparisons, not for billing.
type Heuristic struct {
	charsPerToken int
}

// NewHeuristic returns a Heuristic estimator. Ratios below 1 fall back to
// four characters per token.
func NewHeuristic(charsPerToken int) *Heuristic {
	if charsPerToken < 1 {
		charsPerToken = defaultCharsPerToken
	}
	return &Heuristic{charsPerToken: charsPerToken}
}

// Estimate rounds up so any non-empty text counts for at least one token.
func (h *Heuristic) Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + h.charsPerToken - 1) / h.charsPerToken
}
