// Package tokens estimates how many model tokens a piece of text occupies.
//
// Estimates drive two decisions: when a session's history has to be
// compacted, and what usage is reported back to callers. An Estimator is
// fixed for the lifetime of a process so token counts cached on stored turns
// stay comparable with freshly computed ones.
package tokens

import (
	"fmt"
	"strings"
)

const (
	// NameHeuristic selects the character-ratio estimator.
	NameHeuristic = "heuristic"

	// NameCL100kBase selects the tiktoken cl100k_base encoding.
	NameCL100kBase = "cl100k_base"

	// NameO200kBase selects the tiktoken o200k_base encoding.
	NameO200kBase = "o200k_base"

	defaultCharsPerToken = 4
)

// Estimator maps text to an approximate, non-negative token count.
// Implementations must be deterministic for a given text.
type Estimator interface {
	Estimate(text string) int
}

// New returns the estimator registered under name. An empty name selects
// the heuristic estimator.
func New(name string) (Estimator, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "", NameHeuristic:
		return NewHeuristic(defaultCharsPerToken), nil
	case NameCL100kBase, NameO200kBase:
		return NewTiktoken(normalized)
	default:
		return nil, fmt.Errorf("unsupported tokenizer: %s", name)
	}
}

// Sum estimates each text and adds the results.
func Sum(e Estimator, texts ...string) int {
	total := 0
	for _, t := range texts {
		total += e.Estimate(t)
	}
	return total
}
