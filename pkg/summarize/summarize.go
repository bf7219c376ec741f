// Package summarize compresses evicted conversation turns into a rolling
// summary. A model-backed strategy is preferred; a rule-based strategy is
// always available as the fallback.
package summarize

import (
	"context"
	"errors"

	"github.com/papercomputeco/recall/pkg/conversation"
)

var (
	// ErrGenerationTimeout is returned when the model does not answer in time.
	ErrGenerationTimeout = errors.New("summary generation timed out")

	// ErrGenerationFailed is returned for every other model failure,
	// including an empty answer.
	ErrGenerationFailed = errors.New("summary generation failed")

	// ErrNoTurns is returned when there is nothing to summarize.
	ErrNoTurns = errors.New("no turns to summarize")
)

// Summarizer builds new summary text from the previous summary (nil for the
// first compaction) and the non-empty batch of turns being evicted.
type Summarizer interface {
	Summarize(ctx context.Context, previous *conversation.Summary, turns []conversation.Turn) (string, error)
}

// Strategy names which summarizer produced a summary.
type Strategy string

const (
	StrategyModel Strategy = "model"
	StrategyRules Strategy = "rules"
)

// Fallback reasons reported in Result.FallbackReason.
const (
	ReasonUnconfigured = "unconfigured"
	ReasonTimeout      = "timeout"
	ReasonError        = "error"
)
