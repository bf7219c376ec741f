package summarize

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/logger"
)

// Result is the outcome of one Selector call.
type Result struct {
	Text     string
	Strategy Strategy

	// FallbackReason is empty when the model produced the summary.
	FallbackReason string
}

// Selector picks a strategy on every call: the model when one is
// configured and answers in time, the rules otherwise.
type Selector struct {
	model  Summarizer
	rules  Summarizer
	logger *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithModel sets the model-backed summarizer. A nil model leaves the
// selector rule-only.
func WithModel(m Summarizer) SelectorOption {
	return func(s *Selector) {
		s.model = m
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = l
	}
}

// NewSelector creates a Selector falling back to rules.
func NewSelector(rules Summarizer, opts ...SelectorOption) *Selector {
	s := &Selector{
		rules:  rules,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasModel reports whether a model-backed summarizer is configured.
func (s *Selector) HasModel() bool {
	return s.model != nil
}

// Summarize never fails: model errors are logged and answered by the rules.
// turns must be non-empty.
func (s *Selector) Summarize(ctx context.Context, previous *conversation.Summary, turns []conversation.Turn) Result {
	reason := ReasonUnconfigured
	if s.model != nil {
		text, err := s.model.Summarize(ctx, previous, turns)
		if err == nil {
			return Result{Text: text, Strategy: StrategyModel}
		}

		reason = ReasonError
		if errors.Is(err, ErrGenerationTimeout) {
			reason = ReasonTimeout
		}
		s.logger.WarnContext(ctx, "model summarization failed, using rules",
			"reason", reason,
			"error", err,
		)
	}

	// Rules do not block, so they run even if ctx has ended.
	text, err := s.rules.Summarize(context.WithoutCancel(ctx), previous, turns)
	if err != nil {
		s.logger.ErrorContext(ctx, "rule summarization failed", "error", err)
	}
	return Result{Text: text, Strategy: StrategyRules, FallbackReason: reason}
}
