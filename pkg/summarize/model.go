package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/generate"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 10 * time.Second

const promptTemplate = `Please create a concise summary of this conversation that captures the key topics, questions asked, and important information discussed. Focus on:

1. Main topics and themes discussed
2. Key financial data or metrics mentioned
3. Important questions and their answers
4. Any follow-up patterns or user interests

Keep the summary under 200 words and maintain the essential context that would be useful for understanding future questions.

Conversation to summarize:
%s
Summary:`

// Model summarizes with a text generator.
type Model struct {
	generator generate.Generator
	timeout   time.Duration
}

// NewModel wraps generator. A timeout of zero or less uses DefaultTimeout.
func NewModel(generator generate.Generator, timeout time.Duration) *Model {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Model{generator: generator, timeout: timeout}
}

// Summarize asks the model for a summary and returns its trimmed answer.
func (m *Model) Summarize(ctx context.Context, previous *conversation.Summary, turns []conversation.Turn) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.generator.Generate(ctx, BuildPrompt(previous, turns))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, m.timeout, err)
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	return out, nil
}

// BuildPrompt renders the summarization prompt.
func BuildPrompt(previous *conversation.Summary, turns []conversation.Turn) string {
	var b strings.Builder
	if previous != nil && previous.Text != "" {
		fmt.Fprintf(&b, "Previous summary: %s\n\n", previous.Text)
	}

	b.WriteString("Recent conversation:\n")
	for _, t := range turns {
		label := "User"
		if t.Role == conversation.RoleAssistant {
			label = "AI"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Content)
	}

	return fmt.Sprintf(promptTemplate, b.String())
}
