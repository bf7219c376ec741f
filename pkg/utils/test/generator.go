package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is a test text generator that returns a fixed response
// and records the prompts it receives.
type MockGenerator struct {
	// Response is returned for every prompt.
	Response string

	// Err, when set, is returned instead of Response.
	Err error

	// Delay makes Generate wait before answering. A context that ends first
	// wins, which simulates a slow model.
	Delay time.Duration

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a generator answering with response.
func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{Response: response}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("mock generator: %w", ctx.Err())
		}
	}

	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Prompts returns a copy of every prompt received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
