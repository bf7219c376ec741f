package memory

import (
	"fmt"
)

// Compaction selects when eviction runs relative to RecordTurn.
type Compaction string

const (
	// CompactionSync compacts inside RecordTurn before it returns.
	CompactionSync Compaction = "sync"

	// CompactionDeferred saves the appended turns, then compacts on the
	// worker pool under the same session lock.
	CompactionDeferred Compaction = "deferred"
)

// Config bounds the size of each session.
type Config struct {
	// MaxRecentTurns is the most turns kept verbatim.
	MaxRecentTurns int

	// MaxTotalTokens bounds recent turns plus summary.
	MaxTotalTokens int

	// MaxSummaryTokens bounds the summary and is reserved out of
	// MaxTotalTokens when deciding how many turns to evict.
	MaxSummaryTokens int

	// ForceRetainTurns is how many turns ForceSummarize keeps. At least 1.
	ForceRetainTurns int

	Compaction Compaction
}

// DefaultConfig returns the default session bounds.
func DefaultConfig() Config {
	return Config{
		MaxRecentTurns:   6,
		MaxTotalTokens:   2000,
		MaxSummaryTokens: 400,
		ForceRetainTurns: 2,
		Compaction:       CompactionSync,
	}
}

// Validate checks the bounds are usable.
func (c Config) Validate() error {
	if c.MaxRecentTurns < 1 {
		return fmt.Errorf("max recent turns must be positive, got %d", c.MaxRecentTurns)
	}
	if c.MaxTotalTokens < 1 {
		return fmt.Errorf("max total tokens must be positive, got %d", c.MaxTotalTokens)
	}
	if c.MaxSummaryTokens < 1 || c.MaxSummaryTokens >= c.MaxTotalTokens {
		return fmt.Errorf("max summary tokens must be between 1 and %d, got %d", c.MaxTotalTokens-1, c.MaxSummaryTokens)
	}
	if c.ForceRetainTurns < 1 {
		return fmt.Errorf("force retain turns must be at least 1, got %d", c.ForceRetainTurns)
	}
	switch c.Compaction {
	case CompactionSync, CompactionDeferred:
	default:
		return fmt.Errorf("unknown compaction mode %q", c.Compaction)
	}
	return nil
}
