// Package conversation defines the data model shared by the memory
// components: turns, the rolling summary, and the per-session state that
// aggregates them.
package conversation

import (
	"fmt"
	"time"

	"github.com/papercomputeco/recall/pkg/tokens"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation. Turns are values and are never
// modified after creation; TokenCount is computed once by NewTurn.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	TokenCount int       `json:"token_count"`
}

// NewTurn builds a turn and caches its token estimate. The timestamp is
// normalized to UTC.
func NewTurn(role Role, content string, at time.Time, est tokens.Estimator) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("invalid role: %q", role)
	}
	return Turn{
		Role:       role,
		Content:    content,
		Timestamp:  at.UTC(),
		TokenCount: est.Estimate(content),
	}, nil
}

// IsUser reports whether the turn was written by the user.
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// Summary is the compressed form of every turn evicted from a session so far.
type Summary struct {
	Text             string    `json:"text"`
	CoveredTurnCount int       `json:"covered_turn_count"`
	TokenCount       int       `json:"token_count"`
	StartTimestamp   time.Time `json:"start_timestamp"`
	EndTimestamp     time.Time `json:"end_timestamp"`
}

// Fold returns the summary that results from compressing batch into s with
// the given text. Coverage only grows: the start timestamp keeps its earliest
// value and the end timestamp its latest. s may be nil for the first
// compaction of a session. batch must be non-empty.
func (s *Summary) Fold(text string, batch []Turn, est tokens.Estimator) *Summary {
	next := &Summary{
		Text:             text,
		CoveredTurnCount: len(batch),
		TokenCount:       est.Estimate(text),
		StartTimestamp:   batch[0].Timestamp,
		EndTimestamp:     batch[len(batch)-1].Timestamp,
	}
	if s == nil {
		return next
	}

	next.CoveredTurnCount += s.CoveredTurnCount
	if !s.StartTimestamp.IsZero() && s.StartTimestamp.Before(next.StartTimestamp) {
		next.StartTimestamp = s.StartTimestamp
	}
	if s.EndTimestamp.After(next.EndTimestamp) {
		next.EndTimestamp = s.EndTimestamp
	}
	return next
}
