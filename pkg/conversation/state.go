package conversation

import (
	"slices"
	"time"
)

// State is the aggregate stored per session. The Conversation Manager works
// on a copy and writes back a full replacement.
type State struct {
	SessionID  string
	Turns      []Turn
	Summary    *Summary
	LastAccess time.Time
}

// NewState returns the empty state for a session that has no stored record.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		SessionID:  s.SessionID,
		Turns:      slices.Clone(s.Turns),
		LastAccess: s.LastAccess,
	}
	if s.Summary != nil {
		sum := *s.Summary
		c.Summary = &sum
	}
	return c
}

// IsEmpty reports whether the session has neither turns nor a summary.
func (s *State) IsEmpty() bool {
	return len(s.Turns) == 0 && s.Summary == nil
}

// TurnTokens is the sum of the cached token counts of the recent turns.
func (s *State) TurnTokens() int {
	total := 0
	for _, t := range s.Turns {
		total += t.TokenCount
	}
	return total
}

// SummaryTokens is the summary's token count, or 0 without a summary.
func (s *State) SummaryTokens() int {
	if s.Summary == nil {
		return 0
	}
	return s.Summary.TokenCount
}

// TotalTokens is TurnTokens plus SummaryTokens.
func (s *State) TotalTokens() int {
	return s.TurnTokens() + s.SummaryTokens()
}

// UserTurns returns the user turns, most recent first.
func (s *State) UserTurns() []Turn {
	out := make([]Turn, 0, len(s.Turns))
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].IsUser() {
			out = append(out, s.Turns[i])
		}
	}
	return out
}

// Tail returns the last n turns, or all of them when n <= 0 or n exceeds
// the number of turns.
func (s *State) Tail(n int) []Turn {
	if n <= 0 || n >= len(s.Turns) {
		return slices.Clone(s.Turns)
	}
	return slices.Clone(s.Turns[len(s.Turns)-n:])
}
