package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// TurnsRecord is the persisted form of a session's recent turns.
type TurnsRecord struct {
	SessionID  string    `json:"session_id"`
	Turns      []Turn    `json:"turns"`
	LastAccess time.Time `json:"last_access"`
}

// MarshalTurns encodes the recent-turns half of s.
func MarshalTurns(s *State) ([]byte, error) {
	turns := s.Turns
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(TurnsRecord{
		SessionID:  s.SessionID,
		Turns:      turns,
		LastAccess: s.LastAccess.UTC(),
	})
}

// UnmarshalTurns decodes a recent-turns record. Turns with unknown roles make
// the whole record invalid.
func UnmarshalTurns(data []byte) (*TurnsRecord, error) {
	var rec TurnsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode turns record: %w", err)
	}
	for i, t := range rec.Turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("decode turns record: turn %d has invalid role %q", i, t.Role)
		}
	}
	return &rec, nil
}

// MarshalSummary encodes a summary record.
func MarshalSummary(s *Summary) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSummary decodes a summary record.
func UnmarshalSummary(data []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary record: %w", err)
	}
	if s.CoveredTurnCount < 0 || s.TokenCount < 0 {
		return nil, fmt.Errorf("decode summary record: negative counts")
	}
	return &s, nil
}
