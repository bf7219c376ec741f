package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after a user/assistant exchange is saved.
	EventTypeTurnRecorded = "recall.turn.recorded"

	// EventTypeSessionCompacted is emitted after turns are folded into the summary.
	EventTypeSessionCompacted = "recall.session.compacted"

	// EventTypeSessionReset is emitted after a session is deleted.
	EventTypeSessionReset = "recall.session.reset"
)

// SessionEvent is a transport-neutral event payload about one session.
type SessionEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	SessionID     string          `json:"session_id"`
	Stats         *SessionStats   `json:"stats,omitempty"`
	Compaction    *CompactionMeta `json:"compaction,omitempty"`
}

// SessionStats is the session's size after the event.
type SessionStats struct {
	RecentTurnCount   int  `json:"recent_turn_count"`
	RecentTokenCount  int  `json:"recent_token_count"`
	SummaryTokenCount int  `json:"summary_token_count"`
	HasSummary        bool `json:"has_summary"`
}

// CompactionMeta describes one compaction.
type CompactionMeta struct {
	EvictedTurns     int    `json:"evicted_turns"`
	Strategy         string `json:"strategy"`
	FallbackReason   string `json:"fallback_reason,omitempty"`
	CoveredTurnCount int    `json:"covered_turn_count"`
}

// NewSessionEvent stamps a new event with an id and emission time.
func NewSessionEvent(eventType, sessionID string) *SessionEvent {
	return &SessionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     sessionID,
	}
}
