// Package session persists per-session conversation state in a kv.Driver.
//
// Each session occupies two keys, one for the recent turns and one for the
// rolling summary. Both are written in a single kv.Set and share one TTL.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/kv"
	"github.com/papercomputeco/recall/pkg/logger"
)

const (
	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "recall"

	// DefaultTTL is how long a session survives without writes.
	DefaultTTL = 24 * time.Hour
)

// Store loads and saves conversation.State values.
type Store struct {
	driver kv.Driver
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger used to report corrupt records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock replaces time.Now for LastAccess stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store over driver.
func NewStore(driver kv.Driver, opts ...Option) *Store {
	s := &Store{
		driver: driver,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured session TTL.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// TurnsKey returns the key holding a session's recent turns.
func (s *Store) TurnsKey(sessionID string) string {
	return s.prefix + ":session:" + sessionID + ":turns"
}

// SummaryKey returns the key holding a session's summary.
func (s *Store) SummaryKey(sessionID string) string {
	return s.prefix + ":session:" + sessionID + ":summary"
}

// Load returns the stored state for sessionID. Absent, expired, and
// undecodable records yield an empty state; only backend failures are
// returned, wrapped in ErrStoreUnavailable.
func (s *Store) Load(ctx context.Context, sessionID string) (*conversation.State, error) {
	state := conversation.NewState(sessionID)

	turnsData, err := s.get(ctx, s.TurnsKey(sessionID))
	if err != nil {
		return nil, err
	}
	if turnsData != nil {
		rec, err := conversation.UnmarshalTurns(turnsData)
		if err != nil {
			s.corrupt(ctx, sessionID, s.TurnsKey(sessionID), err)
		} else {
			state.Turns = rec.Turns
			state.LastAccess = rec.LastAccess
		}
	}

	summaryData, err := s.get(ctx, s.SummaryKey(sessionID))
	if err != nil {
		return nil, err
	}
	if summaryData != nil {
		sum, err := conversation.UnmarshalSummary(summaryData)
		if err != nil {
			s.corrupt(ctx, sessionID, s.SummaryKey(sessionID), err)
		} else {
			state.Summary = sum
		}
	}

	return state, nil
}

// Save overwrites both records of the state and refreshes their TTL. A nil
// summary removes the summary key in the same write, which also clears a
// summary record Load could not decode. On failure the previously stored
// state remains authoritative.
func (s *Store) Save(ctx context.Context, state *conversation.State) error {
	state.LastAccess = s.now().UTC()

	turnsData, err := conversation.MarshalTurns(state)
	if err != nil {
		return err
	}
	entries := []kv.Entry{{Key: s.TurnsKey(state.SessionID), Value: turnsData}}

	if state.Summary == nil {
		entries = append(entries, kv.Remove(s.SummaryKey(state.SessionID)))
	} else {
		summaryData, err := conversation.MarshalSummary(state.Summary)
		if err != nil {
			return err
		}
		entries = append(entries, kv.Entry{Key: s.SummaryKey(state.SessionID), Value: summaryData})
	}

	if err := s.driver.Set(ctx, s.ttl, entries...); err != nil {
		return unavailable("save", err)
	}
	return nil
}

// Touch refreshes the TTL of both records without changing them.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	if err := s.driver.Expire(ctx, s.ttl, s.TurnsKey(sessionID), s.SummaryKey(sessionID)); err != nil {
		return unavailable("touch", err)
	}
	return nil
}

// Delete removes both records.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.driver.Delete(ctx, s.TurnsKey(sessionID), s.SummaryKey(sessionID)); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.driver.Get(ctx, key)
	if kv.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("load", err)
	}
	return data, nil
}

func (s *Store) corrupt(ctx context.Context, sessionID, key string, err error) {
	cerr := CorruptRecordError{SessionID: sessionID, Key: key, Err: err}
	s.logger.WarnContext(ctx, "discarding corrupt session record",
		"session_id", sessionID,
		"key", key,
		"error", cerr,
	)
}
