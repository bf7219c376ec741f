// Package memory is the conversation manager: the entry points the answer
// pipeline calls to fetch context, rewrite follow-up queries, and record
// completed exchanges.
//
// Every operation on a session runs under that session's lock from a
// process-wide keylock.Registry, so load/modify/save cycles on one session
// never interleave while different sessions proceed independently.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/keylock"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/metrics"
	"github.com/papercomputeco/recall/pkg/rewrite"
	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/summarize"
	"github.com/papercomputeco/recall/pkg/tokens"
	"github.com/papercomputeco/recall/pkg/worker"
)

const maxSessionIDLength = 256

// Manager orchestrates the session store, rewriter and summarizer.
type Manager struct {
	cfg        Config
	store      *session.Store
	estimator  tokens.Estimator
	rewriter   *rewrite.Rewriter
	summarizer *summarize.Selector
	locks      *keylock.Registry
	pool       *worker.Pool
	publisher  eventstream.Publisher
	events     *emitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	workers     uint
	queueSize   uint
	eventBuffer int

	closeOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithEstimator sets the token estimator. It must be the one used for
// every turn already stored.
func WithEstimator(e tokens.Estimator) Option {
	return func(m *Manager) { m.estimator = e }
}

// WithRewriter sets the query rewriter.
func WithRewriter(r *rewrite.Rewriter) Option {
	return func(m *Manager) { m.rewriter = r }
}

// WithSummarizer sets the summarizer selector.
func WithSummarizer(s *summarize.Selector) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithPublisher sets the event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEventBuffer sizes the queue of events waiting for the publisher.
func WithEventBuffer(n int) Option {
	return func(m *Manager) { m.eventBuffer = n }
}

// WithWorkers sizes the deferred compaction pool.
func WithWorkers(n, queueSize uint) Option {
	return func(m *Manager) {
		m.workers = n
		m.queueSize = queueSize
	}
}

// NewManager creates a Manager over store. Unset collaborators default to
// the heuristic estimator, the default rewriter, a rule-only summarizer, a
// no-op publisher and fresh metrics.
func NewManager(store *session.Store, cfg Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("memory manager requires a session store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		locks:  keylock.New(),
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.estimator == nil {
		m.estimator = tokens.NewHeuristic(0)
	}
	if m.rewriter == nil {
		m.rewriter = rewrite.New(nil)
	}
	if m.summarizer == nil {
		m.summarizer = summarize.NewSelector(summarize.NewRules(nil, 0), summarize.WithLogger(m.logger))
	}
	if m.publisher == nil {
		m.publisher = nop.NewPublisher()
	}
	if m.metrics == nil {
		m.metrics = metrics.New("")
	}

	if cfg.Compaction == CompactionDeferred {
		pool, err := worker.NewPool(&worker.Config{
			Handler:    m.compactJob,
			NumWorkers: m.workers,
			QueueSize:  m.queueSize,
			Logger:     m.logger.With("component", "compaction"),
		})
		if err != nil {
			return nil, fmt.Errorf("create compaction pool: %w", err)
		}
		m.pool = pool
	}
	m.events = newEmitter(m.publisher, m.eventBuffer, m.metrics, m.logger.With("component", "events"))

	return m, nil
}

// Config returns the manager's bounds.
func (m *Manager) Config() Config {
	return m.cfg
}

// Rewriter returns the query rewriter, for stateless rewrite checks.
func (m *Manager) Rewriter() *rewrite.Rewriter {
	return m.rewriter
}

// Close drains pending deferred compactions, then waits for queued events
// to reach the publisher. It does not close the publisher.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.pool != nil {
			m.pool.Close()
		}
		m.events.close()
	})
	return nil
}

// GetContext returns the summary and recent turns of a session and
// refreshes its TTL. Unknown and expired sessions yield (nil, empty).
func (m *Manager) GetContext(ctx context.Context, sessionID string) (*conversation.Summary, []conversation.Turn, error) {
	var (
		summary *conversation.Summary
		turns   []conversation.Turn
	)
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		m.touch(ctx, state)
		c := state.Clone()
		summary, turns = c.Summary, c.Turns
		return nil
	})
	if turns == nil && err == nil {
		turns = []conversation.Turn{}
	}
	return summary, turns, err
}

// ProcessQuery rewrites a follow-up query against the session's context.
// It never changes stored turns.
func (m *Manager) ProcessQuery(ctx context.Context, sessionID, rawQuery string) (rewrite.Result, error) {
	if strings.TrimSpace(rawQuery) == "" {
		return rewrite.Result{}, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}

	var res rewrite.Result
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		res = m.rewriter.Rewrite(rawQuery, state.Summary, state.Turns)
		m.touch(ctx, state)
		return nil
	})
	if err != nil {
		return rewrite.Result{}, err
	}

	m.metrics.ObserveRewrite(string(res.Pattern), res.Rewritten)
	if res.Rewritten {
		m.logger.DebugContext(ctx, "query rewritten",
			"session_id", sessionID,
			"pattern", res.Pattern,
			"original", res.Original,
			"rewritten", res.Query,
		)
	}
	return res, nil
}

// RecordResult describes what RecordTurn did.
type RecordResult struct {
	// Compaction is set when turns were folded into the summary.
	Compaction *CompactionResult `json:"compaction,omitempty"`

	// CompactionPending is true when compaction was handed to the
	// deferred worker pool.
	CompactionPending bool  `json:"compaction_pending"`
	Stats             Stats `json:"stats"`
}

// RecordTurn appends the user query and assistant answer as two turns,
// compacts when the session is over budget, and saves the result.
func (m *Manager) RecordTurn(ctx context.Context, sessionID, userQuery, answer string) (RecordResult, error) {
	if strings.TrimSpace(userQuery) == "" || strings.TrimSpace(answer) == "" {
		return RecordResult{}, fmt.Errorf("%w: query and answer must be non-empty", ErrInvalidInput)
	}

	var res RecordResult
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		now := m.now()
		q, err := conversation.NewTurn(conversation.RoleUser, userQuery, now, m.estimator)
		if err != nil {
			return err
		}
		a, err := conversation.NewTurn(conversation.RoleAssistant, answer, now, m.estimator)
		if err != nil {
			return err
		}

		next := state.Clone()
		next.Turns = append(next.Turns, q, a)

		var comp *CompactionResult
		if m.needsCompaction(next) {
			if m.cfg.Compaction == CompactionDeferred {
				if err := m.save(ctx, next); err != nil {
					return err
				}
				if m.pool.Enqueue(worker.Job{SessionID: sessionID}) {
					res.CompactionPending = true
					res.Stats = m.stats(next)
					m.metrics.TurnsRecorded.Inc()
					return nil
				}
				m.logger.WarnContext(ctx, "compaction queue full, compacting inline", "session_id", sessionID)
			}
			comp = m.compact(ctx, next, false)
		}

		if err := m.save(ctx, next); err != nil {
			return err
		}
		res.Compaction = comp
		res.Stats = m.stats(next)
		m.metrics.TurnsRecorded.Inc()
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	event := eventstream.NewSessionEvent(eventstream.EventTypeTurnRecorded, sessionID)
	event.Stats = res.Stats.event()
	m.publish(ctx, event)
	if res.Compaction != nil {
		m.publishCompaction(ctx, sessionID, res.Compaction, res.Stats)
	}
	return res, nil
}

// ForceResult describes a ForceSummarize call.
type ForceResult struct {
	Summarized bool              `json:"summarized"`
	Message    string            `json:"message,omitempty"`
	Compaction *CompactionResult `json:"compaction,omitempty"`
	Before     Stats             `json:"before"`
	After      Stats             `json:"after"`
}

// ForceSummarize folds every turn except the newest ForceRetainTurns into
// the summary, regardless of the normal thresholds.
func (m *Manager) ForceSummarize(ctx context.Context, sessionID string) (ForceResult, error) {
	var res ForceResult
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		res.Before = m.stats(state)
		if len(state.Turns) <= m.cfg.ForceRetainTurns {
			res.Message = fmt.Sprintf("not enough turns to summarize (more than %d required)", m.cfg.ForceRetainTurns)
			res.After = res.Before
			return nil
		}

		next := state.Clone()
		res.Compaction = m.compact(ctx, next, true)
		if err := m.save(ctx, next); err != nil {
			return err
		}
		res.Summarized = true
		res.After = m.stats(next)
		return nil
	})
	if err != nil {
		return ForceResult{}, err
	}

	if res.Compaction != nil {
		m.publishCompaction(ctx, sessionID, res.Compaction, res.After)
	}
	return res, nil
}

// Stats reports the size of a session.
func (m *Manager) Stats(ctx context.Context, sessionID string) (Stats, error) {
	var st Stats
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		st = m.stats(state)
		return nil
	})
	return st, err
}

// History is a session's summary and its most recent turns.
type History struct {
	SessionID        string                `json:"session_id"`
	Summary          *conversation.Summary `json:"summary"`
	RecentTurns      []conversation.Turn   `json:"recent_turns"`
	TotalRecentTurns int                   `json:"total_recent_turns"`
}

// History returns the summary and the last limit turns; limit <= 0 returns
// all recent turns.
func (m *Manager) History(ctx context.Context, sessionID string, limit int) (History, error) {
	h := History{SessionID: sessionID}
	err := m.withSession(ctx, sessionID, func(state *conversation.State) error {
		c := state.Clone()
		h.Summary = c.Summary
		h.RecentTurns = c.Tail(limit)
		h.TotalRecentTurns = len(c.Turns)
		return nil
	})
	if h.RecentTurns == nil {
		h.RecentTurns = []conversation.Turn{}
	}
	return h, err
}

// Reset deletes a session.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	err = m.store.Delete(ctx, sessionID)
	unlock()
	if err != nil {
		m.metrics.StoreErrors.WithLabelValues("delete").Inc()
		return err
	}

	m.publish(ctx, eventstream.NewSessionEvent(eventstream.EventTypeSessionReset, sessionID))
	return nil
}

// withSession validates the id, takes the session lock, loads the state
// and runs fn with it.
func (m *Manager) withSession(ctx context.Context, sessionID string, fn func(*conversation.State) error) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		m.metrics.StoreErrors.WithLabelValues("load").Inc()
		return err
	}
	return fn(state)
}

func (m *Manager) save(ctx context.Context, state *conversation.State) error {
	if err := m.store.Save(ctx, state); err != nil {
		m.metrics.StoreErrors.WithLabelValues("save").Inc()
		return err
	}
	return nil
}

// touch refreshes the TTL of an existing session. Failures are logged; the
// data already loaded is still returned.
func (m *Manager) touch(ctx context.Context, state *conversation.State) {
	if state.IsEmpty() {
		return
	}
	if err := m.store.Touch(ctx, state.SessionID); err != nil {
		m.metrics.StoreErrors.WithLabelValues("touch").Inc()
		m.logger.WarnContext(ctx, "failed to refresh session ttl",
			"session_id", state.SessionID,
			"error", err,
		)
	}
}

func (m *Manager) publish(ctx context.Context, event *eventstream.SessionEvent) {
	m.events.emit(ctx, event)
}

func (m *Manager) publishCompaction(ctx context.Context, sessionID string, c *CompactionResult, st Stats) {
	event := eventstream.NewSessionEvent(eventstream.EventTypeSessionCompacted, sessionID)
	event.Stats = st.event()
	event.Compaction = &eventstream.CompactionMeta{
		EvictedTurns:     c.EvictedTurns,
		Strategy:         string(c.Strategy),
		FallbackReason:   c.FallbackReason,
		CoveredTurnCount: c.CoveredTurnCount,
	}
	m.publish(ctx, event)
}

func validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if len(id) > maxSessionIDLength {
		return fmt.Errorf("%w: session id longer than %d bytes", ErrInvalidInput, maxSessionIDLength)
	}
	if strings.ContainsAny(id, ": \t\n") {
		return fmt.Errorf("%w: session id contains reserved characters", ErrInvalidInput)
	}
	return nil
}
