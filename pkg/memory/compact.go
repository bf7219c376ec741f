package memory

import (
	"context"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/summarize"
	"github.com/papercomputeco/recall/pkg/tokens"
	"github.com/papercomputeco/recall/pkg/worker"
)

const truncationMarker = "..."

// CompactionResult describes one fold of evicted turns into the summary.
type CompactionResult struct {
	EvictedTurns      int                `json:"evicted_turns"`
	Strategy          summarize.Strategy `json:"strategy"`
	FallbackReason    string             `json:"fallback_reason,omitempty"`
	CoveredTurnCount  int                `json:"covered_turn_count"`
	SummaryTokenCount int                `json:"summary_token_count"`
}

func (m *Manager) needsCompaction(state *conversation.State) bool {
	return len(state.Turns) > m.cfg.MaxRecentTurns || state.TotalTokens() > m.cfg.MaxTotalTokens
}

// evictCount returns how many of the oldest turns must go so the rest fit
// MaxRecentTurns and, with a full summary reserved, MaxTotalTokens. The
// newest turn is always kept.
func (m *Manager) evictCount(turns []conversation.Turn) int {
	remaining := 0
	for _, t := range turns {
		remaining += t.TokenCount
	}

	n := 0
	for {
		kept := len(turns) - n
		if kept <= 1 {
			return n
		}
		if kept <= m.cfg.MaxRecentTurns && remaining+m.cfg.MaxSummaryTokens <= m.cfg.MaxTotalTokens {
			return n
		}
		remaining -= turns[n].TokenCount
		n++
	}
}

// compact evicts the oldest turns of state in place and folds them into its
// summary with a single summarizer call. force keeps only ForceRetainTurns.
// It returns nil when nothing was evicted.
func (m *Manager) compact(ctx context.Context, state *conversation.State, force bool) *CompactionResult {
	n := m.evictCount(state.Turns)
	if force {
		n = max(len(state.Turns)-m.cfg.ForceRetainTurns, 0)
	}
	if n == 0 {
		return nil
	}

	start := time.Now()
	batch := state.Turns[:n]
	out := m.summarizer.Summarize(ctx, state.Summary, batch)
	text := clampTokens(out.Text, m.cfg.MaxSummaryTokens, m.estimator)

	state.Summary = state.Summary.Fold(text, batch, m.estimator)
	state.Turns = append([]conversation.Turn(nil), state.Turns[n:]...)

	elapsed := time.Since(start)
	m.metrics.ObserveCompaction(string(out.Strategy), out.FallbackReason, elapsed)
	m.logger.InfoContext(ctx, "session compacted",
		"session_id", state.SessionID,
		"evicted_turns", n,
		"strategy", out.Strategy,
		"fallback_reason", out.FallbackReason,
		"covered_turns", state.Summary.CoveredTurnCount,
		"duration", elapsed,
	)

	return &CompactionResult{
		EvictedTurns:      n,
		Strategy:          out.Strategy,
		FallbackReason:    out.FallbackReason,
		CoveredTurnCount:  state.Summary.CoveredTurnCount,
		SummaryTokenCount: state.Summary.TokenCount,
	}
}

// compactJob is the deferred compaction handler. The session is reloaded
// under its lock, so turns recorded after the job was queued are included.
func (m *Manager) compactJob(ctx context.Context, job worker.Job) error {
	var (
		res *CompactionResult
		st  Stats
	)
	err := m.withSession(ctx, job.SessionID, func(state *conversation.State) error {
		if !m.needsCompaction(state) {
			return nil
		}
		next := state.Clone()
		res = m.compact(ctx, next, false)
		if res == nil {
			return nil
		}
		if err := m.save(ctx, next); err != nil {
			return err
		}
		st = m.stats(next)
		return nil
	})
	if err != nil {
		return err
	}
	if res != nil {
		m.publishCompaction(ctx, job.SessionID, res, st)
	}
	return nil
}

// clampTokens cuts text at a word boundary so it estimates to at most
// limit tokens, marking the cut.
func clampTokens(text string, limit int, est tokens.Estimator) string {
	if est.Estimate(text) <= limit {
		return text
	}

	words := strings.Fields(text)
	fits := func(k int) bool {
		return est.Estimate(strings.Join(words[:k], " ")+truncationMarker) <= limit
	}
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo > 0 {
		return strings.Join(words[:lo], " ") + truncationMarker
	}

	// A single word is over the limit: cut by runes.
	runes := []rune(text)
	lo, hi = 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est.Estimate(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// Stats is the size of a session against its bounds.
type Stats struct {
	SessionID           string `json:"session_id"`
	RecentTurnCount     int    `json:"recent_turn_count"`
	RecentTokenCount    int    `json:"recent_token_count"`
	SummaryTokenCount   int    `json:"summary_token_count"`
	HasSummary          bool   `json:"has_summary"`
	SummarizedTurnCount int    `json:"summarized_turn_count"`
	TotalTokens         int    `json:"total_tokens"`
	MaxTotalTokens      int    `json:"max_total_tokens"`
	MaxRecentTurns      int    `json:"max_recent_turns"`

	// WillSummarizeNext is true when the session is above 80% of its token
	// budget or one more exchange would exceed MaxRecentTurns.
	WillSummarizeNext bool `json:"will_summarize_next"`
}

func (m *Manager) stats(state *conversation.State) Stats {
	st := Stats{
		SessionID:         state.SessionID,
		RecentTurnCount:   len(state.Turns),
		RecentTokenCount:  state.TurnTokens(),
		SummaryTokenCount: state.SummaryTokens(),
		HasSummary:        state.Summary != nil,
		TotalTokens:       state.TotalTokens(),
		MaxTotalTokens:    m.cfg.MaxTotalTokens,
		MaxRecentTurns:    m.cfg.MaxRecentTurns,
	}
	if state.Summary != nil {
		st.SummarizedTurnCount = state.Summary.CoveredTurnCount
	}
	st.WillSummarizeNext = st.TotalTokens*5 > m.cfg.MaxTotalTokens*4 ||
		st.RecentTurnCount+2 > m.cfg.MaxRecentTurns
	return st
}

func (s Stats) event() *eventstream.SessionStats {
	return &eventstream.SessionStats{
		RecentTurnCount:   s.RecentTurnCount,
		RecentTokenCount:  s.RecentTokenCount,
		SummaryTokenCount: s.SummaryTokenCount,
		HasSummary:        s.HasSummary,
	}
}
