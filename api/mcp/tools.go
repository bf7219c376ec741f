package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/memory"
)

const defaultHistoryLimit = 10

var (
	historyToolName    = "conversation_history"
	historyDescription = "Return the rolling summary and the most recent turns of a conversation session. Use this to see what the user already asked and was answered."

	statsToolName    = "conversation_stats"
	statsDescription = "Return the size of a conversation session: recent turn and token counts, whether a summary exists, and whether the next exchange will trigger summarization."

	rewriteToolName    = "rewrite_query"
	rewriteDescription = "Rewrite a follow-up question (e.g. \"and 2022?\") into a standalone question using the session's conversation context. Returns the query unchanged when it is already standalone or cannot be resolved."
)

// HistoryInput represents the input arguments for the conversation_history tool.
type HistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"the conversation session id"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of recent turns to return (default 10)"`
}

// StatsInput represents the input arguments for the conversation_stats tool.
type StatsInput struct {
	SessionID string `json:"session_id" jsonschema:"the conversation session id"`
}

// RewriteInput represents the input arguments for the rewrite_query tool.
type RewriteInput struct {
	SessionID string `json:"session_id" jsonschema:"the conversation session id"`
	Query     string `json:"query" jsonschema:"the user's raw query"`
}

// HistoryOutput is the structured result of conversation_history.
type HistoryOutput struct {
	SessionID        string       `json:"session_id"`
	Summary          string       `json:"summary,omitempty"`
	SummarizedTurns  int          `json:"summarized_turns"`
	RecentTurns      []TurnOutput `json:"recent_turns"`
	TotalRecentTurns int          `json:"total_recent_turns"`
}

// TurnOutput is one turn of HistoryOutput.
type TurnOutput struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func historyOutput(h memory.History) HistoryOutput {
	out := HistoryOutput{
		SessionID:        h.SessionID,
		RecentTurns:      make([]TurnOutput, 0, len(h.RecentTurns)),
		TotalRecentTurns: h.TotalRecentTurns,
	}
	if h.Summary != nil {
		out.Summary = h.Summary.Text
		out.SummarizedTurns = h.Summary.CoveredTurnCount
	}
	for _, t := range h.RecentTurns {
		out.RecentTurns = append(out.RecentTurns, TurnOutput{
			Role:      string(t.Role),
			Content:   t.Content,
			Timestamp: t.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

// RewriteOutput is the structured result of rewrite_query.
type RewriteOutput struct {
	Query          string `json:"query"`
	RewrittenQuery string `json:"rewritten_query"`
	WasRewritten   bool   `json:"was_rewritten"`
	Pattern        string `json:"pattern,omitempty"`
}

func (s *Server) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	h, err := s.config.Manager.History(ctx, input.SessionID, limit)
	if err != nil {
		s.config.Logger.Warn("mcp history failed", "session_id", input.SessionID, "error", err)
		return toolError("History lookup failed: %v", err), HistoryOutput{}, nil
	}

	out := historyOutput(h)
	res, err := jsonResult(out)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), HistoryOutput{}, nil
	}
	return res, out, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, memory.Stats, error) {
	st, err := s.config.Manager.Stats(ctx, input.SessionID)
	if err != nil {
		s.config.Logger.Warn("mcp stats failed", "session_id", input.SessionID, "error", err)
		return toolError("Stats lookup failed: %v", err), memory.Stats{}, nil
	}

	res, err := jsonResult(st)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), memory.Stats{}, nil
	}
	return res, st, nil
}

func (s *Server) handleRewrite(ctx context.Context, _ *mcp.CallToolRequest, input RewriteInput) (*mcp.CallToolResult, RewriteOutput, error) {
	r, err := s.config.Manager.ProcessQuery(ctx, input.SessionID, input.Query)
	if err != nil {
		return toolError("Rewrite failed: %v", err), RewriteOutput{}, nil
	}

	out := RewriteOutput{
		Query:          r.Original,
		RewrittenQuery: r.Query,
		WasRewritten:   r.Rewritten,
		Pattern:        string(r.Pattern),
	}
	res, err := jsonResult(out)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), RewriteOutput{}, nil
	}
	return res, out, nil
}
