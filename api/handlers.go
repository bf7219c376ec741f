package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/tokens"
)

const defaultHistoryLimit = 10

// sessionID copies the :id route param. Fiber reuses the request buffer
// once the handler returns, and the id outlives the request as a lock key
// and in deferred compaction jobs.
func sessionID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

// QueryRequest asks for a follow-up query to be made standalone.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the query to send to retrieval.
type QueryResponse struct {
	SessionID      string `json:"session_id"`
	Query          string `json:"query"`
	RewrittenQuery string `json:"rewritten_query"`
	WasRewritten   bool   `json:"was_rewritten"`
	Pattern        string `json:"pattern,omitempty"`
}

// TurnRequest records one completed user/assistant exchange.
type TurnRequest struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// TurnResponse reports the session after recording.
type TurnResponse struct {
	SessionID         string                   `json:"session_id"`
	Compacted         bool                     `json:"compacted"`
	CompactionPending bool                     `json:"compaction_pending"`
	Compaction        *memory.CompactionResult `json:"compaction,omitempty"`
	Stats             memory.Stats             `json:"stats"`
}

// ResetResponse confirms a deleted session.
type ResetResponse struct {
	SessionID string `json:"session_id"`
	Deleted   bool   `json:"deleted"`
}

// RewriteTestRequest rewrites a query against caller-supplied context
// without touching any session.
type RewriteTestRequest struct {
	Query   string           `json:"query"`
	History []HistoryMessage `json:"history"`
	Summary string           `json:"summary,omitempty"`
}

// HistoryMessage is one turn supplied to RewriteTestRequest.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := sessionID(c)
	res, err := s.manager.ProcessQuery(c.Context(), id, req.Query)
	if err != nil {
		return s.fail(c, "query", err)
	}

	return c.JSON(QueryResponse{
		SessionID:      id,
		Query:          res.Original,
		RewrittenQuery: res.Query,
		WasRewritten:   res.Rewritten,
		Pattern:        string(res.Pattern),
	})
}

func (s *Server) handleRecordTurn(c *fiber.Ctx) error {
	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id := sessionID(c)
	res, err := s.manager.RecordTurn(c.Context(), id, req.Query, req.Answer)
	if err != nil {
		return s.fail(c, "record", err)
	}

	return c.Status(fiber.StatusCreated).JSON(TurnResponse{
		SessionID:         id,
		Compacted:         res.Compaction != nil,
		CompactionPending: res.CompactionPending,
		Compaction:        res.Compaction,
		Stats:             res.Stats,
	})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}

	h, err := s.manager.History(c.Context(), sessionID(c), limit)
	if err != nil {
		return s.fail(c, "history", err)
	}
	return c.JSON(h)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	id := sessionID(c)
	if err := s.manager.Reset(c.Context(), id); err != nil {
		return s.fail(c, "reset", err)
	}
	return c.JSON(ResetResponse{SessionID: id, Deleted: true})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	st, err := s.manager.Stats(c.Context(), sessionID(c))
	if err != nil {
		return s.fail(c, "stats", err)
	}
	return c.JSON(st)
}

func (s *Server) handleSummarize(c *fiber.Ctx) error {
	res, err := s.manager.ForceSummarize(c.Context(), sessionID(c))
	if err != nil {
		return s.fail(c, "summarize", err)
	}
	return c.JSON(res)
}

func (s *Server) handleRewriteTest(c *fiber.Ctx) error {
	var req RewriteTestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}

	turns, err := historyTurns(req.History)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var summary *conversation.Summary
	if req.Summary != "" {
		summary = &conversation.Summary{Text: req.Summary}
	}

	res := s.manager.Rewriter().Rewrite(req.Query, summary, turns)
	return c.JSON(QueryResponse{
		Query:          res.Original,
		RewrittenQuery: res.Query,
		WasRewritten:   res.Rewritten,
		Pattern:        string(res.Pattern),
	})
}

// historyTurns converts caller history to turns. Token counts are not used
// by the rewriter, so the heuristic estimator is enough.
func historyTurns(msgs []HistoryMessage) ([]conversation.Turn, error) {
	est := tokens.NewHeuristic(0)
	turns := make([]conversation.Turn, 0, len(msgs))
	for i, m := range msgs {
		t, err := conversation.NewTurn(conversation.Role(m.Role), m.Content, time.Time{}, est)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
