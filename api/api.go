package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/metrics"
)

// Server is the API server over a conversation memory manager.
type Server struct {
	config  Config
	manager *memory.Manager
	metrics *metrics.Metrics
	mcp     http.Handler
	logger  *slog.Logger
	app     *fiber.App
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes the registry of m on GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMCP mounts an MCP streamable HTTP handler on /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new API server.
func NewServer(config Config, manager *memory.Manager, opts ...Option) *Server {
	bodyLimit, idle := config.fiberLimits()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		BodyLimit:             bodyLimit,
		IdleTimeout:           idle,
	})

	s := &Server{
		config:  config,
		manager: manager,
		logger:  logger.Nop(),
		app:     app,
	}
	for _, opt := range opts {
		opt(s)
	}

	app.Use(recover.New())

	app.Get("/ping", s.handlePing)

	sessions := app.Group("/sessions/:id")
	sessions.Post("/query", s.handleQuery)
	sessions.Post("/turns", s.handleRecordTurn)
	sessions.Get("/history", s.handleHistory)
	sessions.Delete("/history", s.handleReset)
	sessions.Get("/stats", s.handleStats)
	sessions.Post("/summarize", s.handleSummarize)

	app.Post("/rewrite/test", s.handleRewriteTest)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
	if s.mcp != nil {
		app.All("/mcp", adaptor.HTTPHandler(s.mcp))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
