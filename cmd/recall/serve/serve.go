// Package servecmder provides the serve command that runs the recall API server.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/utils"
)

type ServeCommander struct {
	// Flag targets. Their values reach the config through viper.
	listen            string
	storeBackend      string
	sqlitePath        string
	postgresDSN       string
	storeTTL          string
	maxRecentTurns    uint
	maxTotalTokens    uint
	maxSummaryTokens  uint
	compaction        string
	tokenizer         string
	summarizer        string
	summarizerModel   string
	summarizerURL     string
	summarizerTimeout string
	events            string
	kafkaBrokers      string
	kafkaTopic        string

	logFile string
	debug   bool

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the recall API server.

The server keeps per-session conversation memory for a document QA assistant:
recent turns stay verbatim, older turns are folded into a rolling summary and
follow-up questions are rewritten into standalone queries.

Endpoints:
  POST   /sessions/:id/query       Rewrite a follow-up question
  POST   /sessions/:id/turns       Record a question and answer
  GET    /sessions/:id/history     Summary and recent turns
  DELETE /sessions/:id/history     Forget a session
  GET    /sessions/:id/stats       Token accounting for a session
  POST   /sessions/:id/summarize   Force a compaction
  POST   /rewrite/test             Dry-run the query rewriter
  GET    /metrics                  Prometheus metrics
         /mcp                      MCP tools over streamable HTTP

Settings resolve from flags, then RECALL_* environment variables, then
config.toml in the .recall directory, then defaults.`

const serveShortDesc string = "Run the recall API server"

var stringFlags = []string{
	config.FlagListen,
	config.FlagStoreBackend,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagStoreTTL,
	config.FlagCompaction,
	config.FlagTokenizer,
	config.FlagSummarizerProvider,
	config.FlagSummarizerModel,
	config.FlagSummarizerURL,
	config.FlagSummarizerTimeout,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

var uintFlags = []string{
	config.FlagMaxRecentTurns,
	config.FlagMaxTotalTokens,
	config.FlagMaxSummaryTokens,
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&ServeCommander{})
}

func newServeCmd(cmder *ServeCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, append(append([]string{}, stringFlags...), uintFlags...))
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			log, closeLog, err := cmder.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			cmder.logger = log

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreBackend, &cmder.storeBackend)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTTL, &cmder.storeTTL)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxRecentTurns, &cmder.maxRecentTurns)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxTotalTokens, &cmder.maxTotalTokens)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxSummaryTokens, &cmder.maxSummaryTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagCompaction, &cmder.compaction)
	config.AddStringFlag(cmd, config.Flags, config.FlagTokenizer, &cmder.tokenizer)
	config.AddStringFlag(cmd, config.Flags, config.FlagSummarizerProvider, &cmder.summarizer)
	config.AddStringFlag(cmd, config.Flags, config.FlagSummarizerModel, &cmder.summarizerModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagSummarizerURL, &cmder.summarizerURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagSummarizerTimeout, &cmder.summarizerTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// newLogger returns a pretty logger on w and, when --log-file is set, a JSON
// logger on that file as well.
func (c *ServeCommander) newLogger(w io.Writer) (*slog.Logger, func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(w),
	)
	console.Info("recall", "version", utils.VersionString())
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
		logger.WithAttrs("service", "recall", "version", utils.Version),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

func (c *ServeCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			c.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	c.logger.Info("memory configured",
		"max_recent_turns", c.cfg.Memory.MaxRecentTurns,
		"max_total_tokens", c.cfg.Memory.MaxTotalTokens,
		"max_summary_tokens", c.cfg.Memory.MaxSummaryTokens,
		"compaction", c.cfg.Memory.Compaction,
		"tokenizer", c.cfg.Memory.Tokenizer,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := rt.server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return rt.server.Shutdown()
	}
}
