package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/generate"
	"github.com/papercomputeco/recall/pkg/kv"
	"github.com/papercomputeco/recall/pkg/kv/inmemory"
	"github.com/papercomputeco/recall/pkg/kv/postgres"
	"github.com/papercomputeco/recall/pkg/kv/sqlite"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/metrics"
	"github.com/papercomputeco/recall/pkg/rewrite"
	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/summarize"
	"github.com/papercomputeco/recall/pkg/tokens"
)

const minSweepInterval = time.Minute

// sweeper is implemented by backends that delete expired rows on demand.
type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// runtime is every long-lived component of a running server.
type runtime struct {
	driver    kv.Driver
	publisher eventstream.Publisher
	metrics   *metrics.Metrics
	manager   *memory.Manager
	server    *api.Server
	logger    *slog.Logger

	stopSweep context.CancelFunc
	sweepWG   sync.WaitGroup
}

// newRuntime builds the server from a resolved configuration.
func newRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: log}

	ttl, err := time.ParseDuration(cfg.Store.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid store ttl %q: %w", cfg.Store.TTL, err)
	}
	summaryTimeout, err := time.ParseDuration(cfg.Summarizer.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid summarizer timeout %q: %w", cfg.Summarizer.Timeout, err)
	}

	estimator, err := tokens.New(cfg.Memory.Tokenizer)
	if err != nil {
		return nil, err
	}

	rt.driver, err = newDriver(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}

	rt.publisher, err = newPublisher(cfg.Events, log)
	if err != nil {
		_ = rt.driver.Close()
		return nil, err
	}

	selector, err := newSelector(cfg.Summarizer, summaryTimeout, log)
	if err != nil {
		rt.closeBackends()
		return nil, err
	}

	rt.metrics = metrics.New(metrics.DefaultNamespace)
	store := session.NewStore(rt.driver,
		session.WithPrefix(cfg.Store.Prefix),
		session.WithTTL(ttl),
		session.WithLogger(log.With("component", "session")),
	)

	rt.manager, err = memory.NewManager(store, memoryConfig(cfg.Memory),
		memory.WithEstimator(estimator),
		memory.WithRewriter(rewrite.New(nil)),
		memory.WithSummarizer(selector),
		memory.WithPublisher(rt.publisher),
		memory.WithMetrics(rt.metrics),
		memory.WithLogger(log.With("component", "memory")),
		memory.WithWorkers(cfg.Memory.Workers, cfg.Memory.QueueSize),
	)
	if err != nil {
		rt.closeBackends()
		return nil, fmt.Errorf("creating memory manager: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Manager: rt.manager,
		Logger:  log.With("component", "mcp"),
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	rt.server = api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, rt.manager,
		api.WithMetrics(rt.metrics),
		api.WithMCP(mcpServer.Handler()),
		api.WithLogger(log.With("component", "api")),
	)

	if s, ok := rt.driver.(sweeper); ok {
		rt.startSweeper(s, max(ttl/4, minSweepInterval))
	}

	return rt, nil
}

func memoryConfig(c config.MemoryConfig) memory.Config {
	return memory.Config{
		MaxRecentTurns:   c.MaxRecentTurns,
		MaxTotalTokens:   c.MaxTotalTokens,
		MaxSummaryTokens: c.MaxSummaryTokens,
		ForceRetainTurns: c.ForceRetainTurns,
		Compaction:       memory.Compaction(c.Compaction),
	}
}

func newDriver(ctx context.Context, c config.StoreConfig, log *slog.Logger) (kv.Driver, error) {
	switch c.Backend {
	case "", "memory":
		log.Info("using in-memory session store", "size", c.Size)
		return inmemory.NewDriver(c.Size)

	case "sqlite":
		if c.SQLitePath == "" {
			return nil, errors.New("sqlite session store requires store.sqlite_path")
		}
		d, err := sqlite.NewDriver(c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		log.Info("using SQLite session store", "path", c.SQLitePath)
		return d, nil

	case "postgres":
		if c.PostgresDSN == "" {
			return nil, errors.New("postgres session store requires store.postgres_dsn")
		}
		d, err := postgres.NewDriver(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		log.Info("using PostgreSQL session store")
		return d, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

func newPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "nop":
		return nop.NewPublisher(nop.WithLogger(log)), nil

	case "kafka":
		brokers := splitList(c.Brokers)
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   c.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing session events to kafka", "brokers", brokers, "topic", c.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown events provider %q", c.Provider)
	}
}

func newSelector(c config.SummarizerConfig, timeout time.Duration, log *slog.Logger) (*summarize.Selector, error) {
	log = log.With("component", "summarizer")
	opts := []summarize.SelectorOption{summarize.WithLogger(log)}

	gen, err := generate.New(generate.Config{
		Provider: c.Provider,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating summary model: %w", err)
	}
	if gen != nil {
		opts = append(opts, summarize.WithModel(summarize.NewModel(gen, timeout)))
		log.Info("model summarization enabled", "provider", c.Provider, "model", c.Model, "timeout", timeout)
	} else {
		log.Info("no summary model configured, using rule-based summaries")
	}

	return summarize.NewSelector(summarize.NewRules(nil, c.MaxItems), opts...), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// startSweeper periodically deletes expired rows so the backing table does
// not grow with abandoned sessions.
func (rt *runtime) startSweeper(s sweeper, every time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	rt.stopSweep = cancel
	rt.sweepWG.Add(1)

	go func() {
		defer rt.sweepWG.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					rt.logger.Warn("sweeping expired sessions failed", "error", err)
					continue
				}
				if n > 0 {
					rt.logger.Debug("swept expired session records", "count", n)
				}
			}
		}
	}()
}

func (rt *runtime) closeBackends() {
	if err := rt.publisher.Close(); err != nil {
		rt.logger.Warn("closing event publisher", "error", err)
	}
	if err := rt.driver.Close(); err != nil {
		rt.logger.Warn("closing session store", "error", err)
	}
}

// Close stops background work, drains deferred compactions and releases
// the backends, in that order.
func (rt *runtime) Close() error {
	if rt.stopSweep != nil {
		rt.stopSweep()
		rt.sweepWG.Wait()
	}

	var errs []error
	if rt.manager != nil {
		errs = append(errs, rt.manager.Close())
	}
	errs = append(errs, rt.publisher.Close(), rt.driver.Close())
	return errors.Join(errs...)
}
