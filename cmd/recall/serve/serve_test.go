package servecmder

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/kv/inmemory"
	"github.com/papercomputeco/recall/pkg/kv/sqlite"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
)

var _ = Describe("newRuntime", func() {
	var (
		ctx context.Context
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.NewDefaultConfig()
	})

	It("wires an in-memory store with the nop publisher by default", func() {
		rt, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(rt.Close()).To(Succeed()) })

		Expect(rt.driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(rt.publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
		Expect(rt.server).NotTo(BeNil())
		Expect(rt.stopSweep).To(BeNil())

		_, err = rt.manager.RecordTurn(ctx, "s1", "What was Apple revenue in 2023?", "$383B.")
		Expect(err).NotTo(HaveOccurred())

		_, turns, err := rt.manager.GetContext(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(2))
	})

	It("passes memory limits through to the manager", func() {
		cfg.Memory.MaxRecentTurns = 4
		cfg.Memory.Compaction = string(memory.CompactionDeferred)

		rt, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(rt.Close()).To(Succeed()) })

		Expect(rt.manager.Config().MaxRecentTurns).To(Equal(4))
		Expect(rt.manager.Config().Compaction).To(Equal(memory.CompactionDeferred))
	})

	It("opens a SQLite store and starts the expiry sweeper", func() {
		cfg.Store.Backend = "sqlite"
		cfg.Store.SQLitePath = filepath.Join(GinkgoT().TempDir(), "sessions.db")

		rt, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(rt.Close()).To(Succeed()) })

		Expect(rt.driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(rt.stopSweep).NotTo(BeNil())

		_, err = os.Stat(cfg.Store.SQLitePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a path for the SQLite store", func() {
		cfg.Store.Backend = "sqlite"
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("store.sqlite_path")))
	})

	It("requires a DSN for the PostgreSQL store", func() {
		cfg.Store.Backend = "postgres"
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("store.postgres_dsn")))
	})

	It("rejects an unknown store backend", func() {
		cfg.Store.Backend = "redis"
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`unknown store backend "redis"`)))
	})

	It("rejects an unknown events provider", func() {
		cfg.Events.Provider = "nats"
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring(`unknown events provider "nats"`)))
	})

	It("rejects malformed durations", func() {
		cfg.Store.TTL = "one day"
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("invalid store ttl")))

		cfg = config.NewDefaultConfig()
		cfg.Summarizer.Timeout = "soon"
		_, err = newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("invalid summarizer timeout")))
	})

	It("rejects memory limits the manager cannot honor", func() {
		cfg.Memory.MaxSummaryTokens = cfg.Memory.MaxTotalTokens
		_, err := newRuntime(ctx, cfg, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("creating memory manager")))
	})
})

var _ = Describe("newSelector", func() {
	It("uses rules only when no provider is configured", func() {
		sel, err := newSelector(config.SummarizerConfig{}, time.Second, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(sel.HasModel()).To(BeFalse())
	})

	It("attaches a model for a configured provider", func() {
		sel, err := newSelector(config.SummarizerConfig{Provider: "ollama"}, time.Second, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(sel.HasModel()).To(BeTrue())
	})

	It("fails for an unsupported provider", func() {
		_, err := newSelector(config.SummarizerConfig{Provider: "mystery"}, time.Second, logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("splitList", func() {
	It("trims entries and drops empty ones", func() {
		Expect(splitList(" a:9092, b:9092 ,,")).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(splitList("")).To(BeEmpty())
	})
})

var _ = Describe("NewServeCmd", func() {
	It("registers flags from the shared registry with config defaults", func() {
		cmd := NewServeCmd()

		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8082"))

		turns := cmd.Flags().Lookup("max-recent-turns")
		Expect(turns).NotTo(BeNil())
		Expect(turns.DefValue).To(Equal("6"))

		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
	})

	It("resolves flags over config values", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"),
			[]byte("[memory]\nmax_recent_turns = 8\nmax_total_tokens = 3000\n"), 0o600)).To(Succeed())

		cmder := &ServeCommander{}
		cmd := newServeCmd(cmder)
		cmd.Flags().String("config-dir", dir, "")
		Expect(cmd.Flags().Set("max-recent-turns", "9")).To(Succeed())
		Expect(cmd.Flags().Set("store", "sqlite")).To(Succeed())

		Expect(cmd.PreRunE(cmd, nil)).To(Succeed())
		Expect(cmder.cfg.Memory.MaxRecentTurns).To(Equal(9))
		Expect(cmder.cfg.Memory.MaxTotalTokens).To(Equal(3000))
		Expect(cmder.cfg.Store.Backend).To(Equal("sqlite"))
		Expect(cmder.cfg.API.Listen).To(Equal(":8082"))
	})

	It("writes JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "recall.log")
		c := &ServeCommander{logFile: path}

		log, closeLog, err := c.newLogger(GinkgoWriter)
		Expect(err).NotTo(HaveOccurred())
		log.Info("hello", "session_id", "s1")
		closeLog()

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"session_id":"s1"`))
	})
})
