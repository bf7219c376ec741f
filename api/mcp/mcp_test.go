package mcp

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/session"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var (
		ctx     context.Context
		manager *memory.Manager
		driver  *testutils.MockKVDriver
		server  *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewMockKVDriver(nil)

		var err error
		manager, err = memory.NewManager(session.NewStore(driver), memory.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(manager.Close)

		server, err = NewServer(Config{Manager: manager, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a manager", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("memory manager is required")))
		})

		It("requires a logger", func() {
			_, err := NewServer(Config{Manager: manager})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("builds an empty server in noop mode", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		BeforeEach(func() {
			_, err := manager.RecordTurn(ctx, "s1", "What was Apple total revenue in 2023?", "$383.3 billion.")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns history", func() {
			res, h, err := server.handleHistory(ctx, nil, HistoryInput{SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(h.RecentTurns).To(HaveLen(2))
		})

		It("returns stats", func() {
			res, st, err := server.handleStats(ctx, nil, StatsInput{SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(st.RecentTurnCount).To(Equal(2))
		})

		It("rewrites follow-ups", func() {
			res, out, err := server.handleRewrite(ctx, nil, RewriteInput{SessionID: "s1", Query: "and 2022?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.RewrittenQuery).To(Equal("What was Apple total revenue in 2022?"))
			Expect(out.WasRewritten).To(BeTrue())
		})

		It("reports tool errors in the result", func() {
			res, _, err := server.handleRewrite(ctx, nil, RewriteInput{SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			driver.FailGet.Store(true)
			res, _, err = server.handleStats(ctx, nil, StatsInput{SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})
})
