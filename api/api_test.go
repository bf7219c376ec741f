package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/metrics"
	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/summarize"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *testutils.MockKVDriver
		mt     *metrics.Metrics
	)

	do := func(method, path string, body any) (*http.Response, []byte) {
		var r io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			r = bytes.NewReader(data)
		}
		req := httptest.NewRequest(method, path, r)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	decode := func(data []byte, v any) {
		Expect(json.Unmarshal(data, v)).To(Succeed())
	}

	recordTurn := func(id, query, answer string) TurnResponse {
		resp, data := do(http.MethodPost, "/sessions/"+id+"/turns", TurnRequest{Query: query, Answer: answer})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated), string(data))
		var out TurnResponse
		decode(data, &out)
		return out
	}

	BeforeEach(func() {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		driver = testutils.NewMockKVDriver(clock)
		mt = metrics.New("test")

		m, err := memory.NewManager(session.NewStore(driver), memory.DefaultConfig(),
			memory.WithMetrics(mt),
			memory.WithClock(clock),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(m.Close)

		server = NewServer(Config{ListenAddr: ":0"}, m, WithMetrics(mt))
	})

	It("fills in transport limits", func() {
		limit, idle := Config{}.fiberLimits()
		Expect(limit).To(Equal(1 << 20))
		Expect(idle).To(Equal(2 * time.Minute))

		limit, idle = Config{BodyLimit: 512, IdleTimeout: time.Second}.fiberLimits()
		Expect(limit).To(Equal(512))
		Expect(idle).To(Equal(time.Second))
	})

	It("answers ping", func() {
		resp, data := do(http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(data)).To(Equal(`"pong"`))
	})

	Describe("POST /sessions/:id/query", func() {
		It("rewrites follow-ups", func() {
			recordTurn("s1", "What was Apple total revenue in 2023?", "Apple reported $383.3 billion.")

			resp, data := do(http.MethodPost, "/sessions/s1/query", QueryRequest{Query: "and 2022?"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out QueryResponse
			decode(data, &out)
			Expect(out.Query).To(Equal("and 2022?"))
			Expect(out.RewrittenQuery).To(Equal("What was Apple total revenue in 2022?"))
			Expect(out.WasRewritten).To(BeTrue())
			Expect(out.Pattern).To(Equal("leading-conjunction"))
		})

		It("rejects empty queries", func() {
			resp, data := do(http.MethodPost, "/sessions/s1/query", QueryRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var out ErrorResponse
			decode(data, &out)
			Expect(out.Error).To(ContainSubstring("invalid input"))
		})

		It("rejects malformed bodies", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions/s1/query", strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 when the store is down", func() {
			driver.FailGet.Store(true)
			resp, _ := do(http.MethodPost, "/sessions/s1/query", QueryRequest{Query: "and 2022?"})
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("POST /sessions/:id/turns", func() {
		It("records and compacts on the fourth exchange", func() {
			var out TurnResponse
			for i := range 4 {
				out = recordTurn("s1", "What was Apple revenue?", "About $380 billion.")
				if i < 3 {
					Expect(out.Compacted).To(BeFalse())
				}
			}
			Expect(out.Compacted).To(BeTrue())
			Expect(out.Compaction.EvictedTurns).To(Equal(2))
			Expect(out.Stats.RecentTurnCount).To(Equal(6))
			Expect(out.Stats.HasSummary).To(BeTrue())
		})

		It("rejects missing answers", func() {
			resp, _ := do(http.MethodPost, "/sessions/s1/turns", TurnRequest{Query: "q"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 when saves fail", func() {
			driver.FailSet.Store(true)
			resp, _ := do(http.MethodPost, "/sessions/s1/turns", TurnRequest{Query: "q", Answer: "a"})
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("history", func() {
		BeforeEach(func() {
			for range 3 {
				recordTurn("s1", "What was Apple revenue?", "About $380 billion.")
			}
		})

		It("defaults to ten turns and honors limit", func() {
			resp, data := do(http.MethodGet, "/sessions/s1/history", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var h memory.History
			decode(data, &h)
			Expect(h.RecentTurns).To(HaveLen(6))
			Expect(h.TotalRecentTurns).To(Equal(6))

			_, data = do(http.MethodGet, "/sessions/s1/history?limit=2", nil)
			decode(data, &h)
			Expect(h.RecentTurns).To(HaveLen(2))
		})

		It("rejects negative limits", func() {
			resp, _ := do(http.MethodGet, "/sessions/s1/history?limit=-1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("deletes the session", func() {
			resp, data := do(http.MethodDelete, "/sessions/s1/history", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out ResetResponse
			decode(data, &out)
			Expect(out.Deleted).To(BeTrue())

			_, data = do(http.MethodGet, "/sessions/s1/history", nil)
			var h memory.History
			decode(data, &h)
			Expect(h.RecentTurns).To(BeEmpty())
			Expect(h.Summary).To(BeNil())
		})
	})

	Describe("stats and summarize", func() {
		It("reports stats and forces a summary", func() {
			recordTurn("s1", "What was Apple revenue?", "About $380 billion.")
			recordTurn("s1", "And net income?", "About $97 billion.")

			resp, data := do(http.MethodGet, "/sessions/s1/stats", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var st memory.Stats
			decode(data, &st)
			Expect(st.RecentTurnCount).To(Equal(4))
			Expect(st.HasSummary).To(BeFalse())

			resp, data = do(http.MethodPost, "/sessions/s1/summarize", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var fr memory.ForceResult
			decode(data, &fr)
			Expect(fr.Summarized).To(BeTrue())
			Expect(fr.After.RecentTurnCount).To(Equal(2))
			Expect(fr.After.HasSummary).To(BeTrue())
		})
	})

	Describe("POST /rewrite/test", func() {
		It("rewrites against the supplied history", func() {
			resp, data := do(http.MethodPost, "/rewrite/test", RewriteTestRequest{
				Query: "and 2022?",
				History: []HistoryMessage{
					{Role: "user", Content: "What was Apple total revenue in 2023?"},
					{Role: "assistant", Content: "$383.3 billion."},
				},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out QueryResponse
			decode(data, &out)
			Expect(out.RewrittenQuery).To(Equal("What was Apple total revenue in 2022?"))
		})

		It("rejects unknown roles", func() {
			resp, _ := do(http.MethodPost, "/rewrite/test", RewriteTestRequest{
				Query:   "and 2022?",
				History: []HistoryMessage{{Role: "system", Content: "x"}},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("deferred compaction", func() {
		BeforeEach(func() {
			gen := testutils.NewMockGenerator("The user asked about revenue.")
			gen.Delay = 50 * time.Millisecond
			sel := summarize.NewSelector(summarize.NewRules(nil, 0),
				summarize.WithModel(summarize.NewModel(gen, time.Second)))

			cfg := memory.DefaultConfig()
			cfg.Compaction = memory.CompactionDeferred
			m, err := memory.NewManager(session.NewStore(driver), cfg,
				memory.WithSummarizer(sel),
				memory.WithWorkers(1, 64),
			)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(m.Close)

			server = NewServer(Config{ListenAddr: ":0"}, m)
		})

		stats := func(id string) memory.Stats {
			resp, data := do(http.MethodGet, "/sessions/"+id+"/stats", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var st memory.Stats
			decode(data, &st)
			return st
		}

		It("compacts the session that queued the job after other requests", func() {
			for _, id := range []string{"aaaaaaaa", "bbbbbbbb"} {
				for i := range 4 {
					recordTurn(id, fmt.Sprintf("What was revenue in %d?", 2010+i), "It grew.")
				}
			}
			for i := range 200 {
				resp, _ := do(http.MethodGet, fmt.Sprintf("/sessions/other-%03d/stats", i), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			}

			for _, id := range []string{"aaaaaaaa", "bbbbbbbb"} {
				Eventually(func() memory.Stats { return stats(id) }).
					WithTimeout(5 * time.Second).
					Should(SatisfyAll(
						HaveField("RecentTurnCount", 6),
						HaveField("HasSummary", true),
					))
			}
		})
	})

	It("exposes metrics", func() {
		recordTurn("s1", "What was Apple revenue?", "About $380 billion.")
		resp, data := do(http.MethodGet, "/metrics", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(data)).To(ContainSubstring("test_turns_recorded_total 1"))
	})
})
