package historycmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/api"
	historycmder "github.com/papercomputeco/recall/cmd/recall/history"
	"github.com/papercomputeco/recall/pkg/conversation"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/memory"
)

var _ = Describe("History command", func() {
	var (
		server    *httptest.Server
		requests  []*http.Request
		configDir string
		out       *bytes.Buffer
	)

	history := memory.History{
		SessionID: "user-42",
		Summary: &conversation.Summary{
			Text:             "Discussed Apple revenue for 2023.",
			CoveredTurnCount: 4,
		},
		RecentTurns: []conversation.Turn{
			{Role: conversation.RoleUser, Content: "And 2022?", Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
			{Role: conversation.RoleAssistant, Content: strings.Repeat("revenue ", 40), Timestamp: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)},
		},
		TotalRecentTurns: 6,
	}

	BeforeEach(func() {
		requests = nil
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r)
			w.Header().Set("Content-Type", "application/json")

			switch {
			case r.URL.Path == "/sessions/missing/history":
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "session store unavailable"})
			case strings.HasSuffix(r.URL.Path, "/history") && r.Method == http.MethodDelete:
				_ = json.NewEncoder(w).Encode(api.ResetResponse{SessionID: "user-42", Deleted: true})
			case strings.HasSuffix(r.URL.Path, "/history"):
				_ = json.NewEncoder(w).Encode(history)
			case strings.HasSuffix(r.URL.Path, "/stats"):
				_ = json.NewEncoder(w).Encode(memory.Stats{
					SessionID:         "user-42",
					RecentTurnCount:   2,
					MaxRecentTurns:    6,
					TotalTokens:       1700,
					MaxTotalTokens:    2000,
					WillSummarizeNext: true,
				})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		DeferCleanup(server.Close)
	})

	execute := func(args ...string) error {
		cmd := historycmder.NewHistoryCmd()
		cmd.Flags().String("config-dir", configDir, "")
		cmd.SetOut(out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append(args, "--api-target", server.URL))
		return cmd.ExecuteContext(context.Background())
	}

	It("prints the summary and recent turns of the given session", func() {
		Expect(execute("user-42", "--limit", "2")).To(Succeed())

		Expect(requests).To(HaveLen(1))
		Expect(requests[0].URL.Path).To(Equal("/sessions/user-42/history"))
		Expect(requests[0].URL.Query().Get("limit")).To(Equal("2"))

		text := out.String()
		Expect(text).To(ContainSubstring("user-42"))
		Expect(text).To(ContainSubstring("Summary of 4 earlier turns"))
		Expect(text).To(ContainSubstring("Apple"))
		Expect(text).To(ContainSubstring("Showing last 2 of 6 recent turns"))
		Expect(text).To(ContainSubstring("And 2022?"))
		Expect(text).To(ContainSubstring("..."))
	})

	It("prints turns in full with --full", func() {
		Expect(execute("user-42", "--full")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(strings.TrimSpace(strings.Repeat("revenue ", 40))))
	})

	It("fetches stats with --stats", func() {
		Expect(execute("user-42", "--stats")).To(Succeed())

		Expect(requests).To(HaveLen(2))
		Expect(requests[1].URL.Path).To(Equal("/sessions/user-42/stats"))
		Expect(out.String()).To(ContainSubstring("1700 / 2000"))
		Expect(out.String()).To(ContainSubstring("yes"))
	})

	It("falls back to the current session", func() {
		Expect(dotdir.NewManager().SaveCurrentSession("user-42", configDir)).To(Succeed())

		Expect(execute()).To(Succeed())
		Expect(requests[0].URL.Path).To(Equal("/sessions/user-42/history"))
	})

	It("fails without a session id or current session", func() {
		Expect(execute()).To(MatchError(historycmder.ErrNoSession))
		Expect(requests).To(BeEmpty())
	})

	It("surfaces the server's error message", func() {
		err := execute("missing")
		Expect(err).To(MatchError(ContainSubstring("HTTP 503")))
		Expect(err).To(MatchError(ContainSubstring("session store unavailable")))
	})

	It("rejects a negative limit", func() {
		Expect(execute("user-42", "--limit=-1")).To(MatchError(ContainSubstring("must not be negative")))
	})

	It("deletes a session through ResetAPI", func() {
		Expect(historycmder.ResetAPI(context.Background(), server.URL, "user-42")).To(Succeed())
		Expect(requests[0].Method).To(Equal(http.MethodDelete))
		Expect(requests[0].URL.Path).To(Equal("/sessions/user-42/history"))
	})
})
