// Package historycmder provides the history command for inspecting a
// session's memory on a running recall server.
package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/utils"
)

const previewLen = 160

type historyCommander struct {
	limit     int
	full      bool
	stats     bool
	apiTarget string
}

const historyLongDesc string = `Show the memory of a session.

Prints the rolling summary of older turns followed by the most recent turns
kept verbatim. Without a session id the session selected with
"recall session use" is shown.

Examples:
  recall history
  recall history user-42 --limit 4
  recall history user-42 --full --stats`

const historyShortDesc string = "Show a session's summary and recent turns"

var ErrNoSession = errors.New(`no session selected: pass a session id or run "recall session use <id>"`)

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return ResolveAPITarget(cmd, &cmder.apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			sessionID, err := ResolveSessionID(args, configDir)
			if err != nil {
				return err
			}
			return cmder.run(cmd, sessionID)
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 10, "Number of recent turns to show (0 for all)")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Show turn content without truncation")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Also show token accounting")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

// ResolveAPITarget fills target from config.toml unless --api-target was
// given explicitly.
func ResolveAPITarget(cmd *cobra.Command, target *string) error {
	if cmd.Flags().Changed(config.Flags[config.FlagAPITarget].Name) {
		return nil
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	*target = cfg.Client.APITarget
	return nil
}

// ResolveSessionID returns the explicit id when given, else the current
// session pointer from the .recall directory.
func ResolveSessionID(args []string, configDir string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	current, err := dotdir.NewManager().LoadCurrentSession(configDir)
	if err != nil {
		return "", fmt.Errorf("loading current session: %w", err)
	}
	if current == nil {
		return "", ErrNoSession
	}
	return current.SessionID, nil
}

func (c *historyCommander) run(cmd *cobra.Command, sessionID string) error {
	if c.limit < 0 {
		return fmt.Errorf("limit must not be negative: %d", c.limit)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var history *memory.History
	err := cliui.Step(cmd.ErrOrStderr(), "Fetching history for "+sessionID, func() error {
		var err error
		history, err = HistoryAPI(ctx, c.apiTarget, sessionID, c.limit)
		return err
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	c.printHistory(w, history)

	if c.stats {
		st, err := StatsAPI(ctx, c.apiTarget, sessionID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		PrintStats(w, st)
	}
	return nil
}

func (c *historyCommander) printHistory(w io.Writer, h *memory.History) {
	fmt.Fprintf(w, "\n%s %s\n\n", cliui.HeadingStyle.Render("Session"), cliui.ValueStyle.Render(h.SessionID))

	if h.Summary != nil && h.Summary.Text != "" {
		fmt.Fprintln(w, cliui.HeadingStyle.Render(
			fmt.Sprintf("Summary of %d earlier turns", h.Summary.CoveredTurnCount)))

		rendered, err := cliui.RenderMarkdown(h.Summary.Text)
		if err != nil {
			rendered = h.Summary.Text + "\n"
		}
		fmt.Fprint(w, rendered)
		fmt.Fprintln(w)
	}

	if len(h.RecentTurns) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No recent turns."))
		return
	}

	shown := len(h.RecentTurns)
	if shown < h.TotalRecentTurns {
		fmt.Fprintln(w, cliui.DimStyle.Render(
			fmt.Sprintf("Showing last %d of %d recent turns", shown, h.TotalRecentTurns)))
	}

	for _, t := range h.RecentTurns {
		content := t.Content
		if !c.full {
			content = utils.Truncate(utils.OneLine(content), previewLen)
		}
		fmt.Fprintf(w, "  %s %s\n    %s\n",
			cliui.RoleLabel(string(t.Role)),
			cliui.DimStyle.Render(t.Timestamp.Local().Format("2006-01-02 15:04:05")),
			content,
		)
	}
}

// PrintStats renders a session's token accounting.
func PrintStats(w io.Writer, st *memory.Stats) {
	next := "no"
	if st.WillSummarizeNext {
		next = "yes"
	}

	cliui.RenderKV(w, "Stats", []cliui.KV{
		{Key: "recent turns", Value: fmt.Sprintf("%d / %d", st.RecentTurnCount, st.MaxRecentTurns)},
		{Key: "recent tokens", Value: strconv.Itoa(st.RecentTokenCount)},
		{Key: "summary tokens", Value: strconv.Itoa(st.SummaryTokenCount)},
		{Key: "summarized turns", Value: strconv.Itoa(st.SummarizedTurnCount)},
		{Key: "total tokens", Value: fmt.Sprintf("%d / %d", st.TotalTokens, st.MaxTotalTokens)},
		{Key: "summarize next", Value: next},
	})
}
