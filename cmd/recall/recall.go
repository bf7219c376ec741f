// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/recall/cmd/recall/config"
	historycmder "github.com/papercomputeco/recall/cmd/recall/history"
	logscmder "github.com/papercomputeco/recall/cmd/recall/logs"
	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
	sessioncmder "github.com/papercomputeco/recall/cmd/recall/session"
	versioncmder "github.com/papercomputeco/recall/cmd/version"
)

const recallLongDesc string = `Recall is conversational memory for document QA assistants.

It keeps recent turns verbatim, folds older turns into a rolling summary and
rewrites follow-up questions into standalone queries before retrieval.

Run the server and inspect sessions using:
  recall serve                 Run the API server
  recall history [session-id]  Show a session's summary and recent turns
  recall session use <id>      Select the session other commands default to
  recall logs <file> -f        Follow the server's JSON log file
  recall config list           Show configuration`

const recallShortDesc string = "Recall - conversational memory"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "recall",
		Short:        recallShortDesc,
		Long:         recallLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml and session.json (default: ./.recall or ~/.recall)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(logscmder.NewLogsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
