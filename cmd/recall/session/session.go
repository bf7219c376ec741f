// Package sessioncmder provides the session command for selecting which
// conversation the CLI talks to.
package sessioncmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	historycmder "github.com/papercomputeco/recall/cmd/recall/history"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
)

const sessionLongDesc string = `Manage the current session.

The current session is stored in session.json inside the .recall directory
and is used by commands such as "recall history" when no session id is given.

Examples:
  recall session use user-42
  recall session show
  recall session clear
  recall session forget user-42`

const sessionShortDesc string = "Manage the current session"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newForgetCmd())

	return cmd
}

func configDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <session-id>",
		Short: "Select the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dotdir.NewManager().SaveCurrentSession(args[0], configDir(cmd)); err != nil {
				return fmt.Errorf("selecting session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Using session %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(args[0]))
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := dotdir.NewManager().LoadCurrentSession(configDir(cmd))
			if err != nil {
				return fmt.Errorf("loading current session: %w", err)
			}

			w := cmd.OutOrStdout()
			if current == nil {
				fmt.Fprintln(w, cliui.DimStyle.Render("No session selected."))
				return nil
			}

			cliui.RenderKV(w, "Current session", []cliui.KV{
				{Key: "id", Value: current.SessionID},
				{Key: "selected", Value: current.SelectedAt.Local().Format("2006-01-02 15:04:05")},
			})
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the current session selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := dotdir.NewManager().ClearCurrentSession(configDir(cmd)); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session selection cleared.")
			return nil
		},
	}
}

// newForgetCmd deletes the session's memory on the server. The local
// selection is cleared too when it pointed at the forgotten session.
func newForgetCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "forget [session-id]",
		Short: "Delete a session's memory on the server",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return historycmder.ResolveAPITarget(cmd, &apiTarget)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir(cmd)
			sessionID, err := historycmder.ResolveSessionID(args, dir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			err = cliui.Step(cmd.ErrOrStderr(), "Forgetting session "+sessionID, func() error {
				return historycmder.ResetAPI(ctx, apiTarget, sessionID)
			})
			if err != nil {
				return err
			}

			ddm := dotdir.NewManager()
			current, err := ddm.LoadCurrentSession(dir)
			if err == nil && current != nil && current.SessionID == sessionID {
				if err := ddm.ClearCurrentSession(dir); err != nil {
					return fmt.Errorf("clearing session: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Forgot session %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(sessionID))
			return nil
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}
