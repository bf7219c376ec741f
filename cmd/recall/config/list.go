package configcmder

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
)

const listLongDesc string = `List all configuration values.

Keys are grouped by section. Values come from config.toml in the
.recall/ directory, with defaults filled in for anything unset.

Examples:
  recall config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd, configDir)
		},
	}
}

func runList(cmd *cobra.Command, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	settings, err := cfger.Settings()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	target := cfger.GetTarget()
	if _, statErr := os.Stat(target); statErr != nil {
		fmt.Fprintf(w, "No config file at %s, showing defaults.\n\n", target)
	} else {
		fmt.Fprintf(w, "Using config file: %s\n\n", target)
	}

	var (
		section string
		pairs   []cliui.KV
	)
	flush := func() {
		if len(pairs) > 0 {
			cliui.RenderKV(w, "["+section+"]", pairs)
			fmt.Fprintln(w)
		}
		pairs = nil
	}

	for _, s := range settings {
		group, _, _ := strings.Cut(s.Key, ".")
		if group != section {
			flush()
			section = group
		}

		value := "<not set>"
		if s.Value != "" {
			value = fmt.Sprintf("%q", s.Value)
		}
		pairs = append(pairs, cliui.KV{Key: s.Key, Value: value})
	}
	flush()

	return nil
}
