// Package versioncmder
package versioncmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliui.RenderKV(cmd.OutOrStdout(), "", []cliui.KV{
				{Key: "Version:", Value: utils.Version},
				{Key: "Sha:", Value: utils.Sha},
				{Key: "Built at:", Value: utils.Buildtime},
			})
			return nil
		},
	}
}
