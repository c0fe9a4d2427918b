package cmd

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/config"
)

var multiViewVisCmd = &cobra.Command{
	Use:   "multi_view_vis",
	Short: "Composite the per-camera pose visualizations into one grid video",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, config.ModeMultiViewVis)
	},
}

func init() {
	rootCmd.AddCommand(multiViewVisCmd)
}
