package cmd

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/config"
)

var bboxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Detect the person in every exocentric view, seeded by proposal geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, config.ModeBBox)
	},
}

func init() {
	rootCmd.AddCommand(bboxCmd)
}
