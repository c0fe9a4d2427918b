package cmd

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/config"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Extract frames from every camera and build the synchronized frame table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, config.ModePreprocess)
	},
}

func init() {
	rootCmd.AddCommand(preprocessCmd)
}
