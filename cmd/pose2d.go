package cmd

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/config"
)

var pose2dCmd = &cobra.Command{
	Use:   "pose2d",
	Short: "Estimate 2D keypoints inside every detected box",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, config.ModePose2D)
	},
}

func init() {
	rootCmd.AddCommand(pose2dCmd)
}
