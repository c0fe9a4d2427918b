package cmd

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/config"
)

var pose3dCmd = &cobra.Command{
	Use:   "pose3d",
	Short: "Triangulate per-camera keypoints into world-space poses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, config.ModePose3D)
	},
}

func init() {
	rootCmd.AddCommand(pose3dCmd)
}
