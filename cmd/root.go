// Package cmd wires the pipeline stages into a cobra CLI, one subcommand per
// mode. Every subcommand loads the same run configuration and differs only in
// which stage it executes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/egopose/internal/capture"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/pipeline"
	"github.com/banshee-data/egopose/internal/storage"
	"github.com/banshee-data/egopose/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "egopose",
	Short:        "Offline multi-camera 3D human pose pipeline",
	Version:      version.String(),
	SilenceUsage: true,
}

// Execute runs the CLI under a signal-cancellable context so Ctrl+C stops a
// stage between frames instead of mid-write.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to the run configuration JSON")
}

// runStage loads the configuration and capture metadata, wires a production
// runner, and executes one pipeline mode.
func runStage(cmd *cobra.Command, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fs := storage.OSFileSystem{}
	metaPath, captureDir := cfg.CaptureSource()
	var meta *capture.Metadata
	if metaPath != "" {
		meta, err = capture.Load(fs, metaPath)
	} else {
		meta, err = capture.InferFromDir(fs, captureDir)
	}
	if err != nil {
		return err
	}

	runCtx, err := config.BuildContext(fs, cfg, meta)
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(cfg, runCtx, meta)
	if err != nil {
		return err
	}
	return runner.Run(cmd.Context(), mode)
}
