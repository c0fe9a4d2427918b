// Package pipeline orchestrates the processing stages: preprocess → bbox →
// pose2d → pose3d → multi_view_vis. Stages run strictly in that order; each
// one loads the previous stage's artifact, iterates the synchronized frame
// table in index order, and commits its own artifact only after every frame
// is done.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/capture"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/dataset"
	"github.com/banshee-data/egopose/internal/extproc"
	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/storage"
)

// EgoExtractor exports aria image streams for the preprocess stage.
type EgoExtractor interface {
	ExtractAll(ctx context.Context, vrsPath, outDir string) error
	ExtractWindow(ctx context.Context, vrsPath, outDir string, afterSec, beforeSec float64) error
}

// VideoProvider resolves a device's recording to a local file path before
// frame extraction.
type VideoProvider interface {
	Resolve(ctx context.Context, v capture.VideoInfo) (string, error)
}

// LocalVideoProvider serves recordings already on disk. Download-based
// providers would fetch here instead.
type LocalVideoProvider struct {
	FS storage.FileSystem
}

func (p LocalVideoProvider) Resolve(_ context.Context, v capture.VideoInfo) (string, error) {
	if !p.FS.Exists(v.SourcePath) {
		return "", fmt.Errorf("video for device %s not found at %s", v.DeviceID, v.SourcePath)
	}
	return v.SourcePath, nil
}

// Runner holds the wired dependencies for one run. Everything is injected so
// stages are testable without model weights or external tools.
type Runner struct {
	FS   storage.FileSystem
	Cfg  *config.Config
	Ctx  *config.Context
	Meta *capture.Metadata

	Detector     model.Detector
	Pose         model.PoseEstimator
	Triangulator model.Triangulator

	Videos VideoProvider
	VRS    EgoExtractor
	Frames extproc.FrameExtractor
	Muxer  extproc.Muxer

	// NewRunID and Now stamp artifact provenance. Overridable for
	// reproducible tests.
	NewRunID func() string
	Now      func() time.Time
}

// NewRunner wires a production Runner: ONNX models when checkpoints are
// configured, deterministic stand-ins otherwise, and real external tools.
func NewRunner(cfg *config.Config, ctx *config.Context, meta *capture.Metadata) (*Runner, error) {
	osfs := storage.OSFileSystem{}
	exec := extproc.ExecRunner{}

	var detector model.Detector = model.SeedDetector{}
	if cfg.ModeBBox.DetectorCheckpoint != "" {
		d, err := model.NewONNXDetector(cfg.ModeBBox.DetectorCheckpoint, "")
		if err != nil {
			return nil, fmt.Errorf("loading detector: %w", err)
		}
		detector = d
	}

	var pose model.PoseEstimator = model.StaticPoseEstimator{}
	if cfg.ModePose2D.PoseCheckpoint != "" {
		p, err := model.NewONNXPoseEstimator(cfg.ModePose2D.PoseCheckpoint, "")
		if err != nil {
			return nil, fmt.Errorf("loading pose model: %w", err)
		}
		pose = p
	}

	return &Runner{
		FS:   osfs,
		Cfg:  cfg,
		Ctx:  ctx,
		Meta: meta,

		Detector:     detector,
		Pose:         pose,
		Triangulator: &model.LinearTriangulator{},

		Videos: LocalVideoProvider{FS: osfs},
		VRS:    &extproc.VRSExtractor{Runner: exec, FS: osfs, Bin: cfg.ModePreprocess.VRSBinPath},
		Frames: &extproc.FFmpegExtractor{Runner: exec, FS: osfs},
		Muxer:  &extproc.FFmpegMuxer{Runner: exec},

		NewRunID: uuid.NewString,
		Now:      time.Now,
	}, nil
}

// Run executes one mode. Unknown modes fail before any I/O.
func (r *Runner) Run(ctx context.Context, mode string) error {
	switch mode {
	case config.ModePreprocess:
		return r.Preprocess(ctx)
	case config.ModeBBox:
		return r.BBoxStage(ctx)
	case config.ModePose2D:
		return r.Pose2DStage(ctx)
	case config.ModePose3D:
		return r.Pose3DStage(ctx)
	case config.ModeMultiViewVis:
		return r.MultiViewVisStage(ctx)
	default:
		return fmt.Errorf("unknown mode %q (valid modes: %s)", mode, strings.Join(config.Modes, ", "))
	}
}

// artifactMeta stamps a fresh provenance row for one stage run.
func (r *Runner) artifactMeta() artifact.Meta {
	return artifact.Meta{RunID: r.NewRunID(), CreatedAt: r.Now()}
}

// loadTable reads the synchronized frame table every post-preprocess stage
// iterates.
func (r *Runner) loadTable(stage string) (*dataset.Table, error) {
	if !r.FS.Exists(r.Ctx.DatasetJSONPath) {
		return nil, &MissingArtifactError{
			Stage:    stage,
			Path:     r.Ctx.DatasetJSONPath,
			RunFirst: config.ModePreprocess,
		}
	}
	return dataset.LoadTable(r.FS, r.Ctx.DatasetJSONPath)
}

// asMissingArtifact translates an artifact read failure into the operator
// hint when the file simply does not exist.
func asMissingArtifact(err error, stage, path, runFirst string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &MissingArtifactError{Stage: stage, Path: path, RunFirst: runFirst}
	}
	return err
}

// visFrameName is the zero-padded image name for one synchronized index.
func visFrameName(index int) string {
	return fmt.Sprintf("%05d.jpg", index)
}
