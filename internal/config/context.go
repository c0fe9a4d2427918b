package config

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/egopose/internal/capture"
	"github.com/banshee-data/egopose/internal/storage"
)

// Context is the resolved, absolute-path layout for one run. It is built once
// from the capture metadata and run configuration, and read-only afterwards.
type Context struct {
	DataDir     string
	CacheDir    string
	CacheRelDir string

	DatasetDir      string
	DatasetRelDir   string
	DatasetJSONPath string
	FrameDir        string

	BBoxDir      string
	VisBBoxDir   string
	Pose2DDir    string
	VisPose2DDir string
	Pose3DDir    string
	VisPose3DDir string

	ExoCamNames []string

	DetectorConfig      string
	DetectorCheckpoint  string
	PoseConfig          string
	PoseCheckpoint      string
	DummyPoseConfig     string
	DummyPoseCheckpoint string

	HumanHeight float64
}

// Artifact file names under the stage directories.
const (
	BBoxArtifact   = "bbox.db"
	Pose2DArtifact = "pose2d.db"
	Pose3DArtifact = "pose3d.db"
)

// BBoxArtifactPath returns the bbox stage's single artifact file.
func (c *Context) BBoxArtifactPath() string { return filepath.Join(c.BBoxDir, BBoxArtifact) }

// Pose2DArtifactPath returns the pose2d stage's single artifact file.
func (c *Context) Pose2DArtifactPath() string { return filepath.Join(c.Pose2DDir, Pose2DArtifact) }

// Pose3DArtifactPath returns the pose3d stage's single artifact file.
func (c *Context) Pose3DArtifactPath() string { return filepath.Join(c.Pose3DDir, Pose3DArtifact) }

// BuildContext resolves the directory layout for a run. The cache directory
// is keyed by {video_source}_{take_id} so reruns of the same capture reuse
// their artifacts. Model config paths, when set, must already exist.
func BuildContext(fs storage.FileSystem, cfg *Config, meta *capture.Metadata) (*Context, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data_dir: %w", err)
	}

	cacheRelDir := filepath.Join("cache", fmt.Sprintf("%s_%s", meta.VideoSource, meta.TakeID))
	cacheDir := filepath.Join(dataDir, cacheRelDir)
	datasetRelDir := filepath.Join(cacheRelDir, cfg.ModePreprocess.DatasetName)
	datasetDir := filepath.Join(cacheDir, cfg.ModePreprocess.DatasetName)

	ctx := &Context{
		DataDir:     dataDir,
		CacheDir:    cacheDir,
		CacheRelDir: cacheRelDir,

		DatasetDir:      datasetDir,
		DatasetRelDir:   datasetRelDir,
		DatasetJSONPath: filepath.Join(datasetDir, "data.json"),
		FrameDir:        filepath.Join(datasetDir, "frames"),

		BBoxDir:      filepath.Join(datasetDir, "bbox"),
		VisBBoxDir:   filepath.Join(datasetDir, "vis_bbox"),
		Pose2DDir:    filepath.Join(datasetDir, "pose2d"),
		VisPose2DDir: filepath.Join(datasetDir, "vis_pose2d"),
		Pose3DDir:    filepath.Join(datasetDir, "pose3d"),
		VisPose3DDir: filepath.Join(datasetDir, "vis_pose3d"),

		ExoCamNames: meta.ExoCamNames(),

		DetectorConfig:      cfg.ModeBBox.DetectorConfig,
		DetectorCheckpoint:  cfg.ModeBBox.DetectorCheckpoint,
		PoseConfig:          cfg.ModePose2D.PoseConfig,
		PoseCheckpoint:      cfg.ModePose2D.PoseCheckpoint,
		DummyPoseConfig:     cfg.ModePose2D.DummyPoseConfig,
		DummyPoseCheckpoint: cfg.ModePose2D.DummyPoseCheckpoint,

		HumanHeight: cfg.ModeBBox.HumanHeight,
	}

	if len(ctx.ExoCamNames) == 0 {
		return nil, fmt.Errorf("capture %s has no exocentric cameras", meta.TakeID)
	}

	// Model configs are optional, but a configured path must exist.
	for name, p := range map[string]string{
		"mode_bbox.detector_config":     ctx.DetectorConfig,
		"mode_pose2d.pose_config":       ctx.PoseConfig,
		"mode_pose2d.dummy_pose_config": ctx.DummyPoseConfig,
	} {
		if p != "" && !fs.Exists(p) {
			return nil, fmt.Errorf("%s path does not exist: %s", name, p)
		}
	}

	return ctx, nil
}
