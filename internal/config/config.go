// Package config loads and validates the run configuration, and resolves it
// into the immutable Context of absolute paths every stage works from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Modes accepted by the pipeline.
const (
	ModePreprocess   = "preprocess"
	ModeBBox         = "bbox"
	ModePose2D       = "pose2d"
	ModePose3D       = "pose3d"
	ModeMultiViewVis = "multi_view_vis"
)

// Modes lists the valid pipeline stages in execution order.
var Modes = []string{ModePreprocess, ModeBBox, ModePose2D, ModePose3D, ModeMultiViewVis}

// Inputs locates the capture and selects the synchronized range to process.
type Inputs struct {
	// MetadataJSONPath points at an explicit capture descriptor. When set it
	// takes precedence over directory inference.
	MetadataJSONPath string `json:"metadata_json_path,omitempty"`
	InputCaptureDir  string `json:"input_capture_dir,omitempty"`
	CaptureDataDir   string `json:"capture_data_dir,omitempty"`

	// Inclusive synchronized-index range.
	FromFrameNumber int `json:"from_frame_number"`
	ToFrameNumber   int `json:"to_frame_number"`

	// AriaStreams are the egocentric sub-stream IDs to align
	// (e.g. 214-1 RGB, 1201-1/1201-2 SLAM, 211-1 eye tracking).
	AriaStreams []string `json:"aria_streams"`

	AriaTrajectoryPath string `json:"aria_trajectory_path"`
	ExoTrajectoryPath  string `json:"exo_trajectory_path"`

	// ExoTimesyncNameToCalibName remaps capture-time device names to
	// calibration-time names in the exo trajectory table.
	ExoTimesyncNameToCalibName map[string]string `json:"exo_timesync_name_to_calib_name,omitempty"`
}

// PreprocessOptions configure frame extraction.
type PreprocessOptions struct {
	DownloadVideoFiles   bool   `json:"download_video_files"`
	ForceDownload        bool   `json:"force_download"`
	ExtractAllAriaFrames bool   `json:"extract_all_aria_frames"`
	VRSBinPath           string `json:"vrs_bin_path"`
	DatasetName          string `json:"dataset_name"`
}

// BBoxOptions configure the detector stage.
type BBoxOptions struct {
	DetectorConfig     string  `json:"detector_config,omitempty"`
	DetectorCheckpoint string  `json:"detector_checkpoint,omitempty"`
	HumanHeight        float64 `json:"human_height"`
}

// Pose2DOptions configure the 2D pose stage. The dummy model is a lightweight
// fallback used for visualization-only passes.
type Pose2DOptions struct {
	PoseConfig          string `json:"pose_config,omitempty"`
	PoseCheckpoint      string `json:"pose_checkpoint,omitempty"`
	DummyPoseConfig     string `json:"dummy_pose_config,omitempty"`
	DummyPoseCheckpoint string `json:"dummy_pose_checkpoint,omitempty"`
}

// Config is the root run configuration, loaded once from JSON. Fields are
// never mutated after Load returns.
type Config struct {
	DataDir        string            `json:"data_dir"`
	Inputs         Inputs            `json:"inputs"`
	ModePreprocess PreprocessOptions `json:"mode_preprocess"`
	ModeBBox       BBoxOptions       `json:"mode_bbox"`
	ModePose2D     Pose2DOptions     `json:"mode_pose2d"`
}

// maxConfigSize caps config files at 1MB, matching the artifact JSON cap.
const maxConfigSize = 1 * 1024 * 1024

// Load reads and validates a run configuration from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ModePreprocess: PreprocessOptions{
			VRSBinPath:  "vrs",
			DatasetName: "dataset",
		},
		ModeBBox: BBoxOptions{HumanHeight: 1.5},
	}
}

// Validate rejects configurations that would fail mid-run.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	in := c.Inputs
	if in.MetadataJSONPath == "" && in.InputCaptureDir == "" && in.CaptureDataDir == "" {
		return fmt.Errorf("one of inputs.metadata_json_path, inputs.input_capture_dir, inputs.capture_data_dir is required")
	}
	if in.FromFrameNumber < 0 {
		return fmt.Errorf("inputs.from_frame_number must be >= 0, got %d", in.FromFrameNumber)
	}
	if in.ToFrameNumber < in.FromFrameNumber {
		return fmt.Errorf("inputs.to_frame_number (%d) must be >= from_frame_number (%d)",
			in.ToFrameNumber, in.FromFrameNumber)
	}
	if len(in.AriaStreams) == 0 {
		return fmt.Errorf("inputs.aria_streams must name at least one stream")
	}
	if c.ModePreprocess.DatasetName == "" {
		return fmt.Errorf("mode_preprocess.dataset_name is required")
	}
	if c.ModeBBox.HumanHeight <= 0 {
		return fmt.Errorf("mode_bbox.human_height must be positive, got %v", c.ModeBBox.HumanHeight)
	}
	return nil
}

// CaptureSource returns the metadata path or capture dir to load the capture
// from, preferring the explicit descriptor.
func (c *Config) CaptureSource() (metadataJSON, captureDir string) {
	if c.Inputs.MetadataJSONPath != "" {
		return c.Inputs.MetadataJSONPath, ""
	}
	if c.Inputs.InputCaptureDir != "" {
		return "", c.Inputs.InputCaptureDir
	}
	return "", c.Inputs.CaptureDataDir
}
