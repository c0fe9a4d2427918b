package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/capture"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/dataset"
	"github.com/banshee-data/egopose/internal/geom"
	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/storage"
)

// Synthetic capture layout shared by the stage tests: two SLAM streams on the
// egocentric rig and four fixed cameras, three synchronized rows. The
// "examplecam" frames are sized differently so the stub detector can refuse
// them, exercising the absent-cell path without a model.
const (
	testCaptureDir = "/cap"
	testEgoID      = "aria01"
	testRows       = 3
)

var (
	testStreams  = []string{"1201-1", "1201-2"}
	testExoCams  = []string{"cam01", "cam02", "cam03", "examplecam"}
	testRunID    = "0e6f9c1a-7a41-4a2c-9e7d-3b5a8c2d4f10"
	testRunStamp = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
)

// egoTimestampSec returns the capture timestamp for one stream at one
// synchronized row. The second SLAM stream runs 1ms behind the first.
func egoTimestampSec(streamID string, row int) float64 {
	t := float64(row) * 33e6
	if streamID == "1201-2" {
		t += 1e6
	}
	return t / 1e9
}

func exoFrameNumber(row int) int { return 10 + row }

func writeTimesyncCSV(t *testing.T, fs *storage.MemoryFileSystem) {
	t.Helper()
	var b strings.Builder
	for _, s := range testStreams {
		fmt.Fprintf(&b, "%s_%s_frame_number,%s_%s_capture_timestamp_ns,", testEgoID, s, testEgoID, s)
	}
	for i, cam := range testExoCams {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%s_frame_number", cam)
	}
	b.WriteString("\n")
	for row := 0; row < testRows; row++ {
		for _, s := range testStreams {
			fmt.Fprintf(&b, "%d,%.0f,", row, egoTimestampSec(s, row)*1e9)
		}
		for i := range testExoCams {
			if i > 0 {
				b.WriteString(",")
			}
			// Exo frame numbers are serialized as floats in real captures.
			fmt.Fprintf(&b, "%d.0", exoFrameNumber(row))
		}
		b.WriteString("\n")
	}
	require.NoError(t, fs.WriteFile(filepath.Join(testCaptureDir, "timesync.csv"), []byte(b.String()), 0644))
}

// The ego device sits at (1.5, 1.7, 5), looking back at the rig. One
// trajectory row per synchronized frame, timestamps matching exactly.
func writeEgoTrajectoryCSV(t *testing.T, fs *storage.MemoryFileSystem) {
	t.Helper()
	var b strings.Builder
	b.WriteString("tracking_timestamp_us,tx_world_device,ty_world_device,tz_world_device,qw_world_device,qx_world_device,qy_world_device,qz_world_device\n")
	for row := 0; row < testRows; row++ {
		fmt.Fprintf(&b, "%.0f,1.5,1.7,5,1,0,0,0\n", egoTimestampSec("1201-1", row)*1e6)
	}
	require.NoError(t, fs.WriteFile(filepath.Join(testCaptureDir, "aria_traj.csv"), []byte(b.String()), 0644))
}

// Four cameras on the y=0 plane looking along +z, all with the same pinhole
// intrinsics. Coplanar but not collinear, so the ground-plane fit succeeds.
func writeExoTrajectoryCSV(t *testing.T, fs *storage.MemoryFileSystem) {
	t.Helper()
	centers := map[string][3]float64{
		"cam01":      {0, 0, 0},
		"cam02":      {3, 0, 0},
		"cam03":      {0, 0, 1},
		"examplecam": {3, 0, 1},
	}
	var b strings.Builder
	b.WriteString("gopro_uid,image_width,image_height,fx,fy,cx,cy,tx_world_cam,ty_world_cam,tz_world_cam,qw_world_cam,qx_world_cam,qy_world_cam,qz_world_cam\n")
	for _, cam := range testExoCams {
		c := centers[cam]
		fmt.Fprintf(&b, "%s,1920,1080,1000,1000,960,540,%g,%g,%g,1,0,0,0\n", cam, c[0], c[1], c[2])
	}
	require.NoError(t, fs.WriteFile(filepath.Join(testCaptureDir, "exo_traj.csv"), []byte(b.String()), 0644))
}

func jpegBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// fakeEgoExtractor stands in for the vrs CLI: it writes one timestamp-named
// frame file per stream and row, the way extract-all lays them out.
type fakeEgoExtractor struct {
	fs    *storage.MemoryFileSystem
	calls int
}

func (e *fakeEgoExtractor) extract(outDir string) error {
	e.calls++
	for _, s := range testStreams {
		for row := 0; row < testRows; row++ {
			key := dataset.TimestampKey(egoTimestampSec(s, row))
			name := fmt.Sprintf("%s-%05d-%s.jpg", s, row, key)
			if err := e.fs.WriteFile(filepath.Join(outDir, s, name), []byte{0xff}, 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *fakeEgoExtractor) ExtractAll(_ context.Context, _, outDir string) error {
	return e.extract(outDir)
}

func (e *fakeEgoExtractor) ExtractWindow(_ context.Context, _, outDir string, afterSec, beforeSec float64) error {
	if beforeSec <= afterSec {
		return fmt.Errorf("invalid window [%f, %f]", afterSec, beforeSec)
	}
	return e.extract(outDir)
}

// fakeFrameExtractor writes a solid jpg per requested frame number. The
// examplecam frames get a distinct width so the stub detector can tell the
// cameras apart from pixels alone.
type fakeFrameExtractor struct {
	fs    *storage.MemoryFileSystem
	t     *testing.T
	calls int
}

func (e *fakeFrameExtractor) ExtractFrames(_ context.Context, _, outDir string, frameNumbers []int) error {
	e.calls++
	w, h := 64, 64
	if filepath.Base(outDir) == "examplecam" {
		w = 100
	}
	data := jpegBytes(e.t, w, h, color.RGBA{40, 80, 120, 255})
	for _, n := range frameNumbers {
		name := fmt.Sprintf("%06d.jpg", n)
		if err := e.fs.WriteFile(filepath.Join(outDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

type muxCall struct {
	pattern string
	fps     int
	out     string
}

type recordingMuxer struct {
	calls []muxCall
}

func (m *recordingMuxer) Mux(_ context.Context, framePattern string, fps int, outPath string) error {
	m.calls = append(m.calls, muxCall{pattern: framePattern, fps: fps, out: outPath})
	return nil
}

// stubDetector accepts the geometric seed on the regular cameras and reports
// nothing on the wide examplecam frames.
type stubDetector struct{}

func (stubDetector) DetectPerson(img image.Image, seed geom.BBox) (*geom.BBox, error) {
	if img.Bounds().Dx() == 100 {
		return nil, nil
	}
	box := seed
	return &box, nil
}

type pipelineHarness struct {
	fs     *storage.MemoryFileSystem
	runner *Runner
	muxer  *recordingMuxer
	frames *fakeFrameExtractor
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	t.Helper()
	fs := storage.NewMemoryFileSystem()

	writeTimesyncCSV(t, fs)
	writeEgoTrajectoryCSV(t, fs)
	writeExoTrajectoryCSV(t, fs)

	meta := &capture.Metadata{
		TakeID:          "take001",
		VideoSource:     "studio",
		EgoID:           testEgoID,
		TimesyncCSVPath: filepath.Join(testCaptureDir, "timesync.csv"),
	}
	videosDir := filepath.Join(testCaptureDir, "videos")
	meta.Videos = append(meta.Videos, capture.VideoInfo{
		DeviceID:      testEgoID,
		DeviceType:    capture.DeviceAria,
		IsEgo:         true,
		HasWalkaround: true,
		SourcePath:    filepath.Join(videosDir, testEgoID+".vrs"),
	})
	require.NoError(t, fs.WriteFile(meta.Videos[0].SourcePath, []byte{0x01}, 0644))
	for _, cam := range testExoCams {
		v := capture.VideoInfo{
			DeviceID:   cam,
			DeviceType: capture.DeviceGopro,
			SourcePath: filepath.Join(videosDir, cam+".mp4"),
		}
		require.NoError(t, fs.WriteFile(v.SourcePath, []byte{0x01}, 0644))
		meta.Videos = append(meta.Videos, v)
	}

	cfg := &config.Config{
		// Artifact databases live on the real filesystem.
		DataDir: t.TempDir(),
		Inputs: config.Inputs{
			CaptureDataDir:     testCaptureDir,
			FromFrameNumber:    0,
			ToFrameNumber:      testRows - 1,
			AriaStreams:        testStreams,
			AriaTrajectoryPath: filepath.Join(testCaptureDir, "aria_traj.csv"),
			ExoTrajectoryPath:  filepath.Join(testCaptureDir, "exo_traj.csv"),
		},
		ModePreprocess: config.PreprocessOptions{DatasetName: "dataset", VRSBinPath: "vrs"},
		ModeBBox:       config.BBoxOptions{HumanHeight: 1.5},
	}
	runCtx, err := config.BuildContext(fs, cfg, meta)
	require.NoError(t, err)

	for _, dir := range []string{runCtx.BBoxDir, runCtx.Pose2DDir, runCtx.Pose3DDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}

	muxer := &recordingMuxer{}
	frames := &fakeFrameExtractor{fs: fs, t: t}
	runner := &Runner{
		FS:   fs,
		Cfg:  cfg,
		Ctx:  runCtx,
		Meta: meta,

		Detector:     stubDetector{},
		Pose:         model.StaticPoseEstimator{},
		Triangulator: &model.LinearTriangulator{},

		Videos: LocalVideoProvider{FS: fs},
		VRS:    &fakeEgoExtractor{fs: fs},
		Frames: frames,
		Muxer:  muxer,

		NewRunID: func() string { return testRunID },
		Now:      func() time.Time { return testRunStamp },
	}
	return &pipelineHarness{fs: fs, runner: runner, muxer: muxer, frames: frames}
}

func TestRunUnknownMode(t *testing.T) {
	h := newPipelineHarness(t)
	err := h.runner.Run(context.Background(), "polish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "polish"`)
	assert.Contains(t, err.Error(), "preprocess")
	assert.Contains(t, err.Error(), "multi_view_vis")
}

func TestMissingArtifactHints(t *testing.T) {
	t.Run("bbox before preprocess", func(t *testing.T) {
		h := newPipelineHarness(t)
		err := h.runner.Run(context.Background(), config.ModeBBox)
		var missing *MissingArtifactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, config.ModeBBox, missing.Stage)
		assert.Equal(t, config.ModePreprocess, missing.RunFirst)
		assert.Contains(t, err.Error(), "preprocess")
	})

	t.Run("pose2d before bbox", func(t *testing.T) {
		h := newPipelineHarness(t)
		require.NoError(t, h.runner.Run(context.Background(), config.ModePreprocess))
		err := h.runner.Run(context.Background(), config.ModePose2D)
		var missing *MissingArtifactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, config.ModePose2D, missing.Stage)
		assert.Equal(t, config.ModeBBox, missing.RunFirst)
	})

	t.Run("pose3d before pose2d", func(t *testing.T) {
		h := newPipelineHarness(t)
		require.NoError(t, h.runner.Run(context.Background(), config.ModePreprocess))
		err := h.runner.Run(context.Background(), config.ModePose3D)
		var missing *MissingArtifactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, config.ModePose2D, missing.RunFirst)
	})

	t.Run("multi_view_vis before pose3d", func(t *testing.T) {
		h := newPipelineHarness(t)
		err := h.runner.Run(context.Background(), config.ModeMultiViewVis)
		var missing *MissingArtifactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, config.ModePose3D, missing.RunFirst)
	})
}

func TestPreprocess(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.runner.Run(context.Background(), config.ModePreprocess))

	ctx := h.runner.Ctx
	table, err := dataset.LoadTable(h.fs, ctx.DatasetJSONPath)
	require.NoError(t, err)
	require.Equal(t, testRows, table.Len())

	for i, rec := range table.Frames {
		require.Len(t, rec, len(testStreams)+len(testExoCams), "frame %d", i)

		left := rec["aria_slam_left"]
		require.NotNil(t, left.Timestamp, "frame %d", i)
		assert.InDelta(t, egoTimestampSec("1201-1", i), *left.Timestamp, 1e-9)
		assert.True(t, h.fs.Exists(filepath.Join(ctx.FrameDir, left.FramePath)), "frame %d: %s", i, left.FramePath)
		assert.InDelta(t, 1.5, left.Camera.Tx, 1e-9)

		for _, cam := range testExoCams {
			entry := rec[cam]
			assert.Equal(t, fmt.Sprintf("%s/%06d.jpg", cam, exoFrameNumber(i)), entry.FramePath)
			assert.Equal(t, exoFrameNumber(i), entry.FrameNumber)
			assert.Nil(t, entry.Timestamp)
			assert.Equal(t, 1920, entry.Camera.Width)
			assert.True(t, h.fs.Exists(filepath.Join(ctx.FrameDir, entry.FramePath)), "frame %d: %s", i, entry.FramePath)
		}
	}
	assert.Equal(t, len(testExoCams), h.frames.calls)
}

func TestPreprocessMissingVideo(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.fs.Remove(filepath.Join(testCaptureDir, "videos", "cam02.mp4")))

	err := h.runner.Run(context.Background(), config.ModePreprocess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cam02")
}

func TestPreprocessRangeBeyondCapture(t *testing.T) {
	h := newPipelineHarness(t)
	h.runner.Cfg.Inputs.ToFrameNumber = testRows + 5

	err := h.runner.Run(context.Background(), config.ModePreprocess)
	var gap *dataset.SynchronizationGapError
	require.ErrorAs(t, err, &gap)
	assert.Contains(t, gap.Detail, "exceeds capture length")
}

func TestPipelineEndToEnd(t *testing.T) {
	h := newPipelineHarness(t)
	ctx := h.runner.Ctx
	for _, mode := range config.Modes {
		require.NoError(t, h.runner.Run(context.Background(), mode), "mode %s", mode)
	}

	bboxes, err := artifact.ReadBBoxes(ctx.BBoxArtifactPath())
	require.NoError(t, err)
	require.Len(t, bboxes.Boxes, testRows*len(testExoCams))
	for i := 0; i < testRows; i++ {
		for _, cam := range []string{"cam01", "cam02", "cam03"} {
			box, processed := bboxes.Box(i, cam)
			require.True(t, processed, "frame %d camera %s", i, cam)
			require.NotNil(t, box, "frame %d camera %s", i, cam)
			assert.Positive(t, box.Width())
			assert.Positive(t, box.Height())
		}
		// The stub detector found nobody on examplecam: processed, no box.
		box, processed := bboxes.Box(i, "examplecam")
		require.True(t, processed, "frame %d", i)
		assert.Nil(t, box, "frame %d", i)
	}
	assert.True(t, h.fs.Exists(filepath.Join(ctx.BBoxDir, "coverage.html")))

	poses2d, err := artifact.ReadPose2D(ctx.Pose2DArtifactPath())
	require.NoError(t, err)
	for i := 0; i < testRows; i++ {
		kp, processed := poses2d.Pose(i, "cam01")
		require.True(t, processed)
		require.NotNil(t, kp)
		for j := 0; j < model.NumJoints; j++ {
			assert.Positive(t, kp[j][2], "frame %d joint %d score", i, j)
		}
		kp, processed = poses2d.Pose(i, "examplecam")
		require.True(t, processed)
		assert.Nil(t, kp)
	}

	poses3d, err := artifact.ReadPose3D(ctx.Pose3DArtifactPath())
	require.NoError(t, err)
	require.Len(t, poses3d.Poses, testRows)
	for i := 0; i < testRows; i++ {
		pose, ok := poses3d.Poses[i]
		require.True(t, ok, "frame %d", i)
		scored := 0
		for j := 0; j < model.NumJoints; j++ {
			if pose[j][3] > 0 {
				scored++
			}
		}
		assert.Positive(t, scored, "frame %d has no triangulated joints", i)
	}
	assert.True(t, h.fs.Exists(filepath.Join(ctx.Pose3DDir, "joint_elevation.png")))

	// Every (frame, camera) cell got a visualization image at every stage,
	// detections or not.
	for i := 0; i < testRows; i++ {
		name := fmt.Sprintf("%05d.jpg", i)
		for _, cam := range testExoCams {
			assert.True(t, h.fs.Exists(filepath.Join(ctx.VisBBoxDir, cam, name)), "bbox vis %s/%s", cam, name)
			assert.True(t, h.fs.Exists(filepath.Join(ctx.VisPose2DDir, cam, name)), "pose2d vis %s/%s", cam, name)
			assert.True(t, h.fs.Exists(filepath.Join(ctx.VisPose3DDir, cam, name)), "pose3d vis %s/%s", cam, name)
		}
		assert.True(t, h.fs.Exists(filepath.Join(ctx.DatasetDir, "vis_multi_view", name)), "composite %s", name)
	}

	require.Len(t, h.muxer.calls, 1)
	call := h.muxer.calls[0]
	assert.Equal(t, filepath.Join(ctx.DatasetDir, "vis_multi_view", "%05d.jpg"), call.pattern)
	assert.Equal(t, filepath.Join(ctx.DatasetDir, "exo.mp4"), call.out)
	assert.Positive(t, call.fps)
}

func TestBBoxStageIdempotent(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.runner.Run(context.Background(), config.ModePreprocess))

	require.NoError(t, h.runner.Run(context.Background(), config.ModeBBox))
	first, err := os.ReadFile(h.runner.Ctx.BBoxArtifactPath())
	require.NoError(t, err)

	require.NoError(t, h.runner.Run(context.Background(), config.ModeBBox))
	second, err := os.ReadFile(h.runner.Ctx.BBoxArtifactPath())
	require.NoError(t, err)

	assert.Equal(t, first, second, "rerun produced different artifact bytes")
}

func TestStageContextCancellation(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.runner.Run(context.Background(), config.ModePreprocess))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.runner.Run(cancelled, config.ModeBBox)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, h.fs.Exists(filepath.Join(h.runner.Ctx.BBoxDir, "coverage.html")))
}
