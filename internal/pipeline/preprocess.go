package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/banshee-data/egopose/internal/dataset"
	"github.com/banshee-data/egopose/internal/monitoring"
)

// egoFrameInterval pads the vrs extraction window by one frame on each side
// so boundary frames survive timestamp rounding.
const egoFrameInterval = 1.0 / 30.0

// Preprocess extracts the requested frame range from every device and fuses
// the streams into the synchronized frame table (data.json). The frame
// directory is rebuilt from scratch on every run.
func (r *Runner) Preprocess(ctx context.Context) error {
	from := r.Cfg.Inputs.FromFrameNumber
	to := r.Cfg.Inputs.ToFrameNumber
	monitoring.Logf("preprocess: capture %s frames [%d, %d]", r.Meta.TakeID, from, to)

	if r.Cfg.ModePreprocess.DownloadVideoFiles || r.Cfg.ModePreprocess.ForceDownload {
		monitoring.Logf("preprocess: video download is not supported, using local files")
	}
	videoPaths, err := r.resolveVideos(ctx)
	if err != nil {
		return err
	}

	timesync, err := dataset.ReadTimesync(r.FS, r.Meta.TimesyncCSVPath)
	if err != nil {
		return err
	}
	if to >= timesync.Len() {
		return &dataset.SynchronizationGapError{
			Source: r.Meta.TimesyncCSVPath,
			Detail: fmt.Sprintf("range [%d, %d] exceeds capture length %d", from, to, timesync.Len()),
		}
	}

	// Start from a clean frame tree so a prior run's leftovers cannot leak
	// into the index.
	if err := r.FS.RemoveAll(r.Ctx.FrameDir); err != nil {
		return fmt.Errorf("clearing frame dir: %w", err)
	}
	if err := r.FS.MkdirAll(r.Ctx.FrameDir, 0755); err != nil {
		return fmt.Errorf("creating frame dir: %w", err)
	}

	if err := r.extractEgoFrames(ctx, timesync, videoPaths[r.Meta.EgoID], from, to); err != nil {
		return err
	}
	if err := r.extractExoFrames(ctx, timesync, videoPaths, from, to); err != nil {
		return err
	}

	egoTraj, err := dataset.ReadEgoTrajectory(r.FS, r.Cfg.Inputs.AriaTrajectoryPath)
	if err != nil {
		return err
	}
	exoTraj, err := dataset.ReadExoTrajectory(r.FS, r.Cfg.Inputs.ExoTrajectoryPath)
	if err != nil {
		return err
	}
	frameIndex, err := dataset.BuildEgoFrameIndex(r.FS, r.Ctx.FrameDir, r.Meta.EgoID, r.Cfg.Inputs.AriaStreams)
	if err != nil {
		return err
	}

	sync := &dataset.Synchronizer{
		EgoID:      r.Meta.EgoID,
		StreamIDs:  r.Cfg.Inputs.AriaStreams,
		ExoCams:    r.Ctx.ExoCamNames,
		NameRemap:  r.Cfg.Inputs.ExoTimesyncNameToCalibName,
		Timesync:   timesync,
		EgoTraj:    egoTraj,
		ExoTraj:    exoTraj,
		FrameIndex: frameIndex,
	}
	records, err := sync.Run(from, to)
	if err != nil {
		return err
	}

	table := &dataset.Table{
		CacheDir:   r.Ctx.CacheRelDir,
		DatasetDir: r.Ctx.DatasetRelDir,
		Frames:     records,
	}
	if err := table.Save(r.FS, r.Ctx.DatasetJSONPath); err != nil {
		return err
	}
	monitoring.Logf("preprocess: wrote %d synchronized frames to %s", table.Len(), r.Ctx.DatasetJSONPath)
	return nil
}

// resolveVideos resolves every device's recording through the video
// provider. Walkaround-only recordings are skipped; they never contribute
// frames to the synchronized range.
func (r *Runner) resolveVideos(ctx context.Context) (map[string]string, error) {
	paths := make(map[string]string, len(r.Meta.Videos))
	for _, v := range r.Meta.Videos {
		if v.HasWalkaround && !v.IsEgo {
			continue
		}
		p, err := r.Videos.Resolve(ctx, v)
		if err != nil {
			return nil, err
		}
		paths[v.DeviceID] = p
	}
	return paths, nil
}

// extractEgoFrames exports the aria image streams with the vrs CLI, either
// the whole recording or just the requested capture-time window.
func (r *Runner) extractEgoFrames(ctx context.Context, timesync *dataset.TimesyncTable, vrsPath string, from, to int) error {
	if vrsPath == "" {
		return fmt.Errorf("no resolved recording for ego device %s", r.Meta.EgoID)
	}
	outDir := filepath.Join(r.Ctx.FrameDir, r.Meta.EgoID)

	if r.Cfg.ModePreprocess.ExtractAllAriaFrames {
		return r.VRS.ExtractAll(ctx, vrsPath, outDir)
	}

	minTs, maxTs := 0.0, 0.0
	first := true
	for _, streamID := range r.Cfg.Inputs.AriaStreams {
		for _, idx := range []int{from, to} {
			tNs, err := timesync.EgoCaptureTimestampNs(r.Meta.EgoID, streamID, idx)
			if err != nil {
				return err
			}
			tSec := tNs / 1e9
			if first {
				minTs, maxTs = tSec, tSec
				first = false
				continue
			}
			if tSec < minTs {
				minTs = tSec
			}
			if tSec > maxTs {
				maxTs = tSec
			}
		}
	}
	return r.VRS.ExtractWindow(ctx, vrsPath, outDir, minTs-egoFrameInterval, maxTs+egoFrameInterval)
}

// extractExoFrames pulls each exocentric camera's timesync frame numbers out
// of its video.
func (r *Runner) extractExoFrames(ctx context.Context, timesync *dataset.TimesyncTable, videoPaths map[string]string, from, to int) error {
	bar := progressbar.Default(int64(len(r.Ctx.ExoCamNames)), "extracting exo frames")
	defer bar.Finish()

	for _, cam := range r.Ctx.ExoCamNames {
		src, ok := videoPaths[cam]
		if !ok {
			return fmt.Errorf("no resolved recording for camera %s", cam)
		}
		frameNums := make([]int, 0, to-from+1)
		for idx := from; idx <= to; idx++ {
			n, err := timesync.ExoFrameNumber(cam, idx)
			if err != nil {
				return err
			}
			frameNums = append(frameNums, n)
		}
		outDir := filepath.Join(r.Ctx.FrameDir, cam)
		if err := r.Frames.ExtractFrames(ctx, src, outDir, frameNums); err != nil {
			return err
		}
		bar.Add(1)
	}
	return nil
}
