package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/monitoring"
	"github.com/banshee-data/egopose/internal/vis"
)

// minVisScore hides joints below this confidence in visualizations.
const minVisScore = 0.3

// Pose2DStage estimates 2D keypoints for every (frame, camera) cell the bbox
// stage found a box for. Cells without a box are recorded absent and still
// get a plain frame image in the visualization sequence.
func (r *Runner) Pose2DStage(ctx context.Context) error {
	table, err := r.loadTable(config.ModePose2D)
	if err != nil {
		return err
	}
	bboxes, err := artifact.ReadBBoxes(r.Ctx.BBoxArtifactPath())
	if err != nil {
		return asMissingArtifact(err, config.ModePose2D, r.Ctx.BBoxArtifactPath(), config.ModeBBox)
	}

	poses := make(map[artifact.ViewKey]*model.Keypoints, table.Len()*len(r.Ctx.ExoCamNames))

	bar := progressbar.Default(int64(table.Len()), "pose2d")
	for i, rec := range table.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, cam := range r.Ctx.ExoCamNames {
			entry := rec[cam]
			img, err := vis.LoadImage(r.FS, filepath.Join(r.Ctx.FrameDir, entry.FramePath))
			if err != nil {
				return fmt.Errorf("frame %d camera %s: %w", i, cam, err)
			}

			var kp *model.Keypoints
			if box, ok := bboxes.Box(i, cam); ok && box != nil {
				kp, err = r.Pose.EstimatePose(img, *box)
				if err != nil {
					return fmt.Errorf("frame %d camera %s: pose estimator: %w", i, cam, err)
				}
			}
			poses[artifact.ViewKey{Frame: i, Camera: cam}] = kp

			canvas := vis.Clone(img)
			if kp != nil {
				vis.DrawPose(canvas, kp, minVisScore)
			}
			visPath := filepath.Join(r.Ctx.VisPose2DDir, cam, visFrameName(i))
			if err := vis.SaveJPEG(r.FS, visPath, canvas); err != nil {
				return err
			}
		}
		bar.Add(1)
	}
	bar.Finish()

	if err := r.FS.MkdirAll(r.Ctx.Pose2DDir, 0755); err != nil {
		return fmt.Errorf("creating pose2d dir: %w", err)
	}
	if err := artifact.WritePose2D(r.Ctx.Pose2DArtifactPath(), r.artifactMeta(), poses); err != nil {
		return err
	}
	monitoring.Logf("pose2d: wrote %d cells to %s", len(poses), r.Ctx.Pose2DArtifactPath())
	return nil
}
