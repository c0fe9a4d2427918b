package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/dataset"
	"github.com/banshee-data/egopose/internal/geom"
	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/monitoring"
	"github.com/banshee-data/egopose/internal/vis"
)

// Pose3DStage triangulates each frame's per-camera keypoints into one world
// pose, reprojects it into every exo camera for visualization, and writes
// the pose3d artifact plus the joint elevation summary plot.
func (r *Runner) Pose3DStage(ctx context.Context) error {
	table, err := r.loadTable(config.ModePose3D)
	if err != nil {
		return err
	}
	poses2d, err := artifact.ReadPose2D(r.Ctx.Pose2DArtifactPath())
	if err != nil {
		return asMissingArtifact(err, config.ModePose3D, r.Ctx.Pose2DArtifactPath(), config.ModePose2D)
	}

	poses := make(map[int]model.Pose3D, table.Len())

	bar := progressbar.Default(int64(table.Len()), "pose3d")
	for i, rec := range table.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		var views []model.View
		for _, cam := range r.Ctx.ExoCamNames {
			kp, ok := poses2d.Pose(i, cam)
			if !ok || kp == nil {
				continue
			}
			entry := rec[cam]
			views = append(views, model.View{Camera: camera.New(entry.Camera), Keypoints: *kp})
		}

		// Fewer than two observing views leaves the frame's pose unset; the
		// artifact still records the frame so downstream sequences stay dense.
		var pose model.Pose3D
		if len(views) >= 2 {
			pose, err = r.Triangulator.Triangulate(views)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		poses[i] = pose

		if err := r.visualizePose3D(rec, i, pose); err != nil {
			return err
		}
		bar.Add(1)
	}
	bar.Finish()

	if err := r.FS.MkdirAll(r.Ctx.Pose3DDir, 0755); err != nil {
		return fmt.Errorf("creating pose3d dir: %w", err)
	}
	if err := artifact.WritePose3D(r.Ctx.Pose3DArtifactPath(), r.artifactMeta(), poses); err != nil {
		return err
	}

	plotPath := filepath.Join(r.Ctx.Pose3DDir, "joint_elevation.png")
	if err := vis.SaveJointElevationPlot(r.FS, poses, plotPath); err != nil {
		return err
	}
	monitoring.Logf("pose3d: wrote %d frames to %s", len(poses), r.Ctx.Pose3DArtifactPath())
	return nil
}

// visualizePose3D reprojects the world pose into each exo camera and writes
// one annotated image per camera, plain when the pose is unset.
func (r *Runner) visualizePose3D(rec dataset.FrameRecord, index int, pose model.Pose3D) error {
	hasPose := false
	joints := make([]geom.Vec3, model.NumJoints)
	for j := 0; j < model.NumJoints; j++ {
		joints[j] = geom.Vec3{X: pose[j][0], Y: pose[j][1], Z: pose[j][2]}
		if pose[j][3] > 0 {
			hasPose = true
		}
	}

	for _, cam := range r.Ctx.ExoCamNames {
		entry := rec[cam]
		img, err := vis.LoadImage(r.FS, filepath.Join(r.Ctx.FrameDir, entry.FramePath))
		if err != nil {
			return fmt.Errorf("frame %d camera %s: %w", index, cam, err)
		}
		canvas := vis.Clone(img)

		if hasPose {
			projected := camera.New(entry.Camera).Project(joints)
			var kp model.Keypoints
			for j, p := range projected {
				kp[j] = [3]float64{p.X, p.Y, pose[j][3]}
			}
			vis.DrawPose(canvas, &kp, minVisScore)
		}

		visPath := filepath.Join(r.Ctx.VisPose3DDir, cam, visFrameName(index))
		if err := vis.SaveJPEG(r.FS, visPath, canvas); err != nil {
			return err
		}
	}
	return nil
}
