package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/dataset"
	"github.com/banshee-data/egopose/internal/geom"
	"github.com/banshee-data/egopose/internal/monitoring"
	"github.com/banshee-data/egopose/internal/vis"
)

// BBoxStage predicts a seed box per (frame, exo camera) from proposal
// geometry, runs the detector on it, and records the detector's output.
// Every (frame, camera) gets a visualization image whether or not anything
// was detected.
func (r *Runner) BBoxStage(ctx context.Context) error {
	table, err := r.loadTable(config.ModeBBox)
	if err != nil {
		return err
	}

	// The exocentric rig is static, so the ground plane is fitted once from
	// the first record's camera centers and reused for every frame.
	normal, err := r.groundNormal(table.Frames[0])
	if err != nil {
		return err
	}

	boxes := make(map[artifact.ViewKey]*geom.BBox, table.Len()*len(r.Ctx.ExoCamNames))
	thresholds := geom.DefaultBBoxThresholds()

	bar := progressbar.Default(int64(table.Len()), "bbox")
	for i, rec := range table.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		anchor, err := egoAnchor(rec)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		proposal := geom.RegionProposal(anchor, normal, r.Ctx.HumanHeight, geom.DefaultProposalRadius)

		for _, cam := range r.Ctx.ExoCamNames {
			entry := rec[cam]
			img, err := vis.LoadImage(r.FS, filepath.Join(r.Ctx.FrameDir, entry.FramePath))
			if err != nil {
				return fmt.Errorf("frame %d camera %s: %w", i, cam, err)
			}

			var box *geom.BBox
			view := camera.New(entry.Camera)
			seed := geom.CheckAndConvertBBox(view.Project(proposal), entry.Camera.Width, entry.Camera.Height, thresholds)
			if seed != nil {
				box, err = r.Detector.DetectPerson(img, *seed)
				if err != nil {
					return fmt.Errorf("frame %d camera %s: detector: %w", i, cam, err)
				}
			}
			boxes[artifact.ViewKey{Frame: i, Camera: cam}] = box

			canvas := vis.Clone(img)
			if box != nil {
				vis.DrawRect(canvas, *box, vis.BoxColor, 2)
			}
			visPath := filepath.Join(r.Ctx.VisBBoxDir, cam, visFrameName(i))
			if err := vis.SaveJPEG(r.FS, visPath, canvas); err != nil {
				return err
			}
		}
		bar.Add(1)
	}
	bar.Finish()

	if err := r.FS.MkdirAll(r.Ctx.BBoxDir, 0755); err != nil {
		return fmt.Errorf("creating bbox dir: %w", err)
	}
	if err := artifact.WriteBBoxes(r.Ctx.BBoxArtifactPath(), r.artifactMeta(), boxes); err != nil {
		return err
	}

	set, err := artifact.ReadBBoxes(r.Ctx.BBoxArtifactPath())
	if err != nil {
		return err
	}
	reportPath := filepath.Join(r.Ctx.BBoxDir, "coverage.html")
	if err := vis.SaveCoverageReport(r.FS, reportPath, set); err != nil {
		return err
	}
	monitoring.Logf("bbox: wrote %d cells to %s", len(boxes), r.Ctx.BBoxArtifactPath())
	return nil
}

// groundNormal fits a plane to the exocentric camera centers and returns its
// unit normal, oriented away from the egocentric anchor's side toward the
// ground (the proposal cylinder grows opposite the normal).
func (r *Runner) groundNormal(rec dataset.FrameRecord) (geom.Vec3, error) {
	centers := make([]geom.Vec3, 0, len(r.Ctx.ExoCamNames))
	for _, cam := range r.Ctx.ExoCamNames {
		entry, ok := rec[cam]
		if !ok {
			return geom.Vec3{}, fmt.Errorf("frame table has no entry for camera %s", cam)
		}
		centers = append(centers, camera.New(entry.Camera).Center())
	}
	plane, err := geom.FitPlane(centers)
	if err != nil {
		return geom.Vec3{}, err
	}

	normal := plane.Normal().Normalize()
	// Orient the normal toward the ego device so anchor − h·n points down
	// through the body volume.
	if anchor, err := egoAnchor(rec); err == nil {
		centroid := geom.Vec3{}
		for _, c := range centers {
			centroid = centroid.Add(c)
		}
		centroid = centroid.Scale(1 / float64(len(centers)))
		if anchor.Sub(centroid).Dot(normal) < 0 {
			normal = normal.Scale(-1)
		}
	}
	return normal, nil
}

// egoAnchor is the 3D prior for where the person is: the midpoint of the two
// SLAM camera centers when both streams are aligned, otherwise the first
// egocentric entry's center.
func egoAnchor(rec dataset.FrameRecord) (geom.Vec3, error) {
	left, lok := rec["aria_slam_left"]
	right, rok := rec["aria_slam_right"]
	if lok && rok {
		return geom.Midpoint(camera.New(left.Camera).Center(), camera.New(right.Camera).Center()), nil
	}
	// Deterministic fallback: the first egocentric entry by name.
	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if entry := rec[name]; entry.Camera.Kind == camera.KindEgo {
			return camera.New(entry.Camera).Center(), nil
		}
	}
	return geom.Vec3{}, fmt.Errorf("no egocentric entry to anchor the region proposal")
}
