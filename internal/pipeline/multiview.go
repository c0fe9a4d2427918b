package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/egopose/internal/config"
	"github.com/banshee-data/egopose/internal/monitoring"
	"github.com/banshee-data/egopose/internal/vis"
)

// MultiViewVisStage composites the pose3d visualization sequences into a
// single grid video, overwriting any previous output.
func (r *Runner) MultiViewVisStage(ctx context.Context) error {
	firstCamDir := filepath.Join(r.Ctx.VisPose3DDir, r.Ctx.ExoCamNames[0])
	if !r.FS.Exists(firstCamDir) {
		return &MissingArtifactError{
			Stage:    config.ModeMultiViewVis,
			Path:     firstCamDir,
			RunFirst: config.ModePose3D,
		}
	}

	compositor := &vis.Compositor{
		FS:      r.FS,
		Muxer:   r.Muxer,
		Cameras: r.Ctx.ExoCamNames,
	}

	outDir := filepath.Join(r.Ctx.DatasetDir, "vis_multi_view")
	videoPath := filepath.Join(r.Ctx.DatasetDir, "exo.mp4")
	if err := compositor.Run(ctx, r.Ctx.VisPose3DDir, outDir, videoPath); err != nil {
		return fmt.Errorf("multi_view_vis: %w", err)
	}
	monitoring.Logf("multi_view_vis: wrote %s", videoPath)
	return nil
}
