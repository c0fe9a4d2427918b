package vis

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/storage"
)

// elevationJoints are the joints tracked in the summary plot, head to feet.
var elevationJoints = []int{
	model.JointNose,
	model.JointLeftHip,
	model.JointLeftKnee,
	model.JointLeftAnkle,
}

// SaveJointElevationPlot charts the world-Z elevation of a few landmark
// joints across the frame range, a quick sanity check that the triangulated
// skeleton stays upright and on the ground. Writes a PNG to outPath.
func SaveJointElevationPlot(fs storage.FileSystem, poses map[int]model.Pose3D, outPath string) error {
	if len(poses) == 0 {
		return fmt.Errorf("no poses to plot")
	}

	frames := make([]int, 0, len(poses))
	for frame := range poses {
		frames = append(frames, frame)
	}
	sort.Ints(frames)

	p := plot.New()
	p.Title.Text = "Joint elevation"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "elevation (m)"

	for _, joint := range elevationJoints {
		pts := make(plotter.XYs, 0, len(frames))
		for _, frame := range frames {
			pose := poses[frame]
			if pose[joint][3] == 0 {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(frame), Y: pose[joint][2]})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("building line for %s: %w", model.JointNames[joint], err)
		}
		line.Width = vg.Points(1)
		line.Color = lineColor(joint)
		p.Add(line)
		p.Legend.Add(model.JointNames[joint], line)
	}

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering elevation plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("rendering elevation plot: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("creating plot dir: %w", err)
	}
	if err := fs.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("saving elevation plot: %w", err)
	}
	return nil
}

var linePalette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
}

func lineColor(joint int) color.Color {
	return linePalette[joint%len(linePalette)]
}
