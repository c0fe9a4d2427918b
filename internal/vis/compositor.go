package vis

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/egopose/internal/extproc"
	"github.com/banshee-data/egopose/internal/monitoring"
	"github.com/banshee-data/egopose/internal/storage"
)

// Compositor tiles per-camera visualization sequences into a two-row grid
// and muxes the composites into a video.
type Compositor struct {
	FS      storage.FileSystem
	Muxer   extproc.Muxer
	Cameras []string // grid order, row-major

	// Padding between adjacent tiles in pixels. Canvas edges carry none.
	Padding int
	// TileWidth and TileHeight are what every camera image is resized to
	// before tiling.
	TileWidth  int
	TileHeight int
	// OutputWidth and OutputHeight are the final composite dimensions. Zero
	// means the padding-free grid size, rounded down to even.
	OutputWidth  int
	OutputHeight int
	// FPS of the muxed video.
	FPS int
}

// Defaults match the original rendering parameters.
const (
	DefaultPadding    = 5
	DefaultTileWidth  = 960
	DefaultTileHeight = 540
	DefaultFPS        = 30
)

func (c *Compositor) padding() int {
	if c.Padding > 0 {
		return c.Padding
	}
	return DefaultPadding
}

func (c *Compositor) tileSize() (int, int) {
	w, h := c.TileWidth, c.TileHeight
	if w <= 0 {
		w = DefaultTileWidth
	}
	if h <= 0 {
		h = DefaultTileHeight
	}
	return w, h
}

// GridSize returns the composite grid shape: 2 rows, ⌈C/2⌉ columns.
func (c *Compositor) GridSize() (rows, cols int) {
	return 2, (len(c.Cameras) + 1) / 2
}

// Composite tiles one frame's per-camera images onto a white canvas. Every
// camera in c.Cameras must be present in frames; the grid assumes dense,
// equal-length sequences.
func (c *Compositor) Composite(frames map[string]image.Image) (*image.RGBA, error) {
	if len(c.Cameras) == 0 {
		return nil, fmt.Errorf("compositor has no cameras")
	}
	rows, cols := c.GridSize()
	pad := c.padding()
	tileW, tileH := c.tileSize()

	canvasW := cols*tileW + (cols-1)*pad
	canvasH := rows*tileH + (rows-1)*pad
	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	for i, cam := range c.Cameras {
		img, ok := frames[cam]
		if !ok {
			return nil, fmt.Errorf("no frame image for camera %s", cam)
		}
		row := i / cols
		col := i % cols
		x := col * (tileW + pad)
		y := row * (tileH + pad)
		cell := image.Rect(x, y, x+tileW, y+tileH)
		xdraw.ApproxBiLinear.Scale(canvas, cell, img, img.Bounds(), xdraw.Src, nil)
	}

	// Two-step resize: first drop the inter-tile padding by scaling to the
	// bare grid, then scale to the configured output size.
	gridW, gridH := cols*tileW, rows*tileH
	intermediate := image.NewRGBA(image.Rect(0, 0, gridW, gridH))
	xdraw.ApproxBiLinear.Scale(intermediate, intermediate.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)

	outW, outH := c.outputSize(gridW, gridH)
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), intermediate, intermediate.Bounds(), xdraw.Src, nil)
	return out, nil
}

// outputSize resolves the final composite dimensions. The fallback clamps
// to even numbers since the video muxer rejects odd frame dimensions.
func (c *Compositor) outputSize(gridW, gridH int) (int, int) {
	w, h := c.OutputWidth, c.OutputHeight
	if w <= 0 {
		w = gridW - gridW%2
	}
	if h <= 0 {
		h = gridH - gridH%2
	}
	return w, h
}

// Run composites every frame image present for the first camera under
// visDir/{camera}/, writes the composites to outDir, and muxes them into
// videoPath. A frame name missing for any other camera is a hard error.
func (c *Compositor) Run(ctx context.Context, visDir, outDir, videoPath string) error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("compositor has no cameras")
	}
	names, err := storage.Glob(c.FS, filepath.Join(visDir, c.Cameras[0]), ".jpg")
	if err != nil {
		return fmt.Errorf("listing frames for camera %s: %w", c.Cameras[0], err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no frame images under %s", filepath.Join(visDir, c.Cameras[0]))
	}
	if err := c.FS.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating composite dir: %w", err)
	}

	monitoring.Logf("compositing %d frames from %d cameras", len(names), len(c.Cameras))
	for _, name := range names {
		frames := make(map[string]image.Image, len(c.Cameras))
		for _, cam := range c.Cameras {
			img, err := LoadImage(c.FS, filepath.Join(visDir, cam, name))
			if err != nil {
				return fmt.Errorf("frame %s: %w", name, err)
			}
			frames[cam] = img
		}
		composite, err := c.Composite(frames)
		if err != nil {
			return fmt.Errorf("frame %s: %w", name, err)
		}
		if err := SaveJPEG(c.FS, filepath.Join(outDir, name), composite); err != nil {
			return err
		}
	}

	fps := c.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return c.Muxer.Mux(ctx, filepath.Join(outDir, "%05d.jpg"), fps, videoPath)
}
