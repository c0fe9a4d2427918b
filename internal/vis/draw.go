// Package vis renders the per-stage visualization images: detection boxes,
// 2D/reprojected skeletons, composite multi-view grids, and the summary
// plots written next to the stage artifacts.
package vis

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/egopose/internal/geom"
	"github.com/banshee-data/egopose/internal/model"
	"github.com/banshee-data/egopose/internal/storage"
)

// Annotation colors, matching the usual detection-overlay palette.
var (
	BoxColor      = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	SkeletonColor = color.RGBA{R: 255, G: 128, B: 0, A: 255}
	JointColor    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

const jpegQuality = 90

// LoadImage reads and decodes an image file.
func LoadImage(fs storage.FileSystem, path string) (image.Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}

// SaveJPEG encodes and writes an image, creating parent directories.
func SaveJPEG(fs storage.FileSystem, path string, img image.Image) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating image dir: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Clone copies any image into a drawable RGBA canvas.
func Clone(img image.Image) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	xdraw.Draw(out, out.Bounds(), img, img.Bounds().Min, xdraw.Src)
	return out
}

// DrawRect outlines a box with the given stroke thickness.
func DrawRect(dst *image.RGBA, box geom.BBox, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	for t := 0; t < thickness; t++ {
		x1, y1 := box.X1+t, box.Y1+t
		x2, y2 := box.X2-t, box.Y2-t
		for x := x1; x <= x2; x++ {
			setPixel(dst, x, y1, col)
			setPixel(dst, x, y2, col)
		}
		for y := y1; y <= y2; y++ {
			setPixel(dst, x1, y, col)
			setPixel(dst, x2, y, col)
		}
	}
}

// DrawLine draws a straight segment with Bresenham stepping.
func DrawLine(dst *image.RGBA, x1, y1, x2, y2 int, col color.Color) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy
	for {
		setPixel(dst, x1, y1, col)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

// DrawDisc fills a circle of the given radius.
func DrawDisc(dst *image.RGBA, cx, cy, r int, col color.Color) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setPixel(dst, cx+dx, cy+dy, col)
			}
		}
	}
}

// DrawPose renders a skeleton: bones between joints that both clear minScore,
// then a disc per cleared joint.
func DrawPose(dst *image.RGBA, kp *model.Keypoints, minScore float64) {
	for _, edge := range model.Skeleton {
		a, b := kp[edge[0]], kp[edge[1]]
		if a[2] < minScore || b[2] < minScore {
			continue
		}
		DrawLine(dst, round(a[0]), round(a[1]), round(b[0]), round(b[1]), SkeletonColor)
	}
	for j := 0; j < model.NumJoints; j++ {
		if kp[j][2] < minScore {
			continue
		}
		DrawDisc(dst, round(kp[j][0]), round(kp[j][1]), 3, JointColor)
	}
}

func setPixel(dst *image.RGBA, x, y int, col color.Color) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.Set(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round(v float64) int { return int(math.Round(v)) }
