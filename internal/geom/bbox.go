package geom

import "math"

// BBox is an axis-aligned box in integer pixel coordinates, x1,y1 top-left
// inclusive, x2,y2 bottom-right.
type BBox struct {
	X1, Y1, X2, Y2 int
}

// Width returns the box width in pixels.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// BBoxThresholds are the sanity bounds applied to a projected proposal box.
type BBoxThresholds struct {
	// MinAreaRatio is the minimum box area as a fraction of image area.
	MinAreaRatio float64
	// MinAspect and MaxAspect bound height/width. A proposal seen edge-on by
	// a camera collapses to a sliver and falls outside these bounds.
	MinAspect float64
	MaxAspect float64
}

// DefaultBBoxThresholds returns the standard validation thresholds.
func DefaultBBoxThresholds() BBoxThresholds {
	return BBoxThresholds{MinAreaRatio: 0.005, MinAspect: 0.5, MaxAspect: 5.0}
}

// CheckAndConvertBBox converts a projected 2D point set into a clamped,
// sanity-checked bounding box. Points outside [0,W]x[0,H] are discarded; the
// axis-aligned box of the survivors is rejected (nil) when no points remain,
// when its area ratio is below MinAreaRatio, or when its aspect ratio falls
// outside [MinAspect, MaxAspect].
//
// The returned box is a prior seed for a detector, not a detection.
func CheckAndConvertBBox(points []Vec2, width, height int, th BBoxThresholds) *BBox {
	w := float64(width)
	h := float64(height)

	var kept []Vec2
	for _, p := range points {
		if p.X >= 0 && p.X <= w && p.Y >= 0 && p.Y <= h {
			kept = append(kept, p)
		}
	}
	// Out of frame for this camera.
	if len(kept) == 0 {
		return nil
	}

	x1, y1 := kept[0].X, kept[0].Y
	x2, y2 := x1, y1
	for _, p := range kept[1:] {
		x1 = math.Min(x1, p.X)
		y1 = math.Min(y1, p.Y)
		x2 = math.Max(x2, p.X)
		y2 = math.Max(y2, p.Y)
	}

	bw := x2 - x1
	bh := y2 - y1
	if bw*bh < th.MinAreaRatio*w*h {
		return nil
	}
	if bw <= 0 {
		return nil
	}
	aspect := bh / bw
	if aspect < th.MinAspect || aspect > th.MaxAspect {
		return nil
	}

	return &BBox{
		X1: int(math.Round(x1)),
		Y1: int(math.Round(y1)),
		X2: int(math.Round(x2)),
		Y2: int(math.Round(y2)),
	}
}
