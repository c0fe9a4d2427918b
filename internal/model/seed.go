package model

import (
	"image"

	"github.com/banshee-data/egopose/internal/geom"
)

// SeedDetector passes the seed box through unchanged. It stands in for a
// trained detector when no checkpoint is configured, which keeps the rest of
// the pipeline exercisable on captures without model weights.
type SeedDetector struct{}

func (SeedDetector) DetectPerson(_ image.Image, seed geom.BBox) (*geom.BBox, error) {
	box := seed
	return &box, nil
}

// jointAnchors places each COCO joint at a fixed fractional (x, y) position
// inside a detection box, a rough upright standing figure.
var jointAnchors = [NumJoints][2]float64{
	{0.50, 0.08}, // nose
	{0.46, 0.06}, {0.54, 0.06}, // eyes
	{0.42, 0.08}, {0.58, 0.08}, // ears
	{0.35, 0.20}, {0.65, 0.20}, // shoulders
	{0.30, 0.35}, {0.70, 0.35}, // elbows
	{0.27, 0.50}, {0.73, 0.50}, // wrists
	{0.40, 0.52}, {0.60, 0.52}, // hips
	{0.40, 0.74}, {0.60, 0.74}, // knees
	{0.40, 0.96}, {0.60, 0.96}, // ankles
}

// StaticPoseEstimator emits a canonical upright pose scaled to the detection
// box. It is the stand-in used when no pose checkpoint is configured, and is
// fully deterministic so repeated runs produce identical artifacts.
type StaticPoseEstimator struct{}

func (StaticPoseEstimator) EstimatePose(_ image.Image, box geom.BBox) (*Keypoints, error) {
	w := float64(box.Width())
	h := float64(box.Height())
	var kp Keypoints
	for j, a := range jointAnchors {
		kp[j] = [3]float64{
			float64(box.X1) + a[0]*w,
			float64(box.Y1) + a[1]*h,
			1.0,
		}
	}
	return &kp, nil
}
