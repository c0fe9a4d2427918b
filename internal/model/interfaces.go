package model

import (
	"image"

	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/geom"
)

// Detector finds the person inside a seeded image region. The seed box comes
// from projected proposal geometry and is never recorded itself; only the
// detector's output is. A nil result with nil error means no person found.
type Detector interface {
	DetectPerson(img image.Image, seed geom.BBox) (*geom.BBox, error)
}

// PoseEstimator produces 2D keypoints for the person inside a detected box.
type PoseEstimator interface {
	EstimatePose(img image.Image, box geom.BBox) (*Keypoints, error)
}

// View pairs one camera's calibration with its detected 2D keypoints for a
// single frame.
type View struct {
	Camera    *camera.Camera
	Keypoints Keypoints
}

// Triangulator lifts per-view 2D keypoints to a single 3D pose.
type Triangulator interface {
	Triangulate(views []View) (Pose3D, error)
}
