package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// collinearityTol is the relative singular-value threshold below which a point
// set is treated as rank-deficient (all points on one line).
const collinearityTol = 1e-9

// Plane is a plane in implicit form a·x + b·y + c·z + d = 0 with (a,b,c) of
// unit length.
type Plane struct {
	A, B, C, D float64
}

// Normal returns the plane's unit normal (a,b,c).
func (p Plane) Normal() Vec3 { return Vec3{p.A, p.B, p.C} }

// DegenerateGeometryError reports a point set that does not define a plane.
// It aborts the whole run: the camera rig is static, so every frame would fail
// the same way.
type DegenerateGeometryError struct {
	Reason string
	Points int
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry: %s (%d points)", e.Reason, e.Points)
}

// FitPlane fits a least-squares plane to a set of 3D points (the exocentric
// camera centers). The normal is the left singular vector of the centered
// point matrix with the smallest singular value.
//
// Returns a DegenerateGeometryError for fewer than three points or a collinear
// set, where the plane is undefined.
func FitPlane(points []Vec3) (Plane, error) {
	if len(points) < 3 {
		return Plane{}, &DegenerateGeometryError{Reason: "need at least 3 points", Points: len(points)}
	}

	var centroid Vec3
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(points)))

	m := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d := p.Sub(centroid)
		m.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return Plane{}, &DegenerateGeometryError{Reason: "SVD did not converge", Points: len(points)}
	}
	sv := svd.Values(nil)
	// Rank < 2 means the centered points span at most a line.
	if sv[0] == 0 || sv[1] <= collinearityTol*sv[0] {
		return Plane{}, &DegenerateGeometryError{Reason: "points are collinear", Points: len(points)}
	}

	var v mat.Dense
	svd.VTo(&v)
	n := Vec3{v.At(0, 2), v.At(1, 2), v.At(2, 2)}.Normalize()

	return Plane{A: n.X, B: n.Y, C: n.Z, D: -n.Dot(centroid)}, nil
}
