package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultMinJointScore is the 2D confidence below which a view's joint is
// excluded from triangulation.
const DefaultMinJointScore = 0.3

// LinearTriangulator lifts 2D keypoints to 3D with the direct linear
// transform: per joint, each contributing view adds two rows to a
// homogeneous system whose least-squares solution is the world point. Rows
// are weighted by 2D confidence so shaky detections pull less.
type LinearTriangulator struct {
	// MinScore excludes low-confidence 2D joints. Zero means the default.
	MinScore float64
}

// Triangulate solves each joint independently. A joint visible in fewer than
// two views is left at the origin with score 0; the per-joint score of a
// solved joint is the mean 2D confidence of its contributing views.
func (t *LinearTriangulator) Triangulate(views []View) (Pose3D, error) {
	var pose Pose3D
	if len(views) < 2 {
		return pose, fmt.Errorf("triangulation needs at least 2 views, got %d", len(views))
	}
	minScore := t.MinScore
	if minScore == 0 {
		minScore = DefaultMinJointScore
	}

	for j := 0; j < NumJoints; j++ {
		var rows []float64
		var scoreSum float64
		var used int
		for _, v := range views {
			u, w, score := v.Keypoints[j][0], v.Keypoints[j][1], v.Keypoints[j][2]
			if score < minScore {
				continue
			}
			p := v.Camera.ProjectionMatrix()
			// Two DLT rows per view: u·P3 − P1 and v·P3 − P2.
			for c := 0; c < 4; c++ {
				rows = append(rows, score*(u*p[8+c]-p[0+c]))
			}
			for c := 0; c < 4; c++ {
				rows = append(rows, score*(w*p[8+c]-p[4+c]))
			}
			scoreSum += score
			used++
		}
		if used < 2 {
			continue
		}

		a := mat.NewDense(used*2, 4, rows)
		var svd mat.SVD
		if !svd.Factorize(a, mat.SVDThin) {
			return pose, fmt.Errorf("joint %d: SVD failed to converge", j)
		}
		var v mat.Dense
		svd.VTo(&v)

		// Smallest right singular vector, dehomogenized.
		wHom := v.At(3, 3)
		if wHom == 0 {
			continue
		}
		pose[j] = [4]float64{
			v.At(0, 3) / wHom,
			v.At(1, 3) / wHom,
			v.At(2, 3) / wHom,
			scoreSum / float64(used),
		}
	}
	return pose, nil
}
