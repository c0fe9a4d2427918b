package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/geom"
)

func testCamera(name string, tx, ty, tz float64) *camera.Camera {
	return camera.New(camera.Data{
		Name: name, Kind: camera.KindExo,
		Width: 1920, Height: 1080,
		Fx: 1000, Fy: 1000, Cx: 960, Cy: 540,
		Qw: 1,
		Tx: tx, Ty: ty, Tz: tz,
	})
}

// testPose returns 17 world points spread in front of the cameras.
func testPose() []geom.Vec3 {
	points := make([]geom.Vec3, NumJoints)
	for j := range points {
		points[j] = geom.Vec3{
			X: 0.3 * float64(j%4),
			Y: 1.6 - 0.1*float64(j),
			Z: 5 + 0.2*float64(j%3),
		}
	}
	return points
}

func viewOf(cam *camera.Camera, points []geom.Vec3, score float64) View {
	proj := cam.Project(points)
	v := View{Camera: cam}
	for j, p := range proj {
		v.Keypoints[j] = [3]float64{p.X, p.Y, score}
	}
	return v
}

func TestTriangulateRecoversWorldPoints(t *testing.T) {
	t.Parallel()

	points := testPose()
	views := []View{
		viewOf(testCamera("cam01", 0, 0, 0), points, 0.9),
		viewOf(testCamera("cam02", 1.5, 0, 0), points, 0.9),
		viewOf(testCamera("cam03", 0, 1.5, 0), points, 0.9),
	}

	tri := &LinearTriangulator{}
	pose, err := tri.Triangulate(views)
	require.NoError(t, err)

	for j, want := range points {
		assert.InDelta(t, want.X, pose[j][0], 1e-6, "joint %d x", j)
		assert.InDelta(t, want.Y, pose[j][1], 1e-6, "joint %d y", j)
		assert.InDelta(t, want.Z, pose[j][2], 1e-6, "joint %d z", j)
		assert.InDelta(t, 0.9, pose[j][3], 1e-9, "joint %d score", j)
	}
}

func TestTriangulateSkipsLowConfidenceJoints(t *testing.T) {
	t.Parallel()

	points := testPose()
	a := viewOf(testCamera("cam01", 0, 0, 0), points, 0.9)
	b := viewOf(testCamera("cam02", 1.5, 0, 0), points, 0.9)

	// Joint 0 falls below threshold in one view, leaving one usable view.
	a.Keypoints[0][2] = 0.1

	tri := &LinearTriangulator{}
	pose, err := tri.Triangulate([]View{a, b})
	require.NoError(t, err)

	assert.Equal(t, [4]float64{}, pose[0], "under-observed joint stays unset")
	assert.InDelta(t, points[1].X, pose[1][0], 1e-6)
}

func TestTriangulateNeedsTwoViews(t *testing.T) {
	t.Parallel()

	tri := &LinearTriangulator{}
	_, err := tri.Triangulate([]View{viewOf(testCamera("cam01", 0, 0, 0), testPose(), 0.9)})
	assert.Error(t, err)
}

func TestTriangulateDeterministic(t *testing.T) {
	t.Parallel()

	points := testPose()
	views := []View{
		viewOf(testCamera("cam01", 0, 0, 0), points, 0.8),
		viewOf(testCamera("cam02", 1.5, 0, 0), points, 0.8),
	}

	tri := &LinearTriangulator{}
	a, err := tri.Triangulate(views)
	require.NoError(t, err)
	b, err := tri.Triangulate(views)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
