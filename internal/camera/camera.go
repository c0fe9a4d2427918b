// Package camera holds the per-view camera descriptor carried through the
// synchronized frame table and the pinhole projection used to map proposal
// volumes into each exocentric image.
package camera

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/egopose/internal/geom"
)

// Device kinds carried in camera descriptors.
const (
	KindEgo = "aria"
	KindExo = "gopro"
)

// Data is the serializable camera descriptor attached to every view entry.
// Pose fields give the camera-to-world transform: x_world = R(q)·x_cam + t.
type Data struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// Pinhole intrinsics. Zero for egocentric streams, whose fisheye models
	// live outside this package.
	Fx float64 `json:"fx,omitempty"`
	Fy float64 `json:"fy,omitempty"`
	Cx float64 `json:"cx,omitempty"`
	Cy float64 `json:"cy,omitempty"`

	// Orientation quaternion, w first.
	Qw float64 `json:"qw"`
	Qx float64 `json:"qx"`
	Qy float64 `json:"qy"`
	Qz float64 `json:"qz"`

	// Position of the camera center in world coordinates.
	Tx float64 `json:"tx"`
	Ty float64 `json:"ty"`
	Tz float64 `json:"tz"`
}

// Camera is a projective view built from a Data descriptor. It caches the
// world-to-camera rotation so projection is a few multiplies per point.
type Camera struct {
	Data
	// r is the world-to-camera rotation, row major.
	r [9]float64
	// center is the camera center in world coordinates.
	center geom.Vec3
}

// New builds a Camera from its descriptor.
func New(d Data) *Camera {
	rcw := rotationFromQuaternion(d.Qw, d.Qx, d.Qy, d.Qz)
	// World-to-camera is the transpose of camera-to-world.
	r := [9]float64{
		rcw[0], rcw[3], rcw[6],
		rcw[1], rcw[4], rcw[7],
		rcw[2], rcw[5], rcw[8],
	}
	return &Camera{Data: d, r: r, center: geom.Vec3{X: d.Tx, Y: d.Ty, Z: d.Tz}}
}

// Center returns the camera center in world coordinates.
func (c *Camera) Center() geom.Vec3 { return c.center }

// offscreen is returned for points behind the camera so that the bbox
// validator's in-frame filter discards them.
const offscreen = -1e9

// Project maps world points into image pixel coordinates. Points at or behind
// the camera plane map far outside the image.
func (c *Camera) Project(points []geom.Vec3) []geom.Vec2 {
	out := make([]geom.Vec2, len(points))
	for i, p := range points {
		d := p.Sub(c.center)
		x := c.r[0]*d.X + c.r[1]*d.Y + c.r[2]*d.Z
		y := c.r[3]*d.X + c.r[4]*d.Y + c.r[5]*d.Z
		z := c.r[6]*d.X + c.r[7]*d.Y + c.r[8]*d.Z
		if z <= 0 {
			out[i] = geom.Vec2{X: offscreen, Y: offscreen}
			continue
		}
		out[i] = geom.Vec2{
			X: c.Fx*x/z + c.Cx,
			Y: c.Fy*y/z + c.Cy,
		}
	}
	return out
}

// ProjectionMatrix returns the 3x4 matrix K[R|t] in row-major order, used by
// the linear triangulator.
func (c *Camera) ProjectionMatrix() [12]float64 {
	// t = -R·C for the world-to-camera transform.
	tx := -(c.r[0]*c.center.X + c.r[1]*c.center.Y + c.r[2]*c.center.Z)
	ty := -(c.r[3]*c.center.X + c.r[4]*c.center.Y + c.r[5]*c.center.Z)
	tz := -(c.r[6]*c.center.X + c.r[7]*c.center.Y + c.r[8]*c.center.Z)

	return [12]float64{
		c.Fx*c.r[0] + c.Cx*c.r[6], c.Fx*c.r[1] + c.Cx*c.r[7], c.Fx*c.r[2] + c.Cx*c.r[8], c.Fx*tx + c.Cx*tz,
		c.Fy*c.r[3] + c.Cy*c.r[6], c.Fy*c.r[4] + c.Cy*c.r[7], c.Fy*c.r[5] + c.Cy*c.r[8], c.Fy*ty + c.Cy*tz,
		c.r[6], c.r[7], c.r[8], tz,
	}
}

// rotationFromQuaternion converts a (w,x,y,z) quaternion to a row-major
// rotation matrix. The quaternion is normalized first.
func rotationFromQuaternion(w, x, y, z float64) [9]float64 {
	n := w*w + x*x + y*y + z*z
	if n == 0 {
		return [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
	s := 2 / n
	wx, wy, wz := s*w*x, s*w*y, s*w*z
	xx, xy, xz := s*x*x, s*x*y, s*x*z
	yy, yz, zz := s*y*y, s*y*z, s*z*z

	return [9]float64{
		1 - yy - zz, xy - wz, xz + wy,
		xy + wz, 1 - xx - zz, yz - wx,
		xz - wy, yz + wx, 1 - xx - yy,
	}
}

// EgoDataFromRow builds an egocentric stream descriptor from a trajectory row
// keyed by Aria closed-loop column names (tx_world_device etc). Egocentric
// streams carry pose only; their fisheye intrinsics are external.
func EgoDataFromRow(row map[string]string, name string) (Data, error) {
	d := Data{Name: name, Kind: KindEgo}
	var err error
	fields := []struct {
		col string
		dst *float64
	}{
		{"tx_world_device", &d.Tx}, {"ty_world_device", &d.Ty}, {"tz_world_device", &d.Tz},
		{"qw_world_device", &d.Qw}, {"qx_world_device", &d.Qx}, {"qy_world_device", &d.Qy}, {"qz_world_device", &d.Qz},
	}
	for _, f := range fields {
		if *f.dst, err = parseFloatColumn(row, f.col); err != nil {
			return Data{}, err
		}
	}
	return d, nil
}

// ExoDataFromRow builds an exocentric camera descriptor from a calibration
// row (gopro_uid keyed), including image size and pinhole intrinsics.
func ExoDataFromRow(row map[string]string, name string) (Data, error) {
	d := Data{Name: name, Kind: KindExo}
	var err error
	fields := []struct {
		col string
		dst *float64
	}{
		{"fx", &d.Fx}, {"fy", &d.Fy}, {"cx", &d.Cx}, {"cy", &d.Cy},
		{"tx_world_cam", &d.Tx}, {"ty_world_cam", &d.Ty}, {"tz_world_cam", &d.Tz},
		{"qw_world_cam", &d.Qw}, {"qx_world_cam", &d.Qx}, {"qy_world_cam", &d.Qy}, {"qz_world_cam", &d.Qz},
	}
	for _, f := range fields {
		if *f.dst, err = parseFloatColumn(row, f.col); err != nil {
			return Data{}, err
		}
	}
	w, err := parseFloatColumn(row, "image_width")
	if err != nil {
		return Data{}, err
	}
	h, err := parseFloatColumn(row, "image_height")
	if err != nil {
		return Data{}, err
	}
	d.Width = int(w)
	d.Height = int(h)
	return d, nil
}

func parseFloatColumn(row map[string]string, col string) (float64, error) {
	raw, ok := row[col]
	if !ok {
		return 0, fmt.Errorf("trajectory row missing column %q", col)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("trajectory column %q: %w", col, err)
	}
	return v, nil
}
