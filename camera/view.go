package camera

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// undistortIterations is the number of fixed point iterations used to invert
// the lens distortion model
const undistortIterations = 20

// View is a calibrated pinhole camera with Brown-Conrady lens distortion and
// the foreground state of the last frame it was given
type View struct {
	id int

	// intrinsics
	k              *mat.Dense
	fx, fy, cx, cy float64
	// k1, k2, p1, p2, k3
	dist [5]float64

	// extrinsics, rot is the row-major copy of r used on the hot path
	rvec     r3.Vector
	r        *mat.Dense
	rot      [9]float64
	t        r3.Vector
	location r3.Vector

	size image.Point

	bg         BackgroundModel
	frame      *image.RGBA
	foreground *image.Gray
	difference *image.Gray
}

// NewView creates a camera from its calibration.  The background model may
// be nil when masks are supplied with SetForeground
func NewView(id int, calib *Calibration, bg BackgroundModel) (*View, error) {

	if calib == nil {
		return nil, ErrNotCalibrated
	}

	if err := calib.Validate(); err != nil {
		return nil, fmt.Errorf("camera %d: %w", id, err)
	}

	v := &View{
		id:   id,
		k:    mat.NewDense(3, 3, append([]float64(nil), calib.CameraMatrix...)),
		fx:   calib.CameraMatrix[0],
		fy:   calib.CameraMatrix[4],
		cx:   calib.CameraMatrix[2],
		cy:   calib.CameraMatrix[5],
		size: image.Pt(calib.Width, calib.Height),
		bg:   bg,
	}

	copy(v.dist[:], calib.Distortion)

	v.setPose(
		r3.Vector{X: calib.Rotation[0], Y: calib.Rotation[1], Z: calib.Rotation[2]},
		r3.Vector{X: calib.Translation[0], Y: calib.Translation[1], Z: calib.Translation[2]},
	)

	return v, nil
}

// setPose updates the extrinsics and everything derived from them
func (v *View) setPose(rvec, t r3.Vector) {

	v.rvec = rvec
	v.t = t
	v.r = Rodrigues(rvec)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v.rot[i*3+j] = v.r.At(i, j)
		}
	}

	v.location = v.toWorld(r3.Vector{})
}

// toWorld maps a camera space point to world space, R^T (p - t)
func (v *View) toWorld(p r3.Vector) r3.Vector {

	d := p.Sub(v.t)

	return r3.Vector{
		X: v.rot[0]*d.X + v.rot[3]*d.Y + v.rot[6]*d.Z,
		Y: v.rot[1]*d.X + v.rot[4]*d.Y + v.rot[7]*d.Z,
		Z: v.rot[2]*d.X + v.rot[5]*d.Y + v.rot[8]*d.Z,
	}
}

// toCamera maps a world space point to camera space, R p + t
func (v *View) toCamera(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: v.rot[0]*p.X + v.rot[1]*p.Y + v.rot[2]*p.Z + v.t.X,
		Y: v.rot[3]*p.X + v.rot[4]*p.Y + v.rot[5]*p.Z + v.t.Y,
		Z: v.rot[6]*p.X + v.rot[7]*p.Y + v.rot[8]*p.Z + v.t.Z,
	}
}

// ID returns the camera index
func (v *View) ID() int {
	return v.id
}

// Size returns the calibrated image size
func (v *View) Size() image.Point {
	return v.size
}

// Location returns the camera centre in world coordinates
func (v *View) Location() r3.Vector {
	return v.location
}

// Intrinsics returns a copy of the camera matrix
func (v *View) Intrinsics() *mat.Dense {
	return mat.DenseCopyOf(v.k)
}

// Rotation returns a copy of the world to camera rotation matrix
func (v *View) Rotation() *mat.Dense {
	return mat.DenseCopyOf(v.r)
}

// RotationVector returns the world to camera rotation as a Rodrigues vector
func (v *View) RotationVector() r3.Vector {
	return v.rvec
}

// Translation returns the world to camera translation
func (v *View) Translation() r3.Vector {
	return v.t
}

// Calibration returns the current parameters of the view, including any
// pose solved with SolveFrame
func (v *View) Calibration() *Calibration {

	c := &Calibration{
		CameraMatrix: append([]float64(nil), v.k.RawMatrix().Data...),
		Distortion:   append([]float64(nil), v.dist[:]...),
		Rotation:     []float64{v.rvec.X, v.rvec.Y, v.rvec.Z},
		Translation:  []float64{v.t.X, v.t.Y, v.t.Z},
		Width:        v.size.X,
		Height:       v.size.Y,
	}

	return c
}

// ProjectFloat projects a world point to sub-pixel image coordinates.  ok is
// false for points on or behind the image plane
func (v *View) ProjectFloat(p r3.Vector) (x, y float64, ok bool) {

	pc := v.toCamera(p)

	if pc.Z <= 0 {
		return 0, 0, false
	}

	x, y = v.distort(pc.X/pc.Z, pc.Y/pc.Z)

	return x, y, true
}

// Project projects a world point to the nearest pixel.  Points that can not
// be imaged return Offscreen
func (v *View) Project(p r3.Vector) image.Point {

	x, y, ok := v.ProjectFloat(p)

	if !ok || math.IsNaN(x) || math.IsNaN(y) ||
		math.Abs(x) > math.MaxInt32 || math.Abs(y) > math.MaxInt32 {
		return Offscreen
	}

	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// ProjectPoints projects a batch of world points
func (v *View) ProjectPoints(pts []r3.Vector) []image.Point {

	out := make([]image.Point, len(pts))

	for i, p := range pts {
		out[i] = v.Project(p)
	}

	return out
}

// distort applies lens distortion and the camera matrix to a normalised
// image coordinate
func (v *View) distort(x, y float64) (float64, float64) {

	k1, k2, p1, p2, k3 := v.dist[0], v.dist[1], v.dist[2], v.dist[3], v.dist[4]

	r2 := x*x + y*y
	radial := 1 + r2*(k1+r2*(k2+r2*k3))

	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y

	return v.fx*xd + v.cx, v.fy*yd + v.cy
}

// undistort maps a pixel to the normalised image coordinate it was imaged
// from
func (v *View) undistort(u, w float64) (float64, float64) {

	k1, k2, p1, p2, k3 := v.dist[0], v.dist[1], v.dist[2], v.dist[3], v.dist[4]

	x0 := (u - v.cx) / v.fx
	y0 := (w - v.cy) / v.fy
	x, y := x0, y0

	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		icdist := 1 / (1 + r2*(k1+r2*(k2+r2*k3)))
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		x = (x0 - dx) * icdist
		y = (y0 - dy) * icdist
	}

	return x, y
}

// Backproject returns the world point imaged at pixel (x, y) that lies at
// the given depth along the optical axis of the camera
func (v *View) Backproject(x, y, depth float64) r3.Vector {

	xn, yn := v.undistort(x, y)

	return v.toWorld(r3.Vector{X: xn * depth, Y: yn * depth, Z: depth})
}

// Depth returns the camera space depth of a world point
func (v *View) Depth(p r3.Vector) float64 {
	return v.toCamera(p).Z
}

// ray returns the world space direction of the ray through pixel (x, y)
func (v *View) ray(x, y float64) r3.Vector {

	xn, yn := v.undistort(x, y)

	return v.toWorld(r3.Vector{X: xn, Y: yn, Z: 1}).Sub(v.location)
}
