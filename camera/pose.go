package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrCornerCount is returned when the detected corners do not match the board
var ErrCornerCount = errors.New("corner count does not match checkerboard")

// SolveFrame recovers the camera pose from the image positions of the
// checkerboard corners lying on the Z=0 world plane.  The intrinsics and
// distortion are kept, rotation, translation and location are replaced
func (v *View) SolveFrame(board Checkerboard, corners []Point2) error {

	obj := board.ObjectPoints()

	if len(corners) != len(obj) {
		return fmt.Errorf("%w: got %d want %d", ErrCornerCount, len(corners), len(obj))
	}

	if len(obj) < 4 {
		return fmt.Errorf("%w: need at least 4 corners", ErrCornerCount)
	}

	img := make([]Point2, len(corners))

	for i, c := range corners {
		x, y := v.undistort(c.X, c.Y)
		img[i] = Point2{X: x, Y: y}
	}

	h, err := homography(obj, img)

	if err != nil {
		return fmt.Errorf("camera %d: %w", v.id, err)
	}

	rot, t, err := decomposeHomography(h)

	if err != nil {
		return fmt.Errorf("camera %d: %w", v.id, err)
	}

	v.setPose(RotationVector(rot), t)

	return nil
}

// normalisation returns the similarity transform moving the points to their
// centroid with a mean distance of sqrt(2)
func normalisation(pts []Point2) *mat.Dense {

	var mx, my float64

	for _, p := range pts {
		mx += p.X
		my += p.Y
	}

	n := float64(len(pts))
	mx /= n
	my /= n

	var d float64

	for _, p := range pts {
		d += math.Hypot(p.X-mx, p.Y-my)
	}

	d /= n

	s := 1.0
	if d > 0 {
		s = math.Sqrt2 / d
	}

	return mat.NewDense(3, 3, []float64{
		s, 0, -s * mx,
		0, s, -s * my,
		0, 0, 1,
	})
}

// apply maps a point through a 3x3 projective transform
func apply(m mat.Matrix, p Point2) Point2 {

	w := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)

	return Point2{
		X: (m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)) / w,
		Y: (m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)) / w,
	}
}

// homography estimates the plane to image homography with the normalised
// direct linear transform
func homography(src, dst []Point2) (*mat.Dense, error) {

	ts := normalisation(src)
	td := normalisation(dst)

	a := mat.NewDense(2*len(src), 9, nil)

	for i := range src {

		s := apply(ts, src[i])
		d := apply(td, dst[i])

		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}

	var svd mat.SVD

	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.New("homography: svd failed")
	}

	var vm mat.Dense
	svd.VTo(&vm)

	// singular values are in descending order, the solution is the last column
	hn := mat.NewDense(3, 3, nil)

	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, vm.At(i, 8))
	}

	var tdInv mat.Dense

	if err := tdInv.Inverse(td); err != nil {
		return nil, fmt.Errorf("homography: %w", err)
	}

	var h mat.Dense
	h.Product(&tdInv, hn, ts)

	return &h, nil
}

// decomposeHomography splits a homography between the Z=0 plane and
// normalised image coordinates into a rotation and translation
func decomposeHomography(h *mat.Dense) (*mat.Dense, r3.Vector, error) {

	h1 := r3.Vector{X: h.At(0, 0), Y: h.At(1, 0), Z: h.At(2, 0)}
	h2 := r3.Vector{X: h.At(0, 1), Y: h.At(1, 1), Z: h.At(2, 1)}
	h3 := r3.Vector{X: h.At(0, 2), Y: h.At(1, 2), Z: h.At(2, 2)}

	n1, n2 := h1.Norm(), h2.Norm()

	if n1 == 0 || n2 == 0 {
		return nil, r3.Vector{}, errors.New("degenerate homography")
	}

	lambda := 2 / (n1 + n2)

	// the board must be in front of the camera
	if h3.Z*lambda < 0 {
		lambda = -lambda
	}

	r1 := h1.Mul(lambda)
	r2 := h2.Mul(lambda)
	r3v := r1.Cross(r2)
	t := h3.Mul(lambda)

	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})

	var svd mat.SVD

	if ok := svd.Factorize(approx, mat.SVDFull); !ok {
		return nil, r3.Vector{}, errors.New("rotation: svd failed")
	}

	var u, vm mat.Dense
	svd.UTo(&u)
	svd.VTo(&vm)

	var rot mat.Dense
	rot.Mul(&u, vm.T())

	if mat.Det(&rot) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rot.Mul(&u, vm.T())
	}

	return &rot, t, nil
}
