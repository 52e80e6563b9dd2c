package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Rodrigues converts a rotation vector to a 3x3 rotation matrix
func Rodrigues(r r3.Vector) *mat.Dense {

	theta := r.Norm()

	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}

	k := r.Mul(1 / theta)
	c := math.Cos(theta)
	s := math.Sin(theta)
	v := 1 - c

	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s,
		k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s,
		k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v,
	})
}

// RotationVector converts a rotation matrix back to its Rodrigues vector
func RotationVector(rot mat.Matrix) r3.Vector {

	tr := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)

	axis := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}

	// |axis| is 2 sin(theta), atan2 keeps full precision near 0 and pi
	theta := math.Atan2(axis.Norm()/2, (tr-1)/2)

	if theta < 1e-12 {
		return r3.Vector{}
	}

	if math.Pi-theta > 1e-6 {
		return axis.Mul(theta / (2 * math.Sin(theta)))
	}

	// near pi the antisymmetric part vanishes, take the axis from the
	// diagonal and fix the signs from the symmetric part
	k := r3.Vector{
		X: math.Sqrt(math.Max(0, (rot.At(0, 0)+1)/2)),
		Y: math.Sqrt(math.Max(0, (rot.At(1, 1)+1)/2)),
		Z: math.Sqrt(math.Max(0, (rot.At(2, 2)+1)/2)),
	}

	switch {
	case k.X >= k.Y && k.X >= k.Z:
		if rot.At(0, 1)+rot.At(1, 0) < 0 {
			k.Y = -k.Y
		}
		if rot.At(0, 2)+rot.At(2, 0) < 0 {
			k.Z = -k.Z
		}
	case k.Y >= k.Z:
		if rot.At(0, 1)+rot.At(1, 0) < 0 {
			k.X = -k.X
		}
		if rot.At(1, 2)+rot.At(2, 1) < 0 {
			k.Z = -k.Z
		}
	default:
		if rot.At(0, 2)+rot.At(2, 0) < 0 {
			k.X = -k.X
		}
		if rot.At(1, 2)+rot.At(2, 1) < 0 {
			k.Y = -k.Y
		}
	}

	return k.Normalize().Mul(theta)
}
