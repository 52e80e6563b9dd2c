package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// State is the estimate of a ground plane position and velocity, mean is
// x, y, vx, vy
type State struct {
	Mean *mat.VecDense
	Cov  *mat.Dense
}

// Position returns the estimated x, y
func (s *State) Position() (float64, float64) {
	return s.Mean.AtVec(0), s.Mean.AtVec(1)
}

// KalmanFilter is a constant velocity filter over ground plane positions
type KalmanFilter struct {
	// standard deviation of the position and velocity process noise per step
	stdPosition float64
	stdVelocity float64
	// standard deviation of a measured position
	stdMeasurement float64
	motionMat      *mat.Dense
	updateMat      *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter, the deviations
// are in world units
func NewKalmanFilter(stdPosition, stdVelocity, stdMeasurement float64) *KalmanFilter {

	// x' = x + vx, y' = y + vy
	motionMat := mat.NewDense(4, 4, []float64{
		1, 0, 1, 0,
		0, 1, 0, 1,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	// only the position is measured
	updateMat := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})

	return &KalmanFilter{
		stdPosition:    stdPosition,
		stdVelocity:    stdVelocity,
		stdMeasurement: stdMeasurement,
		motionMat:      motionMat,
		updateMat:      updateMat,
	}
}

// Initiate creates the state of a new track at the measured position
func (kf *KalmanFilter) Initiate(x, y float64) *State {

	cov := mat.NewDense(4, 4, nil)

	std := []float64{
		2 * kf.stdMeasurement,
		2 * kf.stdMeasurement,
		10 * kf.stdVelocity,
		10 * kf.stdVelocity,
	}

	for i, v := range std {
		cov.Set(i, i, v*v)
	}

	return &State{
		Mean: mat.NewVecDense(4, []float64{x, y, 0, 0}),
		Cov:  cov,
	}
}

// Predict advances the state by one frame
func (kf *KalmanFilter) Predict(s *State) {

	noise := mat.NewDiagDense(4, []float64{
		kf.stdPosition * kf.stdPosition,
		kf.stdPosition * kf.stdPosition,
		kf.stdVelocity * kf.stdVelocity,
		kf.stdVelocity * kf.stdVelocity,
	})

	s.Mean.MulVec(kf.motionMat, s.Mean)

	var cov mat.Dense
	cov.Mul(kf.motionMat, s.Cov)
	cov.Mul(&cov, kf.motionMat.T())
	cov.Add(&cov, noise)

	s.Cov = &cov
}

// Update corrects the state with a measured position
func (kf *KalmanFilter) Update(s *State, x, y float64) error {

	// project the covariance to measurement space and add measurement noise
	var tmp mat.Dense
	tmp.Mul(kf.updateMat, s.Cov)

	var projected mat.Dense
	projected.Mul(&tmp, kf.updateMat.T())

	innovationCov := mat.NewSymDense(2, nil)
	m2 := kf.stdMeasurement * kf.stdMeasurement

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			v := projected.At(i, j)
			if i == j {
				v += m2
			}
			innovationCov.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky

	if ok := chol.Factorize(innovationCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// gain^T = S^-1 H P^T
	var b mat.Dense
	b.Mul(kf.updateMat, s.Cov.T())

	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, &b); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	px, py := s.Position()
	innovation := mat.NewVecDense(2, []float64{x - px, y - py})

	var correction mat.VecDense
	correction.MulVec(gainT.T(), innovation)
	s.Mean.AddVec(s.Mean, &correction)

	// P = P - K S K^T
	var ks mat.Dense
	ks.Mul(gainT.T(), innovationCov)

	var kskt mat.Dense
	kskt.Mul(&ks, &gainT)

	var cov mat.Dense
	cov.Sub(s.Cov, &kskt)
	s.Cov = &cov

	return nil
}
