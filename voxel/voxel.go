// Package voxel keeps a regular voxel grid over the working volume,
// pre-projected into every camera, and the set of voxels every camera sees as
// foreground.
package voxel

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/golang/geo/r3"
)

// MaxCameras is the number of cameras a CameraMask can hold
const MaxCameras = 64

var (
	// ErrNoCameras is returned when a grid is built without cameras
	ErrNoCameras = errors.New("no cameras")
	// ErrTooManyCameras is returned when more than MaxCameras are given
	ErrTooManyCameras = errors.New("too many cameras")
	// ErrPlaneMismatch is returned when the cameras differ in image size
	ErrPlaneMismatch = errors.New("cameras do not share the same image size")
	// ErrInvalidGrid is returned for a non positive step or a height below it
	ErrInvalidGrid = errors.New("invalid grid dimensions")
	// ErrNoMask is returned by Carver.Update when a camera has no foreground
	ErrNoMask = errors.New("camera has no foreground mask")
)

// Index addresses a voxel in the grid arena
type Index int32

// CameraMask holds one bit per camera, set when the voxel projects onto a
// foreground pixel of that camera
type CameraMask uint64

// AllCameras returns the mask with the first n camera bits set
func AllCameras(n int) (CameraMask, error) {

	if n < 1 {
		return 0, ErrNoCameras
	}

	if n > MaxCameras {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyCameras, n, MaxCameras)
	}

	if n == MaxCameras {
		return ^CameraMask(0), nil
	}

	return CameraMask(1)<<n - 1, nil
}

// Has reports whether the bit of camera c is set
func (m CameraMask) Has(c int) bool {
	return m&(1<<c) != 0
}

// With returns the mask with the bit of camera c set to on
func (m CameraMask) With(c int, on bool) CameraMask {

	if on {
		return m | 1<<c
	}

	return m &^ (1 << c)
}

// Voxel is a cell of the reconstruction grid
type Voxel struct {
	// Position of the cell in world units
	Position r3.Vector
	// Pixels is the linear pixel index per camera, -1 when off image
	Pixels []int32
	// Distances from the voxel to each camera centre
	Distances []float32
	// Flags marks the cameras seeing the voxel as foreground
	Flags CameraMask
	// VisibleIndex is the position in the visible list or -1
	VisibleIndex int32
	// Label is the cluster label assigned in the last clustering, -1 if none
	Label int32
	// Person is the person id given to the voxel, -1 if unassigned
	Person int32
	// Color the voxel is drawn with
	Color color.RGBA
}
