// Package camera models a fixed, calibrated camera: projection of world
// points into the image, the per-frame foreground silhouette and the binary
// difference between consecutive silhouettes.
package camera

import (
	"errors"
	"image"

	"github.com/golang/geo/r3"
)

var (
	// ErrEmptyFrame is returned when a frame or mask has no pixels
	ErrEmptyFrame = errors.New("empty frame")
	// ErrSizeMismatch is returned when a frame or mask does not match the
	// calibrated image size
	ErrSizeMismatch = errors.New("frame size does not match camera")
	// ErrNotCalibrated is returned when calibration data is missing or malformed
	ErrNotCalibrated = errors.New("camera not calibrated")
	// ErrNoBackgroundModel is returned by UpdateForeground when the view has
	// no background model to segment frames with
	ErrNoBackgroundModel = errors.New("no background model")
)

// Offscreen is returned by Project for points that can not be imaged, such
// as points behind the camera
var Offscreen = image.Point{X: -1, Y: -1}

// Camera is the view of the scene a single fixed camera provides.  Project,
// Location and Size must be safe for concurrent use, the remaining methods
// are called from a single goroutine.
type Camera interface {
	// ID returns the index of the camera in its rig
	ID() int
	// Project maps a world point to the nearest pixel
	Project(p r3.Vector) image.Point
	// Location returns the camera centre in world coordinates
	Location() r3.Vector
	// Size returns the width and height of the image
	Size() image.Point
	// UpdateForeground segments the next frame and refreshes the foreground
	// mask and binary difference
	UpdateForeground(frame image.Image) error
	// Frame returns the last frame passed to UpdateForeground
	Frame() *image.RGBA
	// Foreground returns the current mask, 255 marks foreground
	Foreground() *image.Gray
	// Difference returns the XOR of the current and previous masks
	Difference() *image.Gray
}

// BackgroundModel separates foreground from background in a frame
type BackgroundModel interface {
	Apply(frame image.Image) (*image.Gray, error)
}

// BackgroundFunc adapts an ordinary function to a BackgroundModel
type BackgroundFunc func(frame image.Image) (*image.Gray, error)

// Apply calls f(frame)
func (f BackgroundFunc) Apply(frame image.Image) (*image.Gray, error) {
	return f(frame)
}

// Point2 is a sub-pixel image coordinate
type Point2 struct {
	X, Y float64
}
