package voxel

import (
	"image"

	"github.com/golang/geo/r3"

	"github.com/didibib/computer-vision-tracking/camera"
)

// orthoCamera is an orthographic camera used to build small grids with
// predictable projections
type orthoCamera struct {
	id        int
	size      image.Point
	loc       r3.Vector
	project   func(p r3.Vector) image.Point
	footprint [][2]float64

	fg, diff *image.Gray
}

func (o *orthoCamera) ID() int { return o.id }
func (o *orthoCamera) Project(p r3.Vector) image.Point { return o.project(p) }
func (o *orthoCamera) Location() r3.Vector { return o.loc }
func (o *orthoCamera) Size() image.Point { return o.size }
func (o *orthoCamera) UpdateForeground(f image.Image) error { return nil }
func (o *orthoCamera) Frame() *image.RGBA { return nil }
func (o *orthoCamera) Foreground() *image.Gray { return o.fg }
func (o *orthoCamera) Difference() *image.Gray { return o.diff }
func (o *orthoCamera) Footprint(z float64) [][2]float64 { return o.footprint }

// setMask marks the given pixels as foreground and updates the difference
func (o *orthoCamera) setMask(on []image.Point) {

	next := image.NewGray(image.Rectangle{Max: o.size})

	for _, p := range on {
		next.Pix[next.PixOffset(p.X, p.Y)] = 255
	}

	diff := image.NewGray(next.Rect)

	for i := range next.Pix {
		if o.fg == nil {
			diff.Pix[i] = next.Pix[i]
		} else {
			diff.Pix[i] = next.Pix[i] ^ o.fg.Pix[i]
		}
	}

	o.fg, o.diff = next, diff
}

// has reports whether pixel p of the current mask is foreground
func (o *orthoCamera) has(p image.Point) bool {
	return o.fg.Pix[o.fg.PixOffset(p.X, p.Y)] == 255
}

// testConfig is a grid of 8x8x4 voxels of 16 units
var testConfig = GridConfig{Height: 64, Step: 16}

// topCamera looks down the z axis, sideCamera along the y axis
func testCameras() (top, side *orthoCamera) {

	top = &orthoCamera{
		id:   0,
		size: image.Pt(8, 8),
		loc:  r3.Vector{Z: 1000},
		project: func(p r3.Vector) image.Point {
			return image.Pt(int(p.X+64)/16, int(p.Y+64)/16)
		},
	}

	side = &orthoCamera{
		id:   1,
		size: image.Pt(8, 8),
		loc:  r3.Vector{Y: -1000, Z: 32},
		project: func(p r3.Vector) image.Point {
			return image.Pt(int(p.X+64)/16, int(p.Z)/16)
		},
	}

	return top, side
}

func asCameras(cams ...*orthoCamera) []camera.Camera {

	out := make([]camera.Camera, len(cams))

	for i, c := range cams {
		out[i] = c
	}

	return out
}
