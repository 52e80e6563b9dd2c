package pipeline

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	tracking "github.com/didibib/computer-vision-tracking"
	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/voxel"
)

const (
	sceneWidth  = 320
	sceneHeight = 240
	sceneStep   = 64
)

var black = color.RGBA{A: 255}

// cylinder is an upright subject standing on the floor, the top half and
// the bottom half have their own colour
type cylinder struct {
	centre      r3.Vector
	radius      float64
	height      float64
	top, bottom color.RGBA
}

// hit returns the distance along the ray to the cylinder, false on a miss
func (c cylinder) hit(o, d r3.Vector) (float64, bool) {

	best := math.Inf(1)

	ox, oy := o.X-c.centre.X, o.Y-c.centre.Y
	a := d.X*d.X + d.Y*d.Y
	b := 2 * (d.X*ox + d.Y*oy)
	cc := ox*ox + oy*oy - c.radius*c.radius

	if disc := b*b - 4*a*cc; a > 0 && disc >= 0 {
		for _, t := range []float64{(-b - math.Sqrt(disc)) / (2 * a), (-b + math.Sqrt(disc)) / (2 * a)} {
			if z := o.Z + t*d.Z; t > 0 && z >= 0 && z <= c.height && t < best {
				best = t
			}
		}
	}

	if d.Z != 0 {
		for _, z := range []float64{0, c.height} {
			t := (z - o.Z) / d.Z
			x, y := o.X+t*d.X-c.centre.X, o.Y+t*d.Y-c.centre.Y
			if t > 0 && x*x+y*y <= c.radius*c.radius && t < best {
				best = t
			}
		}
	}

	return best, !math.IsInf(best, 1)
}

func (c cylinder) colorAt(p r3.Vector) color.RGBA {
	if p.Z > c.height/2 {
		return c.top
	}
	return c.bottom
}

func subjects() []cylinder {
	return []cylinder{
		{
			centre: r3.Vector{X: -512},
			radius: 200,
			height: 896,
			top:    color.RGBA{R: 200, G: 40, B: 40, A: 255},
			bottom: color.RGBA{R: 40, G: 40, B: 200, A: 255},
		},
		{
			centre: r3.Vector{X: 512},
			radius: 200,
			height: 896,
			top:    color.RGBA{R: 40, G: 200, B: 40, A: 255},
			bottom: color.RGBA{R: 200, G: 200, B: 40, A: 255},
		},
	}
}

// lookAt returns the calibration of a distortion free camera at eye looking
// at target with Z up
func lookAt(eye, target r3.Vector) *camera.Calibration {

	f := target.Sub(eye).Normalize()
	r := f.Cross(r3.Vector{Z: 1}).Normalize()
	d := f.Cross(r)

	rot := mat.NewDense(3, 3, []float64{
		r.X, r.Y, r.Z,
		d.X, d.Y, d.Z,
		f.X, f.Y, f.Z,
	})

	rvec := camera.RotationVector(rot)
	t := r3.Vector{X: -r.Dot(eye), Y: -d.Dot(eye), Z: -f.Dot(eye)}

	return &camera.Calibration{
		CameraMatrix: []float64{300, 0, sceneWidth / 2, 0, 300, sceneHeight / 2, 0, 0, 1},
		Rotation:     []float64{rvec.X, rvec.Y, rvec.Z},
		Translation:  []float64{t.X, t.Y, t.Z},
		Width:        sceneWidth,
		Height:       sceneHeight,
	}
}

// nonBlack marks every pixel that is not pure black as foreground
var nonBlack = camera.BackgroundFunc(func(frame image.Image) (*image.Gray, error) {

	b := frame.Bounds()
	mask := image.NewGray(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, g, bl, _ := frame.At(x, y).RGBA(); r|g|bl != 0 {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return mask, nil
})

// rig returns four cameras on the X and Y axes around the origin, starting
// at -Y.  Subjects kept on the X axis then carve without phantom volume:
// the cameras on Y separate them in x and the cameras on X bound them in y
func rig(t *testing.T) []*camera.View {
	t.Helper()

	target := r3.Vector{Z: 450}
	views := make([]*camera.View, 4)

	for i := range views {

		a := -math.Pi/2 + float64(i)*math.Pi/2
		eye := r3.Vector{X: 4000 * math.Cos(a), Y: 4000 * math.Sin(a), Z: 1500}

		v, err := camera.NewView(i, lookAt(eye, target), nonBlack)
		require.NoError(t, err)

		views[i] = v
	}

	return views
}

// render ray casts the subjects into the image of a view, the background
// stays black
func render(v *camera.View, subs []cylinder) *image.RGBA {

	img := image.NewRGBA(image.Rect(0, 0, sceneWidth, sceneHeight))
	o := v.Location()

	for y := 0; y < sceneHeight; y++ {
		for x := 0; x < sceneWidth; x++ {

			d := v.Backproject(float64(x), float64(y), 1).Sub(o)
			best, col := math.Inf(1), black

			for _, s := range subs {
				if t, ok := s.hit(o, d); ok && t < best {
					best, col = t, s.colorAt(o.Add(d.Mul(t)))
				}
			}

			img.SetRGBA(x, y, col)
		}
	}

	return img
}

func renderAll(views []*camera.View, subs []cylinder) []image.Image {

	frames := make([]image.Image, len(views))

	for i, v := range views {
		frames[i] = render(v, subs)
	}

	return frames
}

func sceneGrid(t *testing.T, views []*camera.View) *voxel.Grid {
	t.Helper()

	cams := make([]camera.Camera, len(views))
	for i, v := range views {
		cams[i] = v
	}

	pool := tracking.NewPool(4)
	t.Cleanup(pool.Close)

	g, err := voxel.NewGrid(cams, voxel.GridConfig{Height: 1024, Step: sceneStep}, voxel.WithPool(pool))
	require.NoError(t, err)

	return g
}
