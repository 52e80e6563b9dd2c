package colormodel

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/voxel"
)

// flatCamera is an orthographic camera over an 8x8 image
type flatCamera struct {
	id      int
	loc     r3.Vector
	project func(p r3.Vector) image.Point

	frame    *image.RGBA
	fg, diff *image.Gray
}

func (f *flatCamera) ID() int { return f.id }
func (f *flatCamera) Project(p r3.Vector) image.Point { return f.project(p) }
func (f *flatCamera) Location() r3.Vector { return f.loc }
func (f *flatCamera) Size() image.Point { return image.Pt(8, 8) }
func (f *flatCamera) UpdateForeground(image.Image) error { return nil }
func (f *flatCamera) Frame() *image.RGBA { return f.frame }
func (f *flatCamera) Foreground() *image.Gray { return f.fg }
func (f *flatCamera) Difference() *image.Gray { return f.diff }

func (f *flatCamera) paint(c color.RGBA, pts ...image.Point) {
	if f.frame == nil {
		f.frame = image.NewRGBA(image.Rect(0, 0, 8, 8))
	}
	if len(pts) == 0 {
		for i := 0; i < len(f.frame.Pix); i += 4 {
			f.frame.Pix[i], f.frame.Pix[i+1], f.frame.Pix[i+2], f.frame.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	for _, p := range pts {
		f.frame.SetRGBA(p.X, p.Y, c)
	}
}

func (f *flatCamera) mask(on ...image.Point) {
	f.fg = image.NewGray(image.Rect(0, 0, 8, 8))
	for _, p := range on {
		f.fg.SetGray(p.X, p.Y, color.Gray{Y: 255})
	}
	f.diff = f.fg
}

// occlusionScene places two single voxels one behind the other as seen from
// the side camera
func occlusionScene(t *testing.T) (*voxel.Grid, *voxel.Carver, *flatCamera, *flatCamera) {
	t.Helper()

	top := &flatCamera{
		id:  0,
		loc: r3.Vector{Z: 1000},
		project: func(p r3.Vector) image.Point {
			return image.Pt(int(p.X+64)/16, int(p.Y+64)/16)
		},
	}

	side := &flatCamera{
		id:  1,
		loc: r3.Vector{Y: -1000},
		project: func(p r3.Vector) image.Point {
			return image.Pt(int(p.X+64)/16, int(p.Z)/16)
		},
	}

	g, err := voxel.NewGrid([]camera.Camera{top, side}, voxel.GridConfig{Height: 64, Step: 16})
	require.NoError(t, err)

	top.mask(image.Pt(3, 1), image.Pt(3, 5))
	side.mask(image.Pt(3, 0))

	c := voxel.NewCarver(g)
	require.NoError(t, c.Update())
	require.Equal(t, 2, c.Len())

	return g, c, top, side
}

// labelsByY gives label 0 to the voxel nearest the side camera
func labelsByY(g *voxel.Grid, c *voxel.Carver) []int {

	labels := make([]int, c.Len())

	for i, idx := range c.Visible() {
		if g.Voxel(idx).Position.Y > 0 {
			labels[i] = 1
		}
	}

	return labels
}

func TestSamplerSkipsOccludedVoxels(t *testing.T) {

	g, c, top, side := occlusionScene(t)

	top.paint(color.RGBA{B: 255, A: 255})
	side.paint(color.RGBA{R: 255, A: 255})

	s := NewSampler(g, c, rgbPalette(), DefaultSampleRadius)
	labels := labelsByY(g, c)

	hists, err := s.Build(1, labels, 2)
	require.NoError(t, err)
	require.Len(t, hists, 2)

	assert.Equal(t, []float64{1, 0, 0}, hists[0].Bins)
	assert.True(t, hists[1].Empty(), "voxel behind another label is not sampled")

	// the same label in front does not occlude
	hists, err = s.Build(1, []int{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, hists[0].Bins)

	// from above both voxels are unobstructed
	hists, err = s.Build(0, labels, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, hists[0].Bins)
	assert.Equal(t, []float64{0, 0, 1}, hists[1].Bins)
}

func TestSamplerNeighbourhood(t *testing.T) {

	g, c, top, _ := occlusionScene(t)

	// voxel at pixel (3,1), neighbourhood rows -1..3 clipped to 0..3
	top.paint(color.RGBA{B: 255, A: 255})
	top.paint(color.RGBA{G: 255, A: 255}, image.Pt(1, 0), image.Pt(5, 3), image.Pt(3, 1))
	top.paint(color.RGBA{G: 255, A: 255}, image.Pt(6, 1))

	s := NewSampler(g, c, rgbPalette(), 2)
	labels := labelsByY(g, c)

	hists, err := s.Build(0, labels, 2)
	require.NoError(t, err)

	// 5x4 in image pixels, 3 green, 17 blue
	assert.InDeltaSlice(t, []float64{0, 3.0 / 17, 1}, hists[0].Bins, 1e-12)

	s = NewSampler(g, c, rgbPalette(), 0)
	hists, err = s.Build(0, labels, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, hists[0].Bins)
}

func TestSamplerErrors(t *testing.T) {

	g, c, _, _ := occlusionScene(t)

	s := NewSampler(g, c, rgbPalette(), -1)

	_, err := s.Build(0, []int{0}, 2)
	assert.Error(t, err)

	_, err = s.Build(0, []int{0, 1}, 2)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestForegroundSamples(t *testing.T) {

	cam := &flatCamera{}
	cam.paint(color.RGBA{R: 9, A: 255})
	cam.paint(color.RGBA{G: 9, A: 255}, image.Pt(2, 2))
	cam.mask(image.Pt(2, 2), image.Pt(0, 0))

	got := ForegroundSamples(cam.frame, cam.fg)

	assert.Equal(t, []color.RGBA{{R: 9, A: 255}, {G: 9, A: 255}}, got)
	assert.Nil(t, ForegroundSamples(nil, cam.fg))
}
