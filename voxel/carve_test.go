package voxel

import (
	"image"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tracking "github.com/didibib/computer-vision-tracking"
)

// checkVisibility asserts the visible list holds exactly the voxels every
// camera sees and that VisibleIndex points back into it
func checkVisibility(t *testing.T, g *Grid, c *Carver) {
	t.Helper()

	want := map[Index]bool{}

	for i, v := range g.Voxels() {
		if v.Flags == g.AllCameras() {
			want[Index(i)] = true
		} else {
			require.Equal(t, int32(-1), v.VisibleIndex, "voxel %d", i)
			require.False(t, c.Contains(Index(i)))
		}
	}

	require.Len(t, c.Visible(), len(want))
	require.Equal(t, len(want), c.Len())

	for pos, idx := range c.Visible() {
		require.True(t, want[idx], "voxel %d should not be visible", idx)
		require.Equal(t, int32(pos), g.Voxel(idx).VisibleIndex)
		require.True(t, c.Contains(idx))
	}
}

// expectedFlags recomputes the camera bits of every voxel from the masks
func expectedFlags(g *Grid, cams ...*orthoCamera) []CameraMask {

	out := make([]CameraMask, g.Len())

	for i, v := range g.Voxels() {
		for ci, cam := range cams {
			if v.Pixels[ci] >= 0 && cam.has(g.PixelPoint(v.Pixels[ci])) {
				out[i] = out[i].With(ci, true)
			}
		}
	}

	return out
}

func randomMask(r *rand.Rand, size image.Point, density float64) []image.Point {

	var on []image.Point

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if r.Float64() < density {
				on = append(on, image.Pt(x, y))
			}
		}
	}

	return on
}

func TestCarverFirstFrame(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig, WithPool(tracking.NewPool(4)))
	require.NoError(t, err)

	c := NewCarver(g)

	// a 2x2 column seen from above, two voxels high from the side
	top.setMask([]image.Point{{3, 3}, {4, 3}, {3, 4}, {4, 4}})
	side.setMask([]image.Point{{3, 0}, {3, 1}, {4, 0}, {4, 1}})

	require.NoError(t, c.Update())
	checkVisibility(t, g, c)
	assert.Equal(t, 8, c.Len())

	for _, idx := range c.Visible() {
		p := g.Voxel(idx).Position
		assert.Contains(t, []float64{-16, 0}, p.X)
		assert.Contains(t, []float64{-16, 0}, p.Y)
		assert.Contains(t, []float64{0, 16}, p.Z)
	}
}

func TestCarverIncrementalMatchesRebuild(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig, WithPool(tracking.NewPool(4)))
	require.NoError(t, err)

	c := NewCarver(g)
	r := rand.New(rand.NewSource(7))

	for frame := 0; frame < 25; frame++ {

		top.setMask(randomMask(r, top.size, 0.5))
		side.setMask(randomMask(r, side.size, 0.6))

		require.NoError(t, c.Update())
		checkVisibility(t, g, c)

		flags := expectedFlags(g, top, side)
		for i, v := range g.Voxels() {
			require.Equal(t, flags[i], v.Flags, "frame %d voxel %d", frame, i)
		}
	}

	incremental := append([]Index(nil), c.Visible()...)

	require.NoError(t, c.Rebuild())
	checkVisibility(t, g, c)

	rebuilt := append([]Index(nil), c.Visible()...)
	assert.True(t, sort.SliceIsSorted(rebuilt, func(i, j int) bool { return rebuilt[i] < rebuilt[j] }))

	sort.Slice(incremental, func(i, j int) bool { return incremental[i] < incremental[j] })
	assert.Equal(t, incremental, rebuilt)
}

func TestCarverUnchangedFrameKeepsOrder(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig)
	require.NoError(t, err)

	c := NewCarver(g)
	r := rand.New(rand.NewSource(3))

	topMask := randomMask(r, top.size, 0.7)
	sideMask := randomMask(r, side.size, 0.7)

	top.setMask(topMask)
	side.setMask(sideMask)
	require.NoError(t, c.Update())

	before := append([]Index(nil), c.Visible()...)

	top.setMask(topMask)
	side.setMask(sideMask)
	require.NoError(t, c.Update())

	assert.Equal(t, before, c.Visible())
}

func TestCarverSwapRemove(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig, WithPool(tracking.NewPool(1)))
	require.NoError(t, err)

	c := NewCarver(g)

	top.setMask([]image.Point{{0, 0}, {1, 0}, {2, 0}})
	side.setMask([]image.Point{{0, 0}, {1, 0}, {2, 0}})
	require.NoError(t, c.Update())
	require.Equal(t, 3, c.Len())

	first := c.Visible()[0]
	last := c.Visible()[2]

	g.Voxel(first).Label = 1
	g.Voxel(first).Person = 0

	// drop the first voxel, the last one moves into its slot
	top.setMask([]image.Point{{1, 0}, {2, 0}})
	require.NoError(t, c.Update())

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, last, c.Visible()[0])
	assert.Equal(t, int32(0), g.Voxel(last).VisibleIndex)
	assert.Equal(t, int32(-1), g.Voxel(first).VisibleIndex)
	assert.Equal(t, int32(-1), g.Voxel(first).Label)
	assert.Equal(t, int32(-1), g.Voxel(first).Person)
	checkVisibility(t, g, c)
}

func TestCarverErrors(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig)
	require.NoError(t, err)

	c := NewCarver(g)

	assert.ErrorIs(t, c.Update(), ErrNoMask)
	assert.ErrorIs(t, c.Rebuild(), ErrNoMask)

	top.setMask(nil)
	side.setMask(nil)
	side.fg = image.NewGray(image.Rect(0, 0, 4, 4))

	assert.Error(t, c.Update())
}

func TestCarverReset(t *testing.T) {

	top, side := testCameras()

	g, err := NewGrid(asCameras(top, side), testConfig)
	require.NoError(t, err)

	c := NewCarver(g)

	top.setMask([]image.Point{{0, 0}})
	side.setMask([]image.Point{{0, 0}})
	require.NoError(t, c.Update())
	require.Equal(t, 1, c.Len())

	c.Reset()
	assert.Zero(t, c.Len())
	checkVisibility(t, g, c)

	require.NoError(t, c.Rebuild())
	assert.Equal(t, 1, c.Len())
}
