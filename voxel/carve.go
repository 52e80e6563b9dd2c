package voxel

import (
	"fmt"
	"image"
	"sync"

	"github.com/didibib/computer-vision-tracking/camera"
)

// Carver keeps the list of voxels seen as foreground by every camera up to
// date, visiting only the pixels whose foreground state changed
type Carver struct {
	grid *Grid

	// mu guards visible and the VisibleIndex of every voxel
	mu      sync.Mutex
	visible []Index
}

// NewCarver creates a carver with an empty visible list
func NewCarver(g *Grid) *Carver {
	return &Carver{
		grid: g,
	}
}

// Update applies the binary difference of every camera to the voxel flags.
// Cameras are processed in order, the rows of one camera in parallel
func (c *Carver) Update() error {

	for ci, cam := range c.grid.cams {

		diff, fg, err := c.masks(cam)

		if err != nil {
			return err
		}

		c.grid.pool.ParallelFor(c.grid.size.Y, func(start, end int) {
			c.carveRows(ci, diff, fg, start, end)
		})
	}

	return nil
}

// masks returns the difference and foreground of a camera after checking
// they match the grid
func (c *Carver) masks(cam camera.Camera) (*image.Gray, *image.Gray, error) {

	diff, fg := cam.Difference(), cam.Foreground()

	if diff == nil || fg == nil {
		return nil, nil, fmt.Errorf("camera %d: %w", cam.ID(), ErrNoMask)
	}

	if diff.Rect.Size() != c.grid.size || fg.Rect.Size() != c.grid.size {
		return nil, nil, fmt.Errorf("camera %d: %w", cam.ID(), camera.ErrSizeMismatch)
	}

	return diff, fg, nil
}

// carveRows toggles the camera bit of every voxel behind a changed pixel in
// rows [start, end).  A voxel projects to a single pixel per camera, so flag
// writes never overlap between workers
func (c *Carver) carveRows(ci int, diff, fg *image.Gray, start, end int) {

	w := c.grid.size.X
	lookup := c.grid.lookup[ci]

	for y := start; y < end; y++ {

		drow := diff.Pix[diff.PixOffset(diff.Rect.Min.X, diff.Rect.Min.Y+y):]
		frow := fg.Pix[fg.PixOffset(fg.Rect.Min.X, fg.Rect.Min.Y+y):]

		for x := 0; x < w; x++ {

			if drow[x] != 255 {
				continue
			}

			on := frow[x] == 255

			for _, idx := range lookup[int32(y*w+x)] {

				v := &c.grid.voxels[idx]
				was := v.Flags == c.grid.all
				v.Flags = v.Flags.With(ci, on)
				now := v.Flags == c.grid.all

				if was != now {
					c.mu.Lock()
					c.toggle(idx, now)
					c.mu.Unlock()
				}
			}
		}
	}
}

// toggle adds a voxel to or swap-removes it from the visible list, the
// caller holds mu
func (c *Carver) toggle(idx Index, visible bool) {

	v := &c.grid.voxels[idx]

	if visible {
		v.VisibleIndex = int32(len(c.visible))
		c.visible = append(c.visible, idx)
		return
	}

	pos := v.VisibleIndex
	last := c.visible[len(c.visible)-1]

	c.visible[pos] = last
	c.grid.voxels[last].VisibleIndex = pos
	c.visible = c.visible[:len(c.visible)-1]

	v.VisibleIndex = -1
	v.Label = -1
	v.Person = -1
}

// Visible returns the indices of the fully visible voxels.  The slice is
// owned by the carver and valid until the next Update, Reset or Rebuild
func (c *Carver) Visible() []Index {
	return c.visible
}

// Len returns the number of fully visible voxels
func (c *Carver) Len() int {
	return len(c.visible)
}

// Contains reports whether voxel i is fully visible
func (c *Carver) Contains(i Index) bool {
	return c.grid.voxels[i].VisibleIndex >= 0
}

// Reset clears every flag and empties the visible list.  The cameras keep
// their last masks, so call Rebuild to resynchronise before the next Update
func (c *Carver) Reset() {

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

func (c *Carver) reset() {

	c.grid.pool.ParallelFor(len(c.grid.voxels), func(start, end int) {
		for i := start; i < end; i++ {
			v := &c.grid.voxels[i]
			v.Flags = 0
			v.VisibleIndex = -1
			v.Label = -1
			v.Person = -1
		}
	})

	c.visible = c.visible[:0]
}

// Rebuild recomputes the flags of every voxel from the current foreground
// masks and rebuilds the visible list in index order
func (c *Carver) Rebuild() error {

	fgs := make([]*image.Gray, len(c.grid.cams))

	for ci, cam := range c.grid.cams {

		_, fg, err := c.masks(cam)

		if err != nil {
			return err
		}

		fgs[ci] = fg
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()

	w := c.grid.size.X

	c.grid.pool.ParallelFor(len(c.grid.voxels), func(start, end int) {
		for i := start; i < end; i++ {

			v := &c.grid.voxels[i]

			for ci, fg := range fgs {

				pix := v.Pixels[ci]
				if pix < 0 {
					continue
				}

				x, y := int(pix)%w, int(pix)/w

				if fg.Pix[fg.PixOffset(fg.Rect.Min.X+x, fg.Rect.Min.Y+y)] == 255 {
					v.Flags = v.Flags.With(ci, true)
				}
			}
		}
	})

	for i := range c.grid.voxels {
		if c.grid.voxels[i].Flags == c.grid.all {
			c.toggle(Index(i), true)
		}
	}

	return nil
}
