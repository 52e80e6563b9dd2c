package colormodel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/didibib/computer-vision-tracking/voxel"
)

// DefaultSampleRadius is the half size of the neighbourhood sampled around
// the projection of a voxel
const DefaultSampleRadius = 2

// ErrNoFrame is returned when a camera has no colour frame to sample
var ErrNoFrame = errors.New("camera has no frame")

// Sampler builds per label colour histograms of the visible voxels as seen
// from one camera, leaving out voxels hidden behind a voxel of another label
type Sampler struct {
	grid    *voxel.Grid
	carver  *voxel.Carver
	palette *Palette
	radius  int
}

// NewSampler creates a sampler, a radius below zero uses DefaultSampleRadius
func NewSampler(g *voxel.Grid, c *voxel.Carver, p *Palette, radius int) *Sampler {

	if radius < 0 {
		radius = DefaultSampleRadius
	}

	return &Sampler{
		grid:    g,
		carver:  c,
		palette: p,
		radius:  radius,
	}
}

// Palette returns the palette histograms are binned against
func (s *Sampler) Palette() *Palette {
	return s.palette
}

// Build returns one histogram per label for camera cam.  labels holds the
// cluster label of every voxel of the visible list, in the same order
func (s *Sampler) Build(cam int, labels []int, k int) ([]*Histogram, error) {

	visible := s.carver.Visible()

	if len(labels) != len(visible) {
		return nil, fmt.Errorf("%d labels for %d visible voxels", len(labels), len(visible))
	}

	frame := s.grid.Camera(cam).Frame()

	if frame == nil {
		return nil, fmt.Errorf("camera %d: %w", cam, ErrNoFrame)
	}

	if frame.Rect.Size() != s.grid.Size() {
		return nil, fmt.Errorf("camera %d: frame is %v, grid is %v", cam,
			frame.Rect.Size(), s.grid.Size())
	}

	bins := s.palette.Len()
	counts := make([][]float64, k)

	for l := range counts {
		counts[l] = make([]float64, bins)
	}

	var mu sync.Mutex

	s.grid.Pool().ParallelFor(len(visible), func(start, end int) {

		local := make([][]float64, k)

		for l := range local {
			local[l] = make([]float64, bins)
		}

		for i := start; i < end; i++ {

			label := labels[i]

			if label < 0 || label >= k {
				continue
			}

			v := s.grid.Voxel(visible[i])

			if v.Pixels[cam] < 0 {
				continue
			}

			centre := s.grid.PixelPoint(v.Pixels[cam])

			if s.occluded(cam, v, centre, label, labels) {
				continue
			}

			s.sample(frame, centre, local[label])
		}

		mu.Lock()
		for l := range local {
			for b, c := range local[l] {
				counts[l][b] += c
			}
		}
		mu.Unlock()
	})

	out := make([]*Histogram, k)

	for l := range out {
		out[l] = &Histogram{ID: l, Bins: counts[l]}
		out[l].Normalize()
	}

	return out, nil
}

// occluded reports whether a fully visible voxel of another label lies in
// front of v anywhere in the neighbourhood of its projection
func (s *Sampler) occluded(cam int, v *voxel.Voxel, centre image.Point, label int, labels []int) bool {

	all := s.grid.AllCameras()

	for dy := -s.radius; dy <= s.radius; dy++ {
		for dx := -s.radius; dx <= s.radius; dx++ {

			bucket := s.grid.Bucket(cam, centre.Add(image.Pt(dx, dy)))

			// nearest fully visible voxel on this pixel
			j := 0
			for j < len(bucket) && s.grid.Voxel(bucket[j]).Flags != all {
				j++
			}

			if j == len(bucket) {
				continue
			}

			front := s.grid.Voxel(bucket[j])

			if front.Distances[cam] < v.Distances[cam] && labels[front.VisibleIndex] != label {
				return true
			}
		}
	}

	return false
}

// sample counts the frame pixels of the neighbourhood inside the image
func (s *Sampler) sample(frame *image.RGBA, centre image.Point, bins []float64) {

	r := image.Rect(centre.X-s.radius, centre.Y-s.radius,
		centre.X+s.radius+1, centre.Y+s.radius+1).Intersect(frame.Rect)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			bins[s.palette.Nearest(frame.RGBAAt(x, y))]++
		}
	}
}

// ForegroundSamples returns the frame colours under the foreground of mask
func ForegroundSamples(frame *image.RGBA, mask *image.Gray) []color.RGBA {

	if frame == nil || mask == nil {
		return nil
	}

	r := frame.Rect.Intersect(mask.Rect)

	var out []color.RGBA

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask.GrayAt(x, y).Y == 255 {
				out = append(out, frame.RGBAAt(x, y))
			}
		}
	}

	return out
}
