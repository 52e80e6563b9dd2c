package pipeline

import (
	"image"
	"image/color"
	"time"

	"github.com/golang/geo/r3"

	"github.com/didibib/computer-vision-tracking/tracker"
)

// VoxelRecord is a visible voxel as handed to renderers
type VoxelRecord struct {
	X      float32  `json:"x"`
	Y      float32  `json:"y"`
	Z      float32  `json:"z"`
	Person int32    `json:"person"`
	Color  [3]uint8 `json:"color"`
}

// PersonRecord is the ground plane position of one person
type PersonRecord struct {
	ID     int             `json:"id"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Voxels int             `json:"voxels"`
	Color  [3]uint8        `json:"color"`
	Trail  []tracker.Point `json:"trail,omitempty"`
}

// Snapshot is the immutable result of one update cycle
type Snapshot struct {
	RunID   string         `json:"run_id"`
	Frame   int            `json:"frame"`
	Time    time.Time      `json:"time"`
	Voxels  []VoxelRecord  `json:"voxels"`
	Corners [8]r3.Vector   `json:"corners"`
	Persons []PersonRecord `json:"persons"`
	// Permutation maps person id to cluster label
	Permutation []int `json:"permutation"`
	// Degenerate is set when too few voxels were visible to cluster and the
	// previous labels were kept
	Degenerate bool                     `json:"degenerate"`
	Unanimous  bool                     `json:"unanimous"`
	Distance   float64                  `json:"distance"`
	Durations  map[string]time.Duration `json:"durations"`
	// Frames holds a copy of every camera frame when requested
	Frames []*image.RGBA `json:"-"`
	// Masks holds the matching foreground masks
	Masks []*image.Gray `json:"-"`
}

// Person returns the record of person id
func (s *Snapshot) Person(id int) (PersonRecord, bool) {

	for _, p := range s.Persons {
		if p.ID == id {
			return p, true
		}
	}

	return PersonRecord{}, false
}

// Position of a voxel record in world units
func (r VoxelRecord) Position() r3.Vector {
	return r3.Vector{X: float64(r.X), Y: float64(r.Y), Z: float64(r.Z)}
}

// RGBA returns the colour of the record
func (r VoxelRecord) RGBA() color.RGBA {
	return color.RGBA{R: r.Color[0], G: r.Color[1], B: r.Color[2], A: 255}
}

func rgb(c color.RGBA) [3]uint8 {
	return [3]uint8{c.R, c.G, c.B}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {

	if src == nil {
		return nil
	}

	dst := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)

	return dst
}

func cloneGray(src *image.Gray) *image.Gray {

	if src == nil {
		return nil
	}

	dst := &image.Gray{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)

	return dst
}
