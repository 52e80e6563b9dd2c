package voxel

import (
	"fmt"
	"image"
	"io"
	"sort"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/golang/geo/r3"
	"github.com/sirupsen/logrus"

	tracking "github.com/didibib/computer-vision-tracking"
	"github.com/didibib/computer-vision-tracking/camera"
)

// GridConfig sets the extent and resolution of the grid.  The grid covers
// [-Height, Height) around the offset on both floor axes and [0, Height) in
// Z, sampled every Step world units
type GridConfig struct {
	Height  int `yaml:"height"`
	Step    int `yaml:"step"`
	OffsetX int `yaml:"offset_x"`
	OffsetY int `yaml:"offset_y"`
}

// Lookup maps a linear pixel index of one camera to the voxels projecting
// onto it, nearest to the camera first
type Lookup map[int32][]Index

// Option configures a Grid
type Option func(*Grid)

// WithPool sets the worker pool used to build the grid and to carve
func WithPool(p *tracking.Pool) Option {
	return func(g *Grid) {
		g.pool = p
	}
}

// WithProgress writes a progress bar of the construction to w
func WithProgress(w io.Writer) Option {
	return func(g *Grid) {
		g.progress = w
	}
}

// Grid is the voxel arena and the per camera lookup tables.  It is read-only
// after construction except for the per voxel state written by the Carver
// and the labelling stage
type Grid struct {
	cams     []camera.Camera
	cfg      GridConfig
	pool     *tracking.Pool
	progress io.Writer

	voxels []Voxel
	lookup []Lookup
	all    CameraMask

	nx, ny, nz int
	size       image.Point
	min, max   r3.Vector
}

// NewGrid builds the grid and projects every voxel into every camera
func NewGrid(cams []camera.Camera, cfg GridConfig, opts ...Option) (*Grid, error) {

	all, err := AllCameras(len(cams))

	if err != nil {
		return nil, err
	}

	size := cams[0].Size()

	for _, c := range cams[1:] {
		if c.Size() != size {
			return nil, fmt.Errorf("%w: camera %d is %v, camera 0 is %v",
				ErrPlaneMismatch, c.ID(), c.Size(), size)
		}
	}

	if cfg.Step <= 0 || cfg.Height < cfg.Step {
		return nil, fmt.Errorf("%w: height %d step %d", ErrInvalidGrid, cfg.Height, cfg.Step)
	}

	g := &Grid{
		cams: cams,
		cfg:  cfg,
		all:  all,
		size: size,
		min: r3.Vector{
			X: float64(cfg.OffsetX - cfg.Height),
			Y: float64(cfg.OffsetY - cfg.Height),
		},
		max: r3.Vector{
			X: float64(cfg.OffsetX + cfg.Height),
			Y: float64(cfg.OffsetY + cfg.Height),
			Z: float64(cfg.Height),
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.pool == nil {
		g.pool = tracking.NewPool(0)
	}

	g.nx = (2*cfg.Height + cfg.Step - 1) / cfg.Step
	g.ny = g.nx
	g.nz = (cfg.Height + cfg.Step - 1) / cfg.Step

	g.build()

	logrus.WithFields(logrus.Fields{
		"cameras": len(cams),
		"voxels":  len(g.voxels),
		"dims":    fmt.Sprintf("%dx%dx%d", g.nx, g.ny, g.nz),
		"step":    cfg.Step,
	}).Debug("voxel grid built")

	return g, nil
}

// build fills the arena and the lookup tables, z slices are spread over the
// pool and every camera table has its own lock
func (g *Grid) build() {

	ncams := len(g.cams)
	plane := g.nx * g.ny
	w := g.size.X

	g.voxels = make([]Voxel, plane*g.nz)
	g.lookup = make([]Lookup, ncams)

	for c := range g.lookup {
		g.lookup[c] = make(Lookup)
	}

	locks := make([]sync.Mutex, ncams)
	locations := make([]r3.Vector, ncams)

	for c, cam := range g.cams {
		locations[c] = cam.Location()
	}

	var bar *pb.ProgressBar

	if g.progress != nil {
		bar = pb.New(g.nz).SetWriter(g.progress).Start()
		defer bar.Finish()
	}

	g.pool.ParallelFor(g.nz, func(start, end int) {

		local := make([]Lookup, ncams)

		for c := range local {
			local[c] = make(Lookup)
		}

		for zi := start; zi < end; zi++ {
			for yi := 0; yi < g.ny; yi++ {
				for xi := 0; xi < g.nx; xi++ {

					idx := Index(zi*plane + yi*g.nx + xi)
					v := &g.voxels[idx]

					v.Position = r3.Vector{
						X: g.min.X + float64(xi*g.cfg.Step),
						Y: g.min.Y + float64(yi*g.cfg.Step),
						Z: float64(zi * g.cfg.Step),
					}
					v.Pixels = make([]int32, ncams)
					v.Distances = make([]float32, ncams)
					v.VisibleIndex = -1
					v.Label = -1
					v.Person = -1

					for c, cam := range g.cams {

						v.Distances[c] = float32(v.Position.Distance(locations[c]))

						p := cam.Project(v.Position)

						if p.X < 0 || p.Y < 0 || p.X >= g.size.X || p.Y >= g.size.Y {
							v.Pixels[c] = -1
							continue
						}

						pix := int32(p.Y*w + p.X)
						v.Pixels[c] = pix
						local[c][pix] = append(local[c][pix], idx)
					}
				}
			}

			if bar != nil {
				bar.Increment()
			}
		}

		for c := range local {
			locks[c].Lock()
			for pix, bucket := range local[c] {
				g.lookup[c][pix] = append(g.lookup[c][pix], bucket...)
			}
			locks[c].Unlock()
		}
	})

	g.pool.ParallelFor(ncams, func(start, end int) {
		for c := start; c < end; c++ {
			g.sortLookup(c)
		}
	})
}

// sortLookup orders every bucket of camera c by distance to the camera,
// ties broken by index so the order does not depend on scheduling
func (g *Grid) sortLookup(c int) {

	for _, bucket := range g.lookup[c] {
		sort.Slice(bucket, func(i, j int) bool {
			di := g.voxels[bucket[i]].Distances[c]
			dj := g.voxels[bucket[j]].Distances[c]

			if di != dj {
				return di < dj
			}

			return bucket[i] < bucket[j]
		})
	}
}

// Len returns the number of voxels in the grid
func (g *Grid) Len() int {
	return len(g.voxels)
}

// Voxel returns the voxel at index i
func (g *Grid) Voxel(i Index) *Voxel {
	return &g.voxels[i]
}

// Voxels returns the arena
func (g *Grid) Voxels() []Voxel {
	return g.voxels
}

// Cameras returns the cameras the grid was built for
func (g *Grid) Cameras() []camera.Camera {
	return g.cams
}

// Camera returns camera c
func (g *Grid) Camera(c int) camera.Camera {
	return g.cams[c]
}

// AllCameras returns the mask a fully visible voxel carries
func (g *Grid) AllCameras() CameraMask {
	return g.all
}

// Lookup returns the lookup table of camera c
func (g *Grid) Lookup(c int) Lookup {
	return g.lookup[c]
}

// Bucket returns the voxels projecting onto pixel p of camera c, nearest first
func (g *Grid) Bucket(c int, p image.Point) []Index {

	if p.X < 0 || p.Y < 0 || p.X >= g.size.X || p.Y >= g.size.Y {
		return nil
	}

	return g.lookup[c][int32(p.Y*g.size.X+p.X)]
}

// PixelPoint converts a linear pixel index to image coordinates
func (g *Grid) PixelPoint(pix int32) image.Point {
	return image.Pt(int(pix)%g.size.X, int(pix)/g.size.X)
}

// Size returns the image size shared by all cameras
func (g *Grid) Size() image.Point {
	return g.size
}

// Step returns the voxel edge length
func (g *Grid) Step() int {
	return g.cfg.Step
}

// Dims returns the number of voxels along x, y and z
func (g *Grid) Dims() (nx, ny, nz int) {
	return g.nx, g.ny, g.nz
}

// Pool returns the worker pool of the grid
func (g *Grid) Pool() *tracking.Pool {
	return g.pool
}

// Corners returns the corners of the bounding box, the floor first
func (g *Grid) Corners() [8]r3.Vector {

	lo, hi := g.min, g.max

	return [8]r3.Vector{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
	}
}
