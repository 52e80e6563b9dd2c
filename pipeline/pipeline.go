// Package pipeline runs the per frame update cycle: carve the visible voxels,
// cluster them on the ground plane, match the clusters to persons through
// their colour models and publish the labelled result.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/didibib/computer-vision-tracking/cluster"
	"github.com/didibib/computer-vision-tracking/colormodel"
	"github.com/didibib/computer-vision-tracking/tracker"
	"github.com/didibib/computer-vision-tracking/voxel"
)

var (
	// ErrFrameOrder is returned when a frame older than the last processed
	// one is given without a Seek
	ErrFrameOrder = errors.New("frame out of order")
	// ErrFrameNotAdvanced is returned when the last processed frame is given
	// again
	ErrFrameNotAdvanced = errors.New("frame not advanced")
	// ErrCameraCount is returned when the number of frames differs from the
	// number of cameras
	ErrCameraCount = errors.New("frame count does not match camera count")
)

// State of the update cycle
type State int32

const (
	Idle State = iota
	Carving
	Clustering
	Matching
	Coloring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Carving:
		return "carving"
	case Clustering:
		return "clustering"
	case Matching:
		return "matching"
	case Coloring:
		return "coloring"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Renderer receives the snapshot of every completed cycle.  Snapshots are
// never modified after publishing
type Renderer interface {
	Publish(s *Snapshot) error
}

// Config of the update cycle
type Config struct {
	// Subjects is the number of persons in the scene
	Subjects int
	// Cluster options for the ground plane clustering and the palette
	Cluster cluster.Options
	// Strategy used to match histograms
	Strategy colormodel.Strategy
	// SampleRadius is the neighbourhood sampled around a voxel projection
	SampleRadius int
	// PaletteSize is the number of colours of a palette built at bootstrap
	PaletteSize int
	// PaletteCamera is the camera whose foreground the palette is built from
	PaletteCamera int
	// ModelFrame is the first frame colour models may be created at
	ModelFrame int
	// TrailLength bounds the ground plane history of every person
	TrailLength int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRenderers adds renderers published to after every cycle
func WithRenderers(r ...Renderer) Option {
	return func(p *Pipeline) {
		p.renderers = append(p.renderers, r...)
	}
}

// WithPalette uses a palette instead of building one at bootstrap
func WithPalette(pal *colormodel.Palette) Option {
	return func(p *Pipeline) {
		p.palette = pal
	}
}

// WithModels uses stored colour models, one set per camera in camera order,
// instead of creating them at bootstrap
func WithModels(sets []*colormodel.ModelSet) Option {
	return func(p *Pipeline) {
		p.models = sets
	}
}

// WithFrames copies the camera frames into every snapshot for renderers
// drawing on them
func WithFrames() Option {
	return func(p *Pipeline) {
		p.copyFrames = true
	}
}

// Pipeline owns the carving state of a grid and labels its visible voxels
// once per frame.  Cycles are strictly sequential
type Pipeline struct {
	cfg     Config
	grid    *voxel.Grid
	carver  *voxel.Carver
	matcher *colormodel.Matcher
	sampler *colormodel.Sampler
	trail   *tracker.Trail

	renderers  []Renderer
	palette    *colormodel.Palette
	models     []*colormodel.ModelSet
	copyFrames bool

	runID string
	state atomic.Int32

	// mu serialises cycles, everything below is guarded by it
	mu      sync.Mutex
	frame   int
	started bool
	resync  bool
	perm    colormodel.Permutation
	last    *Snapshot
}

// New creates the pipeline of a grid
func New(g *voxel.Grid, cfg Config, opts ...Option) (*Pipeline, error) {

	if cfg.Subjects < 1 {
		return nil, fmt.Errorf("invalid subject count %d", cfg.Subjects)
	}

	if cfg.PaletteSize < 1 {
		cfg.PaletteSize = colormodel.DefaultPaletteSize
	}

	if cfg.TrailLength < 1 {
		cfg.TrailLength = 100
	}

	if cfg.PaletteCamera < 0 || cfg.PaletteCamera >= len(g.Cameras()) {
		return nil, fmt.Errorf("palette camera %d out of range", cfg.PaletteCamera)
	}

	matcher, err := colormodel.NewMatcher(cfg.Subjects, cfg.Strategy)

	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		grid:    g,
		carver:  voxel.NewCarver(g),
		matcher: matcher,
		trail:   tracker.NewTrail(cfg.TrailLength),
		runID:   uuid.NewString(),
		perm:    colormodel.Identity(cfg.Subjects),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.models != nil {
		if err := p.checkModels(p.models); err != nil {
			return nil, err
		}
	}

	if p.palette != nil {
		p.sampler = colormodel.NewSampler(g, p.carver, p.palette, cfg.SampleRadius)
	}

	logrus.WithFields(logrus.Fields{
		"run":      p.runID,
		"subjects": cfg.Subjects,
		"strategy": cfg.Strategy,
		"models":   p.models != nil,
		"palette":  p.palette != nil,
	}).Info("pipeline created")

	return p, nil
}

func (p *Pipeline) checkModels(sets []*colormodel.ModelSet) error {

	if len(sets) != len(p.grid.Cameras()) {
		return fmt.Errorf("%w: %d model sets for %d cameras",
			colormodel.ErrModelCount, len(sets), len(p.grid.Cameras()))
	}

	for c, m := range sets {
		if m == nil || m.Len() != p.cfg.Subjects {
			return fmt.Errorf("%w: camera %d models do not hold %d persons",
				colormodel.ErrModelCount, c, p.cfg.Subjects)
		}
	}

	return nil
}

// State returns the stage the current cycle is in
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// RunID identifies this pipeline on published snapshots
func (p *Pipeline) RunID() string {
	return p.runID
}

// Grid returns the grid the pipeline carves
func (p *Pipeline) Grid() *voxel.Grid {
	return p.grid
}

// Carver returns the visibility state of the grid
func (p *Pipeline) Carver() *voxel.Carver {
	return p.carver
}

// Trail returns the ground plane history of the persons
func (p *Pipeline) Trail() *tracker.Trail {
	return p.trail
}

// Palette returns the palette in use, nil before bootstrap
func (p *Pipeline) Palette() *colormodel.Palette {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.palette
}

// Models returns the colour model set of every camera, nil before bootstrap
func (p *Pipeline) Models() []*colormodel.ModelSet {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.models
}

// Permutation returns the person to label permutation of the last cycle
func (p *Pipeline) Permutation() colormodel.Permutation {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.perm.Clone()
}

// Last returns the snapshot of the last completed cycle
func (p *Pipeline) Last() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}
