package pipeline

import (
	"errors"
	"image"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didibib/computer-vision-tracking/cluster"
	"github.com/didibib/computer-vision-tracking/colormodel"
	"github.com/didibib/computer-vision-tracking/voxel"
)

type recorder struct {
	mu    sync.Mutex
	snaps []*Snapshot
	err   error
}

func (r *recorder) Publish(s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, s)
	return r.err
}

func (r *recorder) Name() string {
	return "recorder"
}

func testConfig() Config {
	return Config{
		Subjects:     2,
		Cluster:      cluster.DefaultOptions(),
		Strategy:     colormodel.Exhaustive,
		SampleRadius: 2,
		PaletteSize:  4,
		TrailLength:  10,
	}
}

// nearest returns the index of the subject closest to (x, y) on the floor
func nearest(subs []cylinder, x, y float64) (int, float64) {

	best, bestD := -1, math.Inf(1)

	for i, s := range subs {
		if d := math.Hypot(s.centre.X-x, s.centre.Y-y); d < bestD {
			best, bestD = i, d
		}
	}

	return best, bestD
}

func TestPipelineSubjects(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)
	rec := &recorder{}

	p, err := New(g, testConfig(), WithRenderers(rec))
	require.NoError(t, err)
	assert.Equal(t, Idle, p.State())

	subs := subjects()

	snap, err := p.Process(0, renderAll(views, subs))
	require.NoError(t, err)

	require.Len(t, rec.snaps, 1)
	assert.Same(t, snap, rec.snaps[0])
	assert.Equal(t, Idle, p.State())

	assert.False(t, snap.Degenerate)
	assert.Equal(t, p.RunID(), snap.RunID)
	assert.Equal(t, g.Corners(), snap.Corners)
	assert.NotEmpty(t, snap.Voxels)
	assert.Equal(t, p.Carver().Len(), len(snap.Voxels))

	require.Len(t, snap.Persons, 2)

	seen := map[int]bool{}

	for _, person := range snap.Persons {

		sub, d := nearest(subs, person.X, person.Y)
		assert.Less(t, d, float64(sceneStep), "person %d at (%.0f, %.0f)", person.ID, person.X, person.Y)
		assert.False(t, seen[sub], "two persons on subject %d", sub)
		seen[sub] = true
	}

	assert.NotEqual(t, snap.Persons[0].Color, snap.Persons[1].Color)

	for _, v := range snap.Voxels {
		require.GreaterOrEqual(t, v.Person, int32(0))
		assert.Equal(t, rgb(PersonColor(int(v.Person))), v.Color)
	}

	// colour models exist for every camera after the first cycle
	models := p.Models()
	require.Len(t, models, len(views))

	for c, m := range models {
		assert.Equal(t, 2, m.Len(), "camera %d", c)
	}

	assert.Equal(t, 4, p.Palette().Len())
}

func TestCarvedHullHugsSubjects(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)

	p, err := New(g, testConfig())
	require.NoError(t, err)

	subs := subjects()

	snap, err := p.Process(0, renderAll(views, subs))
	require.NoError(t, err)
	require.NotEmpty(t, snap.Voxels)

	// every carved voxel belongs to a subject, the silhouettes leave no
	// volume between or beside them
	perSubject := make([]int, len(subs))

	for _, v := range snap.Voxels {
		sub, d := nearest(subs, float64(v.X), float64(v.Y))
		require.Less(t, d, subs[sub].radius+sceneStep, "voxel at (%.0f, %.0f)", v.X, v.Y)
		perSubject[sub]++
	}

	for i, n := range perSubject {
		assert.Positive(t, n, "subject %d", i)
	}
}

func TestPipelineKeepsIdentities(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)

	p, err := New(g, testConfig())
	require.NoError(t, err)

	subs := subjects()
	owner := map[int]int{}

	for frame := 0; frame < 3; frame++ {

		snap, err := p.Process(frame, renderAll(views, subs))
		require.NoError(t, err)
		require.Len(t, snap.Persons, 2, "frame %d", frame)

		for _, person := range snap.Persons {

			sub, d := nearest(subs, person.X, person.Y)
			require.Less(t, d, float64(sceneStep), "frame %d person %d", frame, person.ID)

			if frame == 0 {
				owner[sub] = person.ID
				continue
			}

			assert.Equal(t, owner[sub], person.ID, "frame %d subject %d", frame, sub)
		}

		// walk towards each other along the X axis
		subs[0].centre.X += sceneStep
		subs[1].centre.X -= sceneStep
	}

	for _, id := range p.Trail().IDs() {
		assert.Len(t, p.Trail().GetPoints(id), 3)
	}
}

func TestPipelineIdempotent(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)

	p, err := New(g, testConfig())
	require.NoError(t, err)

	frames := renderAll(views, subjects())

	first, err := p.Process(0, frames)
	require.NoError(t, err)

	visible := append([]voxel.Index(nil), p.Carver().Visible()...)
	labels := make([]int32, len(visible))

	for i, idx := range visible {
		labels[i] = g.Voxel(idx).Label
	}

	second, err := p.Process(1, frames)
	require.NoError(t, err)

	assert.Equal(t, visible, p.Carver().Visible())

	for i, idx := range p.Carver().Visible() {
		assert.Equal(t, labels[i], g.Voxel(idx).Label)
	}

	assert.Equal(t, first.Voxels, second.Voxels)
	assert.Equal(t, first.Permutation, second.Permutation)
}

func TestPipelineDegenerate(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)
	rec := &recorder{}

	p, err := New(g, testConfig(), WithRenderers(rec))
	require.NoError(t, err)

	snap, err := p.Process(0, renderAll(views, nil))
	require.NoError(t, err)

	assert.True(t, snap.Degenerate)
	assert.Empty(t, snap.Voxels)
	assert.Empty(t, snap.Persons)
	assert.Nil(t, p.Models())
	assert.Equal(t, []int{0, 1}, snap.Permutation)
	require.Len(t, rec.snaps, 1)

	subs := subjects()

	first, err := p.Process(1, renderAll(views, subs))
	require.NoError(t, err)
	require.False(t, first.Degenerate)

	// everything leaves the scene, the permutation is kept
	snap, err = p.Process(2, renderAll(views, nil))
	require.NoError(t, err)
	assert.True(t, snap.Degenerate)
	assert.Equal(t, first.Permutation, snap.Permutation)

	again, err := p.Process(3, renderAll(views, subs))
	require.NoError(t, err)
	require.Len(t, again.Persons, 2)

	for _, person := range first.Persons {
		got, ok := again.Person(person.ID)
		require.True(t, ok)
		assert.InDelta(t, person.X, got.X, 1e-6)
		assert.InDelta(t, person.Y, got.Y, 1e-6)
	}
}

func TestPipelineDegenerateUnassigned(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)

	// more subjects than voxels, every cycle is degenerate
	cfg := testConfig()
	cfg.Subjects = 100000
	cfg.Strategy = colormodel.Assignment

	p, err := New(g, cfg)
	require.NoError(t, err)

	snap, err := p.Process(0, renderAll(views, subjects()))
	require.NoError(t, err)

	assert.True(t, snap.Degenerate)
	require.NotEmpty(t, snap.Voxels)
	assert.Empty(t, snap.Persons)

	for _, v := range snap.Voxels {
		assert.Equal(t, int32(-1), v.Person)
		assert.Equal(t, rgb(Unassigned), v.Color)
	}
}

func TestPipelineFrameOrder(t *testing.T) {

	views := rig(t)
	g := sceneGrid(t, views)

	p, err := New(g, testConfig())
	require.NoError(t, err)

	frames := renderAll(views, subjects())

	_, err = p.Process(5, frames)
	require.NoError(t, err)

	_, err = p.Process(5, frames)
	assert.True(t, errors.Is(err, ErrFrameNotAdvanced))

	_, err = p.Process(4, frames)
	assert.True(t, errors.Is(err, ErrFrameOrder))

	_, err = p.Process(6, frames[:2])
	assert.True(t, errors.Is(err, ErrCameraCount))

	// after a seek the carving is rebuilt from the current masks
	before := append([]voxel.Index(nil), p.Carver().Visible()...)

	p.Seek(0)
	assert.Zero(t, p.Carver().Len())

	snap, err := p.Process(0, frames)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Frame)
	assert.ElementsMatch(t, before, p.Carver().Visible())

	snap, err = p.Update()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Frame)
}

func TestPipelineStoredModels(t *testing.T) {

	views := rig(t)
	subs := subjects()
	frames := renderAll(views, subs)

	p, err := New(sceneGrid(t, views), testConfig())
	require.NoError(t, err)

	ref, err := p.Process(0, frames)
	require.NoError(t, err)

	// a second run with the stored state gives every subject the same id
	q, err := New(sceneGrid(t, rig(t)), testConfig(),
		WithModels(p.Models()), WithPalette(p.Palette()))
	require.NoError(t, err)

	snap, err := q.Process(0, frames)
	require.NoError(t, err)
	require.Len(t, snap.Persons, 2)

	for _, person := range snap.Persons {
		want, ok := ref.Person(person.ID)
		require.True(t, ok)
		assert.InDelta(t, want.X, person.X, 1e-6)
		assert.InDelta(t, want.Y, person.Y, 1e-6)
	}

	_, err = New(sceneGrid(t, rig(t)), testConfig(), WithModels(p.Models()[:1]))
	assert.True(t, errors.Is(err, colormodel.ErrModelCount))
}

func TestPipelineRendererFailure(t *testing.T) {

	views := rig(t)
	failing := &recorder{err: errors.New("sink down")}
	ok := &recorder{}

	p, err := New(sceneGrid(t, views), testConfig(), WithRenderers(failing, ok), WithFrames())
	require.NoError(t, err)

	_, err = p.Process(0, renderAll(views, subjects()))
	require.NoError(t, err)

	require.Len(t, failing.snaps, 1)
	require.Len(t, ok.snaps, 1)

	snap := ok.snaps[0]
	require.Len(t, snap.Frames, len(views))
	require.Len(t, snap.Masks, len(views))
	assert.Equal(t, image.Pt(sceneWidth, sceneHeight), snap.Frames[0].Rect.Size())
	assert.NotSame(t, views[0].Frame(), snap.Frames[0])
}

func TestNewErrors(t *testing.T) {

	g := sceneGrid(t, rig(t))

	cfg := testConfig()
	cfg.Subjects = 0
	_, err := New(g, cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Subjects = colormodel.MaxPermutationSubjects + 1
	_, err = New(g, cfg)
	assert.True(t, errors.Is(err, colormodel.ErrTooManySubjects))

	cfg.Strategy = colormodel.Assignment
	_, err = New(g, cfg)
	assert.NoError(t, err)

	cfg = testConfig()
	cfg.PaletteCamera = 9
	_, err = New(g, cfg)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "carving", Carving.String())
	assert.Equal(t, "clustering", Clustering.String())
	assert.Equal(t, "matching", Matching.String())
	assert.Equal(t, "coloring", Coloring.String())
	assert.Equal(t, "state(9)", State(9).String())
}
