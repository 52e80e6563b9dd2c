package pipeline

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/didibib/computer-vision-tracking/cluster"
	"github.com/didibib/computer-vision-tracking/colormodel"
	"github.com/didibib/computer-vision-tracking/observability"
	"github.com/didibib/computer-vision-tracking/tracker"
	"github.com/didibib/computer-vision-tracking/voxel"
)

// Process updates the foreground of every camera with its frame and runs one
// cycle.  frame must be higher than the last processed frame unless Seek was
// called since
func (p *Pipeline) Process(frame int, frames []image.Image) (*Snapshot, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		if frame == p.frame {
			return nil, fmt.Errorf("%w: %d", ErrFrameNotAdvanced, frame)
		}
		if frame < p.frame {
			return nil, fmt.Errorf("%w: %d after %d", ErrFrameOrder, frame, p.frame)
		}
	}

	cams := p.grid.Cameras()

	if len(frames) != len(cams) {
		return nil, fmt.Errorf("%w: %d frames for %d cameras", ErrCameraCount, len(frames), len(cams))
	}

	start := time.Now()
	errs := make([]error, len(cams))

	p.grid.Pool().ParallelFor(len(cams), func(lo, hi int) {
		for c := lo; c < hi; c++ {
			if err := cams[c].UpdateForeground(frames[c]); err != nil {
				errs[c] = fmt.Errorf("camera %d: %w", cams[c].ID(), err)
			}
		}
	})

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	observability.CycleDuration.WithLabelValues("foreground").Observe(time.Since(start).Seconds())

	return p.cycle(frame, time.Since(start))
}

// Update runs one cycle on cameras whose foreground was already updated.
// The frame number advances by one
func (p *Pipeline) Update() (*Snapshot, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.frame
	if p.started {
		frame++
	}

	return p.cycle(frame, 0)
}

// Seek accepts frame as the next frame to process.  The carving state is
// cleared and rebuilt from the camera masks of the next cycle
func (p *Pipeline) Seek(frame int) {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.carver.Reset()
	p.frame = frame
	p.started = false
	p.resync = true

	logrus.WithField("frame", frame).Debug("pipeline seek")
}

// cycle runs the stages for one frame, the caller holds mu
func (p *Pipeline) cycle(frame int, foreground time.Duration) (*Snapshot, error) {

	defer p.setState(Idle)

	durations := make(map[string]time.Duration, 5)

	if foreground > 0 {
		durations["foreground"] = foreground
	}

	stage := func(s State, fn func() error) error {
		p.setState(s)
		start := time.Now()
		err := fn()
		d := time.Since(start)
		durations[s.String()] = d
		observability.CycleDuration.WithLabelValues(s.String()).Observe(d.Seconds())
		return err
	}

	if err := stage(Carving, p.carve); err != nil {
		return nil, fmt.Errorf("carving frame %d: %w", frame, err)
	}

	p.frame = frame
	p.started = true

	visible := p.carver.Visible()
	observability.VisibleVoxels.Set(float64(len(visible)))

	log := logrus.WithFields(logrus.Fields{
		"frame":   frame,
		"visible": len(visible),
	})

	snap := &Snapshot{
		RunID:     p.runID,
		Frame:     frame,
		Time:      time.Now(),
		Corners:   p.grid.Corners(),
		Durations: durations,
	}

	var labels []int
	degenerate := len(visible) < p.cfg.Subjects

	if !degenerate {

		err := stage(Clustering, func() error {
			var err error
			labels, err = p.cluster(visible)
			return err
		})

		if errors.Is(err, cluster.ErrTooFewPoints) {
			degenerate = true
		} else if err != nil {
			return nil, fmt.Errorf("clustering frame %d: %w", frame, err)
		}
	}

	if degenerate {

		log.Warn("too few visible voxels, keeping previous labels")
		observability.DegenerateCycles.Inc()

		snap.Degenerate = true
		snap.Unanimous = true

	} else {

		err := stage(Matching, func() error {
			return p.match(frame, labels, snap, log)
		})

		if err != nil {
			return nil, fmt.Errorf("matching frame %d: %w", frame, err)
		}
	}

	stage(Coloring, func() error {
		p.color(visible, labels, snap)
		return nil
	})

	snap.Permutation = p.perm.Clone()

	if p.copyFrames {
		for _, cam := range p.grid.Cameras() {
			snap.Frames = append(snap.Frames, cloneRGBA(cam.Frame()))
			snap.Masks = append(snap.Masks, cloneGray(cam.Foreground()))
		}
	}

	observability.FramesProcessed.Inc()
	p.last = snap
	p.publish(snap)

	log.WithFields(logrus.Fields{
		"persons":    len(snap.Persons),
		"degenerate": snap.Degenerate,
	}).Debug("cycle done")

	return snap, nil
}

func (p *Pipeline) carve() error {

	if p.resync {
		if err := p.carver.Rebuild(); err != nil {
			return err
		}
		p.resync = false
		return nil
	}

	return p.carver.Update()
}

// cluster groups the visible voxels on the ground plane
func (p *Pipeline) cluster(visible []voxel.Index) ([]int, error) {

	points := make([][]float64, len(visible))

	for i, idx := range visible {
		v := p.grid.Voxel(idx)
		points[i] = []float64{v.Position.X, v.Position.Y}
	}

	res, err := cluster.KMeans(points, p.cfg.Subjects, p.cfg.Cluster)

	if err != nil {
		return nil, err
	}

	return res.Labels, nil
}

// match pairs the cluster labels with persons.  Without colour models the
// first clustering at or after the model frame defines them
func (p *Pipeline) match(frame int, labels []int, snap *Snapshot, log *logrus.Entry) error {

	if p.models == nil {

		if frame < p.cfg.ModelFrame {
			p.perm = colormodel.Identity(p.cfg.Subjects)
			snap.Unanimous = true
			return nil
		}

		return p.bootstrap(labels, snap, log)
	}

	if err := p.ensureSampler(); err != nil {
		return err
	}

	cams := p.grid.Cameras()
	votes := make([]colormodel.Vote, 0, len(cams))

	for c := range cams {

		hists, err := p.sampler.Build(c, labels, p.cfg.Subjects)

		if err != nil {
			return fmt.Errorf("camera %d: %w", c, err)
		}

		perm, dist, err := p.matcher.Match(p.models[c].Models, hists)

		if err != nil {
			return fmt.Errorf("camera %d: %w", c, err)
		}

		votes = append(votes, colormodel.Vote{Camera: c, Permutation: perm, Distance: dist})
	}

	d := colormodel.Consensus(votes)

	if !d.Unanimous {
		observability.PermutationDisagreements.Inc()
		log.WithFields(logrus.Fields{
			"permutation": d.Permutation.String(),
			"votes":       d.Votes,
			"distance":    d.Distance,
		}).Debug("cameras disagree on permutation")
	}

	p.perm = d.Permutation
	snap.Unanimous = d.Unanimous
	snap.Distance = d.Distance

	return nil
}

// bootstrap creates the colour models of every camera from the current
// clustering.  The labels of the first camera become the person ids, the
// models of the other cameras are matched against them
func (p *Pipeline) bootstrap(labels []int, snap *Snapshot, log *logrus.Entry) error {

	if err := p.ensureSampler(); err != nil {
		return err
	}

	cams := p.grid.Cameras()
	k := p.cfg.Subjects
	sets := make([]*colormodel.ModelSet, len(cams))

	ref, err := p.sampler.Build(0, labels, k)

	if err != nil {
		return fmt.Errorf("camera 0: %w", err)
	}

	if sets[0], err = colormodel.NewModelSet(cams[0].ID(), ref, colormodel.Identity(k)); err != nil {
		return err
	}

	for c := 1; c < len(cams); c++ {

		hists, err := p.sampler.Build(c, labels, k)

		if err != nil {
			return fmt.Errorf("camera %d: %w", c, err)
		}

		perm, dist, err := p.matcher.Match(sets[0].Models, hists)

		if err != nil {
			return fmt.Errorf("camera %d: %w", c, err)
		}

		if sets[c], err = colormodel.NewModelSet(cams[c].ID(), hists, perm); err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"camera":      c,
			"permutation": perm.String(),
			"distance":    dist,
		}).Debug("camera models matched to reference")
	}

	p.models = sets
	p.perm = colormodel.Identity(k)
	snap.Unanimous = true

	log.Info("colour models created")

	return nil
}

// ensureSampler builds the palette from the foreground of the palette
// camera if none was given
func (p *Pipeline) ensureSampler() error {

	if p.sampler != nil {
		return nil
	}

	if p.palette == nil {

		cam := p.grid.Camera(p.cfg.PaletteCamera)
		samples := colormodel.ForegroundSamples(cam.Frame(), cam.Foreground())

		pal, err := colormodel.NewPalette(samples, p.cfg.PaletteSize, p.cfg.Cluster)

		if err != nil {
			return fmt.Errorf("camera %d: %w", cam.ID(), err)
		}

		p.palette = pal

		logrus.WithFields(logrus.Fields{
			"camera":  cam.ID(),
			"colours": pal.Len(),
			"samples": len(samples),
		}).Info("palette created")
	}

	p.sampler = colormodel.NewSampler(p.grid, p.carver, p.palette, p.cfg.SampleRadius)

	return nil
}

// color labels every visible voxel with its person and fills the voxel and
// person records of the snapshot.  Without labels the previous assignment of
// every voxel is kept
func (p *Pipeline) color(visible []voxel.Index, labels []int, snap *Snapshot) {

	k := p.cfg.Subjects
	person := p.perm.Inverse()

	type sum struct {
		x, y float64
		n    int
	}

	sums := make([]sum, k)
	snap.Voxels = make([]VoxelRecord, len(visible))

	for i, idx := range visible {

		v := p.grid.Voxel(idx)

		if labels != nil {
			v.Label = int32(labels[i])
			v.Person = int32(person[labels[i]])
		}

		v.Color = PersonColor(int(v.Person))

		if v.Person >= 0 && int(v.Person) < k {
			s := &sums[v.Person]
			s.x += v.Position.X
			s.y += v.Position.Y
			s.n++
		}

		snap.Voxels[i] = VoxelRecord{
			X:      float32(v.Position.X),
			Y:      float32(v.Position.Y),
			Z:      float32(v.Position.Z),
			Person: v.Person,
			Color:  rgb(v.Color),
		}
	}

	for id, s := range sums {

		if s.n == 0 {
			continue
		}

		pos := tracker.Point{X: s.x / float64(s.n), Y: s.y / float64(s.n)}

		if !snap.Degenerate {
			p.trail.Add(id, pos)
		}

		snap.Persons = append(snap.Persons, PersonRecord{
			ID:     id,
			X:      pos.X,
			Y:      pos.Y,
			Voxels: s.n,
			Color:  rgb(PersonColor(id)),
			Trail:  p.trail.GetSmoothed(id),
		})
	}
}

// publish hands the snapshot to every renderer, a failing renderer does not
// stop the others
func (p *Pipeline) publish(snap *Snapshot) {

	for _, r := range p.renderers {

		name := sinkName(r)

		if err := r.Publish(snap); err != nil {
			observability.SnapshotsPublished.WithLabelValues(name, "error").Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"sink":  name,
				"frame": snap.Frame,
			}).Warn("publish snapshot")
			continue
		}

		observability.SnapshotsPublished.WithLabelValues(name, "ok").Inc()
	}
}

func sinkName(r Renderer) string {

	if n, ok := r.(interface{ Name() string }); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", r)
}
