// Command reconstruct carves the voxels of a calibrated camera rig from its
// recordings, labels the persons in the scene and serves the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	tracking "github.com/didibib/computer-vision-tracking"
	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/colormodel"
	"github.com/didibib/computer-vision-tracking/config"
	"github.com/didibib/computer-vision-tracking/events"
	"github.com/didibib/computer-vision-tracking/observability"
	"github.com/didibib/computer-vision-tracking/pipeline"
	"github.com/didibib/computer-vision-tracking/render"
	"github.com/didibib/computer-vision-tracking/viewer"
	"github.com/didibib/computer-vision-tracking/vision"
	"github.com/didibib/computer-vision-tracking/voxel"
)

// options are the command line settings
type options struct {
	configFile string
	fps        int
	once       bool
	buffered   bool
}

func main() {

	// read in cli flags
	var opts options
	flag.StringVar(&opts.configFile, "c", "", "YAML config file, defaults apply when empty")
	flag.IntVar(&opts.fps, "fps", 25, "Maximum number of frames processed per second, 0 runs unthrottled")
	flag.BoolVar(&opts.once, "once", false, "Stop at the end of the recordings instead of starting over")
	flag.BoolVar(&opts.buffered, "b", false, "Decode the recordings into memory before starting")
	flag.Parse()

	if err := run(opts); err != nil {
		logrus.Fatalf("Error: %v", err)
	}
}

// loadConfig reads the config file, or the defaults when none is given
func loadConfig(path string) (*config.Config, error) {

	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// run sets up the rig and processes frames until the recordings end or the
// process is interrupted.  Resources opened along the way are released on
// every return
func run(opts options) error {

	cfg, err := loadConfig(opts.configFile)

	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := tracking.PinCores(cfg.Workers.CPUCores); err != nil {
		return fmt.Errorf("pinning cpu cores: %w", err)
	}

	strategy, err := colormodel.ParseStrategy(cfg.Tracking.Strategy)

	if err != nil {
		return fmt.Errorf("tracking config: %w", err)
	}

	// set up cameras with a background model trained on the empty scene
	cams := make([]camera.Camera, len(cfg.Data.Cameras))
	sources := make([]pipeline.FrameSource, len(cfg.Data.Cameras))

	for i := range cfg.Data.Cameras {

		calib, err := camera.LoadCalibration(cfg.Data.CameraFile(i, cfg.Data.Calibration))

		if err != nil {
			return fmt.Errorf("calibration of camera %d: %w", i, err)
		}

		bg := vision.NewMOG2()
		defer bg.Close()

		if err := bg.TrainVideo(cfg.Data.CameraFile(i, cfg.Data.Background)); err != nil {
			return fmt.Errorf("training background of camera %d: %w", i, err)
		}

		view, err := camera.NewView(i, calib, bg)

		if err != nil {
			return fmt.Errorf("creating camera %d: %w", i, err)
		}

		src, err := vision.OpenVideo(cfg.Data.CameraFile(i, cfg.Data.Video), opts.buffered)

		if err != nil {
			return fmt.Errorf("opening video of camera %d: %w", i, err)
		}

		defer src.Close()

		cams[i] = view
		sources[i] = src

		logrus.WithFields(logrus.Fields{
			"camera":   i,
			"location": view.Location(),
			"frames":   src.FrameCount(),
		}).Info("camera ready")
	}

	pool := tracking.NewPool(cfg.Workers.Count)
	defer pool.Close()

	grid, err := voxel.NewGrid(cams, cfg.Grid, voxel.WithPool(pool), voxel.WithProgress(os.Stderr))

	if err != nil {
		return fmt.Errorf("building voxel grid: %w", err)
	}

	if coverage, err := grid.Coverage(); err != nil {
		logrus.WithError(err).Warn("could not compute camera coverage")
	} else {
		logrus.WithField("coverage", coverage).Info("floor covered by every camera")
	}

	pipeOpts := []pipeline.Option{}

	palettePath := cfg.Data.Path(cfg.Data.Palette)
	palette, err := colormodel.LoadPalette(palettePath)

	switch {
	case err == nil:
		pipeOpts = append(pipeOpts, pipeline.WithPalette(palette))
	case errors.Is(err, os.ErrNotExist):
		logrus.WithField("path", palettePath).Info("no palette stored, building one at bootstrap")
	default:
		return fmt.Errorf("loading palette: %w", err)
	}

	if models, ok := loadModels(cfg); ok {
		pipeOpts = append(pipeOpts, pipeline.WithModels(models))
	}

	// renderers
	var (
		srv *viewer.Server
		pub *events.Publisher
	)

	if cfg.Viewer.Enabled {
		composer := render.NewComposer(cams, render.DefaultLayers())
		srv = viewer.NewServer(viewer.Config{
			Addr:    cfg.Viewer.Addr,
			Cameras: len(cams),
			Encoder: composer,
			TopView: render.TopViewJPEG,
		})
		pipeOpts = append(pipeOpts, pipeline.WithRenderers(srv), pipeline.WithFrames())
	}

	if cfg.NATS.URL != "" {
		pub, err = events.Connect(cfg.NATS.URL, cfg.NATS.Subject)

		if err != nil {
			return err
		}

		defer pub.Close()
		pipeOpts = append(pipeOpts, pipeline.WithRenderers(pub))
	}

	p, err := pipeline.New(grid, pipeline.Config{
		Subjects:      cfg.Tracking.Subjects,
		Cluster:       cfg.Tracking.ClusterOptions(),
		Strategy:      strategy,
		SampleRadius:  cfg.Tracking.SampleRadius,
		PaletteSize:   cfg.Tracking.PaletteSize,
		PaletteCamera: cfg.Tracking.PaletteCamera,
		ModelFrame:    cfg.Tracking.ModelFrame,
		TrailLength:   cfg.Tracking.TrailLength,
	}, pipeOpts...)

	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	loopOpts := []pipeline.LoopOption{pipeline.WithFPS(opts.fps)}

	if opts.once {
		loopOpts = append(loopOpts, pipeline.WithoutWrap())
	}

	loop, err := pipeline.NewLoop(p, sources, loopOpts...)

	if err != nil {
		return fmt.Errorf("creating frame loop: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if srv != nil {
		srv.SetControls(loop)
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	if pub != nil {
		sub, err := pub.ListenControls(loop)

		if err != nil {
			logrus.WithError(err).Warn("loop commands over NATS unavailable")
		} else {
			defer sub.Unsubscribe()
		}
	}

	g.Go(func() error {
		err := loop.Run(ctx)
		stop()
		return err
	})

	logrus.WithFields(logrus.Fields{
		"run":    p.RunID(),
		"frames": loop.FrameCount(),
	}).Info("processing frames")

	err = g.Wait()

	saveState(cfg, p)

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("frame loop stopped: %w", err)
	}

	return nil
}

// loadModels reads a stored colour model set for every camera, ok is false
// when any camera has none
func loadModels(cfg *config.Config) ([]*colormodel.ModelSet, bool) {

	models := make([]*colormodel.ModelSet, len(cfg.Data.Cameras))

	for i := range cfg.Data.Cameras {

		m, err := colormodel.LoadModelSet(cfg.Data.ModelFile(i))

		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logrus.WithError(err).WithField("camera", i).Warn("ignoring stored colour models")
			}
			return nil, false
		}

		models[i] = m
	}

	return models, true
}

// saveState writes the palette, the colour models and the trail plot
func saveState(cfg *config.Config, p *pipeline.Pipeline) {

	if pal := p.Palette(); pal != nil {
		if err := pal.Save(cfg.Data.Path(cfg.Data.Palette)); err != nil {
			logrus.WithError(err).Error("saving palette")
		}
	}

	if models := p.Models(); models != nil {

		if err := os.MkdirAll(filepath.Join(cfg.Data.Dir, cfg.Data.Models), 0o755); err != nil {
			logrus.WithError(err).Error("creating model directory")
		} else {
			for i, m := range models {
				if err := m.Save(cfg.Data.ModelFile(i)); err != nil {
					logrus.WithError(err).WithField("camera", i).Error("saving colour models")
				}
			}
		}
	}

	if len(p.Trail().IDs()) > 0 {

		colors := func(id int) color.Color {
			return pipeline.PersonColor(id)
		}

		if err := p.Trail().SavePlot(cfg.Data.Path(cfg.Data.TrailPlot), colors); err != nil {
			logrus.WithError(err).Error("saving trail plot")
		}
	}

	logrus.Info("state saved")
}
