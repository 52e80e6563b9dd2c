// Command calibrate recovers the pose of every camera from a recording of a
// checkerboard lying on the floor and writes it to the calibration files.
package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/config"
	"github.com/didibib/computer-vision-tracking/observability"
	"github.com/didibib/computer-vision-tracking/vision"
)

func main() {

	// read in cli flags
	configFile := flag.String("c", "", "YAML config file, defaults apply when empty")
	videoName := flag.String("v", "checkerboard.avi", "Checkerboard recording inside every camera directory")
	frameNum := flag.Int("f", 0, "Frame of the recording to detect the corners in")
	dryRun := flag.Bool("n", false, "Print the recovered poses without writing the calibration files")
	flag.Parse()

	cfg, err := loadConfig(*configFile)

	if err != nil {
		logrus.Fatalf("Error loading config: %v", err)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	board, err := camera.LoadCheckerboard(cfg.Data.Path(cfg.Data.Checkerboard))

	if err != nil {
		logrus.Fatalf("Error loading checkerboard: %v", err)
	}

	failed := 0

	for i := range cfg.Data.Cameras {

		if err := calibrate(cfg, i, board, *videoName, *frameNum, *dryRun); err != nil {
			logrus.WithError(err).WithField("camera", i).Error("calibration failed")
			failed++
		}
	}

	if failed > 0 {
		logrus.Fatalf("%d of %d cameras could not be calibrated", failed, len(cfg.Data.Cameras))
	}
}

// loadConfig reads the config file, or the defaults when none is given
func loadConfig(path string) (*config.Config, error) {

	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// calibrate solves the pose of camera i and saves it
func calibrate(cfg *config.Config, i int, board camera.Checkerboard,
	videoName string, frameNum int, dryRun bool) error {

	calibPath := cfg.Data.CameraFile(i, cfg.Data.Calibration)

	calib, err := camera.LoadCalibration(calibPath)

	if err != nil {
		return err
	}

	view, err := camera.NewView(i, calib, nil)

	if err != nil {
		return err
	}

	src, err := vision.OpenVideo(cfg.Data.CameraFile(i, videoName), false)

	if err != nil {
		return err
	}

	defer src.Close()

	if err := src.Seek(frameNum); err != nil {
		return err
	}

	frame, err := src.Read()

	if err != nil {
		return err
	}

	corners, err := vision.FindCorners(frame, board)

	if err != nil {
		return err
	}

	if err := view.SolveFrame(board, corners); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"camera":      i,
		"corners":     len(corners),
		"location":    view.Location(),
		"rotation":    view.RotationVector(),
		"translation": view.Translation(),
	}).Info("camera pose recovered")

	if dryRun {
		return nil
	}

	return view.Calibration().Save(calibPath)
}
