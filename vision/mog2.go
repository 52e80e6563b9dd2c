package vision

import (
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// DefaultThreshold turns the MOG2 output into a binary mask, shadows
	// (127) are dropped
	DefaultThreshold = 200
	// DefaultKernelSize of the cross shaped erode and dilate kernel
	DefaultKernelSize = 5
)

// MOG2 is a Gaussian mixture background model.  It is trained once from a
// recording of the empty scene and then applied without learning
type MOG2 struct {
	mu        sync.Mutex
	bs        gocv.BackgroundSubtractorMOG2
	kernel    gocv.Mat
	threshold float32
	trained   int
	raw       gocv.Mat
	tmp       gocv.Mat
}

// NewMOG2 creates an untrained background model
func NewMOG2() *MOG2 {
	return &MOG2{
		bs:        gocv.NewBackgroundSubtractorMOG2(),
		kernel:    gocv.GetStructuringElement(gocv.MorphCross, image.Pt(DefaultKernelSize, DefaultKernelSize)),
		threshold: DefaultThreshold,
		raw:       gocv.NewMat(),
		tmp:       gocv.NewMat(),
	}
}

// TrainVideo learns the background from every frame of a video file
func (m *MOG2) TrainVideo(path string) error {

	video, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return fmt.Errorf("open background %s: %w", path, err)
	}

	defer video.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	frame := gocv.NewMat()
	defer frame.Close()

	for video.Read(&frame) {

		if frame.Empty() {
			continue
		}

		m.bs.Apply(frame, &m.raw)
		m.trained++
	}

	if m.trained == 0 {
		return fmt.Errorf("background %s has no frames", path)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"frames": m.trained,
	}).Debug("background model trained")

	return nil
}

// Learn adds a frame of the empty scene to the model
func (m *MOG2) Learn(frame image.Image) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := ImageToMat(frame)

	if err != nil {
		return err
	}

	defer src.Close()

	m.bs.Apply(src, &m.raw)
	m.trained++

	return nil
}

// Apply returns the foreground mask of a frame, 255 marks foreground
func (m *MOG2) Apply(frame image.Image) (*image.Gray, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.trained == 0 {
		return nil, fmt.Errorf("background model is not trained")
	}

	src, err := ImageToMat(frame)

	if err != nil {
		return nil, err
	}

	defer src.Close()

	m.bs.ApplyWithLearningRate(src, &m.raw, 0)

	gocv.Threshold(m.raw, &m.raw, m.threshold, 255, gocv.ThresholdBinary)
	gocv.Erode(m.raw, &m.tmp, m.kernel)
	gocv.Dilate(m.tmp, &m.raw, m.kernel)

	return MatToGray(m.raw)
}

// Close releases the model
func (m *MOG2) Close() error {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.kernel.Close()
	m.raw.Close()
	m.tmp.Close()

	return m.bs.Close()
}
