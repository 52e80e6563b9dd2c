package render

import (
	"errors"
	"fmt"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// ErrNoFrames is returned when a snapshot was published without frames
var ErrNoFrames = errors.New("snapshot holds no frames")

// Layers selects what is drawn on top of a camera frame
type Layers struct {
	Mask    bool
	Voxels  bool
	Box     bool
	Axes    bool
	Trails  bool
	Labels  bool
	Opacity float32
}

// DefaultLayers draws everything except the foreground mask
func DefaultLayers() Layers {
	return Layers{
		Voxels:  true,
		Box:     true,
		Axes:    true,
		Trails:  true,
		Labels:  true,
		Opacity: 0.6,
	}
}

// Composer draws snapshots onto the frames of a camera rig
type Composer struct {
	cams   []camera.Camera
	layers Layers
	// Labels and Trails style the person overlays
	Labels LabelStyle
	Trails TrailStyle
	// AxisLength in world units
	AxisLength float64
}

// NewComposer returns a composer for the cameras in rig order
func NewComposer(cams []camera.Camera, layers Layers) *Composer {
	return &Composer{
		cams:       cams,
		layers:     layers,
		Labels:     DefaultLabelStyle(),
		Trails:     DefaultTrailStyle(),
		AxisLength: 500,
	}
}

// Draw returns the frame of camera c with the snapshot drawn on it as a BGR
// Mat, the caller must close it
func (c *Composer) Draw(snap *pipeline.Snapshot, cam int) (gocv.Mat, error) {

	if cam < 0 || cam >= len(c.cams) {
		return gocv.NewMat(), fmt.Errorf("camera %d out of range", cam)
	}

	if cam >= len(snap.Frames) || snap.Frames[cam] == nil {
		return gocv.NewMat(), ErrNoFrames
	}

	img, err := gocv.ImageToMatRGB(snap.Frames[cam])

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert frame: %w", err)
	}

	view := c.cams[cam]

	if c.layers.Mask && cam < len(snap.Masks) {
		if err := ForegroundMask(&img, snap.Masks[cam], Cyan, c.layers.Opacity); err != nil {
			img.Close()
			return gocv.NewMat(), fmt.Errorf("camera %d mask: %w", cam, err)
		}
	}

	if c.layers.Voxels {
		if err := Voxels(&img, view, snap.Voxels, 2, c.layers.Opacity); err != nil {
			img.Close()
			return gocv.NewMat(), fmt.Errorf("camera %d voxels: %w", cam, err)
		}
	}

	if c.layers.Box {
		GridBox(&img, view, snap.Corners, White, 1)
	}

	if c.layers.Axes {
		Axes(&img, view, c.AxisLength, 2)
	}

	if c.layers.Trails {
		Trail(&img, view, snap.Persons, c.Trails)
	}

	if c.layers.Labels {
		PersonLabels(&img, view, snap.Persons, c.Labels)
	}

	return img, nil
}

// JPEG draws the snapshot on the frame of camera cam and encodes it
func (c *Composer) JPEG(snap *pipeline.Snapshot, cam int) ([]byte, error) {

	img, err := c.Draw(snap, cam)
	defer img.Close()

	if err != nil {
		return nil, err
	}

	return EncodeJPEG(img)
}

// EncodeJPEG encodes a BGR Mat
func EncodeJPEG(img gocv.Mat) ([]byte, error) {

	buf, err := gocv.IMEncode(".jpg", img)

	if err != nil {
		return nil, fmt.Errorf("error encoding image: %w", err)
	}

	defer buf.Close()

	// copy the bytes out of the native buffer before it is released
	data := append([]byte(nil), buf.GetBytes()...)

	return data, nil
}

// TopViewJPEG encodes the top view of a snapshot
func TopViewJPEG(snap *pipeline.Snapshot, size int) ([]byte, error) {

	img, err := gocv.ImageToMatRGB(TopView(snap, size))

	if err != nil {
		return nil, fmt.Errorf("convert top view: %w", err)
	}

	defer img.Close()

	return EncodeJPEG(img)
}

// personRGBA returns the colour of a person record
func personRGBA(p pipeline.PersonRecord) color.RGBA {
	return color.RGBA{R: p.Color[0], G: p.Color[1], B: p.Color[2], A: 255}
}
