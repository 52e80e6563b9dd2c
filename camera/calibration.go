package camera

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Calibration holds the intrinsic and extrinsic parameters of a camera
type Calibration struct {
	// CameraMatrix is the 3x3 intrinsic matrix in row-major order
	CameraMatrix []float64 `yaml:"camera_matrix"`
	// Distortion coefficients k1, k2, p1, p2[, k3]
	Distortion []float64 `yaml:"distortion"`
	// Rotation is the Rodrigues rotation vector from world to camera
	Rotation []float64 `yaml:"rotation"`
	// Translation from world to camera
	Translation []float64 `yaml:"translation"`
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
}

// Validate checks all parameters are present and of the expected shape
func (c *Calibration) Validate() error {

	switch {
	case len(c.CameraMatrix) != 9:
		return fmt.Errorf("%w: camera matrix needs 9 values, got %d",
			ErrNotCalibrated, len(c.CameraMatrix))
	case len(c.Distortion) != 0 && len(c.Distortion) != 4 && len(c.Distortion) != 5:
		return fmt.Errorf("%w: distortion needs 4 or 5 values, got %d",
			ErrNotCalibrated, len(c.Distortion))
	case len(c.Rotation) != 3:
		return fmt.Errorf("%w: rotation needs 3 values, got %d",
			ErrNotCalibrated, len(c.Rotation))
	case len(c.Translation) != 3:
		return fmt.Errorf("%w: translation needs 3 values, got %d",
			ErrNotCalibrated, len(c.Translation))
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: invalid image size %dx%d",
			ErrNotCalibrated, c.Width, c.Height)
	case c.CameraMatrix[0] == 0 || c.CameraMatrix[4] == 0:
		return fmt.Errorf("%w: zero focal length", ErrNotCalibrated)
	}

	return nil
}

// LoadCalibration reads a calibration file
func LoadCalibration(path string) (*Calibration, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	var c Calibration

	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}

	return &c, nil
}

// Save writes the calibration to the given file
func (c *Calibration) Save(path string) error {

	data, err := yaml.Marshal(c)

	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}

	return nil
}

// Checkerboard describes the calibration pattern laid on the floor
type Checkerboard struct {
	// Width is the number of inner corners along a row
	Width int `yaml:"width"`
	// Height is the number of inner corners along a column
	Height int `yaml:"height"`
	// SquareSize is the side of one square in world units
	SquareSize float64 `yaml:"square_size"`
}

// LoadCheckerboard reads the checkerboard description from a YAML file
func LoadCheckerboard(path string) (Checkerboard, error) {

	var b Checkerboard

	data, err := os.ReadFile(path)

	if err != nil {
		return b, fmt.Errorf("read checkerboard: %w", err)
	}

	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse checkerboard %s: %w", path, err)
	}

	if b.Width < 2 || b.Height < 2 || b.SquareSize <= 0 {
		return b, fmt.Errorf("invalid checkerboard %dx%d square %v",
			b.Width, b.Height, b.SquareSize)
	}

	return b, nil
}

// ObjectPoints returns the world coordinates of the inner corners on the
// Z=0 plane in detection order
func (b Checkerboard) ObjectPoints() []Point2 {

	pts := make([]Point2, 0, b.Width*b.Height)

	for s := 0; s < b.Width*b.Height; s++ {
		pts = append(pts, Point2{
			X: float64(s/b.Width) * b.SquareSize,
			Y: float64(s%b.Width) * b.SquareSize,
		})
	}

	return pts
}
