package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/didibib/computer-vision-tracking/camera"
)

// ErrNoCorners is returned when the checkerboard is not found in a frame
var ErrNoCorners = errors.New("checkerboard not found")

// FindCorners detects the inner corners of a checkerboard of the given size
// and refines them to sub-pixel accuracy.  Corners are returned row by row
// in the order of Checkerboard.ObjectPoints
func FindCorners(frame image.Image, board camera.Checkerboard) ([]camera.Point2, error) {

	src, err := ImageToMat(frame)

	if err != nil {
		return nil, err
	}

	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()

	pattern := image.Pt(board.Width, board.Height)
	flags := gocv.CalibCBAdaptiveThresh | gocv.CalibCBNormalizeImage

	if !gocv.FindChessboardCorners(gray, pattern, &corners, flags) {
		return nil, fmt.Errorf("%w: %dx%d", ErrNoCorners, board.Width, board.Height)
	}

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 30, 0.1)
	gocv.CornerSubPix(gray, &corners, image.Pt(11, 11), image.Pt(-1, -1), criteria)

	pts := make([]camera.Point2, corners.Rows())

	for i := range pts {
		v := corners.GetVecfAt(i, 0)
		pts[i] = camera.Point2{X: float64(v[0]), Y: float64(v[1])}
	}

	return pts, nil
}
