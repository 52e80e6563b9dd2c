// Package vision adapts OpenCV video capture, background subtraction and
// checkerboard detection to the camera and pipeline interfaces.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// MatToRGBA converts a BGR or BGRA Mat to an RGBA image
func MatToRGBA(m gocv.Mat) (*image.RGBA, error) {

	if m.Empty() {
		return nil, fmt.Errorf("convert empty mat")
	}

	img, err := m.ToImage()

	if err != nil {
		return nil, fmt.Errorf("convert mat: %w", err)
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	return rgba, nil
}

// MatToGray converts a single channel Mat to a gray image
func MatToGray(m gocv.Mat) (*image.Gray, error) {

	if m.Empty() {
		return nil, fmt.Errorf("convert empty mat")
	}

	if m.Channels() != 1 {
		return nil, fmt.Errorf("convert mat with %d channels to gray", m.Channels())
	}

	img, err := m.ToImage()

	if err != nil {
		return nil, fmt.Errorf("convert mat: %w", err)
	}

	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)

	return g, nil
}

// ImageToMat converts an image to a BGR Mat, the caller closes it
func ImageToMat(img image.Image) (gocv.Mat, error) {

	m, err := gocv.ImageToMatRGB(img)

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert image: %w", err)
	}

	return m, nil
}
