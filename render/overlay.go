package render

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// blend mixes clr into the BGR pixel at pos
func blend(data []byte, pos int, clr color.RGBA, alpha float32) {

	b, g, r := data[pos+0], data[pos+1], data[pos+2]

	data[pos+0] = uint8(float32(b)*(1-alpha) + float32(clr.B)*alpha)
	data[pos+1] = uint8(float32(g)*(1-alpha) + float32(clr.G)*alpha)
	data[pos+2] = uint8(float32(r)*(1-alpha) + float32(clr.R)*alpha)
}

// copyBack replaces the pixels of a BGR Mat with data
func copyBack(img *gocv.Mat, data []byte) error {

	if len(data) != img.Rows()*img.Cols()*3 {
		return fmt.Errorf("overlay holds %d bytes for a %dx%d BGR image",
			len(data), img.Cols(), img.Rows())
	}

	tmpImg, err := gocv.NewMatFromBytes(img.Rows(), img.Cols(), gocv.MatTypeCV8UC3, data)

	if err != nil {
		return fmt.Errorf("overlay to mat: %w", err)
	}

	defer tmpImg.Close()
	tmpImg.CopyTo(img)

	return nil
}

// ForegroundMask renders the foreground pixels of mask as a transparent
// overlay on top of a BGR image of the same size.  A nil mask draws nothing
func ForegroundMask(img *gocv.Mat, mask *image.Gray, clr color.RGBA, alpha float32) error {

	// get dimensions
	width := img.Cols()
	height := img.Rows()

	if mask == nil {
		return nil
	}

	if mask.Rect.Dx() != width || mask.Rect.Dy() != height {
		return fmt.Errorf("mask %v does not match %dx%d image", mask.Rect.Size(), width, height)
	}

	// it is too slow to manipulate pixel by pixel using GoCV due to slowness
	// over CGO.  So we copy the bytes from the source image and manipulate
	// the bytes directly before copying back to a Mat
	imgData := img.ToBytes()

	for j := 0; j < height; j++ {
		row := mask.Pix[j*mask.Stride:]
		for k := 0; k < width; k++ {
			if row[k] != 0 {
				blend(imgData, j*width*3+k*3, clr, alpha)
			}
		}
	}

	return copyBack(img, imgData)
}

// Voxels paints every voxel as a square of the given radius in its colour.
// Voxels further from the camera are painted first
func Voxels(img *gocv.Mat, cam camera.Camera, voxels []pipeline.VoxelRecord,
	radius int, alpha float32) error {

	width := img.Cols()
	height := img.Rows()
	loc := cam.Location()

	order := make([]int, len(voxels))
	dist := make([]float64, len(voxels))

	for i, v := range voxels {
		order[i] = i
		dist[i] = v.Position().Distance(loc)
	}

	sort.Slice(order, func(a, b int) bool {
		return dist[order[a]] > dist[order[b]]
	})

	imgData := img.ToBytes()

	for _, i := range order {

		v := voxels[i]
		p := cam.Project(v.Position())

		if p == camera.Offscreen {
			continue
		}

		clr := v.RGBA()

		for y := p.Y - radius; y <= p.Y+radius; y++ {
			if y < 0 || y >= height {
				continue
			}
			for x := p.X - radius; x <= p.X+radius; x++ {
				if x < 0 || x >= width {
					continue
				}
				blend(imgData, y*width*3+x*3, clr, alpha)
			}
		}
	}

	return copyBack(img, imgData)
}

// line draws the segment between two world points when both are imaged
func line(img *gocv.Mat, cam camera.Camera, a, b r3.Vector, clr color.RGBA, thickness int) {

	pa, pb := cam.Project(a), cam.Project(b)

	if pa == camera.Offscreen || pb == camera.Offscreen {
		return
	}

	gocv.Line(img, pa, pb, clr, thickness)
}

// GridBox draws the edges of the voxel grid bounding box, corners are the
// floor followed by the top as returned by Grid.Corners
func GridBox(img *gocv.Mat, cam camera.Camera, corners [8]r3.Vector,
	clr color.RGBA, thickness int) {

	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		line(img, cam, corners[i], corners[j], clr, thickness)
		line(img, cam, corners[i+4], corners[j+4], clr, thickness)
		line(img, cam, corners[i], corners[i+4], clr, thickness)
	}
}

// Axes draws the world axes from the origin with the given length
func Axes(img *gocv.Mat, cam camera.Camera, length float64, thickness int) {

	axes := [3]r3.Vector{{X: length}, {Y: length}, {Z: length}}

	for i, a := range axes {
		line(img, cam, r3.Vector{}, a, axisColors[i], thickness)
	}
}
