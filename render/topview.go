package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/didibib/computer-vision-tracking/pipeline"
)

// TopView draws the floor of the grid seen from above: every visible voxel
// as a dot, the trail of every person and a label at their position.  The
// image is size pixels wide and high
func TopView(snap *pipeline.Snapshot, size int) *image.RGBA {

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(Black), image.Point{}, draw.Src)

	if snap == nil {
		return img
	}

	lo, hi := snap.Corners[0], snap.Corners[2]
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)

	if span <= 0 {
		return img
	}

	scale := float64(size-1) / span

	// world x to the right, world y up
	toPixel := func(x, y float64) image.Point {
		return image.Pt(
			int(math.Round((x-lo.X)*scale)),
			size-1-int(math.Round((y-lo.Y)*scale)),
		)
	}

	for _, v := range snap.Voxels {
		p := toPixel(float64(v.X), float64(v.Y))
		fillSquare(img, p, 1, v.RGBA())
	}

	for _, person := range snap.Persons {

		clr := personRGBA(person)

		for i := 1; i < len(person.Trail); i++ {
			a := toPixel(person.Trail[i-1].X, person.Trail[i-1].Y)
			b := toPixel(person.Trail[i].X, person.Trail[i].Y)
			drawLine(img, a, b, clr)
		}

		p := toPixel(person.X, person.Y)
		fillSquare(img, p, 3, White)

		dr := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(clr),
			Face: basicfont.Face7x13,
			Dot: fixed.Point26_6{
				X: fixed.Int26_6((p.X + 6) * 64),
				Y: fixed.Int26_6((p.Y - 6) * 64),
			},
		}
		dr.DrawString(fmt.Sprintf("%d", person.ID))
	}

	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	dr.DrawString(fmt.Sprintf("frame %d", snap.Frame))

	return img
}

// fillSquare fills the square of half size r around p, clipped to the image
func fillSquare(img *image.RGBA, p image.Point, r int, clr color.RGBA) {

	rect := image.Rect(p.X-r, p.Y-r, p.X+r+1, p.Y+r+1).Intersect(img.Rect)

	draw.Draw(img, rect, image.NewUniform(clr), image.Point{}, draw.Src)
}

// drawLine draws a one pixel line from a to b
func drawLine(img *image.RGBA, a, b image.Point, clr color.RGBA) {

	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	e := dx + dy

	for {
		if a.In(img.Rect) {
			img.SetRGBA(a.X, a.Y, clr)
		}

		if a == b {
			return
		}

		e2 := 2 * e

		if e2 >= dy {
			e += dy
			a.X += sx
		}

		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
