package render

import (
	"image/color"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the person.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the current position circle should
	// be the same color as that of the person.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      true,
		LineColor:     Yellow,
		LineThickness: 2,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  4,
	}
}

// Trail draws the smoothed ground plane trail of every person as seen by
// the camera
func Trail(img *gocv.Mat, cam camera.Camera, persons []pipeline.PersonRecord,
	style TrailStyle) {

	for _, person := range persons {

		objClr := personRGBA(person)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := person.Trail

		for i := 1; i < len(points); i++ {
			a := r3.Vector{X: points[i-1].X, Y: points[i-1].Y}
			b := r3.Vector{X: points[i].X, Y: points[i].Y}
			line(img, cam, a, b, lineClr, style.LineThickness)
		}

		// draw circle on the current position
		p := cam.Project(r3.Vector{X: person.X, Y: person.Y})

		if p != camera.Offscreen {
			gocv.Circle(img, p, style.CircleRadius, circleClr, -1)
		}
	}
}
