package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/didibib/computer-vision-tracking/camera"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// Alignment of a person label relative to the projected head position
type Alignment int

const (
	AlignLeft Alignment = iota + 1
	AlignCenter
	AlignRight
)

// LabelStyle defines how person labels are drawn on camera frames.  The
// label is anchored at the projection of the point Height above the ground
// position of the person and filled with the person colour
type LabelStyle struct {
	// Format of the label text, given the person id
	Format string
	// Height in world units of the anchor above the floor
	Height    float64
	Face      gocv.HersheyFont
	Scale     float64
	TextColor color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Pad is the space between the text and the edges of its box
	Pad   int
	Align Alignment
}

// DefaultLabelStyle centres a "person N" label above a head at 1.8m
func DefaultLabelStyle() LabelStyle {
	return LabelStyle{
		Format:    "person %d",
		Height:    1800,
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		TextColor: White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Pad:       4,
		Align:     AlignCenter,
	}
}

// personLabel is a label laid out on the image
type personLabel struct {
	box     image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// layout places the box of a label with the given text size so its bottom
// edge sits on the anchor
func (s LabelStyle) layout(anchor, text image.Point) (box image.Rectangle, textPos image.Point) {

	left := anchor.X - text.X/2

	switch s.Align {
	case AlignLeft:
		left = anchor.X + s.Pad
	case AlignRight:
		left = anchor.X - text.X - s.Pad
	}

	box = image.Rect(left-s.Pad, anchor.Y-text.Y-2*s.Pad, left+text.X+s.Pad, anchor.Y)
	textPos = image.Pt(left, anchor.Y-s.Pad)

	return box, textPos
}

// PersonLabels draws a filled label with the id of every person the camera
// sees.  Labels are drawn after collecting all of them so none is covered
// by the box of another
func PersonLabels(img *gocv.Mat, cam camera.Camera, persons []pipeline.PersonRecord, style LabelStyle) {

	labels := make([]personLabel, 0, len(persons))

	for _, person := range persons {

		anchor := cam.Project(r3.Vector{X: person.X, Y: person.Y, Z: style.Height})

		if anchor == camera.Offscreen {
			continue
		}

		text := fmt.Sprintf(style.Format, person.ID)
		size := gocv.GetTextSize(text, style.Face, style.Scale, style.Thickness)
		box, pos := style.layout(anchor, size)

		labels = append(labels, personLabel{
			box:     box,
			clr:     personRGBA(person),
			text:    text,
			textPos: pos,
		})
	}

	for _, l := range labels {
		gocv.Rectangle(img, l.box, l.clr, -1)
		gocv.PutTextWithParams(img, l.text, l.textPos,
			style.Face, style.Scale, style.TextColor, style.Thickness,
			style.LineType, false)
	}
}
