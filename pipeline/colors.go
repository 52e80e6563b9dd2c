package pipeline

import "image/color"

// Unassigned is the colour of voxels not belonging to any person
var Unassigned = color.RGBA{R: 96, G: 96, B: 96, A: 255}

// personColors are handed out by person id
var personColors = []color.RGBA{
	{R: 255, G: 0, B: 0, A: 255},     // #FF0000
	{R: 0, G: 255, B: 0, A: 255},     // #00FF00
	{R: 0, G: 0, B: 255, A: 255},     // #0000FF
	{R: 255, G: 0, B: 255, A: 255},   // #FF00FF
	{R: 255, G: 178, B: 29, A: 255},  // #FFB21D
	{R: 0, G: 212, B: 187, A: 255},   // #00D4BB
	{R: 132, G: 56, B: 255, A: 255},  // #8438FF
	{R: 146, G: 204, B: 23, A: 255},  // #92CC17
	{R: 255, G: 149, B: 200, A: 255}, // #FF95C8
	{R: 26, G: 147, B: 52, A: 255},   // #1A9334
	{R: 0, G: 194, B: 255, A: 255},   // #00C2FF
	{R: 255, G: 112, B: 31, A: 255},  // #FF701F
}

// PersonColor returns the display colour of a person, Unassigned for a
// negative id
func PersonColor(person int) color.RGBA {

	if person < 0 {
		return Unassigned
	}

	return personColors[person%len(personColors)]
}
