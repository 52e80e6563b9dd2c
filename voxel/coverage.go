package voxel

import (
	"errors"
	"fmt"
	"math"

	clipper "github.com/ctessum/go.clipper"
)

// ErrNoFootprint is returned by Coverage when a camera can not report the
// part of the floor it sees
var ErrNoFootprint = errors.New("camera has no footprint")

// Footprinter is implemented by cameras that can back-project their image
// border onto a horizontal plane
type Footprinter interface {
	Footprint(z float64) [][2]float64
}

// Coverage returns the fraction of the grid floor seen by every camera
func (g *Grid) Coverage() (float64, error) {

	floor := clipper.Path{
		point(g.min.X, g.min.Y),
		point(g.max.X, g.min.Y),
		point(g.max.X, g.max.Y),
		point(g.min.X, g.max.Y),
	}

	area := math.Abs(pathArea(floor))

	if area == 0 {
		return 0, nil
	}

	seen := clipper.Paths{floor}

	for _, cam := range g.cams {

		fp, ok := cam.(Footprinter)

		if !ok {
			return 0, fmt.Errorf("camera %d: %w", cam.ID(), ErrNoFootprint)
		}

		outline := fp.Footprint(0)

		if len(outline) < 3 {
			return 0, nil
		}

		path := make(clipper.Path, 0, len(outline))

		for _, p := range outline {
			path = append(path, point(p[0], p[1]))
		}

		c := clipper.NewClipper(0)
		c.AddPaths(seen, clipper.PtSubject, true)
		c.AddPath(path, clipper.PtClip, true)

		solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftNonZero, clipper.PftNonZero)

		if !ok {
			return 0, fmt.Errorf("camera %d: footprint intersection failed", cam.ID())
		}

		if len(solution) == 0 {
			return 0, nil
		}

		seen = solution
	}

	var covered float64

	for _, p := range seen {
		covered += pathArea(p)
	}

	return math.Min(1, math.Abs(covered)/area), nil
}

func point(x, y float64) *clipper.IntPoint {
	return &clipper.IntPoint{X: clipper.CInt(math.Round(x)), Y: clipper.CInt(math.Round(y))}
}

// pathArea is the signed shoelace area of a closed path
func pathArea(p clipper.Path) float64 {

	var a float64

	for i := range p {
		j := (i + 1) % len(p)
		a += float64(p[i].X)*float64(p[j].Y) - float64(p[j].X)*float64(p[i].Y)
	}

	return a / 2
}
