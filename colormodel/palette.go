package colormodel

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/didibib/computer-vision-tracking/cluster"
)

// DefaultPaletteSize is the number of dominant colours a palette holds
const DefaultPaletteSize = 9

// Palette is the set of dominant colours histograms are binned against
type Palette struct {
	// Colors as r, g, b in [0,255]
	Colors [][3]float64 `yaml:"colors"`
}

// NewPalette finds the n dominant colours of the samples with k-means
func NewPalette(samples []color.RGBA, n int, opts cluster.Options) (*Palette, error) {

	pts := make([][]float64, len(samples))

	for i, s := range samples {
		pts[i] = []float64{float64(s.R), float64(s.G), float64(s.B)}
	}

	res, err := cluster.KMeans(pts, n, opts)

	if err != nil {
		return nil, fmt.Errorf("palette: %w", err)
	}

	p := &Palette{Colors: make([][3]float64, n)}

	for i, c := range res.Centers {
		p.Colors[i] = [3]float64{c[0], c[1], c[2]}
	}

	return p, nil
}

// Len returns the number of colours
func (p *Palette) Len() int {
	return len(p.Colors)
}

// Nearest returns the index of the palette colour closest to c
func (p *Palette) Nearest(c color.RGBA) int {

	best, bestD := 0, math.Inf(1)
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	for i, pc := range p.Colors {

		dr, dg, db := r-pc[0], g-pc[1], b-pc[2]

		if d := dr*dr + dg*dg + db*db; d < bestD {
			best, bestD = i, d
		}
	}

	return best
}

// LoadPalette reads a palette written by Save
func LoadPalette(path string) (*Palette, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}

	var p Palette

	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse palette %s: %w", path, err)
	}

	if p.Len() == 0 {
		return nil, errors.New("palette has no colors")
	}

	return &p, nil
}

// Save writes the palette to a YAML file
func (p *Palette) Save(path string) error {

	data, err := yaml.Marshal(p)

	if err != nil {
		return fmt.Errorf("marshal palette: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write palette: %w", err)
	}

	return nil
}
