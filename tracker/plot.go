package tracker

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SavePlot writes the smoothed ground plane trails of all persons to an
// image file, the format follows the file extension
func (t *Trail) SavePlot(path string, colors func(id int) color.Color) error {

	p := plot.New()
	p.Title.Text = "Person trails"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	for _, id := range t.IDs() {

		pts := t.GetSmoothed(id)

		if len(pts) == 0 {
			continue
		}

		xys := make(plotter.XYs, len(pts))

		for i, pt := range pts {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}

		line, err := plotter.NewLine(xys)

		if err != nil {
			return fmt.Errorf("trail %d: %w", id, err)
		}

		line.Width = vg.Points(1.5)

		if colors != nil {
			line.Color = colors(id)
		}

		p.Add(line)
		p.Legend.Add(fmt.Sprintf("person %d", id), line)
	}

	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trail plot: %w", err)
	}

	return nil
}
