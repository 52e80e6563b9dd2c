// Package colormodel describes the appearance of a person as a histogram over
// a small palette of dominant colours and matches cluster labels to persons by
// comparing those histograms across cameras.
package colormodel

import (
	"errors"
	"image/color"
	"math"
)

// MaxDistance is returned by Compare when either histogram is empty
const MaxDistance = math.MaxFloat32

var (
	// ErrTooManySubjects is returned when the exhaustive permutation search
	// is asked for more subjects than MaxPermutationSubjects
	ErrTooManySubjects = errors.New("too many subjects for exhaustive matching")
	// ErrModelCount is returned when two model sets do not hold the same
	// number of histograms
	ErrModelCount = errors.New("model count mismatch")
)

// Histogram is the normalised distribution of palette colours of one subject
type Histogram struct {
	// ID of the person the histogram belongs to
	ID int `yaml:"id"`
	// Bins holds one value per palette colour, the largest bin is 1
	Bins []float64 `yaml:"bins"`
}

// NewHistogram creates an empty histogram with the given number of bins
func NewHistogram(id, bins int) *Histogram {
	return &Histogram{
		ID:   id,
		Bins: make([]float64, bins),
	}
}

// Calculate fills the histogram from the given samples, replacing any
// previous content
func (h *Histogram) Calculate(samples []color.RGBA, p *Palette) {

	h.Bins = make([]float64, p.Len())

	for _, s := range samples {
		h.Add(p, s)
	}

	h.Normalize()
}

// Add counts one sample in the bin of its nearest palette colour
func (h *Histogram) Add(p *Palette, c color.RGBA) {
	h.Bins[p.Nearest(c)]++
}

// Normalize scales the bins so the largest is 1.  An empty histogram stays
// all zero
func (h *Histogram) Normalize() {

	var max float64

	for _, b := range h.Bins {
		max = math.Max(max, b)
	}

	if max == 0 {
		return
	}

	for i := range h.Bins {
		h.Bins[i] /= max
	}
}

// Empty reports whether no sample was counted
func (h *Histogram) Empty() bool {

	for _, b := range h.Bins {
		if b != 0 {
			return false
		}
	}

	return true
}

// Compare returns the chi-square distance of other to h, summed over the
// bins where h is non zero.  Empty or mismatched histograms are MaxDistance
// apart
func (h *Histogram) Compare(other *Histogram) float64 {

	if other == nil || len(h.Bins) != len(other.Bins) || h.Empty() || other.Empty() {
		return MaxDistance
	}

	var d float64

	for i, b := range h.Bins {
		if b > 0 {
			diff := b - other.Bins[i]
			d += diff * diff / b
		}
	}

	return d
}

// Clone returns a deep copy of the histogram
func (h *Histogram) Clone() *Histogram {
	return &Histogram{
		ID:   h.ID,
		Bins: append([]float64(nil), h.Bins...),
	}
}
