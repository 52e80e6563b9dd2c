// Package cluster groups points with k-means.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ErrTooFewPoints is returned when there are fewer points than clusters
var ErrTooFewPoints = errors.New("fewer points than clusters")

// Options controls the k-means search
type Options struct {
	// Attempts is the number of restarts, the most compact result is kept
	Attempts int `yaml:"attempts"`
	// MaxIterations bounds the refinement of one attempt
	MaxIterations int `yaml:"max_iterations"`
	// Epsilon stops an attempt once no centre moves further than it
	Epsilon float64 `yaml:"epsilon"`
	// Seed of the random generator used for seeding
	Seed int64 `yaml:"seed"`
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		Attempts:      5,
		MaxIterations: 100,
		Epsilon:       0,
		Seed:          1,
	}
}

// Result of a clustering
type Result struct {
	// Labels holds the cluster of every input point
	Labels []int
	// Centers of the clusters
	Centers [][]float64
	// Compactness is the sum of squared distances to the assigned centre
	Compactness float64
}

// KMeans partitions the points into k clusters using k-means++ seeding.  The
// result only depends on the points, their order and the options
func KMeans(points [][]float64, k int, opts Options) (*Result, error) {

	if k < 1 {
		return nil, fmt.Errorf("invalid cluster count %d", k)
	}

	if len(points) < k {
		return nil, fmt.Errorf("%w: %d points for %d clusters", ErrTooFewPoints, len(points), k)
	}

	dim := len(points[0])

	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("point %d has %d dimensions, expected %d", i, len(p), dim)
		}
	}

	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	var best *Result

	for a := 0; a < opts.Attempts; a++ {

		res := attempt(points, k, opts, rng)

		if best == nil || res.Compactness < best.Compactness {
			best = res
		}
	}

	return best, nil
}

// attempt runs one seeded k-means refinement
func attempt(points [][]float64, k int, opts Options, rng *rand.Rand) *Result {

	dim := len(points[0])
	centers := seed(points, k, rng)
	labels := make([]int, len(points))
	counts := make([]int, k)
	next := make([][]float64, k)

	for c := range next {
		next[c] = make([]float64, dim)
	}

	eps2 := opts.Epsilon * opts.Epsilon

	for iter := 0; iter < opts.MaxIterations; iter++ {

		assign(points, centers, labels)

		for c := range next {
			for d := range next[c] {
				next[c][d] = 0
			}
			counts[c] = 0
		}

		for i, p := range points {
			floats.Add(next[labels[i]], p)
			counts[labels[i]]++
		}

		for c := range next {

			if counts[c] == 0 {
				// an empty cluster takes the point farthest from its centre
				far := farthest(points, centers, labels)
				copy(next[c], points[far])
				labels[far] = c
				continue
			}

			floats.Scale(1/float64(counts[c]), next[c])
		}

		shift := 0.0

		for c := range centers {
			shift = math.Max(shift, sqDist(centers[c], next[c]))
			copy(centers[c], next[c])
		}

		if shift <= eps2 {
			break
		}
	}

	compactness := assign(points, centers, labels)

	return &Result{
		Labels:      labels,
		Centers:     centers,
		Compactness: compactness,
	}
}

// seed picks the initial centres with k-means++
func seed(points [][]float64, k int, rng *rand.Rand) [][]float64 {

	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), points[rng.Intn(len(points))]...))

	d2 := make([]float64, len(points))

	for i, p := range points {
		d2[i] = sqDist(p, centers[0])
	}

	for len(centers) < k {

		total := floats.Sum(d2)
		pick := 0

		if total > 0 {
			r := rng.Float64() * total
			for pick = 0; pick < len(points)-1; pick++ {
				r -= d2[pick]
				if r <= 0 {
					break
				}
			}
		} else {
			pick = rng.Intn(len(points))
		}

		c := append([]float64(nil), points[pick]...)
		centers = append(centers, c)

		for i, p := range points {
			d2[i] = math.Min(d2[i], sqDist(p, c))
		}
	}

	return centers
}

// assign labels every point with its nearest centre and returns the sum of
// squared distances
func assign(points, centers [][]float64, labels []int) float64 {

	var total float64

	for i, p := range points {

		best, bestD := 0, math.Inf(1)

		for c, center := range centers {
			if d := sqDist(p, center); d < bestD {
				best, bestD = c, d
			}
		}

		labels[i] = best
		total += bestD
	}

	return total
}

// farthest returns the point with the largest distance to its centre
func farthest(points, centers [][]float64, labels []int) int {

	far, farD := 0, -1.0

	for i, p := range points {
		if d := sqDist(p, centers[labels[i]]); d > farD {
			far, farD = i, d
		}
	}

	return far
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
