package colormodel

import (
	"errors"
	"fmt"
	"math"
)

// lapLarge bounds every cost given to the solver
const lapLarge = 1000000.0

// assignmentCeiling caps chi-square costs so they stay well below lapLarge
const assignmentCeiling = lapLarge / 10

// lap solves the dense linear assignment problem with the Jonker-Volgenant
// algorithm.  x[i] is the column assigned to row i and y[j] the row
// assigned to column j
type lap struct {
	n    int
	cost [][]float64
	x, y []int
	v    []float64
	free []int
}

// solveAssignment returns the minimum cost assignment of rows to columns of
// a square cost matrix
func solveAssignment(cost [][]float64) ([]int, error) {

	n := len(cost)

	for i, row := range cost {
		if len(row) != n {
			return nil, fmt.Errorf("cost row %d has %d columns, expected %d", i, len(row), n)
		}
	}

	if n == 0 {
		return nil, nil
	}

	l := &lap{
		n:    n,
		cost: cost,
		x:    make([]int, n),
		y:    make([]int, n),
		v:    make([]float64, n),
		free: make([]int, n),
	}

	if n == 1 {
		l.x[0] = 0
		return l.x, nil
	}

	free := l.columnReduction()

	for i := 0; free > 0 && i < 2; i++ {
		free = l.augmentingRowReduction(free)
	}

	if free > 0 {
		if err := l.augment(free); err != nil {
			return nil, err
		}
	}

	return l.x, nil
}

// columnReduction performs column reduction and reduction transfer,
// returning the number of unassigned rows
func (l *lap) columnReduction() int {

	n := l.n
	unique := make([]bool, n)

	for i := 0; i < n; i++ {
		l.x[i] = -1
		l.v[i] = lapLarge
		l.y[i] = 0
		unique[i] = true
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := l.cost[i][j]; c < l.v[j] {
				l.v[j] = c
				l.y[j] = i
			}
		}
	}

	for j := n - 1; j >= 0; j-- {
		i := l.y[j]
		if l.x[i] < 0 {
			l.x[i] = j
		} else {
			unique[i] = false
			l.y[j] = -1
		}
	}

	nfree := 0

	for i := 0; i < n; i++ {

		if l.x[i] < 0 {
			l.free[nfree] = i
			nfree++
			continue
		}

		if !unique[i] {
			continue
		}

		j := l.x[i]
		min := lapLarge

		for j2 := 0; j2 < n; j2++ {
			if j2 != j {
				min = math.Min(min, l.cost[i][j2]-l.v[j2])
			}
		}

		l.v[j] -= min
	}

	return nfree
}

// augmentingRowReduction tries to assign the free rows by shifting column
// prices, returning the number of rows still free
func (l *lap) augmentingRowReduction(nfree int) int {

	n := l.n
	current := 0
	newFree := 0
	rounds := 0

	for current < nfree {

		rounds++
		i := l.free[current]
		current++

		j1, u1 := 0, l.cost[i][0]-l.v[0]
		j2, u2 := -1, lapLarge

		for j := 1; j < n; j++ {

			c := l.cost[i][j] - l.v[j]

			if c >= u2 {
				continue
			}

			if c >= u1 {
				u2, j2 = c, j
			} else {
				u2, j2 = u1, j1
				u1, j1 = c, j
			}
		}

		i0 := l.y[j1]
		price := l.v[j1] - (u2 - u1)
		lowers := price < l.v[j1]

		if rounds < current*n {

			if lowers {
				l.v[j1] = price
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = l.y[j2]
			}

			if i0 >= 0 {
				if lowers {
					current--
					l.free[current] = i0
				} else {
					l.free[newFree] = i0
					newFree++
				}
			}

		} else if i0 >= 0 {
			l.free[newFree] = i0
			newFree++
		}

		l.x[i] = j1
		l.y[j1] = i
	}

	return newFree
}

// augment assigns every remaining free row along a shortest augmenting path
func (l *lap) augment(nfree int) error {

	pred := make([]int, l.n)

	for _, start := range l.free[:nfree] {

		j := l.shortestPath(start, pred)

		if j < 0 || j >= l.n {
			return fmt.Errorf("assignment: no augmenting path from row %d", start)
		}

		for steps, i := 0, -1; i != start; steps++ {

			if steps >= l.n {
				return errors.New("assignment: augmenting path does not terminate")
			}

			i = pred[j]
			l.y[j] = i
			j, l.x[i] = l.x[i], j
		}
	}

	return nil
}

// shortestPath runs the Dijkstra like search of the algorithm from a free
// row and returns the free column it reaches
func (l *lap) shortestPath(start int, pred []int) int {

	n := l.n
	lo, hi := 0, 0
	ready := 0
	final := -1
	cols := make([]int, n)
	d := make([]float64, n)

	for j := 0; j < n; j++ {
		cols[j] = j
		pred[j] = start
		d[j] = l.cost[start][j] - l.v[j]
	}

	for final == -1 {

		if lo == hi {

			ready = lo
			hi = l.minimumColumns(lo, d, cols)

			for k := lo; k < hi; k++ {
				if l.y[cols[k]] < 0 {
					final = cols[k]
				}
			}
		}

		if final == -1 {
			final = l.scan(&lo, &hi, d, cols, pred)
		}
	}

	min := d[cols[lo]]

	for k := 0; k < ready; k++ {
		j := cols[k]
		l.v[j] += d[j] - min
	}

	return final
}

// minimumColumns moves the columns with the smallest d to the scan list
// starting at lo and returns the new end of the list
func (l *lap) minimumColumns(lo int, d []float64, cols []int) int {

	hi := lo + 1
	min := d[cols[lo]]

	for k := hi; k < l.n; k++ {

		j := cols[k]

		if d[j] > min {
			continue
		}

		if d[j] < min {
			hi = lo
			min = d[j]
		}

		cols[k] = cols[hi]
		cols[hi] = j
		hi++
	}

	return hi
}

// scan lowers d of the columns still to do through the columns on the scan
// list, returning a free column once one is reached at minimum distance
func (l *lap) scan(lo, hi *int, d []float64, cols, pred []int) int {

	for *lo != *hi {

		j := cols[*lo]
		*lo++
		i := l.y[j]
		min := d[j]
		h := l.cost[i][j] - l.v[j] - min

		for k := *hi; k < l.n; k++ {

			j = cols[k]
			reduced := l.cost[i][j] - l.v[j] - h

			if reduced >= d[j] {
				continue
			}

			d[j] = reduced
			pred[j] = i

			if reduced == min {

				if l.y[j] < 0 {
					return j
				}

				cols[k] = cols[*hi]
				cols[*hi] = j
				*hi++
			}
		}
	}

	return -1
}
