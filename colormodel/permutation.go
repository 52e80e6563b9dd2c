package colormodel

import (
	"fmt"
	"strings"
)

// MaxPermutationSubjects is the largest subject count the exhaustive search
// accepts, 8! permutations
const MaxPermutationSubjects = 8

// Permutation pairs persons with cluster labels, p[person] = label
type Permutation []int

// Identity returns the permutation pairing person i with label i
func Identity(k int) Permutation {

	p := make(Permutation, k)

	for i := range p {
		p[i] = i
	}

	return p
}

// Inverse returns the permutation mapping labels back to persons
func (p Permutation) Inverse() Permutation {

	inv := make(Permutation, len(p))

	for person, label := range p {
		inv[label] = person
	}

	return inv
}

// Equal reports whether both permutations are the same
func (p Permutation) Equal(o Permutation) bool {

	if len(p) != len(o) {
		return false
	}

	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}

	return true
}

// Clone returns a copy of the permutation
func (p Permutation) Clone() Permutation {
	return append(Permutation(nil), p...)
}

// Valid reports whether p holds every label of [0,len(p)) exactly once
func (p Permutation) Valid() bool {

	seen := make([]bool, len(p))

	for _, l := range p {
		if l < 0 || l >= len(p) || seen[l] {
			return false
		}
		seen[l] = true
	}

	return true
}

// String formats the permutation as "0-2-1"
func (p Permutation) String() string {

	parts := make([]string, len(p))

	for i, l := range p {
		parts[i] = fmt.Sprint(l)
	}

	return strings.Join(parts, "-")
}

// Permutations returns every permutation of k elements in lexicographic
// order, starting with the identity
func Permutations(k int) []Permutation {

	if k < 1 {
		return nil
	}

	var out []Permutation

	p := Identity(k)
	out = append(out, p.Clone())

	for nextPermutation(p) {
		out = append(out, p.Clone())
	}

	return out
}

// nextPermutation rearranges p into its lexicographic successor, returning
// false once p is the last permutation
func nextPermutation(p Permutation) bool {

	i := len(p) - 2

	for i >= 0 && p[i] >= p[i+1] {
		i--
	}

	if i < 0 {
		return false
	}

	j := len(p) - 1

	for p[j] <= p[i] {
		j--
	}

	p[i], p[j] = p[j], p[i]

	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}

	return true
}

// Strategy selects how histograms are matched
type Strategy int

const (
	// Exhaustive scores every permutation, limited to MaxPermutationSubjects
	Exhaustive Strategy = iota
	// Assignment solves the matching as a linear assignment problem
	Assignment
)

// ParseStrategy converts a configuration value to a Strategy
func ParseStrategy(s string) (Strategy, error) {

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exhaustive":
		return Exhaustive, nil
	case "assignment", "lapjv":
		return Assignment, nil
	}

	return Exhaustive, fmt.Errorf("unknown matching strategy: %s", s)
}

func (s Strategy) String() string {

	if s == Assignment {
		return "assignment"
	}

	return "exhaustive"
}

// Matcher finds the permutation pairing reference histograms with candidate
// histograms at the lowest total chi-square distance
type Matcher struct {
	k        int
	strategy Strategy
	perms    []Permutation
}

// NewMatcher creates a matcher for k subjects
func NewMatcher(k int, strategy Strategy) (*Matcher, error) {

	if k < 1 {
		return nil, fmt.Errorf("invalid subject count %d", k)
	}

	m := &Matcher{
		k:        k,
		strategy: strategy,
	}

	if strategy == Exhaustive {

		if k > MaxPermutationSubjects {
			return nil, fmt.Errorf("%w: %d > %d, use the assignment strategy",
				ErrTooManySubjects, k, MaxPermutationSubjects)
		}

		m.perms = Permutations(k)
	}

	return m, nil
}

// Subjects returns the number of subjects the matcher pairs
func (m *Matcher) Subjects() int {
	return m.k
}

// Match returns the permutation p minimising the sum over persons i of
// ref[i].Compare(cand[p[i]]) together with that sum.  With the exhaustive
// strategy the first minimum in lexicographic order wins
func (m *Matcher) Match(ref, cand []*Histogram) (Permutation, float64, error) {

	if len(ref) != m.k || len(cand) != m.k {
		return nil, 0, fmt.Errorf("%w: %d references and %d candidates for %d subjects",
			ErrModelCount, len(ref), len(cand), m.k)
	}

	cost := make([][]float64, m.k)

	for i := range cost {
		cost[i] = make([]float64, m.k)
		for j := range cost[i] {
			cost[i][j] = ref[i].Compare(cand[j])
		}
	}

	if m.strategy == Assignment {
		return m.assign(cost)
	}

	var best Permutation
	bestD := 0.0

	for _, p := range m.perms {

		d := score(cost, p)

		if best == nil || d < bestD {
			best, bestD = p, d
		}
	}

	return best.Clone(), bestD, nil
}

// assign solves the matching with the assignment solver
func (m *Matcher) assign(cost [][]float64) (Permutation, float64, error) {

	capped := make([][]float64, len(cost))

	for i, row := range cost {
		capped[i] = make([]float64, len(row))
		for j, c := range row {
			if c > assignmentCeiling {
				c = assignmentCeiling
			}
			capped[i][j] = c
		}
	}

	x, err := solveAssignment(capped)

	if err != nil {
		return nil, 0, err
	}

	p := Permutation(x)

	return p, score(cost, p), nil
}

// score sums the cost of pairing row i with column p[i]
func score(cost [][]float64, p Permutation) float64 {

	var d float64

	for i, j := range p {
		d += cost[i][j]
	}

	return d
}
