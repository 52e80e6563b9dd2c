package colormodel

// Vote is the permutation one camera proposes for the current clustering
type Vote struct {
	Camera      int
	Permutation Permutation
	Distance    float64
}

// Decision is the outcome of combining the votes of all cameras
type Decision struct {
	Permutation Permutation
	// Distance is the average distance of the cameras that proposed it
	Distance float64
	// Unanimous is set when every camera proposed the same permutation
	Unanimous bool
	// Votes is the number of cameras that proposed the permutation
	Votes int
}

// Consensus picks the permutation every camera agrees on, or otherwise the
// one with the lowest average distance over the cameras proposing it.  Ties
// go to the permutation proposed first
func Consensus(votes []Vote) Decision {

	if len(votes) == 0 {
		return Decision{}
	}

	type tally struct {
		perm  Permutation
		total float64
		count int
	}

	var tallies []*tally

	for _, v := range votes {

		var found *tally

		for _, t := range tallies {
			if t.perm.Equal(v.Permutation) {
				found = t
				break
			}
		}

		if found == nil {
			found = &tally{perm: v.Permutation}
			tallies = append(tallies, found)
		}

		found.total += v.Distance
		found.count++
	}

	best := tallies[0]

	for _, t := range tallies[1:] {
		if t.total/float64(t.count) < best.total/float64(best.count) {
			best = t
		}
	}

	return Decision{
		Permutation: best.perm.Clone(),
		Distance:    best.total / float64(best.count),
		Unanimous:   len(tallies) == 1,
		Votes:       best.count,
	}
}
