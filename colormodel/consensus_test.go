package colormodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsensus(t *testing.T) {

	tests := []struct {
		name      string
		votes     []Vote
		want      Permutation
		distance  float64
		unanimous bool
	}{
		{
			name: "unanimous",
			votes: []Vote{
				{Camera: 0, Permutation: Permutation{1, 0}, Distance: 1},
				{Camera: 1, Permutation: Permutation{1, 0}, Distance: 3},
			},
			want:      Permutation{1, 0},
			distance:  2,
			unanimous: true,
		},
		{
			name: "lowest average beats majority",
			votes: []Vote{
				{Camera: 0, Permutation: Permutation{0, 1}, Distance: 4},
				{Camera: 1, Permutation: Permutation{0, 1}, Distance: 6},
				{Camera: 2, Permutation: Permutation{1, 0}, Distance: 3},
			},
			want:     Permutation{1, 0},
			distance: 3,
		},
		{
			name: "tie goes to first proposed",
			votes: []Vote{
				{Camera: 0, Permutation: Permutation{1, 0}, Distance: 2},
				{Camera: 1, Permutation: Permutation{0, 1}, Distance: 1},
				{Camera: 2, Permutation: Permutation{0, 1}, Distance: 3},
			},
			want:     Permutation{1, 0},
			distance: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Consensus(tt.votes)

			assert.Equal(t, tt.want, d.Permutation)
			assert.InDelta(t, tt.distance, d.Distance, 1e-12)
			assert.Equal(t, tt.unanimous, d.Unanimous)
		})
	}

	assert.Nil(t, Consensus(nil).Permutation)
}
