// Package tracker keeps the ground plane history of every person and smooths
// it with a constant velocity Kalman filter.
package tracker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Point is a position on the ground plane in world units
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Track represents a track history
type Track struct {
	points   []Point
	smoothed []Point
	state    *State
}

// Trail is the struct to keep a history of person positions used for
// drawing a trail
type Trail struct {
	// size is the maximum number of most recent points to keep in history
	size int
	// history of tracked points per person id
	history map[int]*Track
	filter  *KalmanFilter
	sync.Mutex
}

// NewTrail returns a new trail history instance.  Size is the number of most
// recent positions to keep and specifies the maximum length of the trail
func NewTrail(size int) *Trail {

	if size < 1 {
		size = 1
	}

	return &Trail{
		size:    size,
		history: make(map[int]*Track),
		filter:  NewKalmanFilter(10, 5, 40),
	}
}

// Reset clears all history
func (t *Trail) Reset() {
	t.Lock()
	defer t.Unlock()

	t.history = make(map[int]*Track)
}

// Add a position to the history of a person
func (t *Trail) Add(id int, p Point) {
	t.Lock()
	defer t.Unlock()

	// init map if no history exists yet for the person
	track, exists := t.history[id]

	if !exists {
		track = &Track{state: t.filter.Initiate(p.X, p.Y)}
		t.history[id] = track
	} else {
		t.filter.Predict(track.state)

		if err := t.filter.Update(track.state, p.X, p.Y); err != nil {
			logrus.WithError(err).WithField("person", id).Warn("trail smoothing reset")
			track.state = t.filter.Initiate(p.X, p.Y)
		}
	}

	x, y := track.state.Position()

	track.points = append(track.points, p)
	track.smoothed = append(track.smoothed, Point{X: x, Y: y})

	// check if history is exceeded and drop oldest point
	if len(track.points) > t.size {
		track.points = track.points[1:]
		track.smoothed = track.smoothed[1:]
	}
}

// GetPoints gets a copy of the measured history of a person
func (t *Trail) GetPoints(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		return append([]Point(nil), track.points...)
	}

	// no history yet
	return nil
}

// GetSmoothed gets a copy of the filtered history of a person
func (t *Trail) GetSmoothed(id int) []Point {
	t.Lock()
	defer t.Unlock()

	if track, exists := t.history[id]; exists {
		return append([]Point(nil), track.smoothed...)
	}

	return nil
}

// IDs returns the ids of all persons with a history in ascending order
func (t *Trail) IDs() []int {
	t.Lock()
	defer t.Unlock()

	ids := make([]int, 0, len(t.history))

	for id := range t.history {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}
