package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didibib/computer-vision-tracking/pipeline"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []message
	err  error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{subj, data})
	return nil
}

type counter struct {
	pause, back, next int
}

func (c *counter) TogglePause() { c.pause++ }
func (c *counter) Back()        { c.back++ }
func (c *counter) Next()        { c.next++ }

func TestPublish(t *testing.T) {

	conn := &fakeConn{}
	p := NewPublisher(conn, "tracking.persons")

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	snap := &pipeline.Snapshot{
		RunID: "abc",
		Frame: 12,
		Time:  now,
		Persons: []pipeline.PersonRecord{
			{ID: 0, X: 1, Y: 2, Voxels: 30},
			{ID: 1, X: -5, Y: 7, Voxels: 40},
		},
	}

	require.NoError(t, p.Publish(snap))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "tracking.persons", conn.msgs[0].subject)

	var evt Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &evt))

	assert.Equal(t, "abc", evt.RunID)
	assert.Equal(t, 12, evt.Frame)
	assert.True(t, now.Equal(evt.Time))
	assert.Equal(t, []Position{{ID: 0, X: 1, Y: 2, Voxels: 30}, {ID: 1, X: -5, Y: 7, Voxels: 40}}, evt.Persons)
	assert.Equal(t, "nats", p.Name())
	assert.Equal(t, "tracking.persons.control", p.ControlSubject())
	assert.NoError(t, p.Ping())
	assert.NoError(t, p.Close())
}

func TestPublishError(t *testing.T) {

	sentinel := errors.New("down")
	p := NewPublisher(&fakeConn{err: sentinel}, "x")

	err := p.Publish(&pipeline.Snapshot{})
	assert.ErrorIs(t, err, sentinel)

	_, err = p.ListenControls(&counter{})
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {

	c := &counter{}

	tests := []struct {
		cmd     string
		wantErr bool
	}{
		{"pause", false},
		{" NEXT\n", false},
		{"next", false},
		{"back", false},
		{"rewind", true},
		{"", true},
	}

	for _, tt := range tests {
		err := Dispatch(c, []byte(tt.cmd))
		if tt.wantErr {
			assert.Error(t, err, tt.cmd)
		} else {
			assert.NoError(t, err, tt.cmd)
		}
	}

	assert.Equal(t, counter{pause: 1, back: 1, next: 2}, *c)
}
