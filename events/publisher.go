// Package events publishes the ground positions of the persons to NATS after
// every cycle and accepts loop commands over NATS.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/didibib/computer-vision-tracking/observability"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// Position of a person on the ground plane
type Position struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Voxels int     `json:"voxels"`
}

// Event is the message published for every cycle
type Event struct {
	RunID      string     `json:"run_id"`
	Frame      int        `json:"frame"`
	Time       time.Time  `json:"time"`
	Degenerate bool       `json:"degenerate"`
	Persons    []Position `json:"persons"`
}

// NewEvent extracts the person positions of a snapshot
func NewEvent(snap *pipeline.Snapshot) Event {

	evt := Event{
		RunID:      snap.RunID,
		Frame:      snap.Frame,
		Time:       snap.Time,
		Degenerate: snap.Degenerate,
		Persons:    make([]Position, len(snap.Persons)),
	}

	for i, p := range snap.Persons {
		evt.Persons[i] = Position{ID: p.ID, X: p.X, Y: p.Y, Voxels: p.Voxels}
	}

	return evt
}

// Conn is the part of a NATS connection the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher is a pipeline renderer sending an Event per snapshot
type Publisher struct {
	conn    Conn
	nc      *nats.Conn
	subject string
}

// NewPublisher publishes on subject over an existing connection
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Connect dials the NATS server at url
func Connect(url, subject string) (*Publisher, error) {

	nc, err := nats.Connect(url,
		nats.Name("vt-tracking"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logrus.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	p := NewPublisher(nc, subject)
	p.nc = nc

	return p, nil
}

// Name identifies the renderer in metrics
func (p *Publisher) Name() string {
	return "nats"
}

// Subject returns the subject events are published on
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish sends the event of a snapshot
func (p *Publisher) Publish(snap *pipeline.Snapshot) error {

	data, err := json.Marshal(NewEvent(snap))

	if err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish event: %w", err)
	}

	observability.EventsPublished.WithLabelValues("ok").Inc()

	return nil
}

// Controls steers the frame loop
type Controls interface {
	TogglePause()
	Back()
	Next()
}

// ControlSubject returns the subject loop commands are received on
func (p *Publisher) ControlSubject() string {
	return p.subject + ".control"
}

// ListenControls dispatches "pause", "back" and "next" messages on the
// control subject to ctl.  It needs a connection made by Connect
func (p *Publisher) ListenControls(ctl Controls) (*nats.Subscription, error) {

	if p.nc == nil {
		return nil, fmt.Errorf("control subscription needs a nats connection")
	}

	sub, err := p.nc.Subscribe(p.ControlSubject(), func(msg *nats.Msg) {
		if err := Dispatch(ctl, msg.Data); err != nil {
			logrus.WithError(err).Warn("loop command ignored")
		}
	})

	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", p.ControlSubject(), err)
	}

	return sub, nil
}

// Dispatch applies a loop command
func Dispatch(ctl Controls, cmd []byte) error {

	switch strings.ToLower(strings.TrimSpace(string(cmd))) {
	case "pause":
		ctl.TogglePause()
	case "back":
		ctl.Back()
	case "next":
		ctl.Next()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

// Ping reports whether the connection is up
func (p *Publisher) Ping() error {

	if p.nc != nil && !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}

	return nil
}

// Close drains the connection made by Connect
func (p *Publisher) Close() error {

	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}
