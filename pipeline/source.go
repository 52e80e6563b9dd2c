package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
)

// FrameSource delivers the frames of one camera in order
type FrameSource interface {
	// FrameCount returns the number of frames of the source
	FrameCount() int
	// Seek positions the source so the next Read returns frame n
	Seek(n int) error
	// Read returns the next frame
	Read() (image.Image, error)
	// Size of the frames
	Size() image.Point
}

type command int

const (
	cmdPause command = iota
	cmdBack
	cmdNext
)

// Loop feeds the pipeline with one frame source per camera.  At the end of
// the sources it starts over from the first frame unless wrapping is off
type Loop struct {
	p        *Pipeline
	sources  []FrameSource
	interval time.Duration
	wrap     bool
	cmds     chan command
	count    int
	frame    int
	paused   bool
}

// LoopOption configures a Loop
type LoopOption func(*Loop)

// WithFPS limits the loop to fps cycles per second, zero runs unthrottled
func WithFPS(fps int) LoopOption {
	return func(l *Loop) {
		if fps > 0 {
			l.interval = time.Duration(float64(time.Second) / float64(fps))
		}
	}
}

// WithoutWrap stops the loop at the end of the sources
func WithoutWrap() LoopOption {
	return func(l *Loop) {
		l.wrap = false
	}
}

// NewLoop creates a loop, sources are in camera order
func NewLoop(p *Pipeline, sources []FrameSource, opts ...LoopOption) (*Loop, error) {

	if len(sources) != len(p.grid.Cameras()) {
		return nil, fmt.Errorf("%w: %d sources for %d cameras",
			ErrCameraCount, len(sources), len(p.grid.Cameras()))
	}

	l := &Loop{
		p:       p,
		sources: sources,
		wrap:    true,
		cmds:    make(chan command, 8),
		count:   -1,
	}

	for _, s := range sources {
		if n := s.FrameCount(); l.count < 0 || n < l.count {
			l.count = n
		}
	}

	if l.count < 1 {
		return nil, errors.New("frame sources are empty")
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// FrameCount returns the number of frames every source can deliver
func (l *Loop) FrameCount() int {
	return l.count
}

// TogglePause pauses or resumes the loop
func (l *Loop) TogglePause() {
	l.send(cmdPause)
}

// Back processes the previous frame again
func (l *Loop) Back() {
	l.send(cmdBack)
}

// Next processes the next frame, also while paused
func (l *Loop) Next() {
	l.send(cmdNext)
}

func (l *Loop) send(c command) {
	select {
	case l.cmds <- c:
	default:
		logrus.Warn("loop command dropped")
	}
}

// Run processes frames until the context is cancelled, the sources end
// without wrapping or a cycle fails
func (l *Loop) Run(ctx context.Context) error {

	var tick <-chan time.Time

	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {

		if l.paused {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case c := <-l.cmds:
				step, err := l.handle(c)
				if err != nil {
					return err
				}
				if !step {
					continue
				}
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case c := <-l.cmds:
				if _, err := l.handle(c); err != nil {
					return err
				}
				continue
			default:
			}

			if tick != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick:
				}
			}
		}

		if l.frame >= l.count {

			if !l.wrap {
				return nil
			}

			if err := l.seek(0); err != nil {
				return err
			}
		}

		if err := l.process(); err != nil {
			return err
		}
	}
}

// handle applies a command and reports whether a frame should be processed
// right away while paused
func (l *Loop) handle(c command) (bool, error) {

	switch c {
	case cmdPause:
		l.paused = !l.paused
		logrus.WithField("paused", l.paused).Info("loop pause toggled")
		return false, nil

	case cmdBack:
		target := l.frame - 2
		if target < 0 {
			target = 0
		}
		return true, l.seek(target)

	case cmdNext:
		return true, nil
	}

	return false, nil
}

// seek repositions every source and resynchronises the pipeline
func (l *Loop) seek(frame int) error {

	for i, s := range l.sources {
		if err := s.Seek(frame); err != nil {
			return fmt.Errorf("seek camera %d to %d: %w", i, frame, err)
		}
	}

	l.p.Seek(frame)
	l.frame = frame

	return nil
}

// process reads one frame of every source and runs a cycle
func (l *Loop) process() error {

	frames := make([]image.Image, len(l.sources))

	for i, s := range l.sources {

		img, err := s.Read()

		if err != nil {
			return fmt.Errorf("read camera %d frame %d: %w", i, l.frame, err)
		}

		frames[i] = img
	}

	if _, err := l.p.Process(l.frame, frames); err != nil {
		return err
	}

	l.frame++

	return nil
}
