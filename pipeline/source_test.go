package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stillSource replays the same frame count times
type stillSource struct {
	frame image.Image
	count int
	pos   int
	seeks []int
}

func (s *stillSource) FrameCount() int { return s.count }

func (s *stillSource) Size() image.Point { return s.frame.Bounds().Size() }

func (s *stillSource) Seek(n int) error {
	if n < 0 || n >= s.count {
		return errors.New("seek out of range")
	}
	s.pos = n
	s.seeks = append(s.seeks, n)
	return nil
}

func (s *stillSource) Read() (image.Image, error) {
	if s.pos >= s.count {
		return nil, errors.New("end of stream")
	}
	s.pos++
	return s.frame, nil
}

func stillSources(frames []image.Image, count int) ([]FrameSource, []*stillSource) {

	srcs := make([]FrameSource, len(frames))
	still := make([]*stillSource, len(frames))

	for i, f := range frames {
		still[i] = &stillSource{frame: f, count: count}
		srcs[i] = still[i]
	}

	return srcs, still
}

func TestLoopRunsToEnd(t *testing.T) {

	views := rig(t)
	rec := &recorder{}

	p, err := New(sceneGrid(t, views), testConfig(), WithRenderers(rec))
	require.NoError(t, err)

	srcs, _ := stillSources(renderAll(views, subjects()), 3)

	l, err := NewLoop(p, srcs, WithoutWrap())
	require.NoError(t, err)
	assert.Equal(t, 3, l.FrameCount())

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, rec.snaps, 3)

	for i, s := range rec.snaps {
		assert.Equal(t, i, s.Frame)
	}
}

func TestLoopWrapsAround(t *testing.T) {

	views := rig(t)
	rec := &recorder{}

	p, err := New(sceneGrid(t, views), testConfig(), WithRenderers(rec))
	require.NoError(t, err)

	srcs, still := stillSources(renderAll(views, subjects()), 2)

	l, err := NewLoop(p, srcs)
	require.NoError(t, err)

	// each cycle takes a while, stop once the first wrap has been processed
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- l.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.snaps) >= 3
	}, 30*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	for _, s := range still {
		assert.Contains(t, s.seeks, 0)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{0, 1, 0}, []int{rec.snaps[0].Frame, rec.snaps[1].Frame, rec.snaps[2].Frame})
}

func TestLoopErrors(t *testing.T) {

	views := rig(t)

	p, err := New(sceneGrid(t, views), testConfig())
	require.NoError(t, err)

	frames := renderAll(views, nil)

	srcs, _ := stillSources(frames[:3], 2)
	_, err = NewLoop(p, srcs)
	assert.ErrorIs(t, err, ErrCameraCount)

	srcs, _ = stillSources(frames, 0)
	_, err = NewLoop(p, srcs)
	assert.Error(t, err)
}
