package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrEndOfVideo is returned by Read after the last frame
var ErrEndOfVideo = errors.New("end of video")

// VideoSource reads the frames of a video file.  A buffered source decodes
// the whole file up front so seeking is free
type VideoSource struct {
	path  string
	video *gocv.VideoCapture
	mat   gocv.Mat

	buffer []*image.RGBA
	count  int
	pos    int
	size   image.Point
}

// OpenVideo opens a video file, with buffered set every frame is decoded
// into memory and the file is closed again
func OpenVideo(path string, buffered bool) (*VideoSource, error) {

	video, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}

	s := &VideoSource{
		path:  path,
		video: video,
		mat:   gocv.NewMat(),
		count: int(video.Get(gocv.VideoCaptureFrameCount)),
		size: image.Pt(
			int(video.Get(gocv.VideoCaptureFrameWidth)),
			int(video.Get(gocv.VideoCaptureFrameHeight)),
		),
	}

	if buffered {
		if err := s.bufferVideo(); err != nil {
			s.Close()
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"frames":   s.count,
		"size":     s.size,
		"buffered": buffered,
	}).Debug("video opened")

	return s, nil
}

// bufferVideo reads in the video frames and saves them to a buffer
func (s *VideoSource) bufferVideo() error {

	defer func() {
		s.video.Close()
		s.video = nil
	}()

	for {
		// read the next frame from the video
		if ok := s.video.Read(&s.mat); !ok {
			break
		}

		if s.mat.Empty() {
			continue
		}

		img, err := MatToRGBA(s.mat)

		if err != nil {
			return fmt.Errorf("buffer %s frame %d: %w", s.path, len(s.buffer), err)
		}

		s.buffer = append(s.buffer, img)
	}

	if len(s.buffer) == 0 {
		return fmt.Errorf("video %s has no frames", s.path)
	}

	s.count = len(s.buffer)
	s.size = s.buffer[0].Rect.Size()

	return nil
}

// FrameCount returns the number of frames of the video
func (s *VideoSource) FrameCount() int {
	return s.count
}

// Size returns the frame size
func (s *VideoSource) Size() image.Point {
	return s.size
}

// Seek positions the source so the next Read returns frame n
func (s *VideoSource) Seek(n int) error {

	if n < 0 || n >= s.count {
		return fmt.Errorf("seek %s to frame %d of %d", s.path, n, s.count)
	}

	if s.video != nil {
		s.video.Set(gocv.VideoCapturePosFrames, float64(n))
	}

	s.pos = n

	return nil
}

// Read returns the next frame.  Frames of an unbuffered source are only
// valid until the next Read
func (s *VideoSource) Read() (image.Image, error) {

	if s.pos >= s.count {
		return nil, ErrEndOfVideo
	}

	if s.buffer != nil {
		img := s.buffer[s.pos]
		s.pos++
		return img, nil
	}

	if ok := s.video.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("read %s frame %d: %w", s.path, s.pos, ErrEndOfVideo)
	}

	s.pos++

	return MatToRGBA(s.mat)
}

// Close releases the capture device and buffers
func (s *VideoSource) Close() error {

	if s.video != nil {
		s.video.Close()
		s.video = nil
	}

	s.buffer = nil

	return s.mat.Close()
}
