// Package viewer serves the labelled reconstruction to browsers: snapshots
// over a websocket, camera frames with overlays as MJPEG streams and the
// loop controls.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/didibib/computer-vision-tracking/observability"
	"github.com/didibib/computer-vision-tracking/pipeline"
)

// Controls steers the frame loop
type Controls interface {
	TogglePause()
	Back()
	Next()
}

// Encoder turns a snapshot into JPEG images
type Encoder interface {
	// JPEG returns the frame of camera cam with the snapshot drawn on it
	JPEG(snap *pipeline.Snapshot, cam int) ([]byte, error)
}

// TopViewFunc returns the top view of a snapshot as JPEG
type TopViewFunc func(snap *pipeline.Snapshot, size int) ([]byte, error)

// Config of a Server
type Config struct {
	Addr     string
	Cameras  int
	Encoder  Encoder
	TopView  TopViewFunc
	Controls Controls
}

// Server is a pipeline renderer serving every published snapshot
type Server struct {
	cfg Config
	hub *Hub
	srv *http.Server

	mu      sync.RWMutex
	last    *pipeline.Snapshot
	changed chan struct{}
}

// NewServer creates a server, Start runs it
func NewServer(cfg Config) *Server {

	s := &Server{
		cfg:     cfg,
		hub:     NewHub(),
		changed: make(chan struct{}),
	}

	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Router(),
	}

	return s
}

// Name identifies the renderer in metrics
func (s *Server) Name() string {
	return "viewer"
}

// SetControls sets the loop steered by the control endpoints, call it
// before Start
func (s *Server) SetControls(ctl Controls) {
	s.cfg.Controls = ctl
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish stores the snapshot, broadcasts it to websocket clients and wakes
// the MJPEG streams
func (s *Server) Publish(snap *pipeline.Snapshot) error {

	data, err := json.Marshal(snap)

	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	s.last = snap
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	if !s.hub.Broadcast(data) {
		logrus.WithField("frame", snap.Frame).Debug("ws broadcast queue full, snapshot dropped")
	}

	return nil
}

// latest returns the last snapshot and a channel closed on the next Publish
func (s *Server) latest() (*pipeline.Snapshot, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last, s.changed
}

// Router returns the HTTP routes of the server
func (s *Server) Router() *gin.Engine {

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware())
	r.Use(cors.Default())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.hub.HandleWS)
	r.GET("/snapshot", s.snapshot)
	r.GET("/stream/:cam", s.stream)
	r.GET("/topview.jpg", s.topView)

	ctl := r.Group("/control")
	ctl.POST("/pause", s.control(func(c Controls) { c.TogglePause() }))
	ctl.POST("/back", s.control(func(c Controls) { c.Back() }))
	ctl.POST("/next", s.control(func(c Controls) { c.Next() }))

	return r
}

// Start serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {

	go s.hub.Run()
	defer s.hub.Stop()

	errCh := make(chan error, 1)

	go func() {
		logrus.WithField("addr", s.cfg.Addr).Info("viewer listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown viewer: %w", err)
		}

		return nil
	}
}

func (s *Server) healthz(c *gin.Context) {

	last, _ := s.latest()
	frame := -1

	if last != nil {
		frame = last.Frame
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"frame":   frame,
		"clients": s.hub.Clients(),
	})
}

func (s *Server) snapshot(c *gin.Context) {

	last, _ := s.latest()

	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	}

	c.JSON(http.StatusOK, last)
}

func (s *Server) control(fn func(Controls)) gin.HandlerFunc {
	return func(c *gin.Context) {

		if s.cfg.Controls == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "loop controls unavailable"})
			return
		}

		fn(s.cfg.Controls)
		c.Status(http.StatusAccepted)
	}
}

func (s *Server) topView(c *gin.Context) {

	last, _ := s.latest()

	if last == nil || s.cfg.TopView == nil {
		c.Status(http.StatusNotFound)
		return
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "512"))

	if err != nil || size < 16 || size > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return
	}

	data, err := s.cfg.TopView(last, size)

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// stream writes the overlay of a camera for every published snapshot as a
// multipart MJPEG stream
func (s *Server) stream(c *gin.Context) {

	cam, err := strconv.Atoi(c.Param("cam"))

	if err != nil || cam < 0 || cam >= s.cfg.Cameras || s.cfg.Encoder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown camera"})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request.Context()
	last, changed := s.latest()

	for {
		if last != nil {

			data, err := s.cfg.Encoder.JPEG(last, cam)

			if err != nil {
				logrus.WithError(err).WithField("camera", cam).Warn("encode stream frame")
			} else {
				w.Write([]byte("--frame\r\n"))
				w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
				w.Write(data)
				w.Write([]byte("\r\n"))
				w.Flush()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
			last, changed = s.latest()
		}
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {

		start := time.Now()
		path := c.FullPath()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": duration.String(),
			"ip":       c.ClientIP(),
		}).Debug("request")

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(status),
		).Observe(duration.Seconds())
	}
}
