// Package config loads the reconstruction settings from YAML with VT_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/didibib/computer-vision-tracking/cluster"
	"github.com/didibib/computer-vision-tracking/voxel"
)

type Config struct {
	Data     DataConfig       `yaml:"data"`
	Grid     voxel.GridConfig `yaml:"grid"`
	Tracking TrackingConfig   `yaml:"tracking"`
	Workers  WorkersConfig    `yaml:"workers"`
	Viewer   ViewerConfig     `yaml:"viewer"`
	NATS     NATSConfig       `yaml:"nats"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// DataConfig locates the per camera directories and the cached state.  Each
// camera directory holds the calibration, the recording and the background
// recording under the file names given here
type DataConfig struct {
	Dir          string   `yaml:"dir"`
	Cameras      []string `yaml:"cameras"`
	Calibration  string   `yaml:"calibration"`
	Video        string   `yaml:"video"`
	Background   string   `yaml:"background"`
	Checkerboard string   `yaml:"checkerboard"`
	Palette      string   `yaml:"palette"`
	Models       string   `yaml:"models"`
	TrailPlot    string   `yaml:"trail_plot"`
}

// CameraDir returns the directory of camera i
func (d DataConfig) CameraDir(i int) string {
	return filepath.Join(d.Dir, d.Cameras[i])
}

// CameraFile returns name inside the directory of camera i
func (d DataConfig) CameraFile(i int, name string) string {
	return filepath.Join(d.CameraDir(i), name)
}

// ModelFile returns the colour model set path of camera i
func (d DataConfig) ModelFile(i int) string {
	return filepath.Join(d.Dir, d.Models, d.Cameras[i]+".yml")
}

// Path resolves a data relative path
func (d DataConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

type TrackingConfig struct {
	Subjects      int     `yaml:"subjects"`
	Attempts      int     `yaml:"attempts"`
	Epsilon       float64 `yaml:"epsilon"`
	Iterations    int     `yaml:"iterations"`
	Seed          int64   `yaml:"seed"`
	Strategy      string  `yaml:"strategy"`
	SampleRadius  int     `yaml:"sample_radius"`
	PaletteSize   int     `yaml:"palette_size"`
	TrailLength   int     `yaml:"trail_length"`
	ModelFrame    int     `yaml:"model_frame"`
	PaletteCamera int     `yaml:"palette_camera"`
}

// ClusterOptions returns the k-means options of the tracking section
func (t TrackingConfig) ClusterOptions() cluster.Options {
	return cluster.Options{
		Attempts:      t.Attempts,
		MaxIterations: t.Iterations,
		Epsilon:       t.Epsilon,
		Seed:          t.Seed,
	}
}

type WorkersConfig struct {
	Count    int   `yaml:"count"`
	CPUCores []int `yaml:"cpu_cores"`
}

type ViewerConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if len(cfg.Data.Cameras) == 0 {
		cfg.Data.Cameras = []string{"cam1", "cam2", "cam3", "cam4"}
	}
	if cfg.Data.Calibration == "" {
		cfg.Data.Calibration = "calibration.yml"
	}
	if cfg.Data.Video == "" {
		cfg.Data.Video = "video.avi"
	}
	if cfg.Data.Background == "" {
		cfg.Data.Background = "background.avi"
	}
	if cfg.Data.Checkerboard == "" {
		cfg.Data.Checkerboard = "checkerboard.yml"
	}
	if cfg.Data.Palette == "" {
		cfg.Data.Palette = "palette.yml"
	}
	if cfg.Data.Models == "" {
		cfg.Data.Models = "models"
	}
	if cfg.Data.TrailPlot == "" {
		cfg.Data.TrailPlot = "trails.png"
	}
	if cfg.Grid.Height == 0 {
		cfg.Grid.Height = 3072
	}
	if cfg.Grid.Step == 0 {
		cfg.Grid.Step = 64
	}
	if cfg.Tracking.Subjects == 0 {
		cfg.Tracking.Subjects = 4
	}
	if cfg.Tracking.Attempts == 0 {
		cfg.Tracking.Attempts = 5
	}
	if cfg.Tracking.Iterations == 0 {
		cfg.Tracking.Iterations = 100
	}
	if cfg.Tracking.Epsilon == 0 {
		cfg.Tracking.Epsilon = 0.1
	}
	if cfg.Tracking.Seed == 0 {
		cfg.Tracking.Seed = 1
	}
	if cfg.Tracking.Strategy == "" {
		cfg.Tracking.Strategy = "exhaustive"
	}
	if cfg.Tracking.SampleRadius == 0 {
		cfg.Tracking.SampleRadius = 2
	}
	if cfg.Tracking.PaletteSize == 0 {
		cfg.Tracking.PaletteSize = 9
	}
	if cfg.Tracking.TrailLength == 0 {
		cfg.Tracking.TrailLength = 500
	}
	if cfg.Viewer.Addr == "" {
		cfg.Viewer.Addr = ":8080"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "tracking.persons"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("VT_CAMERAS"); v != "" {
		cfg.Data.Cameras = strings.Split(v, ",")
	}
	if v := os.Getenv("VT_GRID_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Grid.Height = n
		}
	}
	if v := os.Getenv("VT_GRID_STEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Grid.Step = n
		}
	}
	if v := os.Getenv("VT_SUBJECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tracking.Subjects = n
		}
	}
	if v := os.Getenv("VT_STRATEGY"); v != "" {
		cfg.Tracking.Strategy = v
	}
	if v := os.Getenv("VT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers.Count = n
		}
	}
	if v := os.Getenv("VT_VIEWER_ADDR"); v != "" {
		cfg.Viewer.Addr = v
	}
	if v := os.Getenv("VT_VIEWER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Viewer.Enabled = b
		}
	}
	if v := os.Getenv("VT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("VT_NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	if v := os.Getenv("VT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
