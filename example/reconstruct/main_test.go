package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Len(t, cfg.Data.Cameras, 4)
	assert.Equal(t, 4, cfg.Tracking.Subjects)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestRunReturnsSetupErrors(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	require.NoError(t, os.WriteFile(path, []byte("data:\n  dir: "+dir+"\n"), 0o644))

	// no calibration files exist, run must return instead of exiting
	err := run(options{configFile: path, once: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "calibration of camera 0")

	err = run(options{configFile: filepath.Join(dir, "missing.yml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestLoadModelsMissing(t *testing.T) {

	cfg, err := loadConfig("")
	require.NoError(t, err)

	cfg.Data.Dir = t.TempDir()

	models, ok := loadModels(cfg)
	assert.False(t, ok)
	assert.Nil(t, models)
}
