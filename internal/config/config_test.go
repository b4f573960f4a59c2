package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigFile, EnvAPIURL, EnvTokenFile, EnvCameraDevice, EnvModelPath,
		EnvPollInterval, EnvConfirmFrames, EnvSubmitTimeout, EnvListen, EnvLogLevel,
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.ConfirmFrames)
	assert.Equal(t, DefaultSubmitTimeout, cfg.SubmitTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "attend.yaml")
	yml := "api_url: http://backend:9000\npoll_interval: 250ms\nconfirm_frames: 6\ncamera_device: \"2\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv(EnvConfirmFrames, "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.APIURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 12, cfg.ConfirmFrames, "env overrides file")
	assert.Equal(t, "2", cfg.CameraDevice)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "attend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9999\"\n"), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
}

func TestLoad_BadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad interval", EnvPollInterval, "soon"},
		{"zero interval", EnvPollInterval, "0s"},
		{"bad frames", EnvConfirmFrames, "ten"},
		{"zero frames", EnvConfirmFrames, "0"},
		{"negative timeout", EnvSubmitTimeout, "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
