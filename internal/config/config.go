// Package config provides configuration for go-attend commands.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// then environment variables (a .env file in the working directory is
// loaded first when present).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAPIURL        = "http://localhost:8000"
	DefaultCameraDevice  = "0"
	DefaultModelPath     = "models/face_detection_yunet.onnx"
	DefaultPollInterval  = 200 * time.Millisecond
	DefaultConfirmFrames = 10
	DefaultSubmitTimeout = 15 * time.Second
	DefaultListen        = ":8090"
	DefaultLogLevel      = "info"
)

// Environment variable names.
const (
	EnvConfigFile    = "ATTEND_CONFIG"
	EnvAPIURL        = "ATTEND_API_URL"
	EnvTokenFile     = "ATTEND_TOKEN_FILE"
	EnvCameraDevice  = "ATTEND_CAMERA_DEVICE"
	EnvModelPath     = "ATTEND_MODEL_PATH"
	EnvPollInterval  = "ATTEND_POLL_INTERVAL"
	EnvConfirmFrames = "ATTEND_CONFIRM_FRAMES"
	EnvSubmitTimeout = "ATTEND_SUBMIT_TIMEOUT"
	EnvListen        = "ATTEND_LISTEN"
	EnvLogLevel      = "LOG_LEVEL"
)

// Config holds everything a kiosk or CLI invocation needs.
type Config struct {
	APIURL        string        `yaml:"api_url"`
	TokenFile     string        `yaml:"token_file"`
	CameraDevice  string        `yaml:"camera_device"`
	ModelPath     string        `yaml:"model_path"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	ConfirmFrames int           `yaml:"confirm_frames"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	Listen        string        `yaml:"listen"`
	LogLevel      string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		TokenFile:     DefaultTokenFile(),
		CameraDevice:  DefaultCameraDevice,
		ModelPath:     DefaultModelPath,
		PollInterval:  DefaultPollInterval,
		ConfirmFrames: DefaultConfirmFrames,
		SubmitTimeout: DefaultSubmitTimeout,
		Listen:        DefaultListen,
		LogLevel:      DefaultLogLevel,
	}
}

// DefaultTokenFile returns ~/.config/go-attend/token, or a relative
// path when the home directory cannot be resolved.
func DefaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".attend-token"
	}
	return filepath.Join(dir, "go-attend", "token")
}

// LoadDotEnv loads .env from the working directory.
// A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load resolves the configuration. path may be empty, in which case
// ATTEND_CONFIG is consulted.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvTokenFile); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv(EnvCameraDevice); v != "" {
		c.CameraDevice = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}

	var err error
	if c.PollInterval, err = envDuration(EnvPollInterval, c.PollInterval); err != nil {
		return err
	}
	if c.SubmitTimeout, err = envDuration(EnvSubmitTimeout, c.SubmitTimeout); err != nil {
		return err
	}
	if v := os.Getenv(EnvConfirmFrames); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfirmFrames, err)
		}
		c.ConfirmFrames = n
	}
	return nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Validate checks that the resolved values are usable.
func (c Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("api_url is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.ConfirmFrames < 1 {
		errs = append(errs, errors.New("confirm_frames must be at least 1"))
	}
	if c.SubmitTimeout <= 0 {
		errs = append(errs, errors.New("submit_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
