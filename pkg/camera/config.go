package camera

import "fmt"

// Config holds capture parameters for a local camera.
type Config struct {
	Device    string `json:"device" yaml:"device"`       // index ("0") or device path
	Width     int    `json:"width" yaml:"width"`         // requested frame width in pixels
	Height    int    `json:"height" yaml:"height"`       // requested frame height in pixels
	Framerate int    `json:"framerate" yaml:"framerate"` // requested FPS

	// PreviewQuality is the JPEG quality used for detection and preview frames.
	PreviewQuality int `json:"preview_quality" yaml:"preview_quality"`

	// StillFormat selects the still encoding: FormatJPEG or FormatPNG.
	StillFormat string `json:"still_format" yaml:"still_format"`

	// StillQuality is the JPEG quality for stills (ignored for PNG).
	StillQuality int `json:"still_quality" yaml:"still_quality"`

	// WarmupFrames are read and discarded after open so auto exposure settles.
	WarmupFrames int `json:"warmup_frames" yaml:"warmup_frames"`
}

// DefaultConfig returns a 1280x720 user-facing webcam setup.
// Stills are JPEG at quality 95, which the backend accepts as near-lossless.
func DefaultConfig() Config {
	return Config{
		Device:         "0",
		Width:          1280,
		Height:         720,
		Framerate:      30,
		PreviewQuality: 80,
		StillFormat:    FormatJPEG,
		StillQuality:   95,
		WarmupFrames:   5,
	}
}

// LowResConfig returns a 640x480 setup for slow hardware.
func LowResConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.PreviewQuality = 70
	return cfg
}

// LosslessConfig returns the default setup with PNG stills.
func LosslessConfig() Config {
	cfg := DefaultConfig()
	cfg.StillFormat = FormatPNG
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}
	if c.Width < 160 || c.Width > 4096 {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > 2160 {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.PreviewQuality < 1 || c.PreviewQuality > 100 {
		errors = append(errors, "preview_quality must be between 1 and 100")
	}
	if c.StillFormat != FormatJPEG && c.StillFormat != FormatPNG {
		errors = append(errors, fmt.Sprintf("still_format must be %s or %s", FormatJPEG, FormatPNG))
	}
	if c.StillFormat == FormatJPEG && (c.StillQuality < 1 || c.StillQuality > 100) {
		errors = append(errors, "still_quality must be between 1 and 100")
	}
	if c.WarmupFrames < 0 {
		errors = append(errors, "warmup_frames must not be negative")
	}

	return errors
}
