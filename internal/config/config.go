package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/property"
)

// CameraConfig holds the initial capture settings and device knobs.
// Type selects a concrete implementation ("raspistill" or "mock").
type CameraConfig struct {
	Type            string  `yaml:"type"`              // e.g., "raspistill"
	Resolution      string  `yaml:"resolution"`        // WxH, e.g. "800x600"
	Framerate       float64 `yaml:"framerate"`         // target captures per second
	Rotation        int     `yaml:"rotation"`          // 0, 90, 180, 270
	ShutterSpeed    int     `yaml:"shutter_speed"`     // microseconds, 0 = auto
	SensorMode      int     `yaml:"sensor_mode"`       // firmware sensor mode, 0 = auto
	ExposureMode    string  `yaml:"exposure_mode"`     // picamera exposure mode
	ISO             int     `yaml:"iso"`               // 0 = auto
	JPEGQuality     int     `yaml:"jpeg_quality"`      // 1-100
	FastCapture     bool    `yaml:"fast_capture"`      // shorter per-shot delay, noisier
	Binary          string  `yaml:"binary"`            // capture binary override
	CaptureTimeoutS int     `yaml:"capture_timeout_s"` // hard deadline per capture
}

// SensorsConfig describes the optional SI7021 temperature/humidity
// sensor.
type SensorsConfig struct {
	SI7021Enabled   bool   `yaml:"si7021_enabled"`
	UpdateIntervalS int    `yaml:"update_interval_s"`
	I2CBus          string `yaml:"i2c_bus"` // device node, e.g. "/dev/i2c-1"
	MockBus         bool   `yaml:"mock_bus"`
}

// StatusLEDConfig describes the optional health LED.
type StatusLEDConfig struct {
	Enabled  bool `yaml:"enabled"`
	Pin      int  `yaml:"pin"`       // BCM pin number
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (dev/test)
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	DebugLevel     int `yaml:"debug_level"`      // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	FaultBackoffMs int `yaml:"fault_backoff_ms"` // wait after a device fault
	WarmupS        int `yaml:"warmup_s"`         // camera firmware calibration window
}

// Config aggregates all application configuration.
type Config struct {
	Name      string          `yaml:"name"` // web thing name
	Port      int             `yaml:"port"` // HTTP listen port
	Camera    CameraConfig    `yaml:"camera"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	StatusLED StatusLEDConfig `yaml:"status_led"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Default returns the built-in configuration used when no config file
// exists.
func Default() *Config {
	return &Config{
		Name: "PiCamera",
		Port: 8888,
		Camera: CameraConfig{
			Type:            "raspistill",
			Resolution:      "800x600",
			Framerate:       1.0,
			Rotation:        0,
			ShutterSpeed:    0,
			SensorMode:      0,
			ExposureMode:    "auto",
			ISO:             0,
			JPEGQuality:     10,
			CaptureTimeoutS: 60,
		},
		Sensors: SensorsConfig{
			SI7021Enabled:   false,
			UpdateIntervalS: 30,
			I2CBus:          "/dev/i2c-1",
		},
		Defaults: DefaultsConfig{
			DebugLevel:     1,
			FaultBackoffMs: 3000,
			WarmupS:        3,
		},
	}
}

// Load reads a YAML file and returns the configuration. A missing file
// is not an error: the built-in defaults are used, matching the
// behavior of a freshly installed device.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", c.Port)
	}
	if c.Camera.Type == "" {
		c.Camera.Type = "raspistill"
	}
	if _, err := camera.ParseResolution(c.Camera.Resolution); err != nil {
		return fmt.Errorf("camera.resolution: %w", err)
	}
	maxRate := maxFrameRate()
	if c.Camera.Framerate <= 0 || c.Camera.Framerate > maxRate {
		return fmt.Errorf("camera.framerate must be in (0, %.1f], got %g", maxRate, c.Camera.Framerate)
	}
	switch c.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera.rotation must be 0, 90, 180 or 270, got %d", c.Camera.Rotation)
	}
	if c.Camera.ShutterSpeed < 0 {
		return fmt.Errorf("camera.shutter_speed must be >= 0, got %d", c.Camera.ShutterSpeed)
	}
	if c.Camera.SensorMode < 0 || c.Camera.SensorMode > 7 {
		return fmt.Errorf("camera.sensor_mode must be 0-7, got %d", c.Camera.SensorMode)
	}
	if !containsString(camera.ExposureModes, c.Camera.ExposureMode) {
		return fmt.Errorf("camera.exposure_mode %q is not a known mode", c.Camera.ExposureMode)
	}
	if !containsInt(camera.ISOValues, c.Camera.ISO) {
		return fmt.Errorf("camera.iso %d is not an allowed value", c.Camera.ISO)
	}
	if c.Camera.JPEGQuality <= 0 || c.Camera.JPEGQuality > 100 {
		c.Camera.JPEGQuality = 10
	}
	if c.Camera.CaptureTimeoutS <= 0 {
		c.Camera.CaptureTimeoutS = 60
	}
	if c.Sensors.UpdateIntervalS <= 0 {
		c.Sensors.UpdateIntervalS = 30
	}
	if c.Sensors.I2CBus == "" {
		c.Sensors.I2CBus = "/dev/i2c-1"
	}
	if c.StatusLED.Enabled && c.StatusLED.Pin <= 0 {
		return fmt.Errorf("status_led.pin is required when the LED is enabled")
	}
	if c.Defaults.FaultBackoffMs <= 0 {
		c.Defaults.FaultBackoffMs = 3000
	}
	if c.Defaults.WarmupS < 0 {
		c.Defaults.WarmupS = 0
	}
	return nil
}

// Settings converts the configured camera block into the initial
// settings snapshot.
func (c *Config) Settings() (camera.Settings, error) {
	res, err := camera.ParseResolution(c.Camera.Resolution)
	if err != nil {
		return camera.Settings{}, err
	}
	return camera.Settings{
		Resolution:   res,
		FrameRate:    c.Camera.Framerate,
		Rotation:     c.Camera.Rotation,
		ShutterSpeed: c.Camera.ShutterSpeed,
		SensorMode:   c.Camera.SensorMode,
		ExposureMode: c.Camera.ExposureMode,
		ISO:          c.Camera.ISO,
	}, nil
}

// SensorInterval returns the environment poll interval.
func (c *Config) SensorInterval() time.Duration {
	return time.Duration(c.Sensors.UpdateIntervalS) * time.Second
}

// FaultBackoff returns the fixed wait after a device fault.
func (c *Config) FaultBackoff() time.Duration {
	return time.Duration(c.Defaults.FaultBackoffMs) * time.Millisecond
}

// Warmup returns the camera firmware calibration window.
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.Defaults.WarmupS) * time.Second
}

// CaptureTimeout returns the per-capture hard deadline.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Camera.CaptureTimeoutS) * time.Second
}

// ValidateConfigPath checks that path points at a .yaml file inside a
// configs directory, with no directory traversal.
func ValidateConfigPath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("config path must not contain '..': %s", path)
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	dir := filepath.Base(filepath.Dir(path))
	if dir != "configs" {
		return fmt.Errorf("config file must live in a configs directory: %s", path)
	}
	return nil
}

// maxFrameRate returns the largest value the frameRate property enum
// allows, the hardware-practical ceiling for still capture.
func maxFrameRate() float64 {
	max := 0.0
	for _, s := range property.FrameRates {
		var v float64
		if _, err := fmt.Sscanf(s, "%f", &v); err == nil && v > max {
			max = v
		}
	}
	return max
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
