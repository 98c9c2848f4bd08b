package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------- Load ----------

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if cfg.Name != "PiCamera" || cfg.Port != 8888 {
		t.Errorf("unexpected defaults: name=%q port=%d", cfg.Name, cfg.Port)
	}
	if cfg.Camera.Resolution != "800x600" || cfg.Camera.Framerate != 1.0 {
		t.Errorf("unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.Camera.ExposureMode != "auto" || cfg.Camera.ISO != 0 {
		t.Errorf("unexpected exposure defaults: %+v", cfg.Camera)
	}
	if cfg.Sensors.SI7021Enabled {
		t.Error("sensor should be disabled by default")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
name: Porch
port: 9000
camera:
  type: mock
  resolution: 1640x1232
  framerate: 2.0
  rotation: 180
  exposure_mode: night
  iso: 800
sensors:
  si7021_enabled: true
  update_interval_s: 10
defaults:
  debug_level: 3
  fault_backoff_ms: 500
  warmup_s: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "Porch" || cfg.Port != 9000 {
		t.Errorf("name/port = %q/%d", cfg.Name, cfg.Port)
	}
	if cfg.Camera.Type != "mock" || cfg.Camera.Rotation != 180 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if !cfg.Sensors.SI7021Enabled || cfg.SensorInterval() != 10*time.Second {
		t.Errorf("sensors = %+v", cfg.Sensors)
	}
	if cfg.FaultBackoff() != 500*time.Millisecond {
		t.Errorf("FaultBackoff = %v", cfg.FaultBackoff())
	}
	if cfg.Warmup() != 0 {
		t.Errorf("Warmup = %v, want disabled", cfg.Warmup())
	}
	// untouched fields keep their defaults
	if cfg.Camera.JPEGQuality != 10 || cfg.Sensors.I2CBus != "/dev/i2c-1" {
		t.Errorf("defaults lost on partial config: %+v", cfg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad framerate":   "camera:\n  framerate: 10.0\n",
		"bad rotation":    "camera:\n  rotation: 45\n",
		"bad exposure":    "camera:\n  exposure_mode: arctic\n",
		"bad iso":         "camera:\n  iso: 123\n",
		"bad resolution":  "camera:\n  resolution: wide\n",
		"bad port":        "port: 123456\n",
		"bad sensor mode": "camera:\n  sensor_mode: 9\n",
		"led without pin": "status_led:\n  enabled: true\n",
		"not yaml":        "{{{{",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// ---------- Settings ----------

func TestSettings_Conversion(t *testing.T) {
	cfg := Default()
	cfg.Camera.Resolution = "1296x972"
	cfg.Camera.Framerate = 0.5
	cfg.Camera.ExposureMode = "night"

	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.Resolution.Width != 1296 || s.Resolution.Height != 972 {
		t.Errorf("resolution = %v", s.Resolution)
	}
	if s.FrameRate != 0.5 || s.ExposureMode != "night" {
		t.Errorf("settings = %+v", s)
	}
}

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	if err := ValidateConfigPath(filepath.Join("configs", "default.yaml")); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path %q, got nil", path)
		}
	}
}
