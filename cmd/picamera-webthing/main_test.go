package main

import (
	"testing"

	"github.com/infincia/picamera-webthing/internal/config"
	"github.com/infincia/picamera-webthing/internal/hw/camera"
)

func TestNewCameraFromConfig_Mock(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Type = "mock"

	dev, err := newCameraFromConfig(cfg)
	if err != nil {
		t.Fatalf("newCameraFromConfig: %v", err)
	}
	if _, ok := dev.(*camera.Mock); !ok {
		t.Errorf("device type = %T, want *camera.Mock", dev)
	}
}

func TestNewCameraFromConfig_Unsupported(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Type = "polaroid"

	if _, err := newCameraFromConfig(cfg); err == nil {
		t.Error("expected error for unsupported camera type")
	}
}
