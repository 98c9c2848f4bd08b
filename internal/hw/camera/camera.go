package camera

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Adapter errors. The schedulers distinguish a refused setting (hardware
// keeps running, revert the one field) from an unavailable device
// (fault the cycle, retry after backoff).
var (
	// ErrUnavailable means the device could not be reached at all.
	ErrUnavailable = errors.New("camera device unavailable")
	// ErrRejected means the device refused an otherwise well-formed setting.
	ErrRejected = errors.New("setting rejected by device")
	// ErrTimeout means a capture exceeded the device deadline.
	ErrTimeout = errors.New("capture timed out")
)

// Field names a single CameraSettings field for per-field application.
type Field string

const (
	FieldResolution   Field = "resolution"
	FieldFrameRate    Field = "frameRate"
	FieldRotation     Field = "rotation"
	FieldShutterSpeed Field = "shutterSpeed"
	FieldSensorMode   Field = "sensorMode"
	FieldExposureMode Field = "exposureMode"
	FieldISO          Field = "iso"
)

// Fields returns every settings field in application order.
// Resolution and sensor mode go first: they reconfigure the sensor
// readout, which the exposure-related fields depend on.
func Fields() []Field {
	return []Field{
		FieldResolution,
		FieldSensorMode,
		FieldRotation,
		FieldFrameRate,
		FieldShutterSpeed,
		FieldExposureMode,
		FieldISO,
	}
}

// ExposureModes lists the picamera firmware exposure modes.
var ExposureModes = []string{
	"off", "auto", "night", "nightpreview", "backlight", "spotlight",
	"sports", "snow", "beach", "verylong", "fixedfps", "antishake",
	"fireworks",
}

// ISOValues lists the sensitivities the firmware accepts; 0 means auto.
var ISOValues = []int{0, 100, 200, 320, 400, 500, 640, 800}

// Resolution is a capture frame size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// String formats the resolution as WxH, the same form the property
// surface and the capture utilities use.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a WxH string such as "800x600".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q is not of the form WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: bad height", s)
	}
	return Resolution{Width: width, Height: height}, nil
}

// Settings is one consistent set of capture parameters. The capture
// scheduler guarantees every capture runs against exactly one Settings
// value, never a mix of old and new fields.
type Settings struct {
	Resolution   Resolution
	FrameRate    float64 // frames per second, > 0
	Rotation     int     // 0, 90, 180 or 270 degrees
	ShutterSpeed int     // microseconds, 0 = auto
	SensorMode   int     // firmware sensor mode, 0 = auto
	ExposureMode string
	ISO          int // 0 = auto
}

// Interval returns the target time between captures at this frame rate.
func (s Settings) Interval() time.Duration {
	if s.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.FrameRate)
}

// Diff returns the fields whose values differ from prev, in
// application order.
func (s Settings) Diff(prev Settings) []Field {
	var changed []Field
	for _, f := range Fields() {
		if !s.fieldEqual(prev, f) {
			changed = append(changed, f)
		}
	}
	return changed
}

// Revert returns a copy of s with field f taken from prev, used when
// the device rejects a single field.
func (s Settings) Revert(f Field, prev Settings) Settings {
	out := s
	switch f {
	case FieldResolution:
		out.Resolution = prev.Resolution
	case FieldFrameRate:
		out.FrameRate = prev.FrameRate
	case FieldRotation:
		out.Rotation = prev.Rotation
	case FieldShutterSpeed:
		out.ShutterSpeed = prev.ShutterSpeed
	case FieldSensorMode:
		out.SensorMode = prev.SensorMode
	case FieldExposureMode:
		out.ExposureMode = prev.ExposureMode
	case FieldISO:
		out.ISO = prev.ISO
	}
	return out
}

func (s Settings) fieldEqual(o Settings, f Field) bool {
	switch f {
	case FieldResolution:
		return s.Resolution == o.Resolution
	case FieldFrameRate:
		return s.FrameRate == o.FrameRate
	case FieldRotation:
		return s.Rotation == o.Rotation
	case FieldShutterSpeed:
		return s.ShutterSpeed == o.ShutterSpeed
	case FieldSensorMode:
		return s.SensorMode == o.SensorMode
	case FieldExposureMode:
		return s.ExposureMode == o.ExposureMode
	case FieldISO:
		return s.ISO == o.ISO
	}
	return true
}

// CaptureResult is one captured frame. Immutable once produced.
type CaptureResult struct {
	Image      []byte // JPEG bytes
	CapturedAt time.Time
}

// Device is the high-level capture interface used by the rest of the
// application. It represents an abstract still camera, regardless of
// how frames are obtained (raspistill, mock, etc.).
//
// ApplySetting pushes the named field of to, returning ErrRejected or
// ErrUnavailable on failure. Capture blocks until a frame is produced;
// the call may take anywhere from a fraction of a second to tens of
// seconds depending on exposure mode and light. Neither operation
// retries; retry and backoff policy lives in the scheduler.
type Device interface {
	ApplySetting(f Field, to Settings) error
	Capture() (*CaptureResult, error)
}
