package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/infincia/picamera-webthing/internal/debug"
)

// Raspistill configuration defaults.
const (
	defaultBinary       = "raspistill"
	defaultJPEGQuality  = 10
	defaultTimeout      = 60 * time.Second
	defaultCaptureDelay = 700 * time.Millisecond
	fastCaptureDelay    = 50 * time.Millisecond
	maxSensorMode       = 7
)

// RaspistillConfig holds the invocation knobs that are not live
// camera settings.
type RaspistillConfig struct {
	Binary      string        // capture binary, default "raspistill"
	JPEGQuality int           // 1-100; quality above ~10 makes large images with no visible gain
	Timeout     time.Duration // hard deadline per capture
	FastCapture bool          // shorten the per-shot preview delay (noisier, much faster)
}

// Raspistill is a Device implementation that shells out to the
// raspistill utility once per frame, reading the JPEG from stdout.
// Settings are stored here and turned into command-line arguments at
// capture time, so applying a setting is cheap and takes effect on
// the next capture.
type Raspistill struct {
	cfg RaspistillConfig

	mu       sync.Mutex
	settings Settings
}

// NewRaspistill creates a raspistill-backed device and verifies the
// binary can be found, so a missing camera stack fails at startup
// rather than on the first capture cycle.
func NewRaspistill(cfg RaspistillConfig) (*Raspistill, error) {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = defaultJPEGQuality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, fmt.Errorf("capture binary %q not found: %w", cfg.Binary, err)
	}

	return &Raspistill{cfg: cfg}, nil
}

// ApplySetting validates and records the named field from to. Values
// the firmware cannot honor return ErrRejected and leave the stored
// settings untouched.
func (r *Raspistill) ApplySetting(f Field, to Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch f {
	case FieldResolution:
		if to.Resolution.Width <= 0 || to.Resolution.Height <= 0 {
			return fmt.Errorf("%w: resolution %s", ErrRejected, to.Resolution)
		}
		r.settings.Resolution = to.Resolution
	case FieldFrameRate:
		if to.FrameRate <= 0 {
			return fmt.Errorf("%w: frame rate %g", ErrRejected, to.FrameRate)
		}
		r.settings.FrameRate = to.FrameRate
	case FieldRotation:
		switch to.Rotation {
		case 0, 90, 180, 270:
			r.settings.Rotation = to.Rotation
		default:
			return fmt.Errorf("%w: rotation %d", ErrRejected, to.Rotation)
		}
	case FieldShutterSpeed:
		// The shutter cannot stay open longer than one frame interval.
		if to.ShutterSpeed < 0 {
			return fmt.Errorf("%w: shutter speed %d", ErrRejected, to.ShutterSpeed)
		}
		if to.ShutterSpeed > 0 && to.FrameRate > 0 &&
			float64(to.ShutterSpeed) > 1e6/to.FrameRate {
			return fmt.Errorf("%w: shutter speed %dµs exceeds frame interval at %g fps",
				ErrRejected, to.ShutterSpeed, to.FrameRate)
		}
		r.settings.ShutterSpeed = to.ShutterSpeed
	case FieldSensorMode:
		if to.SensorMode < 0 || to.SensorMode > maxSensorMode {
			return fmt.Errorf("%w: sensor mode %d", ErrRejected, to.SensorMode)
		}
		r.settings.SensorMode = to.SensorMode
	case FieldExposureMode:
		if !validExposureMode(to.ExposureMode) {
			return fmt.Errorf("%w: exposure mode %q", ErrRejected, to.ExposureMode)
		}
		r.settings.ExposureMode = to.ExposureMode
	case FieldISO:
		if !validISO(to.ISO) {
			return fmt.Errorf("%w: iso %d", ErrRejected, to.ISO)
		}
		r.settings.ISO = to.ISO
	default:
		return fmt.Errorf("%w: unknown field %q", ErrRejected, f)
	}

	debug.Verbose("Raspistill: applied %s", f)
	return nil
}

// Capture runs the capture binary once and returns the JPEG it wrote
// to stdout. The stored settings are snapshotted before the process
// starts, so concurrent ApplySetting calls cannot affect a capture
// already underway.
func (r *Raspistill) Capture() (*CaptureResult, error) {
	r.mu.Lock()
	args := r.args(r.settings)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	debug.Verbose("Raspistill: %s %v", r.cfg.Binary, args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	capturedAt := time.Now()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, r.cfg.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrUnavailable, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: empty capture output", ErrUnavailable)
	}

	return &CaptureResult{
		Image:      stdout.Bytes(),
		CapturedAt: capturedAt,
	}, nil
}

// args builds the raspistill argument list for one capture of s.
func (r *Raspistill) args(s Settings) []string {
	delay := defaultCaptureDelay
	if r.cfg.FastCapture {
		delay = fastCaptureDelay
	}

	args := []string{
		"-n", // no preview window
		"-o", "-",
		"-e", "jpg",
		"-q", strconv.Itoa(r.cfg.JPEGQuality),
		"-t", strconv.Itoa(int(delay.Milliseconds())),
		"-w", strconv.Itoa(s.Resolution.Width),
		"-h", strconv.Itoa(s.Resolution.Height),
		"-rot", strconv.Itoa(s.Rotation),
	}
	if s.SensorMode > 0 {
		args = append(args, "-md", strconv.Itoa(s.SensorMode))
	}
	if s.ShutterSpeed > 0 {
		args = append(args, "-ss", strconv.Itoa(s.ShutterSpeed))
	}
	if s.ExposureMode != "" {
		args = append(args, "-ex", s.ExposureMode)
	}
	if s.ISO > 0 {
		args = append(args, "-ISO", strconv.Itoa(s.ISO))
	}
	return args
}

func validExposureMode(mode string) bool {
	for _, m := range ExposureModes {
		if m == mode {
			return true
		}
	}
	return false
}

func validISO(iso int) bool {
	for _, v := range ISOValues {
		if v == iso {
			return true
		}
	}
	return false
}
