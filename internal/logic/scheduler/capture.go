package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/property"
)

// State is the capture scheduler's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateApplyingSettings
	StateCapturing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplyingSettings:
		return "applying-settings"
	case StateCapturing:
		return "capturing"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// The firmware needs a high frame rate for a few seconds at startup to
// calibrate the sensor, critical in low light. With a very low
// configured rate the camera would otherwise take minutes to react to
// lighting changes.
const warmupFrameRate = 30.0

// CaptureConfig holds the scheduler's timing policy.
type CaptureConfig struct {
	// Backoff is the fixed wait after a device fault before the next
	// attempt. Camera faults are frequently transient (sensor warm-up,
	// momentary I/O contention), so the scheduler retries forever.
	Backoff time.Duration
	// Warmup is the sensor calibration window at startup; 0 skips it.
	Warmup time.Duration
}

// CaptureScheduler runs the capture cycle for the process lifetime:
// drain pending settings, apply them, capture, publish, sleep. It is
// the only caller of the capture device, which is what guarantees that
// at most one capture is in flight and that every capture runs against
// a single consistent settings snapshot. Settings written while a
// capture is outstanding stay in the store's pending slot and are
// drained at the top of the next cycle.
type CaptureScheduler struct {
	store  *property.Store
	device camera.Device
	cfg    CaptureConfig

	onState func(State)

	mu    sync.Mutex
	state State

	// loop-goroutine state, never touched elsewhere
	settings camera.Settings  // snapshot the device currently holds
	carry    *camera.Settings // drained but unapplied after a fault
	faulted  bool
}

// NewCaptureScheduler creates a scheduler over the given store and
// device. The store's initial settings are pushed to the device when
// Run starts.
func NewCaptureScheduler(store *property.Store, device camera.Device, cfg CaptureConfig) *CaptureScheduler {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 3 * time.Second
	}
	return &CaptureScheduler{
		store:  store,
		device: device,
		cfg:    cfg,
		state:  StateIdle,
	}
}

// OnStateChange registers a hook invoked from the scheduler goroutine
// on every state transition. Must be set before Run.
func (s *CaptureScheduler) OnStateChange(fn func(State)) {
	s.onState = fn
}

// State returns the current scheduler state.
func (s *CaptureScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CaptureScheduler) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()

	if changed && s.onState != nil {
		s.onState(st)
	}
}

// Run executes capture cycles until ctx is cancelled. An in-flight
// capture is allowed to complete before Run returns; the device offers
// no cancel operation.
func (s *CaptureScheduler) Run(ctx context.Context) error {
	debug.Info("Capture loop running")

	if err := s.startup(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cycle(ctx)
	}
}

// startup pushes the initial settings to the device, holding the
// frame rate high through the warm-up window so the firmware can
// calibrate the sensor, then reapplies the configured snapshot. Device
// unavailability here is handled like any other fault: backoff and
// retry until the device comes up or ctx ends.
func (s *CaptureScheduler) startup(ctx context.Context) error {
	initial := s.store.Settings()

	target := initial
	if s.cfg.Warmup > 0 {
		target.FrameRate = warmupFrameRate
	}

	for {
		s.setState(StateApplyingSettings)
		effective, err := s.applySnapshot(target, camera.Settings{})
		if err == nil {
			s.settings = effective
			break
		}
		s.fault(err)
		if err := s.backoff(ctx); err != nil {
			return err
		}
	}

	if s.cfg.Warmup > 0 {
		debug.Info("Waiting %v for camera module warmup...", s.cfg.Warmup)
		if err := sleepCtx(ctx, s.cfg.Warmup); err != nil {
			return err
		}
		// Reapply the full configured snapshot, not just the frame rate.
		// The high warmup rate can get fields rejected that are only
		// valid at the configured rate, a long shutter in particular,
		// and they come back only when pushed again now.
		restored, err := s.applySnapshot(initial, s.settings)
		if err != nil {
			// retried as a normal cycle via the carry slot
			s.carry = &initial
			debug.Fault("capture scheduler", err)
		} else {
			s.settings = restored
		}
	}

	published := s.settings
	if s.carry != nil {
		// the device still holds the warmup rate; report the configured
		// rate the carried snapshot converges on, not the transient one
		published.FrameRate = initial.FrameRate
	}
	s.store.PublishSettings(published)
	s.setState(StateIdle)
	debug.Info("Camera ready: %s @ %.1f fps", published.Resolution, published.FrameRate)
	return nil
}

// cycle runs one apply-pending → capture → publish → sleep iteration.
func (s *CaptureScheduler) cycle(ctx context.Context) {
	// Newly written pending settings supersede a snapshot carried over
	// from a faulted apply.
	target, ok := s.store.DrainPendingSettings()
	if !ok && s.carry != nil {
		target, ok = *s.carry, true
	}

	if ok {
		s.setState(StateApplyingSettings)
		effective, err := s.applySnapshot(target, s.settings)
		if err != nil {
			s.carry = &target
			s.fault(err)
			_ = s.backoff(ctx)
			return
		}
		s.carry = nil
		s.settings = effective
		s.store.PublishSettings(effective)
	}

	s.setState(StateCapturing)
	start := time.Now()
	res, err := s.device.Capture()
	elapsed := time.Since(start)

	if err != nil {
		// previously published image stays as-is: stale but available
		s.fault(err)
		_ = s.backoff(ctx)
		return
	}

	if s.faulted {
		s.faulted = false
		debug.Recovered("capture scheduler")
	}

	s.store.PublishCapture(res)
	debug.Capture(len(res.Image), elapsed)
	s.setState(StateIdle)

	// Best-effort frame rate: never faster than capture latency allows,
	// measured against the snapshot this capture actually used.
	if wait := s.settings.Interval() - elapsed; wait > 0 {
		debug.Verbose("Camera sleeping for %v (fps: %.1f)", wait, s.settings.FrameRate)
		_ = sleepCtx(ctx, wait)
	}
}

// applySnapshot pushes every field of target that differs from prev.
// A field the device rejects reverts to its last-known-good value and
// the remaining fields are still applied; device unavailability aborts
// the whole round. Returns the settings the device actually holds.
func (s *CaptureScheduler) applySnapshot(target, prev camera.Settings) (camera.Settings, error) {
	for _, f := range target.Diff(prev) {
		err := s.device.ApplySetting(f, target)
		if err == nil {
			continue
		}
		if errors.Is(err, camera.ErrRejected) {
			debug.Info("Device rejected %s, keeping previous value: %v", f, err)
			target = target.Revert(f, prev)
			continue
		}
		return target, err
	}
	return target, nil
}

func (s *CaptureScheduler) fault(err error) {
	s.faulted = true
	debug.Fault("capture scheduler", err)
	s.setState(StateFaulted)
}

// backoff sleeps the fixed fault backoff, then re-enters Idle.
func (s *CaptureScheduler) backoff(ctx context.Context) error {
	if err := sleepCtx(ctx, s.cfg.Backoff); err != nil {
		return err
	}
	s.setState(StateIdle)
	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
