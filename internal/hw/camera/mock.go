package camera

import (
	"sync"
	"time"

	"github.com/infincia/picamera-webthing/internal/debug"
)

// Mock is a Device implementation for development on PC and for
// testing. Latency and failures are controllable, and the mock records
// the settings snapshot each capture ran against so tests can check
// that no capture ever sees a half-applied settings change.
type Mock struct {
	mu sync.Mutex

	// Latency is how long each Capture blocks.
	Latency time.Duration
	// Image is the payload returned by successful captures.
	Image []byte

	applyErrs   map[Field]error
	captureErrs []error // consumed one per Capture call
	settings    Settings
	applied     []Field
	captures    []Settings // snapshot used by each capture, in order
	inFlight    int
	overlapped  bool
}

// NewMock returns a mock device producing a tiny placeholder payload.
func NewMock() *Mock {
	return &Mock{Image: []byte("\xff\xd8mock-jpeg\xff\xd9")}
}

// SetApplyErr makes ApplySetting fail for the given field; a nil err
// clears the failure. Safe to call while the device is in use.
func (m *Mock) SetApplyErr(f Field, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErrs == nil {
		m.applyErrs = make(map[Field]error)
	}
	if err == nil {
		delete(m.applyErrs, f)
		return
	}
	m.applyErrs[f] = err
}

// FailCaptures queues errors to be returned by the next Capture calls,
// in order. A nil entry means that capture succeeds.
func (m *Mock) FailCaptures(errs ...error) {
	m.mu.Lock()
	m.captureErrs = append(m.captureErrs, errs...)
	m.mu.Unlock()
}

func (m *Mock) ApplySetting(f Field, to Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.applyErrs[f]; err != nil {
		return err
	}
	m.settings = m.settings.Revert(f, to) // copy just this field from to
	m.applied = append(m.applied, f)
	debug.Trace("mock camera: applied %s", f)
	return nil
}

func (m *Mock) Capture() (*CaptureResult, error) {
	m.mu.Lock()
	if m.inFlight > 0 {
		m.overlapped = true
	}
	m.inFlight++
	snapshot := m.settings
	var err error
	if len(m.captureErrs) > 0 {
		err = m.captureErrs[0]
		m.captureErrs = m.captureErrs[1:]
	}
	latency := m.Latency
	image := m.Image
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	m.mu.Lock()
	m.inFlight--
	if err == nil {
		m.captures = append(m.captures, snapshot)
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &CaptureResult{
		Image:      image,
		CapturedAt: time.Now(),
	}, nil
}

// Settings returns the currently applied settings.
func (m *Mock) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Applied returns the fields applied so far, in order.
func (m *Mock) Applied() []Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Field, len(m.applied))
	copy(out, m.applied)
	return out
}

// Captures returns the settings snapshot each successful capture used.
func (m *Mock) Captures() []Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Settings, len(m.captures))
	copy(out, m.captures)
	return out
}

// Overlapped reports whether two captures were ever in flight at once.
func (m *Mock) Overlapped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapped
}
