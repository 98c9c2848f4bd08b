package property

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/hw/sensor"
)

// Store errors, surfaced as-is to the property gateway.
var (
	// ErrInvalidValue means a write violates the field's constraint.
	// The write is rejected before anything touches the device and the
	// store is left exactly as it was.
	ErrInvalidValue = errors.New("invalid setting value")
	// ErrNotWritable means a write targeted a read-only property.
	ErrNotWritable = errors.New("property not writable")
	// ErrUnknown means the property name is not part of the surface.
	ErrUnknown = errors.New("unknown property")
)

// Property names exposed to the gateway.
const (
	NameResolution   = "resolution"
	NameFrameRate    = "frameRate"
	NameExposureMode = "exposureMode"
	NameStillImage   = "stillImage"
	NameTemperature  = "temperature"
	NameHumidity     = "humidity"
)

// Resolutions are the accepted values for the resolution property.
var Resolutions = []string{
	"320x240", "640x480", "800x600", "1024x768",
	"1296x972", "1640x1232", "3280x2464",
}

// FrameRates are the accepted values for the frameRate property. The
// ceiling is the hardware-practical still-capture maximum of 4 Hz.
var FrameRates = []string{"0.1", "0.5", "1.0", "2.0", "3.0", "4.0"}

// Event describes one property change, delivered synchronously to
// subscribers on every externally visible mutation.
type Event struct {
	Name  string
	Value interface{}
}

// Store is the authoritative in-memory state of every externally
// visible value, plus the single pending-settings slot. It is the only
// state shared between the schedulers and the request handlers; every
// operation is safe for concurrent use, and field transitions are
// atomic with respect to readers (a resolution is always a consistent
// width/height pair).
type Store struct {
	mu sync.RWMutex

	settings camera.Settings  // last settings applied to hardware
	pending  *camera.Settings // requested but not yet applied; nil = none

	stillB64 string
	still    *camera.CaptureResult

	env        sensor.Reading
	hasReading bool
	sensorOn   bool

	subs   map[int]func(Event)
	nextID int
}

// NewStore creates a store seeded with the initial camera settings.
// sensorEnabled controls whether temperature/humidity are part of the
// property surface.
func NewStore(initial camera.Settings, sensorEnabled bool) *Store {
	return &Store{
		settings: initial,
		sensorOn: sensorEnabled,
		subs:     make(map[int]func(Event)),
	}
}

// Subscribe registers a callback fired synchronously on every property
// change. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify invokes every subscriber outside the store lock, so callbacks
// may read the store freely.
func (s *Store) notify(events ...Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, evt := range events {
		debug.Property(evt.Name, evt.Value)
		for _, fn := range fns {
			fn(evt)
		}
	}
}

// SensorEnabled reports whether temperature/humidity are exposed.
func (s *Store) SensorEnabled() bool {
	return s.sensorOn
}

// Writable reports whether the named property accepts writes.
func Writable(name string) bool {
	switch name {
	case NameResolution, NameFrameRate, NameExposureMode:
		return true
	}
	return false
}

// Known reports whether name is part of the property surface.
func (s *Store) Known(name string) bool {
	switch name {
	case NameResolution, NameFrameRate, NameExposureMode, NameStillImage:
		return true
	case NameTemperature, NameHumidity:
		return s.sensorOn
	}
	return false
}

// Get returns the current value of the named property. For writable
// settings, an accepted-but-not-yet-applied pending value is what the
// gateway reads back.
func (s *Store) Get(name string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.Known(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	effective := s.settings
	if s.pending != nil {
		effective = *s.pending
	}

	switch name {
	case NameResolution:
		return effective.Resolution.String(), nil
	case NameFrameRate:
		return formatFrameRate(effective.FrameRate), nil
	case NameExposureMode:
		return effective.ExposureMode, nil
	case NameStillImage:
		return s.stillB64, nil
	case NameTemperature:
		return s.env.Temperature, nil
	case NameHumidity:
		return s.env.Humidity, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// Values returns every property as a name → value map.
func (s *Store) Values() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	effective := s.settings
	if s.pending != nil {
		effective = *s.pending
	}

	out := map[string]interface{}{
		NameResolution:   effective.Resolution.String(),
		NameFrameRate:    formatFrameRate(effective.FrameRate),
		NameExposureMode: effective.ExposureMode,
		NameStillImage:   s.stillB64,
	}
	if s.sensorOn {
		out[NameTemperature] = s.env.Temperature
		out[NameHumidity] = s.env.Humidity
	}
	return out
}

// SetPending validates value and stores it in the single pending
// settings slot. The whole settings set is one pending unit: a second
// write before the scheduler drains the slot replaces only its own
// field on top of the earlier pending copy (last write wins, no
// queue). A rejected write leaves the store untouched.
func (s *Store) SetPending(name string, value interface{}) error {
	if !Writable(name) {
		s.mu.RLock()
		known := s.Known(name)
		s.mu.RUnlock()
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		return fmt.Errorf("%w: %q", ErrNotWritable, name)
	}

	s.mu.Lock()

	base := s.settings
	if s.pending != nil {
		base = *s.pending
	}

	var evt Event
	switch name {
	case NameResolution:
		str, ok := value.(string)
		if !ok || !contains(Resolutions, str) {
			s.mu.Unlock()
			return fmt.Errorf("%w: resolution %v", ErrInvalidValue, value)
		}
		res, err := camera.ParseResolution(str)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		base.Resolution = res
		evt = Event{NameResolution, str}

	case NameFrameRate:
		str, ok := coerceFrameRate(value)
		if !ok || !contains(FrameRates, str) {
			s.mu.Unlock()
			return fmt.Errorf("%w: frame rate %v", ErrInvalidValue, value)
		}
		rate, err := strconv.ParseFloat(str, 64)
		if err != nil || rate <= 0 {
			s.mu.Unlock()
			return fmt.Errorf("%w: frame rate %v", ErrInvalidValue, value)
		}
		base.FrameRate = rate
		evt = Event{NameFrameRate, str}

	case NameExposureMode:
		str, ok := value.(string)
		if !ok || !contains(camera.ExposureModes, str) {
			s.mu.Unlock()
			return fmt.Errorf("%w: exposure mode %v", ErrInvalidValue, value)
		}
		base.ExposureMode = str
		evt = Event{NameExposureMode, str}
	}

	s.pending = &base
	s.mu.Unlock()

	s.notify(evt)
	return nil
}

// DrainPendingSettings atomically takes and clears the pending slot.
// Only the capture scheduler calls this, once at the top of each cycle.
func (s *Store) DrainPendingSettings() (camera.Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return camera.Settings{}, false
	}
	p := *s.pending
	s.pending = nil
	return p, true
}

// Settings returns the last settings applied to hardware.
func (s *Store) Settings() camera.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// PublishSettings records the settings the scheduler actually applied
// and notifies subscribers of any exposed field that changed, so
// gateway reads always reflect hardware truth (a device-rejected field
// reads back as its last-known-good value).
func (s *Store) PublishSettings(applied camera.Settings) {
	s.mu.Lock()
	prev := s.settings
	s.settings = applied
	overshadowed := s.pending != nil
	s.mu.Unlock()

	// A newer pending write is what readers see; don't notify stale
	// values over it.
	if overshadowed {
		return
	}

	var events []Event
	if applied.Resolution != prev.Resolution {
		events = append(events, Event{NameResolution, applied.Resolution.String()})
	}
	if applied.FrameRate != prev.FrameRate {
		events = append(events, Event{NameFrameRate, formatFrameRate(applied.FrameRate)})
	}
	if applied.ExposureMode != prev.ExposureMode {
		events = append(events, Event{NameExposureMode, applied.ExposureMode})
	}
	if len(events) > 0 {
		s.notify(events...)
	}
}

// PublishCapture replaces the current still image. The previous result
// stays readable until the very moment of replacement; a failed capture
// never reaches this method, so the gateway keeps seeing the last good
// image through any fault.
func (s *Store) PublishCapture(res *camera.CaptureResult) {
	encoded := base64.StdEncoding.EncodeToString(res.Image)

	s.mu.Lock()
	s.still = res
	s.stillB64 = encoded
	s.mu.Unlock()

	s.notify(Event{NameStillImage, encoded})
}

// Still returns the most recent capture result, or nil before the
// first successful capture.
func (s *Store) Still() *camera.CaptureResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.still
}

// PublishEnvironment replaces the current environment reading.
func (s *Store) PublishEnvironment(r sensor.Reading) {
	s.mu.Lock()
	s.env = r
	s.hasReading = true
	s.mu.Unlock()

	s.notify(
		Event{NameTemperature, r.Temperature},
		Event{NameHumidity, r.Humidity},
	)
}

// Environment returns the most recent reading and whether one exists.
func (s *Store) Environment() (sensor.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env, s.hasReading
}

func formatFrameRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 1, 64)
}

// coerceFrameRate accepts the enum string form or a bare JSON number.
func coerceFrameRate(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return formatFrameRate(v), true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
