package property

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/hw/sensor"
)

func testSettings() camera.Settings {
	return camera.Settings{
		Resolution:   camera.Resolution{Width: 800, Height: 600},
		FrameRate:    1.0,
		ExposureMode: "auto",
	}
}

// ---------- Get ----------

func TestGet_InitialValues(t *testing.T) {
	s := NewStore(testSettings(), true)

	cases := map[string]interface{}{
		NameResolution:   "800x600",
		NameFrameRate:    "1.0",
		NameExposureMode: "auto",
		NameStillImage:   "",
		NameTemperature:  0.0,
		NameHumidity:     0.0,
	}
	for name, want := range cases {
		got, err := s.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("Get(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	s := NewStore(testSettings(), true)
	if _, err := s.Get("brightness"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestGet_SensorDisabledHidesReadings(t *testing.T) {
	s := NewStore(testSettings(), false)

	for _, name := range []string{NameTemperature, NameHumidity} {
		if _, err := s.Get(name); !errors.Is(err, ErrUnknown) {
			t.Errorf("Get(%q) with sensor disabled: expected ErrUnknown, got %v", name, err)
		}
	}
	if _, ok := s.Values()[NameTemperature]; ok {
		t.Error("Values() should not contain temperature with sensor disabled")
	}
}

// ---------- SetPending ----------

func TestSetPending_AcceptedValueReadsBack(t *testing.T) {
	s := NewStore(testSettings(), false)

	if err := s.SetPending(NameResolution, "1640x1232"); err != nil {
		t.Fatalf("SetPending: %v", err)
	}

	got, err := s.Get(NameResolution)
	if err != nil {
		t.Fatal(err)
	}
	if got != "1640x1232" {
		t.Errorf("Get(resolution) = %v, want pending value 1640x1232", got)
	}
	// hardware-applied settings are untouched until the scheduler drains
	if s.Settings().Resolution.Width != 800 {
		t.Errorf("applied settings changed by a pending write")
	}
}

func TestSetPending_InvalidValueLeavesStoreUntouched(t *testing.T) {
	s := NewStore(testSettings(), true)
	before := s.Values()

	cases := []struct {
		name  string
		value interface{}
	}{
		{NameExposureMode, "arctic"},
		{NameResolution, "10000x10000"},
		{NameResolution, "800×600"},
		{NameResolution, 800},
		{NameFrameRate, "30.0"},
		{NameFrameRate, "-1.0"},
		{NameFrameRate, true},
	}
	for _, tc := range cases {
		if err := s.SetPending(tc.name, tc.value); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("SetPending(%q, %v): expected ErrInvalidValue, got %v", tc.name, tc.value, err)
		}
	}

	if _, ok := s.DrainPendingSettings(); ok {
		t.Error("rejected writes must not create a pending slot")
	}
	if after := s.Values(); !reflect.DeepEqual(before, after) {
		t.Errorf("store mutated by rejected writes:\nbefore %v\nafter  %v", before, after)
	}
}

func TestSetPending_ReadOnlyAndUnknown(t *testing.T) {
	s := NewStore(testSettings(), true)

	for _, name := range []string{NameStillImage, NameTemperature, NameHumidity} {
		if err := s.SetPending(name, "x"); !errors.Is(err, ErrNotWritable) {
			t.Errorf("SetPending(%q): expected ErrNotWritable, got %v", name, err)
		}
	}
	if err := s.SetPending("brightness", 50); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestSetPending_FrameRateAcceptsNumber(t *testing.T) {
	s := NewStore(testSettings(), false)

	if err := s.SetPending(NameFrameRate, 2.0); err != nil {
		t.Fatalf("SetPending(frameRate, 2.0): %v", err)
	}
	p, ok := s.DrainPendingSettings()
	if !ok {
		t.Fatal("expected pending settings")
	}
	if p.FrameRate != 2.0 {
		t.Errorf("pending FrameRate = %g, want 2.0", p.FrameRate)
	}
}

func TestSetPending_WholeUnitAccumulates(t *testing.T) {
	s := NewStore(testSettings(), false)

	// writes to different fields before a drain land in the same
	// pending unit; a second write to the same field wins
	if err := s.SetPending(NameResolution, "640x480"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPending(NameExposureMode, "night"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPending(NameResolution, "320x240"); err != nil {
		t.Fatal(err)
	}

	p, ok := s.DrainPendingSettings()
	if !ok {
		t.Fatal("expected pending settings")
	}
	if p.Resolution.String() != "320x240" {
		t.Errorf("Resolution = %s, want last write 320x240", p.Resolution)
	}
	if p.ExposureMode != "night" {
		t.Errorf("ExposureMode = %s, want night", p.ExposureMode)
	}
	if p.FrameRate != 1.0 {
		t.Errorf("FrameRate = %g, want untouched 1.0", p.FrameRate)
	}
}

// ---------- DrainPendingSettings ----------

func TestDrainPendingSettings_TakesAndClears(t *testing.T) {
	s := NewStore(testSettings(), false)

	if _, ok := s.DrainPendingSettings(); ok {
		t.Error("fresh store should have no pending settings")
	}

	if err := s.SetPending(NameExposureMode, "night"); err != nil {
		t.Fatal(err)
	}
	p, ok := s.DrainPendingSettings()
	if !ok || p.ExposureMode != "night" {
		t.Fatalf("drain = (%v, %v), want night settings", p, ok)
	}
	if _, ok := s.DrainPendingSettings(); ok {
		t.Error("second drain should find nothing")
	}
}

// ---------- Publish ----------

func TestPublishCapture_Base64AndNotification(t *testing.T) {
	s := NewStore(testSettings(), false)

	var events []Event
	unsub := s.Subscribe(func(evt Event) { events = append(events, evt) })
	defer unsub()

	res := &camera.CaptureResult{Image: []byte("jpeg"), CapturedAt: time.Now()}
	s.PublishCapture(res)

	got, err := s.Get(NameStillImage)
	if err != nil {
		t.Fatal(err)
	}
	if got != "anBlZw==" { // base64("jpeg")
		t.Errorf("stillImage = %q, want base64 payload", got)
	}
	if len(events) != 1 || events[0].Name != NameStillImage {
		t.Fatalf("events = %v, want one stillImage event", events)
	}
	if s.Still() != res {
		t.Error("Still() should return the published result")
	}
}

func TestPublishEnvironment_NotifiesBothReadings(t *testing.T) {
	s := NewStore(testSettings(), true)

	var events []Event
	unsub := s.Subscribe(func(evt Event) { events = append(events, evt) })
	defer unsub()

	s.PublishEnvironment(sensor.Reading{Temperature: 21.5, Humidity: 40.0, ReadAt: time.Now()})

	if len(events) != 2 {
		t.Fatalf("got %d events, want temperature and humidity", len(events))
	}
	if temp, _ := s.Get(NameTemperature); temp != 21.5 {
		t.Errorf("temperature = %v, want 21.5", temp)
	}
	if hum, _ := s.Get(NameHumidity); hum != 40.0 {
		t.Errorf("humidity = %v, want 40.0", hum)
	}
}

func TestPublishSettings_NotifiesOnlyChangedFields(t *testing.T) {
	s := NewStore(testSettings(), false)

	var events []Event
	unsub := s.Subscribe(func(evt Event) { events = append(events, evt) })
	defer unsub()

	applied := testSettings()
	applied.ExposureMode = "night"
	s.PublishSettings(applied)

	if len(events) != 1 || events[0].Name != NameExposureMode || events[0].Value != "night" {
		t.Fatalf("events = %v, want single exposureMode=night event", events)
	}
	if s.Settings().ExposureMode != "night" {
		t.Error("applied settings not updated")
	}
}

func TestPublishSettings_PendingOvershadows(t *testing.T) {
	s := NewStore(testSettings(), false)

	if err := s.SetPending(NameExposureMode, "sports"); err != nil {
		t.Fatal(err)
	}

	var events []Event
	unsub := s.Subscribe(func(evt Event) { events = append(events, evt) })
	defer unsub()

	applied := testSettings()
	applied.ExposureMode = "night"
	s.PublishSettings(applied)

	// the newer pending write is what readers see; publishing older
	// hardware truth must not notify stale values over it
	if len(events) != 0 {
		t.Errorf("events = %v, want none while a pending write exists", events)
	}
	if got, _ := s.Get(NameExposureMode); got != "sports" {
		t.Errorf("Get(exposureMode) = %v, want pending sports", got)
	}
}

// ---------- Subscribe ----------

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := NewStore(testSettings(), false)

	count := 0
	unsub := s.Subscribe(func(Event) { count++ })

	s.PublishCapture(&camera.CaptureResult{Image: []byte("a"), CapturedAt: time.Now()})
	unsub()
	s.PublishCapture(&camera.CaptureResult{Image: []byte("b"), CapturedAt: time.Now()})

	if count != 1 {
		t.Errorf("callback ran %d times, want 1", count)
	}
}

func TestSubscribe_CallbackMayReadStore(t *testing.T) {
	s := NewStore(testSettings(), false)

	done := make(chan string, 1)
	unsub := s.Subscribe(func(evt Event) {
		// must not deadlock
		v, _ := s.Get(NameStillImage)
		done <- v.(string)
	})
	defer unsub()

	s.PublishCapture(&camera.CaptureResult{Image: []byte("x"), CapturedAt: time.Now()})

	select {
	case v := <-done:
		if v == "" {
			t.Error("callback read empty stillImage after publish")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber callback deadlocked")
	}
}
