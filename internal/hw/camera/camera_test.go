package camera

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// ---------- ParseResolution ----------

func TestParseResolution_Valid(t *testing.T) {
	cases := map[string]Resolution{
		"800x600":   {800, 600},
		"320x240":   {320, 240},
		"3280x2464": {3280, 2464},
	}
	for in, want := range cases {
		got, err := ParseResolution(in)
		if err != nil {
			t.Errorf("ParseResolution(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseResolution(%q) = %v, want %v", in, got, want)
		}
		if got.String() != in {
			t.Errorf("round trip %q -> %q", in, got.String())
		}
	}
}

func TestParseResolution_Invalid(t *testing.T) {
	cases := []string{"", "800", "800x", "x600", "800X600", "-800x600", "800x-600", "0x600", "axb"}
	for _, in := range cases {
		if _, err := ParseResolution(in); err == nil {
			t.Errorf("ParseResolution(%q): expected error", in)
		}
	}
}

// ---------- Settings ----------

func TestSettings_Interval(t *testing.T) {
	cases := map[float64]time.Duration{
		1.0: time.Second,
		0.5: 2 * time.Second,
		4.0: 250 * time.Millisecond,
		0:   0,
	}
	for rate, want := range cases {
		s := Settings{FrameRate: rate}
		if got := s.Interval(); got != want {
			t.Errorf("Interval at %g fps = %v, want %v", rate, got, want)
		}
	}
}

func TestSettings_Diff(t *testing.T) {
	prev := Settings{
		Resolution:   Resolution{800, 600},
		FrameRate:    1,
		ExposureMode: "auto",
	}

	same := prev
	if d := same.Diff(prev); len(d) != 0 {
		t.Errorf("identical settings diff = %v, want empty", d)
	}

	next := prev
	next.Resolution = Resolution{1640, 1232}
	next.ExposureMode = "night"
	d := next.Diff(prev)
	if len(d) != 2 {
		t.Fatalf("diff = %v, want resolution and exposureMode", d)
	}
	// resolution reconfigures the sensor readout, it must come first
	if d[0] != FieldResolution || d[1] != FieldExposureMode {
		t.Errorf("diff order = %v", d)
	}
}

func TestSettings_Revert(t *testing.T) {
	prev := Settings{ExposureMode: "auto", ISO: 100}
	next := Settings{ExposureMode: "night", ISO: 800}

	got := next.Revert(FieldExposureMode, prev)
	if got.ExposureMode != "auto" {
		t.Errorf("ExposureMode = %s, want reverted auto", got.ExposureMode)
	}
	if got.ISO != 800 {
		t.Errorf("ISO = %d, reverting one field must not touch others", got.ISO)
	}
}

// ---------- Raspistill ----------

func testRaspistill() *Raspistill {
	return &Raspistill{cfg: RaspistillConfig{
		Binary:      "raspistill",
		JPEGQuality: 10,
		Timeout:     time.Second,
	}}
}

func TestRaspistill_ApplySettingRejections(t *testing.T) {
	r := testRaspistill()

	cases := []struct {
		field Field
		s     Settings
	}{
		{FieldResolution, Settings{Resolution: Resolution{0, 600}}},
		{FieldRotation, Settings{Rotation: 45}},
		{FieldShutterSpeed, Settings{ShutterSpeed: -1}},
		// a 2s shutter cannot fit the 1s frame interval at 1 fps
		{FieldShutterSpeed, Settings{ShutterSpeed: 2_000_000, FrameRate: 1}},
		{FieldSensorMode, Settings{SensorMode: 9}},
		{FieldExposureMode, Settings{ExposureMode: "arctic"}},
		{FieldISO, Settings{ISO: 123}},
		{Field("bogus"), Settings{}},
	}
	for _, tc := range cases {
		if err := r.ApplySetting(tc.field, tc.s); !errors.Is(err, ErrRejected) {
			t.Errorf("ApplySetting(%s, %+v): expected ErrRejected, got %v", tc.field, tc.s, err)
		}
	}

	// nothing may stick after rejections
	if r.settings != (Settings{}) {
		t.Errorf("rejected settings leaked into device state: %+v", r.settings)
	}
}

func TestRaspistill_ApplySettingAccepted(t *testing.T) {
	r := testRaspistill()
	target := Settings{
		Resolution:   Resolution{1296, 972},
		FrameRate:    2,
		Rotation:     180,
		ShutterSpeed: 100_000,
		SensorMode:   3,
		ExposureMode: "night",
		ISO:          400,
	}

	for _, f := range Fields() {
		if err := r.ApplySetting(f, target); err != nil {
			t.Fatalf("ApplySetting(%s): %v", f, err)
		}
	}
	if r.settings != target {
		t.Errorf("device settings = %+v, want %+v", r.settings, target)
	}
}

func TestRaspistill_Args(t *testing.T) {
	r := testRaspistill()
	s := Settings{
		Resolution:   Resolution{800, 600},
		Rotation:     90,
		ShutterSpeed: 50_000,
		SensorMode:   4,
		ExposureMode: "night",
		ISO:          800,
	}

	args := strings.Join(r.args(s), " ")
	for _, want := range []string{
		"-o -", "-q 10", "-w 800", "-h 600", "-rot 90",
		"-md 4", "-ss 50000", "-ex night", "-ISO 800",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestRaspistill_ArgsOmitAutoValues(t *testing.T) {
	r := testRaspistill()
	args := strings.Join(r.args(Settings{Resolution: Resolution{800, 600}}), " ")

	for _, unwanted := range []string{"-md", "-ss", "-ex", "-ISO"} {
		if strings.Contains(args, unwanted+" ") {
			t.Errorf("args %q should omit %s when auto", args, unwanted)
		}
	}
}

// ---------- Mock ----------

func TestMock_RecordsSnapshots(t *testing.T) {
	m := NewMock()
	target := Settings{Resolution: Resolution{640, 480}, FrameRate: 2}
	for _, f := range Fields() {
		if err := m.ApplySetting(f, target); err != nil {
			t.Fatal(err)
		}
	}

	res, err := m.Capture()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Image) == 0 || res.CapturedAt.IsZero() {
		t.Errorf("capture result incomplete: %+v", res)
	}

	caps := m.Captures()
	if len(caps) != 1 || caps[0] != target {
		t.Errorf("captures = %+v, want one snapshot of %+v", caps, target)
	}
}

func TestMock_FailCaptures(t *testing.T) {
	m := NewMock()
	m.FailCaptures(ErrUnavailable, nil)

	if _, err := m.Capture(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("first capture: expected ErrUnavailable, got %v", err)
	}
	if _, err := m.Capture(); err != nil {
		t.Errorf("second capture: %v", err)
	}
}
