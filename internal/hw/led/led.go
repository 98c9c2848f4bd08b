package led

import (
	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/hw/gpio"
)

// StatusLED drives a single GPIO pin to signal service health:
// lit while the capture loop is healthy, dark while it is faulted.
// The LED anode is wired to the pin through a resistor (active HIGH).
type StatusLED struct {
	gpio gpio.Driver
	pin  int
}

// New configures the pin as an output and returns the LED, initially off.
func New(g gpio.Driver, pin int) *StatusLED {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)

	return &StatusLED{
		gpio: g,
		pin:  pin,
	}
}

// SetHealthy turns the LED on when healthy and off when faulted.
func (l *StatusLED) SetHealthy(healthy bool) {
	level := gpio.Low
	if healthy {
		level = gpio.High
	}
	if err := l.gpio.WritePin(l.pin, level); err != nil {
		debug.Error(err)
	}
}

// Off turns the LED off, used at shutdown.
func (l *StatusLED) Off() {
	_ = l.gpio.WritePin(l.pin, gpio.Low)
}
