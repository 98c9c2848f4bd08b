package scheduler

import (
	"context"
	"time"

	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/hw/sensor"
	"github.com/infincia/picamera-webthing/internal/property"
)

// SensorScheduler polls the environment sensor at a fixed interval and
// publishes readings into the store. It shares nothing with the
// capture scheduler beyond the store itself: a missing or flaky sensor
// never affects image capture, and a failed poll simply keeps the
// previous published reading.
type SensorScheduler struct {
	store    *property.Store
	sensor   sensor.Sensor
	interval time.Duration
}

// NewSensorScheduler creates a poller with the given interval.
func NewSensorScheduler(store *property.Store, s sensor.Sensor, interval time.Duration) *SensorScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SensorScheduler{
		store:    store,
		sensor:   s,
		interval: interval,
	}
}

// Run polls until ctx is cancelled, reading immediately on entry so a
// value is available soon after startup.
func (s *SensorScheduler) Run(ctx context.Context) error {
	debug.Info("Sensor loop running")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		reading, err := s.sensor.Read()
		if err != nil {
			debug.Fault("sensor scheduler", err)
		} else {
			s.store.PublishEnvironment(reading)
			debug.Sensor(reading.Temperature, reading.Humidity)
		}

		if err := sleepCtx(ctx, s.interval); err != nil {
			return err
		}
	}
}
