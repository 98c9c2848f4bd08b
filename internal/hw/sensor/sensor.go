package sensor

import (
	"errors"
	"sync"
	"time"
)

// ErrUnavailable means the environment sensor could not be read.
// Sensor failures are always non-fatal; the sensor scheduler logs
// them and keeps the previous published reading.
var ErrUnavailable = errors.New("environment sensor unavailable")

// Reading is one temperature/humidity measurement.
type Reading struct {
	Temperature float64 // degrees Celsius
	Humidity    float64 // relative humidity, 0-100 %
	ReadAt      time.Time
}

// Sensor is the abstract environment sensor interface. Read blocks
// for the duration of one measurement; no retry logic lives here.
type Sensor interface {
	Read() (Reading, error)
}

// Mock is a Sensor implementation for development and testing.
type Mock struct {
	mu       sync.Mutex
	reading  Reading
	errQueue []error
}

// NewMock returns a mock sensor reporting the given values.
func NewMock(temperature, humidity float64) *Mock {
	return &Mock{reading: Reading{Temperature: temperature, Humidity: humidity}}
}

// Set changes the values returned by subsequent reads.
func (m *Mock) Set(temperature, humidity float64) {
	m.mu.Lock()
	m.reading.Temperature = temperature
	m.reading.Humidity = humidity
	m.mu.Unlock()
}

// FailReads queues errors to be returned by the next Read calls, in
// order. A nil entry means that read succeeds.
func (m *Mock) FailReads(errs ...error) {
	m.mu.Lock()
	m.errQueue = append(m.errQueue, errs...)
	m.mu.Unlock()
}

func (m *Mock) Read() (Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errQueue) > 0 {
		err := m.errQueue[0]
		m.errQueue = m.errQueue[1:]
		if err != nil {
			return Reading{}, err
		}
	}
	r := m.reading
	r.ReadAt = time.Now()
	return r, nil
}
