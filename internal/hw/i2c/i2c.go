package i2c

import (
	"sync"

	"github.com/infincia/picamera-webthing/internal/debug"
)

// Bus defines the abstract interface for byte-level I2C access,
// matching the SMBus-style transfers the SI7021 needs. This allows
// plugging in the real /dev/i2c device or a mock for development on PC.
type Bus interface {
	WriteByte(addr uint8, b byte) error
	ReadByte(addr uint8) (byte, error)
	Close() error
}

// NewBus opens an I2C bus. If mock is true, returns a MockBus (for
// dev/test). Otherwise opens the Linux device node at path
// (e.g. "/dev/i2c-1").
func NewBus(mock bool, path string) (Bus, error) {
	if mock {
		debug.Info("Using MOCK I2C bus (development mode)")
		return &MockBus{}, nil
	}
	return OpenDevBus(path)
}

// MockBus is a test implementation that logs transfers and replays
// queued read bytes.
type MockBus struct {
	mu     sync.Mutex
	writes []byte
	reads  []byte
}

// QueueReads appends bytes to be returned by subsequent ReadByte calls.
func (m *MockBus) QueueReads(b ...byte) {
	m.mu.Lock()
	m.reads = append(m.reads, b...)
	m.mu.Unlock()
}

// Writes returns a copy of all bytes written so far.
func (m *MockBus) Writes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockBus) WriteByte(addr uint8, b byte) error {
	debug.I2C("WriteByte", addr, b)
	m.mu.Lock()
	m.writes = append(m.writes, b)
	m.mu.Unlock()
	return nil
}

func (m *MockBus) ReadByte(addr uint8) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b byte
	if len(m.reads) > 0 {
		b = m.reads[0]
		m.reads = m.reads[1:]
	}
	debug.I2C("ReadByte", addr, b)
	return b, nil
}

func (m *MockBus) Close() error {
	debug.Trace("I2C Close (mock)")
	return nil
}
