package sensor

import (
	"fmt"
	"time"

	"github.com/infincia/picamera-webthing/internal/hw/i2c"
)

// SI7021 over I2C:
// - address 0x40
// - 0xF5 starts a relative humidity measurement (no-hold master mode)
// - 0xF3 starts a temperature measurement (no-hold master mode)
// Each measurement returns 16 bits, MSB first, read as two single-byte
// transfers after the conversion time has passed.
const (
	si7021Addr     = 0x40
	cmdHumidity    = 0xF5
	cmdTemperature = 0xF3
)

// SI7021 is a Sensor implementation for the Silicon Labs SI7021
// temperature/humidity chip.
type SI7021 struct {
	bus    i2c.Bus
	settle time.Duration // wait after each command/read for conversion
}

// NewSI7021 creates an SI7021 reader on the given bus. settle is the
// conversion wait between bus operations; 300ms is a safe value for
// the chip's worst-case conversion time.
func NewSI7021(bus i2c.Bus, settle time.Duration) *SI7021 {
	return &SI7021{bus: bus, settle: settle}
}

// Read performs one humidity and one temperature measurement.
func (s *SI7021) Read() (Reading, error) {
	rawHum, err := s.measure(cmdHumidity)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: humidity: %v", ErrUnavailable, err)
	}

	time.Sleep(s.settle)

	rawTemp, err := s.measure(cmdTemperature)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: temperature: %v", ErrUnavailable, err)
	}

	humidity := float64(rawHum)*125/65536.0 - 6
	if humidity < 0 {
		humidity = 0
	}
	if humidity > 100 {
		humidity = 100
	}
	temperature := float64(rawTemp)*175.72/65536.0 - 46.85

	return Reading{
		Temperature: temperature,
		Humidity:    humidity,
		ReadAt:      time.Now(),
	}, nil
}

// measure issues one conversion command and reads the 16-bit result.
func (s *SI7021) measure(cmd byte) (uint16, error) {
	if err := s.bus.WriteByte(si7021Addr, cmd); err != nil {
		return 0, err
	}

	time.Sleep(s.settle)

	msb, err := s.bus.ReadByte(si7021Addr)
	if err != nil {
		return 0, err
	}
	lsb, err := s.bus.ReadByte(si7021Addr)
	if err != nil {
		return 0, err
	}
	return uint16(msb)<<8 | uint16(lsb), nil
}
