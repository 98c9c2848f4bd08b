package i2c

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/infincia/picamera-webthing/internal/debug"
)

// i2cSlave is the ioctl request selecting the target slave address
// on a /dev/i2c-N file descriptor (linux/i2c-dev.h I2C_SLAVE).
const i2cSlave = 0x0703

// DevBus is the real implementation using the Linux i2c-dev interface.
// Requires the i2c-dev kernel module and read/write access to the
// device node (i2c group membership or root).
type DevBus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint8
}

// OpenDevBus opens the I2C device node at path, e.g. "/dev/i2c-1".
func OpenDevBus(path string) (*DevBus, error) {
	debug.Info("Opening I2C bus %s", path)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w (is i2c enabled?)", path, err)
	}

	return &DevBus{f: f, addr: 0xff}, nil
}

// setAddr points the file descriptor at the given slave address.
// Callers must hold b.mu.
func (b *DevBus) setAddr(addr uint8) error {
	if b.addr == addr {
		return nil
	}
	if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("select I2C slave 0x%02x: %w", addr, err)
	}
	b.addr = addr
	return nil
}

func (b *DevBus) WriteByte(addr uint8, c byte) error {
	debug.I2C("WriteByte", addr, c)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.setAddr(addr); err != nil {
		return err
	}
	if _, err := b.f.Write([]byte{c}); err != nil {
		return fmt.Errorf("I2C write to 0x%02x: %w", addr, err)
	}
	return nil
}

func (b *DevBus) ReadByte(addr uint8) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.setAddr(addr); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := b.f.Read(buf); err != nil {
		return 0, fmt.Errorf("I2C read from 0x%02x: %w", addr, err)
	}
	debug.I2C("ReadByte", addr, buf[0])
	return buf[0], nil
}

func (b *DevBus) Close() error {
	debug.Trace("I2C Close (real bus)")
	return b.f.Close()
}
