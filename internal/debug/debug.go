package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, faults, recoveries)
	LevelLive    = 2 // Live info (captures, property changes, sensor readings)
	LevelVerbose = 3 // Verbose (timing, scheduler decisions)
	LevelTrace   = 4 // Trace (I2C, GPIO, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, device faults, recoveries)
// 2 = live info (captures published, property writes, sensor readings)
// 3 = verbose (capture timing, sleep intervals, settings diffs)
// 4 = trace (I2C and GPIO operations)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[picamera] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output, e.g. to a multi-writer.
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Section prints a section separator (level 1).
func Section(name string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// Fault prints a scheduler fault (level 1).
func Fault(component string, err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[FAULT] %s: %v", component, err)
	}
}

// Recovered prints a fault recovery (level 1).
func Recovered(component string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] %s: recovered, resuming normal operation", component)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Capture prints a completed capture with its measured latency (level 2).
func Capture(bytes int, took time.Duration) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Capture complete: %d bytes in %v", bytes, took)
	}
}

// Property prints a property change (level 2).
func Property(name string, value interface{}) {
	if level >= LevelLive && logger != nil {
		// base64 payloads are large, log length only
		if s, ok := value.(string); ok && name == "stillImage" {
			logger.Printf("[LIVE] Property %s = <%d bytes base64>", name, len(s))
			return
		}
		logger.Printf("[LIVE] Property %s = %v", name, value)
	}
}

// Sensor prints an environment reading (level 2).
func Sensor(temperature, humidity float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Sensor: %.2f°C %.1f%%RH", temperature, humidity)
	}
}

// --- Level 3 functions (Verbose) ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// I2C prints an I2C operation (level 4).
func I2C(operation string, addr uint8, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[I2C] %s addr=0x%02x value=%v", operation, addr, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
