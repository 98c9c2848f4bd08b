package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/infincia/picamera-webthing/internal/config"
	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/hw/camera"
	"github.com/infincia/picamera-webthing/internal/hw/gpio"
	"github.com/infincia/picamera-webthing/internal/hw/i2c"
	"github.com/infincia/picamera-webthing/internal/hw/led"
	"github.com/infincia/picamera-webthing/internal/hw/sensor"
	"github.com/infincia/picamera-webthing/internal/logic/scheduler"
	"github.com/infincia/picamera-webthing/internal/property"
	"github.com/infincia/picamera-webthing/internal/web"
)

// conversion wait between SI7021 bus operations
const si7021Settle = 300 * time.Millisecond

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	port := flag.Int("port", 0, "override HTTP listen port")
	mock := flag.Bool("mock", false, "force mock camera and sensor hardware (development)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *mock {
		cfg.Camera.Type = "mock"
		cfg.Sensors.MockBus = true
		cfg.StatusLED.MockGPIO = true
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Thing name", cfg.Name)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	initial, err := cfg.Settings()
	if err != nil {
		log.Fatalf("invalid camera settings: %v", err)
	}
	debug.PrintStruct("Initial camera settings", initial)

	// A device that cannot be opened at all means no useful service can
	// be offered; everything after startup is retried instead.
	device, err := newCameraFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)

	store := property.NewStore(initial, cfg.Sensors.SI7021Enabled)

	captureSched := scheduler.NewCaptureScheduler(store, device, scheduler.CaptureConfig{
		Backoff: cfg.FaultBackoff(),
		Warmup:  cfg.Warmup(),
	})

	var statusLED *led.StatusLED
	if cfg.StatusLED.Enabled {
		gpioDriver, err := gpio.NewDriver(cfg.StatusLED.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		statusLED = led.New(gpioDriver, cfg.StatusLED.Pin)
		defer statusLED.Off()

		captureSched.OnStateChange(func(st scheduler.State) {
			statusLED.SetHealthy(st != scheduler.StateFaulted)
		})
		debug.Value("Status LED pin", cfg.StatusLED.Pin)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return captureSched.Run(ctx)
	})

	if cfg.Sensors.SI7021Enabled {
		bus, err := i2c.NewBus(cfg.Sensors.MockBus, cfg.Sensors.I2CBus)
		if err != nil {
			log.Fatalf("init I2C failed: %v", err)
		}
		defer func() {
			if err := bus.Close(); err != nil {
				log.Printf("closing I2C bus failed: %v", err)
			}
		}()
		si := sensor.NewSI7021(bus, si7021Settle)
		sensorSched := scheduler.NewSensorScheduler(store, si, cfg.SensorInterval())
		g.Go(func() error {
			return sensorSched.Run(ctx)
		})
		debug.Info("Temperature/humidity properties enabled")
	}

	srv := web.NewServer(fmt.Sprintf(":%d", cfg.Port), cfg.Name, store)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	debug.Info("PiCamera Web Thing ready: %s on port %d", cfg.Name, cfg.Port)

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatalf("service stopped: %v", err)
	}
	debug.Info("Shutdown complete")
}

// newCameraFromConfig selects a capture device implementation based on
// configuration.
func newCameraFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case "raspistill":
		return camera.NewRaspistill(camera.RaspistillConfig{
			Binary:      cfg.Camera.Binary,
			JPEGQuality: cfg.Camera.JPEGQuality,
			Timeout:     cfg.CaptureTimeout(),
			FastCapture: cfg.Camera.FastCapture,
		})
	case "mock":
		return camera.NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
