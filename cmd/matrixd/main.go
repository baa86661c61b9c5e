package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/fkcurrie/led-matrix-display/internal/config"
	"github.com/fkcurrie/led-matrix-display/internal/display"
	"github.com/fkcurrie/led-matrix-display/internal/logging"
	"github.com/fkcurrie/led-matrix-display/internal/metrics"
	"github.com/fkcurrie/led-matrix-display/internal/mode"
	"github.com/fkcurrie/led-matrix-display/internal/netinfo"
	"github.com/fkcurrie/led-matrix-display/internal/rtc"
	"github.com/fkcurrie/led-matrix-display/internal/schedule"
	"github.com/fkcurrie/led-matrix-display/internal/status"
	"github.com/fkcurrie/led-matrix-display/internal/transport"
	"github.com/fkcurrie/led-matrix-display/internal/types"
	"github.com/fkcurrie/led-matrix-display/internal/weather"
	"github.com/fkcurrie/led-matrix-display/pkg/ds3231"
	"github.com/fkcurrie/led-matrix-display/pkg/hub75"
)

// previewScale enlarges preview frames so single LEDs stay visible
const previewScale = 8

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	sim := flag.Bool("sim", false, "Render to an in-memory matrix instead of the panel")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration from %s:\n%v\n", *configPath, err)
		os.Exit(1)
	}
	if *sim {
		cfg.Display.Driver = "sim"
	}

	logger, logOut := logging.New(cfg.Logging, *debug)
	slog.SetDefault(logger)

	if err := run(cfg, logger, logOut); err != nil {
		var cerr *config.ConfigError
		if errors.As(err, &cerr) {
			fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		} else {
			logger.Error("matrixd stopped", "error", err)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, accessLog io.Writer) error {
	scheduler, err := schedule.New(cfg.Schedule.Rules)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	clock := rtc.NewClock(clockwork.NewRealClock(), rtc.Floor)

	matrix, err := openMatrix(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to open matrix: %w", err)
	}
	defer closeMatrix(matrix, logger)

	fonts, err := display.LoadFonts(cfg.Display.FontFile)
	if err != nil {
		return err
	}

	store := weather.NewStore(cfg.Weather.StaleAfter)
	dayNight, err := display.NewDayNight(cfg.Schedule, store)
	if err != nil {
		return err
	}

	renderer := display.NewRenderer(matrix, display.NewComposer(fonts, display.NewIcons()), dayNight, store,
		display.Options{
			FrameRate:  cfg.Display.FrameRate,
			Brightness: display.Brightness{Day: cfg.Display.Brightness, Night: cfg.Display.NightBrightness},
		}, clock, logger, m)
	hub := status.NewHub(previewScale, logger)
	renderer.SetObserver(hub.Publish)

	var liveness time.Duration
	if cfg.AIO.MQTT.Enabled {
		liveness = cfg.AIO.MQTT.LivenessWindow
	}
	reconciler := transport.NewReconciler(cfg.Transport.QueueSize, liveness, clock, logger, m)

	machine := mode.NewMachine(mode.ConfigFrom(cfg.Forecast, time.Local), clock.Now(), logger, m)
	engine := mode.NewEngine(machine, reconciler.Instructions(), scheduler, reconciler, renderer, clock, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return renderer.Start(ctx) })
	g.Go(func() error { return reconciler.Watch(ctx) })

	if cfg.AIO.MQTT.Enabled {
		push := transport.NewPush(transport.PushConfig{
			Broker:               cfg.AIO.MQTT.Broker,
			Username:             cfg.AIO.Username,
			Key:                  cfg.AIO.Key,
			Feed:                 cfg.AIO.Feed,
			ClientPrefix:         cfg.AIO.MQTT.ClientPrefix,
			KeepAlive:            cfg.AIO.MQTT.KeepAlive,
			ConnectTimeout:       cfg.AIO.MQTT.ConnectTimeout,
			MaxReconnectInterval: cfg.AIO.MQTT.MaxReconnectInterval,
			Heartbeat:            cfg.AIO.MQTT.LivenessWindow / 4,
		}, reconciler, logger)
		g.Go(func() error { return push.Run(ctx) })
	}

	if cfg.AIO.REST.Enabled {
		poller := transport.NewPoller(transport.PollerConfig{
			BaseURL:      cfg.AIO.REST.BaseURL,
			Username:     cfg.AIO.Username,
			Key:          cfg.AIO.Key,
			Feed:         cfg.AIO.Feed,
			Interval:     cfg.AIO.REST.PollInterval,
			Timeout:      cfg.AIO.REST.Timeout,
			ApplyInitial: cfg.AIO.REST.ApplyInitial,
		}, reconciler, clock, logger)
		g.Go(func() error { return poller.Run(ctx) })
	}

	if cfg.Weather.Enabled {
		client := weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey,
			*cfg.Weather.Latitude, *cfg.Weather.Longitude, cfg.Weather.Timeout, time.Local)
		updater := weather.NewUpdater(client, store, cfg.Weather.UpdateInterval, clock, logger, m)
		g.Go(func() error { return updater.Run(ctx) })
	}

	if cfg.RTC.Enabled {
		dev, bus, err := openRTC(cfg.RTC)
		if err != nil {
			// The service runs on system time alone
			logger.Warn("RTC unavailable", "error", err)
		} else {
			defer bus.Close()
			syncer := rtc.NewSyncer(dev, clock, cfg.RTC.SyncInterval, cfg.RTC.DriftThreshold, logger, m)
			g.Go(func() error { return syncer.Run(ctx) })
		}
	}

	addrs, err := netinfo.Addresses()
	if err != nil {
		logger.Warn("failed to list addresses", "error", err)
	}

	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status, status.Sources{
			Engine:  engine,
			Stream:  reconciler,
			Weather: store,
			Display: renderer,
			Addresses: func() []string {
				a, _ := netinfo.Addresses()
				return a
			},
		}, hub, m, clock, logger, accessLog)
		g.Go(func() error { return srv.Run(ctx) })
	}

	logger.Info("matrixd started",
		"driver", cfg.Display.Driver,
		"size", fmt.Sprintf("%dx%d", cfg.Display.Width, cfg.Display.Height),
		"addresses", addrs,
		"schedule_rules", scheduler.Len())

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func openMatrix(cfg types.DisplayConfig) (types.Matrix, error) {
	if cfg.Driver == "sim" {
		return display.NewSimMatrix(cfg.Width, cfg.Height), nil
	}

	pins, err := hub75.PinsFor(cfg.HardwareMapping)
	if err != nil {
		return nil, err
	}
	m, err := hub75.Open(hub75.Config{
		Width:      cfg.Width,
		Height:     cfg.Height,
		PWMBits:    cfg.PWMBits,
		Slowdown:   cfg.GPIOSlowdown,
		Brightness: cfg.Brightness,
		Chip:       cfg.GPIOChip,
		Pins:       pins,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// closeMatrix blanks the panel before releasing it
func closeMatrix(m types.Matrix, logger *slog.Logger) {
	if err := m.Clear(); err == nil {
		if err := m.Show(); err != nil {
			logger.Warn("failed to blank matrix", "error", err)
		}
	}
	if err := m.Close(); err != nil {
		logger.Warn("failed to close matrix", "error", err)
	}
}

func openRTC(cfg types.RTCConfig) (*ds3231.Dev, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", cfg.Bus, err)
	}
	return ds3231.New(bus, cfg.Address), bus, nil
}
