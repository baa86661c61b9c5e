package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/led-matrix-display/internal/types"
)

// Config represents the application configuration
type Config struct {
	AIO       types.AIOConfig       `yaml:"aio"`
	Transport types.TransportConfig `yaml:"transport"`
	Display   types.DisplayConfig   `yaml:"display"`
	Forecast  types.ForecastConfig  `yaml:"forecast"`
	Weather   types.WeatherConfig   `yaml:"weather"`
	Schedule  types.ScheduleConfig  `yaml:"schedule"`
	RTC       types.RTCConfig       `yaml:"rtc"`
	Status    types.StatusConfig    `yaml:"status"`
	Logging   types.LoggingConfig   `yaml:"logging"`
}

// ConfigError reports an invalid or missing configuration value
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LoadConfig loads the configuration from a file. Values missing from the file
// keep their defaults and ${VAR} references are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document on top of DefaultConfig
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Field: "yaml", Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AIO: types.AIOConfig{
			Feed: "matrixmessage",
			MQTT: types.MQTTConfig{
				Enabled:              true,
				Broker:               "tcp://io.adafruit.com:1883",
				KeepAlive:            60 * time.Second,
				ConnectTimeout:       10 * time.Second,
				MaxReconnectInterval: 30 * time.Second,
				LivenessWindow:       2 * time.Minute,
				ClientPrefix:         "matrixd",
			},
			REST: types.RESTConfig{
				Enabled:      true,
				BaseURL:      "https://io.adafruit.com/api/v2",
				PollInterval: 10 * time.Second,
				Timeout:      10 * time.Second,
			},
		},
		Transport: types.TransportConfig{
			QueueSize: 8,
		},
		Display: types.DisplayConfig{
			Driver:          "hub75",
			Width:           64,
			Height:          32,
			Brightness:      100,
			NightBrightness: 60,
			GPIOSlowdown:    4,
			PWMBits:         11,
			GPIOChip:        "gpiochip0",
			HardwareMapping: "adafruit-hat-pwm",
			FrameRate:       10,
		},
		Forecast: types.ForecastConfig{
			FlipInterval:      10 * time.Second,
			InterruptEnabled:  true,
			InterruptDuration: 30 * time.Second,
			StartupGrace:      60 * time.Second,
		},
		Weather: types.WeatherConfig{
			Enabled:        true,
			BaseURL:        "https://api.openweathermap.org/data/2.5",
			UpdateInterval: 5 * time.Minute,
			StaleAfter:     10 * time.Minute,
			Timeout:        10 * time.Second,
		},
		Schedule: types.ScheduleConfig{
			EnableAutoDimming: true,
			NightStart:        "22:00",
			NightEnd:          "07:00",
			Rules: []types.ScheduleRule{
				{Name: "weekday-forecast", Cron: "30 7 * * 1-5", Command: "FORECAST"},
				{Name: "weekend-forecast", Cron: "0 9 * * 0,6", Command: "FORECAST"},
				{Name: "auto-off", Cron: "0 22 * * *", Command: "OFF"},
			},
		},
		RTC: types.RTCConfig{
			Enabled:        true,
			Bus:            "1",
			Address:        0x68,
			SyncInterval:   time.Hour,
			DriftThreshold: 2 * time.Second,
		},
		Status: types.StatusConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Logging: types.LoggingConfig{
			Level:       "INFO",
			Format:      "text",
			MaxSizeMB:   10,
			BackupCount: 3,
		},
	}
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.AIO.MQTT.Enabled || c.AIO.REST.Enabled {
		if c.AIO.Username == "" {
			add("aio.username", "required")
		}
		if c.AIO.Key == "" {
			add("aio.key", "required")
		}
		if c.AIO.Feed == "" {
			add("aio.feed", "required")
		}
	}
	if c.AIO.MQTT.Enabled {
		if c.AIO.MQTT.Broker == "" {
			add("aio.mqtt.broker", "required")
		}
		if c.AIO.MQTT.LivenessWindow <= 0 {
			add("aio.mqtt.liveness_window", "must be positive")
		}
	}
	if c.AIO.REST.Enabled {
		if c.AIO.REST.BaseURL == "" {
			add("aio.rest.base_url", "required")
		}
		if c.AIO.REST.PollInterval <= 0 {
			add("aio.rest.poll_interval", "must be positive")
		}
		if c.AIO.REST.Timeout <= 0 {
			add("aio.rest.timeout", "must be positive")
		}
	}
	if c.Transport.QueueSize < 1 {
		add("transport.queue_size", "must be at least 1")
	}

	switch c.Display.Driver {
	case "hub75", "sim":
	default:
		add("display.driver", "unknown driver %q", c.Display.Driver)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		add("display.width", "invalid dimensions %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.Brightness < 0 || c.Display.Brightness > 100 {
		add("display.brightness", "must be between 0 and 100")
	}
	if c.Display.NightBrightness < 0 || c.Display.NightBrightness > 100 {
		add("display.night_brightness", "must be between 0 and 100")
	}
	if c.Display.PWMBits < 1 || c.Display.PWMBits > 11 {
		add("display.pwm_bits", "must be between 1 and 11")
	}
	if c.Display.GPIOSlowdown < 0 {
		add("display.gpio_slowdown", "must not be negative")
	}
	if c.Display.FrameRate <= 0 || c.Display.FrameRate > 60 {
		add("display.frame_rate", "must be in (0, 60]")
	}
	if c.Display.FontFile != "" {
		if _, err := os.Stat(c.Display.FontFile); err != nil {
			add("display.font_file", "%v", err)
		}
	}

	if c.Forecast.FlipInterval <= 0 {
		add("forecast.flip_interval", "must be positive")
	}
	if c.Forecast.InterruptEnabled && c.Forecast.InterruptDuration <= 0 {
		add("forecast.interrupt_duration", "must be positive")
	}
	if c.Forecast.StartupGrace < 0 {
		add("forecast.startup_grace", "must not be negative")
	}

	if c.Weather.Enabled {
		if c.Weather.APIKey == "" {
			add("weather.api_key", "required when weather is enabled")
		}
		if c.Weather.Latitude == nil || c.Weather.Longitude == nil {
			add("weather.latitude", "latitude and longitude are required when weather is enabled")
		}
		if c.Weather.UpdateInterval <= 0 {
			add("weather.update_interval", "must be positive")
		}
		if c.Weather.StaleAfter <= 0 {
			add("weather.stale_after", "must be positive")
		}
	}

	if _, err := ParseClock(c.Schedule.NightStart); err != nil {
		add("schedule.night_start", "%v", err)
	}
	if _, err := ParseClock(c.Schedule.NightEnd); err != nil {
		add("schedule.night_end", "%v", err)
	}
	seen := make(map[string]bool)
	for i, r := range c.Schedule.Rules {
		field := fmt.Sprintf("schedule.rules[%d]", i)
		if r.Name == "" {
			add(field+".name", "required")
		} else if seen[r.Name] {
			add(field+".name", "duplicate rule %q", r.Name)
		}
		seen[r.Name] = true
		if r.Cron == "" {
			add(field+".cron", "required")
		}
		if strings.TrimSpace(r.Command) == "" {
			add(field+".command", "required")
		}
	}

	if c.RTC.Enabled {
		if c.RTC.Bus == "" {
			add("rtc.bus", "required")
		}
		if c.RTC.Address == 0 || c.RTC.Address > 0x7f {
			add("rtc.address", "invalid i2c address %#x", c.RTC.Address)
		}
		if c.RTC.SyncInterval <= 0 {
			add("rtc.sync_interval", "must be positive")
		}
	}

	if c.Status.Enabled && c.Status.Listen == "" {
		add("status.listen", "required")
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", "unknown format %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// ParseClock parses an "HH:MM" time of day into minutes after midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
