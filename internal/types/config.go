package types

import "time"

// AIOConfig represents the configuration for the Adafruit IO feed
type AIOConfig struct {
	Username string     `yaml:"username"`
	Key      string     `yaml:"key"`
	Feed     string     `yaml:"feed"`
	MQTT     MQTTConfig `yaml:"mqtt"`
	REST     RESTConfig `yaml:"rest"`
}

// MQTTConfig represents the configuration for the push transport
type MQTTConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Broker               string        `yaml:"broker"`
	KeepAlive            time.Duration `yaml:"keepalive"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	LivenessWindow       time.Duration `yaml:"liveness_window"`
	ClientPrefix         string        `yaml:"client_prefix"`
}

// RESTConfig represents the configuration for the pull transport
type RESTConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	ApplyInitial bool          `yaml:"apply_initial"`
}

// TransportConfig represents the configuration for the instruction stream
type TransportConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DisplayConfig represents the configuration for the display
type DisplayConfig struct {
	Driver          string  `yaml:"driver"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	Brightness      int     `yaml:"brightness"`
	NightBrightness int     `yaml:"night_brightness"`
	GPIOSlowdown    int     `yaml:"gpio_slowdown"`
	PWMBits         int     `yaml:"pwm_bits"`
	GPIOChip        string  `yaml:"gpio_chip"`
	HardwareMapping string  `yaml:"hardware_mapping"`
	FrameRate       float64 `yaml:"frame_rate"`
	FontFile        string  `yaml:"font_file"`
}

// ForecastConfig represents the timing of the forecast carousel
type ForecastConfig struct {
	FlipInterval      time.Duration `yaml:"flip_interval"`
	InterruptEnabled  bool          `yaml:"interrupt_enabled"`
	InterruptDuration time.Duration `yaml:"interrupt_duration"`
	StartupGrace      time.Duration `yaml:"startup_grace"`
}

// WeatherConfig represents the configuration for the weather feed
type WeatherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	Latitude       *float64      `yaml:"latitude"`
	Longitude      *float64      `yaml:"longitude"`
	BaseURL        string        `yaml:"base_url"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ScheduleRule represents a recurring instruction
type ScheduleRule struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"`
	Command string `yaml:"command"`
}

// ScheduleConfig represents the configuration for scheduled behavior
type ScheduleConfig struct {
	EnableAutoDimming bool           `yaml:"enable_auto_dimming"`
	NightStart        string         `yaml:"night_start"`
	NightEnd          string         `yaml:"night_end"`
	Rules             []ScheduleRule `yaml:"rules"`
}

// RTCConfig represents the configuration for the hardware clock
type RTCConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Bus            string        `yaml:"bus"`
	Address        uint16        `yaml:"address"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	DriftThreshold time.Duration `yaml:"drift_threshold"`
}

// StatusConfig represents the configuration for the status server
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig represents the configuration for logging
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	BackupCount int    `yaml:"backup_count"`
}
