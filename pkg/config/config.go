package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	ModeSerial = "serial"
	ModeTCP    = "tcp"
	ModeScript = "script"
)

// Config represents the application configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Emulator  EmulatorConfig  `yaml:"emulator"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Plot      PlotConfig      `yaml:"plot"`
}

// TransportConfig selects and configures the command channel.
type TransportConfig struct {
	Mode       string `yaml:"mode"`        // serial, tcp or script
	Port       string `yaml:"port"`        // Serial device (e.g. /dev/ttyUSB0 or COM3)
	BaudRate   int    `yaml:"baud_rate"`   // Serial bit rate
	Host       string `yaml:"host"`        // TCP listen host
	TCPPort    int    `yaml:"tcp_port"`    // TCP listen port
	Script     string `yaml:"script"`      // Command script for script mode
	LineBuffer int    `yaml:"line_buffer"` // Pending input lines buffered by the reader
}

// EmulatorConfig contains tick loop parameters.
type EmulatorConfig struct {
	TickPeriod time.Duration `yaml:"tick_period"`
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level      string `yaml:"level"`  // logrus level name
	Format     string `yaml:"format"` // text or json
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PlotConfig contains live plot parameters.
type PlotConfig struct {
	Enabled       bool    `yaml:"enabled"`
	WindowSeconds float64 `yaml:"window_seconds"`
	MaxPoints     int     `yaml:"max_points"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Mode:       ModeSerial,
			Port:       "/dev/ttyUSB0",
			BaudRate:   9600,
			Host:       "0.0.0.0",
			TCPPort:    5025, // SCPI raw socket port
			LineBuffer: 16,
		},
		Emulator: EmulatorConfig{
			TickPeriod: time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Plot: PlotConfig{
			Enabled:       false,
			WindowSeconds: 60,
			MaxPoints:     1000,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case ModeSerial, ModeTCP, ModeScript:
	default:
		return fmt.Errorf("invalid transport mode %q: expected %s, %s or %s", c.Transport.Mode, ModeSerial, ModeTCP, ModeScript)
	}
	if c.Transport.Mode == ModeScript && c.Transport.Script == "" {
		return fmt.Errorf("transport mode %s requires a script path", ModeScript)
	}
	if c.Transport.TCPPort < 0 || c.Transport.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp port %d", c.Transport.TCPPort)
	}
	if c.Emulator.TickPeriod < 0 {
		return fmt.Errorf("invalid tick period %s", c.Emulator.TickPeriod)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Transport.Mode == "" {
		c.Transport.Mode = def.Transport.Mode
	}
	if c.Transport.Port == "" {
		c.Transport.Port = def.Transport.Port
	}
	if c.Transport.BaudRate == 0 {
		c.Transport.BaudRate = def.Transport.BaudRate
	}
	if c.Transport.Host == "" {
		c.Transport.Host = def.Transport.Host
	}
	if c.Transport.TCPPort == 0 {
		c.Transport.TCPPort = def.Transport.TCPPort
	}
	if c.Transport.LineBuffer == 0 {
		c.Transport.LineBuffer = def.Transport.LineBuffer
	}

	if c.Emulator.TickPeriod == 0 {
		c.Emulator.TickPeriod = def.Emulator.TickPeriod
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}

	if c.Plot.WindowSeconds == 0 {
		c.Plot.WindowSeconds = def.Plot.WindowSeconds
	}
	if c.Plot.MaxPoints == 0 {
		c.Plot.MaxPoints = def.Plot.MaxPoints
	}
}
