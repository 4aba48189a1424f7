package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all genrecover configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Decision engine thresholds
	Recovery RecoveryConfig `yaml:"recovery"`

	// Raw-text fallback extraction
	Emergency EmergencyConfig `yaml:"emergency"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// HTTP service
	Server ServerConfig `yaml:"server"`

	// Stall watcher
	Watch WatchConfig `yaml:"watch"`
}

// ServerConfig configures the analysis HTTP service.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	EnableMetrics   bool   `yaml:"enable_metrics"`
}

// WatchConfig configures the buffer stall watcher.
type WatchConfig struct {
	StallAfter   string `yaml:"stall_after"`   // quiet period before a buffer counts as stalled
	PollInterval string `yaml:"poll_interval"` // how often pending buffers are checked
	DoneSuffix   string `yaml:"done_suffix"`   // marker file suffix signalling stream end
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "genrecover",
		Version: "0.4.0",

		Recovery:  DefaultRecoveryConfig(),
		Emergency: DefaultEmergencyConfig(),

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			DebugMode: false,
		},

		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8787",
			MaxBodyBytes:    8 << 20,
			ShutdownTimeout: "5s",
			EnableMetrics:   true,
		},

		Watch: WatchConfig{
			StallAfter:   "3s",
			PollInterval: "100ms",
			DoneSuffix:   ".done",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honor the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("GENRECOVER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("GENRECOVER_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = v
		}
	}
	if addr := os.Getenv("GENRECOVER_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}
}

// GetShutdownTimeout returns the server shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetStallAfter returns the watcher quiet period as a duration.
func (c *Config) GetStallAfter() time.Duration {
	d, err := time.ParseDuration(c.Watch.StallAfter)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// GetPollInterval returns the watcher poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.PollInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Recovery.Validate(); err != nil {
		return err
	}
	if err := c.Emergency.Validate(); err != nil {
		return err
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}

	return nil
}
