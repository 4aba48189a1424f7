package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level" json:"level,omitempty"`
	// json or console
	Format string `yaml:"format" json:"format,omitempty"`
	// stderr, stdout or a file path
	OutputPath string `yaml:"output_path" json:"output_path,omitempty"`
	// Master toggle for category loggers
	DebugMode bool `yaml:"debug_mode" json:"debug_mode,omitempty"`
	// Per-category toggles
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"`
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
// Returns true if debug_mode is true and category is enabled (or not specified).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
