package config

import "fmt"

// RecoveryConfig holds the decision engine thresholds.
type RecoveryConfig struct {
	MinBufferLength   int `yaml:"min_buffer_length" json:"min_buffer_length"`     // below this nothing is extracted
	MaxBraceImbalance int `yaml:"max_brace_imbalance" json:"max_brace_imbalance"` // |{ - }| tolerated before a file is suspicious
	MaxParenImbalance int `yaml:"max_paren_imbalance" json:"max_paren_imbalance"` // |( - )| tolerated before a file is suspicious
	MinPartialLength  int `yaml:"min_partial_length" json:"min_partial_length"`   // repaired partial files must exceed this
}

// EmergencyConfig holds the raw-text extraction thresholds.
type EmergencyConfig struct {
	MinBufferLength int    `yaml:"min_buffer_length" json:"min_buffer_length"` // skipped below this unless forced
	MinBlockLength  int    `yaml:"min_block_length" json:"min_block_length"`   // shortest accepted file body
	BoundaryGrace   int    `yaml:"boundary_grace" json:"boundary_grace"`       // prose boundaries before this offset are ignored
	LookbehindChars int    `yaml:"lookbehind_chars" json:"lookbehind_chars"`   // window searched for a path before a fence
	RootPrefix      string `yaml:"root_prefix" json:"root_prefix"`             // prefix added to bare marker paths
}

// DefaultRecoveryConfig returns the stock decision engine thresholds.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MinBufferLength:   1000,
		MaxBraceImbalance: 1,
		MaxParenImbalance: 2,
		MinPartialLength:  100,
	}
}

// DefaultEmergencyConfig returns the stock emergency extraction thresholds.
func DefaultEmergencyConfig() EmergencyConfig {
	return EmergencyConfig{
		MinBufferLength: 5000,
		MinBlockLength:  50,
		BoundaryGrace:   50,
		LookbehindChars: 100,
		RootPrefix:      "src/",
	}
}

// Validate checks the recovery thresholds.
func (r RecoveryConfig) Validate() error {
	if r.MinBufferLength < 0 {
		return fmt.Errorf("recovery.min_buffer_length must be >= 0")
	}
	if r.MaxBraceImbalance < 0 || r.MaxParenImbalance < 0 {
		return fmt.Errorf("recovery imbalance thresholds must be >= 0")
	}
	if r.MinPartialLength < 0 {
		return fmt.Errorf("recovery.min_partial_length must be >= 0")
	}
	return nil
}

// Validate checks the emergency thresholds.
func (e EmergencyConfig) Validate() error {
	if e.MinBufferLength < 0 || e.MinBlockLength < 0 {
		return fmt.Errorf("emergency length thresholds must be >= 0")
	}
	if e.BoundaryGrace < 0 || e.LookbehindChars < 0 {
		return fmt.Errorf("emergency window sizes must be >= 0")
	}
	return nil
}
