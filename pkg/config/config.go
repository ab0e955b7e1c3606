// Package config provides configuration loading and management for the
// neurofmt command line tools. It handles loading configuration from YAML
// files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the tool configuration loaded from YAML
type Config struct {
	// Output parameters
	Output struct {
		// Verbose controls the level of output printed by the tools
		Verbose bool `yaml:"verbose"`

		// FloatDigits is the number of decimal digits used when printing
		// coordinates, morphometry values and affine matrices
		FloatDigits int `yaml:"floatDigits"`
	} `yaml:"output"`

	// Volume parameters
	Volume struct {
		// GzipLevel is the compression level used when writing MGZ
		// containers (1-9, 0 selects the library default)
		GzipLevel int `yaml:"gzipLevel"`
	} `yaml:"volume"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Output.Verbose = false
	cfg.Output.FloatDigits = 3

	cfg.Volume.GzipLevel = 0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
