// Package config holds the tunables for a bptree.Tree: fan-out bounds, the
// logging hook used for surfaced warnings, and the corruption policy. It
// mirrors the way the rest of this corpus loads and saves YAML configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLeafSize is the split threshold for leaf nodes (spec §6.4).
const DefaultMaxLeafSize = 32

// DefaultMaxInternalSize is the split threshold for internal nodes (spec §6.4).
const DefaultMaxInternalSize = 32

// TreeConfig holds the configuration for a bptree.Tree.
type TreeConfig struct {
	// MaxLeafSize is the split threshold for leaf nodes.
	MaxLeafSize int `yaml:"max_leaf_size"`
	// MaxInternalSize is the split threshold for internal nodes.
	MaxInternalSize int `yaml:"max_internal_size"`
	// StrictCorruption, when true, makes a missing node record return
	// ErrCorruption instead of being treated as an empty leaf.
	StrictCorruption bool `yaml:"strict_corruption"`

	// Logger receives warnings for rejected list bounds. Not serialized;
	// defaults to log.Default() when nil.
	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration spec §6.4 names as defaults.
func DefaultConfig() *TreeConfig {
	return &TreeConfig{
		MaxLeafSize:      DefaultMaxLeafSize,
		MaxInternalSize:  DefaultMaxInternalSize,
		StrictCorruption: false,
	}
}

// logger returns c.Logger, or the standard library default if unset.
func (c *TreeConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Warnf surfaces a warning through the configured logging hook, per the
// "host logging hook" spec §7 requires for rejected list bounds.
func (c *TreeConfig) Warnf(format string, args ...interface{}) {
	c.logger().Printf("bptree: "+format, args...)
}

// Normalize fills in zero-valued fan-out bounds with their defaults. It
// does not touch StrictCorruption or Logger.
func (c *TreeConfig) Normalize() {
	if c.MaxLeafSize <= 0 {
		c.MaxLeafSize = DefaultMaxLeafSize
	}
	if c.MaxInternalSize <= 0 {
		c.MaxInternalSize = DefaultMaxInternalSize
	}
}

// LoadConfig loads a TreeConfig from a YAML file at configPath.
func LoadConfig(configPath string) (*TreeConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

// SaveConfig saves cfg to configPath with secure permissions.
func SaveConfig(cfg *TreeConfig, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigExists checks if a configuration file exists at configPath.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
