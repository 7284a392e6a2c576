package plugin

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManagerConfig describes which plugins are enabled and how they are configured.
type ManagerConfig struct {
	Plugins map[string]PluginConfig `yaml:"plugins"`
}

// PluginConfig is the configuration block for a single plugin instance.
// A plugin without a block is enabled with an empty configuration.
type PluginConfig struct {
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// IsEnabled reports whether the block leaves the plugin enabled.
func (c PluginConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadManagerConfig reads a YAML file into a ManagerConfig.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var cfg ManagerConfig
	if path == "" {
		return cfg, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read plugin config: %w", err)
	}
	return ParseManagerConfig(raw)
}

// ParseManagerConfig decodes YAML content into a ManagerConfig.
func ParseManagerConfig(raw []byte) (ManagerConfig, error) {
	var cfg ManagerConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal plugin config: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg, cfg.Validate()
}

// Validate ensures the manager configuration is internally consistent.
func (c ManagerConfig) Validate() error {
	for id := range c.Plugins {
		if id == "" {
			return errors.New("plugin id cannot be empty")
		}
	}
	return nil
}
