// Package parser provides file format parsers for toolkit configuration.
package parser

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/credprobe-dev/credprobe/application/config"
	"github.com/credprobe-dev/credprobe/domain/errors"
)

// ParseConfig unmarshals YAML bytes into a config map.
// Nested mappings come back as map[string]any so the config helpers
// can walk them without further conversion.
func ParseConfig(data []byte) (config.Config, error) {
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errors.ConfigError{Err: err}
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{Err: err}
	}
	return ParseConfig(data)
}
