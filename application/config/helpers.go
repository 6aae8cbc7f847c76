// Package config provides configuration utilities for toolkit operations.
package config

import (
	"fmt"

	"github.com/credprobe-dev/credprobe/domain/errors"
)

// Config represents operation configuration as a key-value map.
type Config = map[string]any

// GetString extracts a string from config, returning (value, found).
func GetString(config Config, key string) (string, bool) {
	v, ok := config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int from config, handling int, int64, and float64.
func GetInt(config Config, key string) (int, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetBool extracts a bool from config, returning (value, found).
func GetBool(config Config, key string) (bool, bool) {
	v, ok := config[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetStringSlice extracts a []string from config, returning (value, found).
func GetStringSlice(config Config, key string) ([]string, bool) {
	v, ok := config[key]
	if !ok {
		return nil, false
	}
	// A []string survives YAML-free construction in Go code
	if ss, ok := v.([]string); ok {
		return ss, true
	}
	// JSON/YAML arrays are decoded as []interface{}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		result = append(result, s)
	}
	return result, true
}

// MustGetString extracts a required string from config or returns error.
func MustGetString(config Config, key string) (string, error) {
	s, ok := GetString(config, key)
	if !ok {
		return "", &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string field '%s' is missing or not a string", key),
		}
	}
	return s, nil
}

// MustGetInt extracts a required int from config or returns error.
func MustGetInt(config Config, key string) (int, error) {
	i, ok := GetInt(config, key)
	if !ok {
		return 0, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required int field '%s' is missing or not a number", key),
		}
	}
	return i, nil
}

// MustGetStringSlice extracts a required []string from config or returns error.
func MustGetStringSlice(config Config, key string) ([]string, error) {
	ss, ok := GetStringSlice(config, key)
	if !ok {
		return nil, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required list field '%s' is missing or not a list of strings", key),
		}
	}
	return ss, nil
}

// GetStringDefault extracts a string from config or returns the default value.
func GetStringDefault(config Config, key, defaultValue string) string {
	s, ok := GetString(config, key)
	if !ok {
		return defaultValue
	}
	return s
}

// GetIntDefault extracts an int from config or returns the default value.
func GetIntDefault(config Config, key string, defaultValue int) int {
	i, ok := GetInt(config, key)
	if !ok {
		return defaultValue
	}
	return i
}

// GetBoolDefault extracts a bool from config or returns the default value.
func GetBoolDefault(config Config, key string, defaultValue bool) bool {
	b, ok := GetBool(config, key)
	if !ok {
		return defaultValue
	}
	return b
}
