package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParsePlatformConfigYAML parses a PlatformConfig from YAML bytes,
// overlaying it onto DefaultPlatformConfig, and validates the result.
// This is used for APIs where config is provided as payload (not via
// filesystem).
func ParsePlatformConfigYAML(data []byte) (*PlatformConfig, error) {
	cfg := DefaultPlatformConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse platform config yaml: %w", err)
	}
	if err := validatePlatformConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParsePlatformConfigYAMLString parses a PlatformConfig from a YAML
// string.
func ParsePlatformConfigYAMLString(yamlText string) (*PlatformConfig, error) {
	return ParsePlatformConfigYAML([]byte(yamlText))
}
