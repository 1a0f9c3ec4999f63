package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suar-net/apios/internal/client"
	"github.com/suar-net/apios/internal/mapping"
)

//go:embed presets.yaml
var defaultPresets []byte

// Preset is a starting point for a provider configuration.
type Preset struct {
	ID             string            `yaml:"id" json:"id"`
	Name           string            `yaml:"name" json:"name"`
	BaseURL        string            `yaml:"base_url" json:"base_url"`
	AuthType       client.AuthType   `yaml:"auth_type" json:"auth_type"`
	AuthHeader     string            `yaml:"auth_header,omitempty" json:"auth_header,omitempty"`
	Timeout        time.Duration     `yaml:"timeout" json:"timeout"`
	Path           string            `yaml:"path" json:"path"`
	DefaultHeaders map[string]string `yaml:"default_headers,omitempty" json:"default_headers,omitempty"`
	// Mapping is a mapping document in the form accepted by mapping.ParseSpec.
	Mapping map[string]any `yaml:"mapping,omitempty" json:"mapping,omitempty"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads the catalogue at path, or the built-in one when path is empty.
func LoadPresets(path string) ([]Preset, error) {
	data := defaultPresets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read presets file: %w", err)
		}
		data = b
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates a YAML preset catalogue.
func ParsePresets(data []byte) ([]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid presets file: %w", err)
	}

	seen := make(map[string]bool, len(file.Presets))
	for i, p := range file.Presets {
		if p.ID == "" {
			return nil, fmt.Errorf("preset %d: id is required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("preset %q: duplicate id", p.ID)
		}
		seen[p.ID] = true

		cfg := client.Config{BaseURL: p.BaseURL, Timeout: p.Timeout}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		switch p.AuthType {
		case "", client.AuthNone, client.AuthBearer, client.AuthAPIKey, client.AuthZhipu:
		default:
			return nil, fmt.Errorf("preset %q: unsupported auth_type %q", p.ID, p.AuthType)
		}
		if p.Mapping != nil {
			if _, err := mapping.ParseSpec(p.Mapping); err != nil {
				return nil, fmt.Errorf("preset %q: %w", p.ID, err)
			}
		}
	}
	return file.Presets, nil
}
