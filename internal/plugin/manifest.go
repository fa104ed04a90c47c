package plugin

import (
	"fmt"
	"os"

	"runbook/internal/config"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the descriptor file every installed plugin directory
// must contain.
const ManifestFileName = "plugin.yaml"

// Manifest is the per-plugin descriptor file. It names the factory entry
// symbol to construct the plugin with, so discovery never needs reflection.
type Manifest struct {
	// Name is the unique plugin name the system registers it under
	Name string `yaml:"name"`

	// Description provides human-readable documentation for the plugin
	Description string `yaml:"description,omitempty"`

	// Entry names the registered factory that constructs the plugin
	Entry string `yaml:"entry"`

	// Requires lists additional dependency plugin names beyond what the
	// implementation itself declares
	Requires []string `yaml:"requires,omitempty"`
}

// LoadManifest reads and validates a plugin manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// Validate checks the manifest's required fields.
func (m *Manifest) Validate() error {
	var errs config.ValidationErrors

	if err := config.ValidateEntityName(m.Name, "plugin"); err != nil {
		if ve, ok := err.(config.ValidationError); ok {
			errs = append(errs, ve)
		} else {
			errs.Add("name", err.Error())
		}
	}
	if m.Entry == "" {
		errs.Add("entry", "is required for plugin")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
