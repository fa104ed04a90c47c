package config

// RunbookConfig is the top-level configuration structure for runbook,
// loaded from config.yaml in the user configuration directory.
type RunbookConfig struct {
	// LogLevel is the minimum log level (debug, info, warn, error)
	LogLevel string `yaml:"logLevel,omitempty"`

	// Plugins maps plugin names to their free-form settings, passed to the
	// plugin's Initialize call
	Plugins map[string]map[string]interface{} `yaml:"plugins,omitempty"`
}

// PluginSettings returns the settings section for a plugin, never nil.
func (c *RunbookConfig) PluginSettings(name string) map[string]interface{} {
	if c == nil || c.Plugins == nil {
		return map[string]interface{}{}
	}
	settings, ok := c.Plugins[name]
	if !ok {
		return map[string]interface{}{}
	}
	return settings
}

// GetDefaultConfig returns the default configuration for runbook.
func GetDefaultConfig() RunbookConfig {
	return RunbookConfig{
		LogLevel: "info",
	}
}
