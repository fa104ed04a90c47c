package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"runbook/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir   = ".config/runbook"
	configFileName  = "config.yaml"
	secretsFileName = "secrets.yaml"

	// ProjectConfigDirName is the project-local configuration directory,
	// resolved relative to the working directory.
	ProjectConfigDirName = ".runbook"

	// WorkflowsDirName is the subdirectory holding workflow definition files
	// inside any configuration directory.
	WorkflowsDirName = "workflows"

	// PluginsDirName is the subdirectory holding installed plugin directories
	// inside the user configuration directory.
	PluginsDirName = "plugins"

	// StepsDirName is the subdirectory of the project configuration directory
	// holding project-local step files.
	StepsDirName = "steps"

	// ExecutionsDirName is the subdirectory holding persisted execution
	// records inside the user configuration directory.
	ExecutionsDirName = "executions"
)

// GetUserConfigDir returns the per-user configuration directory
// (~/.config/runbook).
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// GetProjectConfigDir returns the project-local configuration directory
// (./.runbook relative to the working directory).
func GetProjectConfigDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not determine working directory: %w", err)
	}
	return filepath.Join(wd, ProjectConfigDirName), nil
}

// GetConfigurationPaths returns the user and project configuration
// directories. Neither is guaranteed to exist.
func GetConfigurationPaths() (userDir, projectDir string, err error) {
	userDir, err = GetUserConfigDir()
	if err != nil {
		return "", "", err
	}
	projectDir, err = GetProjectConfigDir()
	if err != nil {
		return "", "", err
	}
	return userDir, projectDir, nil
}

// LoadConfig loads configuration from the specified directory. A missing
// config.yaml is not an error; defaults are returned.
func LoadConfig(configPath string) (RunbookConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return RunbookConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return RunbookConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// LoadSecrets loads the flat secret map from secrets.yaml in the given
// configuration directory. A missing file yields an empty map.
func LoadSecrets(configPath string) (map[string]string, error) {
	secretsFilePath := filepath.Join(configPath, secretsFileName)

	data, err := os.ReadFile(secretsFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	secrets := make(map[string]string)
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("error loading secrets from %s: %w", secretsFilePath, err)
	}
	return secrets, nil
}
