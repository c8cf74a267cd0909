package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"skwatch/internal/common"
)

// GlobalConfig contains all configuration sections for the application.
type GlobalConfig struct {
	LogConfig          LogConfig          `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	StorageConfig      StorageConfig      `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	PortalConfig       PortalConfig       `json:"portal_config,omitempty" yaml:"portal_config,omitempty"`
	AuthConfig         AuthConfig         `json:"auth_config,omitempty" yaml:"auth_config,omitempty"`
	CaptchaConfig      CaptchaConfig      `json:"captcha_config,omitempty" yaml:"captcha_config,omitempty"`
	SchedulerConfig    SchedulerConfig    `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	NotificationConfig NotificationConfig `json:"notification_config,omitempty" yaml:"notification_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:          NewDefaultLogConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		PortalConfig:       NewDefaultPortalConfig(),
		AuthConfig:         NewDefaultAuthConfig(),
		CaptchaConfig:      NewDefaultCaptchaConfig(),
		SchedulerConfig:    NewDefaultSchedulerConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a YAML or JSON file. The
// format is chosen by file extension; YAML is the default. When providedPath
// is empty the default locations are searched and, if nothing is found, the
// built-in defaults are returned.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to read config file '%s'", filePath)
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, common.WrapError(err, "failed to parse config content")
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, common.WrapError(err, "config validation failed")
	}

	return cfg, nil
}

// GetConfigPath resolves the config file path. An explicitly provided path
// wins; otherwise the default locations are probed.
func GetConfigPath(providedPath string) string {
	if providedPath != "" {
		return providedPath
	}
	for _, candidate := range defaultConfigLocations {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return common.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
	}
	return nil
}
