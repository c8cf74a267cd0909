package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGlobalConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadGlobalConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultCheckIntervalMinutes, cfg.SchedulerConfig.CheckIntervalMinutes)
	assert.Equal(t, DefaultAuthValidHours, cfg.AuthConfig.ValidHours)
	assert.Equal(t, "Europe/Bratislava", cfg.PortalConfig.Timezone)
	assert.Equal(t, "auto", cfg.CaptchaConfig.Provider)
}

func TestLoadGlobalConfig_YAMLOverridesDefaults(t *testing.T) {
	content := `
portal_config:
  login_url: "https://portal.example/login"
  headless: false
scheduler_config:
  check_interval_minutes: 5
auth_config:
  sms_attempts: 2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadGlobalConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example/login", cfg.PortalConfig.LoginURL)
	assert.False(t, cfg.PortalConfig.Headless)
	assert.Equal(t, 5, cfg.SchedulerConfig.CheckIntervalMinutes)
	assert.Equal(t, 2, cfg.AuthConfig.SMSAttempts)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultManualCaptchaSecs, cfg.AuthConfig.ManualCaptchaSecs)
}

func TestLoadGlobalConfig_RejectsInvalidValues(t *testing.T) {
	content := `
portal_config:
  login_url: "not a url"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadGlobalConfig(path)
	assert.Error(t, err)
}

func TestGetConfigPath_ExplicitPathWins(t *testing.T) {
	assert.Equal(t, "/tmp/custom.yaml", GetConfigPath("/tmp/custom.yaml"))
}
