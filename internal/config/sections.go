package config

// LogConfig defines logging output configuration.
type LogConfig struct {
	LogLevel   string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogFormat  string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,oneof=console json"`
	LogFile    string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" validate:"min=0"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" validate:"min=0"`
}

// NewDefaultLogConfig creates default logging configuration.
func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		LogLevel:   "info",
		LogFormat:  "console",
		MaxSizeMB:  50,
		MaxBackups: 3,
	}
}

// StorageConfig defines where persistent state lives.
type StorageConfig struct {
	SQLiteDBPath   string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required"`
	ScreenshotsDir string `json:"screenshots_dir,omitempty" yaml:"screenshots_dir,omitempty"`
	HeartbeatPath  string `json:"heartbeat_path,omitempty" yaml:"heartbeat_path,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration.
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SQLiteDBPath:   DefaultSQLiteDBPath,
		ScreenshotsDir: DefaultScreenshotsDir,
		HeartbeatPath:  DefaultHeartbeatPath,
	}
}

// PortalConfig defines how the portal browser session is established.
type PortalConfig struct {
	LoginURL         string `json:"login_url,omitempty" yaml:"login_url,omitempty" validate:"required,url"`
	Username         string `json:"username,omitempty" yaml:"username,omitempty"`
	Password         string `json:"password,omitempty" yaml:"password,omitempty"`
	ChromePath       string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir      string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	Headless         bool   `json:"headless" yaml:"headless"`
	IgnoreHTTPSError bool   `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	Timezone         string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Locale           string `json:"locale,omitempty" yaml:"locale,omitempty"`
	WindowWidth      int    `json:"window_width,omitempty" yaml:"window_width,omitempty" validate:"min=0"`
	WindowHeight     int    `json:"window_height,omitempty" yaml:"window_height,omitempty" validate:"min=0"`
}

// NewDefaultPortalConfig creates default portal configuration.
func NewDefaultPortalConfig() PortalConfig {
	return PortalConfig{
		Headless:         true,
		IgnoreHTTPSError: true,
		UserDataDir:      "data/browser_profile",
		Timezone:         "Europe/Bratislava",
		Locale:           "sk-SK",
		WindowWidth:      1366,
		WindowHeight:     900,
	}
}

// AuthConfig defines the authentication session behavior.
type AuthConfig struct {
	ValidHours            int `json:"valid_hours,omitempty" yaml:"valid_hours,omitempty" validate:"min=1"`
	PreflightTimeoutSecs  int `json:"preflight_timeout_secs,omitempty" yaml:"preflight_timeout_secs,omitempty" validate:"min=1"`
	LoginTimeoutSecs      int `json:"login_timeout_secs,omitempty" yaml:"login_timeout_secs,omitempty" validate:"min=1"`
	CaptchaDetectSecs     int `json:"captcha_detect_secs,omitempty" yaml:"captcha_detect_secs,omitempty" validate:"min=1"`
	SMSDetectSecs         int `json:"sms_detect_secs,omitempty" yaml:"sms_detect_secs,omitempty" validate:"min=1"`
	ManualEscalationSecs  int `json:"manual_escalation_secs,omitempty" yaml:"manual_escalation_secs,omitempty" validate:"min=1"`
	ManualCaptchaSecs     int `json:"manual_captcha_secs,omitempty" yaml:"manual_captcha_secs,omitempty" validate:"min=1"`
	SMSAttempts           int `json:"sms_attempts,omitempty" yaml:"sms_attempts,omitempty" validate:"min=1"`
	SMSAttemptTimeoutSecs int `json:"sms_attempt_timeout_secs,omitempty" yaml:"sms_attempt_timeout_secs,omitempty" validate:"min=1"`
}

// NewDefaultAuthConfig creates default auth configuration.
func NewDefaultAuthConfig() AuthConfig {
	return AuthConfig{
		ValidHours:            DefaultAuthValidHours,
		PreflightTimeoutSecs:  DefaultPreflightTimeoutSecs,
		LoginTimeoutSecs:      DefaultLoginTimeoutSecs,
		CaptchaDetectSecs:     DefaultCaptchaDetectSecs,
		SMSDetectSecs:         DefaultSMSDetectSecs,
		ManualEscalationSecs:  DefaultManualEscalationSecs,
		ManualCaptchaSecs:     DefaultManualCaptchaSecs,
		SMSAttempts:           DefaultSMSAttempts,
		SMSAttemptTimeoutSecs: DefaultSMSAttemptTimeoutSecs,
	}
}

// CaptchaConfig defines the external captcha solver integration.
type CaptchaConfig struct {
	Provider         string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=auto manual"`
	APIKey           string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIBaseURL       string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty" validate:"omitempty,url"`
	SolveAttempts    int    `json:"solve_attempts,omitempty" yaml:"solve_attempts,omitempty" validate:"min=1"`
	PollIntervalSecs int    `json:"poll_interval_secs,omitempty" yaml:"poll_interval_secs,omitempty" validate:"min=1"`
	MaxPolls         int    `json:"max_polls,omitempty" yaml:"max_polls,omitempty" validate:"min=1"`
}

// NewDefaultCaptchaConfig creates default captcha solver configuration.
func NewDefaultCaptchaConfig() CaptchaConfig {
	return CaptchaConfig{
		Provider:         "auto",
		APIBaseURL:       "https://2captcha.com",
		SolveAttempts:    DefaultCaptchaSolveAttempts,
		PollIntervalSecs: DefaultCaptchaPollIntervalSecs,
		MaxPolls:         DefaultCaptchaMaxPolls,
	}
}

// SchedulerConfig defines the check scheduler behavior.
type SchedulerConfig struct {
	CheckIntervalMinutes int `json:"check_interval_minutes,omitempty" yaml:"check_interval_minutes,omitempty" validate:"min=1"`
	CategoryTimeoutSecs  int `json:"category_timeout_secs,omitempty" yaml:"category_timeout_secs,omitempty" validate:"min=1"`
	MarkerTimeoutSecs    int `json:"marker_timeout_secs,omitempty" yaml:"marker_timeout_secs,omitempty" validate:"min=1"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CheckIntervalMinutes: DefaultCheckIntervalMinutes,
		CategoryTimeoutSecs:  DefaultCategoryTimeoutSecs,
		MarkerTimeoutSecs:    DefaultScheduleMarkerTimeout,
	}
}

// NotificationConfig defines the operator Discord channel.
type NotificationConfig struct {
	DiscordBotToken string `json:"discord_bot_token,omitempty" yaml:"discord_bot_token,omitempty"`
	ChannelID       string `json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
	OperatorUserID  string `json:"operator_user_id,omitempty" yaml:"operator_user_id,omitempty"`
	MessagesPerMin  int    `json:"messages_per_min,omitempty" yaml:"messages_per_min,omitempty" validate:"min=1"`
}

// NewDefaultNotificationConfig creates default notification configuration.
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		MessagesPerMin: 20,
	}
}
