package config

var defaultConfigLocations = []string{
	"config.yaml",
	"config.yml",
	"config.json",
}

// Scheduler defaults.
const (
	DefaultCheckIntervalMinutes  = 10
	DefaultCategoryTimeoutSecs   = 60
	DefaultScheduleMarkerTimeout = 30
)

// Auth defaults.
const (
	DefaultAuthValidHours          = 6
	DefaultPreflightTimeoutSecs    = 30
	DefaultLoginTimeoutSecs        = 45
	DefaultCaptchaDetectSecs       = 15
	DefaultSMSDetectSecs           = 5
	DefaultManualEscalationSecs    = 180
	DefaultManualCaptchaSecs       = 300
	DefaultSMSAttempts             = 3
	DefaultSMSAttemptTimeoutSecs   = 120
	DefaultCaptchaSolveAttempts    = 2
	DefaultCaptchaPollIntervalSecs = 5
	DefaultCaptchaMaxPolls         = 24
)

// Storage defaults.
const (
	DefaultSQLiteDBPath   = "data/skwatch.db"
	DefaultScreenshotsDir = "data/screenshots"
	DefaultHeartbeatPath  = "data/heartbeat"
)
