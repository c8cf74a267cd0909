package models

// WatchStatus describes the last observed state of a Category or a Watch.
type WatchStatus string

const (
	StatusPaused   WatchStatus = "PAUSED"
	StatusOK       WatchStatus = "OK"
	StatusNoDate   WatchStatus = "NO_DATE"
	StatusError    WatchStatus = "ERROR"
	StatusNeedAuth WatchStatus = "NEED_AUTH"
	StatusNeedVPN  WatchStatus = "NEED_VPN"
)

// AuthState is the outcome of an authentication attempt or preflight.
// Auth failures are states, never Go errors.
type AuthState string

const (
	AuthOK          AuthState = "OK"
	AuthNeedAuth    AuthState = "NEED_AUTH"
	AuthNeedVPN     AuthState = "NEED_VPN"
	AuthNeedCaptcha AuthState = "NEED_CAPTCHA"
	AuthNeedSMS     AuthState = "NEED_SMS"
	AuthError       AuthState = "ERROR"
	AuthWarn        AuthState = "WARN"
)

// WatchStatusForAuthState maps an auth outcome onto the status recorded for
// categories and watches when a check is aborted before scraping.
func WatchStatusForAuthState(state AuthState) WatchStatus {
	switch state {
	case AuthOK:
		return StatusOK
	case AuthNeedVPN:
		return StatusNeedVPN
	case AuthError:
		return StatusError
	default:
		// NEED_AUTH, NEED_CAPTCHA, NEED_SMS and WARN all mean the session
		// is unusable until someone re-authenticates.
		return StatusNeedAuth
	}
}

// DiffClass classifies a diagnostic record against the previous one for the
// same (category, city) pair.
type DiffClass string

const (
	DiffNew     DiffClass = "new"
	DiffChanged DiffClass = "changed"
	DiffSame    DiffClass = "same"
)
