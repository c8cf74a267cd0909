package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

// Settings keys backing the process-wide auth session singleton.
const (
	settingAuthState = "auth_state"
	settingAuthExp   = "auth_exp"
)

// Manager owns the authenticated portal session. It is the only component
// that runs the login protocol; the scheduler and the operator path both call
// EnsureAuth and serialize on the same lock. Auth failures are returned as
// states, never as errors.
type Manager struct {
	cfg        config.AuthConfig
	portalCfg  config.PortalConfig
	captchaCfg config.CaptchaConfig
	store      *datastore.DB
	portal     models.PortalClient
	prompter   Prompter
	solver     CaptchaSolver
	logger     zerolog.Logger

	screenshotsDir string

	mu     sync.Mutex
	flight singleflight.Group

	waitMu      sync.Mutex
	captchaWait *boolWait
	manualWait  *boolWait
	smsWait     *stringWait
}

// NewManager creates the auth session manager. solver may be nil when no
// captcha API key is configured; prompter may be a NopPrompter.
func NewManager(
	cfg config.AuthConfig,
	portalCfg config.PortalConfig,
	captchaCfg config.CaptchaConfig,
	store *datastore.DB,
	portalClient models.PortalClient,
	prompter Prompter,
	solver CaptchaSolver,
	screenshotsDir string,
	logger zerolog.Logger,
) *Manager {
	if prompter == nil {
		prompter = NopPrompter{}
	}
	return &Manager{
		cfg:            cfg,
		portalCfg:      portalCfg,
		captchaCfg:     captchaCfg,
		store:          store,
		portal:         portalClient,
		prompter:       prompter,
		solver:         solver,
		screenshotsDir: screenshotsDir,
		logger:         logger.With().Str("component", "AuthManager").Logger(),
	}
}

// EnsureAuth makes sure the browsing session is authenticated and returns the
// resulting state. Unforced concurrent callers share a single flight instead
// of racing the browser.
func (m *Manager) EnsureAuth(ctx context.Context, force bool) models.AuthState {
	if m.portalCfg.LoginURL == "" {
		m.logger.Error().Msg("Login URL is not configured")
		return models.AuthError
	}

	if force {
		return m.ensureAuth(ctx, true)
	}
	result, _, _ := m.flight.Do("ensure_auth", func() (interface{}, error) {
		return m.ensureAuth(ctx, false), nil
	})
	return result.(models.AuthState)
}

func (m *Manager) ensureAuth(ctx context.Context, force bool) models.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.cachedSessionValid() {
		// The cached OK path still performs a live preflight round trip;
		// a server-side revoked session must not go unnoticed until the
		// next scrape fails.
		if state := m.preflight(ctx); state == models.AuthOK {
			m.persistState(models.AuthOK, true)
			m.logger.Info().Msg("Auth preflight OK, reusing session")
			return models.AuthOK
		}
	}

	state := m.performLogin(ctx)
	m.persistState(state, false)
	m.logger.Info().Str("state", string(state)).Msg("Auth finished")
	return state
}

func (m *Manager) cachedSessionValid() bool {
	state, ok, err := m.store.SettingsGet(settingAuthState)
	if err != nil || !ok || state != string(models.AuthOK) {
		return false
	}
	expText, ok, err := m.store.SettingsGet(settingAuthExp)
	if err != nil || !ok || expText == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, expText)
	if err != nil {
		return false
	}
	return exp.After(time.Now().UTC())
}

// persistState stores the auth singleton. On OK the expiry is extended only
// after a full login (keepExpiry distinguishes the preflight short-circuit);
// on any other state the expiry is cleared so the next call is forced to
// re-attempt.
func (m *Manager) persistState(state models.AuthState, keepExpiry bool) {
	if err := m.store.SettingsSet(settingAuthState, string(state)); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist auth state")
		return
	}
	switch {
	case state == models.AuthOK && keepExpiry:
		// Expiry untouched; the cached window keeps counting down.
	case state == models.AuthOK:
		exp := time.Now().UTC().Add(time.Duration(m.cfg.ValidHours) * time.Hour)
		if err := m.store.SettingsSet(settingAuthExp, exp.Format(time.RFC3339)); err != nil {
			m.logger.Error().Err(err).Msg("Failed to persist auth expiry")
		}
	default:
		if err := m.store.SettingsDelete(settingAuthExp); err != nil {
			m.logger.Error().Err(err).Msg("Failed to clear auth expiry")
		}
	}
}

// preflight is a lightweight check whether the existing session is still
// authenticated, short of a full login.
func (m *Manager) preflight(ctx context.Context) models.AuthState {
	timeout := time.Duration(m.cfg.PreflightTimeoutSecs) * time.Second
	page, err := m.portal.Open(ctx, m.portalCfg.LoginURL, timeout)
	if err != nil {
		if errors.Is(err, models.ErrNavigationTimeout) {
			return models.AuthNeedVPN
		}
		m.logger.Error().Err(err).Msg("Preflight navigation failed")
		return models.AuthError
	}
	defer page.Close()

	if strings.Contains(strings.ToLower(page.URL()), "login") {
		return models.AuthNeedAuth
	}
	if has, err := page.Has("form[id*='login']"); err == nil && has {
		return models.AuthNeedAuth
	}
	return models.AuthOK
}

// performLogin runs the full login protocol against the portal entry point.
func (m *Manager) performLogin(ctx context.Context) models.AuthState {
	timeout := time.Duration(m.cfg.LoginTimeoutSecs) * time.Second
	page, err := m.portal.Open(ctx, m.portalCfg.LoginURL, timeout)
	if err != nil {
		if errors.Is(err, models.ErrNavigationTimeout) {
			return models.AuthNeedVPN
		}
		m.logger.Error().Err(err).Msg("Login navigation failed")
		return models.AuthError
	}
	defer page.Close()

	m.dismissInterstitials(page)

	if !m.handleCaptcha(ctx, page) {
		return models.AuthNeedCaptcha
	}

	m.submitCredentials(page)

	if m.awaitSMSPrompt(ctx, page) {
		code := m.promptSMSCode(ctx)
		if code == "" {
			return models.AuthNeedSMS
		}
		m.enterSMSCode(page, code)
	}

	return m.preflight(ctx)
}

// dismissInterstitials clicks through the cookie banner when one is shown.
func (m *Manager) dismissInterstitials(page models.PortalPage) {
	if err := page.ClickByText(`(?i)Súhlasím|Akceptujem`); err != nil {
		m.logger.Debug().Msg("Cookie banner not shown")
	}
}

// handleCaptcha resolves a reCAPTCHA challenge if one is present. Returns
// false when the challenge could not be cleared.
func (m *Manager) handleCaptcha(ctx context.Context, page models.PortalPage) bool {
	detectCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.CaptchaDetectSecs)*time.Second)
	err := page.WaitElement(detectCtx, ".g-recaptcha")
	cancel()
	if err != nil {
		return true // no challenge rendered
	}

	if m.captchaCfg.Provider == "auto" && m.solver != nil {
		siteKey, err := page.Attribute(".g-recaptcha", "data-sitekey")
		if err != nil || siteKey == "" {
			m.logger.Warn().Msg("Captcha present but sitekey not found")
		} else {
			for attempt := 1; attempt <= m.captchaCfg.SolveAttempts; attempt++ {
				m.logger.Info().Int("attempt", attempt).Msg("Attempting automatic captcha solve")
				token, err := m.solver.Solve(ctx, siteKey, page.URL())
				if err == nil && token != "" {
					if err := m.injectCaptchaToken(page, token); err == nil {
						m.logger.Info().Msg("Captcha solved automatically")
						return true
					}
				}
				m.logger.Warn().Err(err).Int("attempt", attempt).Msg("Automatic captcha attempt failed")
			}
		}

		// Automatic solving failed: offer manual takeover, bounded.
		manual := m.newManualWait()
		_ = m.prompter.PromptManualEscalation(ctx)
		approved := m.awaitBool(ctx, manual, time.Duration(m.cfg.ManualEscalationSecs)*time.Second)
		if !approved {
			return false
		}
	}

	captchaDone := m.newCaptchaWait()
	_ = m.prompter.PromptCaptcha(ctx)
	return m.awaitBool(ctx, captchaDone, time.Duration(m.cfg.ManualCaptchaSecs)*time.Second)
}

func (m *Manager) injectCaptchaToken(page models.PortalPage, token string) error {
	return page.Eval(`(token) => {
		const area = document.querySelector('textarea#g-recaptcha-response');
		if (area) { area.value = token; area.dispatchEvent(new Event('change')); }
	}`, token)
}

// submitCredentials fills the login form best-effort; missing fields are
// tolerated (the operator may be completing the form manually).
func (m *Manager) submitCredentials(page models.PortalPage) {
	if m.portalCfg.Username != "" {
		if err := page.Fill("input[name*='user']", m.portalCfg.Username); err != nil {
			m.logger.Warn().Err(err).Msg("Username field not found")
		}
	}
	if m.portalCfg.Password != "" {
		if err := page.Fill("input[type='password']", m.portalCfg.Password); err != nil {
			m.logger.Warn().Err(err).Msg("Password field not found")
		}
	}
	if err := page.Click("button[type='submit']"); err != nil {
		m.logger.Warn().Err(err).Msg("Submit button not found, waiting for manual input")
	}
}

// awaitSMSPrompt detects the one-time-code input with a short bounded wait.
func (m *Manager) awaitSMSPrompt(ctx context.Context, page models.PortalPage) bool {
	detectCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.SMSDetectSecs)*time.Second)
	defer cancel()
	return page.WaitElement(detectCtx, "input[type='tel']") == nil
}

// promptSMSCode asks the operator for the code. Malformed codes are rejected
// at the hook and never consume an attempt; only a per-attempt timeout does.
func (m *Manager) promptSMSCode(ctx context.Context) string {
	attemptTimeout := time.Duration(m.cfg.SMSAttemptTimeoutSecs) * time.Second
	for remaining := m.cfg.SMSAttempts; remaining > 0; remaining-- {
		wait := m.newSMSWait()
		_ = m.prompter.PromptSMSCode(ctx, remaining)

		timer := time.NewTimer(attemptTimeout)
		select {
		case code := <-wait.ch:
			timer.Stop()
			return code
		case <-timer.C:
			m.clearWait(wait)
			_ = m.prompter.Notify(ctx, "Timed out waiting for the SMS code.")
		case <-ctx.Done():
			timer.Stop()
			m.clearWait(wait)
			return ""
		}
	}
	return ""
}

func (m *Manager) enterSMSCode(page models.PortalPage, code string) {
	if err := page.Fill("input[type='tel']", code); err != nil {
		m.logger.Warn().Err(err).Msg("SMS code field not found")
		return
	}
	if err := page.Click("button[type='submit']"); err != nil {
		m.logger.Warn().Err(err).Msg("SMS submit button not found")
	}
}

// CaptureCategoryScreenshot takes a full-page screenshot of a category's
// portal page under the auth lock and records it.
func (m *Manager) CaptureCategoryScreenshot(ctx context.Context, catKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	category, err := m.store.Category(catKey)
	if err != nil {
		return "", err
	}
	url := category.URL
	if url == "" {
		url = m.portalCfg.LoginURL
	}

	timeout := time.Duration(m.cfg.PreflightTimeoutSecs) * time.Second
	page, err := m.portal.Open(ctx, url, timeout)
	if err != nil {
		return "", err
	}
	defer page.Close()

	data, err := page.Screenshot(true)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if err := os.MkdirAll(m.screenshotsDir, 0755); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	name := fmt.Sprintf("%s_%s.png", catKey, now.Format("20060102T150405"))
	path := filepath.Join(m.screenshotsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	if err := m.store.RecordScreenshot(models.Screenshot{
		Name:        name,
		Path:        path,
		Description: "Category page " + catKey,
		CreatedAt:   now,
	}); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to record screenshot")
	}
	return path, nil
}
