package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Each suspension point is a cancellable, timeout-bound single-resolution
// signal: a buffered channel created by the waiting side and resolved at most
// once by an external hook. A hook call with nothing pending is a safe no-op.

type boolWait struct{ ch chan bool }

type stringWait struct{ ch chan string }

var smsCodePattern = regexp.MustCompile(`^\d{6}$`)

func (m *Manager) newManualWait() *boolWait {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	m.manualWait = &boolWait{ch: make(chan bool, 1)}
	return m.manualWait
}

func (m *Manager) newCaptchaWait() *boolWait {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	m.captchaWait = &boolWait{ch: make(chan bool, 1)}
	return m.captchaWait
}

func (m *Manager) newSMSWait() *stringWait {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	m.smsWait = &stringWait{ch: make(chan string, 1)}
	return m.smsWait
}

func (m *Manager) clearWait(w interface{}) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	switch {
	case m.manualWait == w:
		m.manualWait = nil
	case m.captchaWait == w:
		m.captchaWait = nil
	case m.smsWait == w:
		m.smsWait = nil
	}
}

// awaitBool blocks until the wait resolves, the timeout elapses or ctx is
// cancelled. Timeouts fail closed (false).
func (m *Manager) awaitBool(ctx context.Context, w *boolWait, timeout time.Duration) bool {
	defer m.clearWait(w)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ok := <-w.ch:
		return ok
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ResolveCaptcha completes an outstanding captcha wait. Calling it with no
// pending wait is a no-op.
func (m *Manager) ResolveCaptcha(ok bool) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	if m.captchaWait != nil {
		m.captchaWait.ch <- ok
		m.captchaWait = nil
	}
}

// RequestManualEscalation approves the switch to manual captcha solving.
// A no-op when no escalation is pending.
func (m *Manager) RequestManualEscalation() {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	if m.manualWait != nil {
		m.manualWait.ch <- true
		m.manualWait = nil
	}
}

// SubmitSMSCode feeds an operator-supplied code to the pending SMS wait.
// A malformed code re-prompts and leaves the wait (and its attempt slot)
// intact. Returns whether the input was consumed by an outstanding wait.
func (m *Manager) SubmitSMSCode(code string) bool {
	code = strings.TrimSpace(code)

	m.waitMu.Lock()
	wait := m.smsWait
	if wait == nil {
		m.waitMu.Unlock()
		return false
	}
	if !smsCodePattern.MatchString(code) {
		m.waitMu.Unlock()
		m.logger.Debug().Msg("Rejected malformed SMS code")
		_ = m.prompter.Notify(context.Background(), "The code must be exactly 6 digits. Please try again.")
		return true
	}
	wait.ch <- code
	m.smsWait = nil
	m.waitMu.Unlock()
	return true
}

// HandleOperatorText intercepts operator messages before any other handler:
// captcha done/cancel phrases and SMS codes. Returns whether the message was
// consumed.
func (m *Manager) HandleOperatorText(text string) bool {
	phrase := strings.ToLower(strings.TrimSpace(text))

	m.waitMu.Lock()
	if m.manualWait != nil {
		switch phrase {
		case "done", "ok":
			m.manualWait.ch <- true
			m.manualWait = nil
			m.waitMu.Unlock()
			return true
		case "cancel":
			m.manualWait.ch <- false
			m.manualWait = nil
			m.waitMu.Unlock()
			return true
		}
	}
	if m.captchaWait != nil {
		switch phrase {
		case "done", "ok":
			m.captchaWait.ch <- true
			m.captchaWait = nil
			m.waitMu.Unlock()
			return true
		case "cancel":
			m.captchaWait.ch <- false
			m.captchaWait = nil
			m.waitMu.Unlock()
			return true
		}
	}
	smsPending := m.smsWait != nil
	m.waitMu.Unlock()

	if smsPending {
		return m.SubmitSMSCode(text)
	}
	return false
}
