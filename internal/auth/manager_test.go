package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

type fakePage struct {
	url       string
	selectors map[string]bool // selectors that exist / resolve immediately
	filled    map[string]string
	clicked   []string
	mu        sync.Mutex
}

func newFakePage(url string, selectors ...string) *fakePage {
	p := &fakePage{url: url, selectors: map[string]bool{}, filled: map[string]string{}}
	for _, s := range selectors {
		p.selectors[s] = true
	}
	return p
}

func (p *fakePage) URL() string           { return p.url }
func (p *fakePage) HTTPStatus() *int      { status := 200; return &status }
func (p *fakePage) HTML() (string, error) { return "<html></html>", nil }

func (p *fakePage) WaitElement(ctx context.Context, selector string) error {
	p.mu.Lock()
	ok := p.selectors[selector]
	p.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return models.ErrNavigationTimeout
}

func (p *fakePage) WaitText(ctx context.Context, text string) error { return nil }

func (p *fakePage) Has(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectors[selector], nil
}

func (p *fakePage) Attribute(selector, name string) (string, error) { return "", nil }

func (p *fakePage) Fill(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.selectors[selector] {
		return errors.New("element not found")
	}
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.selectors[selector] {
		return errors.New("element not found")
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) ClickByText(text string) error              { return errors.New("no match") }
func (p *fakePage) Eval(js string, args ...interface{}) error  { return nil }
func (p *fakePage) Screenshot(fullPage bool) ([]byte, error)   { return []byte("png"), nil }
func (p *fakePage) Close()                                     {}

type fakeClient struct {
	mu    sync.Mutex
	pages []*fakePage
	err   error
	opens int
}

func (c *fakeClient) Open(ctx context.Context, url string, timeout time.Duration) (models.PortalPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.err != nil {
		return nil, c.err
	}
	page := c.pages[0]
	if len(c.pages) > 1 {
		c.pages = c.pages[1:]
	}
	return page, nil
}

func (c *fakeClient) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

type recordingPrompter struct {
	mu       sync.Mutex
	notices  []string
	smsAsks  []int
	captchas int
}

func (p *recordingPrompter) PromptManualEscalation(context.Context) error { return nil }

func (p *recordingPrompter) PromptCaptcha(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captchas++
	return nil
}

func (p *recordingPrompter) PromptSMSCode(_ context.Context, attemptsLeft int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.smsAsks = append(p.smsAsks, attemptsLeft)
	return nil
}

func (p *recordingPrompter) Notify(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, text)
	return nil
}

func (p *recordingPrompter) noticeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notices)
}

func newTestManager(t *testing.T, client models.PortalClient, prompter Prompter) (*Manager, *datastore.DB) {
	t.Helper()
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	authCfg := config.NewDefaultAuthConfig()
	authCfg.CaptchaDetectSecs = 1
	authCfg.SMSDetectSecs = 1
	portalCfg := config.NewDefaultPortalConfig()
	portalCfg.LoginURL = "https://portal.example/login"
	portalCfg.Username = "user"
	portalCfg.Password = "secret"
	captchaCfg := config.NewDefaultCaptchaConfig()
	captchaCfg.Provider = "manual"

	m := NewManager(authCfg, portalCfg, captchaCfg, store, client, prompter, nil, t.TempDir(), zerolog.Nop())
	return m, store
}

func setCachedOK(t *testing.T, store *datastore.DB) {
	t.Helper()
	require.NoError(t, store.SettingsSet(settingAuthState, string(models.AuthOK)))
	exp := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	require.NoError(t, store.SettingsSet(settingAuthExp, exp))
}

func TestEnsureAuth_CachedSessionPreflightOnly(t *testing.T) {
	client := &fakeClient{pages: []*fakePage{newFakePage("https://portal.example/home")}}
	m, store := newTestManager(t, client, nil)
	setCachedOK(t, store)

	state := m.EnsureAuth(context.Background(), false)

	assert.Equal(t, models.AuthOK, state)
	assert.Equal(t, 1, client.openCount(), "cached session should only preflight")
}

func TestEnsureAuth_ExpiredCacheRunsLogin(t *testing.T) {
	loginPage := newFakePage("https://portal.example/login",
		"input[name*='user']", "input[type='password']", "button[type='submit']")
	home := newFakePage("https://portal.example/home")
	client := &fakeClient{pages: []*fakePage{loginPage, home}}
	m, store := newTestManager(t, client, nil)

	require.NoError(t, store.SettingsSet(settingAuthState, string(models.AuthOK)))
	exp := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	require.NoError(t, store.SettingsSet(settingAuthExp, exp))

	state := m.EnsureAuth(context.Background(), false)

	assert.Equal(t, models.AuthOK, state)
	assert.Equal(t, "user", loginPage.filled["input[name*='user']"])
	assert.Equal(t, "secret", loginPage.filled["input[type='password']"])
	assert.Contains(t, loginPage.clicked, "button[type='submit']")

	// Successful login refreshes the expiry window.
	expText, ok, err := store.SettingsGet(settingAuthExp)
	require.NoError(t, err)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, expText)
	require.NoError(t, err)
	assert.True(t, parsed.After(time.Now().UTC()))
}

func TestEnsureAuth_ForceIgnoresCache(t *testing.T) {
	loginPage := newFakePage("https://portal.example/login",
		"input[name*='user']", "input[type='password']", "button[type='submit']")
	home := newFakePage("https://portal.example/home")
	client := &fakeClient{pages: []*fakePage{loginPage, home}}
	m, store := newTestManager(t, client, nil)
	setCachedOK(t, store)

	state := m.EnsureAuth(context.Background(), true)

	assert.Equal(t, models.AuthOK, state)
	assert.Equal(t, 2, client.openCount(), "forced refresh must log in and preflight")
}

func TestEnsureAuth_NavigationTimeoutMeansVPN(t *testing.T) {
	client := &fakeClient{err: models.ErrNavigationTimeout}
	m, store := newTestManager(t, client, nil)

	state := m.EnsureAuth(context.Background(), false)

	assert.Equal(t, models.AuthNeedVPN, state)
	persisted, ok, err := store.SettingsGet(settingAuthState)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(models.AuthNeedVPN), persisted)

	_, ok, err = store.SettingsGet(settingAuthExp)
	require.NoError(t, err)
	assert.False(t, ok, "non-OK state must clear the expiry")
}

func TestEnsureAuth_UnexpectedErrorMeansError(t *testing.T) {
	client := &fakeClient{err: errors.New("browser crashed")}
	m, _ := newTestManager(t, client, nil)

	state := m.EnsureAuth(context.Background(), false)
	assert.Equal(t, models.AuthError, state)
}

func TestPromptSMSCode_MalformedDoesNotConsumeAttempt(t *testing.T) {
	prompter := &recordingPrompter{}
	m, _ := newTestManager(t, &fakeClient{}, prompter)

	done := make(chan string, 1)
	go func() {
		done <- m.promptSMSCode(context.Background())
	}()

	// Wait for the first prompt to go out.
	require.Eventually(t, func() bool {
		prompter.mu.Lock()
		defer prompter.mu.Unlock()
		return len(prompter.smsAsks) == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, m.SubmitSMSCode("abc"), "malformed code is consumed by the pending wait")
	assert.True(t, m.SubmitSMSCode("12345"), "short code is consumed by the pending wait")
	assert.Equal(t, 2, prompter.noticeCount(), "each rejection re-prompts")

	assert.True(t, m.SubmitSMSCode(" 123456 "))
	assert.Equal(t, "123456", <-done)

	prompter.mu.Lock()
	defer prompter.mu.Unlock()
	assert.Equal(t, []int{3}, prompter.smsAsks, "rejections must not consume attempts")
}

func TestPromptSMSCode_OperatorTextRouting(t *testing.T) {
	prompter := &recordingPrompter{}
	m, _ := newTestManager(t, &fakeClient{}, prompter)

	done := make(chan string, 1)
	go func() {
		done <- m.promptSMSCode(context.Background())
	}()

	require.Eventually(t, func() bool {
		prompter.mu.Lock()
		defer prompter.mu.Unlock()
		return len(prompter.smsAsks) == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, m.HandleOperatorText("654321"))
	assert.Equal(t, "654321", <-done)
}

func TestHooks_NoOpWithoutPendingWait(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{}, nil)

	assert.False(t, m.SubmitSMSCode("123456"))
	assert.False(t, m.HandleOperatorText("done"))
	m.ResolveCaptcha(true)
	m.RequestManualEscalation()
}

func TestHandleOperatorText_ResolvesCaptchaWait(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{}, nil)

	wait := m.newCaptchaWait()
	assert.True(t, m.HandleOperatorText("done"))
	assert.True(t, m.awaitBool(context.Background(), wait, time.Second))

	wait = m.newCaptchaWait()
	assert.True(t, m.HandleOperatorText("cancel"))
	assert.False(t, m.awaitBool(context.Background(), wait, time.Second))
}
