package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"skwatch/internal/config"
	"skwatch/internal/models"
)

// BrowserManager owns the single headless browser instance used for all
// portal access. The profile directory is persistent so portal cookies
// survive process restarts; the scheduler queue and the auth lock guarantee
// that only one page operation is ever in flight.
type BrowserManager struct {
	config   config.PortalConfig
	logger   zerolog.Logger
	browser  *rod.Browser
	launcher *launcher.Launcher
	mutex    sync.Mutex
}

// NewBrowserManager creates a new browser manager.
func NewBrowserManager(cfg config.PortalConfig, logger zerolog.Logger) *BrowserManager {
	return &BrowserManager{
		config: cfg,
		logger: logger.With().Str("component", "BrowserManager").Logger(),
	}
}

// Start launches the browser with the persistent profile.
func (bm *BrowserManager) Start() error {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	if bm.browser != nil {
		return nil
	}

	l := launcher.New().
		Headless(bm.config.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("disable-default-apps").
		Set("disable-sync").
		Set("lang", bm.config.Locale)

	if bm.config.ChromePath != "" {
		l = l.Bin(bm.config.ChromePath)
	}
	if bm.config.UserDataDir != "" {
		l = l.UserDataDir(bm.config.UserDataDir)
	}
	if bm.config.IgnoreHTTPSError {
		l = l.Set("ignore-certificate-errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect browser: %w", err)
	}

	if bm.config.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: bm.config.Timezone}).Call(browser); err != nil {
			bm.logger.Warn().Err(err).Str("timezone", bm.config.Timezone).Msg("Failed to set browser timezone")
		}
	}

	bm.launcher = l
	bm.browser = browser
	bm.logger.Info().
		Bool("headless", bm.config.Headless).
		Str("user_data_dir", bm.config.UserDataDir).
		Msg("Browser manager started")
	return nil
}

// Stop closes the browser and cleans up the launcher.
func (bm *BrowserManager) Stop() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	if bm.browser != nil {
		if err := bm.browser.Close(); err != nil {
			bm.logger.Warn().Err(err).Msg("Failed to close browser")
		}
		bm.browser = nil
	}
	if bm.launcher != nil {
		bm.launcher.Cleanup()
		bm.launcher = nil
	}
	bm.logger.Info().Msg("Browser manager stopped")
}

// Open navigates a fresh page to the given URL and waits for it to load.
// Deadline overruns map to models.ErrNavigationTimeout so callers can
// classify them (NEED_VPN / check timeout) instead of treating them as
// faults.
func (bm *BrowserManager) Open(ctx context.Context, url string, timeout time.Duration) (models.PortalPage, error) {
	bm.mutex.Lock()
	browser := bm.browser
	bm.mutex.Unlock()
	if browser == nil {
		return nil, fmt.Errorf("browser manager not running")
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if bm.config.WindowWidth > 0 && bm.config.WindowHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  bm.config.WindowWidth,
			Height: bm.config.WindowHeight,
		}); err != nil {
			bm.logger.Warn().Err(err).Msg("Failed to set viewport")
		}
	}

	bound := page.Context(navCtx)

	// Subscribe before navigating so the document response is not missed.
	var responseEvent proto.NetworkResponseReceived
	waitResponse := bound.WaitEvent(&responseEvent)

	if err := bound.Navigate(url); err != nil {
		page.Close()
		return nil, classifyNavError(err, url)
	}
	if err := bound.WaitLoad(); err != nil {
		page.Close()
		return nil, classifyNavError(err, url)
	}
	waitResponse()

	var httpStatus *int
	if responseEvent.Response != nil {
		status := responseEvent.Response.Status
		httpStatus = &status
	}

	return &rodPage{
		page:       page,
		logger:     bm.logger,
		httpStatus: httpStatus,
	}, nil
}

func classifyNavError(err error, url string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", models.ErrNavigationTimeout, url)
	}
	return fmt.Errorf("navigation to %s failed: %w", url, err)
}
