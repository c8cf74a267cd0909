package portal

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"skwatch/internal/models"
)

// Element lookups poll until the node appears; interactions against optional
// elements (cookie banners, login fields) must give up instead of hanging.
const elementTimeout = 5 * time.Second

// rodPage adapts a rod page to the models.PortalPage contract. All methods
// return errors instead of panicking; rod's Must helpers are never used here.
type rodPage struct {
	page       *rod.Page
	logger     zerolog.Logger
	httpStatus *int
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTTPStatus() *int {
	return p.httpStatus
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

// WaitElement blocks until the selector appears or ctx expires.
func (p *rodPage) WaitElement(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return wrapWaitError(err)
}

// WaitText blocks until the given text is rendered anywhere on the page.
func (p *rodPage) WaitText(ctx context.Context, text string) error {
	_, err := p.page.Context(ctx).ElementR("body", regexp.QuoteMeta(text))
	return wrapWaitError(err)
}

func (p *rodPage) Has(selector string) (bool, error) {
	has, _, err := p.page.Has(selector)
	return has, err
}

func (p *rodPage) Attribute(selector, name string) (string, error) {
	el, err := p.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return "", err
	}
	attr, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", nil
	}
	return *attr, nil
}

func (p *rodPage) Fill(selector, value string) error {
	el, err := p.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return err
	}
	// Replace any prefilled value instead of appending to it.
	_ = el.SelectAllText()
	return el.Input(value)
}

func (p *rodPage) Click(selector string) error {
	el, err := p.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickByText clicks the first button whose text matches the pattern, used
// for cookie banners and similar interstitials.
func (p *rodPage) ClickByText(pattern string) error {
	el, err := p.page.Timeout(elementTimeout).ElementR("button, a", pattern)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Eval(js string, args ...interface{}) error {
	_, err := p.page.Eval(js, args...)
	return err
}

func (p *rodPage) Screenshot(fullPage bool) ([]byte, error) {
	if fullPage {
		return p.page.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	return p.page.Screenshot(false, nil)
}

func (p *rodPage) Close() {
	if err := p.page.Close(); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to close page")
	}
}

func wrapWaitError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrNavigationTimeout
	}
	return err
}
