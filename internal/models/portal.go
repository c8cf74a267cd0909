package models

import (
	"context"
	"errors"
	"time"
)

// ErrNavigationTimeout signals that the portal did not respond or the
// expected UI never rendered. Callers classify it as NEED_VPN / timeout
// rather than treating it as a fault.
var ErrNavigationTimeout = errors.New("portal navigation timed out")

// PortalRow is one extracted schedule row: a city label, the appointment date
// in ISO form when one was offered, and the raw anchor text used for
// content-drift hashing.
type PortalRow struct {
	Label   string
	Date    *string
	RawText string
}

// PortalPage is an open page inside the authenticated browsing session.
// Failures surface as ErrNavigationTimeout or plain errors; implementations
// never panic across this boundary.
type PortalPage interface {
	URL() string
	HTTPStatus() *int
	HTML() (string, error)
	WaitElement(ctx context.Context, selector string) error
	WaitText(ctx context.Context, text string) error
	Has(selector string) (bool, error)
	Attribute(selector, name string) (string, error)
	Fill(selector, value string) error
	Click(selector string) error
	ClickByText(text string) error
	Eval(js string, args ...interface{}) error
	Screenshot(fullPage bool) ([]byte, error)
	Close()
}

// PortalClient opens pages against the portal. Exactly one page operation is
// ever in flight; serialization is enforced by the callers (scheduler queue
// and the auth manager lock), not here.
type PortalClient interface {
	Open(ctx context.Context, url string, timeout time.Duration) (PortalPage, error)
}
