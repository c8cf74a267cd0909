package auth

import "context"

// Prompter is the operator-facing side of human-assisted authentication. The
// notifier implements it over the operator channel; an unconfigured channel
// behaves as a no-op and the waits simply time out, failing closed.
type Prompter interface {
	// PromptManualEscalation asks the operator to take over after automatic
	// captcha solving failed.
	PromptManualEscalation(ctx context.Context) error
	// PromptCaptcha asks the operator to solve the captcha in the live
	// session and signal done or cancel.
	PromptCaptcha(ctx context.Context) error
	// PromptSMSCode asks the operator for the 6-digit one-time code.
	PromptSMSCode(ctx context.Context, attemptsLeft int) error
	// Notify delivers a plain informational message.
	Notify(ctx context.Context, text string) error
}

// NopPrompter is used when no operator channel is configured.
type NopPrompter struct{}

func (NopPrompter) PromptManualEscalation(context.Context) error { return nil }
func (NopPrompter) PromptCaptcha(context.Context) error          { return nil }
func (NopPrompter) PromptSMSCode(context.Context, int) error     { return nil }
func (NopPrompter) Notify(context.Context, string) error         { return nil }
