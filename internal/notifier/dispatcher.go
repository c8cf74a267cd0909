package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"skwatch/internal/datastore"
)

// Button is one action attached to an outbound message.
type Button struct {
	Label    string
	CustomID string // interaction id, mutually exclusive with URL
	URL      string // link button
}

// OutboundMessage is a channel message with optional action buttons.
type OutboundMessage struct {
	Text    string
	Buttons []Button
}

// Sender delivers outbound messages to the operator channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Dispatcher drains pending findings to the operator channel. A finding is
// marked notified only after the send succeeded; delivery failures leave it
// pending for the next drain.
type Dispatcher struct {
	store  *datastore.DB
	sender Sender
	logger zerolog.Logger
}

// NewDispatcher creates a finding dispatcher.
func NewDispatcher(store *datastore.DB, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger.With().Str("component", "FindingDispatcher").Logger(),
	}
}

// DispatchPending sends every undelivered finding, oldest first.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	pending, err := d.store.PendingFindings()
	if err != nil {
		return fmt.Errorf("failed to load pending findings: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	for _, finding := range pending {
		buttons := []Button{
			{Label: "Re-check", CustomID: fmt.Sprintf("cat:check:%s", finding.CategoryKey)},
			{Label: "Pause watch", CustomID: fmt.Sprintf("watch:off:%s:%s", finding.CategoryKey, finding.CityKey)},
		}
		if category, err := d.store.Category(finding.CategoryKey); err == nil && category.URL != "" {
			buttons = append([]Button{{Label: "Open portal", URL: category.URL}}, buttons...)
		}
		msg := OutboundMessage{
			Text:    FormatFinding(finding),
			Buttons: buttons,
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			// Stop the drain; remaining findings stay pending.
			return fmt.Errorf("failed to deliver finding %d: %w", finding.ID, err)
		}
		if err := d.store.MarkFindingNotified(finding.ID, time.Now().UTC()); err != nil {
			d.logger.Error().Err(err).Int64("finding", finding.ID).Msg("Failed to mark finding notified")
		}
	}

	d.logger.Info().Int("count", len(pending)).Msg("Dispatched pending findings")
	return nil
}
