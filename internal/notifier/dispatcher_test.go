package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwatch/internal/datastore"
)

type fakeSender struct {
	sent    []OutboundMessage
	failAll bool
}

func (s *fakeSender) Send(_ context.Context, msg OutboundMessage) error {
	if s.failAll {
		return errors.New("channel unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newStoreWithFinding(t *testing.T) (*datastore.DB, int64) {
	t.Helper()
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	watch, err := store.Watch("TRVALY_5Y", "kosice")
	require.NoError(t, err)
	id, created, err := store.RecordFinding(watch.ID, "2025-03-14", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, created)
	return store, id
}

func TestDispatchPending_DeliversAndMarks(t *testing.T) {
	store, _ := newStoreWithFinding(t)
	sender := &fakeSender{}
	dispatcher := NewDispatcher(store, sender, zerolog.Nop())

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "14.03.2025")
	assert.Contains(t, sender.sent[0].Text, "Košice")
	require.Len(t, sender.sent[0].Buttons, 2)
	assert.Equal(t, "cat:check:TRVALY_5Y", sender.sent[0].Buttons[0].CustomID)
	assert.Equal(t, "watch:off:TRVALY_5Y:kosice", sender.sent[0].Buttons[1].CustomID)

	pending, err := store.PendingFindings()
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered findings must not stay pending")
}

func TestDispatchPending_LinksPortalWhenURLKnown(t *testing.T) {
	store, _ := newStoreWithFinding(t)
	require.NoError(t, store.UpdateCategoryURL("TRVALY_5Y", "https://portal.example/schedule"))

	sender := &fakeSender{}
	dispatcher := NewDispatcher(store, sender, zerolog.Nop())
	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	require.Len(t, sender.sent, 1)
	require.Len(t, sender.sent[0].Buttons, 3)
	assert.Equal(t, "https://portal.example/schedule", sender.sent[0].Buttons[0].URL)
}

func TestDispatchPending_FailureLeavesFindingPending(t *testing.T) {
	store, _ := newStoreWithFinding(t)
	sender := &fakeSender{failAll: true}
	dispatcher := NewDispatcher(store, sender, zerolog.Nop())

	err := dispatcher.DispatchPending(context.Background())
	require.Error(t, err)

	pending, err := store.PendingFindings()
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed delivery must keep the finding pending")
}

func TestDispatchPending_NothingPendingIsNoOp(t *testing.T) {
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sender := &fakeSender{}
	dispatcher := NewDispatcher(store, sender, zerolog.Nop())

	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestDispatchPending_OldestFirst(t *testing.T) {
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	watch, err := store.Watch("TRVALY_5Y", "kosice")
	require.NoError(t, err)
	base := time.Now().UTC()
	_, _, err = store.RecordFinding(watch.ID, "2025-03-14", base)
	require.NoError(t, err)
	_, _, err = store.RecordFinding(watch.ID, "2025-03-21", base.Add(time.Minute))
	require.NoError(t, err)

	sender := &fakeSender{}
	dispatcher := NewDispatcher(store, sender, zerolog.Nop())
	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Text, "14.03.2025")
	assert.Contains(t, sender.sent[1].Text, "21.03.2025")
}
