package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/differ"
	"skwatch/internal/models"
)

func TestUpdateInterval_PersistsAcrossRestarts(t *testing.T) {
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.NewDefaultSchedulerConfig()
	sched := NewScheduler(cfg, store, nil, nil, "", zerolog.Nop())
	assert.Equal(t, 10*time.Minute, sched.currentInterval())

	require.NoError(t, sched.UpdateInterval(3))
	assert.Equal(t, 3*time.Minute, sched.currentInterval())

	// A fresh scheduler over the same store picks the override up.
	restarted := NewScheduler(cfg, store, nil, nil, "", zerolog.Nop())
	assert.Equal(t, 3*time.Minute, restarted.currentInterval())
}

// overlapClient fails the test if a second page is ever opened while one is
// still in flight.
type overlapClient struct {
	t        *testing.T
	inFlight int32
	opens    int32
}

func (c *overlapClient) Open(context.Context, string, time.Duration) (models.PortalPage, error) {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		c.t.Error("two portal operations in flight at once")
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)
	atomic.AddInt32(&c.opens, 1)
	return nil, models.ErrNavigationTimeout
}

func TestScheduler_NeverOverlapsChecks(t *testing.T) {
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpdateCategoryURL("TRVALY_5Y", "https://portal.example/schedule"))
	require.NoError(t, store.SetCategoryEnabled("TRVALY_5Y", true))

	client := &overlapClient{t: t}
	detector := differ.NewDetector(store, zerolog.Nop())
	checker := NewChecker(config.NewDefaultSchedulerConfig(), store, client, stubAuth{state: models.AuthOK}, detector, zerolog.Nop())
	sched := NewScheduler(config.NewDefaultSchedulerConfig(), store, checker, nil, "", zerolog.Nop())

	ctx := context.Background()
	sched.Start(ctx)
	for i := 0; i < 3; i++ {
		sched.TriggerCategory("TRVALY_5Y", "test")
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&client.opens) >= 4 // startup sweep + 3 manual
	}, 5*time.Second, 10*time.Millisecond)
	sched.Stop()
}

func TestUpdateInterval_RejectsNonPositive(t *testing.T) {
	store, err := datastore.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sched := NewScheduler(config.NewDefaultSchedulerConfig(), store, nil, nil, "", zerolog.Nop())
	assert.Error(t, sched.UpdateInterval(0))
	assert.Equal(t, 10*time.Minute, sched.currentInterval())
}
