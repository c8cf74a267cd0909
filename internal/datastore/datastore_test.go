package datastore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwatch/internal/common"
	"skwatch/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSeed_CreatesFullWatchMatrix(t *testing.T) {
	db := newTestDB(t)

	categories, err := db.Categories()
	require.NoError(t, err)
	assert.Len(t, categories, 5)

	counts, err := db.CountWatches()
	require.NoError(t, err)
	assert.Equal(t, 5*13, counts.Total, "one watch per (category, city) pair")
	assert.Equal(t, 0, counts.Enabled, "everything starts paused until the operator opts in")

	// Seeding is idempotent.
	require.NoError(t, db.Seed())
	counts, err = db.CountWatches()
	require.NoError(t, err)
	assert.Equal(t, 5*13, counts.Total)
}

func TestCategory_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Category("NOPE")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetCategoryEnabled_SnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)

	// Operator turns two cities on, pauses one, then the whole category
	// goes down and back up.
	require.NoError(t, db.SetCategoryEnabled("TRVALY_5Y", true))
	require.NoError(t, db.SetWatchEnabled("TRVALY_5Y", "kosice", true))
	require.NoError(t, db.SetWatchEnabled("TRVALY_5Y", "nitra", true))
	require.NoError(t, db.SetWatchEnabled("TRVALY_5Y", "kosice", false))

	require.NoError(t, db.SetCategoryEnabled("TRVALY_5Y", false))

	watches, err := db.WatchesByCategory("TRVALY_5Y")
	require.NoError(t, err)
	for _, w := range watches {
		assert.False(t, w.Enabled, "disabling the category disables every watch")
	}

	require.NoError(t, db.SetCategoryEnabled("TRVALY_5Y", true))

	kosice, err := db.Watch("TRVALY_5Y", "kosice")
	require.NoError(t, err)
	assert.False(t, kosice.Enabled, "manually paused watch must stay paused after restore")

	nitra, err := db.Watch("TRVALY_5Y", "nitra")
	require.NoError(t, err)
	assert.True(t, nitra.Enabled, "snapshot restore re-enables the rest")

	trnava, err := db.Watch("TRVALY_5Y", "trnava")
	require.NoError(t, err)
	assert.False(t, trnava.Enabled, "watches outside the snapshot stay off")
}

func TestSetCategoryEnabled_NestedDisableKeepsSnapshot(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SetWatchEnabled("PRECHODNY", "presov", true))
	require.NoError(t, db.SetCategoryEnabled("PRECHODNY", false))
	// A second disable must not overwrite the snapshot with an empty set.
	require.NoError(t, db.SetCategoryEnabled("PRECHODNY", false))
	require.NoError(t, db.SetCategoryEnabled("PRECHODNY", true))

	presov, err := db.Watch("PRECHODNY", "presov")
	require.NoError(t, err)
	assert.True(t, presov.Enabled, "the stored snapshot survives a double disable")
}

func TestRecordFinding_DeduplicatesRepeatedValue(t *testing.T) {
	db := newTestDB(t)
	watch, err := db.Watch("TRVALY_5Y", "kosice")
	require.NoError(t, err)
	now := time.Now().UTC()

	_, created, err := db.RecordFinding(watch.ID, "2025-03-14", now)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = db.RecordFinding(watch.ID, "2025-03-14", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created, "repeated identical value must not create a finding")

	_, created, err = db.RecordFinding(watch.ID, "2025-03-21", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, created, "a changed value is a new finding")

	// The value flipping back is a change again.
	_, created, err = db.RecordFinding(watch.ID, "2025-03-14", now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, created)

	findings, err := db.RecentFindings(10)
	require.NoError(t, err)
	assert.Len(t, findings, 3)
}

func TestUpdateWatchResult_PartialUpdate(t *testing.T) {
	db := newTestDB(t)
	watch, err := db.Watch("UTOCISKO_REG", "trnava")
	require.NoError(t, err)
	now := time.Now().UTC()

	value := "2025-04-01"
	require.NoError(t, db.UpdateWatchResult(watch.ID, models.StatusOK, WatchResultUpdate{
		LastSeenValue: &value,
		LastSeenAt:    &now,
	}, now))

	updated, err := db.Watch("UTOCISKO_REG", "trnava")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, updated.Status)
	require.NotNil(t, updated.LastSeenValue)
	assert.Equal(t, value, *updated.LastSeenValue)
	require.NotNil(t, updated.LastCheckAt)

	// A later failed check keeps the last seen value.
	require.NoError(t, db.UpdateWatchResult(watch.ID, models.StatusError, WatchResultUpdate{}, now.Add(time.Minute)))
	updated, err = db.Watch("UTOCISKO_REG", "trnava")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, updated.Status)
	require.NotNil(t, updated.LastSeenValue)
	assert.Equal(t, value, *updated.LastSeenValue)
}

func TestSettings_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.SettingsGet("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SettingsSet("auth_state", "OK"))
	require.NoError(t, db.SettingsSet("auth_state", "NEED_AUTH"))

	value, ok, err := db.SettingsGet("auth_state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NEED_AUTH", value)

	require.NoError(t, db.SettingsDelete("auth_state"))
	_, ok, err = db.SettingsGet("auth_state")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuns_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	started := time.Now().UTC()

	runID, err := db.StartRun("full", started)
	require.NoError(t, err)

	last, err := db.LastRun()
	require.NoError(t, err)
	assert.Nil(t, last.FinishedAt, "an open run has no finish timestamp")

	require.NoError(t, db.FinishRun(runID, 4, 1, 2, started.Add(time.Minute)))
	last, err = db.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last.FinishedAt)
	assert.Equal(t, 4, last.OK)
	assert.Equal(t, 1, last.Errors)
	assert.Equal(t, 2, last.Findings)
	assert.Equal(t, "full", last.Scope)
}
