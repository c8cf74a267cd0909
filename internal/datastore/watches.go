package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skwatch/internal/common"
	"skwatch/internal/models"
)

const watchJoinColumns = `
	w.id, w.category_id, w.city_id, w.enabled, w.status,
	w.last_seen_value, w.last_seen_at, w.last_check_at, w.error_msg,
	cat.key, cat.title, cat.enabled, cat.url,
	ci.key, ci.title, ci.ord`

func scanWatch(row interface{ Scan(...interface{}) error }) (models.Watch, error) {
	var w models.Watch
	var enabled, catEnabled int
	var status string
	var lastSeenValue, lastSeenAt, lastCheckAt, errorMsg sql.NullString
	err := row.Scan(
		&w.ID, &w.CategoryID, &w.CityID, &enabled, &status,
		&lastSeenValue, &lastSeenAt, &lastCheckAt, &errorMsg,
		&w.CategoryKey, &w.CategoryTitle, &catEnabled, &w.CategoryURL,
		&w.CityKey, &w.CityTitle, &w.CityOrd,
	)
	if err != nil {
		return w, err
	}
	w.Enabled = enabled != 0
	w.CategoryEnabled = catEnabled != 0
	w.Status = models.WatchStatus(status)
	w.LastSeenValue = nullStringToPtr(lastSeenValue)
	w.LastSeenAt = nullTimeToPtr(lastSeenAt)
	w.LastCheckAt = nullTimeToPtr(lastCheckAt)
	w.ErrorMsg = nullStringToPtr(errorMsg)
	return w, nil
}

func (d *DB) queryWatches(query string, args ...interface{}) ([]models.Watch, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watches: %w", err)
	}
	defer rows.Close()

	var out []models.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WatchesByCategory returns every watch of one category in city display order.
func (d *DB) WatchesByCategory(catKey string) ([]models.Watch, error) {
	return d.queryWatches(`
		SELECT `+watchJoinColumns+`
		FROM watches w
		JOIN categories cat ON cat.id = w.category_id
		JOIN cities ci ON ci.id = w.city_id
		WHERE cat.key = ?
		ORDER BY ci.ord`, catKey)
}

// EnabledWatches returns watches that are enabled together with their category.
func (d *DB) EnabledWatches() ([]models.Watch, error) {
	return d.queryWatches(`
		SELECT ` + watchJoinColumns + `
		FROM watches w
		JOIN categories cat ON cat.id = w.category_id
		JOIN cities ci ON ci.id = w.city_id
		WHERE w.enabled = 1 AND cat.enabled = 1
		ORDER BY cat.id, ci.ord`)
}

// Watch returns one watch by (category, city) key pair, or common.ErrNotFound.
func (d *DB) Watch(catKey, cityKey string) (*models.Watch, error) {
	row := d.db.QueryRow(`
		SELECT `+watchJoinColumns+`
		FROM watches w
		JOIN categories cat ON cat.id = w.category_id
		JOIN cities ci ON ci.id = w.city_id
		WHERE cat.key = ? AND ci.key = ?`, catKey, cityKey)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const watchManualOffPrefix = "watch_manual_off:"

// SetWatchEnabled toggles one watch and tracks a manual-off marker so a later
// category re-enable can tell operator pauses apart from the snapshot.
func (d *DB) SetWatchEnabled(catKey, cityKey string, on bool) error {
	w, err := d.Watch(catKey, cityKey)
	if err != nil {
		return err
	}
	enabled := 0
	if on {
		enabled = 1
	}
	if _, err := d.db.Exec(`UPDATE watches SET enabled = ? WHERE id = ?`, enabled, w.ID); err != nil {
		return err
	}
	flagKey := fmt.Sprintf("%s%d", watchManualOffPrefix, w.ID)
	if on {
		return d.SettingsDelete(flagKey)
	}
	return d.SettingsSet(flagKey, "1")
}

// WatchResultUpdate carries the per-watch outcome of a scrape. Nil fields are
// left untouched; last_check_at is always stamped.
type WatchResultUpdate struct {
	LastSeenValue *string
	LastSeenAt    *time.Time
	ErrorMsg      *string
}

// UpdateWatchResult applies the outcome of one scrape to a watch.
func (d *DB) UpdateWatchResult(watchID int64, status models.WatchStatus, upd WatchResultUpdate, at time.Time) error {
	fields := "status = ?, last_check_at = ?"
	args := []interface{}{string(status), timeToText(at)}
	if upd.LastSeenValue != nil {
		fields += ", last_seen_value = ?"
		args = append(args, *upd.LastSeenValue)
	}
	if upd.LastSeenAt != nil {
		fields += ", last_seen_at = ?"
		args = append(args, timeToText(*upd.LastSeenAt))
	}
	if upd.ErrorMsg != nil {
		fields += ", error_msg = ?"
		args = append(args, *upd.ErrorMsg)
	}
	args = append(args, watchID)
	_, err := d.db.Exec(`UPDATE watches SET `+fields+` WHERE id = ?`, args...)
	return err
}

// ResetWatchesForCategory stamps every watch of a category with one status,
// used when a whole check fails before any row was extracted.
func (d *DB) ResetWatchesForCategory(catKey string, status models.WatchStatus, errMsg string, at time.Time) error {
	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := d.db.Exec(`
		UPDATE watches SET status = ?, error_msg = ?, last_check_at = ?
		WHERE category_id = (SELECT id FROM categories WHERE key = ?)`,
		string(status), errVal, timeToText(at), catKey)
	return err
}

// WatchCounts summarizes watches for the status overview.
type WatchCounts struct {
	Total   int
	Enabled int
	Errors  int
}

// CountWatches returns aggregate watch counts.
func (d *DB) CountWatches() (WatchCounts, error) {
	var c WatchCounts
	err := d.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN enabled = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'ERROR' THEN 1 ELSE 0 END), 0)
		FROM watches`).Scan(&c.Total, &c.Enabled, &c.Errors)
	return c, err
}
