package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skwatch/internal/models"
)

// RecordFinding inserts a finding for a watch unless the most recent finding
// already carries the same value (monotonic dedup: repeated identical
// observations never create findings). Returns the new id and whether a row
// was created.
func (d *DB) RecordFinding(watchID int64, value string, at time.Time) (int64, bool, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var lastValue string
	err = tx.QueryRow(`
		SELECT found_value FROM findings
		WHERE watch_id = ? ORDER BY found_at DESC, id DESC LIMIT 1`, watchID).Scan(&lastValue)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	if err == nil && lastValue == value {
		return 0, false, nil
	}

	res, err := tx.Exec(`
		INSERT INTO findings(watch_id, found_value, found_at, notified_at)
		VALUES (?, ?, ?, NULL)`, watchID, value, timeToText(at))
	if err != nil {
		return 0, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

const findingJoinQuery = `
	SELECT f.id, f.watch_id, f.found_value, f.found_at, f.notified_at,
		cat.key, cat.title, ci.key, ci.title
	FROM findings f
	JOIN watches w ON w.id = f.watch_id
	JOIN categories cat ON cat.id = w.category_id
	JOIN cities ci ON ci.id = w.city_id`

func (d *DB) queryFindings(query string, args ...interface{}) ([]models.Finding, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []models.Finding
	for rows.Next() {
		var f models.Finding
		var foundAt string
		var notifiedAt sql.NullString
		if err := rows.Scan(
			&f.ID, &f.WatchID, &f.FoundValue, &foundAt, &notifiedAt,
			&f.CategoryKey, &f.CategoryTitle, &f.CityKey, &f.CityTitle,
		); err != nil {
			return nil, err
		}
		if t, err := textToTime(foundAt); err == nil {
			f.FoundAt = t
		}
		f.NotifiedAt = nullTimeToPtr(notifiedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// PendingFindings returns findings awaiting delivery, oldest first.
func (d *DB) PendingFindings() ([]models.Finding, error) {
	return d.queryFindings(findingJoinQuery + `
		WHERE f.notified_at IS NULL
		ORDER BY f.found_at, f.id`)
}

// RecentFindings returns the newest findings regardless of delivery state.
func (d *DB) RecentFindings(limit int) ([]models.Finding, error) {
	return d.queryFindings(findingJoinQuery+`
		ORDER BY f.found_at DESC, f.id DESC LIMIT ?`, limit)
}

// MarkFindingNotified stamps a finding as delivered.
func (d *DB) MarkFindingNotified(findingID int64, at time.Time) error {
	_, err := d.db.Exec(
		`UPDATE findings SET notified_at = ? WHERE id = ?`, timeToText(at), findingID)
	return err
}
