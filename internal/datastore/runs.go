package datastore

import (
	"database/sql"
	"errors"
	"time"

	"skwatch/internal/common"
	"skwatch/internal/models"
)

// StartRun opens a new run record and returns its id.
func (d *DB) StartRun(scope string, at time.Time) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO runs(started_at, scope) VALUES (?, ?)`, timeToText(at), scope)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun closes a run record with its counters.
func (d *DB) FinishRun(runID int64, ok, errCount, findings int, at time.Time) error {
	_, err := d.db.Exec(`
		UPDATE runs SET finished_at = ?, ok = ?, errors = ?, findings = ?
		WHERE id = ?`, timeToText(at), ok, errCount, findings, runID)
	return err
}

func scanRun(row interface{ Scan(...interface{}) error }) (models.Run, error) {
	var r models.Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&r.ID, &startedAt, &finishedAt, &r.OK, &r.Errors, &r.Findings, &r.Scope); err != nil {
		return r, err
	}
	if t, err := textToTime(startedAt); err == nil {
		r.StartedAt = t
	}
	r.FinishedAt = nullTimeToPtr(finishedAt)
	return r, nil
}

// LastRun returns the most recently started run, or common.ErrNotFound.
func (d *DB) LastRun() (*models.Run, error) {
	row := d.db.QueryRow(`
		SELECT id, started_at, finished_at, ok, errors, findings, scope
		FROM runs ORDER BY id DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecentRuns returns the newest runs, most recent first.
func (d *DB) RecentRuns(limit int) ([]models.Run, error) {
	rows, err := d.db.Query(`
		SELECT id, started_at, finished_at, ok, errors, findings, scope
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordScreenshot stores the audit row for a captured screenshot.
func (d *DB) RecordScreenshot(s models.Screenshot) error {
	_, err := d.db.Exec(`
		INSERT INTO screenshots(name, path, description, created_at)
		VALUES (?, ?, ?, ?)`, s.Name, s.Path, s.Description, timeToText(s.CreatedAt))
	return err
}
