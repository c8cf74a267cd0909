package datastore

import (
	"database/sql"
	"errors"
	"fmt"

	"skwatch/internal/common"
	"skwatch/internal/models"
)

const diagnosticColumns = `
	id, recorded_at, category_code, city_key, url, status, http_status,
	content_len, anchor_hash, diff_len, diff_anchor, comment`

func scanDiagnostic(row interface{ Scan(...interface{}) error }) (models.Diagnostic, error) {
	var diag models.Diagnostic
	var recordedAt, status, diffAnchor string
	var httpStatus sql.NullInt64
	err := row.Scan(
		&diag.ID, &recordedAt, &diag.CategoryKey, &diag.CityKey, &diag.URL,
		&status, &httpStatus, &diag.ContentLen, &diag.AnchorHash,
		&diag.DiffLen, &diffAnchor, &diag.Comment,
	)
	if err != nil {
		return diag, err
	}
	if t, err := textToTime(recordedAt); err == nil {
		diag.RecordedAt = t
	}
	diag.Status = models.WatchStatus(status)
	diag.DiffAnchor = models.DiffClass(diffAnchor)
	diag.HTTPStatus = nullIntToPtr(httpStatus)
	return diag, nil
}

// RecordDiagnostic appends one scrape audit record.
func (d *DB) RecordDiagnostic(diag models.Diagnostic) error {
	_, err := d.db.Exec(`
		INSERT INTO diagnostics(
			recorded_at, category_code, city_key, url, status, http_status,
			content_len, anchor_hash, diff_len, diff_anchor, comment
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		timeToText(diag.RecordedAt), diag.CategoryKey, diag.CityKey, diag.URL,
		string(diag.Status), ptrToNullInt(diag.HTTPStatus),
		diag.ContentLen, diag.AnchorHash, diag.DiffLen,
		string(diag.DiffAnchor), diag.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to record diagnostic: %w", err)
	}
	return nil
}

// LastDiagnostic returns the newest diagnostic for a (category, city) pair,
// or common.ErrNotFound when the pair has never been scraped.
func (d *DB) LastDiagnostic(catKey, cityKey string) (*models.Diagnostic, error) {
	row := d.db.QueryRow(`
		SELECT `+diagnosticColumns+` FROM diagnostics
		WHERE category_code = ? AND city_key = ?
		ORDER BY recorded_at DESC, id DESC LIMIT 1`, catKey, cityKey)
	diag, err := scanDiagnostic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &diag, nil
}

func (d *DB) queryDiagnostics(query string, args ...interface{}) ([]models.Diagnostic, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []models.Diagnostic
	for rows.Next() {
		diag, err := scanDiagnostic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, diag)
	}
	return out, rows.Err()
}

// LatestDiagnostics returns the current diagnostic snapshot: the newest row
// per (category, city) pair.
func (d *DB) LatestDiagnostics(limit int) ([]models.Diagnostic, error) {
	return d.queryDiagnostics(`
		SELECT `+diagnosticColumns+` FROM diagnostics
		WHERE id IN (
			SELECT MAX(id) FROM diagnostics GROUP BY category_code, city_key
		)
		ORDER BY recorded_at DESC LIMIT ?`, limit)
}

// RecentErrorDiagnostics returns the newest non-OK scrape outcomes, used by
// the failure report.
func (d *DB) RecentErrorDiagnostics(limit int) ([]models.Diagnostic, error) {
	return d.queryDiagnostics(`
		SELECT `+diagnosticColumns+` FROM diagnostics
		WHERE status NOT IN ('OK', 'NO_DATE')
		ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
}
