package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"skwatch/internal/common"
	"skwatch/internal/models"
)

const categoryColumns = `id, key, title, url, enabled, status, last_check_at, last_error`

func scanCategory(row interface{ Scan(...interface{}) error }) (models.Category, error) {
	var c models.Category
	var enabled int
	var status string
	var lastCheckAt, lastError sql.NullString
	if err := row.Scan(&c.ID, &c.Key, &c.Title, &c.URL, &enabled, &status, &lastCheckAt, &lastError); err != nil {
		return c, err
	}
	c.Enabled = enabled != 0
	c.Status = models.WatchStatus(status)
	c.LastCheckAt = nullTimeToPtr(lastCheckAt)
	c.LastError = nullStringToPtr(lastError)
	return c, nil
}

// Categories returns all categories in seed order.
func (d *DB) Categories() ([]models.Category, error) {
	rows, err := d.db.Query(`SELECT ` + categoryColumns + ` FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnabledCategories returns the categories a full sweep must check.
func (d *DB) EnabledCategories() ([]models.Category, error) {
	rows, err := d.db.Query(`SELECT ` + categoryColumns + ` FROM categories WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Category returns one category by key, or common.ErrNotFound.
func (d *DB) Category(key string) (*models.Category, error) {
	row := d.db.QueryRow(`SELECT `+categoryColumns+` FROM categories WHERE key = ?`, key)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCategoryURL sets the portal entry URL for a category.
func (d *DB) UpdateCategoryURL(key, url string) error {
	_, err := d.db.Exec(`UPDATE categories SET url = ? WHERE key = ?`, url, key)
	return err
}

// SetCategoryStatus records the outcome of a category check.
func (d *DB) SetCategoryStatus(key string, status models.WatchStatus, lastError *string, at time.Time) error {
	_, err := d.db.Exec(
		`UPDATE categories SET status = ?, last_check_at = ?, last_error = ? WHERE key = ?`,
		string(status), timeToText(at), ptrToNullString(lastError), key,
	)
	return err
}

const categorySnapshotPrefix = "category_snapshot:"

// SetCategoryEnabled toggles a category. Disabling snapshots the currently
// enabled watch ids into the settings table and disables them; re-enabling
// restores exactly that set. The toggle, the snapshot and the watch updates
// are one transaction.
func (d *DB) SetCategoryEnabled(key string, on bool) error {
	snapshotKey := categorySnapshotPrefix + key

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	enabled := 0
	if on {
		enabled = 1
	}
	if _, err := tx.Exec(`UPDATE categories SET enabled = ? WHERE key = ?`, enabled, key); err != nil {
		return err
	}

	if on {
		var snapshot sql.NullString
		err := tx.QueryRow(`SELECT value FROM settings WHERE key = ?`, snapshotKey).Scan(&snapshot)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if snapshot.Valid && snapshot.String != "" {
			ids := strings.Split(snapshot.String, ",")
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
			args := make([]interface{}, len(ids))
			for i, id := range ids {
				args[i] = id
			}
			if _, err := tx.Exec(
				`UPDATE watches SET enabled = 1 WHERE id IN (`+placeholders+`)`, args...,
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`DELETE FROM settings WHERE key = ?`, snapshotKey); err != nil {
			return err
		}
	} else {
		rows, err := tx.Query(`
			SELECT w.id FROM watches w
			JOIN categories c ON c.id = w.category_id
			WHERE c.key = ? AND w.enabled = 1`, key)
		if err != nil {
			return err
		}
		var enabledIDs []string
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			enabledIDs = append(enabledIDs, fmt.Sprintf("%d", id))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		// An empty snapshot is never written: disabling an already disabled
		// category must not clobber the stored set.
		if len(enabledIDs) > 0 {
			if _, err := tx.Exec(
				`INSERT INTO settings(key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				snapshotKey, strings.Join(enabledIDs, ","),
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`
			UPDATE watches SET enabled = 0
			WHERE category_id = (SELECT id FROM categories WHERE key = ?)`, key); err != nil {
			return err
		}
	}

	return tx.Commit()
}
