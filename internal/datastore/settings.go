package datastore

import (
	"database/sql"
	"errors"
)

// SettingsGet returns a settings value and whether the key exists. The
// settings table backs the auth session singleton and small scalar
// configuration such as the current check interval.
func (d *DB) SettingsGet(key string) (string, bool, error) {
	var value sql.NullString
	err := d.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value.String, true, nil
}

// SettingsSet upserts a settings value.
func (d *DB) SettingsSet(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SettingsDelete removes a settings key. Deleting a missing key is a no-op.
func (d *DB) SettingsDelete(key string) error {
	_, err := d.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}
