package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection and provides typed accessors for every
// persisted entity. It is the single source of truth and is safe for
// concurrent use from the scheduler, the auth manager and the operator path.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New initializes a new DB connection, ensures the schema is set up and seeds
// the default categories, cities and the watch cross-product.
func New(dataSourceName string, logger zerolog.Logger) (*DB, error) {
	dbLogger := logger.With().Str("component", "Datastore").Logger()
	dbLogger.Info().Str("db_path", dataSourceName).Msg("Initializing database connection")

	if dir := filepath.Dir(dataSourceName); dir != "" && dir != "." && dataSourceName != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// A single writer connection sidesteps sqlite busy errors; the workload
	// is serialized anyway.
	dbInstance.SetMaxOpenConns(1)

	d := &DB{db: dbInstance, logger: dbLogger}

	if err := d.InitSchema(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := d.Seed(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	dbLogger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified")
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func timeToText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func textToTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Older rows may carry second precision.
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func nullTimeToPtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := textToTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIntToPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func ptrToNullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func ptrToNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
