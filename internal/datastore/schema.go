package datastore

// Default monitoring matrix, created at first boot. Categories start disabled
// so a fresh install never scrapes before the operator configures URLs.
var defaultCategories = []struct {
	Key   string
	Title string
}{
	{"UTOCISKO_REG", "Asylum — registration"},
	{"UTOCISKO_DOKLAD", "Asylum — documents"},
	{"PRECHODNY", "Temporary residence"},
	{"TRVALY_5Y", "Permanent residence (5 years)"},
	{"TRVALY_UNLIM", "Permanent residence (unlimited)"},
}

var defaultCities = []struct {
	Key   string
	Title string
}{
	{"banska_bystrica", "Banská Bystrica"},
	{"bratislava", "Bratislava"},
	{"dunajska_streda", "Dunajská Streda"},
	{"kosice", "Košice"},
	{"michalovce", "Michalovce"},
	{"nitra", "Nitra"},
	{"nove_zamky", "Nové Zámky"},
	{"presov", "Prešov"},
	{"rimavska_sobota", "Rimavská Sobota"},
	{"ruzomberok", "Ružomberok"},
	{"trencin", "Trenčín"},
	{"trnava", "Trnava"},
	{"zilina", "Žilina"},
}

// InitSchema creates all tables if they don't already exist.
func (d *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PAUSED',
		last_check_at TEXT,
		last_error TEXT
	);

	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		ord INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS watches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL,
		city_id INTEGER NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PAUSED',
		last_seen_value TEXT,
		last_seen_at TEXT,
		last_check_at TEXT,
		error_msg TEXT,
		UNIQUE(category_id, city_id),
		FOREIGN KEY(category_id) REFERENCES categories(id) ON DELETE CASCADE,
		FOREIGN KEY(city_id) REFERENCES cities(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		watch_id INTEGER NOT NULL,
		found_value TEXT NOT NULL,
		found_at TEXT NOT NULL,
		notified_at TEXT,
		FOREIGN KEY(watch_id) REFERENCES watches(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS diagnostics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		category_code TEXT NOT NULL,
		city_key TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		http_status INTEGER,
		content_len INTEGER NOT NULL DEFAULT 0,
		anchor_hash TEXT NOT NULL DEFAULT '',
		diff_len INTEGER NOT NULL DEFAULT 0,
		diff_anchor TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_diagnostics_pair
		ON diagnostics(category_code, city_key, recorded_at);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		ok INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		findings INTEGER NOT NULL DEFAULT 0,
		scope TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS screenshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	if _, err := d.db.Exec(query); err != nil {
		d.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	if _, err := d.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return err
	}
	return nil
}

// Seed inserts the default categories and cities on first boot and ensures a
// watch exists for every (category, city) combination.
func (d *DB) Seed() error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var categoryCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&categoryCount); err != nil {
		return err
	}
	if categoryCount == 0 {
		for _, c := range defaultCategories {
			if _, err := tx.Exec(
				`INSERT INTO categories(key, title) VALUES (?, ?)`, c.Key, c.Title,
			); err != nil {
				return err
			}
		}
		d.logger.Info().Int("count", len(defaultCategories)).Msg("Seeded default categories")
	}

	var cityCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM cities`).Scan(&cityCount); err != nil {
		return err
	}
	if cityCount == 0 {
		for i, c := range defaultCities {
			if _, err := tx.Exec(
				`INSERT INTO cities(key, title, ord) VALUES (?, ?, ?)`, c.Key, c.Title, i+1,
			); err != nil {
				return err
			}
		}
		d.logger.Info().Int("count", len(defaultCities)).Msg("Seeded default cities")
	}

	// One watch per (category, city) pair, created eagerly.
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO watches(category_id, city_id)
		SELECT c.id, ci.id FROM categories c CROSS JOIN cities ci
		WHERE NOT EXISTS (
			SELECT 1 FROM watches w WHERE w.category_id = c.id AND w.city_id = ci.id
		)`); err != nil {
		return err
	}

	return tx.Commit()
}
