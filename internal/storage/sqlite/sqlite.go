// Package sqlite implements the local acquisition history cache. Remote
// history endpoints are slow and rate limited, so fetched daily history is
// kept in a single-file SQLite database between runs and only refreshed
// when stale.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite cache database.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the cache database at path and runs migrations.
// Parent directories are created as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table means a fresh database; scan failure leaves version 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS history (
				brand           TEXT NOT NULL,
				reference       TEXT NOT NULL,
				date            TEXT NOT NULL,
				median_price    REAL,
				listings_active INTEGER,
				dom_median      REAL,
				ebay_activity   REAL,
				PRIMARY KEY (brand, reference, date)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS history_meta (
				brand      TEXT NOT NULL,
				reference  TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (brand, reference)
			);
			CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}

	return nil
}
