// Package sqlite provides the persistent store for the Tapcore economy.
// One database file holds users, upgrades, tasks, transfers, the shop and
// the global chat. All timestamps are stored as RFC 3339 TEXT in UTC.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and exposes typed economy operations.
type DB struct {
	conn *sql.DB
}

// Open creates (or opens) the database in the given directory and applies
// all schema migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dir, "tapcore.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("%w in %q", err, stmt)
		}
	}
	return nil
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id        INTEGER NOT NULL UNIQUE,
			username           TEXT,
			first_name         TEXT,
			last_name          TEXT,
			url_image          TEXT,
			balance            INTEGER NOT NULL DEFAULT 0,
			energy             INTEGER NOT NULL DEFAULT 100,
			max_energy         INTEGER NOT NULL DEFAULT 100,
			last_energy_update TEXT NOT NULL,
			created_at         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC)`,

		`CREATE TABLE IF NOT EXISTS upgrades (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			key              TEXT NOT NULL UNIQUE,
			title            TEXT NOT NULL,
			description      TEXT,
			base_price       INTEGER NOT NULL DEFAULT 10,
			price_multiplier INTEGER NOT NULL DEFAULT 135,
			max_level        INTEGER NOT NULL DEFAULT 100,
			value_per_level  INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS user_upgrades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			upgrade_id INTEGER NOT NULL REFERENCES upgrades(id) ON DELETE CASCADE,
			level      INTEGER NOT NULL DEFAULT 0,
			UNIQUE(user_id, upgrade_id)
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			task_type    TEXT NOT NULL,
			action_type  TEXT NOT NULL,
			target_value INTEGER NOT NULL,
			reward       INTEGER NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT,
			is_active    INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_action ON tasks(action_type, is_active)`,

		`CREATE TABLE IF NOT EXISTS user_tasks (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			task_id      INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			progress     INTEGER NOT NULL DEFAULT 0,
			is_completed INTEGER NOT NULL DEFAULT 0,
			is_claimed   INTEGER NOT NULL DEFAULT 0,
			period_start TEXT NOT NULL,
			UNIQUE(user_id, task_id, period_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_tasks_period ON user_tasks(task_id, period_start)`,

		`CREATE TABLE IF NOT EXISTS transfers (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id   INTEGER REFERENCES users(id) ON DELETE SET NULL,
			receiver_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
			amount      INTEGER NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers(receiver_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS shop_items (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			crystals  INTEGER NOT NULL,
			stars     INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS purchases (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			shop_item_id INTEGER REFERENCES shop_items(id) ON DELETE SET NULL,
			crystals     INTEGER NOT NULL,
			stars        INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id           TEXT PRIMARY KEY,
			shop_item_id INTEGER NOT NULL REFERENCES shop_items(id) ON DELETE CASCADE,
			stars        INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			name        TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			description TEXT
		)`,
	}
}

// ─── Time Helpers ───────────────────────────────────────────────────────────

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
