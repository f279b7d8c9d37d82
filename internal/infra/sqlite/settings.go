package sqlite

import (
	"database/sql"
	"errors"
	"strconv"
)

// ─── Admin Settings Operations ──────────────────────────────────────────────
// Free-form key/value knobs tunable without a redeploy (base click value,
// chat history cap, and whatever admins add next).

// GetSetting returns a setting value and whether it exists.
func (db *DB) GetSetting(name string) (string, bool, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting creates or updates a setting.
func (db *DB) SetSetting(name, value, description string) error {
	_, err := db.conn.Exec(`
		INSERT INTO settings (name, value, description) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE description END
	`, name, value, description)
	return err
}

// IntSetting returns a setting parsed as int64, or the fallback when the
// setting is absent or malformed.
func (db *DB) IntSetting(name string, fallback int64) int64 {
	value, ok, err := db.GetSetting(name)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
