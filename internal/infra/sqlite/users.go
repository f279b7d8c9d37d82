package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── User Operations ────────────────────────────────────────────────────────

// CreateUser inserts a new user with a zero balance and a full energy bar.
func (db *DB) CreateUser(telegramID int64, profile domain.Profile, now time.Time) (domain.User, error) {
	res, err := db.conn.Exec(`
		INSERT INTO users (telegram_id, username, first_name, last_name, url_image, last_energy_update, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, telegramID, nullable(profile.Username), nullable(profile.FirstName), nullable(profile.LastName),
		nullable(profile.PhotoURL), formatTime(now), formatTime(now))
	if err != nil {
		return domain.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, err
	}
	return db.GetUser(id)
}

// GetUser returns a user by internal id.
func (db *DB) GetUser(id int64) (domain.User, error) {
	return db.scanUser(db.conn.QueryRow(userSelect+` WHERE id = ?`, id))
}

// GetUserByTelegramID returns a user by Telegram id.
func (db *DB) GetUserByTelegramID(telegramID int64) (domain.User, error) {
	return db.scanUser(db.conn.QueryRow(userSelect+` WHERE telegram_id = ?`, telegramID))
}

// GetUserByUsername returns a user by Telegram username.
func (db *DB) GetUserByUsername(username string) (domain.User, error) {
	return db.scanUser(db.conn.QueryRow(userSelect+` WHERE username = ?`, username))
}

// UpdateProfile patches the identity fields of a user.
func (db *DB) UpdateProfile(id int64, profile domain.Profile) error {
	_, err := db.conn.Exec(`
		UPDATE users SET username = ?, first_name = ?, last_name = ?, url_image = ?
		WHERE id = ?
	`, nullable(profile.Username), nullable(profile.FirstName), nullable(profile.LastName),
		nullable(profile.PhotoURL), id)
	return err
}

// AddBalance credits (or, with a negative amount, debits) a user's balance.
// Callers enforcing a floor must do the check inside a transaction; this is
// the unconditional variant used for rewards and passive income.
func (db *DB) AddBalance(id int64, amount int64) (domain.User, error) {
	if _, err := db.conn.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, amount, id); err != nil {
		return domain.User{}, err
	}
	return db.GetUser(id)
}

// SetEnergy records an authoritative energy value and its computation time.
func (db *DB) SetEnergy(id int64, energy int, at time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE users SET energy = ?, last_energy_update = ? WHERE id = ?
	`, energy, formatTime(at), id)
	return err
}

// SetMaxEnergy raises a user's energy cap.
func (db *DB) SetMaxEnergy(id int64, maxEnergy int) error {
	_, err := db.conn.Exec(`UPDATE users SET max_energy = ? WHERE id = ?`, maxEnergy, id)
	return err
}

// ApplyClick settles a batch of manual clicks atomically: energy is
// regenerated, checked and debited, and the earnings credited, inside one
// transaction. Concurrent clicks for the same user serialize here instead
// of racing a read-check-write on the same energy snapshot.
func (db *DB) ApplyClick(userID int64, clicks int, power int64, regenPerSecond int, now time.Time) (domain.User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	var energy, maxEnergy int
	var lastUpdate string
	err = tx.QueryRow(`
		SELECT energy, max_energy, last_energy_update FROM users WHERE id = ?
	`, userID).Scan(&energy, &maxEnergy, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}

	energy, at := domain.RegenerateEnergy(energy, maxEnergy, parseTime(lastUpdate), now, regenPerSecond)
	if energy < clicks {
		return domain.User{}, domain.ErrNotEnoughEnergy
	}

	amount := int64(clicks) * power
	if _, err := tx.Exec(`
		UPDATE users SET energy = ?, last_energy_update = ?, balance = balance + ? WHERE id = ?
	`, energy-clicks, formatTime(at), amount, userID); err != nil {
		return domain.User{}, err
	}

	user, err := db.scanUser(tx.QueryRow(userSelect+` WHERE id = ?`, userID))
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Leaderboard returns the top users by balance.
func (db *DB) Leaderboard(limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(url_image, ''), balance
		FROM users ORDER BY balance DESC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.FirstName, &e.PhotoURL, &e.Balance); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Scan Helpers ───────────────────────────────────────────────────────────

const userSelect = `
	SELECT id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''),
	       COALESCE(last_name, ''), COALESCE(url_image, ''),
	       balance, energy, max_energy, last_energy_update, created_at
	FROM users`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var lastEnergy, created string
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.PhotoURL,
		&u.Balance, &u.Energy, &u.MaxEnergy, &lastEnergy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.LastEnergyUpdate = parseTime(lastEnergy)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
