package sqlite

import (
	"database/sql"
	"errors"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Upgrade Catalog Operations ─────────────────────────────────────────────

// InsertUpgrade adds an upgrade kind to the catalog. Seeding is idempotent:
// an existing key is left untouched.
func (db *DB) InsertUpgrade(u domain.Upgrade) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO upgrades (key, title, description, base_price, price_multiplier, max_level, value_per_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.Key, u.Title, nullable(u.Description), u.BasePrice, u.PriceMultiplier, u.MaxLevel, u.ValuePerLevel)
	return err
}

// GetUpgradeByKey returns one upgrade kind.
func (db *DB) GetUpgradeByKey(key string) (domain.Upgrade, error) {
	row := db.conn.QueryRow(upgradeSelect+` WHERE key = ?`, key)
	return scanUpgrade(row)
}

// ListUpgrades returns the full upgrade catalog.
func (db *DB) ListUpgrades() ([]domain.Upgrade, error) {
	rows, err := db.conn.Query(upgradeSelect + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var upgrades []domain.Upgrade
	for rows.Next() {
		u, err := scanUpgrade(rows)
		if err != nil {
			return nil, err
		}
		upgrades = append(upgrades, u)
	}
	return upgrades, rows.Err()
}

// ─── Per-User Upgrade Operations ────────────────────────────────────────────

// UserUpgradeLevel returns the owned level of one upgrade kind (0 when never
// purchased).
func (db *DB) UserUpgradeLevel(userID, upgradeID int64) (int, error) {
	var level int
	err := db.conn.QueryRow(`
		SELECT level FROM user_upgrades WHERE user_id = ? AND upgrade_id = ?
	`, userID, upgradeID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return level, err
}

// UserUpgradeLevels returns owned levels keyed by upgrade key, including
// zero entries for catalog upgrades the user never bought.
func (db *DB) UserUpgradeLevels(userID int64) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT u.key, COALESCE(uu.level, 0)
		FROM upgrades u
		LEFT JOIN user_upgrades uu ON uu.upgrade_id = u.id AND uu.user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make(map[string]int)
	for rows.Next() {
		var key string
		var level int
		if err := rows.Scan(&key, &level); err != nil {
			return nil, err
		}
		levels[key] = level
	}
	return levels, rows.Err()
}

// UpgradeStatesFor returns the client view of the catalog for one user:
// every upgrade kind with the owned level and the price of the next one.
func (db *DB) UpgradeStatesFor(userID int64) ([]domain.UpgradeState, error) {
	upgrades, err := db.ListUpgrades()
	if err != nil {
		return nil, err
	}
	levels, err := db.UserUpgradeLevels(userID)
	if err != nil {
		return nil, err
	}

	states := make([]domain.UpgradeState, 0, len(upgrades))
	for _, u := range upgrades {
		level := levels[u.Key]
		states = append(states, domain.UpgradeState{
			Key:       u.Key,
			Title:     u.Title,
			Level:     level,
			NextPrice: u.UpgradePrice(level),
		})
	}
	return states, nil
}

// BuyUpgrade performs a purchase atomically: the price for the current level
// is checked against the balance and debited, and the owned level bumped, in
// one transaction. Returns the new level.
func (db *DB) BuyUpgrade(userID int64, upgrade domain.Upgrade) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var level int
	err = tx.QueryRow(`
		SELECT level FROM user_upgrades WHERE user_id = ? AND upgrade_id = ?
	`, userID, upgrade.ID).Scan(&level)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	if level >= upgrade.MaxLevel {
		return 0, domain.ErrMaxLevelReached
	}

	price := upgrade.UpgradePrice(level)

	var balance int64
	if err := tx.QueryRow(`SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, err
	}
	if balance < price {
		return 0, domain.ErrInsufficientBalance
	}

	if _, err := tx.Exec(`UPDATE users SET balance = balance - ? WHERE id = ?`, price, userID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`
		INSERT INTO user_upgrades (user_id, upgrade_id, level) VALUES (?, ?, 1)
		ON CONFLICT(user_id, upgrade_id) DO UPDATE SET level = level + 1
	`, userID, upgrade.ID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return level + 1, nil
}

// ─── Scan Helpers ───────────────────────────────────────────────────────────

const upgradeSelect = `
	SELECT id, key, title, COALESCE(description, ''), base_price, price_multiplier, max_level, value_per_level
	FROM upgrades`

func scanUpgrade(row rowScanner) (domain.Upgrade, error) {
	var u domain.Upgrade
	err := row.Scan(&u.ID, &u.Key, &u.Title, &u.Description, &u.BasePrice, &u.PriceMultiplier, &u.MaxLevel, &u.ValuePerLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Upgrade{}, domain.ErrUpgradeNotFound
	}
	if err != nil {
		return domain.Upgrade{}, err
	}
	return u, nil
}
