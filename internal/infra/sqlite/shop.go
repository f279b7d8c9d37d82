package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Shop Catalog Operations ────────────────────────────────────────────────

// InsertShopItem adds a crystal pack to the shop.
func (db *DB) InsertShopItem(item domain.ShopItem) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO shop_items (crystals, stars, is_active) VALUES (?, ?, ?)
	`, item.Crystals, item.Stars, boolInt(item.Active))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetShopItem returns one shop item.
func (db *DB) GetShopItem(id int64) (domain.ShopItem, error) {
	var item domain.ShopItem
	var active int
	err := db.conn.QueryRow(`
		SELECT id, crystals, stars, is_active FROM shop_items WHERE id = ?
	`, id).Scan(&item.ID, &item.Crystals, &item.Stars, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ShopItem{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.ShopItem{}, err
	}
	item.Active = active == 1
	return item, nil
}

// ListShopItems returns shop items; activeOnly hides retired packs.
func (db *DB) ListShopItems(activeOnly bool) ([]domain.ShopItem, error) {
	query := `SELECT id, crystals, stars, is_active FROM shop_items`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY stars`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ShopItem
	for rows.Next() {
		var item domain.ShopItem
		var active int
		if err := rows.Scan(&item.ID, &item.Crystals, &item.Stars, &active); err != nil {
			return nil, err
		}
		item.Active = active == 1
		items = append(items, item)
	}
	return items, rows.Err()
}

// ─── Purchase Operations ────────────────────────────────────────────────────

// CreatePurchase records a purchase and credits the crystals in one
// transaction.
func (db *DB) CreatePurchase(userID int64, item domain.ShopItem, now time.Time) (domain.Purchase, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return domain.Purchase{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, item.Crystals, userID)
	if err != nil {
		return domain.Purchase{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Purchase{}, err
	} else if n == 0 {
		return domain.Purchase{}, domain.ErrUserNotFound
	}

	ins, err := tx.Exec(`
		INSERT INTO purchases (user_id, shop_item_id, crystals, stars, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, item.ID, item.Crystals, item.Stars, formatTime(now))
	if err != nil {
		return domain.Purchase{}, err
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return domain.Purchase{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Purchase{}, err
	}
	return domain.Purchase{
		ID: id, UserID: userID, ShopItemID: item.ID,
		Crystals: item.Crystals, Stars: item.Stars, CreatedAt: now.UTC(),
	}, nil
}

// UserPurchases returns the user's most recent purchases.
func (db *DB) UserPurchases(userID int64, limit int) ([]domain.Purchase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, user_id, COALESCE(shop_item_id, 0), crystals, stars, created_at
		FROM purchases WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		var created string
		if err := rows.Scan(&p.ID, &p.UserID, &p.ShopItemID, &p.Crystals, &p.Stars, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(created)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ─── Invoice Operations ─────────────────────────────────────────────────────

// CreateInvoice stores a pending Stars payment handle.
func (db *DB) CreateInvoice(inv domain.Invoice) error {
	_, err := db.conn.Exec(`
		INSERT INTO invoices (id, shop_item_id, stars, created_at) VALUES (?, ?, ?, ?)
	`, inv.ID, inv.ShopItemID, inv.Stars, formatTime(inv.CreatedAt))
	return err
}

// GetInvoice returns a pending invoice by handle.
func (db *DB) GetInvoice(id string) (domain.Invoice, error) {
	var inv domain.Invoice
	var created string
	err := db.conn.QueryRow(`
		SELECT id, shop_item_id, stars, created_at FROM invoices WHERE id = ?
	`, id).Scan(&inv.ID, &inv.ShopItemID, &inv.Stars, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.CreatedAt = parseTime(created)
	return inv, nil
}
