package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Transfer Operations ────────────────────────────────────────────────────

// CreateTransfer moves crystals between two users atomically. The sender's
// balance is checked inside the transaction so a concurrent spend cannot
// drive it negative.
func (db *DB) CreateTransfer(senderID, receiverID, amount int64, now time.Time) (domain.Transfer, error) {
	if amount <= 0 {
		return domain.Transfer{}, domain.ErrInvalidAmount
	}
	if senderID == receiverID {
		return domain.Transfer{}, domain.ErrSelfTransfer
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return domain.Transfer{}, err
	}
	defer tx.Rollback()

	var balance int64
	if err := tx.QueryRow(`SELECT balance FROM users WHERE id = ?`, senderID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transfer{}, domain.ErrUserNotFound
		}
		return domain.Transfer{}, err
	}
	if balance < amount {
		return domain.Transfer{}, domain.ErrInsufficientBalance
	}

	if _, err := tx.Exec(`UPDATE users SET balance = balance - ? WHERE id = ?`, amount, senderID); err != nil {
		return domain.Transfer{}, err
	}
	res, err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, amount, receiverID)
	if err != nil {
		return domain.Transfer{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Transfer{}, err
	} else if n == 0 {
		return domain.Transfer{}, domain.ErrReceiverNotFound
	}

	ins, err := tx.Exec(`
		INSERT INTO transfers (sender_id, receiver_id, amount, created_at)
		VALUES (?, ?, ?, ?)
	`, senderID, receiverID, amount, formatTime(now))
	if err != nil {
		return domain.Transfer{}, err
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return domain.Transfer{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Transfer{}, err
	}
	return domain.Transfer{ID: id, SenderID: senderID, ReceiverID: receiverID, Amount: amount, CreatedAt: now.UTC()}, nil
}

// TransferHistory returns the user's most recent transfers, each annotated
// with the direction and the counterparty.
func (db *DB) TransferHistory(userID int64, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT t.id, t.amount, t.created_at,
		       COALESCE(t.sender_id, 0), COALESCE(t.receiver_id, 0),
		       COALESCE(s.username, ''), COALESCE(r.username, '')
		FROM transfers t
		LEFT JOIN users s ON s.id = t.sender_id
		LEFT JOIN users r ON r.id = t.receiver_id
		WHERE t.sender_id = ? OR t.receiver_id = ?
		ORDER BY t.created_at DESC, t.id DESC LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		var created string
		var senderID, receiverID int64
		var senderName, receiverName string
		if err := rows.Scan(&rec.ID, &rec.Amount, &created, &senderID, &receiverID, &senderName, &receiverName); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTime(created)
		if senderID == userID {
			rec.Direction = "sent"
			rec.OtherUserID = receiverID
			rec.OtherUsername = receiverName
		} else {
			rec.Direction = "received"
			rec.OtherUserID = senderID
			rec.OtherUsername = senderName
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
