package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Chat Operations ────────────────────────────────────────────────────────

// InsertChatMessage appends a message to the global chat.
func (db *DB) InsertChatMessage(userID int64, text string, now time.Time) (domain.ChatMessage, error) {
	res, err := db.conn.Exec(`
		INSERT INTO chat_messages (user_id, text, created_at) VALUES (?, ?, ?)
	`, userID, text, formatTime(now))
	if err != nil {
		return domain.ChatMessage{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ChatMessage{}, err
	}

	var username string
	err = db.conn.QueryRow(`SELECT COALESCE(username, '') FROM users WHERE id = ?`, userID).Scan(&username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.ChatMessage{}, err
	}

	return domain.ChatMessage{ID: id, UserID: userID, Username: username, Text: text, CreatedAt: now.UTC()}, nil
}

// ListChatMessages returns recent messages in ascending id order. A non-zero
// beforeID pages backwards through history.
func (db *DB) ListChatMessages(limit int, beforeID int64) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT m.id, m.user_id, COALESCE(u.username, ''), m.text, m.created_at
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.user_id`
	args := []interface{}{}
	if beforeID > 0 {
		query += ` WHERE m.id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Text, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// TrimChat deletes all but the newest keep messages.
func (db *DB) TrimChat(keep int) (int64, error) {
	if keep <= 0 {
		keep = 500
	}
	res, err := db.conn.Exec(`
		DELETE FROM chat_messages WHERE id NOT IN (
			SELECT id FROM chat_messages ORDER BY id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
