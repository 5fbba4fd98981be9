package store

import (
	"database/sql"
	"fmt"
)

// maxMessageSize caps stored message content. Prevents bloat — long tool
// output has no extraction value beyond its head.
const maxMessageSize = 16 * 1024 // 16KB

// Message is a single conversation turn, recorded by the outer agent.
// Read-only from the engine's perspective once written.
type Message struct {
	ID        int64
	Role      string
	Content   string
	Medium    string
	CreatedAt int64
}

// AddMessage records a conversation turn at the given timestamp (Unix
// millis) and returns the new message ID.
func (db *DB) AddMessage(role, content, medium string, createdAt int64) (int64, error) {
	if len(content) > maxMessageSize {
		content = content[:maxMessageSize]
	}
	if medium == "" {
		medium = "chat"
	}

	res, err := db.Exec(`
		INSERT INTO messages (role, content, medium, created_at)
		VALUES (?, ?, ?, ?)
	`, role, content, medium, createdAt)
	if err != nil {
		return 0, fmt.Errorf("add message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add message id: %w", err)
	}
	return id, nil
}

// LatestMessage returns the most recent message, or nil if none exist.
func (db *DB) LatestMessage() (*Message, error) {
	var m Message
	err := db.QueryRow(`
		SELECT id, role, content, medium, created_at
		FROM messages ORDER BY created_at DESC, id DESC LIMIT 1
	`).Scan(&m.ID, &m.Role, &m.Content, &m.Medium, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return &m, nil
}

// MessagesDescending returns all messages newest first.
func (db *DB) MessagesDescending() ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, role, content, medium, created_at
		FROM messages ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("messages descending: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesAfter returns messages with created_at strictly after the given
// timestamp (Unix millis), oldest first.
func (db *DB) MessagesAfter(after int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, role, content, medium, created_at
		FROM messages WHERE created_at > ?
		ORDER BY created_at, id
	`, after)
	if err != nil {
		return nil, fmt.Errorf("messages after: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the most recent messages, oldest first.
func (db *DB) RecentMessages(limit int) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, role, content, medium, created_at FROM (
			SELECT id, role, content, medium, created_at
			FROM messages ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Medium, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
