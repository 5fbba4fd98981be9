package store

import (
	"fmt"
	"time"
)

// Summary records a condensed session. covers_until is the timestamp of the
// last message already summarized; messages strictly after it are pending.
type Summary struct {
	ID          int64
	Content     string
	CoversUntil int64
	CreatedAt   int64
}

// SaveSummary stores a session summary and advances the coverage watermark.
func (db *DB) SaveSummary(content string, coversUntil int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO summaries (content, covers_until, created_at)
		VALUES (?, ?, ?)
	`, content, coversUntil, now)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// LatestCoversUntil returns the highest covers_until watermark, or 0 if no
// summaries exist yet.
func (db *DB) LatestCoversUntil() (int64, error) {
	var covers int64
	err := db.QueryRow(`SELECT COALESCE(MAX(covers_until), 0) FROM summaries`).Scan(&covers)
	if err != nil {
		return 0, fmt.Errorf("latest covers_until: %w", err)
	}
	return covers, nil
}

// RecentSummaries returns the most recent summaries, newest first.
func (db *DB) RecentSummaries(limit int) ([]Summary, error) {
	rows, err := db.Query(`
		SELECT id, content, covers_until, created_at
		FROM summaries ORDER BY covers_until DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent summaries: %w", err)
	}
	defer rows.Close()

	var sums []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Content, &s.CoversUntil, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sums = append(sums, s)
	}
	return sums, rows.Err()
}
