package db

import (
	"context"
	"fmt"

	"clickrace/internal/leaderboard"
)

// Leaderboard is the scores table behind leaderboard.Index.
type Leaderboard struct {
	db *DB
}

func NewLeaderboard(d *DB) *Leaderboard {
	return &Leaderboard{db: d}
}

// Upsert never lowers a stored count.
func (l *Leaderboard) Upsert(ctx context.Context, roomID, player string, clicks int) error {
	_, err := l.db.conn.ExecContext(ctx, `
		INSERT INTO scores (room_id, player_name, clicks)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, player_name) DO UPDATE
		SET clicks = GREATEST(scores.clicks, EXCLUDED.clicks), updated_at = now()
	`, roomID, player, clicks)
	if err != nil {
		return fmt.Errorf("upserting score: %w", err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, roomID string, n int) ([]leaderboard.Entry, error) {
	rows, err := l.db.conn.QueryContext(ctx, `
		SELECT player_name, clicks FROM scores
		WHERE room_id = $1
		ORDER BY clicks DESC, player_name
		LIMIT $2
	`, roomID, n)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []leaderboard.Entry{}
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.Name, &e.Clicks); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
