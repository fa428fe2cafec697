package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clickrace/internal/connections"
)

// ConnectionStore is the connections table behind connections.Directory.
type ConnectionStore struct {
	db  *DB
	ttl time.Duration
}

func NewConnectionStore(d *DB, ttl time.Duration) *ConnectionStore {
	if ttl <= 0 {
		ttl = connections.DefaultTTL
	}
	return &ConnectionStore{db: d, ttl: ttl}
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (*connections.Connection, error) {
	var c connections.Connection
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, player_name, room_id, connected_at, last_seen
		FROM connections WHERE id = $1
	`, id).Scan(&c.ID, &c.PlayerName, &c.RoomID, &c.ConnectedAt, &c.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connections.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	return &c, nil
}

func (s *ConnectionStore) Put(ctx context.Context, c *connections.Connection) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO connections (id, player_name, room_id, connected_at, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET player_name = $2, room_id = $3, last_seen = $5
	`, c.ID, c.PlayerName, c.RoomID, c.ConnectedAt, c.LastSeen)
	if err != nil {
		return fmt.Errorf("putting connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) ListByRoom(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id FROM connections WHERE room_id = $1 ORDER BY connected_at
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing room connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Expire deletes connections idle longer than the TTL.
func (s *ConnectionStore) Expire(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM connections WHERE last_seen < $1`, now.Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("expiring connections: %w", err)
	}
	return res.RowsAffected()
}

// SweepStale runs Expire every interval until ctx is done.
func (s *ConnectionStore) SweepStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Expire(ctx, now)
			if err != nil {
				s.db.log.Warn("expire connections", zap.Error(err))
				continue
			}
			if n > 0 {
				s.db.log.Debug("expired connections", zap.Int64("count", n))
			}
		}
	}
}
