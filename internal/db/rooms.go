package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clickrace/internal/rooms"
)

// RoomStore keeps rooms in the rooms table. Players are stored as a JSONB array
// in join order.
type RoomStore struct {
	db *DB
}

func NewRoomStore(d *DB) *RoomStore {
	return &RoomStore{db: d}
}

func (s *RoomStore) Get(ctx context.Context, id string) (*rooms.Room, error) {
	var (
		r         rooms.Room
		state     string
		duration  int64
		startedAt sql.NullTime
		endsAt    sql.NullTime
		players   []byte
	)
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, game_state, created_at, duration_ms, started_at, ends_at, players, version
		FROM rooms WHERE id = $1
	`, id).Scan(&r.ID, &state, &r.CreatedAt, &duration, &startedAt, &endsAt, &players, &r.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rooms.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}

	r.State = rooms.GameState(state)
	r.Duration = time.Duration(duration) * time.Millisecond
	r.StartedAt = startedAt.Time
	r.EndsAt = endsAt.Time
	if err := json.Unmarshal(players, &r.Players); err != nil {
		return nil, fmt.Errorf("decoding players of room %s: %w", id, err)
	}
	return &r, nil
}

// Create inserts the room unless one with the same id exists, then returns
// whatever is stored.
func (s *RoomStore) Create(ctx context.Context, room *rooms.Room) (*rooms.Room, error) {
	players, err := encodePlayers(room.Players)
	if err != nil {
		return nil, err
	}
	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO rooms (id, game_state, created_at, duration_ms, started_at, ends_at, players, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (id) DO NOTHING
	`, room.ID, string(room.State), room.CreatedAt, room.Duration.Milliseconds(),
		nullTime(room.StartedAt), nullTime(room.EndsAt), players)
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	return s.Get(ctx, room.ID)
}

// Replace writes the room only if its version still matches, and bumps it.
func (s *RoomStore) Replace(ctx context.Context, room *rooms.Room) error {
	players, err := encodePlayers(room.Players)
	if err != nil {
		return err
	}
	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE rooms
		SET game_state = $2, started_at = $3, ends_at = $4, players = $5, version = version + 1
		WHERE id = $1 AND version = $6
	`, room.ID, string(room.State), nullTime(room.StartedAt), nullTime(room.EndsAt), players, room.Version)
	if err != nil {
		return fmt.Errorf("replacing room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replacing room: %w", err)
	}
	if n == 0 {
		return rooms.ErrConflict
	}
	room.Version++
	return nil
}

func (s *RoomStore) Overdue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id FROM rooms
		WHERE game_state = $1 AND ends_at <= $2
		ORDER BY ends_at
	`, string(rooms.StatePlaying), now)
	if err != nil {
		return nil, fmt.Errorf("listing overdue rooms: %w", err)
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

func encodePlayers(players []*rooms.Player) ([]byte, error) {
	if players == nil {
		players = []*rooms.Player{}
	}
	b, err := json.Marshal(players)
	if err != nil {
		return nil, fmt.Errorf("encoding players: %w", err)
	}
	return b, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
