package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"clickrace/internal/events"
)

// History records finished games.
type History struct {
	db  *DB
	log *zap.Logger
}

func NewHistory(d *DB, log *zap.Logger) *History {
	return &History{db: d, log: log}
}

// RecordGame stores a finished game and its final ranking in one transaction.
// Players tied on clicks share a rank.
func (h *History) RecordGame(ctx context.Context, ev events.GameEnded) (string, error) {
	id := uuid.NewString()

	names := make([]string, len(ev.FinalScores))
	clicks := make([]int64, len(ev.FinalScores))
	ranks := make([]int64, len(ev.FinalScores))
	for i, s := range ev.FinalScores {
		names[i] = s.Name
		clicks[i] = int64(s.Clicks)
		ranks[i] = int64(i + 1)
		if i > 0 && s.Clicks == ev.FinalScores[i-1].Clicks {
			ranks[i] = ranks[i-1]
		}
	}

	tx, err := h.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning game record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (id, room_id, started_at, ended_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ev.RoomID, ev.StartedAt, ev.EndedAt, ev.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("creating game: %w", err)
	}

	if len(names) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, player_name, final_clicks, rank)
			SELECT $1, p.name, p.clicks, p.rank
			FROM unnest($2::text[], $3::int[], $4::int[]) AS p(name, clicks, rank)
		`, id, pq.Array(names), pq.Array(clicks), pq.Array(ranks))
		if err != nil {
			return "", fmt.Errorf("adding game players: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing game record: %w", err)
	}
	return id, nil
}

// Run records every finished game published on the bus until ctx is done.
func (h *History) Run(ctx context.Context, bus *events.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.Games:
			switch ev := ev.(type) {
			case events.GameStarted:
				h.log.Debug("game started", zap.String("room", ev.RoomID))
			case events.GameEnded:
				id, err := h.RecordGame(context.WithoutCancel(ctx), ev)
				if err != nil {
					h.log.Error("record game", zap.String("room", ev.RoomID), zap.Error(err))
					continue
				}
				h.log.Info("game recorded", zap.String("room", ev.RoomID), zap.String("game", id))
			}
		}
	}
}
