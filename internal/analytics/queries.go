package analytics

import (
	"context"
	"errors"
	"fmt"

	"clickrace/internal/db"
)

var (
	ErrUnknownCategory = errors.New("unknown leaderboard category")
	ErrNoGames         = errors.New("player has no recorded games")
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

func (q *Queries) GetPlayerLifetimeStats(ctx context.Context, playerName string) (*PlayerLifetimeStats, error) {
	stats := &PlayerLifetimeStats{
		PlayerName: playerName,
	}

	err := q.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) as games_played,
			COALESCE(SUM(final_clicks), 0) as total_clicks,
			COALESCE(MAX(final_clicks), 0) as best_game,
			COUNT(*) FILTER (WHERE rank = 1) as win_count
		FROM game_players
		WHERE player_name = $1
	`, playerName).Scan(&stats.GamesPlayed, &stats.TotalClicks, &stats.BestGame, &stats.WinCount)
	if err != nil {
		return nil, fmt.Errorf("getting lifetime stats: %w", err)
	}
	if stats.GamesPlayed == 0 {
		return nil, ErrNoGames
	}

	// Most recent consecutive wins
	rows, err := q.DB.Query(ctx, `
		SELECT gp.rank
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE gp.player_name = $1
		ORDER BY g.ended_at DESC
	`, playerName)
	if err != nil {
		return nil, fmt.Errorf("getting win streak: %w", err)
	}
	defer rows.Close()

	streak := 0
	for rows.Next() {
		var rank int
		if err := rows.Scan(&rank); err != nil {
			return nil, err
		}
		if rank != 1 {
			break
		}
		streak++
	}
	stats.WinStreak = streak

	stats.Badges = EvaluateLifetimeBadges(*stats)

	return stats, nil
}

// GetLeaderboard ranks players across all recorded games.
func (q *Queries) GetLeaderboard(ctx context.Context, category string, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case "clicks":
		query = `
			SELECT player_name, COALESCE(SUM(final_clicks), 0) as value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	case "best":
		query = `
			SELECT player_name, COALESCE(MAX(final_clicks), 0) as value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	case "wins":
		query = `
			SELECT player_name, COUNT(*) FILTER (WHERE rank = 1) as value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	rows, err := q.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRoomGames returns recaps of the most recent games played in a room.
func (q *Queries) GetRoomGames(ctx context.Context, roomID string, limit int) ([]GameRecap, error) {
	rows, err := q.DB.Query(ctx, `
		SELECT id, room_id, started_at, ended_at
		FROM games
		WHERE room_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting room games: %w", err)
	}

	recaps := []GameRecap{}
	for rows.Next() {
		var g GameRecap
		if err := rows.Scan(&g.GameID, &g.RoomID, &g.StartedAt, &g.EndedAt); err != nil {
			rows.Close()
			return nil, err
		}
		recaps = append(recaps, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recaps {
		players, err := q.gamePlayers(ctx, &recaps[i])
		if err != nil {
			return nil, err
		}
		recaps[i].Players = players
	}
	return recaps, nil
}

func (q *Queries) gamePlayers(ctx context.Context, g *GameRecap) ([]PlayerGameStats, error) {
	rows, err := q.DB.Query(ctx, `
		SELECT player_name, final_clicks, rank
		FROM game_players
		WHERE game_id = $1
		ORDER BY rank, player_name
	`, g.GameID)
	if err != nil {
		return nil, fmt.Errorf("getting game players: %w", err)
	}
	defer rows.Close()

	secs := g.EndedAt.Sub(g.StartedAt).Seconds()
	var players []PlayerGameStats
	for rows.Next() {
		s := PlayerGameStats{GameID: g.GameID}
		if err := rows.Scan(&s.PlayerName, &s.Clicks, &s.Rank); err != nil {
			return nil, err
		}
		if secs > 0 {
			s.CPS = float64(s.Clicks) / secs
		}
		s.Badges = EvaluateGameBadges(s)
		players = append(players, s)
	}
	return players, rows.Err()
}
