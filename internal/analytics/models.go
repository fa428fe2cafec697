package analytics

import "time"

type PlayerGameStats struct {
	PlayerName string  `json:"playerName"`
	GameID     string  `json:"gameId"`
	Clicks     int     `json:"clicks"`
	Rank       int     `json:"rank"`
	CPS        float64 `json:"cps"` // clicks per second
	Badges     []Badge `json:"badges,omitempty"`
}

type PlayerLifetimeStats struct {
	PlayerName  string  `json:"playerName"`
	GamesPlayed int     `json:"gamesPlayed"`
	TotalClicks int     `json:"totalClicks"`
	BestGame    int     `json:"bestGame"`
	WinCount    int     `json:"winCount"`
	WinStreak   int     `json:"winStreak"`
	Badges      []Badge `json:"badges"`
}

type LeaderboardEntry struct {
	PlayerName string `json:"playerName"`
	Value      int    `json:"value"`
	Rank       int    `json:"rank"`
}

type GameRecap struct {
	GameID    string            `json:"gameId"`
	RoomID    string            `json:"roomId"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt"`
	Players   []PlayerGameStats `json:"players"`
}
