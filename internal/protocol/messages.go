package protocol

import (
	"clickrace/internal/leaderboard"
	"clickrace/internal/rooms"
)

// Server -> client message types.
const (
	TypeJoined          = "joined"
	TypePlayerJoined    = "playerJoined"
	TypeClickRegistered = "clickRegistered"
	TypeScoreUpdate     = "scoreUpdate"
	TypeGameEnded       = "gameEnded"
	TypeLeaderboard     = "leaderboard"
	TypeRoomState       = "roomState"
	TypePong            = "pong"
	TypeError           = "error"
)

type Joined struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"roomId"`
	PlayerName string          `json:"playerName"`
	Players    []string        `json:"players"`
	GameState  rooms.GameState `json:"gameState"`
}

type PlayerJoined struct {
	Type       string          `json:"type"`
	PlayerName string          `json:"playerName"`
	Players    []string        `json:"players"`
	GameState  rooms.GameState `json:"gameState"`
}

type ClickRegistered struct {
	Type   string `json:"type"`
	Clicks int    `json:"clicks"`
}

type ScoreUpdate struct {
	Type          string        `json:"type"`
	Scores        []rooms.Score `json:"scores"`
	TimeRemaining int           `json:"timeRemaining"`
}

type GameEnded struct {
	Type        string        `json:"type"`
	FinalScores []rooms.Score `json:"finalScores"`
	Winner      *rooms.Score  `json:"winner"`
}

type Leaderboard struct {
	Type        string              `json:"type"`
	RoomID      string              `json:"roomId"`
	Leaderboard []leaderboard.Entry `json:"leaderboard"`
}

type RoomState struct {
	Type          string          `json:"type"`
	RoomID        string          `json:"roomId"`
	GameState     rooms.GameState `json:"gameState"`
	Players       []string        `json:"players"`
	Scores        []rooms.Score   `json:"scores"`
	TimeRemaining int             `json:"timeRemaining"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}
