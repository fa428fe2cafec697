package rooms

import (
	"errors"
	"math"
	"slices"
	"time"
)

type GameState string

const (
	StateWaiting = GameState("waiting")
	StatePlaying = GameState("playing")
	StateEnded   = GameState("ended")
)

const DefaultDuration = 30 * time.Second

var ErrInvalidTransition = errors.New("invalid game state transition")

type Player struct {
	Name         string    `json:"name"`
	Clicks       int       `json:"clicks"`
	JoinedAt     time.Time `json:"joinedAt"`
	ConnectionID string    `json:"connectionId"`
}

// Score is a player's position in a ranking.
type Score struct {
	Name   string `json:"name"`
	Clicks int    `json:"clicks"`
}

type Room struct {
	ID        string
	Players   []*Player // join order
	State     GameState
	CreatedAt time.Time
	Duration  time.Duration
	StartedAt time.Time // zero until playing
	EndsAt    time.Time // zero until playing, then immutable
	Version   int64
}

func New(id string, duration time.Duration, now time.Time) *Room {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Room{
		ID:        id,
		Players:   []*Player{},
		State:     StateWaiting,
		CreatedAt: now,
		Duration:  duration,
	}
}

func (r *Room) Player(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Join adds a player or rebinds an existing one to connID. Clicks and join order
// of an existing player are kept.
func (r *Room) Join(name, connID string, now time.Time) *Player {
	if p := r.Player(name); p != nil {
		p.ConnectionID = connID
		return p
	}
	p := &Player{Name: name, JoinedAt: now, ConnectionID: connID}
	r.Players = append(r.Players, p)
	return p
}

func (r *Room) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	return names
}

func (r *Room) Start(now time.Time) error {
	if r.State != StateWaiting {
		return ErrInvalidTransition
	}
	r.State = StatePlaying
	r.StartedAt = now
	r.EndsAt = now.Add(r.Duration)
	return nil
}

func (r *Room) End() error {
	if r.State != StatePlaying {
		return ErrInvalidTransition
	}
	r.State = StateEnded
	return nil
}

// Overdue reports whether the room is still playing past its end time.
func (r *Room) Overdue(now time.Time) bool {
	return r.State == StatePlaying && !now.Before(r.EndsAt)
}

// Ranked orders players by clicks descending. Ties keep join order.
func (r *Room) Ranked() []Score {
	scores := make([]Score, 0, len(r.Players))
	for _, p := range r.Players {
		scores = append(scores, Score{Name: p.Name, Clicks: p.Clicks})
	}
	slices.SortStableFunc(scores, func(a, b Score) int {
		return b.Clicks - a.Clicks
	})
	return scores
}

// TimeRemaining is the whole seconds left, rounded up and never negative. A room
// that has not started reports its full duration.
func (r *Room) TimeRemaining(now time.Time) int {
	if r.EndsAt.IsZero() {
		return int(math.Ceil(r.Duration.Seconds()))
	}
	left := r.EndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		c.Players[i] = &cp
	}
	return &c
}
