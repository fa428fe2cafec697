package events

import (
	"time"

	"clickrace/internal/rooms"
)

// Event is a game lifecycle notification.
type Event interface{ isEvent() }

type GameStarted struct {
	RoomID    string
	StartedAt time.Time
	EndsAt    time.Time
}

type GameEnded struct {
	RoomID      string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	FinalScores []rooms.Score
}

func (GameStarted) isEvent() {}
func (GameEnded) isEvent()   {}

type Bus struct {
	Games chan Event
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = 64
	}
	return &Bus{
		Games: make(chan Event, size),
	}
}

// Publish never blocks; it reports false when the event was dropped because the
// buffer is full. Publishing on a nil Bus drops silently.
func (b *Bus) Publish(ev Event) bool {
	if b == nil {
		return false
	}
	select {
	case b.Games <- ev:
		return true
	default:
		return false
	}
}
