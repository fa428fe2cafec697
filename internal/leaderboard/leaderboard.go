// Package leaderboard is the ranked per-room projection of player clicks used for
// top-N queries. It trails the Room record and is never consulted for game state.
package leaderboard

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// DefaultLimit is the number of entries a leaderboard query returns.
const DefaultLimit = 10

type Entry struct {
	Name   string `json:"name"`
	Clicks int    `json:"clicks"`
}

type Index interface {
	Upsert(ctx context.Context, roomID, player string, clicks int) error
	Top(ctx context.Context, roomID string, n int) ([]Entry, error)
}

// MemoryIndex orders by clicks descending, then player name.
type MemoryIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		rooms: make(map[string]map[string]int),
	}
}

// Upsert records clicks for player. A stored count is never lowered, so an
// upsert that arrives late cannot undo a newer one.
func (m *MemoryIndex) Upsert(_ context.Context, roomID, player string, clicks int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scores, ok := m.rooms[roomID]
	if !ok {
		scores = make(map[string]int)
		m.rooms[roomID] = scores
	}
	if cur, ok := scores[player]; !ok || clicks > cur {
		scores[player] = clicks
	}
	return nil
}

func (m *MemoryIndex) Top(_ context.Context, roomID string, n int) ([]Entry, error) {
	m.mu.RLock()
	entries := make([]Entry, 0, len(m.rooms[roomID]))
	for name, clicks := range m.rooms[roomID] {
		entries = append(entries, Entry{Name: name, Clicks: clicks})
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Clicks, a.Clicks); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
