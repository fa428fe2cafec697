package rooms

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrConflict = errors.New("room was modified concurrently")
)

// Store keeps one Room per identifier. Replace only succeeds when the room's
// Version matches the stored one, and bumps it.
type Store interface {
	Get(ctx context.Context, id string) (*Room, error)
	Create(ctx context.Context, room *Room) (*Room, error)
	Replace(ctx context.Context, room *Room) error
	Overdue(ctx context.Context, now time.Time) ([]string, error)
}

// MemoryStore is the in-process Store. Rooms are copied on the way in and out so
// callers never share state.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Create stores room unless one with the same ID exists, and returns whichever
// room ends up stored.
func (s *MemoryStore) Create(_ context.Context, room *Room) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[room.ID]; ok {
		return existing.Clone(), nil
	}
	stored := room.Clone()
	stored.Version = 1
	s.rooms[room.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rooms[room.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != room.Version {
		return ErrConflict
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemoryStore) Overdue(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.Overdue(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
