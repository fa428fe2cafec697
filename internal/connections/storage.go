package connections

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("connection not found")

// DefaultTTL is how long an idle connection record is kept.
const DefaultTTL = 24 * time.Hour

type Connection struct {
	ID          string
	PlayerName  string
	RoomID      string
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Directory maps connection ids to the player and room they are bound to.
type Directory interface {
	Get(ctx context.Context, id string) (*Connection, error)
	Put(ctx context.Context, c *Connection) error
	Delete(ctx context.Context, id string) error
	ListByRoom(ctx context.Context, roomID string) ([]string, error)
}

type Store struct {
	mu    sync.Mutex
	conns map[string]*Connection
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		conns: make(map[string]*Connection),
		ttl:   ttl,
	}
}

func (s *Store) Get(_ context.Context, id string) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) Put(_ context.Context, c *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conns[c.ID] = &cp
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
	return nil
}

func (s *Store) ListByRoom(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.conns {
		if c.RoomID == roomID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Expire drops records idle longer than the TTL and returns how many went.
func (s *Store) Expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.conns {
		if now.Sub(c.LastSeen) > s.ttl {
			delete(s.conns, id)
			n++
		}
	}
	return n
}

// SweepStale runs Expire every interval until ctx is done.
func (s *Store) SweepStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Expire(now)
		}
	}
}
