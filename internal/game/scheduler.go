package game

import (
	"sync"
	"time"
)

// scheduler holds at most one pending end-of-game timer per room.
type scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newScheduler() *scheduler {
	return &scheduler{
		timers: make(map[string]*time.Timer),
	}
}

func (s *scheduler) arm(roomID string, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[roomID]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[roomID] == t {
			delete(s.timers, roomID)
		}
		s.mu.Unlock()
		fire()
	})
	s.timers[roomID] = t
}

func (s *scheduler) cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

func (s *scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.stopped = true
}

func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
