package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionEntry guards one session. mu is held for the whole of an operation,
// including any generative call it makes.
type sessionEntry[T any] struct {
	mu      sync.Mutex
	sess    T
	endedAt time.Time
}

func (e *sessionEntry[T]) ended() bool { return !e.endedAt.IsZero() }

// sessionStore keeps sessions in process memory. Ended sessions stay as
// tombstones so late calls see ErrSessionExpired rather than ErrNotFound.
type sessionStore[T any] struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*sessionEntry[T]
}

func newSessionStore[T any]() *sessionStore[T] {
	return &sessionStore[T]{entries: map[uuid.UUID]*sessionEntry[T]{}}
}

func (s *sessionStore[T]) put(id uuid.UUID, sess T) *sessionEntry[T] {
	e := &sessionEntry[T]{sess: sess}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return e
}

func (s *sessionStore[T]) get(id uuid.UUID) (*sessionEntry[T], bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	return e, ok
}

func (s *sessionStore[T]) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (s *sessionStore[T]) snapshot() map[uuid.UUID]*sessionEntry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*sessionEntry[T], len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

// countActive is approximate: entries locked by an in-flight call are counted as active.
func (s *sessionStore[T]) countActive() int {
	n := 0
	for _, e := range s.snapshot() {
		if !e.mu.TryLock() {
			n++
			continue
		}
		if !e.ended() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// sweep visits every idle entry it can lock without waiting. expire is called
// for live sessions; tombstones older than keep are dropped.
func (s *sessionStore[T]) sweep(now time.Time, keep time.Duration, expire func(id uuid.UUID, e *sessionEntry[T]) bool) int {
	expired := 0
	for id, e := range s.snapshot() {
		if !e.mu.TryLock() {
			continue
		}
		if e.ended() {
			if now.Sub(e.endedAt) > keep {
				s.remove(id)
			}
		} else if expire(id, e) {
			expired++
		}
		e.mu.Unlock()
	}
	return expired
}
