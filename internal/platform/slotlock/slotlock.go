package slotlock

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Locker grants exclusive, expiring ownership of a string key.
// Acquire is an atomic compare-and-set: of N racing callers exactly one wins.
type Locker interface {
	// Acquire claims key for owner. It returns false when a different owner holds it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Refresh extends the lease if owner still holds key.
	Refresh(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release frees key if owner holds it. Releasing a key held by someone else is a no-op.
	Release(ctx context.Context, key, owner string) error
	// Holder reports the current owner of key.
	Holder(ctx context.Context, key string) (string, bool, error)
}

func CheckInKey(childID, checkInType string) string {
	return "checkin:" + strings.TrimSpace(childID) + ":" + strings.TrimSpace(checkInType)
}

func ConsultationKey(childID string) string {
	return "consultation:" + strings.TrimSpace(childID)
}

type lease struct {
	owner     string
	expiresAt time.Time
}

type memoryLocker struct {
	mu    sync.Mutex
	slots map[string]lease
	now   func() time.Time
}

// NewMemory returns a process-local Locker.
func NewMemory() Locker {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memoryLocker {
	return &memoryLocker{slots: map[string]lease{}, now: now}
}

func (m *memoryLocker) live(key string) (lease, bool) {
	l, ok := m.slots[key]
	if !ok {
		return lease{}, false
	}
	if !l.expiresAt.IsZero() && !m.now().Before(l.expiresAt) {
		delete(m.slots, key)
		return lease{}, false
	}
	return l, true
}

func (m *memoryLocker) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *memoryLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.live(key); ok && l.owner != owner {
		return false, nil
	}
	m.slots[key] = lease{owner: owner, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *memoryLocker) Refresh(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.live(key)
	if !ok || l.owner != owner {
		return false, nil
	}
	m.slots[key] = lease{owner: owner, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *memoryLocker) Release(ctx context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.slots[key]; ok && l.owner == owner {
		delete(m.slots, key)
	}
	return nil
}

func (m *memoryLocker) Holder(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.live(key)
	return l.owner, ok, nil
}
