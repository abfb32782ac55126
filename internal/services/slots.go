package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/slotlock"
)

// sessionSlots enforces one active session per slot key.
type sessionSlots struct {
	log    *logger.Logger
	locker slotlock.Locker
	lease  time.Duration
}

// claim acquires key for owner. When another owner holds it, reclaim is asked
// to end that holder if it is a stale local session; on success the acquire is
// retried once.
func (s *sessionSlots) claim(ctx context.Context, key, owner string, reclaim func(holder string) bool) error {
	ok, err := s.locker.Acquire(ctx, key, owner, s.lease)
	if err != nil {
		return fmt.Errorf("acquire session slot: %w", err)
	}
	if ok {
		return nil
	}
	holder, held, err := s.locker.Holder(ctx, key)
	if err != nil {
		return fmt.Errorf("read session slot: %w", err)
	}
	if held && reclaim != nil && reclaim(holder) {
		ok, err = s.locker.Acquire(ctx, key, owner, s.lease)
		if err != nil {
			return fmt.Errorf("acquire session slot: %w", err)
		}
		if ok {
			return nil
		}
	} else if !held {
		// Lease lapsed between Acquire and Holder.
		ok, err = s.locker.Acquire(ctx, key, owner, s.lease)
		if err == nil && ok {
			return nil
		}
	}
	return ErrSessionConflict
}

func (s *sessionSlots) refresh(ctx context.Context, key, owner string) {
	ok, err := s.locker.Refresh(ctx, key, owner, s.lease)
	if err != nil {
		s.log.Warn("session slot refresh failed", "key", key, "error", err)
		return
	}
	if !ok {
		s.log.Warn("session slot lost", "key", key)
	}
}

// release never fails the caller; an unreleased lease lapses on its own.
func (s *sessionSlots) release(ctx context.Context, key, owner string) {
	if err := s.locker.Release(context.WithoutCancel(ctx), key, owner); err != nil {
		s.log.Warn("session slot release failed", "key", key, "error", err)
	}
}
