package services

import (
	"context"
	"time"

	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

// sessionExpirer is implemented by CheckInService and ConsultationService.
type sessionExpirer interface {
	ExpireIdle(ctx context.Context, now time.Time) int
	ActiveCount() int
}

// SessionSweeper periodically expires idle sessions and publishes active counts.
type SessionSweeper struct {
	log      *logger.Logger
	interval time.Duration
	kinds    map[string]sessionExpirer
}

func NewSessionSweeper(baseLog *logger.Logger, interval time.Duration, checkIns CheckInService, consultations ConsultationService) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultEngineConfig().SweepInterval
	}
	kinds := map[string]sessionExpirer{}
	if checkIns != nil {
		kinds[sessionKindCheckIn] = checkIns
	}
	if consultations != nil {
		kinds[sessionKindConsultation] = consultations
	}
	return &SessionSweeper{
		log:      baseLog.With("component", "SessionSweeper"),
		interval: interval,
		kinds:    kinds,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	s.log.Info("Starting session sweeper", "interval", s.interval.String())
	go s.runLoop(ctx)
}

func (s *SessionSweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now().UTC())
		}
	}
}

// Sweep runs one pass and returns the number of sessions expired per kind.
func (s *SessionSweeper) Sweep(ctx context.Context, now time.Time) map[string]int {
	out := make(map[string]int, len(s.kinds))
	for kind, svc := range s.kinds {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("Session sweep panic", "kind", kind, "panic", r)
				}
			}()
			n := svc.ExpireIdle(ctx, now)
			out[kind] = n
			if n > 0 {
				s.log.Info("Expired idle sessions", "kind", kind, "count", n)
			}
			observability.Current().SetActiveSessions(kind, svc.ActiveCount())
		}()
	}
	return out
}
