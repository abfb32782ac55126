package services

import (
	"context"
	"testing"
	"time"

	types "github.com/yungbote/bloomie-backend/internal/domain"
)

func TestSessionSweeperExpiresBothKinds(t *testing.T) {
	env := newTestEnv(t)
	env.seedChild(t, "child-1", 8, "Eczema Risk")
	env.gen.set(consultFake("ok"))
	ctx := context.Background()

	if _, err := env.checkIns.Start(ctx, "child-1", types.CheckInTypeWeekly, ""); err != nil {
		t.Fatalf("Start checkin: %v", err)
	}
	if _, err := env.consults.Start(ctx, "child-1", "hello", ""); err != nil {
		t.Fatalf("Start consultation: %v", err)
	}
	sw := NewSessionSweeper(env.log, time.Minute, env.checkIns, env.consults)

	got := sw.Sweep(ctx, env.clock.Now())
	if got[sessionKindCheckIn] != 0 || got[sessionKindConsultation] != 0 {
		t.Fatalf("fresh sweep: got=%v", got)
	}
	env.clock.Advance(env.cfg.ConsultationTTL + time.Minute)
	got = sw.Sweep(ctx, env.clock.Now())
	if got[sessionKindCheckIn] != 1 || got[sessionKindConsultation] != 1 {
		t.Fatalf("sweep after TTL: got=%v", got)
	}
}

func TestSessionSweeperStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sw := NewSessionSweeper(env.log, 10*time.Millisecond, env.checkIns, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.runLoop(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
