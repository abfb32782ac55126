package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/bloomie-backend/internal/data/repos"
	"github.com/yungbote/bloomie-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/slotlock"
)

// fakeGenerative answers every prompt through fn and records what it was asked.
type fakeGenerative struct {
	mu      sync.Mutex
	fn      func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error)
	prompts []StructuredPrompt
}

func (f *fakeGenerative) Generate(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return StructuredResponse{}, generationf("no fake response")
	}
	return fn(ctx, p)
}

func (f *fakeGenerative) set(fn func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *fakeGenerative) calls(task string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if p.Task == task {
			n++
		}
	}
	return n
}

func (f *fakeGenerative) last(task string) (StructuredPrompt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.prompts) - 1; i >= 0; i-- {
		if f.prompts[i].Task == task {
			return f.prompts[i], true
		}
	}
	return StructuredPrompt{}, false
}

// recommendationsFor builds a valid child_log_entry object recommending each trait.
func recommendationsFor(summary string, traits ...string) StructuredResponse {
	recs := make([]any, 0, len(traits))
	for _, t := range traits {
		recs = append(recs, map[string]any{
			"trait_name": t,
			"goal":       "Support " + t,
			"activity":   "Daily activity for " + t,
			"tldr":       "Keep going with " + t,
			"frequency":  "daily",
			"duration":   "10 minutes",
		})
	}
	return StructuredResponse{JSON: map[string]any{"summary": summary, "recommendations": recs}}
}

// echoEligible recommends every eligible trait named in the prompt.
func echoEligible(kb *knowledge.Base) func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
	return func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		var names []string
		for _, t := range kb.Traits {
			if strings.Contains(p.User, "\n- "+t.TraitName+" (") {
				names = append(names, t.TraitName)
			}
		}
		return recommendationsFor("A good week.", names...), nil
	}
}

func ctxDB() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	log       *logger.Logger
	kb        *knowledge.Base
	cfg       EngineConfig
	gen       *fakeGenerative
	clock     *testClock
	traitSets repos.TraitSetRepo
	entries   repos.LogEntryRepo
	medical   repos.MedicalLogRepo
	cache     repos.MilestoneCacheRepo
	locker    slotlock.Locker
	checkIns  *checkInService
	consults  *consultationService
	profiles  *profileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	db := testutil.DB(t)
	log := testutil.Logger(t)
	env := &testEnv{
		log:       log,
		kb:        kb,
		cfg:       DefaultEngineConfig(),
		gen:       &fakeGenerative{},
		clock:     &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		traitSets: repos.NewTraitSetRepo(db, log),
		entries:   repos.NewLogEntryRepo(db, log),
		medical:   repos.NewMedicalLogRepo(db, log),
		cache:     repos.NewMilestoneCacheRepo(db, log),
		locker:    slotlock.NewMemory(),
	}
	detector, err := NewTopicDetector(kb)
	if err != nil {
		t.Fatalf("NewTopicDetector: %v", err)
	}
	matcher, err := NewTraitMatcher(kb)
	if err != nil {
		t.Fatalf("NewTraitMatcher: %v", err)
	}
	env.checkIns = NewCheckInService(log, env.cfg, env.traitSets, env.entries,
		NewQuestionSelector(kb, env.cfg.MaxCheckInQuestions),
		NewRecommendationGenerator(log, env.gen, kb, nil),
		env.locker,
	).(*checkInService)
	env.checkIns.now = env.clock.Now
	env.consults = NewConsultationService(log, env.cfg, env.traitSets, env.medical, env.gen, detector,
		NewMedicalLogGenerator(log, env.gen), env.locker,
	).(*consultationService)
	env.consults.now = env.clock.Now
	env.profiles = NewProfileService(log, kb, matcher, env.traitSets, env.entries, env.medical, env.checkIns).(*profileService)
	env.profiles.now = env.clock.Now
	return env
}

func (e *testEnv) trait(t *testing.T, name string) types.MatchedTrait {
	t.Helper()
	ref, ok := e.kb.Trait(name)
	if !ok {
		t.Fatalf("unknown trait %q", name)
	}
	return types.MatchedTrait{TraitName: ref.TraitName, GeneID: ref.GeneID, Category: ref.Category}
}

// seedChild stores a trait set for childID with the named traits.
func (e *testEnv) seedChild(t *testing.T, childID string, ageMonths int, names ...string) {
	t.Helper()
	traits := make([]types.MatchedTrait, 0, len(names))
	for _, n := range names {
		traits = append(traits, e.trait(t, n))
	}
	birth := e.clock.Now().AddDate(0, -ageMonths, 0)
	if err := e.traitSets.Upsert(ctxDB(), &types.ChildTraitSet{
		ChildID:     childID,
		Traits:      traits,
		BirthDate:   &birth,
		MarkerCount: len(traits),
		MatchedAt:   e.clock.Now(),
	}); err != nil {
		t.Fatalf("seed trait set: %v", err)
	}
}

// blockUntilCanceled parks every generation until its context ends. Each
// generation announces its task on started first.
func blockUntilCanceled(started chan<- string) func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
	return func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		started <- p.Task
		<-ctx.Done()
		return StructuredResponse{}, ctx.Err()
	}
}

// cancelDuring runs op and cancels its context once a generation has started.
func cancelDuring(t *testing.T, started <-chan string, op func(ctx context.Context) error) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- op(ctx) }()
	select {
	case <-started:
	case err := <-done:
		t.Fatalf("operation returned before generating: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("generation never started")
	}
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("operation ignored cancellation")
	}
	return nil
}

// refreshCountingLocker counts lease refreshes per slot key.
type refreshCountingLocker struct {
	slotlock.Locker
	mu        sync.Mutex
	refreshes map[string]int
}

func newRefreshCountingLocker(inner slotlock.Locker) *refreshCountingLocker {
	return &refreshCountingLocker{Locker: inner, refreshes: map[string]int{}}
}

func (l *refreshCountingLocker) Refresh(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	l.refreshes[key]++
	l.mu.Unlock()
	return l.Locker.Refresh(ctx, key, owner, ttl)
}

func (l *refreshCountingLocker) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refreshes[key]
}
