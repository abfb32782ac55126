package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/bloomie-backend/internal/data/repos"
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/slotlock"
)

const sessionKindCheckIn = "checkin"

// CheckInService drives check-in sessions from question selection to a
// persisted LogEntry. At most one active session exists per (child, type).
type CheckInService interface {
	Start(ctx context.Context, childID, checkInType, concern string) (*types.CheckInSession, error)
	Answer(ctx context.Context, sessionID uuid.UUID, index int, value string) (*types.CheckInSession, error)
	DescribeConcern(ctx context.Context, sessionID uuid.UUID, text string) (*types.CheckInSession, error)
	Submit(ctx context.Context, sessionID uuid.UUID) (*types.LogEntry, error)
	Abandon(ctx context.Context, sessionID uuid.UUID) error
	Get(ctx context.Context, sessionID uuid.UUID) (*types.CheckInSession, error)
	// ExpireIdle abandons sessions idle longer than the TTL and returns how many.
	ExpireIdle(ctx context.Context, now time.Time) int
	ActiveCount() int
}

type checkInState struct {
	sess      *types.CheckInSession
	traits    []types.MatchedTrait
	ageMonths int
}

type checkInService struct {
	log       *logger.Logger
	cfg       EngineConfig
	traitSets repos.TraitSetRepo
	entries   repos.LogEntryRepo
	selector  QuestionSelector
	generator RecommendationGenerator
	slots     *sessionSlots
	store     *sessionStore[*checkInState]
	now       func() time.Time
}

func NewCheckInService(
	baseLog *logger.Logger,
	cfg EngineConfig,
	traitSets repos.TraitSetRepo,
	entries repos.LogEntryRepo,
	selector QuestionSelector,
	generator RecommendationGenerator,
	locker slotlock.Locker,
) CheckInService {
	cfg = cfg.withDefaults()
	log := baseLog.With("service", "CheckInService")
	return &checkInService{
		log:       log,
		cfg:       cfg,
		traitSets: traitSets,
		entries:   entries,
		selector:  selector,
		generator: generator,
		slots:     &sessionSlots{log: log, locker: locker, lease: cfg.CheckInTTL + cfg.GenerationTimeout},
		store:     newSessionStore[*checkInState](),
		now:       time.Now,
	}
}

func (s *checkInService) Start(ctx context.Context, childID, checkInType, concern string) (*types.CheckInSession, error) {
	childID = strings.TrimSpace(childID)
	checkInType = strings.TrimSpace(checkInType)
	if childID == "" {
		return nil, validationf("missing child_id")
	}
	if !types.ValidCheckInType(checkInType) {
		return nil, validationf("unknown check-in type %q", checkInType)
	}
	dbc := dbctx.Context{Ctx: ctx}
	ts, err := s.traitSets.GetByChildID(dbc, childID)
	if err != nil {
		return nil, fmt.Errorf("load trait set: %w", err)
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: no trait set for child", ErrNotFound)
	}
	recent, err := s.entries.ListRecent(dbc, childID, s.cfg.RecentEntryWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent entries: %w", err)
	}

	now := s.now().UTC()
	id := uuid.New()
	key := slotlock.CheckInKey(childID, checkInType)
	if err := s.slots.claim(ctx, key, id.String(), func(holder string) bool {
		return s.reclaimStale(ctx, holder, now)
	}); err != nil {
		return nil, err
	}

	sess := &types.CheckInSession{
		ID:             id,
		ChildID:        childID,
		Type:           checkInType,
		Status:         types.SessionStatusActive,
		Questions:      s.selector.Select(checkInType, ts.TraitNames(), recent),
		Answers:        map[int]string{},
		Concern:        strings.TrimSpace(concern),
		Traits:         ts.TraitNames(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.store.put(id, &checkInState{
		sess:      sess,
		traits:    append([]types.MatchedTrait(nil), ts.Traits...),
		ageMonths: ts.AgeMonths(now),
	})
	observability.Current().ObserveSessionTransition(sessionKindCheckIn, types.SessionStatusActive)
	s.log.Info("check-in started", "session_id", id, "child_id", childID, "type", checkInType, "questions", len(sess.Questions))
	return sess.Clone(), nil
}

// reclaimStale ends the holder of a slot when it is a local session that has
// already ended or idled past its TTL.
func (s *checkInService) reclaimStale(ctx context.Context, holder string, now time.Time) bool {
	id, err := uuid.Parse(holder)
	if err != nil {
		return false
	}
	e, ok := s.store.get(id)
	if !ok || !e.mu.TryLock() {
		return false
	}
	defer e.mu.Unlock()
	if e.ended() {
		s.slots.release(ctx, slotlock.CheckInKey(e.sess.sess.ChildID, e.sess.sess.Type), holder)
		return true
	}
	if !s.idle(e.sess.sess, now) {
		return false
	}
	s.endLocked(ctx, e, types.SessionStatusAbandoned, now)
	return true
}

func (s *checkInService) idle(sess *types.CheckInSession, now time.Time) bool {
	return now.Sub(sess.LastActivityAt) > s.cfg.CheckInTTL
}

// endLocked moves a session to a terminal status and frees its slot. e.mu must be held.
func (s *checkInService) endLocked(ctx context.Context, e *sessionEntry[*checkInState], status string, now time.Time) {
	sess := e.sess.sess
	sess.Status = status
	sess.LastActivityAt = now
	e.endedAt = now
	s.slots.release(ctx, slotlock.CheckInKey(sess.ChildID, sess.Type), sess.ID.String())
	observability.Current().ObserveSessionTransition(sessionKindCheckIn, status)
}

// lockActive returns the locked entry for an active session with its slot
// lease renewed. The caller must unlock it.
func (s *checkInService) lockActive(ctx context.Context, sessionID uuid.UUID) (*sessionEntry[*checkInState], error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: check-in session", ErrNotFound)
	}
	e.mu.Lock()
	if e.ended() {
		e.mu.Unlock()
		return nil, ErrSessionExpired
	}
	now := s.now().UTC()
	if s.idle(e.sess.sess, now) {
		s.endLocked(ctx, e, types.SessionStatusAbandoned, now)
		e.mu.Unlock()
		s.log.Info("check-in expired on access", "session_id", sessionID)
		return nil, ErrSessionExpired
	}
	// The lease has to outlive whatever the caller does next, generation included.
	s.slots.refresh(ctx, slotlock.CheckInKey(e.sess.sess.ChildID, e.sess.sess.Type), sessionID.String())
	return e, nil
}

func (s *checkInService) touch(ctx context.Context, sess *types.CheckInSession) {
	sess.LastActivityAt = s.now().UTC()
	s.slots.refresh(ctx, slotlock.CheckInKey(sess.ChildID, sess.Type), sess.ID.String())
}

func (s *checkInService) Answer(ctx context.Context, sessionID uuid.UUID, index int, value string) (*types.CheckInSession, error) {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	sess := e.sess.sess
	if index < 0 || index >= len(sess.Questions) {
		return nil, validationf("question index %d out of range [0,%d)", index, len(sess.Questions))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, validationf("empty answer")
	}
	sess.Answers[index] = value
	s.touch(ctx, sess)
	return sess.Clone(), nil
}

func (s *checkInService) DescribeConcern(ctx context.Context, sessionID uuid.UUID, text string) (*types.CheckInSession, error) {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationf("empty concern")
	}
	sess := e.sess.sess
	sess.Concern = text
	s.touch(ctx, sess)
	return sess.Clone(), nil
}

func (s *checkInService) Submit(ctx context.Context, sessionID uuid.UUID) (*types.LogEntry, error) {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	sess := e.sess.sess
	if missing := sess.Unanswered(); len(missing) > 0 {
		return nil, validationf("unanswered questions %v", missing)
	}
	if sess.Type == types.CheckInTypeEmergency && sess.Concern == "" {
		return nil, validationf("emergency check-in needs a concern")
	}

	ctx, span := observability.StartSpan(ctx, "checkin.submit",
		attribute.String("checkin.type", sess.Type),
		attribute.Int("checkin.questions", len(sess.Questions)),
	)
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	recent, err := s.entries.ListRecent(dbc, sess.ChildID, s.cfg.RecentEntryWindow)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load recent entries: %w", err)
	}
	answers := answerRecords(sess)
	out, err := s.generator.Generate(ctx, RecommendationInput{
		EntryType: sess.Type,
		AgeMonths: e.sess.ageMonths,
		Traits:    e.sess.traits,
		Answers:   answers,
		Concern:   sess.Concern,
		Recent:    recent,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		s.log.Warn("check-in submit failed", "session_id", sess.ID, "error", err)
		return nil, err
	}

	entry, err := s.entries.Append(dbc, &types.LogEntry{
		ChildID:         sess.ChildID,
		SessionID:       sess.ID,
		EntryType:       sess.Type,
		Summary:         out.Summary,
		Recommendations: out.Recommendations,
		RawAnswers:      answers,
		Concern:         sess.Concern,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.log.Error("check-in append failed", "session_id", sess.ID, "error", err)
		return nil, fmt.Errorf("append log entry: %w", err)
	}
	observability.Current().IncAppend(types.StreamEntries, entry.EntryType)
	s.endLocked(ctx, e, types.SessionStatusSubmitted, s.now().UTC())
	s.log.Info("check-in submitted", "session_id", sess.ID, "child_id", sess.ChildID, "entry_id", entry.ID, "recommendations", len(entry.Recommendations))
	return entry, nil
}

func answerRecords(sess *types.CheckInSession) []types.AnswerRecord {
	out := make([]types.AnswerRecord, 0, len(sess.Questions))
	for _, q := range sess.Questions {
		out = append(out, types.AnswerRecord{
			Index:     q.Index,
			TraitName: q.TraitName,
			Question:  q.Text,
			Answer:    sess.Answers[q.Index],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *checkInService) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	s.endLocked(ctx, e, types.SessionStatusAbandoned, s.now().UTC())
	s.log.Info("check-in abandoned", "session_id", sessionID)
	return nil
}

func (s *checkInService) Get(ctx context.Context, sessionID uuid.UUID) (*types.CheckInSession, error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: check-in session", ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ended() {
		now := s.now().UTC()
		if s.idle(e.sess.sess, now) {
			s.endLocked(ctx, e, types.SessionStatusAbandoned, now)
		}
	}
	return e.sess.sess.Clone(), nil
}

func (s *checkInService) ExpireIdle(ctx context.Context, now time.Time) int {
	return s.store.sweep(now, s.cfg.CheckInTTL, func(id uuid.UUID, e *sessionEntry[*checkInState]) bool {
		if !s.idle(e.sess.sess, now) {
			return false
		}
		s.endLocked(ctx, e, types.SessionStatusAbandoned, now)
		s.log.Info("check-in expired", "session_id", id)
		return true
	})
}

func (s *checkInService) ActiveCount() int {
	return s.store.countActive()
}
