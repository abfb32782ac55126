package services

import (
	"context"
	"fmt"
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

const sessionKindConsultation = "consultation"

type ConsultationReply struct {
	Session *types.ConversationSession `json:"session"`
	Reply   types.Turn                 `json:"reply"`
}

// ConsultationOutcome is the result of completing a consultation. Log is nil
// when nothing medical came up.
type ConsultationOutcome struct {
	Log             *types.MedicalVisitLog `json:"medical_log"`
	NoMedicalTopics bool                   `json:"no_medical_topics"`
}

// ConsultationService runs bounded multi-turn consultations. Transcripts live
// only in memory and are erased when the session ends.
type ConsultationService interface {
	Start(ctx context.Context, childID, text, imageURL string) (*ConsultationReply, error)
	Send(ctx context.Context, sessionID uuid.UUID, text, imageURL string) (*ConsultationReply, error)
	Complete(ctx context.Context, sessionID uuid.UUID) (*ConsultationOutcome, error)
	Abandon(ctx context.Context, sessionID uuid.UUID) error
	Get(ctx context.Context, sessionID uuid.UUID) (*types.ConversationSession, error)
	ExpireIdle(ctx context.Context, now time.Time) int
	ActiveCount() int
}

type consultationState struct {
	sess   *types.ConversationSession
	traits []types.MatchedTrait
}

type consultationService struct {
	log       *logger.Logger
	cfg       EngineConfig
	traitSets repos.TraitSetRepo
	medical   repos.MedicalLogRepo
	gen       GenerativeCapability
	detector  TopicDetector
	logs      MedicalLogGenerator
	slots     *sessionSlots
	store     *sessionStore[*consultationState]
	now       func() time.Time
}

func NewConsultationService(
	baseLog *logger.Logger,
	cfg EngineConfig,
	traitSets repos.TraitSetRepo,
	medical repos.MedicalLogRepo,
	gen GenerativeCapability,
	detector TopicDetector,
	logs MedicalLogGenerator,
	locker slotlock.Locker,
) ConsultationService {
	cfg = cfg.withDefaults()
	log := baseLog.With("service", "ConsultationService")
	return &consultationService{
		log:       log,
		cfg:       cfg,
		traitSets: traitSets,
		medical:   medical,
		gen:       gen,
		detector:  detector,
		logs:      logs,
		slots:     &sessionSlots{log: log, locker: locker, lease: cfg.ConsultationTTL + cfg.GenerationTimeout},
		store:     newSessionStore[*consultationState](),
		now:       time.Now,
	}
}

func newTurn(speaker, text, imageURL string, at time.Time) (types.Turn, error) {
	text = strings.TrimSpace(text)
	imageURL = strings.TrimSpace(imageURL)
	if text == "" && imageURL == "" {
		return types.Turn{}, validationf("empty message")
	}
	return types.Turn{Speaker: speaker, Text: text, ImageURL: imageURL, At: at}, nil
}

func (s *consultationService) Start(ctx context.Context, childID, text, imageURL string) (*ConsultationReply, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, validationf("missing child_id")
	}
	now := s.now().UTC()
	opening, err := newTurn(types.SpeakerParent, text, imageURL, now)
	if err != nil {
		return nil, err
	}
	ts, err := s.traitSets.GetByChildID(dbctx.Context{Ctx: ctx}, childID)
	if err != nil {
		return nil, fmt.Errorf("load trait set: %w", err)
	}
	var traits []types.MatchedTrait
	if ts != nil {
		traits = append(traits, ts.Traits...)
	}

	id := uuid.New()
	key := slotlock.ConsultationKey(childID)
	if err := s.slots.claim(ctx, key, id.String(), func(holder string) bool {
		return s.reclaimStale(ctx, holder, now)
	}); err != nil {
		return nil, err
	}
	state := &consultationState{
		sess: &types.ConversationSession{
			ID:             id,
			ChildID:        childID,
			Status:         types.SessionStatusActive,
			DetectedTopics: []string{},
			EmergencyFlags: []string{},
			CreatedAt:      now,
			LastActivityAt: now,
		},
		traits: traits,
	}
	e := s.store.put(id, state)
	e.mu.Lock()
	defer e.mu.Unlock()
	observability.Current().ObserveSessionTransition(sessionKindConsultation, types.SessionStatusActive)

	reply, err := s.exchange(ctx, state, opening)
	if err != nil {
		s.endLocked(ctx, e, types.SessionStatusDiscarded, s.now().UTC())
		s.log.Warn("consultation start failed", "session_id", id, "error", err)
		return nil, err
	}
	s.log.Info("consultation started", "session_id", id, "child_id", childID)
	return &ConsultationReply{Session: state.sess.Clone(), Reply: reply}, nil
}

func (s *consultationService) Send(ctx context.Context, sessionID uuid.UUID, text, imageURL string) (*ConsultationReply, error) {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	turn, err := newTurn(types.SpeakerParent, text, imageURL, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(e.sess.sess.Turns)+2 > s.cfg.ConsultationMaxTurns {
		return nil, validationf("consultation reached the %d turn limit", s.cfg.ConsultationMaxTurns)
	}
	reply, err := s.exchange(ctx, e.sess, turn)
	if err != nil {
		return nil, err
	}
	return &ConsultationReply{Session: e.sess.sess.Clone(), Reply: reply}, nil
}

// exchange requests a reply to turn and, only on success, appends both turns
// and widens the detection sets.
func (s *consultationService) exchange(ctx context.Context, state *consultationState, turn types.Turn) (types.Turn, error) {
	sess := state.sess
	candidate := append(append([]types.Turn(nil), sess.Turns...), turn)
	var images []string
	if turn.ImageURL != "" {
		images = []string{turn.ImageURL}
	}
	resp, err := s.gen.Generate(ctx, StructuredPrompt{
		Task:      TaskConsultationReply,
		System:    consultationSystemPrompt(state.traits),
		User:      renderTranscript(candidate) + "assistant:",
		ImageURLs: images,
	})
	if err != nil {
		return types.Turn{}, generationErr(TaskConsultationReply, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return types.Turn{}, generationf("empty consultation reply")
	}
	now := s.now().UTC()
	reply := types.Turn{Speaker: types.SpeakerAssistant, Text: text, At: now}
	sess.Turns = append(candidate, reply)

	d := s.detector.Detect(sess.Turns, state.traits)
	sess.DetectedTopics = unionSorted(sess.DetectedTopics, d.Topics)
	sess.EmergencyFlags = unionSorted(sess.EmergencyFlags, d.EmergencyFlags)
	sess.LastActivityAt = now
	s.slots.refresh(ctx, slotlock.ConsultationKey(sess.ChildID), sess.ID.String())
	if len(d.EmergencyFlags) > 0 {
		s.log.Warn("emergency indicators detected", "session_id", sess.ID, "flags", sess.EmergencyFlags)
	}
	return reply, nil
}

func (s *consultationService) Complete(ctx context.Context, sessionID uuid.UUID) (*ConsultationOutcome, error) {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	sess := e.sess.sess

	ctx, span := observability.StartSpan(ctx, "consultation.complete",
		attribute.Int("consultation.turns", len(sess.Turns)),
		attribute.Int("consultation.topics", len(sess.DetectedTopics)),
	)
	defer span.End()

	log, err := s.logs.Generate(ctx, MedicalLogInput{
		ChildID:          sess.ChildID,
		SessionID:        sess.ID,
		ConversationDate: sess.CreatedAt,
		Turns:            sess.Turns,
		Topics:           sess.DetectedTopics,
		EmergencyFlags:   sess.EmergencyFlags,
		Traits:           e.sess.traits,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "medical log generation failed")
		return nil, err
	}
	out := &ConsultationOutcome{NoMedicalTopics: log == nil}
	if log != nil {
		saved, err := s.medical.Append(dbctx.Context{Ctx: ctx}, log)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "append failed")
			s.log.Error("medical log append failed", "session_id", sess.ID, "error", err)
			return nil, fmt.Errorf("append medical log: %w", err)
		}
		observability.Current().IncAppend(types.StreamMedicalLogs, "consultation")
		out.Log = saved
	}
	s.endLocked(ctx, e, types.SessionStatusCompleted, s.now().UTC())
	s.log.Info("consultation completed", "session_id", sess.ID, "logged", out.Log != nil)
	return out, nil
}

func (s *consultationService) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	e, err := s.lockActive(ctx, sessionID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	s.endLocked(ctx, e, types.SessionStatusDiscarded, s.now().UTC())
	s.log.Info("consultation discarded", "session_id", sessionID)
	return nil
}

func (s *consultationService) Get(ctx context.Context, sessionID uuid.UUID) (*types.ConversationSession, error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: consultation session", ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ended() {
		now := s.now().UTC()
		if s.idle(e.sess.sess, now) {
			s.endLocked(ctx, e, types.SessionStatusDiscarded, now)
		}
	}
	return e.sess.sess.Clone(), nil
}

func (s *consultationService) ExpireIdle(ctx context.Context, now time.Time) int {
	return s.store.sweep(now, s.cfg.ConsultationTTL, func(id uuid.UUID, e *sessionEntry[*consultationState]) bool {
		if !s.idle(e.sess.sess, now) {
			return false
		}
		s.endLocked(ctx, e, types.SessionStatusDiscarded, now)
		s.log.Info("consultation expired", "session_id", id)
		return true
	})
}

func (s *consultationService) ActiveCount() int {
	return s.store.countActive()
}

func (s *consultationService) idle(sess *types.ConversationSession, now time.Time) bool {
	return now.Sub(sess.LastActivityAt) > s.cfg.ConsultationTTL
}

// endLocked erases the transcript, sets a terminal status and frees the slot. e.mu must be held.
func (s *consultationService) endLocked(ctx context.Context, e *sessionEntry[*consultationState], status string, now time.Time) {
	sess := e.sess.sess
	sess.Erase()
	sess.Status = status
	sess.LastActivityAt = now
	e.endedAt = now
	s.slots.release(ctx, slotlock.ConsultationKey(sess.ChildID), sess.ID.String())
	observability.Current().ObserveSessionTransition(sessionKindConsultation, status)
}

func (s *consultationService) lockActive(ctx context.Context, sessionID uuid.UUID) (*sessionEntry[*consultationState], error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: consultation session", ErrNotFound)
	}
	e.mu.Lock()
	if e.ended() {
		e.mu.Unlock()
		return nil, ErrSessionExpired
	}
	now := s.now().UTC()
	if s.idle(e.sess.sess, now) {
		s.endLocked(ctx, e, types.SessionStatusDiscarded, now)
		e.mu.Unlock()
		s.log.Info("consultation expired on access", "session_id", sessionID)
		return nil, ErrSessionExpired
	}
	s.slots.refresh(ctx, slotlock.ConsultationKey(e.sess.sess.ChildID), sessionID.String())
	return e, nil
}

func (s *consultationService) reclaimStale(ctx context.Context, holder string, now time.Time) bool {
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
		s.slots.release(ctx, slotlock.ConsultationKey(e.sess.sess.ChildID), holder)
		return true
	}
	if !s.idle(e.sess.sess, now) {
		return false
	}
	s.endLocked(ctx, e, types.SessionStatusDiscarded, now)
	return true
}

func consultationSystemPrompt(traits []types.MatchedTrait) string {
	var b strings.Builder
	b.WriteString(`You are a calm, practical pediatric guidance assistant talking with a parent about their child.
Answer in plain language, ask at most one clarifying question per reply, and never diagnose.
If the parent describes trouble breathing, unresponsiveness, a seizure, heavy bleeding, a severe allergic reaction, or a very high fever in an infant, tell them to call emergency services now before anything else.`)
	if len(traits) > 0 {
		b.WriteString("\n\nThe child's genetic traits (use them as context, not as a diagnosis):\n")
		for _, t := range traits {
			fmt.Fprintf(&b, "- %s (%s, %s)\n", t.TraitName, t.GeneID, t.Category)
		}
	}
	return b.String()
}
