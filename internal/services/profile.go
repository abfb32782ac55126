package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bloomie-backend/internal/data/repos"
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

const immunityWindow = 30 * 24 * time.Hour

type GenotypeCall struct {
	RSID     string `json:"rs_id"`
	Genotype string `json:"genotype"`
}

// GeneticReport is the parsed report handed over by the upstream report parser.
type GeneticReport struct {
	ChildID         string         `json:"child_id"`
	Birthday        string         `json:"birthday"`
	Gender          string         `json:"gender"`
	GenotypeProfile []GenotypeCall `json:"genotype_profile"`
}

func (r GeneticReport) Markers() []types.Marker {
	out := make([]types.Marker, 0, len(r.GenotypeProfile))
	for _, c := range r.GenotypeProfile {
		out = append(out, types.Marker{MarkerID: c.RSID, Genotype: c.Genotype})
	}
	return out
}

type IngestResult struct {
	TraitSet     *types.ChildTraitSet `json:"trait_set"`
	InitialEntry *types.LogEntry      `json:"initial_entry,omitempty"`
}

type ImmunityTrait struct {
	TraitName   string                   `json:"trait_name"`
	GeneID      string                   `json:"gene_id"`
	Description string                   `json:"description,omitempty"`
	Suggestions []knowledge.Suggestion   `json:"suggestions"`
	RecentLogs  []*types.MedicalVisitLog `json:"recent_medical_logs"`
}

type ImmunityDashboard struct {
	ChildID string          `json:"child_id"`
	Since   time.Time       `json:"since"`
	Traits  []ImmunityTrait `json:"traits"`
}

// ProfileService owns report ingestion and the read side of a child's history.
type ProfileService interface {
	IngestGeneticReport(ctx context.Context, report GeneticReport) (*IngestResult, error)
	GetTraitSet(ctx context.Context, childID string) (*types.ChildTraitSet, error)
	ListEntries(ctx context.Context, childID string, limit int) ([]*types.LogEntry, error)
	ListMedicalLogs(ctx context.Context, childID string, limit int) ([]*types.MedicalVisitLog, error)
	GetMedicalLog(ctx context.Context, childID string, id uuid.UUID) (*types.MedicalVisitLog, error)
	ListMedicalLogsByTrait(ctx context.Context, childID, trait string, days int) ([]*types.MedicalVisitLog, error)
	ImmunityDashboard(ctx context.Context, childID string) (*ImmunityDashboard, error)
}

type profileService struct {
	log       *logger.Logger
	kb        *knowledge.Base
	matcher   TraitMatcher
	traitSets repos.TraitSetRepo
	entries   repos.LogEntryRepo
	medical   repos.MedicalLogRepo
	checkIns  CheckInService
	now       func() time.Time
}

func NewProfileService(
	baseLog *logger.Logger,
	kb *knowledge.Base,
	matcher TraitMatcher,
	traitSets repos.TraitSetRepo,
	entries repos.LogEntryRepo,
	medical repos.MedicalLogRepo,
	checkIns CheckInService,
) ProfileService {
	return &profileService{
		log:       baseLog.With("service", "ProfileService"),
		kb:        kb,
		matcher:   matcher,
		traitSets: traitSets,
		entries:   entries,
		medical:   medical,
		checkIns:  checkIns,
		now:       time.Now,
	}
}

func parseBirthday(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: birthday %q is not YYYY-MM-DD", ErrInvalidGeneticData, s)
}

func (s *profileService) IngestGeneticReport(ctx context.Context, report GeneticReport) (*IngestResult, error) {
	childID := strings.TrimSpace(report.ChildID)
	if childID == "" {
		return nil, validationf("missing child_id")
	}
	birth, err := parseBirthday(report.Birthday)
	if err != nil {
		return nil, err
	}
	if birth != nil && birth.After(s.now()) {
		return nil, fmt.Errorf("%w: birthday in the future", ErrInvalidGeneticData)
	}
	markers := report.Markers()
	traits, err := s.matcher.Match(markers)
	if err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	now := s.now().UTC()
	ts := &types.ChildTraitSet{
		ChildID:     childID,
		Traits:      traits,
		BirthDate:   birth,
		Gender:      strings.TrimSpace(report.Gender),
		MarkerCount: len(markers),
		MatchedAt:   now,
	}
	if err := s.traitSets.Upsert(dbc, ts); err != nil {
		return nil, fmt.Errorf("save trait set: %w", err)
	}
	s.log.Info("genetic report ingested", "child_id", childID, "markers", len(markers), "traits", len(traits))
	res := &IngestResult{TraitSet: ts}

	n, err := s.entries.CountByChild(dbc, childID)
	if err != nil {
		return res, &InitialEntryError{Err: fmt.Errorf("count entries: %w", err)}
	}
	if n > 0 {
		return res, nil
	}
	entry, err := s.initialEntry(ctx, childID)
	if err != nil {
		s.log.Warn("initial entry failed", "child_id", childID, "error", err)
		return res, &InitialEntryError{Err: err}
	}
	res.InitialEntry = entry
	return res, nil
}

func (s *profileService) initialEntry(ctx context.Context, childID string) (*types.LogEntry, error) {
	if s.checkIns == nil {
		return nil, errors.New("check-in service not configured")
	}
	sess, err := s.checkIns.Start(ctx, childID, types.CheckInTypeInitial, "")
	if err != nil {
		return nil, err
	}
	entry, err := s.checkIns.Submit(ctx, sess.ID)
	if err != nil {
		// Leave no dangling slot; the caller retries with a fresh initial check-in.
		if aerr := s.checkIns.Abandon(ctx, sess.ID); aerr != nil && !errors.Is(aerr, ErrSessionExpired) {
			s.log.Warn("abandon initial check-in failed", "session_id", sess.ID, "error", aerr)
		}
		return nil, err
	}
	return entry, nil
}

func (s *profileService) GetTraitSet(ctx context.Context, childID string) (*types.ChildTraitSet, error) {
	ts, err := s.traitSets.GetByChildID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(childID))
	if err != nil {
		return nil, fmt.Errorf("load trait set: %w", err)
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: no trait set for child", ErrNotFound)
	}
	return ts, nil
}

func (s *profileService) ListEntries(ctx context.Context, childID string, limit int) ([]*types.LogEntry, error) {
	return s.entries.ListByChild(dbctx.Context{Ctx: ctx}, strings.TrimSpace(childID), limit)
}

func (s *profileService) ListMedicalLogs(ctx context.Context, childID string, limit int) ([]*types.MedicalVisitLog, error) {
	return s.medical.ListByChild(dbctx.Context{Ctx: ctx}, strings.TrimSpace(childID), limit)
}

func (s *profileService) GetMedicalLog(ctx context.Context, childID string, id uuid.UUID) (*types.MedicalVisitLog, error) {
	row, err := s.medical.GetByID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(childID), id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: medical log", ErrNotFound)
	}
	return row, nil
}

func (s *profileService) ListMedicalLogsByTrait(ctx context.Context, childID, trait string, days int) ([]*types.MedicalVisitLog, error) {
	trait = strings.TrimSpace(trait)
	if trait == "" {
		return nil, validationf("missing trait")
	}
	if days <= 0 {
		days = int(immunityWindow / (24 * time.Hour))
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.medical.ListByTraitSince(dbctx.Context{Ctx: ctx}, strings.TrimSpace(childID), trait, since)
}

func (s *profileService) ImmunityDashboard(ctx context.Context, childID string) (*ImmunityDashboard, error) {
	ts, err := s.GetTraitSet(ctx, childID)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-immunityWindow)
	var traits []types.MatchedTrait
	for _, t := range ts.Traits {
		if t.Category == types.CategoryImmunity {
			traits = append(traits, t)
		}
	}
	out := &ImmunityDashboard{ChildID: ts.ChildID, Since: since, Traits: make([]ImmunityTrait, len(traits))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, t := range traits {
		g.Go(func() error {
			logs, err := s.medical.ListByTraitSince(dbctx.Context{Ctx: gctx}, ts.ChildID, t.TraitName, since)
			if err != nil {
				return fmt.Errorf("medical logs for %s: %w", t.TraitName, err)
			}
			if logs == nil {
				logs = []*types.MedicalVisitLog{}
			}
			suggestions := s.kb.Immunity[t.TraitName]
			if suggestions == nil {
				suggestions = []knowledge.Suggestion{}
			}
			out.Traits[i] = ImmunityTrait{
				TraitName:   t.TraitName,
				GeneID:      t.GeneID,
				Description: t.Description,
				Suggestions: suggestions,
				RecentLogs:  logs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
