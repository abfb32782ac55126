package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/bloomie-backend/internal/data/repos"
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type RoadmapService interface {
	// GetRoadmap returns the child's milestone buckets ordered by age_start.
	GetRoadmap(ctx context.Context, childID string) ([]types.MilestoneBucket, error)
}

type roadmapService struct {
	log       *logger.Logger
	traitSets repos.TraitSetRepo
	cache     repos.MilestoneCacheRepo
	computer  MilestoneComputer
	group     singleflight.Group
	now       func() time.Time
}

func NewRoadmapService(
	baseLog *logger.Logger,
	traitSets repos.TraitSetRepo,
	cache repos.MilestoneCacheRepo,
	computer MilestoneComputer,
) RoadmapService {
	return &roadmapService{
		log:       baseLog.With("service", "RoadmapService"),
		traitSets: traitSets,
		cache:     cache,
		computer:  computer,
		now:       time.Now,
	}
}

func (s *roadmapService) GetRoadmap(ctx context.Context, childID string) ([]types.MilestoneBucket, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, validationf("missing child_id")
	}
	dbc := dbctx.Context{Ctx: ctx}
	ts, err := s.traitSets.GetByChildID(dbc, childID)
	if err != nil {
		return nil, fmt.Errorf("load trait set: %w", err)
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: no trait set for child", ErrNotFound)
	}
	age := ts.AgeMonths(s.now().UTC())
	key := s.cacheKey(ts, age)

	v, err, _ := s.group.Do(childID+"|"+key, func() (interface{}, error) {
		return s.computeCached(dbc, ts, key, age)
	})
	if err != nil {
		return nil, err
	}
	// Flags are always re-derived on read; cached rows only hold bucket contents.
	return s.computer.ApplyAge(v.([]types.MilestoneBucket), age), nil
}

func (s *roadmapService) computeCached(dbc dbctx.Context, ts *types.ChildTraitSet, key string, age int) ([]types.MilestoneBucket, error) {
	if s.cache != nil {
		row, err := s.cache.Get(dbc, ts.ChildID)
		if err != nil {
			s.log.Warn("milestone cache read failed", "child_id", ts.ChildID, "error", err)
		} else if row != nil && row.CacheKey == key {
			return []types.MilestoneBucket(row.Buckets), nil
		}
	}
	buckets := s.computer.Compute(traitKeys(ts), age)
	if s.cache != nil {
		if err := s.cache.Put(dbc, &types.MilestoneCache{
			ChildID:    ts.ChildID,
			CacheKey:   key,
			Buckets:    buckets,
			ComputedAt: s.now().UTC(),
		}); err != nil {
			s.log.Warn("milestone cache write failed", "child_id", ts.ChildID, "error", err)
		}
	}
	return buckets, nil
}

// cacheKey changes when the trait set or the child's current age bucket changes.
func (s *roadmapService) cacheKey(ts *types.ChildTraitSet, age int) string {
	names := ts.TraitNames()
	sort.Strings(names)
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(names, "\n"))))
	bucket := "unknown"
	if r, ok := s.computer.CurrentRange(age); ok {
		bucket = fmt.Sprintf("%d-%d", r.Start, r.End)
	}
	return hex.EncodeToString(sum[:16]) + ":" + bucket
}

func traitKeys(ts *types.ChildTraitSet) []string {
	out := make([]string, 0, 2*len(ts.Traits))
	for _, t := range ts.Traits {
		out = append(out, t.TraitName, t.GeneID)
	}
	return out
}
