package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

func TestMilestoneComputerEightMonthOld(t *testing.T) {
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	c := NewMilestoneComputer(kb)
	buckets := c.Compute([]string{"FLG", "FOXP2"}, 8)
	if len(buckets) == 0 {
		t.Fatalf("Compute: no buckets")
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i-1].AgeStartMonths >= buckets[i].AgeStartMonths {
			t.Fatalf("buckets not ordered by age_start at %d", i)
		}
	}
	cur := buckets[0]
	if !cur.IsCurrent || cur.IsPast || cur.IsFuture || cur.AgeStartMonths != 0 || cur.AgeEndMonths != 12 {
		t.Fatalf("current bucket: got=%+v", cur)
	}
	var names []string
	for _, m := range cur.Milestones {
		names = append(names, m.TraitName)
	}
	if strings.Join(names, ",") != "Eczema Risk,Language Development" {
		t.Fatalf("current milestones: got=%v", names)
	}
	for _, b := range buckets[1:] {
		if !b.IsFuture || b.IsCurrent {
			t.Fatalf("later bucket %d-%d should be future", b.AgeStartMonths, b.AgeEndMonths)
		}
		for _, m := range b.Milestones {
			if m.GeneID != "FLG" && m.GeneID != "FOXP2" {
				t.Fatalf("unexpected milestone %s in %d-%d", m.GeneID, b.AgeStartMonths, b.AgeEndMonths)
			}
		}
	}
	if !strings.Contains(cur.Summary, "(current age)") {
		t.Fatalf("summary: got=%q", cur.Summary)
	}
}

func TestMilestoneComputerFlagsAndOmission(t *testing.T) {
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	c := NewMilestoneComputer(kb)

	// Lactose Sensitivity only has rows in 25-36 and 61-96.
	buckets := c.Compute([]string{"lactose sensitivity"}, 40)
	if len(buckets) != 2 {
		t.Fatalf("Compute: want=2 buckets got=%d", len(buckets))
	}
	if !buckets[0].IsPast || !buckets[1].IsFuture {
		t.Fatalf("flags: got=%+v", buckets)
	}

	unknown := c.Compute([]string{"FLG"}, -1)
	for _, b := range unknown {
		if b.IsCurrent || b.IsPast || b.IsFuture {
			t.Fatalf("unknown age should leave flags unset: %+v", b)
		}
	}
	if got := c.Compute(nil, 8); len(got) != 0 {
		t.Fatalf("no traits: want no buckets got=%d", len(got))
	}
}

func TestRoadmapServiceCachesAndRederivesFlags(t *testing.T) {
	env := newTestEnv(t)
	env.seedChild(t, "child-r", 8, "Eczema Risk", "Language Development")
	svc := NewRoadmapService(env.log, env.traitSets, env.cache, NewMilestoneComputer(env.kb)).(*roadmapService)
	svc.now = env.clock.Now

	var wg sync.WaitGroup
	results := make([][]types.MilestoneBucket, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetRoadmap(context.Background(), "child-r")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("GetRoadmap[%d]: %v", i, err)
		}
		if len(results[i]) == 0 || !results[i][0].IsCurrent {
			t.Fatalf("GetRoadmap[%d]: got=%+v", i, results[i])
		}
	}
	row, err := env.cache.Get(ctxDB(), "child-r")
	if err != nil || row == nil {
		t.Fatalf("cache row: row=%v err=%v", row, err)
	}
	if !strings.HasSuffix(row.CacheKey, ":0-12") {
		t.Fatalf("cache key: got=%q", row.CacheKey)
	}

	// Eight months later the child is in the next bucket: new key, new flags.
	env.clock.Advance(8 * 31 * 24 * time.Hour)
	later, err := svc.GetRoadmap(context.Background(), "child-r")
	if err != nil {
		t.Fatalf("GetRoadmap(later): %v", err)
	}
	if later[0].IsCurrent || !later[0].IsPast || !later[1].IsCurrent {
		t.Fatalf("later flags: got=%+v", later[:2])
	}
	row, _ = env.cache.Get(ctxDB(), "child-r")
	if !strings.HasSuffix(row.CacheKey, ":13-24") {
		t.Fatalf("cache key after birthday: got=%q", row.CacheKey)
	}
}

func TestRoadmapServiceMissingTraitSet(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRoadmapService(env.log, env.traitSets, env.cache, NewMilestoneComputer(env.kb))
	if _, err := svc.GetRoadmap(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRoadmap: want ErrNotFound got=%v", err)
	}
}
