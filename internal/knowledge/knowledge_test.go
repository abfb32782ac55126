package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

func TestEmbeddedKnowledgeValidates(t *testing.T) {
	b, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	if len(b.Traits) != 10 {
		t.Fatalf("traits: want=10 got=%d", len(b.Traits))
	}
	flg, ok := b.Trait("eczema risk")
	if !ok || flg.GeneID != "FLG" {
		t.Fatalf("Trait(eczema risk): got=%+v ok=%v", flg, ok)
	}
	immunity := b.TraitsInCategory(types.CategoryImmunity)
	if len(immunity) != 3 {
		t.Fatalf("immunity traits: want=3 got=%v", immunity)
	}
	for i := 1; i < len(b.Milestones.Buckets); i++ {
		if b.Milestones.Buckets[i-1].Start >= b.Milestones.Buckets[i].Start {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
}

func writeOverride(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadOverrideFallsBackOnInvalidTable(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, milestonesFile, `
buckets:
  - { start: 12, end: 0, label: "broken" }
milestones: []
`)
	b, err := Load(logger.Nop(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.Milestones.Buckets) != 5 {
		t.Fatalf("expected embedded buckets after fallback, got=%d", len(b.Milestones.Buckets))
	}
}

func TestLoadOverrideReplacesRules(t *testing.T) {
	dir := t.TempDir()
	writeOverride(t, dir, rulesFile, `
rules:
  - id: only
    patterns: ["hiccups?"]
    trait: Eczema Risk
`)
	b, err := Load(logger.Nop(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.TopicRules) != 1 || b.TopicRules[0].ID != "only" {
		t.Fatalf("rules: want override got=%+v", b.TopicRules)
	}
}

func TestValidateRejectsRuleWithTwoTargets(t *testing.T) {
	b, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	b.TopicRules = append(b.TopicRules, TopicRule{
		ID:            "bad",
		Patterns:      []string{"x"},
		Trait:         "Eczema Risk",
		EmergencyFlag: "x",
	})
	if err := b.validate(); err == nil {
		t.Fatalf("validate: expected error for rule with two targets")
	}
}

func TestValidateRejectsStartAfterEndRow(t *testing.T) {
	b, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	b.Milestones.Rows = append(b.Milestones.Rows, MilestoneRow{GeneID: "FLG", TraitName: "Eczema Risk", Start: 24, End: 13})
	if err := b.validate(); err == nil {
		t.Fatalf("validate: expected error for start > end")
	}
}

func TestValidateArticles(t *testing.T) {
	cases := []struct {
		name    string
		article Article
	}{
		{name: "duplicate id", article: Article{ID: "eczema-daily-skin-care", Category: types.CategoryImmunity, Content: "x"}},
		{name: "empty content", article: Article{ID: "new", Category: types.CategoryImmunity}},
		{name: "unknown category", article: Article{ID: "new", Category: "Astrology", Content: "x"}},
		{name: "unknown trait", article: Article{ID: "new", Category: types.CategoryGrowth, Traits: []string{"Wing Span"}, Content: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Embedded()
			if err != nil {
				t.Fatalf("Embedded: %v", err)
			}
			if len(b.Articles) == 0 {
				t.Fatalf("embedded articles: want some got none")
			}
			b.Articles = append(b.Articles, tc.article)
			if err := b.validate(); err == nil {
				t.Fatalf("validate: expected error for %s", tc.name)
			}
		})
	}
}
