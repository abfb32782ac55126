package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

func newRecGen(t *testing.T, fn func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error)) (RecommendationGenerator, *knowledge.Base) {
	t.Helper()
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	return NewRecommendationGenerator(logger.Nop(), &fakeGenerative{fn: fn}, kb, nil), kb
}

func matched(kb *knowledge.Base, names ...string) []types.MatchedTrait {
	out := make([]types.MatchedTrait, 0, len(names))
	for _, n := range names {
		ref, _ := kb.Trait(n)
		out = append(out, types.MatchedTrait{TraitName: ref.TraitName, GeneID: ref.GeneID, Category: ref.Category})
	}
	return out
}

func entryCovering(traits ...string) *types.LogEntry {
	e := &types.LogEntry{EntryType: types.EntryTypeCheckIn, Summary: "earlier"}
	for _, t := range traits {
		e.Recommendations = append(e.Recommendations, types.Recommendation{TraitName: t})
	}
	return e
}

func TestEligibleTraits(t *testing.T) {
	g, kb := newRecGen(t, nil)
	traits := matched(kb, "Eczema Risk", "Language Development", "Muscle Power")

	got := g.EligibleTraits(traits, []*types.LogEntry{entryCovering("eczema risk")})
	if strings.Join(traitNames(got), ",") != "Language Development,Muscle Power" {
		t.Fatalf("EligibleTraits: got=%v", traitNames(got))
	}
	all := g.EligibleTraits(traits, []*types.LogEntry{entryCovering("Eczema Risk", "Language Development"), entryCovering("Muscle Power")})
	if len(all) != 3 {
		t.Fatalf("EligibleTraits fallback: want all 3 got=%v", traitNames(all))
	}
}

func TestRecommendationValidation(t *testing.T) {
	long := "one two three four five six seven eight nine ten eleven twelve"
	g, kb := newRecGen(t, func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		return StructuredResponse{JSON: map[string]any{
			"summary": "  Skin and speech focus.  ",
			"recommendations": []any{
				map[string]any{"trait_name": "eczema risk", "gene_id": "WRONG", "goal": "Calm skin", "activity": "Moisturize", "tldr": long, "frequency": "", "duration": ""},
				map[string]any{"trait_name": "Eczema Risk", "goal": "Dup", "activity": "Dup", "tldr": "dup", "frequency": "", "duration": ""},
				map[string]any{"trait_name": "Muscle Power", "goal": "Not eligible", "activity": "x", "tldr": "x", "frequency": "", "duration": ""},
				map[string]any{"trait_name": "Language Development", "goal": "", "activity": "Read", "tldr": "x", "frequency": "", "duration": ""},
				map[string]any{"trait_name": "Language Development", "goal": "Talk more", "activity": "Narrate the day", "tldr": "", "frequency": "daily", "duration": "15 minutes"},
			},
		}}, nil
	})
	out, err := g.Generate(context.Background(), RecommendationInput{
		EntryType: types.EntryTypeCheckIn,
		AgeMonths: 8,
		Traits:    matched(kb, "Eczema Risk", "Language Development", "Muscle Power"),
		Recent:    []*types.LogEntry{entryCovering("Muscle Power")},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Summary != "Skin and speech focus." {
		t.Fatalf("summary: want=%q got=%q", "Skin and speech focus.", out.Summary)
	}
	if len(out.Recommendations) != 2 {
		t.Fatalf("recommendations: want=2 got=%+v", out.Recommendations)
	}
	ecz := out.Recommendations[0]
	if ecz.TraitName != "Eczema Risk" || ecz.GeneID != "FLG" || ecz.Goal != "Calm skin" {
		t.Fatalf("eczema rec: got=%+v", ecz)
	}
	if n := len(strings.Fields(ecz.TLDR)); n != 10 {
		t.Fatalf("tldr words: want=10 got=%d (%q)", n, ecz.TLDR)
	}
	lang := out.Recommendations[1]
	if lang.GeneID != "FOXP2" || lang.TLDR != "Talk more" || lang.Duration != "15 minutes" {
		t.Fatalf("language rec: got=%+v", lang)
	}
}

func TestRecommendationGenerationFailures(t *testing.T) {
	cases := []struct {
		name string
		resp StructuredResponse
		err  error
	}{
		{"capability error", StructuredResponse{}, generationf("boom")},
		{"empty summary", recommendationsFor("  ", "Eczema Risk"), nil},
		{"nothing eligible survives", recommendationsFor("ok", "Muscle Power"), nil},
		{"malformed", StructuredResponse{Text: "not json"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, kb := newRecGen(t, func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
				return tc.resp, tc.err
			})
			_, err := g.Generate(context.Background(), RecommendationInput{
				EntryType: types.EntryTypeCheckIn,
				Traits:    matched(kb, "Eczema Risk"),
			})
			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("Generate: want ErrGenerationFailed got=%v", err)
			}
		})
	}
}

func TestRecommendationPromptCarriesContext(t *testing.T) {
	var seen StructuredPrompt
	g, kb := newRecGen(t, func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		seen = p
		return recommendationsFor("ok", "Eczema Risk"), nil
	})
	_, err := g.Generate(context.Background(), RecommendationInput{
		EntryType: types.EntryTypeEmergency,
		AgeMonths: 8,
		Traits:    matched(kb, "Eczema Risk"),
		Concern:   "red patches on cheeks",
		Answers:   []types.AnswerRecord{{Index: 0, Question: "How was skin?", Answer: "Flare-up"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if seen.SchemaName != "child_log_entry" || seen.Schema == nil {
		t.Fatalf("schema: got=%q", seen.SchemaName)
	}
	for _, want := range []string{"ENTRY TYPE: emergency", "CHILD AGE: 8 months", "red patches on cheeks", "A: Flare-up", "(no previous entries)"} {
		if !strings.Contains(seen.User, want) {
			t.Fatalf("prompt missing %q:\n%s", want, seen.User)
		}
	}
}
