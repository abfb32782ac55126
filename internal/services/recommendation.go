package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

const (
	tldrMaxWords       = 10
	referenceMaxChars  = 300
	referenceMaxPieces = 6
)

type RecommendationInput struct {
	EntryType string
	AgeMonths int
	Traits    []types.MatchedTrait
	Answers   []types.AnswerRecord
	Concern   string
	Recent    []*types.LogEntry
}

type RecommendationOutput struct {
	Summary         string
	Recommendations []types.Recommendation
}

// RecommendationGenerator synthesizes recommendations through the generative
// capability and enforces the output contract. It never returns a partial result.
type RecommendationGenerator interface {
	EligibleTraits(traits []types.MatchedTrait, recent []*types.LogEntry) []types.MatchedTrait
	Generate(ctx context.Context, in RecommendationInput) (*RecommendationOutput, error)
}

type recommendationGenerator struct {
	log       *logger.Logger
	gen       GenerativeCapability
	kb        *knowledge.Base
	retriever KnowledgeRetriever
}

// NewRecommendationGenerator builds the generator. retriever may be nil.
func NewRecommendationGenerator(baseLog *logger.Logger, gen GenerativeCapability, kb *knowledge.Base, retriever KnowledgeRetriever) RecommendationGenerator {
	return &recommendationGenerator{
		log:       baseLog.With("service", "RecommendationGenerator"),
		gen:       gen,
		kb:        kb,
		retriever: retriever,
	}
}

// EligibleTraits is the trait set minus traits covered by recent entries.
// When every trait was covered recently the whole set is eligible again.
func (g *recommendationGenerator) EligibleTraits(traits []types.MatchedTrait, recent []*types.LogEntry) []types.MatchedTrait {
	covered := coveredTraits(recent)
	var out []types.MatchedTrait
	for _, t := range traits {
		if !covered[strings.ToLower(t.TraitName)] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]types.MatchedTrait(nil), traits...)
	}
	return out
}

type recommendationPayload struct {
	Summary         string `json:"summary"`
	Recommendations []struct {
		TraitName string `json:"trait_name"`
		Goal      string `json:"goal"`
		Activity  string `json:"activity"`
		TLDR      string `json:"tldr"`
		Frequency string `json:"frequency"`
		Duration  string `json:"duration"`
	} `json:"recommendations"`
}

func (g *recommendationGenerator) Generate(ctx context.Context, in RecommendationInput) (*RecommendationOutput, error) {
	eligible := g.EligibleTraits(in.Traits, in.Recent)
	refs := g.references(ctx, in, eligible)
	resp, err := g.gen.Generate(ctx, StructuredPrompt{
		Task:       TaskRecommendations,
		System:     recommendationSystemPrompt,
		User:       g.buildUserPrompt(in, eligible, refs),
		SchemaName: "child_log_entry",
		Schema:     recommendationSchema(),
	})
	if err != nil {
		return nil, generationErr(TaskRecommendations, err)
	}
	var payload recommendationPayload
	if err := decodeStructured(resp, &payload); err != nil {
		return nil, generationf("decode recommendations: %v", err)
	}
	out, err := g.validate(payload, eligible)
	if err != nil {
		g.log.Warn("recommendation output rejected", "entry_type", in.EntryType, "error", err)
		return nil, err
	}
	return out, nil
}

// references fetches passages for the eligible traits. Retrieval problems
// only cost the prompt its reference section.
func (g *recommendationGenerator) references(ctx context.Context, in RecommendationInput, eligible []types.MatchedTrait) []KnowledgeHit {
	if g.retriever == nil || !g.retriever.Enabled() {
		return nil
	}
	names := make([]string, 0, len(eligible))
	for _, t := range eligible {
		names = append(names, t.TraitName)
	}
	hits, err := g.retriever.ContextFor(ctx, names, in.AgeMonths)
	if err != nil {
		g.log.Warn("knowledge retrieval failed; generating without references", "error", err)
		return nil
	}
	if len(hits) > referenceMaxPieces {
		hits = hits[:referenceMaxPieces]
	}
	return hits
}

func (g *recommendationGenerator) validate(p recommendationPayload, eligible []types.MatchedTrait) (*RecommendationOutput, error) {
	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return nil, generationf("empty summary")
	}
	byName := make(map[string]types.MatchedTrait, len(eligible))
	for _, t := range eligible {
		byName[strings.ToLower(t.TraitName)] = t
	}
	seen := map[string]bool{}
	out := &RecommendationOutput{Summary: summary}
	dropped := 0
	for _, r := range p.Recommendations {
		key := strings.ToLower(strings.TrimSpace(r.TraitName))
		trait, ok := byName[key]
		if !ok || seen[key] {
			dropped++
			continue
		}
		goal := strings.TrimSpace(r.Goal)
		activity := strings.TrimSpace(r.Activity)
		if goal == "" || activity == "" {
			dropped++
			continue
		}
		tldr := capWords(r.TLDR, tldrMaxWords)
		if tldr == "" {
			tldr = capWords(goal, tldrMaxWords)
		}
		geneID := trait.GeneID
		if ref, ok := g.kb.Trait(trait.TraitName); ok {
			geneID = ref.GeneID
		}
		seen[key] = true
		out.Recommendations = append(out.Recommendations, types.Recommendation{
			TraitName: trait.TraitName,
			GeneID:    geneID,
			Goal:      goal,
			Activity:  activity,
			TLDR:      tldr,
			Frequency: strings.TrimSpace(r.Frequency),
			Duration:  strings.TrimSpace(r.Duration),
		})
	}
	if dropped > 0 {
		g.log.Debug("dropped recommendations", "count", dropped)
	}
	if len(eligible) > 0 && len(out.Recommendations) == 0 {
		return nil, generationf("no recommendation references an eligible trait")
	}
	return out, nil
}

const recommendationSystemPrompt = `You write a child's check-in log entry for their parent.
Produce one short summary of the check-in and practical recommendations.
Only recommend for traits listed under ELIGIBLE TRAITS, at most one recommendation per trait, using the exact trait_name.
Each recommendation has a goal, a concrete activity, a tldr of at most 10 words, and optional frequency and duration (empty string when not applicable).
When REFERENCE KNOWLEDGE is present, ground activities in it where it applies.
For emergency entries focus on the parent's concern and tell them to contact a doctor or emergency services when symptoms are severe.`

func (g *recommendationGenerator) buildUserPrompt(in RecommendationInput, eligible []types.MatchedTrait, refs []KnowledgeHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ENTRY TYPE: %s\n", in.EntryType)
	if in.AgeMonths >= 0 {
		fmt.Fprintf(&b, "CHILD AGE: %d months\n", in.AgeMonths)
	}
	b.WriteString("\nELIGIBLE TRAITS:\n")
	if len(eligible) == 0 {
		b.WriteString("(none; return an empty recommendations list)\n")
	}
	for _, t := range eligible {
		fmt.Fprintf(&b, "- %s (%s, %s)", t.TraitName, t.GeneID, t.Category)
		if ref, ok := g.kb.Trait(t.TraitName); ok && ref.Guidance != "" {
			fmt.Fprintf(&b, ": %s", ref.Guidance)
		}
		b.WriteString("\n")
	}
	if len(in.Answers) > 0 {
		b.WriteString("\nANSWERS:\n")
		for _, a := range in.Answers {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", a.Question, a.Answer)
		}
	}
	if c := strings.TrimSpace(in.Concern); c != "" {
		fmt.Fprintf(&b, "\nPARENT CONCERN:\n%s\n", c)
	}
	if len(refs) > 0 {
		b.WriteString("\nREFERENCE KNOWLEDGE:\n")
		b.WriteString(referenceDigest(refs, referenceMaxChars))
	}
	b.WriteString("\nRECENT HISTORY:\n")
	b.WriteString(historyDigest(in.Recent))
	return b.String()
}

// historyDigest is one line per recent entry, newest first.
func historyDigest(recent []*types.LogEntry) string {
	if len(recent) == 0 {
		return "(no previous entries)\n"
	}
	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "- %s %s: %s", e.CreatedAt.Format("2006-01-02"), e.EntryType, capWords(e.Summary, 40))
		if covered := e.TraitsCovered(); len(covered) > 0 {
			fmt.Fprintf(&b, " [traits: %s]", strings.Join(covered, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func recommendationSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"summary", "recommendations"},
		"properties": map[string]any{
			"summary": str,
			"recommendations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"trait_name", "goal", "activity", "tldr", "frequency", "duration"},
					"properties": map[string]any{
						"trait_name": str,
						"goal":       str,
						"activity":   str,
						"tldr":       str,
						"frequency":  str,
						"duration":   str,
					},
				},
			},
		},
	}
}
