package services

import (
	"fmt"
	"sort"
	"strings"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/domain/genetics"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

// TraitMatcher maps genotype calls to knowledge-base traits. Match is pure:
// the same markers always yield the same, name-sorted result.
type TraitMatcher interface {
	Match(markers []types.Marker) ([]types.MatchedTrait, error)
}

type compiledTrait struct {
	ref     types.TraitReference
	matcher genetics.Matcher
}

type traitMatcher struct {
	traits []compiledTrait
}

func NewTraitMatcher(kb *knowledge.Base) (TraitMatcher, error) {
	if kb == nil {
		return nil, fmt.Errorf("knowledge base required")
	}
	out := make([]compiledTrait, 0, len(kb.Traits))
	for _, ref := range kb.Traits {
		m, err := genetics.ParseMatcher(ref.MatcherPattern)
		if err != nil {
			return nil, fmt.Errorf("trait %q: %w", ref.TraitName, err)
		}
		out = append(out, compiledTrait{ref: ref, matcher: m})
	}
	return &traitMatcher{traits: out}, nil
}

func (m *traitMatcher) Match(markers []types.Marker) ([]types.MatchedTrait, error) {
	calls, err := normalizeMarkers(markers)
	if err != nil {
		return nil, err
	}
	out := make([]types.MatchedTrait, 0)
	for _, t := range m.traits {
		if !t.matcher.Matches(calls) {
			continue
		}
		out = append(out, types.MatchedTrait{
			TraitName:   t.ref.TraitName,
			GeneID:      t.ref.GeneID,
			Category:    t.ref.Category,
			Description: t.ref.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TraitName < out[j].TraitName })
	return out, nil
}

// normalizeMarkers validates every call; one bad marker rejects the whole report.
func normalizeMarkers(markers []types.Marker) (map[string]string, error) {
	if len(markers) == 0 {
		return nil, fmt.Errorf("%w: no markers", ErrInvalidGeneticData)
	}
	calls := make(map[string]string, len(markers))
	for i, mk := range markers {
		id := genetics.NormalizeMarkerID(mk.MarkerID)
		if id == "" {
			return nil, fmt.Errorf("%w: marker %d has no id", ErrInvalidGeneticData, i)
		}
		if strings.ContainsAny(id, " :|&") {
			return nil, fmt.Errorf("%w: marker id %q", ErrInvalidGeneticData, mk.MarkerID)
		}
		gt, err := genetics.NormalizeGenotype(mk.Genotype)
		if err != nil {
			return nil, fmt.Errorf("%w: marker %s: %v", ErrInvalidGeneticData, id, err)
		}
		if prev, dup := calls[id]; dup && prev != gt {
			return nil, fmt.Errorf("%w: marker %s has conflicting genotypes %s and %s", ErrInvalidGeneticData, id, prev, gt)
		}
		calls[id] = gt
	}
	return calls, nil
}
