package services

import (
	"errors"
	"reflect"
	"testing"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

func newMatcher(t *testing.T) TraitMatcher {
	t.Helper()
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	m, err := NewTraitMatcher(kb)
	if err != nil {
		t.Fatalf("NewTraitMatcher: %v", err)
	}
	return m
}

func traitNames(ts []types.MatchedTrait) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.TraitName)
	}
	return out
}

func TestTraitMatcherMatchesAndSorts(t *testing.T) {
	m := newMatcher(t)
	markers := []types.Marker{
		{MarkerID: "rs6980093", Genotype: "GA"},  // Language Development, allele order normalized
		{MarkerID: "RS61816761", Genotype: "aa"}, // Eczema Risk
		{MarkerID: "rs4680", Genotype: "GG"},     // Stress Sensitivity requires AA
		{MarkerID: "rs999999", Genotype: "CT"},   // unknown marker ignored
	}
	got, err := m.Match(markers)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	want := []string{"Eczema Risk", "Language Development"}
	if !reflect.DeepEqual(traitNames(got), want) {
		t.Fatalf("Match: want=%v got=%v", want, traitNames(got))
	}
	if got[0].GeneID != "FLG" || got[1].GeneID != "FOXP2" {
		t.Fatalf("gene ids: got=%+v", got)
	}

	reversed := make([]types.Marker, len(markers))
	for i := range markers {
		reversed[len(markers)-1-i] = markers[i]
	}
	again, err := m.Match(reversed)
	if err != nil {
		t.Fatalf("Match(reversed): %v", err)
	}
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("Match is order dependent: %v vs %v", traitNames(got), traitNames(again))
	}
}

func TestTraitMatcherNoMatchIsEmptyNotError(t *testing.T) {
	m := newMatcher(t)
	got, err := m.Match([]types.Marker{{MarkerID: "rs1", Genotype: "AA"}})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Match: want empty non-nil slice got=%v", got)
	}
}

func TestTraitMatcherRejectsMalformedInput(t *testing.T) {
	m := newMatcher(t)
	cases := []struct {
		name    string
		markers []types.Marker
	}{
		{"empty", nil},
		{"missing id", []types.Marker{{MarkerID: " ", Genotype: "AA"}}},
		{"id with separator", []types.Marker{{MarkerID: "rs1:AA", Genotype: "AA"}}},
		{"bad genotype", []types.Marker{{MarkerID: "rs4680", Genotype: "XY"}}},
		{"too many alleles", []types.Marker{{MarkerID: "rs4680", Genotype: "AAA"}}},
		{"conflicting duplicate", []types.Marker{{MarkerID: "rs4680", Genotype: "AA"}, {MarkerID: "RS4680", Genotype: "AG"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Match(tc.markers)
			if !errors.Is(err, ErrInvalidGeneticData) {
				t.Fatalf("Match: want ErrInvalidGeneticData got=%v", err)
			}
		})
	}
}

func TestTraitMatcherAcceptsConsistentDuplicate(t *testing.T) {
	m := newMatcher(t)
	got, err := m.Match([]types.Marker{{MarkerID: "rs4680", Genotype: "AA"}, {MarkerID: "rs4680", Genotype: "aa"}})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 || got[0].TraitName != "Stress Sensitivity" {
		t.Fatalf("Match: got=%v", traitNames(got))
	}
}
