package genetics

import (
	"fmt"
	"sort"
	"strings"
)

// Clause requires MarkerID to carry one of Genotypes.
type Clause struct {
	MarkerID  string
	Genotypes []string
}

// Matcher is a parsed matcher pattern: every clause must hold.
type Matcher struct {
	Clauses []Clause
}

// ParseMatcher parses "rs1:AA|AG&rs2:TT".
func ParseMatcher(pattern string) (Matcher, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Matcher{}, fmt.Errorf("empty matcher pattern")
	}
	var m Matcher
	for _, raw := range strings.Split(pattern, "&") {
		raw = strings.TrimSpace(raw)
		id, gts, ok := strings.Cut(raw, ":")
		if !ok {
			return Matcher{}, fmt.Errorf("matcher clause %q: missing ':'", raw)
		}
		id = NormalizeMarkerID(id)
		if id == "" {
			return Matcher{}, fmt.Errorf("matcher clause %q: missing marker id", raw)
		}
		c := Clause{MarkerID: id}
		for _, g := range strings.Split(gts, "|") {
			ng, err := NormalizeGenotype(g)
			if err != nil {
				return Matcher{}, fmt.Errorf("matcher clause %q: %w", raw, err)
			}
			c.Genotypes = append(c.Genotypes, ng)
		}
		m.Clauses = append(m.Clauses, c)
	}
	return m, nil
}

// Matches evaluates the matcher against normalized marker_id -> genotype calls.
func (m Matcher) Matches(calls map[string]string) bool {
	if len(m.Clauses) == 0 {
		return false
	}
	for _, c := range m.Clauses {
		got, ok := calls[c.MarkerID]
		if !ok {
			return false
		}
		hit := false
		for _, g := range c.Genotypes {
			if g == got {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func NormalizeMarkerID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeGenotype upper-cases and sorts alleles so "TC" and "CT" compare equal.
// Alleles are A, C, G, T plus I/D for indels.
func NormalizeGenotype(g string) (string, error) {
	g = strings.ToUpper(strings.TrimSpace(g))
	g = strings.NewReplacer("/", "", " ", "").Replace(g)
	if len(g) < 1 || len(g) > 2 {
		return "", fmt.Errorf("genotype %q: want one or two alleles", g)
	}
	alleles := []byte(g)
	for _, a := range alleles {
		switch a {
		case 'A', 'C', 'G', 'T', 'I', 'D':
		default:
			return "", fmt.Errorf("genotype %q: invalid allele %q", g, a)
		}
	}
	sort.Slice(alleles, func(i, j int) bool { return alleles[i] < alleles[j] })
	return string(alleles), nil
}
