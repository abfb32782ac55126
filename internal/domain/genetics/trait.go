package genetics

import (
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	CategoryCognitive = "Cognitive & Behavioral"
	CategoryImmunity  = "Immunity & Resilience"
	CategoryGrowth    = "Growth & Development"
)

// TraitReference is one row of the static trait knowledge base.
type TraitReference struct {
	GeneID         string `yaml:"gene_id" json:"gene_id"`
	TraitName      string `yaml:"trait_name" json:"trait_name"`
	Category       string `yaml:"category" json:"category"`
	MatcherPattern string `yaml:"matcher" json:"matcher_pattern"`
	Description    string `yaml:"description" json:"description"`
	Guidance       string `yaml:"guidance" json:"guidance,omitempty"`
}

// Marker is a single parsed genotype call: an rs identifier plus a two-allele code.
type Marker struct {
	MarkerID string `json:"marker_id"`
	Genotype string `json:"genotype"`
}

type MatchedTrait struct {
	TraitName   string `json:"trait_name"`
	GeneID      string `json:"gene_id"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// ChildTraitSet is recomputed wholesale on every report ingestion.
type ChildTraitSet struct {
	ChildID     string                               `gorm:"column:child_id;primaryKey;size:128" json:"child_id"`
	Traits      datatypes.JSONSlice[MatchedTrait]    `gorm:"column:traits;not null" json:"traits"`
	BirthDate   *time.Time                           `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Gender      string                               `gorm:"column:gender;size:32" json:"gender,omitempty"`
	MarkerCount int                                  `gorm:"column:marker_count;not null" json:"marker_count"`
	MatchedAt   time.Time                            `gorm:"column:matched_at;not null" json:"matched_at"`
	CreatedAt   time.Time                            `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                            `gorm:"not null" json:"updated_at"`
}

func (ChildTraitSet) TableName() string { return "child_trait_set" }

// TraitNames returns the trait names in stable sorted order.
func (s *ChildTraitSet) TraitNames() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Traits))
	for _, t := range s.Traits {
		out = append(out, t.TraitName)
	}
	sort.Strings(out)
	return out
}

// Lookup finds a trait by trait name or gene id, case-insensitively.
func (s *ChildTraitSet) Lookup(key string) (MatchedTrait, bool) {
	if s == nil {
		return MatchedTrait{}, false
	}
	key = strings.TrimSpace(key)
	for _, t := range s.Traits {
		if strings.EqualFold(t.TraitName, key) || strings.EqualFold(t.GeneID, key) {
			return t, true
		}
	}
	return MatchedTrait{}, false
}

// AgeMonths returns whole months between the birth date and now, or -1 when unknown.
func (s *ChildTraitSet) AgeMonths(now time.Time) int {
	if s == nil || s.BirthDate == nil {
		return -1
	}
	return MonthsBetween(*s.BirthDate, now)
}

func MonthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
