package roadmap

import (
	"time"

	"gorm.io/datatypes"
)

type Milestone struct {
	TraitName        string   `yaml:"trait_name" json:"trait_name"`
	GeneID           string   `yaml:"gene_id" json:"gene_id"`
	FocusDescription string   `yaml:"focus" json:"focus_description"`
	FoodExamples     []string `yaml:"foods" json:"food_examples,omitempty"`
}

// MilestoneBucket is derived data: one age range with the milestones that apply to a child.
type MilestoneBucket struct {
	AgeStartMonths int         `json:"age_start_months"`
	AgeEndMonths   int         `json:"age_end_months"`
	Label          string      `json:"label"`
	IsCurrent      bool        `json:"is_current"`
	IsPast         bool        `json:"is_past"`
	IsFuture       bool        `json:"is_future"`
	Summary        string      `json:"summary"`
	Milestones     []Milestone `json:"milestones"`
}

// Contains reports whether ageMonths falls in [start, end].
func (b MilestoneBucket) Contains(ageMonths int) bool {
	return ageMonths >= b.AgeStartMonths && ageMonths <= b.AgeEndMonths
}

// MilestoneCache stores computed bucket contents. Flags are re-derived on read.
type MilestoneCache struct {
	ChildID    string                               `gorm:"column:child_id;primaryKey;size:128" json:"child_id"`
	CacheKey   string                               `gorm:"column:cache_key;not null;size:128" json:"cache_key"`
	Buckets    datatypes.JSONSlice[MilestoneBucket] `gorm:"column:buckets;not null" json:"buckets"`
	ComputedAt time.Time                            `gorm:"column:computed_at;not null" json:"computed_at"`
}

func (MilestoneCache) TableName() string { return "milestone_cache" }
