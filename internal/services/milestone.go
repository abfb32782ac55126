package services

import (
	"fmt"
	"strings"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

// MilestoneComputer is a pure function of (trait keys, age in months).
// Trait keys may be trait names or gene ids. An age below zero means unknown:
// buckets are returned without current/past/future flags.
type MilestoneComputer interface {
	Compute(traitKeys []string, ageMonths int) []types.MilestoneBucket
	// ApplyAge re-derives the age flags and summaries on a computed copy.
	ApplyAge(buckets []types.MilestoneBucket, ageMonths int) []types.MilestoneBucket
	// CurrentRange returns the table bucket containing ageMonths.
	CurrentRange(ageMonths int) (knowledge.AgeBucket, bool)
}

type milestoneComputer struct {
	table knowledge.MilestoneTable
}

func NewMilestoneComputer(kb *knowledge.Base) MilestoneComputer {
	return &milestoneComputer{table: kb.Milestones}
}

func (m *milestoneComputer) Compute(traitKeys []string, ageMonths int) []types.MilestoneBucket {
	keys := make(map[string]bool, len(traitKeys))
	for _, k := range traitKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys[k] = true
		}
	}
	out := make([]types.MilestoneBucket, 0, len(m.table.Buckets))
	// Buckets are sorted by start at load.
	for _, bk := range m.table.Buckets {
		b := types.MilestoneBucket{AgeStartMonths: bk.Start, AgeEndMonths: bk.End, Label: bk.Label}
		for _, row := range m.table.Rows {
			if row.Start != bk.Start || row.End != bk.End {
				continue
			}
			if !keys[strings.ToLower(row.TraitName)] && !keys[strings.ToLower(row.GeneID)] {
				continue
			}
			b.Milestones = append(b.Milestones, types.Milestone{
				TraitName:        row.TraitName,
				GeneID:           row.GeneID,
				FocusDescription: row.Focus,
				FoodExamples:     append([]string(nil), row.Foods...),
			})
		}
		if len(b.Milestones) > 0 {
			out = append(out, b)
		}
	}
	return m.ApplyAge(out, ageMonths)
}

func (m *milestoneComputer) ApplyAge(buckets []types.MilestoneBucket, ageMonths int) []types.MilestoneBucket {
	out := make([]types.MilestoneBucket, len(buckets))
	for i, b := range buckets {
		b.Milestones = append([]types.Milestone(nil), b.Milestones...)
		b.IsCurrent, b.IsPast, b.IsFuture = false, false, false
		if ageMonths >= 0 {
			b.IsCurrent = b.Contains(ageMonths)
			b.IsPast = ageMonths > b.AgeEndMonths
			b.IsFuture = ageMonths < b.AgeStartMonths
		}
		b.Summary = bucketSummary(b)
		out[i] = b
	}
	return out
}

func (m *milestoneComputer) CurrentRange(ageMonths int) (knowledge.AgeBucket, bool) {
	for _, bk := range m.table.Buckets {
		if ageMonths >= bk.Start && ageMonths <= bk.End {
			return bk, true
		}
	}
	return knowledge.AgeBucket{}, false
}

func bucketSummary(b types.MilestoneBucket) string {
	names := make([]string, 0, len(b.Milestones))
	for _, ms := range b.Milestones {
		names = append(names, ms.TraitName)
	}
	status := ""
	switch {
	case b.IsCurrent:
		status = " (current age)"
	case b.IsPast:
		status = " (completed)"
	case b.IsFuture:
		status = " (upcoming)"
	}
	return fmt.Sprintf("%s%s: focus on %s", b.Label, status, strings.Join(names, ", "))
}
