package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/bloomie-backend/internal/domain"
)

func SeedTraitSet(tb testing.TB, ctx context.Context, tx *gorm.DB, childID string, birth time.Time, traits ...types.MatchedTrait) *types.ChildTraitSet {
	tb.Helper()
	now := time.Now().UTC()
	b := birth.UTC()
	row := &types.ChildTraitSet{
		ChildID:     childID,
		Traits:      traits,
		BirthDate:   &b,
		MarkerCount: len(traits),
		MatchedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed trait set: %v", err)
	}
	return row
}
