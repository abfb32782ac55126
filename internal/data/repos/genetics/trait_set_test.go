package genetics

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/bloomie-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
)

func TestTraitSetRepoUpsertReplaces(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewTraitSetRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	got, err := repo.GetByChildID(dbc, "child-1")
	if err != nil || got != nil {
		t.Fatalf("GetByChildID(missing): want nil,nil got %+v,%v", got, err)
	}

	birth := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	first := &types.ChildTraitSet{
		ChildID:   "child-1",
		BirthDate: &birth,
		Traits: []types.MatchedTrait{
			{TraitName: "Eczema Risk", GeneID: "FLG", Category: types.CategoryImmunity},
			{TraitName: "Muscle Power", GeneID: "ACTN3", Category: types.CategoryGrowth},
		},
		MarkerCount: 12,
	}
	if err := repo.Upsert(dbc, first); err != nil {
		t.Fatalf("Upsert(first): %v", err)
	}

	second := &types.ChildTraitSet{
		ChildID:     "child-1",
		BirthDate:   &birth,
		Traits:      []types.MatchedTrait{{TraitName: "Language Development", GeneID: "FOXP2", Category: types.CategoryCognitive}},
		MarkerCount: 4,
	}
	if err := repo.Upsert(dbc, second); err != nil {
		t.Fatalf("Upsert(second): %v", err)
	}

	got, err = repo.GetByChildID(dbc, "child-1")
	if err != nil {
		t.Fatalf("GetByChildID: %v", err)
	}
	names := got.TraitNames()
	if len(names) != 1 || names[0] != "Language Development" {
		t.Fatalf("traits: want=[Language Development] got=%v", names)
	}
	if got.MarkerCount != 4 {
		t.Fatalf("marker_count: want=4 got=%d", got.MarkerCount)
	}
	if got.BirthDate == nil || !got.BirthDate.Equal(birth) {
		t.Fatalf("birth_date: want=%v got=%v", birth, got.BirthDate)
	}
}
