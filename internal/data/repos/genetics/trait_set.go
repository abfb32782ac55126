package genetics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type TraitSetRepo interface {
	// Upsert replaces the child's trait set wholesale.
	Upsert(dbc dbctx.Context, row *types.ChildTraitSet) error
	// GetByChildID returns nil, nil when the child has no trait set yet.
	GetByChildID(dbc dbctx.Context, childID string) (*types.ChildTraitSet, error)
}

type traitSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraitSetRepo(db *gorm.DB, log *logger.Logger) TraitSetRepo {
	return &traitSetRepo{db: db, log: log.With("repo", "TraitSetRepo")}
}

func (r *traitSetRepo) Upsert(dbc dbctx.Context, row *types.ChildTraitSet) error {
	if row == nil || strings.TrimSpace(row.ChildID) == "" {
		return fmt.Errorf("missing child_id")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.MatchedAt.IsZero() {
		row.MatchedAt = now
	}
	row.UpdatedAt = now
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "child_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"traits", "birth_date", "gender", "marker_count", "matched_at", "updated_at"}),
		}).
		Create(row).Error
}

func (r *traitSetRepo) GetByChildID(dbc dbctx.Context, childID string) (*types.ChildTraitSet, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	var out types.ChildTraitSet
	err := dbc.Conn(r.db).Where("child_id = ?", childID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
