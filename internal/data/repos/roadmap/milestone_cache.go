package roadmap

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

type MilestoneCacheRepo interface {
	// Get returns nil, nil on a miss.
	Get(dbc dbctx.Context, childID string) (*types.MilestoneCache, error)
	Put(dbc dbctx.Context, row *types.MilestoneCache) error
}

type milestoneCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMilestoneCacheRepo(db *gorm.DB, log *logger.Logger) MilestoneCacheRepo {
	return &milestoneCacheRepo{db: db, log: log.With("repo", "MilestoneCacheRepo")}
}

func (r *milestoneCacheRepo) Get(dbc dbctx.Context, childID string) (*types.MilestoneCache, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	var out types.MilestoneCache
	err := dbc.Conn(r.db).Where("child_id = ?", childID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *milestoneCacheRepo) Put(dbc dbctx.Context, row *types.MilestoneCache) error {
	if row == nil || strings.TrimSpace(row.ChildID) == "" {
		return fmt.Errorf("missing child_id")
	}
	if row.ComputedAt.IsZero() {
		row.ComputedAt = time.Now().UTC()
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "child_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cache_key", "buckets", "computed_at"}),
		}).
		Create(row).Error
}
