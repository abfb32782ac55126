package db

import (
	types "github.com/yungbote/bloomie-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Profile
		&types.ChildTraitSet{},
		&types.MilestoneCache{},

		// Append-only streams
		&types.LogStreamCursor{},
		&types.LogEntry{},
		&types.MedicalVisitLog{},
	)
}
