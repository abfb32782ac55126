package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/bloomie-backend/internal/data/repos/genetics"
	"github.com/yungbote/bloomie-backend/internal/data/repos/journal"
	"github.com/yungbote/bloomie-backend/internal/data/repos/roadmap"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type TraitSetRepo = genetics.TraitSetRepo
type LogEntryRepo = journal.LogEntryRepo
type MedicalLogRepo = journal.MedicalLogRepo
type MilestoneCacheRepo = roadmap.MilestoneCacheRepo

func NewTraitSetRepo(db *gorm.DB, log *logger.Logger) TraitSetRepo {
	return genetics.NewTraitSetRepo(db, log)
}

func NewLogEntryRepo(db *gorm.DB, log *logger.Logger) LogEntryRepo {
	return journal.NewLogEntryRepo(db, log)
}

func NewMedicalLogRepo(db *gorm.DB, log *logger.Logger) MedicalLogRepo {
	return journal.NewMedicalLogRepo(db, log)
}

func NewMilestoneCacheRepo(db *gorm.DB, log *logger.Logger) MilestoneCacheRepo {
	return roadmap.NewMilestoneCacheRepo(db, log)
}
