package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bloomie-backend/internal/data/repos"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type Repos struct {
	TraitSet       repos.TraitSetRepo
	LogEntry       repos.LogEntryRepo
	MedicalLog     repos.MedicalLogRepo
	MilestoneCache repos.MilestoneCacheRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		TraitSet:       repos.NewTraitSetRepo(db, log),
		LogEntry:       repos.NewLogEntryRepo(db, log),
		MedicalLog:     repos.NewMedicalLogRepo(db, log),
		MilestoneCache: repos.NewMilestoneCacheRepo(db, log),
	}
}
