package app

import (
	"gorm.io/gorm"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type Repos struct {
	Incident   repos.IncidentRepo
	Engagement repos.EngagementRepo
	Reaction   repos.ReactionMirrorRepo
	Location   repos.LocationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Incident:   repos.NewIncidentRepo(db, log),
		Engagement: repos.NewEngagementRepo(db, log),
		Reaction:   repos.NewReactionMirrorRepo(db, log),
		Location:   repos.NewLocationRepo(db, log),
	}
}
