package repos

import (
	"gorm.io/gorm"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type IncidentRepo = incidents.IncidentRepo
type EngagementRepo = incidents.EngagementRepo
type ReactionMirrorRepo = incidents.ReactionMirrorRepo
type LocationRepo = incidents.LocationRepo

type RangeQuery = incidents.RangeQuery
type RangeHit = incidents.RangeHit

func NewIncidentRepo(db *gorm.DB, baseLog *logger.Logger) IncidentRepo {
	return incidents.NewIncidentRepo(db, baseLog)
}
func NewEngagementRepo(db *gorm.DB, baseLog *logger.Logger) EngagementRepo {
	return incidents.NewEngagementRepo(db, baseLog)
}
func NewReactionMirrorRepo(db *gorm.DB, baseLog *logger.Logger) ReactionMirrorRepo {
	return incidents.NewReactionMirrorRepo(db, baseLog)
}
func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	return incidents.NewLocationRepo(db, baseLog)
}
