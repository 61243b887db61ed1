package incidents

import (
	"time"

	"github.com/google/uuid"
)

type EngagementType string

const (
	EngagementConfirm EngagementType = "confirm"
	EngagementDeny    EngagementType = "deny"
)

func (t EngagementType) Valid() bool {
	return t == EngagementConfirm || t == EngagementDeny
}

// EngagementRecord is the ledger row that remembers how an actor engaged with an incident.
// (incident_id, actor_id) is unique.
type EngagementRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentID uuid.UUID      `gorm:"type:uuid;column:incident_id;not null;uniqueIndex:idx_incident_engagement_actor,priority:1" json:"incident_id"`
	ActorID    string         `gorm:"column:actor_id;not null;uniqueIndex:idx_incident_engagement_actor,priority:2" json:"actor_id"`
	Type       EngagementType `gorm:"column:type;not null" json:"type"`
	EngagedAt  time.Time      `gorm:"column:engaged_at;not null" json:"engaged_at"`
}

func (EngagementRecord) TableName() string { return "incident_engagements" }

func NewEngagementRecord(incidentID uuid.UUID, actorID string, t EngagementType, now time.Time) *EngagementRecord {
	return &EngagementRecord{
		ID:         uuid.New(),
		IncidentID: incidentID,
		ActorID:    actorID,
		Type:       t,
		EngagedAt:  now.UTC(),
	}
}
