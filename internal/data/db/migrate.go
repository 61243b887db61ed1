package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Location{},
		&types.Incident{},
		&types.EngagementRecord{},
		&types.ReactionMembership{},
	)
}

// EnsureIncidentIndexes adds the indexes AutoMigrate cannot express.
func EnsureIncidentIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	// Sweeper scans rows that are either over the deny streak or past expiry.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_incident_deletable
		ON incidents(expires_at)
		WHERE consecutive_denies < 3;
	`).Error; err != nil {
		return fmt.Errorf("create idx_incident_deletable: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_incident_reactions_incident ON incident_reactions(incident_id, type);`).Error; err != nil {
		return fmt.Errorf("create idx_incident_reactions_incident: %w", err)
	}
	return nil
}
