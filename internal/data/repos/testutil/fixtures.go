package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
)

// SeedIncident inserts an incident at (lat, lng) created at now.
func SeedIncident(tb testing.TB, ctx context.Context, tx *gorm.DB, lat, lng float64, now time.Time) *types.Incident {
	tb.Helper()
	loc := &types.Location{ID: uuid.New(), Lat: lat, Lng: lng, CreatedAt: now.UTC()}
	if err := tx.WithContext(ctx).Create(loc).Error; err != nil {
		tb.Fatalf("seed location: %v", err)
	}
	inc := types.NewIncident(types.NewIncidentParams{
		AuthorID:   "author-" + uuid.NewString()[:8],
		LocationID: loc.ID,
		Title:      "seeded",
		Lat:        lat,
		Lng:        lng,
	}, now)
	if err := tx.WithContext(ctx).Create(inc).Error; err != nil {
		tb.Fatalf("seed incident: %v", err)
	}
	return inc
}
