package services

import (
	"context"

	"github.com/BabaYagaSystems/aroundly-backend/internal/clients/redis"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
)

// LocationResolver turns reported coordinates into the location reference stored with an incident.
type LocationResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (*incidents.Location, error)
}

// Geocoder looks up a human readable address. An empty result is allowed.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

type ObjectStore interface {
	UploadAll(ctx context.Context, files []incidents.MediaUpload) ([]incidents.MediaRef, error)
}

// Broadcaster fans out domain events. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type ReactionCounter = redis.ReactionCounter

const EventIncidentCreated = "incident.created"

// IncidentCreated is the payload published after a report is persisted.
type IncidentCreated struct {
	IncidentID string  `json:"incident_id"`
	AuthorID   string  `json:"author_id"`
	Title      string  `json:"title"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ExpiresAt  string  `json:"expires_at"`
}
