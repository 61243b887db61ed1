package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type nopGeocoder struct{}

func (nopGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) { return "", nil }

// NopGeocoder never resolves an address.
func NopGeocoder() Geocoder { return nopGeocoder{} }

type locationResolver struct {
	log      *logger.Logger
	geocoder Geocoder
	now      func() time.Time
}

// NewLocationResolver builds location rows for the incident aggregate, which persists them
// in the same transaction as the incident. Geocoding failures leave the address empty.
func NewLocationResolver(log *logger.Logger, geocoder Geocoder) LocationResolver {
	if geocoder == nil {
		geocoder = NopGeocoder()
	}
	return &locationResolver{
		log:      log.With("service", "LocationResolver"),
		geocoder: geocoder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *locationResolver) Resolve(ctx context.Context, lat, lon float64) (*incidents.Location, error) {
	if err := incidents.ValidatePoint(lat, lon); err != nil {
		return nil, err
	}
	address, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		r.log.Warn("Reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		address = ""
	}
	return &incidents.Location{
		ID:        uuid.New(),
		Lat:       lat,
		Lng:       lon,
		Address:   strings.TrimSpace(address),
		CreatedAt: r.now(),
	}, nil
}
