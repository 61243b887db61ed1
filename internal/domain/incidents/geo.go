package incidents

import (
	"fmt"
	"math"
)

const (
	EarthRadiusMeters = 6371008.8

	MaxRadiusMeters = 50000.0
	MaxRangeResults = 100
)

// ValidateRange checks a range query before it reaches storage.
func ValidateRange(lat, lon, radiusMeters float64) error {
	if err := ValidatePoint(lat, lon); err != nil {
		return err
	}
	if math.IsNaN(radiusMeters) || radiusMeters <= 0 || radiusMeters > MaxRadiusMeters {
		return fmt.Errorf("%w: radius %v must be in (0, %v]", ErrInvalidCoordinates, radiusMeters, MaxRadiusMeters)
	}
	return nil
}

func ValidatePoint(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, lon)
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineMeters is the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// Box is a lat/lng rectangle that contains every point within a radius of a center.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox widens to the full longitude span near the poles or across the antimeridian.
func BoundingBox(lat, lon, radiusMeters float64) Box {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	b := Box{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		return b
	}
	cos := math.Cos(radians(lat))
	if cos <= 0 {
		return b
	}
	dLng := dLat / cos
	if lon-dLng < -180 || lon+dLng > 180 {
		return b
	}
	b.MinLng = lon - dLng
	b.MaxLng = lon + dLng
	return b
}
