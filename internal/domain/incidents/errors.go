package incidents

import "errors"

var (
	ErrIncidentNotFound       = errors.New("incident not found")
	ErrIncidentNotExpired     = errors.New("incident not expired")
	ErrInvalidCoordinates     = errors.New("invalid coordinates")
	ErrEngagementConflict     = errors.New("actor already engaged with the opposite type")
	ErrConcurrentModification = errors.New("incident modified concurrently")
	ErrActorRequired          = errors.New("actor id is required")
)
