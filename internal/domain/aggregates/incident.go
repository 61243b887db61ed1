package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
)

var IncidentAggregateContract = Contract{
	Name: "Incidents.IncidentAggregate",
	Tables: []string{
		incidents.Incident{}.TableName(),
		incidents.EngagementRecord{}.TableName(),
		incidents.Location{}.TableName(),
	},
	ReplaysConflicts: true,
	Notes:            "Deletes incident_reactions rows with the incident; the reaction service records them.",
}

// IncidentAggregate owns the incident lifecycle invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodePreconditionFailed, CodeRetryable, CodeInternal.
// Domain sentinels from package incidents stay reachable through errors.Is.
type IncidentAggregate interface {
	Aggregate

	// Create persists the location reference and the incident in one transaction.
	Create(ctx context.Context, in CreateIncidentInput) (CreateIncidentResult, error)

	// Engage records a confirm or deny by an actor at most once and applies the expiration rules.
	// An incident that already meets the deletion predicate is deleted and reported not found.
	Engage(ctx context.Context, in EngageInput) (EngageResult, error)

	// DeleteIfExpired removes the incident and its dependents when the deletion predicate holds.
	DeleteIfExpired(ctx context.Context, in DeleteIfExpiredInput) (DeleteIfExpiredResult, error)

	// PurgeExpired deletes up to Limit incidents matching the deletion predicate.
	PurgeExpired(ctx context.Context, in PurgeExpiredInput) (PurgeExpiredResult, error)
}

type CreateIncidentInput struct {
	Location *incidents.Location
	Incident *incidents.Incident
}

type CreateIncidentResult struct {
	Incident *incidents.Incident
	Location *incidents.Location
}

type EngageInput struct {
	IncidentID uuid.UUID
	ActorID    string
	Type       incidents.EngagementType
	At         time.Time
}

type EngageResult struct {
	Incident   *incidents.Incident
	Transition incidents.Transition
	// Repeated is set when the actor already held the same engagement and nothing changed.
	Repeated bool
	Attempts int
}

type DeleteIfExpiredInput struct {
	IncidentID uuid.UUID
	At         time.Time
}

type DeleteIfExpiredResult struct {
	IncidentID uuid.UUID
	DeletedAt  time.Time
}

type PurgeExpiredInput struct {
	At    time.Time
	Limit int
}

type PurgeExpiredResult struct {
	// Scanned is the number of candidates listed; it equals the limit when more may remain.
	Scanned int
	Deleted []uuid.UUID
}

func IncidentNotFound(op string, id uuid.UUID) error {
	return NewError(CodeNotFound, op, "incident "+id.String()+" not found", incidents.ErrIncidentNotFound)
}

func IncidentNotExpired(op string, id uuid.UUID) error {
	return NewError(CodePreconditionFailed, op, "incident "+id.String()+" is still active", incidents.ErrIncidentNotExpired)
}

func EngagementConflict(op string, id uuid.UUID, held incidents.EngagementType) error {
	return NewError(CodePreconditionFailed, op, "actor already recorded "+string(held)+" on incident "+id.String(), incidents.ErrEngagementConflict)
}

func ConcurrentModification(op string, id uuid.UUID, cause error) error {
	msg := "incident " + id.String() + " modified concurrently"
	if cause != nil {
		return NewError(CodeConflict, op, msg, &joined{primary: incidents.ErrConcurrentModification, cause: cause})
	}
	return NewError(CodeConflict, op, msg, incidents.ErrConcurrentModification)
}

func InvalidCoordinates(op string, cause error) error {
	if cause == nil {
		cause = incidents.ErrInvalidCoordinates
	}
	return NewError(CodeValidation, op, cause.Error(), cause)
}

// joined keeps a sentinel and the underlying cause both visible to errors.Is.
type joined struct {
	primary error
	cause   error
}

func (j *joined) Error() string   { return j.primary.Error() + ": " + j.cause.Error() }
func (j *joined) Unwrap() []error { return []error{j.primary, j.cause} }
