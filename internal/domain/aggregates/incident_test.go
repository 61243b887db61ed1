package aggregates

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
)

func TestIncidentErrorsKeepSentinels(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		err      error
		code     ErrorCode
		sentinel error
	}{
		{IncidentNotFound("op", id), CodeNotFound, incidents.ErrIncidentNotFound},
		{IncidentNotExpired("op", id), CodePreconditionFailed, incidents.ErrIncidentNotExpired},
		{EngagementConflict("op", id, incidents.EngagementDeny), CodePreconditionFailed, incidents.ErrEngagementConflict},
		{ConcurrentModification("op", id, errors.New("version mismatch")), CodeConflict, incidents.ErrConcurrentModification},
		{InvalidCoordinates("op", nil), CodeValidation, incidents.ErrInvalidCoordinates},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Fatalf("code: want=%s got=%s", tc.code, got)
		}
		if !errors.Is(tc.err, tc.sentinel) {
			t.Fatalf("errors.Is(%v, %v)=false", tc.err, tc.sentinel)
		}
	}
}

func TestIncidentContract(t *testing.T) {
	c := IncidentAggregateContract
	for _, table := range []string{"incidents", "incident_engagements", "locations"} {
		if !c.Writes(table) {
			t.Fatalf("contract: %s missing from write set %v", table, c.Tables)
		}
	}
	if c.Writes("incident_reactions") {
		t.Fatalf("contract: incident_reactions is written by the reaction service")
	}
	if !c.ReplaysConflicts {
		t.Fatalf("contract: engagement conflicts must be replayed")
	}
}
