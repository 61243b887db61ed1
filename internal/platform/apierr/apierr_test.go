package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	pkgerrors "github.com/BabaYagaSystems/aroundly-backend/internal/pkg/errors"
)

func TestFromMapsDomainErrors(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		retry  bool
	}{
		{"not found", domainagg.IncidentNotFound("op", id), http.StatusNotFound, "incident_not_found", false},
		{"not expired", domainagg.IncidentNotExpired("op", id), http.StatusConflict, "incident_not_expired", false},
		{"engagement conflict", domainagg.EngagementConflict("op", id, incidents.EngagementConfirm), http.StatusConflict, "engagement_conflict", false},
		{"coordinates", domainagg.InvalidCoordinates("op", nil), http.StatusBadRequest, "invalid_coordinates", false},
		{"concurrent", domainagg.ConcurrentModification("op", id, errors.New("stale")), http.StatusServiceUnavailable, "concurrent_modification", true},
		{"validation", domainagg.NewError(domainagg.CodeValidation, "op", "bad", nil), http.StatusBadRequest, "validation_failed", false},
		{"retryable", domainagg.NewError(domainagg.CodeRetryable, "op", "redis down", nil), http.StatusServiceUnavailable, "temporarily_unavailable", true},
		{"unauthorized", fmt.Errorf("%w: no subject", pkgerrors.ErrUnauthorized), http.StatusUnauthorized, "unauthorized", false},
		{"invalid argument", domainagg.NewError(domainagg.CodeValidation, "op", "too large", fmt.Errorf("%w: 30MB", pkgerrors.ErrInvalidArgument)), http.StatusBadRequest, "invalid_argument", false},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, c := range cases {
		got := From(c.err)
		if got.Status != c.status || got.Code != c.code || got.Retry != c.retry {
			t.Fatalf("%s: want=%d/%s/%v got=%d/%s/%v", c.name, c.status, c.code, c.retry, got.Status, got.Code, got.Retry)
		}
	}
	if From(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}

func TestFromKeepsExplicitAPIError(t *testing.T) {
	in := New(http.StatusTeapot, "teapot", errors.New("short and stout"))
	if got := From(in); got != in {
		t.Fatalf("explicit api error replaced: got=%+v", got)
	}
}
