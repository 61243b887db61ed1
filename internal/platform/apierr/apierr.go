package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	pkgerrors "github.com/BabaYagaSystems/aroundly-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	// Retry tells clients the same request may succeed if sent again.
	Retry bool
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps service failures onto HTTP semantics. Domain sentinels pick the public code;
// the aggregate error code picks the status.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, incidents.ErrIncidentNotFound):
		return New(http.StatusNotFound, "incident_not_found", err)
	case errors.Is(err, incidents.ErrIncidentNotExpired):
		return New(http.StatusConflict, "incident_not_expired", err)
	case errors.Is(err, incidents.ErrEngagementConflict):
		return New(http.StatusConflict, "engagement_conflict", err)
	case errors.Is(err, incidents.ErrInvalidCoordinates):
		return New(http.StatusBadRequest, "invalid_coordinates", err)
	case errors.Is(err, incidents.ErrActorRequired), errors.Is(err, pkgerrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, incidents.ErrConcurrentModification):
		return &Error{Status: http.StatusServiceUnavailable, Code: "concurrent_modification", Retry: true, Err: err}
	case errors.Is(err, context.Canceled):
		return New(499, "request_canceled", err)
	}

	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return New(http.StatusBadRequest, "validation_failed", err)
	case domainagg.CodeNotFound:
		return New(http.StatusNotFound, "not_found", err)
	case domainagg.CodePreconditionFailed:
		return New(http.StatusConflict, "precondition_failed", err)
	case domainagg.CodeConflict, domainagg.CodeRetryable:
		return &Error{Status: http.StatusServiceUnavailable, Code: "temporarily_unavailable", Retry: true, Err: err}
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
