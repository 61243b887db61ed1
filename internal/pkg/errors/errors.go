// Package errors holds sentinels shared by adapters that sit outside the incident domain.
// Domain failures use the coded errors in domain/aggregates instead.
package errors

import "errors"

var (
	// ErrUnauthorized wraps bearer token failures; it renders as 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument wraps request input an adapter refuses, such as oversized media.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable marks an optional backend that is not configured in this process.
	ErrUnavailable = errors.New("unavailable")
)
