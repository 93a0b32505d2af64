package core_errors

import (
	"errors"
	"net/http"
)

// Common errors
var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidCursor    = errors.New("invalid cursor")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrStorage          = errors.New("storage error")
	ErrUpstream         = errors.New("upstream error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRateLimited      = errors.New("rate limited")
	ErrTooLarge         = errors.New("file too large")
	ErrConflict         = errors.New("conflict")
)

// HTTPStatus maps an error from the messaging core to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCursor), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine readable code used in response envelopes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCursor):
		return "INVALID_CURSOR"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrTooLarge):
		return "FILE_TOO_LARGE"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrStorage):
		return "STORAGE_ERROR"
	default:
		return "UPSTREAM_ERROR"
	}
}

// PublicMessage hides internal detail for upstream failures.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusInternalServerError:
		return "request failed"
	case http.StatusBadGateway:
		return "file storage unavailable"
	default:
		return err.Error()
	}
}
