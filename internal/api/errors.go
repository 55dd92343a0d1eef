package api

import (
	stderrors "errors"
	"net/http"

	"github.com/openbuilders/sepa-collector/internal/errors"
)

type APIErrorCode string

const (
	InvalidJSON     APIErrorCode = "invalid_json"
	InvalidID       APIErrorCode = "invalid_id"
	InvalidAction   APIErrorCode = "invalid_action"
	InternalError   APIErrorCode = "internal_error"
	ServiceNotReady APIErrorCode = "not_ready"
)

// APIError represents a custom error with a code and description
type APIError struct {
	Code        APIErrorCode
	Description string
}

// Implement the error interface for APIError
func (e *APIError) Error() string {
	if e.Description != "" {
		return string(e.Code) + ": " + e.Description
	}
	return string(e.Code)
}

// statusOf maps an error to the HTTP status and the response error code.
func statusOf(err error) (int, string, string) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.Code == ServiceNotReady {
			return http.StatusServiceUnavailable, string(apiErr.Code), apiErr.Description
		}
		return http.StatusBadRequest, string(apiErr.Code), apiErr.Description
	}

	var se errors.ServiceError
	if stderrors.As(err, &se) {
		switch se.Code {
		case errors.CodePrecondition:
			return http.StatusPreconditionFailed, string(se.Code), se.Message
		case errors.CodeConflict:
			return http.StatusConflict, string(se.Code), se.Message
		case errors.CodeNotFound:
			return http.StatusNotFound, string(se.Code), se.Message
		case errors.CodeInvalidInput:
			return http.StatusBadRequest, string(se.Code), se.Message
		default:
			// data integrity failures are not the caller's fault
			return http.StatusInternalServerError, string(se.Code), ""
		}
	}

	return http.StatusInternalServerError, string(InternalError), ""
}
