package api

import (
	"errors"
	"net/http"

	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/services"
)

// apiError is a status/code/message triple written by writeError, grounded
// on the teacher's internal/server/response.go ErrorResponse envelope
// (same {error: {code, message}} shape, adapted from the teacher's fixed
// error-code constants to parley's service-layer sentinels).
type apiError struct {
	status  int
	code    string
	message string
}

// mapServiceError maps a service-layer error to the HTTP status/code/message
// written back to the caller.
func mapServiceError(err error) apiError {
	var validErr *perrors.ValidationError
	if errors.As(err, &validErr) {
		return apiError{http.StatusBadRequest, "INVALID_REQUEST", validErr.Error()}
	}
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return apiError{http.StatusNotFound, "NOT_FOUND", "resource not found"}
	case errors.Is(err, perrors.ErrAlreadyExists):
		return apiError{http.StatusConflict, "ALREADY_EXISTS", "resource already exists"}
	case errors.Is(err, services.ErrBadCredentials):
		return apiError{http.StatusUnauthorized, "BAD_CREDENTIALS", "bad credentials"}
	case errors.Is(err, services.ErrForbiddenDemo):
		return apiError{http.StatusForbidden, "DEMO_READ_ONLY", "demo object is read-only"}
	case errors.Is(err, services.ErrTokenInUse):
		return apiError{http.StatusConflict, "TOKEN_IN_USE", "token is in use by a project"}
	}
	return apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"}
}
