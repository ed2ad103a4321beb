package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrUnauthorized ErrorCode = "40100"
	ErrInvalidToken ErrorCode = "40101"
	ErrTokenExpired ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"
	ErrNotOwner  ErrorCode = "40302"

	// Resource errors (404xx)
	ErrNotFound ErrorCode = "40400"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// State errors (409xx)
	ErrConflict        ErrorCode = "40901"
	ErrInvalidState    ErrorCode = "40902"
	ErrLimitExceeded   ErrorCode = "40903"
	ErrInsufficientBal ErrorCode = "40904"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42902"

	// Server errors (500xx)
	ErrInternalServer ErrorCode = "50001"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError  `json:"error"`
	RequestID string    `json:"request_id"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds the response body for an API error
func NewErrorResponse(err *APIError, requestID, path string) ErrorResponse {
	return ErrorResponse{
		Error:     *err,
		RequestID: requestID,
		Path:      path,
		Timestamp: time.Now().UTC(),
	}
}

// Common errors
var (
	ErrUnauthorizedError = &APIError{
		Code:       ErrUnauthorized,
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidTokenError = &APIError{
		Code:       ErrInvalidToken,
		Message:    "Invalid access token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotOwnerError = &APIError{
		Code:       ErrNotOwner,
		Message:    "Resource belongs to another user",
		HTTPStatus: http.StatusForbidden,
	}

	ErrRateLimitedError = &APIError{
		Code:       ErrRateLimited,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewNotFoundError creates a not found error for the named resource
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       ErrNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewConflictError reports a duplicate or already-existing resource
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:       ErrConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewInvalidStateError reports a transition the resource's status does not allow
func NewInvalidStateError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidState,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewLimitExceededError reports a per-resource cap being hit
func NewLimitExceededError(message string) *APIError {
	return &APIError{
		Code:       ErrLimitExceeded,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientBalanceError reports a withdrawal above the available balance
func NewInsufficientBalanceError(message string) *APIError {
	return &APIError{
		Code:       ErrInsufficientBal,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// GetHTTPStatusFromCode returns the HTTP status for an error code
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrUnauthorized, ErrInvalidToken, ErrTokenExpired:
		return http.StatusUnauthorized
	case ErrForbidden, ErrNotOwner:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidRequest, ErrValidationFailed:
		return http.StatusBadRequest
	case ErrConflict, ErrInvalidState:
		return http.StatusConflict
	case ErrLimitExceeded, ErrInsufficientBal:
		return http.StatusUnprocessableEntity
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(message string) *APIError {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy of the error carrying details
func (e *APIError) WithDetails(details any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsClientError reports a 4xx error
func IsClientError(err *APIError) bool {
	return err.HTTPStatus >= 400 && err.HTTPStatus < 500
}

// IsServerError reports a 5xx error
func IsServerError(err *APIError) bool {
	return err.HTTPStatus >= 500 && err.HTTPStatus < 600
}
