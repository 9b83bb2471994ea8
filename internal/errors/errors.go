package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/defi-common/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryConfiguration represents a missing or malformed connection endpoint (fatal at startup)
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryConnectivity represents an unreachable store or a connection dropped mid-operation
	CategoryConnectivity ErrorCategory = "connectivity"
	// CategoryConstraintViolation represents a foreign-key, check, unique or not-null failure
	CategoryConstraintViolation ErrorCategory = "constraint_violation"
	// CategorySchemaConflict represents a document shape registration mismatch (fatal at startup)
	CategorySchemaConflict ErrorCategory = "schema_conflict"
	// CategoryDestructiveGuard represents a refused destructive schema operation
	CategoryDestructiveGuard ErrorCategory = "destructive_operation_guard"
	// CategoryValidation represents invalid input rejected before reaching a store
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategorySystem represents any other store or internal failure
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Startup errors

// NewConfigurationError creates a configuration error for one or more settings
func NewConfigurationError(message string, settings ...string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "CONFIGURATION_ERROR",
		Message:    message,
		Details: map[string]interface{}{
			"settings": settings,
		},
	}
}

// NewSchemaConflictError creates a document shape registration conflict error
func NewSchemaConflictError(collection string, reason string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySchemaConflict,
		StatusCode: http.StatusInternalServerError,
		Code:       "SCHEMA_CONFLICT",
		Message:    fmt.Sprintf("shape registration conflict on %s: %s", collection, reason),
		Cause:      cause,
		Details: map[string]interface{}{
			"collection": collection,
			"reason":     reason,
		},
	}
}

// NewDestructiveGuardError creates an error for a refused destructive operation
func NewDestructiveGuardError(operation string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDestructiveGuard,
		StatusCode: http.StatusForbidden,
		Code:       "DESTRUCTIVE_OPERATION_REFUSED",
		Message:    fmt.Sprintf("%s refused: %s", operation, reason),
		Details: map[string]interface{}{
			"operation": operation,
			"reason":    reason,
		},
	}
}

// Store errors. entity and action name the logical operation, e.g. "address_updates", "insert".

// NewConnectivityError creates a connectivity error
func NewConnectivityError(store, entity, action string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConnectivity,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "STORE_UNAVAILABLE",
		Message:    fmt.Sprintf("%s unavailable during %s %s", store, action, entity),
		Cause:      cause,
		Details:    operationDetails(store, entity, action),
	}
}

// NewConstraintViolationError creates a constraint violation error
func NewConstraintViolationError(store, entity, action, constraint string, cause error) *CategorizedError {
	details := operationDetails(store, entity, action)
	if constraint != "" {
		details["constraint"] = constraint
	}
	return &CategorizedError{
		Category:   CategoryConstraintViolation,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "CONSTRAINT_VIOLATION",
		Message:    fmt.Sprintf("constraint violated during %s %s", action, entity),
		Cause:      cause,
		Details:    details,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInvalidParameterError creates a validation error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewDatabaseError creates an uncategorized store error
func NewDatabaseError(store, entity, action string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("%s error during %s %s", store, action, entity),
		Cause:      cause,
		Details:    operationDetails(store, entity, action),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

func operationDetails(store, entity, action string) map[string]interface{} {
	return map[string]interface{}{
		"store":  store,
		"entity": entity,
		"action": action,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// IsCategory reports whether err carries the given category anywhere in its chain
func IsCategory(err error, category ErrorCategory) bool {
	var catErr *CategorizedError
	if !stderrors.As(err, &catErr) {
		return false
	}
	return catErr.Category == category
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable.
// Only connectivity failures qualify; the caller owns the retry/backoff policy.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryConnectivity
}

// IsUserError determines if an error is client-correctable (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500 &&
		catErr.Category != CategoryDestructiveGuard
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
