// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent reporting to callers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeConfiguration          = "CONFIGURATION_ERROR"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodePeriodClosed           = "PERIOD_CLOSED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Warning-level conditions surfaced in operation results
	CodeMissingPriorSnapshot = "MISSING_PRIOR_SNAPSHOT"

	// Authorization errors (403)
	CodeForbidden = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict        = "CONFLICT"
	CodeDuplicate       = "DUPLICATE_ENTRY"
	CodeDuplicatePeriod = "DUPLICATE_PERIOD"
)

// Severity levels. Most errors are SeverityError; warning-level conditions
// (missing prior snapshot) are returned inside operation results, never
// swallowed, and never abort the operation on their own.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for callers.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Severity is "error" unless the condition is advisory
	Severity string `json:"severity,omitempty"`

	// Details contains additional context (field errors, item lists, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code for API callers
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// IsWarning reports whether the condition is advisory rather than fatal.
func (e *AppError) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewConfiguration creates an error for missing or unresolvable
// unit-of-measure or hotel configuration. Never defaulted, always fatal
// to the operation that hit it.
func NewConfiguration(message string) *AppError {
	return &AppError{
		Code:       CodeConfiguration,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidStateTransition creates an error for a forbidden lifecycle
// transition (approving a non-draft stocktake, reopening an open period).
func NewInvalidStateTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("%s cannot transition from %s to %s", entity, from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "from": from, "to": to},
	}
}

// NewDuplicatePeriod creates an error for overlapping period creation.
func NewDuplicatePeriod(hotelID string, start, end string) *AppError {
	return &AppError{
		Code:       CodeDuplicatePeriod,
		Message:    "an overlapping period already exists for this hotel",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"hotel_id": hotelID, "start_date": start, "end_date": end},
	}
}

// NewMissingPriorSnapshot creates the warning-level condition raised when
// rollover finds no prior closing balance for an item. It is surfaced in
// the operation result, not returned as a failure.
func NewMissingPriorSnapshot(itemSKU string, periodStart string) *AppError {
	return &AppError{
		Code:       CodeMissingPriorSnapshot,
		Message:    fmt.Sprintf("no prior closing snapshot for item %s; opening set to zero", itemSKU),
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusOK,
		Details:    map[string]any{"item_sku": itemSKU, "period_start": periodStart},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewPeriodClosed creates error when trying to modify closed period data
func NewPeriodClosed(period string) *AppError {
	return &AppError{
		Code:       CodePeriodClosed,
		Message:    fmt.Sprintf("Period %s is closed for modifications", period),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"period": period},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return hasCode(err, CodeConcurrentModification)
}

// IsConfiguration checks if error is CodeConfiguration
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsInvalidStateTransition checks if error is CodeInvalidStateTransition
func IsInvalidStateTransition(err error) bool {
	return hasCode(err, CodeInvalidStateTransition)
}

// IsDuplicatePeriod checks if error is CodeDuplicatePeriod
func IsDuplicatePeriod(err error) bool {
	return hasCode(err, CodeDuplicatePeriod)
}

// IsMissingPriorSnapshot checks if error is CodeMissingPriorSnapshot
func IsMissingPriorSnapshot(err error) bool {
	return hasCode(err, CodeMissingPriorSnapshot)
}

// IsPeriodClosed checks if error is CodePeriodClosed
func IsPeriodClosed(err error) bool {
	return hasCode(err, CodePeriodClosed)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
