package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the billing core
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict  = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	// billing state errors
	ErrInvalidState      = new(ErrCodeInvalidState, "operation not allowed in current state")
	ErrInvalidTransition = new(ErrCodeInvalidTransition, "illegal state transition")
	ErrAlreadySettled    = new(ErrCodeAlreadySettled, "invoice already settled")

	// promotion constraint errors
	ErrAlreadyUsed = new(ErrCodeAlreadyUsed, "promotion already used")
	ErrExhausted   = new(ErrCodeExhausted, "promotion usage exhausted")
	ErrExpired     = new(ErrCodeExpired, "promotion expired")

	// processor errors
	ErrSignatureInvalid = new(ErrCodeSignatureInvalid, "webhook signature invalid")
	ErrIndeterminate    = new(ErrCodeIndeterminate, "processor outcome indeterminate")

	ErrConsistencyViolation = new(ErrCodeConsistencyViolation, "consistency violation")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrDatabase:             http.StatusInternalServerError,
		ErrNotFound:             http.StatusNotFound,
		ErrAlreadyExists:        http.StatusConflict,
		ErrVersionConflict:      http.StatusConflict,
		ErrValidation:           http.StatusBadRequest,
		ErrInvalidOperation:     http.StatusBadRequest,
		ErrPermissionDenied:     http.StatusForbidden,
		ErrSystem:               http.StatusInternalServerError,
		ErrInvalidState:         http.StatusConflict,
		ErrInvalidTransition:    http.StatusConflict,
		ErrAlreadySettled:       http.StatusConflict,
		ErrAlreadyUsed:          http.StatusUnprocessableEntity,
		ErrExhausted:            http.StatusUnprocessableEntity,
		ErrExpired:              http.StatusUnprocessableEntity,
		ErrSignatureInvalid:     http.StatusUnauthorized,
		ErrIndeterminate:        http.StatusGatewayTimeout,
		ErrConsistencyViolation: http.StatusInternalServerError,
	}

	// order matters for Kind, the billing kinds are checked before the generic ones
	kindOrder = []*InternalError{
		ErrSignatureInvalid,
		ErrIndeterminate,
		ErrConsistencyViolation,
		ErrInvalidTransition,
		ErrInvalidState,
		ErrAlreadySettled,
		ErrAlreadyUsed,
		ErrExhausted,
		ErrExpired,
		ErrNotFound,
		ErrAlreadyExists,
		ErrVersionConflict,
		ErrValidation,
		ErrInvalidOperation,
		ErrPermissionDenied,
		ErrDatabase,
		ErrSystem,
	}
)

const (
	ErrCodeSystemError          = "system_error"
	ErrCodeNotFound             = "not_found"
	ErrCodeAlreadyExists        = "already_exists"
	ErrCodeVersionConflict      = "version_conflict"
	ErrCodeValidation           = "validation_error"
	ErrCodeInvalidOperation     = "invalid_operation"
	ErrCodePermissionDenied     = "permission_denied"
	ErrCodeDatabase             = "database_error"
	ErrCodeInvalidState         = "invalid_state"
	ErrCodeInvalidTransition    = "invalid_transition"
	ErrCodeAlreadySettled       = "already_settled"
	ErrCodeAlreadyUsed          = "already_used"
	ErrCodeExhausted            = "exhausted"
	ErrCodeExpired              = "expired"
	ErrCodeSignatureInvalid     = "signature_invalid"
	ErrCodeIndeterminate        = "indeterminate"
	ErrCodeConsistencyViolation = "consistency_violation"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is reports whether err matches target, following cockroachdb marks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsAlreadySettled(err error) bool {
	return errors.Is(err, ErrAlreadySettled)
}

func IsAlreadyUsed(err error) bool {
	return errors.Is(err, ErrAlreadyUsed)
}

func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

func IsSignatureInvalid(err error) bool {
	return errors.Is(err, ErrSignatureInvalid)
}

// IsIndeterminate checks if a processor call neither succeeded nor failed.
// Callers must not advance local state on such errors.
func IsIndeterminate(err error) bool {
	return errors.Is(err, ErrIndeterminate)
}

func IsConsistencyViolation(err error) bool {
	return errors.Is(err, ErrConsistencyViolation)
}

// Kind returns the stable machine-readable code of err, system_error if unknown
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range kindOrder {
		if errors.Is(err, e) {
			return e.Code
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for _, e := range kindOrder {
		if errors.Is(err, e) {
			return statusCodeMap[e]
		}
	}
	return http.StatusInternalServerError
}
