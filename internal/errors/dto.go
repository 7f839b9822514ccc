package errors

import (
	"github.com/cockroachdb/errors"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Kind          string         `json:"kind"`
	Display       string         `json:"message"`
	InternalError string         `json:"internal_error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// NewErrorResponse renders err in the shape upstream transports return to clients.
// The display message prefers the first hint and falls back to the error text.
func NewErrorResponse(err error) ErrorResponse {
	display := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		display = hints[0]
	}
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Kind:          Kind(err),
			Display:       display,
			InternalError: err.Error(),
		},
	}
}
