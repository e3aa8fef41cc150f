package types

import (
	"context"
	"errors"
	"fmt"
)

// Error codes surfaced to callers. These map onto HTTP statuses in the api
// layer; TIMEOUT is the only one callers may retry blindly.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeDuplicateArticle  = "DUPLICATE_ARTICLE"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeExtractionError   = "EXTRACTION_ERROR"
	CodeSnapshotError     = "SNAPSHOT_ERROR"
	CodeUploadError       = "UPLOAD_ERROR"
	CodeIntegrityMismatch = "INTEGRITY_MISMATCH"
	CodeTimeout           = "TIMEOUT"
)

// PipelineError is a typed pipeline failure carrying a taxonomy code.
type PipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError builds a PipelineError with the given code and message.
func NewError(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// WrapError builds a PipelineError around an underlying cause. A cause that
// is itself a context deadline/cancellation is reclassified as TIMEOUT so
// timed-out suspensions never masquerade as hard failures.
func WrapError(code, message string, err error) *PipelineError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = CodeTimeout
	}
	return &PipelineError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the taxonomy code from err, or "" when err carries none.
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
