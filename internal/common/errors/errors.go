package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes
const (
	// 4xx Client Errors
	CodeMissingFields     = "MISSING_FIELDS"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNonceMismatch     = "NONCE_MISMATCH"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeAddressMismatch   = "ADDRESS_MISMATCH"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeChallengeNotFound = "CHALLENGE_NOT_FOUND"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeChallengeExpired  = "CHALLENGE_EXPIRED"
	CodeRateLimited       = "RATE_LIMITED"

	// 5xx Server Errors
	CodeInternal = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`

	// RetryAfter is sent as the Retry-After header when positive
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// As extracts an *AppError from anywhere in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Error constructors

func MissingFields(fields ...string) *AppError {
	e := &AppError{
		Code:       CodeMissingFields,
		Message:    "Required fields are missing",
		StatusCode: http.StatusBadRequest,
	}
	if len(fields) > 0 {
		e.Details = map[string]any{"fields": fields}
	}
	return e
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NonceMismatch() *AppError {
	return &AppError{
		Code:       CodeNonceMismatch,
		Message:    "Nonce or binding hash does not match the issued challenge",
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidSignature() *AppError {
	return &AppError{
		Code:       CodeInvalidSignature,
		Message:    "Signature is malformed or cannot be recovered",
		StatusCode: http.StatusBadRequest,
	}
}

func AddressMismatch() *AppError {
	return &AppError{
		Code:       CodeAddressMismatch,
		Message:    "Signature was not produced by the claimed wallet",
		StatusCode: http.StatusUnauthorized,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func ChallengeNotFound() *AppError {
	return &AppError{
		Code:       CodeChallengeNotFound,
		Message:    "No challenge issued for this identity",
		StatusCode: http.StatusNotFound,
	}
}

func MethodNotAllowed(method string) *AppError {
	return &AppError{
		Code:       CodeMethodNotAllowed,
		Message:    fmt.Sprintf("Method %s not allowed", method),
		StatusCode: http.StatusMethodNotAllowed,
	}
}

func ChallengeExpired() *AppError {
	return &AppError{
		Code:       CodeChallengeExpired,
		Message:    "Challenge has expired, request a new one",
		StatusCode: http.StatusGone,
	}
}

func RateLimited(retryAfter time.Duration) *AppError {
	seconds := int64((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many verification attempts, try again later",
		StatusCode: http.StatusTooManyRequests,
		Details:    map[string]any{"retry_after_seconds": seconds},
		RetryAfter: time.Duration(seconds) * time.Second,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}
