package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the closed set of user-facing error categories
type ErrorType string

const (
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	ErrorTypeRateLimitExceeded   ErrorType = "rate_limit_exceeded"
	ErrorTypeNetwork             ErrorType = "network"
	ErrorTypeInvalidImage        ErrorType = "invalid_image"
	ErrorTypeUnknown             ErrorType = "unknown"
)

const (
	MsgInvalidImageType    = "Please select a valid image file (JPG, PNG, etc.)"
	MsgInvalidImageSize    = "Image size must be less than 10MB"
	MsgInsufficientCredits = "You don't have enough credits. Please upgrade your plan to continue."
	MsgNetwork             = "Network error. Please check your connection and try again."
	MsgGenerationFailed    = "Failed to generate image. Please try again."
)

// DefaultRetryAfter is assumed when a rate limit carries no retry hint
const DefaultRetryAfter = 60 * time.Second

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	RetryAfter *time.Duration `json:"retry_after,omitempty"`
	StatusCode int            `json:"status_code"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Dismissible reports whether the banner offers a dismiss action.
// Insufficient credits replaces it with an upgrade action.
func (e *AppError) Dismissible() bool {
	return e.Type != ErrorTypeInsufficientCredits
}

// OffersUpgrade reports whether the banner offers the subscription action
func (e *AppError) OffersUpgrade() bool {
	return e.Type == ErrorTypeInsufficientCredits
}

// NewInvalidImageError creates a new intake validation error
func NewInvalidImageError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidImage,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewInsufficientCreditsError creates a new out-of-credits error
func NewInsufficientCreditsError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientCredits,
		Message:    MsgInsufficientCredits,
		StatusCode: http.StatusPaymentRequired,
		Cause:      cause,
	}
}

// NewRateLimitError creates a new rate limit error. A missing or
// non-positive retryAfter is treated as absent: RetryAfter stays unset and
// the message assumes DefaultRetryAfter.
func NewRateLimitError(retryAfter *time.Duration, cause error) *AppError {
	if retryAfter != nil && *retryAfter <= 0 {
		retryAfter = nil
	}
	wait := DefaultRetryAfter
	if retryAfter != nil {
		wait = *retryAfter
	}
	return &AppError{
		Type:       ErrorTypeRateLimitExceeded,
		Message:    fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", RetrySeconds(wait)),
		RetryAfter: retryAfter,
		StatusCode: http.StatusTooManyRequests,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    MsgNetwork,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewUnknownError creates a new unknown error, falling back to the generic
// generation message when message is empty
func NewUnknownError(message string, cause error) *AppError {
	if message == "" {
		message = MsgGenerationFailed
	}
	return &AppError{
		Type:       ErrorTypeUnknown,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// RetrySeconds converts a wait to whole seconds, rounding up
func RetrySeconds(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
