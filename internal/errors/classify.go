package errors

import (
	"errors"

	"go-flying-image/internal/capability"
)

// ClassifyGenerationError maps a transformation failure onto the closed
// taxonomy. Tagged capability failures keep their kind; anything untagged
// is unknown with the generic message.
func ClassifyGenerationError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var failure *capability.Failure
	if !errors.As(err, &failure) {
		return NewUnknownError("", err)
	}

	switch failure.Kind {
	case capability.FailureInsufficientCredits:
		return NewInsufficientCreditsError(err)
	case capability.FailureRateLimited:
		return NewRateLimitError(failure.RetryAfter, err)
	case capability.FailureNetwork:
		return NewNetworkError(err)
	default:
		return NewUnknownError(failure.Message, err)
	}
}
