package validation

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "go-flying-image/internal/errors"
)

// DefaultMaxImageSize is the upload limit in bytes (10 MiB)
const DefaultMaxImageSize int64 = 10 * 1024 * 1024

// ImageValidator checks user uploads before they are encoded
type ImageValidator struct {
	maxSize int64
}

// NewImageValidator creates a validator rejecting images of maxSize bytes
// or more. A non-positive maxSize uses DefaultMaxImageSize.
func NewImageValidator(maxSize int64) *ImageValidator {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return &ImageValidator{maxSize: maxSize}
}

// MaxSize returns the exclusive upload limit
func (v *ImageValidator) MaxSize() int64 {
	return v.maxSize
}

// CheckDeclared validates what the client declared, before any bytes are read
func (v *ImageValidator) CheckDeclared(declaredType string, size int64) *apperrors.AppError {
	if !isImageType(declaredType) && !isGenericType(declaredType) {
		return apperrors.NewInvalidImageError(apperrors.MsgInvalidImageType, nil)
	}
	if size >= v.maxSize {
		return apperrors.NewInvalidImageError(apperrors.MsgInvalidImageSize, nil)
	}
	return nil
}

// CheckContent sniffs the payload and returns its media type
func (v *ImageValidator) CheckContent(data []byte) (string, *apperrors.AppError) {
	if int64(len(data)) >= v.maxSize {
		return "", apperrors.NewInvalidImageError(apperrors.MsgInvalidImageSize, nil)
	}
	detected := mimetype.Detect(data).String()
	if !isImageType(detected) {
		return "", apperrors.NewInvalidImageError(apperrors.MsgInvalidImageType, nil)
	}
	return detected, nil
}

func isImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// isGenericType covers clients that do not declare a media type
func isGenericType(mimeType string) bool {
	t := strings.ToLower(strings.TrimSpace(mimeType))
	return t == "" || t == "application/octet-stream"
}
