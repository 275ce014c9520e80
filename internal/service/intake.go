package service

import (
	"fmt"
	"io"
	"mime/multipart"

	apperrors "go-flying-image/internal/errors"
	"go-flying-image/pkg/imageref"
	"go-flying-image/pkg/validation"
)

// Intake turns an uploaded file into an inline image reference
type Intake struct {
	validator *validation.ImageValidator
}

func NewIntake(validator *validation.ImageValidator) *Intake {
	return &Intake{validator: validator}
}

// Encode validates an upload and returns it as a data URL. A nil or empty
// file yields an empty reference and no error.
func (in *Intake) Encode(file *multipart.FileHeader) (string, *apperrors.AppError) {
	if file == nil || file.Size == 0 {
		return "", nil
	}

	if appErr := in.validator.CheckDeclared(file.Header.Get("Content-Type"), file.Size); appErr != nil {
		return "", appErr
	}

	f, err := file.Open()
	if err != nil {
		return "", apperrors.NewInvalidImageError(apperrors.MsgInvalidImageType, fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, in.validator.MaxSize()))
	if err != nil {
		return "", apperrors.NewInvalidImageError(apperrors.MsgInvalidImageType, fmt.Errorf("read upload: %w", err))
	}

	mimeType, appErr := in.validator.CheckContent(data)
	if appErr != nil {
		return "", appErr
	}

	return imageref.Encode(mimeType, data), nil
}
