package repository

import (
	"context"
	"fmt"

	"go-flying-image/internal/storage"
	"go-flying-image/pkg/imageref"
)

// URLValidator decides whether a remote URL may be fetched
type URLValidator interface {
	ValidateResultURL(imageURL string) error
}

// HTTPImageRepository implements ImageRepository using HTTP storage
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	validator URLValidator
}

// NewHTTPImageRepository creates a new HTTP-based image repository
func NewHTTPImageRepository(fetcher storage.ImageFetcher, validator URLValidator) *HTTPImageRepository {
	return &HTTPImageRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// Inline downloads a remote result and encodes it as a data URL.
// References that are already inline are returned unchanged.
func (r *HTTPImageRepository) Inline(ctx context.Context, ref string) (string, error) {
	if imageref.IsInline(ref) {
		return ref, nil
	}

	if err := r.validator.ValidateResultURL(ref); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	img, err := r.fetcher.FetchImage(ctx, ref)
	if err != nil {
		return "", err
	}

	return imageref.Encode(img.MimeType, img.Data), nil
}
