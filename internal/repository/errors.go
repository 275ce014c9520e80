package repository

import "errors"

var (
	// ErrInvalidImageURL indicates a result URL that may not be fetched
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrHistoryEntryNotFound indicates a history index out of range
	ErrHistoryEntryNotFound = errors.New("history entry not found")

	// ErrCorruptHistory indicates a stored history value that does not decode
	ErrCorruptHistory = errors.New("stored history is corrupt")
)
