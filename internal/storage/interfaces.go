package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the key has never been saved
var ErrNotFound = errors.New("key not found")

// KeyValueStore is the synchronised key-value capability backing history.
// Conflict resolution is the backend's business; Save is last-write-wins.
type KeyValueStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}
