package repository

import (
	"context"

	"go-flying-image/pkg/models"
)

// SyncStatus reports how the in-memory history relates to the backend copy
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// HistoryKey is the key the history value is stored under, per user
const HistoryKey = "generation-history"

// HistoryRepository keeps the generation history of each user.
// Reads serve the in-memory value; writes apply immediately and are
// persisted in the background.
type HistoryRepository interface {
	// Entries returns the history, most recent first
	Entries(ctx context.Context, userID string) []models.HistoryEntry

	// Entry returns the entry at index or ErrHistoryEntryNotFound
	Entry(ctx context.Context, userID string, index int) (models.HistoryEntry, error)

	// Set replaces the history
	Set(ctx context.Context, userID string, entries []models.HistoryEntry)

	// Prepend inserts entry first, evicting beyond the cap, and returns the new history
	Prepend(ctx context.Context, userID string, entry models.HistoryEntry) []models.HistoryEntry

	// SyncStatus returns the backend sync status
	SyncStatus(userID string) SyncStatus
}

// ImageRepository turns result references into self-contained data URLs
type ImageRepository interface {
	Inline(ctx context.Context, ref string) (string, error)
}
