package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-flying-image/internal/logger"
	"go-flying-image/internal/storage"
	"go-flying-image/pkg/models"
)

const defaultSyncTimeout = 30 * time.Second

// JobRunner runs sync jobs off the request path
type JobRunner interface {
	Submit(job func()) error
}

type historyUpdate func([]models.HistoryEntry) []models.HistoryEntry

type userHistory struct {
	mu      sync.Mutex
	loaded  bool
	entries []models.HistoryEntry
	version uint64
	status  SyncStatus

	// pending holds writes made while the stored value could not be read.
	// They are replayed onto the stored value once a load succeeds.
	pending []historyUpdate

	// saveMu orders backend writes of one user
	saveMu       sync.Mutex
	savedVersion uint64
}

// SyncedHistoryRepository implements HistoryRepository on top of a
// key-value backend. The first read of a user loads the stored value;
// every write bumps a version and queues a save of the latest value.
type SyncedHistoryRepository struct {
	store       storage.KeyValueStore
	jobs        JobRunner
	syncTimeout time.Duration

	mu    sync.Mutex
	users map[string]*userHistory
}

// NewSyncedHistoryRepository creates a history repository. With a nil
// runner saves happen synchronously.
func NewSyncedHistoryRepository(store storage.KeyValueStore, jobs JobRunner) *SyncedHistoryRepository {
	return &SyncedHistoryRepository{
		store:       store,
		jobs:        jobs,
		syncTimeout: defaultSyncTimeout,
		users:       make(map[string]*userHistory),
	}
}

func historyKey(userID string) string {
	return userID + ":" + HistoryKey
}

func (r *SyncedHistoryRepository) user(userID string) *userHistory {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &userHistory{status: SyncIdle}
		r.users[userID] = u
	}
	return u
}

// ensureLoaded must be called with u.mu held. A failed load leaves the
// user unloaded so the next read or write tries again. It reports whether
// pending writes were replayed and need a save.
func (r *SyncedHistoryRepository) ensureLoaded(ctx context.Context, userID string, u *userHistory) bool {
	if u.loaded {
		return false
	}
	u.status = SyncSyncing

	entries, err := r.load(ctx, userID)
	switch {
	case errors.Is(err, ErrCorruptHistory):
		// an unreadable value cannot be merged; the next save replaces it
		logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Stored generation history is corrupt, starting empty")
		entries = nil
	case err != nil:
		logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to load generation history")
		u.status = SyncError
		return false
	}

	u.loaded = true
	u.entries = entries
	if len(u.pending) == 0 {
		if err != nil {
			u.status = SyncError
		} else {
			u.status = SyncSynced
		}
		return false
	}

	for _, update := range u.pending {
		u.entries = update(u.entries)
	}
	u.pending = nil
	u.version++
	return true
}

func (r *SyncedHistoryRepository) load(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	data, err := r.store.Load(ctx, historyKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	if len(entries) > models.MaxHistoryEntries {
		entries = entries[:models.MaxHistoryEntries]
	}
	return entries, nil
}

func (r *SyncedHistoryRepository) Entries(ctx context.Context, userID string) []models.HistoryEntry {
	u := r.user(userID)
	u.mu.Lock()

	replayed := r.ensureLoaded(ctx, userID, u)
	entries := append([]models.HistoryEntry(nil), u.entries...)
	u.mu.Unlock()

	if replayed {
		r.schedule(userID, u)
	}
	return entries
}

func (r *SyncedHistoryRepository) Entry(ctx context.Context, userID string, index int) (models.HistoryEntry, error) {
	entries := r.Entries(ctx, userID)
	if index < 0 || index >= len(entries) {
		return models.HistoryEntry{}, ErrHistoryEntryNotFound
	}
	return entries[index], nil
}

func (r *SyncedHistoryRepository) Set(ctx context.Context, userID string, entries []models.HistoryEntry) {
	if len(entries) > models.MaxHistoryEntries {
		entries = entries[:models.MaxHistoryEntries]
	}
	next := append([]models.HistoryEntry(nil), entries...)

	r.write(ctx, userID, func([]models.HistoryEntry) []models.HistoryEntry {
		return append([]models.HistoryEntry(nil), next...)
	})
}

func (r *SyncedHistoryRepository) Prepend(ctx context.Context, userID string, entry models.HistoryEntry) []models.HistoryEntry {
	return r.write(ctx, userID, func(current []models.HistoryEntry) []models.HistoryEntry {
		return models.PrependEntry(current, entry)
	})
}

func (r *SyncedHistoryRepository) SyncStatus(userID string) SyncStatus {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// write applies update locally. While the stored value cannot be read the
// update is kept pending and nothing is saved.
func (r *SyncedHistoryRepository) write(ctx context.Context, userID string, update historyUpdate) []models.HistoryEntry {
	u := r.user(userID)

	u.mu.Lock()
	r.ensureLoaded(ctx, userID, u)
	if !u.loaded {
		u.entries = update(u.entries)
		u.pending = append(u.pending, update)
		u.status = SyncError
		result := append([]models.HistoryEntry(nil), u.entries...)
		u.mu.Unlock()

		logger.WithField("user_id", userID).Warn("Generation history not loaded, keeping write pending")
		return result
	}
	u.entries = update(u.entries)
	u.version++
	u.status = SyncSyncing
	result := append([]models.HistoryEntry(nil), u.entries...)
	u.mu.Unlock()

	r.schedule(userID, u)
	return result
}

func (r *SyncedHistoryRepository) schedule(userID string, u *userHistory) {
	job := func() { r.sync(userID, u) }

	if r.jobs == nil {
		job()
		return
	}
	if err := r.jobs.Submit(job); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Sync queue unavailable, saving history inline")
		job()
	}
}

// sync saves the latest value. Jobs queued behind a newer save find
// nothing left to do.
func (r *SyncedHistoryRepository) sync(userID string, u *userHistory) {
	u.saveMu.Lock()
	defer u.saveMu.Unlock()

	u.mu.Lock()
	if u.version <= u.savedVersion {
		u.mu.Unlock()
		return
	}
	snapshot := append([]models.HistoryEntry{}, u.entries...)
	version := u.version
	u.mu.Unlock()

	err := r.save(userID, snapshot)

	u.mu.Lock()
	defer u.mu.Unlock()

	if err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": userID,
			"version": version,
			"error":   err.Error(),
		}).Error("Failed to sync generation history")
		if u.version == version {
			u.status = SyncError
		}
		return
	}

	u.savedVersion = version
	if u.version == version {
		u.status = SyncSynced
	}
}

func (r *SyncedHistoryRepository) save(userID string, entries []models.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.syncTimeout)
	defer cancel()

	return r.store.Save(ctx, historyKey(userID), data)
}
