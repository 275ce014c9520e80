package models

import "time"

// MaxHistoryEntries caps the per-user generation history
const MaxHistoryEntries = 10

// HistoryEntry is one completed generation. Images are data URLs or remote
// URLs; Timestamp is Unix milliseconds.
type HistoryEntry struct {
	OriginalImage  string `json:"originalImage"`
	GeneratedImage string `json:"generatedImage"`
	Timestamp      int64  `json:"timestamp"`
}

// NewHistoryEntry stamps an entry with the given time
func NewHistoryEntry(original, generated string, at time.Time) HistoryEntry {
	return HistoryEntry{
		OriginalImage:  original,
		GeneratedImage: generated,
		Timestamp:      at.UnixMilli(),
	}
}

// Time returns the creation time of the entry
func (e HistoryEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// PrependEntry returns a new slice with entry first and at most
// MaxHistoryEntries elements. The input slice is not modified.
func PrependEntry(entries []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	n := len(entries) + 1
	if n > MaxHistoryEntries {
		n = MaxHistoryEntries
	}
	out := make([]HistoryEntry, 0, n)
	out = append(out, entry)
	out = append(out, entries[:n-1]...)
	return out
}
