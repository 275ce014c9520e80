package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entry(i int) HistoryEntry {
	return HistoryEntry{OriginalImage: fmt.Sprintf("in-%d", i), GeneratedImage: fmt.Sprintf("out-%d", i), Timestamp: int64(i)}
}

func TestPrependEntry_Cap(t *testing.T) {
	var list []HistoryEntry
	for i := 1; i <= 12; i++ {
		list = PrependEntry(list, entry(i))
		want := i
		if want > MaxHistoryEntries {
			want = MaxHistoryEntries
		}
		assert.Len(t, list, want)
		assert.Equal(t, entry(i), list[0], "newest entry first")
	}

	// entries 1 and 2 were evicted, 3..12 remain newest first
	for idx, e := range list {
		assert.Equal(t, entry(12-idx), e)
	}
}

func TestPrependEntry_DoesNotMutateInput(t *testing.T) {
	base := []HistoryEntry{entry(2), entry(1)}
	out := PrependEntry(base, entry(3))

	assert.Equal(t, []HistoryEntry{entry(2), entry(1)}, base)
	assert.Equal(t, []HistoryEntry{entry(3), entry(2), entry(1)}, out)
}

func TestHistoryEntry_Time(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	e := NewHistoryEntry("a", "b", at)
	assert.Equal(t, at.UnixMilli(), e.Timestamp)
	assert.True(t, e.Time().Equal(at))
}
