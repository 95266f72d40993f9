// Package ring provides a fixed-size, concurrency-safe circular buffer used
// for pagepick's in-memory fetch and selection logs.
package ring

import "sync"

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 1000

// Buffer keeps the most recent entries up to a fixed size.
// The oldest entry is overwritten once the buffer is full.
type Buffer[T any] struct {
	entries []T
	maxSize int
	head    int   // next write position
	count   int64 // total entries written since the last Clear
	mu      sync.RWMutex
}

// Stats describes buffer occupancy.
type Stats struct {
	TotalEntries     int64 `json:"total_entries"`
	AvailableEntries int   `json:"available_entries"`
	MaxSize          int   `json:"max_size"`
	Dropped          int64 `json:"dropped"`
}

// New creates a buffer holding at most maxSize entries.
func New[T any](maxSize int) *Buffer[T] {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	return &Buffer[T]{
		entries: make([]T, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest one when full.
// It returns the 1-based sequence number of the entry.
func (b *Buffer[T]) Add(entry T) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.maxSize
	b.count++
	return b.count
}

// Snapshot returns the retained entries, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	return b.Filter(nil, 0)
}

// Filter returns retained entries for which keep returns true, oldest first.
// A nil keep matches everything. When limit > 0 only the newest limit matches
// are returned.
func (b *Buffer[T]) Filter(keep func(T) bool, limit int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	available := b.available()
	start := (b.head - available + b.maxSize) % b.maxSize

	results := make([]T, 0, available)
	for i := 0; i < available; i++ {
		entry := b.entries[(start+i)%b.maxSize]
		if keep == nil || keep(entry) {
			results = append(results, entry)
		}
	}
	if limit > 0 && len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results
}

// Len returns the number of retained entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available()
}

// Clear removes all entries.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.entries {
		b.entries[i] = zero
	}
	b.head = 0
	b.count = 0
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	available := b.available()
	return Stats{
		TotalEntries:     b.count,
		AvailableEntries: available,
		MaxSize:          b.maxSize,
		Dropped:          b.count - int64(available),
	}
}

func (b *Buffer[T]) available() int {
	return int(min(b.count, int64(b.maxSize)))
}
