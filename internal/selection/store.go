// Package selection keeps the elements picked in the builder: a bounded
// in-memory log relayed from the host page, with a live WebSocket feed.
package selection

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/standardbeagle/pagepick/internal/protocol"
	"github.com/standardbeagle/pagepick/internal/ring"
)

// loadTTL is how long an idle page load keeps its seq bookkeeping.
const loadTTL = 30 * time.Minute

// Record is one stored selection.
type Record struct {
	ID         int64                `json:"id"`
	ReceivedAt time.Time            `json:"received_at"`
	PageURL    string               `json:"page_url,omitempty"`
	LoadID     string               `json:"load_id,omitempty"`
	Seq        int64                `json:"seq"`
	Data       protocol.ElementData `json:"data"`
}

// Filter narrows Query. Zero fields match everything.
type Filter struct {
	// TagName matches case-insensitively.
	TagName string
	// Selector matches as a substring.
	Selector string
	// PageURL matches exactly.
	PageURL string
	Since   time.Time
	Limit   int
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r Record) bool {
	if f.TagName != "" && !strings.EqualFold(f.TagName, r.Data.TagName) {
		return false
	}
	if f.Selector != "" && !strings.Contains(r.Data.Selector, f.Selector) {
		return false
	}
	if f.PageURL != "" && f.PageURL != r.PageURL {
		return false
	}
	if !f.Since.IsZero() && r.ReceivedAt.Before(f.Since) {
		return false
	}
	return true
}

// Stats describes the selection log.
type Stats struct {
	ring.Stats
	// Gaps counts seq numbers that never arrived, summed over page loads.
	Gaps int64 `json:"gaps"`
	// OutOfOrder counts selections whose seq did not advance.
	OutOfOrder int64 `json:"out_of_order"`
	Loads      int   `json:"loads"`
}

// Store is the bounded selection log.
type Store struct {
	buf    *ring.Buffer[Record]
	nextID atomic.Int64

	// lastSeq per load id, expired lazily.
	loads *cache.Cache

	mu         sync.Mutex
	gaps       int64
	outOfOrder int64

	now func() time.Time
}

// NewStore creates a store keeping at most size records.
func NewStore(size int) *Store {
	return &Store{
		buf:   ring.New[Record](size),
		loads: cache.New(loadTTL, 0),
		now:   time.Now,
	}
}

// BeginLoad starts seq accounting for a fresh page load.
func (s *Store) BeginLoad(loadID string) {
	if loadID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads.SetDefault(loadID, int64(0))
}

// Add stores msg as selected on pageURL during loadID and returns the record.
func (s *Store) Add(pageURL, loadID string, msg *protocol.ElementSelected) Record {
	rec := Record{
		ID:         s.nextID.Add(1),
		ReceivedAt: s.now(),
		PageURL:    pageURL,
		LoadID:     loadID,
		Seq:        msg.Seq,
		Data:       msg.Data,
	}
	s.track(loadID, msg.Seq)
	s.buf.Add(rec)
	return rec
}

func (s *Store) track(loadID string, seq int64) {
	if loadID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var last int64
	if v, ok := s.loads.Get(loadID); ok {
		last = v.(int64)
	}
	switch {
	case seq <= last:
		s.outOfOrder++
		return
	case seq > last+1:
		s.gaps += seq - last - 1
	}
	s.loads.SetDefault(loadID, seq)

	if s.nextID.Load()%256 == 0 {
		s.loads.DeleteExpired()
	}
}

// Query returns matching records, oldest first.
func (s *Store) Query(f Filter) []Record {
	return s.buf.Filter(f.Matches, f.Limit)
}

// Clear drops all records and seq bookkeeping.
func (s *Store) Clear() {
	s.buf.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads.Flush()
	s.gaps = 0
	s.outOfOrder = 0
}

// Stats returns log statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Stats:      s.buf.Stats(),
		Gaps:       s.gaps,
		OutOfOrder: s.outOfOrder,
		Loads:      s.loads.ItemCount(),
	}
}
