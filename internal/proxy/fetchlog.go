package proxy

import (
	"strings"
	"time"

	"github.com/standardbeagle/pagepick/internal/ring"
)

// FetchRecord describes one upstream fetch.
type FetchRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Target    string        `json:"target"`
	Internal  bool          `json:"internal"`
	Status    int           `json:"status,omitempty"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Failed reports whether the fetch did not produce a document.
func (r FetchRecord) Failed() bool {
	return r.Error != ""
}

// FetchFilter selects fetch records.
type FetchFilter struct {
	// Target matches records whose target contains it.
	Target string
	// FailedOnly keeps only failed fetches.
	FailedOnly bool
	// Limit caps the result to the newest N records (0 = all).
	Limit int
}

// Matches reports whether r passes the filter.
func (f FetchFilter) Matches(r FetchRecord) bool {
	if f.Target != "" && !strings.Contains(r.Target, f.Target) {
		return false
	}
	if f.FailedOnly && !r.Failed() {
		return false
	}
	return true
}

// FetchLog is a bounded in-memory history of upstream fetches.
type FetchLog struct {
	buf *ring.Buffer[FetchRecord]
}

// NewFetchLog creates a log keeping the latest size records.
func NewFetchLog(size int) *FetchLog {
	return &FetchLog{buf: ring.New[FetchRecord](size)}
}

// Record appends r.
func (l *FetchLog) Record(r FetchRecord) {
	l.buf.Add(r)
}

// Query returns matching records, oldest first.
func (l *FetchLog) Query(f FetchFilter) []FetchRecord {
	return l.buf.Filter(f.Matches, f.Limit)
}

// Clear drops all records.
func (l *FetchLog) Clear() {
	l.buf.Clear()
}

// Stats returns occupancy statistics.
func (l *FetchLog) Stats() ring.Stats {
	return l.buf.Stats()
}
