package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pagepick/internal/protocol"
)

func selected(seq int64, selector, tag string) *protocol.ElementSelected {
	return protocol.NewElementSelected(seq, protocol.ElementData{
		Selector: selector,
		TagName:  tag,
		Content:  protocol.Content{Type: protocol.ContentText, Text: "copy"},
	})
}

func TestStoreAddAndQuery(t *testing.T) {
	s := NewStore(10)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	r1 := s.Add("https://a.test/", "load-1", selected(1, "div.card:nth-child(2) > h2", "h2"))
	s.Add("https://a.test/", "load-1", selected(2, "#headline", "H1"))
	s.Add("https://b.test/", "load-2", selected(1, "p:nth-child(3)", "p"))

	assert.Equal(t, int64(1), r1.ID)
	assert.Equal(t, base.Add(time.Minute), r1.ReceivedAt)

	assert.Len(t, s.Query(Filter{}), 3)
	assert.Len(t, s.Query(Filter{TagName: "h1"}), 1, "tag matches case-insensitively")
	assert.Len(t, s.Query(Filter{Selector: "card"}), 1)
	assert.Len(t, s.Query(Filter{PageURL: "https://a.test/"}), 2)

	since := s.Query(Filter{Since: base.Add(2 * time.Minute)})
	require.Len(t, since, 2)
	assert.Equal(t, "#headline", since[0].Data.Selector)

	last := s.Query(Filter{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, "p", last[0].Data.TagName)
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2)
	for i := int64(1); i <= 3; i++ {
		s.Add("", "", selected(i, "p", "p"))
	}

	got := s.Query(Filter{})
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)

	stats := s.Stats()
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestStoreCountsGaps(t *testing.T) {
	s := NewStore(10)
	s.BeginLoad("load-1")
	s.Add("", "load-1", selected(1, "p", "p"))
	s.Add("", "load-1", selected(4, "p", "p"))
	s.Add("", "load-1", selected(4, "p", "p"))

	// a fresh load restarts numbering without counting a gap
	s.BeginLoad("load-2")
	s.Add("", "load-2", selected(1, "p", "p"))

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Gaps)
	assert.Equal(t, int64(1), stats.OutOfOrder)
	assert.Equal(t, 2, stats.Loads)
}

func TestStoreGapsIgnoreAnonymousLoads(t *testing.T) {
	s := NewStore(10)
	s.Add("", "", selected(5, "p", "p"))
	assert.Zero(t, s.Stats().Gaps)
}

func TestStoreClear(t *testing.T) {
	s := NewStore(10)
	s.Add("", "load-1", selected(3, "p", "p"))
	require.Equal(t, int64(2), s.Stats().Gaps)

	s.Clear()
	stats := s.Stats()
	assert.Zero(t, stats.AvailableEntries)
	assert.Zero(t, stats.Gaps)
	assert.Zero(t, stats.Loads)
	assert.Empty(t, s.Query(Filter{}))
}
