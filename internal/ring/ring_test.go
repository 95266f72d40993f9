package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferKeepsInsertionOrder(t *testing.T) {
	b := New[int](4)
	for i := 1; i <= 3; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{1, 2, 3}, b.Snapshot())
	assert.Equal(t, 3, b.Len())
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 7; i++ {
		seq := b.Add(i)
		assert.Equal(t, int64(i), seq)
	}

	assert.Equal(t, []int{5, 6, 7}, b.Snapshot())

	stats := b.Stats()
	assert.Equal(t, int64(7), stats.TotalEntries)
	assert.Equal(t, 3, stats.AvailableEntries)
	assert.Equal(t, 3, stats.MaxSize)
	assert.Equal(t, int64(4), stats.Dropped)
}

func TestBufferFilterAndLimit(t *testing.T) {
	b := New[int](10)
	for i := 1; i <= 10; i++ {
		b.Add(i)
	}
	even := func(n int) bool { return n%2 == 0 }

	assert.Equal(t, []int{2, 4, 6, 8, 10}, b.Filter(even, 0))
	assert.Equal(t, []int{8, 10}, b.Filter(even, 2), "limit keeps the newest matches")
	assert.Equal(t, []int{9, 10}, b.Filter(nil, 2))
}

func TestBufferClear(t *testing.T) {
	b := New[string](2)
	b.Add("a")
	b.Add("b")
	b.Add("c")
	b.Clear()

	assert.Empty(t, b.Snapshot())
	assert.Equal(t, Stats{MaxSize: 2}, b.Stats())

	assert.Equal(t, int64(1), b.Add("d"))
	assert.Equal(t, []string{"d"}, b.Snapshot())
}

func TestBufferDefaultSize(t *testing.T) {
	b := New[int](0)
	assert.Equal(t, DefaultSize, b.Stats().MaxSize)
}

func TestBufferConcurrentAdd(t *testing.T) {
	b := New[int](50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(i)
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()

	stats := b.Stats()
	require.Equal(t, int64(800), stats.TotalEntries)
	assert.Equal(t, 50, stats.AvailableEntries)
	assert.Len(t, b.Snapshot(), 50)
}
