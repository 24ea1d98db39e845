package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/cache"
)

func TestGetMissIncrementsMisses(t *testing.T) {
	c := cache.New(1024, 0)
	defer func() { _ = c.Close() }()

	_, ok := c.Get("/missing")
	require.False(t, ok)
	require.EqualValues(t, 1, c.Stats().Misses)
}

func TestPutThenGetHits(t *testing.T) {
	c := cache.New(1024, 0)
	defer func() { _ = c.Close() }()

	stored := c.Put(cache.Entry{Path: "/a", Data: []byte("hello"), Size: 5, ModTime: time.Now()})
	require.True(t, stored)

	entry, ok := c.Get("/a")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), entry.Data)
	require.EqualValues(t, 1, c.Stats().Hits)
	require.EqualValues(t, 1, c.Len())
	require.EqualValues(t, 5, c.Size())
}

func TestPutRejectsOverEntryCap(t *testing.T) {
	c := cache.New(1024, 4)
	defer func() { _ = c.Close() }()

	stored := c.Put(cache.Entry{Path: "/a", Data: []byte("hello"), Size: 5})
	require.False(t, stored)
	require.Zero(t, c.Len())
}

func TestPutEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New(10, 0)
	defer func() { _ = c.Close() }()

	require.True(t, c.Put(cache.Entry{Path: "/a", Data: make([]byte, 5), Size: 5}))
	require.True(t, c.Put(cache.Entry{Path: "/b", Data: make([]byte, 5), Size: 5}))

	// Touch /a so /b becomes the least-recently-used entry.
	_, _ = c.Get("/a")

	require.True(t, c.Put(cache.Entry{Path: "/c", Data: make([]byte, 5), Size: 5}))

	_, aOK := c.Get("/a")
	_, bOK := c.Get("/b")
	_, cOK := c.Get("/c")
	require.True(t, aOK)
	require.False(t, bOK)
	require.True(t, cOK)
	require.EqualValues(t, 1, c.Stats().Evictions)
}

func TestRemove(t *testing.T) {
	c := cache.New(1024, 0)
	defer func() { _ = c.Close() }()

	c.Put(cache.Entry{Path: "/a", Data: []byte("x"), Size: 1})
	c.Remove("/a")

	_, ok := c.Get("/a")
	require.False(t, ok)
	require.Zero(t, c.Len())
	require.Zero(t, c.Size())
}

func TestZeroCapacityDisablesCache(t *testing.T) {
	c := cache.New(0, 0)
	defer func() { _ = c.Close() }()

	require.False(t, c.Put(cache.Entry{Path: "/a", Data: []byte("x"), Size: 1}))
	_, ok := c.Get("/a")
	require.False(t, ok)
}

func TestConcurrentAccessIsRaceFree(t *testing.T) {
	c := cache.New(4096, 0)
	defer func() { _ = c.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Put(cache.Entry{Path: "/f", Data: []byte{byte(n)}, Size: 1})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = c.Get("/f")
		}()
	}
	wg.Wait()
}
