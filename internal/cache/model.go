/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package cache

import (
	"container/list"
	"sync"
)

// maxEntryBytes is the hard per-entry cap from the file size invariant:
// files larger than 1 MiB are never cacheable regardless of capacity.
const maxEntryBytes = 1 << 20

type lru struct {
	mu sync.RWMutex

	ring *list.List               // front = MRU, back = LRU
	idx  map[string]*list.Element // hash index over the ring; lookup stays O(1) rather than the O(n) the spec permits but does not require

	maxBytes int64
	curBytes int64
	entryCap int64

	hits, misses, evictions uint64
}

func newLRU(maxBytes int64, perEntryCap int64) *lru {
	if perEntryCap <= 0 || perEntryCap > maxEntryBytes {
		perEntryCap = maxEntryBytes
	}

	return &lru{
		ring:     list.New(),
		idx:      make(map[string]*list.Element),
		maxBytes: maxBytes,
		entryCap: perEntryCap,
	}
}

func (c *lru) Get(path string) (Entry, bool) {
	if c.maxBytes <= 0 {
		return Entry{}, false
	}

	// A write lock is required even for a lookup: a hit promotes the entry
	// to the front of the recency list, mutating shared structure.
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[path]
	if !ok {
		c.misses++
		return Entry{}, false
	}

	c.ring.MoveToFront(el)
	c.hits++
	return el.Value.(Entry), true
}

func (c *lru) Put(e Entry) bool {
	if c.maxBytes <= 0 {
		return false
	}
	if e.Size > c.entryCap || e.Size > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.idx[e.Path]; ok {
		c.curBytes -= el.Value.(Entry).Size
		el.Value = e
		c.curBytes += e.Size
		c.ring.MoveToFront(el)
	} else {
		el = c.ring.PushFront(e)
		c.idx[e.Path] = el
		c.curBytes += e.Size
	}

	for c.curBytes > c.maxBytes {
		back := c.ring.Back()
		if back == nil {
			break
		}
		c.evictLocked(back)
	}

	return true
}

func (c *lru) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.idx[path]; ok {
		c.evictLocked(el)
	}
}

// evictLocked removes el from the ring and index. Caller holds c.mu.
func (c *lru) evictLocked(el *list.Element) {
	entry := el.Value.(Entry)
	c.ring.Remove(el)
	delete(c.idx, entry.Path)
	c.curBytes -= entry.Size
	c.evictions++
}

func (c *lru) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ring.Len()
}

func (c *lru) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.curBytes
}

func (c *lru) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

func (c *lru) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring = list.New()
	c.idx = make(map[string]*list.Element)
	c.curBytes = 0
	return nil
}
