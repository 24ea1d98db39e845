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

// Package cache provides a per-worker, size-bounded, path-keyed LRU holding
// the served files' bytes in memory.
package cache

import (
	"io"
	"time"
)

// Entry is one cached file: its bytes, its size on disk at the time it was
// read, and its modification time at that moment. The cache stores ModTime
// but never compares it against the file system, so an entry is not
// invalidated when the file on disk changes.
type Entry struct {
	Path    string
	Data    []byte
	ModTime time.Time
	Size    int64
}

// Cache is a size-bounded LRU keyed by file path. A Get promotes the entry
// to most-recently-used; eviction always removes the least-recently-used
// entry first. Every method is safe for concurrent use.
type Cache interface {
	io.Closer

	// Get returns the cached entry for path, promoting it to
	// most-recently-used. ok is false on a miss.
	Get(path string) (entry Entry, ok bool)

	// Put inserts or replaces the entry for path, evicting
	// least-recently-used entries until the cache fits within its byte
	// budget. An entry larger than the per-entry cap is rejected and Put
	// returns false without storing it.
	Put(entry Entry) (stored bool)

	// Remove evicts path if present.
	Remove(path string)

	// Len returns the number of entries currently cached.
	Len() int

	// Size returns the total number of bytes currently cached.
	Size() int64

	// Stats returns the cumulative hit/miss/eviction counters since
	// construction.
	Stats() Stats
}

// Stats is a point-in-time snapshot of a Cache's cumulative counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New returns an empty Cache bounded to maxBytes total and perEntryCap bytes
// per entry. A perEntryCap of 0 (or any value above 1 MiB) falls back to the
// 1 MiB hard per-entry cap.
func New(maxBytes int64, perEntryCap int64) Cache {
	return newLRU(maxBytes, perEntryCap)
}
