/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package queue is the bounded, FIFO hand-off between a worker's accept
// loop (the single producer) and its thread pool (the consumers). Capacity
// is a fixed ring buffer guarded by a pair of counting semaphores in the
// classical producer/consumer discipline: `empty` counts free slots,
// `filled` counts occupied ones, and a mutex protects the ring indices.
package queue

import (
	"context"
	"net"
	"sync"

	"golang.org/x/sync/semaphore"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// Queue is a fixed-capacity FIFO of accepted connections.
type Queue struct {
	mu   sync.Mutex
	ring []net.Conn
	head int
	tail int

	empty *semaphore.Weighted
	filled *semaphore.Weighted

	closed bool
	cnl    context.CancelFunc
	ctx    context.Context
}

// New returns a Queue of the given fixed capacity. Capacity is a design
// constant per connection (spec fixes it at 100); the caller decides.
func New(capacity int) *Queue {
	ctx, cnl := context.WithCancel(context.Background())

	filled := semaphore.NewWeighted(int64(capacity))
	// A Weighted starts with its full weight available to acquire, which is
	// backwards for filled: it must start at zero occupied slots. Holding
	// the entire capacity up front makes every subsequent Release/Acquire
	// pair track "slots produced", matching empty's already-correct sense.
	_ = filled.Acquire(context.Background(), int64(capacity))

	return &Queue{
		ring:   make([]net.Conn, capacity),
		empty:  semaphore.NewWeighted(int64(capacity)),
		filled: filled,
		ctx:    ctx,
		cnl:    cnl,
	}
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return len(q.ring)
}

// Enqueue blocks until a slot is free, then appends conn. It returns an
// error only if the queue is shut down while waiting.
func (q *Queue) Enqueue(conn net.Conn) liberr.Error {
	if err := q.empty.Acquire(q.ctx, 1); err != nil {
		return ErrorQueueClosed.Error(err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.empty.Release(1)
		return ErrorQueueClosed.Error(nil)
	}
	q.push(conn)
	q.mu.Unlock()

	q.filled.Release(1)
	return nil
}

// TryEnqueue appends conn without blocking, returning false if the queue is
// at capacity or shut down. This is the path the accept loop uses to apply
// backpressure: on false, the caller answers the connection with 503
// instead of waiting.
func (q *Queue) TryEnqueue(conn net.Conn) bool {
	if !q.empty.TryAcquire(1) {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.empty.Release(1)
		return false
	}
	q.push(conn)
	q.mu.Unlock()

	q.filled.Release(1)
	return true
}

// Dequeue blocks until a connection is available, or ctx is done, or the
// queue is shut down.
func (q *Queue) Dequeue(ctx context.Context) (net.Conn, liberr.Error) {
	// Derive a child of the caller's ctx that also ends on shutdown, without
	// ever canceling the queue's own (shared, long-lived) context.
	child, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-q.ctx.Done():
			cancel()
		case <-done:
		}
	}()

	if err := q.filled.Acquire(child, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ErrorQueueClosed.Error(ctx.Err())
		}
		return nil, ErrorQueueClosed.Error(err)
	}

	q.mu.Lock()
	conn, ok := q.pop()
	q.mu.Unlock()

	if !ok {
		return nil, ErrorQueueClosed.Error(nil)
	}

	q.empty.Release(1)
	return conn, nil
}

// push and pop assume q.mu is held.
func (q *Queue) push(conn net.Conn) {
	q.ring[q.tail] = conn
	q.tail = (q.tail + 1) % len(q.ring)
}

func (q *Queue) pop() (net.Conn, bool) {
	conn := q.ring[q.head]
	if conn == nil {
		return nil, false
	}
	q.ring[q.head] = nil
	q.head = (q.head + 1) % len(q.ring)
	return conn, true
}

// Len returns the number of connections currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail == q.head {
		// Equal indices mean either empty or full; a full ring still holds
		// a connection in the head slot.
		if len(q.ring) > 0 && q.ring[q.head] != nil {
			return len(q.ring)
		}
		return 0
	}
	if q.tail > q.head {
		return q.tail - q.head
	}
	return len(q.ring) - q.head + q.tail
}

// Shutdown marks the queue closed and releases every blocked Dequeue/Enqueue
// waiter. Connections still queued are returned by Drain for the caller to
// close.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cnl()
}

// Drain returns and removes every connection still queued, for the worker
// to close during shutdown.
func (q *Queue) Drain() []net.Conn {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []net.Conn
	for {
		c, ok := q.pop()
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}
