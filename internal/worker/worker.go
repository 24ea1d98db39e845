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

// Package worker is a single prefork worker's runtime: an accept loop that
// fast-paths observability endpoints and otherwise hands connections to a
// fixed thread pool through a bounded queue, a per-worker LRU file cache,
// and the request/file-delivery handling that pool consumes.
package worker

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/staticd/internal/cache"
	"github.com/sabouaram/staticd/internal/config"
	"github.com/sabouaram/staticd/internal/httpproto"
	"github.com/sabouaram/staticd/internal/logger"
	"github.com/sabouaram/staticd/internal/queue"
	"github.com/sabouaram/staticd/internal/stats"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// queueCapacity is a design constant, not a tunable: silently relaxing it
// to an unbounded queue would defeat the 503-on-saturation backpressure
// contract.
const queueCapacity = 100

// rejectLogEvery throttles the "queue full" log line to one per this many
// rejections, so a sustained overload does not flood the log.
const rejectLogEvery = 100

// Worker runs one prefork process's accept loop, thread pool, queue, and
// cache.
type Worker struct {
	id               int
	instanceID       string
	workerCount      int
	threadsPerWorker int
	documentRoot     string
	cacheEnabled     bool
	timeout          time.Duration

	ln    *net.TCPListener
	q     *queue.Queue
	cache cache.Cache
	rec   *stats.Record
	log   logger.Logger

	rejects uint64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Worker bound to ln, sharing the master's statistics
// region rec, logging through log.
func New(id int, cfg config.Config, ln *net.TCPListener, rec *stats.Record, log logger.Logger) *Worker {
	var c cache.Cache
	enabled := cfg.CacheSizeMB > 0
	if enabled {
		c = cache.New(int64(cfg.CacheSizeMB)*1024*1024, cacheableBound)
	}

	ctx, cancel := context.WithCancel(context.Background())
	instanceID := uuid.NewString()

	return &Worker{
		id:               id,
		instanceID:       instanceID,
		workerCount:      cfg.NumWorkers,
		threadsPerWorker: cfg.ThreadsPerWorker,
		documentRoot:     cfg.DocumentRoot,
		cacheEnabled:     enabled,
		timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		ln:               ln,
		q:                queue.New(queueCapacity),
		cache:            c,
		rec:              rec,
		log:              log.WithField("worker", id).WithField("instance", instanceID),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Run starts the thread pool and enters the accept loop. It returns once
// shutdown is requested and every thread has drained.
func (w *Worker) Run() liberr.Error {
	if w.ln == nil {
		return ErrorListenerMissing.Error(nil)
	}

	for i := 0; i < w.threadsPerWorker; i++ {
		w.wg.Add(1)
		go w.consume()
	}

	w.accept()

	w.q.Shutdown()
	w.wg.Wait()

	// Any connection the producer enqueued but no consumer reached before
	// shutdown is still sitting in the ring; Drain returns the handles so
	// their sockets are closed instead of leaked.
	for _, c := range w.q.Drain() {
		_ = c.Close()
	}

	if w.cacheEnabled {
		s := w.cache.Stats()
		w.log.Info("cache stats at shutdown: %d entries, %d bytes, %d hits, %d misses, %d evictions",
			nil, w.cache.Len(), w.cache.Size(), s.Hits, s.Misses, s.Evictions)
		_ = w.cache.Close()
	}

	return nil
}

// Shutdown signals the accept loop to exit; Run then drains the pool and
// returns.
func (w *Worker) Shutdown() {
	w.cancel()
	_ = w.ln.Close()
}

// accept is the producer loop (§4.4): accept, fast-path priority
// endpoints, or enqueue with non-blocking backpressure.
func (w *Worker) accept() {
	for {
		conn, err := w.ln.AcceptTCP()
		if err != nil {
			select {
			case <-w.ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() { //nolint:staticcheck
				continue
			}
			w.log.Warning("accept failed: %s", nil, err.Error())
			continue
		}

		wrapped := httpproto.Wrap(conn, httpproto.MaxRequestLine)

		line, perr := wrapped.PeekRequestLine(64)
		if perr == nil && isPriorityLine(line) {
			w.handleConnection(wrapped)
			continue
		}

		if !w.q.TryEnqueue(wrapped) {
			w.rejectOverload(wrapped)
			continue
		}
	}
}

// isPriorityLine reports whether the opening bytes of a request are one of
// the six method+path combinations that qualify for the fast path, checked
// without having parsed a full request line yet.
func isPriorityLine(b []byte) bool {
	prefixes := []string{
		"GET /health", "HEAD /health",
		"GET /metrics", "HEAD /metrics",
		"GET /stats", "HEAD /stats",
	}
	s := string(b)
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func (w *Worker) rejectOverload(conn *httpproto.Conn) {
	n := atomic.AddUint64(&w.rejects, 1)
	if n%rejectLogEvery == 1 {
		w.log.Warning("queue saturated, rejecting with 503 (rejection #%d)", nil, n)
	}

	extra := httpproto.Header{Name: "Retry-After", Value: "1"}
	if err := httpproto.WriteError(conn, 503, false, extra); err != nil {
		w.log.Warning("write 503 failed: %s", nil, err.Error())
	}
	w.rec.RecordResponse(503, int64(len(httpproto.ErrorBody(503))), 0)
	_ = conn.Close()
}

// consume is a thread-pool worker: dequeue, bound the connection's I/O by
// the configured timeout, handle, repeat until shutdown.
func (w *Worker) consume() {
	defer w.wg.Done()

	for {
		c, err := w.q.Dequeue(w.ctx)
		if err != nil {
			return
		}

		conn, ok := c.(*httpproto.Conn)
		if !ok {
			_ = c.Close()
			continue
		}

		deadline := time.Now().Add(w.timeout)
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)

		w.handleConnection(conn)
	}
}
