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

// Package stats lays a fixed binary record over a shared memory region
// (internal/shm) so every worker process and the master can mutate and read
// the same counters without a socket or file round-trip between them. The
// record is guarded by a single process-shared spinlock: Go has no
// cgo-free pthread process-shared mutex, and a CAS loop on one shared word
// is the one primitive that works identically whether the two contenders
// are goroutines in the same process or two forked processes mapping the
// same page. Every mutation holds the lock for O(1) work and never
// acquires any other lock while holding it.
package stats

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"
)

// Field offsets within the shared record. offLock must be 4-byte aligned;
// the remaining fields are 8-byte aligned so 64-bit atomics would also be
// valid on platforms that require it, even though access here is serialized
// entirely by the spinlock rather than per-field atomics.
const (
	offLock        = 0
	offStartUnix   = 8
	offTotalReqs   = 16
	offBytesSent   = 24
	offActiveConns = 32
	offRespSumUs   = 40
	offRespCount   = 48
	off200         = 56
	off400         = 64
	off403         = 72
	off404         = 80
	off500         = 88
	off501         = 96
	off503         = 104

	// offPrevRespSumUs/offPrevRespCount are the snapshot pair snapshot_delta_reset
	// copies the running accumulator into, so a "since last call" average can
	// be derived without a second accumulator.
	offPrevRespSumUs = 112
	offPrevRespCount = 120

	// Size is the number of bytes the record needs from its backing region.
	Size = 128
)

// Snapshot is a point-in-time copy of the record, safe to log or encode
// after the lock guarding the live record has been released.
type Snapshot struct {
	UptimeSeconds      int64
	TotalRequests      uint64
	BytesSent          uint64
	ActiveConnections  int64
	AvgResponseTimeMs  float64
	Code200            uint64
	Code400            uint64
	Code403            uint64
	Code404            uint64
	Code500            uint64
	Code501            uint64
	Code503            uint64
}

// Record is the shared statistics block. It does not own the memory it
// points into; the caller keeps the backing shm.Region alive.
type Record struct {
	buf []byte
}

// Attach interprets buf (at least Size bytes, typically shm.Region.Bytes())
// as a statistics record. Init must be called once, by the master, before
// any worker attaches; workers call Attach without Init since the record
// already carries the master's start time and zeroed counters.
func Attach(buf []byte) (*Record, bool) {
	if len(buf) < Size {
		return nil, false
	}
	return &Record{buf: buf[:Size]}, true
}

// Init zeroes the record and stamps the start time. Call once, from the
// master, before forking any worker.
func (r *Record) Init(start time.Time) {
	for i := range r.buf {
		r.buf[i] = 0
	}
	binary.LittleEndian.PutUint64(r.buf[offStartUnix:], uint64(start.Unix()))
}

func (r *Record) lockWord() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.buf[offLock]))
}

// lock spins on a CAS until it acquires the word at offLock. A spinlock is
// appropriate here: the critical section is a handful of field writes, far
// cheaper than the syscall a futex or pipe-based mutex would cost, and the
// lock is never held across I/O or another lock acquisition.
func (r *Record) lock() {
	w := r.lockWord()
	for !atomic.CompareAndSwapUint32(w, 0, 1) {
		runtime.Gosched()
	}
}

func (r *Record) unlock() {
	atomic.StoreUint32(r.lockWord(), 0)
}

func (r *Record) u64(off int) uint64 {
	return binary.LittleEndian.Uint64(r.buf[off:])
}

func (r *Record) putU64(off int, v uint64) {
	binary.LittleEndian.PutUint64(r.buf[off:], v)
}

func (r *Record) addU64(off int, delta uint64) {
	r.putU64(off, r.u64(off)+delta)
}

// RecordResponse accounts for one completed request: total count, bytes
// written to the client, the status-code bucket it falls in (codes outside
// the tracked set are folded into the total but no per-code bucket), and
// the latency sample folded into the running average.
func (r *Record) RecordResponse(status int, bytesSent int64, latency time.Duration) {
	r.lock()
	defer r.unlock()

	r.addU64(offTotalReqs, 1)
	r.addU64(offBytesSent, uint64(bytesSent))
	r.addU64(offRespSumUs, uint64(latency.Microseconds()))
	r.addU64(offRespCount, 1)

	switch status {
	case 200:
		r.addU64(off200, 1)
	case 400:
		r.addU64(off400, 1)
	case 403:
		r.addU64(off403, 1)
	case 404:
		r.addU64(off404, 1)
	case 500:
		r.addU64(off500, 1)
	case 501:
		r.addU64(off501, 1)
	case 503:
		r.addU64(off503, 1)
	}
}

// ConnectionOpened increments the active-connection gauge.
func (r *Record) ConnectionOpened() {
	r.lock()
	defer r.unlock()
	v := int64(r.u64(offActiveConns))
	r.putU64(offActiveConns, uint64(v+1))
}

// ConnectionClosed decrements the active-connection gauge. It never drops
// below zero, guarding against a double-close race.
func (r *Record) ConnectionClosed() {
	r.lock()
	defer r.unlock()
	v := int64(r.u64(offActiveConns))
	if v > 0 {
		v--
	}
	r.putU64(offActiveConns, uint64(v))
}

// Snapshot takes a consistent point-in-time copy of every field.
func (r *Record) Snapshot() Snapshot {
	r.lock()
	defer r.unlock()

	start := int64(r.u64(offStartUnix))
	sumUs := r.u64(offRespSumUs)
	count := r.u64(offRespCount)

	var avg float64
	if count > 0 {
		avg = float64(sumUs) / float64(count) / 1000.0
	}

	return Snapshot{
		UptimeSeconds:     time.Now().Unix() - start,
		TotalRequests:     r.u64(offTotalReqs),
		BytesSent:         r.u64(offBytesSent),
		ActiveConnections: int64(r.u64(offActiveConns)),
		AvgResponseTimeMs: avg,
		Code200:           r.u64(off200),
		Code400:           r.u64(off400),
		Code403:           r.u64(off403),
		Code404:           r.u64(off404),
		Code500:           r.u64(off500),
		Code501:           r.u64(off501),
		Code503:           r.u64(off503),
	}
}

// SnapshotDelta implements snapshot_delta_reset: it reads the running
// latency accumulator, diffs it against the pair captured by the previous
// call (zero the first time), stores the current values as the new
// baseline, and returns the average and sample count observed since then.
// The running accumulator itself is untouched, so Snapshot's all-time
// average keeps working regardless of how often this is called.
func (r *Record) SnapshotDelta() (avgMs float64, count uint64) {
	r.lock()
	defer r.unlock()

	sumUs := r.u64(offRespSumUs)
	respCount := r.u64(offRespCount)

	deltaSum := sumUs - r.u64(offPrevRespSumUs)
	deltaCount := respCount - r.u64(offPrevRespCount)

	r.putU64(offPrevRespSumUs, sumUs)
	r.putU64(offPrevRespCount, respCount)

	if deltaCount == 0 {
		return 0, 0
	}
	return float64(deltaSum) / float64(deltaCount) / 1000.0, deltaCount
}
