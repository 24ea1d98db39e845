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

package worker

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sabouaram/staticd/internal/cache"
	"github.com/sabouaram/staticd/internal/httpproto"
	"github.com/sabouaram/staticd/internal/priority"
	"github.com/sabouaram/staticd/internal/stats"
)

// cacheableBound is the maximum cacheable file size: exactly 1 MiB is
// cacheable, one byte over is not.
const cacheableBound = 1 << 20

// handleConnection implements request handling (§4.4.b) and file delivery
// (§4.4.c) for one already-dequeued connection. It always closes conn exactly
// once and matches its active-connection increment with exactly one
// decrement. It accounts at most one RecordResponse: none when the request
// read fails or yields no bytes, or when a streamed file's headers cannot be
// written.
func (w *Worker) handleConnection(conn *httpproto.Conn) {
	w.rec.ConnectionOpened()
	start := time.Now()

	defer func() {
		_ = conn.Close()
		w.rec.ConnectionClosed()
	}()

	buf := make([]byte, httpproto.MaxRequestLine)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return
	}

	req, perr := httpproto.ParseRequestLine(buf[:n])
	if perr != nil {
		w.respond(conn, 400, nil, false, start)
		return
	}

	if !httpproto.IsSupportedMethod(req.Method) {
		w.respond(conn, 501, nil, false, start)
		return
	}
	headOnly := req.Method == "HEAD"

	if priority.IsEndpoint(httpproto.StripQuery(req.Target)) {
		snap := w.rec.Snapshot()
		if perr := priority.Handle(conn, req.Target, headOnly, snap, w.workerCount, w.instanceID); perr != nil {
			w.log.Warning("priority endpoint write failed: %s", nil, perr.Error())
		}
		w.rec.RecordResponse(200, 0, time.Since(start))
		return
	}

	path, ok := httpproto.NormalizePath(req.Target)
	if !ok {
		w.respond(conn, 403, nil, false, start)
		return
	}

	w.deliverFile(conn, filepath.Join(w.documentRoot, filepath.FromSlash(path)), path, headOnly, start)
}

// respond writes one of the standard minimal-HTML error responses and
// records it in statistics.
func (w *Worker) respond(conn net.Conn, status int, extra []httpproto.Header, headOnly bool, start time.Time) {
	if err := httpproto.WriteError(conn, status, headOnly, extra...); err != nil {
		w.log.Warning("write error response failed: %s", nil, err.Error())
	}
	w.rec.RecordResponse(status, int64(len(httpproto.ErrorBody(status))), time.Since(start))
}

// deliverFile implements §4.4.c: cache lookup, then disk, caching the
// result when it fits, and streaming via sendfile when it does not.
func (w *Worker) deliverFile(conn net.Conn, fsPath, cacheKey string, headOnly bool, start time.Time) {
	if w.cacheEnabled {
		if entry, hit := w.cache.Get(cacheKey); hit {
			w.writeOK(conn, entry.Data, cacheKey, headOnly, "HIT", start)
			return
		}
	}

	f, err := os.Open(fsPath)
	if err != nil {
		w.respond(conn, 404, nil, headOnly, start)
		return
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		w.respond(conn, 404, nil, headOnly, start)
		return
	}
	if fi.IsDir() {
		w.respond(conn, 403, nil, headOnly, start)
		return
	}

	if w.cacheEnabled && fi.Size() <= cacheableBound {
		data := make([]byte, fi.Size())
		if _, err = io.ReadFull(f, data); err != nil {
			w.respond(conn, 500, nil, headOnly, start)
			return
		}
		w.cache.Put(cache.Entry{Path: cacheKey, Data: data, ModTime: fi.ModTime(), Size: fi.Size()})
		w.writeOK(conn, data, cacheKey, headOnly, "MISS", start)
		return
	}

	w.streamFile(conn, f, fi.Size(), cacheKey, headOnly, start)
}

func (w *Worker) writeOK(conn net.Conn, data []byte, path string, headOnly bool, cacheHeader string, start time.Time) {
	extra := httpproto.Header{Name: "X-Cache", Value: cacheHeader}
	err := httpproto.WriteFull(conn, 200, httpproto.ContentType(path), data, headOnly, extra)
	if err != nil {
		w.log.Warning("write response failed: %s", nil, err.Error())
	}
	w.rec.RecordResponse(200, int64(len(data)), time.Since(start))
}

func (w *Worker) streamFile(conn net.Conn, f *os.File, size int64, path string, headOnly bool, start time.Time) {
	extra := httpproto.Header{Name: "X-Cache", Value: "MISS"}
	if err := httpproto.WriteHeadOnly(conn, 200, httpproto.ContentType(path), size, extra); err != nil {
		w.log.Warning("write headers failed: %s", nil, err.Error())
		return
	}
	if headOnly {
		w.rec.RecordResponse(200, 0, time.Since(start))
		return
	}

	// io.Copy dispatches to conn's own ReadFrom (httpproto.Conn.ReadFrom),
	// which in turn forwards to the embedded *net.TCPConn's ReadFrom and so
	// uses sendfile(2) on Linux: the kernel moves bytes from the file
	// descriptor to the socket without a user-space copy. Partial transfers
	// and EINTR are retried internally by the runtime's poller; no explicit
	// retry loop is needed here.
	sent, err := io.Copy(conn, f)
	if err != nil {
		w.log.Warning("stream file failed: %s", nil, err.Error())
	}
	w.rec.RecordResponse(200, sent, time.Since(start))
}

