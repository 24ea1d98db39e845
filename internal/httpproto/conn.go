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

package httpproto

import (
	"bufio"
	"io"
	"net"
	"time"
)

// peekTimeout bounds the non-destructive read the accept loop performs to
// classify a connection as a priority endpoint before deciding whether to
// enqueue it. A slow-reading client on the fast path must not stall the
// producer indefinitely; on timeout the connection is treated as an
// ordinary request and handed to the queue like any other.
const peekTimeout = 200 * time.Millisecond

// Conn wraps an accepted socket with a small buffered reader so the accept
// loop can peek the request line without consuming it, then pass the same
// reader downstream to whichever handler — priority or pooled — finishes
// reading the request. Every Read after the peek is satisfied from the
// buffer first, so nothing is lost.
type Conn struct {
	net.Conn
	r *bufio.Reader
}

// Wrap buffers conn for peeking. bufSize should be at least MaxRequestLine
// so the eventual full read is also served from the same buffer.
func Wrap(conn net.Conn, bufSize int) *Conn {
	return &Conn{Conn: conn, r: bufio.NewReaderSize(conn, bufSize)}
}

// Read satisfies net.Conn by reading through the buffered reader rather
// than the raw socket, so bytes consumed by Peek are not lost.
func (c *Conn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// ReadFrom forwards to the embedded conn's own ReadFrom when it implements
// io.ReaderFrom — a *net.TCPConn does, via sendfile(2) on Linux. Without
// this, io.Copy(conn, file) never unlocks the zero-copy path: Conn embeds
// net.Conn as an interface field, and method promotion through an embedded
// interface is limited to that interface's declared method set, so it does
// not surface ReadFrom just because the concrete value underneath happens
// to implement it.
func (c *Conn) ReadFrom(r io.Reader) (int64, error) {
	if rf, ok := c.Conn.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}
	return io.Copy(c.Conn, r)
}

// PeekRequestLine non-destructively reads up to n bytes, bounded by a short
// deadline so a client that sends nothing cannot stall the accept loop.
// The bytes remain available to the next Read.
func (c *Conn) PeekRequestLine(n int) ([]byte, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(peekTimeout))
	defer func() { _ = c.Conn.SetReadDeadline(time.Time{}) }()

	b, err := c.r.Peek(n)
	if err != nil && len(b) == 0 {
		return nil, err
	}
	// A short peek (buffer not yet full) still contains whatever line the
	// client has sent so far; a malformed/partial line is handled by the
	// caller the same as any other malformed request.
	return b, nil
}
