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

// Package httpproto is the minimal HTTP/1.1 surface the server needs: a
// request-line parser over a fixed read buffer, path normalization, a raw
// response writer, and extension-based content-type resolution. There is no
// persistent-connection or chunked-transfer support by design — every
// response is single-shot and closes the connection.
package httpproto

import (
	"strings"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// MaxRequestLine bounds the request read. The worker reads once into a
// fixed 8 KiB buffer; anything beyond that is simply never seen.
const MaxRequestLine = 8192

// Request is the parsed first line of an HTTP/1.1 request.
type Request struct {
	Method  string
	Target  string
	Version string
}

// ParseRequestLine extracts method, target, and version from the first line
// of buf. It does not validate the version string beyond requiring the
// "HTTP/" prefix, matching a tokenizing parser rather than a strict one.
func ParseRequestLine(buf []byte) (Request, liberr.Error) {
	line := buf
	if i := indexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}
	line = trimCR(line)

	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return Request{}, ErrorMalformedRequest.Error(nil)
	}

	method, target, version := fields[0], fields[1], fields[2]
	if method == "" || target == "" || !strings.HasPrefix(version, "HTTP/") {
		return Request{}, ErrorMalformedRequest.Error(nil)
	}
	if !strings.HasPrefix(target, "/") {
		return Request{}, ErrorMalformedRequest.Error(nil)
	}

	return Request{Method: method, Target: target, Version: version}, nil
}

// IsSupportedMethod reports whether m is one of the two methods the server
// answers; every other verb gets a 501.
func IsSupportedMethod(m string) bool {
	return m == "GET" || m == "HEAD"
}

// IsPriorityTarget reports whether target (pre-normalization) names one of
// the observability endpoints that bypass the connection queue.
func IsPriorityTarget(target string) bool {
	switch StripQuery(target) {
	case "/health", "/metrics", "/stats":
		return true
	}
	return false
}

// NormalizePath applies the target-rewriting rules: drop any query string,
// reject traversal, and map "/" to "/index.html". ok is false on a 403
// traversal attempt.
func NormalizePath(target string) (path string, ok bool) {
	path = StripQuery(target)
	if strings.Contains(path, "..") {
		return "", false
	}
	if path == "/" {
		path = "/index.html"
	}
	return path, true
}

// StripQuery cuts target at the first '?', discarding any query string.
func StripQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
