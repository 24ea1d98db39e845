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
	"fmt"
	"io"
	"strconv"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// ServerIdent is the value sent in every response's Server header.
const ServerIdent = "staticd"

var reasons = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}

// Reason returns the standard reason phrase for status, or "Unknown".
func Reason(status int) string {
	if r, ok := reasons[status]; ok {
		return r
	}
	return "Unknown"
}

// ErrorBody returns the minimal HTML body for a generated error response.
// Every body begins with <h1> per the exit/error response contract.
func ErrorBody(status int) []byte {
	return []byte(fmt.Sprintf("<h1>%d %s</h1>\n", status, Reason(status)))
}

// Header is a single response header line.
type Header struct {
	Name  string
	Value string
}

// WriteHeadOnly writes status line plus headers, Connection: close, and no
// body — used for HEAD requests and as the header-writing half of every
// other response.
func WriteHeadOnly(w io.Writer, status int, contentType string, contentLength int64, extra ...Header) liberr.Error {
	headers := append([]Header{
		{"Content-Type", contentType},
		{"Content-Length", strconv.FormatInt(contentLength, 10)},
		{"Server", ServerIdent},
	}, extra...)
	headers = append(headers, Header{"Connection", "close"})

	var buf []byte
	buf = append(buf, []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, Reason(status)))...)
	for _, h := range headers {
		buf = append(buf, []byte(h.Name+": "+h.Value+"\r\n")...)
	}
	buf = append(buf, []byte("\r\n")...)

	if _, err := w.Write(buf); err != nil {
		return ErrorWrite.Error(err)
	}
	return nil
}

// WriteFull writes a complete response: headers, then body unless headOnly
// (the HEAD case, per §4.4: identical headers, no body).
func WriteFull(w io.Writer, status int, contentType string, body []byte, headOnly bool, extra ...Header) liberr.Error {
	if err := WriteHeadOnly(w, status, contentType, int64(len(body)), extra...); err != nil {
		return err
	}
	if headOnly {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return ErrorWrite.Error(err)
	}
	return nil
}

// WriteError writes one of the standard minimal-HTML error responses.
func WriteError(w io.Writer, status int, headOnly bool, extra ...Header) liberr.Error {
	return WriteFull(w, status, "text/html", ErrorBody(status), headOnly, extra...)
}
