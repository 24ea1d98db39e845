package httpproto_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/httpproto"
)

func TestWriteFullGet(t *testing.T) {
	var buf bytes.Buffer
	err := httpproto.WriteFull(&buf, 200, "text/plain", []byte("hello"), false)
	require.Nil(t, err)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, out, "Content-Length: 5\r\n")
	require.Contains(t, out, "Connection: close\r\n")
	require.True(t, strings.HasSuffix(out, "\r\n\r\nhello"))
}

func TestWriteFullHeadOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	err := httpproto.WriteFull(&buf, 200, "text/plain", []byte("hello"), true)
	require.Nil(t, err)

	out := buf.String()
	require.Contains(t, out, "Content-Length: 5\r\n")
	require.True(t, strings.HasSuffix(out, "\r\n\r\n"))
}

func TestWriteErrorBodyStartsWithH1(t *testing.T) {
	var buf bytes.Buffer
	err := httpproto.WriteError(&buf, 404, false)
	require.Nil(t, err)
	require.Contains(t, buf.String(), "<h1>404")
}

func TestWriteError503HasRetryAfter(t *testing.T) {
	var buf bytes.Buffer
	err := httpproto.WriteError(&buf, 503, false, httpproto.Header{Name: "Retry-After", Value: "1"})
	require.Nil(t, err)
	require.Contains(t, buf.String(), "Retry-After: 1\r\n")
}
