package httpproto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/httpproto"
)

func TestParseRequestLine(t *testing.T) {
	req, err := httpproto.ParseRequestLine([]byte("GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Nil(t, err)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/index.html", req.Target)
	require.Equal(t, "HTTP/1.1", req.Version)
}

func TestParseRequestLineMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("GET\r\n"),
		[]byte("\r\n"),
		[]byte("GET index.html HTTP/1.1\r\n"),
		[]byte("GET /x NOTHTTP\r\n"),
	}
	for _, c := range cases {
		_, err := httpproto.ParseRequestLine(c)
		require.NotNil(t, err, "expected error for %q", c)
	}
}

func TestIsSupportedMethod(t *testing.T) {
	require.True(t, httpproto.IsSupportedMethod("GET"))
	require.True(t, httpproto.IsSupportedMethod("HEAD"))
	require.False(t, httpproto.IsSupportedMethod("POST"))
	require.False(t, httpproto.IsSupportedMethod("DELETE"))
}

func TestIsPriorityTarget(t *testing.T) {
	require.True(t, httpproto.IsPriorityTarget("/health"))
	require.True(t, httpproto.IsPriorityTarget("/metrics"))
	require.True(t, httpproto.IsPriorityTarget("/stats?x=1"))
	require.False(t, httpproto.IsPriorityTarget("/index.html"))
}

func TestNormalizePath(t *testing.T) {
	p, ok := httpproto.NormalizePath("/")
	require.True(t, ok)
	require.Equal(t, "/index.html", p)

	p, ok = httpproto.NormalizePath("/foo.txt?v=2")
	require.True(t, ok)
	require.Equal(t, "/foo.txt", p)

	_, ok = httpproto.NormalizePath("/../etc/passwd")
	require.False(t, ok)

	_, ok = httpproto.NormalizePath("/a/../../b")
	require.False(t, ok)
}
