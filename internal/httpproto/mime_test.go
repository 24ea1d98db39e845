package httpproto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/httpproto"
)

func TestContentTypeKnownExtensions(t *testing.T) {
	require.Equal(t, "text/html; charset=utf-8", httpproto.ContentType("/var/www/index.html"))
	require.Equal(t, "text/css; charset=utf-8", httpproto.ContentType("style.css"))
	require.Equal(t, "application/json", httpproto.ContentType("data.json"))
	require.Equal(t, "image/svg+xml", httpproto.ContentType("logo.svg"))
}

func TestContentTypeUnknownExtensionFallsBackToOctetStream(t *testing.T) {
	require.Equal(t, "application/octet-stream", httpproto.ContentType("archive.staticd-unknown"))
}

func TestContentTypeNoExtension(t *testing.T) {
	require.Equal(t, "application/octet-stream", httpproto.ContentType("README"))
}
