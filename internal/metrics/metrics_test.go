package metrics_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/metrics"
	"github.com/sabouaram/staticd/internal/stats"
)

func TestEncodeRendersPrometheusExposition(t *testing.T) {
	snap := stats.Snapshot{
		TotalRequests:     10,
		BytesSent:         2048,
		ActiveConnections: 3,
		AvgResponseTimeMs: 4.5,
		Code200:           9,
		Code404:           1,
	}
	reg := metrics.Registry(func() stats.Snapshot { return snap })

	body, contentType, err := metrics.Encode(reg)
	require.NoError(t, err)
	require.Contains(t, contentType, "text/plain")

	out := string(body)
	require.Contains(t, out, "http_requests_total 10")
	require.Contains(t, out, "http_bytes_sent_total 2048")
	require.Contains(t, out, "http_active_connections 3")
	require.Contains(t, out, `http_requests_by_code{code="200"} 9`)
	require.Contains(t, out, `http_requests_by_code{code="404"} 1`)
	require.Contains(t, out, "http_avg_response_time_ms 4.5")
}

func TestEncodeOmitsUntrackedCodes(t *testing.T) {
	reg := metrics.Registry(func() stats.Snapshot { return stats.Snapshot{} })
	body, _, err := metrics.Encode(reg)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(body), `code="999"`))
}
