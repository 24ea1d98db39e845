package priority_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/priority"
	"github.com/sabouaram/staticd/internal/stats"
)

func TestHandleHealth(t *testing.T) {
	var buf bytes.Buffer
	snap := stats.Snapshot{UptimeSeconds: 42}
	err := priority.Handle(&buf, "/health", false, snap, 4, "worker-a")
	require.Nil(t, err)

	out := buf.String()
	require.Contains(t, out, "HTTP/1.1 200 OK")
	require.Contains(t, out, "Content-Type: application/json")

	body := out[strings.Index(out, "\r\n\r\n")+4:]
	var decoded struct {
		Status   string `json:"status"`
		Uptime   int64  `json:"uptime"`
		Workers  int    `json:"workers"`
		Instance string `json:"instance"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Equal(t, "healthy", decoded.Status)
	require.EqualValues(t, 42, decoded.Uptime)
	require.Equal(t, 4, decoded.Workers)
	require.Equal(t, "worker-a", decoded.Instance)
}

func TestHandleHeadOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	err := priority.Handle(&buf, "/stats", true, stats.Snapshot{}, 1, "worker-a")
	require.Nil(t, err)
	require.True(t, strings.HasSuffix(buf.String(), "\r\n\r\n"))
}

func TestHandleMetricsFormat(t *testing.T) {
	var buf bytes.Buffer
	snap := stats.Snapshot{TotalRequests: 10, Code200: 9, Code404: 1}
	err := priority.Handle(&buf, "/metrics", false, snap, 2, "worker-a")
	require.Nil(t, err)
	require.Contains(t, buf.String(), "http_requests_total 10")
	require.Contains(t, buf.String(), `http_requests_by_code{code="200"} 9`)
}

func TestHandleUnknownEndpoint(t *testing.T) {
	var buf bytes.Buffer
	err := priority.Handle(&buf, "/nope", false, stats.Snapshot{}, 1, "worker-a")
	require.NotNil(t, err)
}
