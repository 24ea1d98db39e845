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

// Package priority answers the three observability endpoints — /health,
// /metrics, /stats — that bypass the bounded connection queue entirely so
// they stay reachable while the queue is saturated. Each acquires the
// shared statistics primitive exactly once, via a single Snapshot call, to
// report a consistent set of numbers.
package priority

import (
	"encoding/json"
	"io"

	"github.com/sabouaram/staticd/internal/httpproto"
	"github.com/sabouaram/staticd/internal/metrics"
	"github.com/sabouaram/staticd/internal/stats"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// healthBody is the /health JSON document shape. Instance supplements the
// worker count with the id of the specific worker that answered, since a
// Go worker is its own OS process rather than a thread of one shared
// address space: workers names the fleet size, instance names who replied.
type healthBody struct {
	Status   string `json:"status"`
	Uptime   int64  `json:"uptime"`
	Workers  int    `json:"workers"`
	Instance string `json:"instance"`
}

// statsBody is the /stats JSON document shape.
type statsBody struct {
	TotalRequests     uint64            `json:"total_requests"`
	BytesSent         uint64            `json:"bytes_sent"`
	HTTPCodes         map[string]uint64 `json:"http_codes"`
	ActiveConnections int64             `json:"active_connections"`
	AvgResponseTimeMs float64           `json:"avg_response_time_ms"`
}

// IsEndpoint reports whether target (already query-stripped) names one of
// the three priority endpoints.
func IsEndpoint(target string) bool {
	switch target {
	case "/health", "/metrics", "/stats":
		return true
	}
	return false
}

// Handle writes the response body for target. headOnly suppresses the body
// for a HEAD request while keeping identical headers, per the wire
// contract shared with every other response.
func Handle(w io.Writer, target string, headOnly bool, snap stats.Snapshot, workerCount int, instanceID string) liberr.Error {
	switch httpproto.StripQuery(target) {
	case "/health":
		return handleHealth(w, headOnly, snap, workerCount, instanceID)
	case "/metrics":
		return handleMetrics(w, headOnly, snap)
	case "/stats":
		return handleStats(w, headOnly, snap)
	}
	return ErrorUnknownEndpoint.Error(nil)
}

func handleHealth(w io.Writer, headOnly bool, snap stats.Snapshot, workerCount int, instanceID string) liberr.Error {
	body, err := json.Marshal(healthBody{
		Status:   "healthy",
		Uptime:   snap.UptimeSeconds,
		Workers:  workerCount,
		Instance: instanceID,
	})
	if err != nil {
		return ErrorUnknownEndpoint.Error(err)
	}
	return httpproto.WriteFull(w, 200, "application/json", body, headOnly)
}

func handleStats(w io.Writer, headOnly bool, snap stats.Snapshot) liberr.Error {
	body, err := json.Marshal(statsBody{
		TotalRequests: snap.TotalRequests,
		BytesSent:     snap.BytesSent,
		HTTPCodes: map[string]uint64{
			"200": snap.Code200,
			"404": snap.Code404,
			"500": snap.Code500,
		},
		ActiveConnections: snap.ActiveConnections,
		AvgResponseTimeMs: snap.AvgResponseTimeMs,
	})
	if err != nil {
		return ErrorUnknownEndpoint.Error(err)
	}
	return httpproto.WriteFull(w, 200, "application/json", body, headOnly)
}

// handleMetrics renders snap through a prometheus.Registry built for this
// single scrape (see internal/metrics), so the wire format and metric
// naming come from client_golang/expfmt rather than a hand-rolled
// formatter.
func handleMetrics(w io.Writer, headOnly bool, snap stats.Snapshot) liberr.Error {
	reg := metrics.Registry(func() stats.Snapshot { return snap })

	body, contentType, err := metrics.Encode(reg)
	if err != nil {
		return ErrorMetricsEncode.Error(err)
	}

	return httpproto.WriteFull(w, 200, contentType, body, headOnly)
}
