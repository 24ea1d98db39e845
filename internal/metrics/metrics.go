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

// Package metrics builds a Prometheus registry whose collectors pull every
// value from a statistics snapshot at scrape time instead of being updated
// inline as requests are served — the same SetCollect pull pattern the
// teacher's prometheus/metrics package offers for externally-tracked
// values, applied here to our process-shared accumulator rather than a
// live system query.
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sabouaram/staticd/internal/stats"
)

// codeCounter pairs the status-code label exposed on http_requests_by_code
// with the Snapshot field it reads.
type codeCounter struct {
	label string
	get   func(stats.Snapshot) uint64
}

var codeCounters = []codeCounter{
	{"200", func(s stats.Snapshot) uint64 { return s.Code200 }},
	{"400", func(s stats.Snapshot) uint64 { return s.Code400 }},
	{"403", func(s stats.Snapshot) uint64 { return s.Code403 }},
	{"404", func(s stats.Snapshot) uint64 { return s.Code404 }},
	{"500", func(s stats.Snapshot) uint64 { return s.Code500 }},
	{"501", func(s stats.Snapshot) uint64 { return s.Code501 }},
	{"503", func(s stats.Snapshot) uint64 { return s.Code503 }},
}

// Registry builds a fresh, unregistered-elsewhere prometheus.Registry whose
// collectors call snapshot() at Gather time. Building one per scrape keeps
// the collector set stateless: there is nothing to unregister between
// requests and no risk of accumulating collectors across workers.
func Registry(snapshot func() stats.Snapshot) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests served by all workers.",
	}, func() float64 { return float64(snapshot().TotalRequests) }))

	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "http_bytes_sent_total",
		Help: "Total response bytes sent to clients by all workers.",
	}, func() float64 { return float64(snapshot().BytesSent) }))

	for _, cc := range codeCounters {
		cc := cc
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "http_requests_by_code",
			Help:        "Total HTTP requests served, partitioned by status code.",
			ConstLabels: prometheus.Labels{"code": cc.label},
		}, func() float64 { return float64(cc.get(snapshot())) }))
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "http_active_connections",
		Help: "Connections currently open across all workers.",
	}, func() float64 { return float64(snapshot().ActiveConnections) }))

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "http_avg_response_time_ms",
		Help: "Average response time in milliseconds since server start.",
	}, func() float64 { return snapshot().AvgResponseTimeMs }))

	return reg
}

// Encode gathers reg and renders it in the Prometheus text exposition
// format, returning the body and the content type to serve it with.
func Encode(reg *prometheus.Registry) ([]byte, string, error) {
	mfs, err := reg.Gather()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range mfs {
		if err = enc.Encode(mf); err != nil {
			return nil, "", err
		}
	}

	return buf.Bytes(), string(expfmt.FmtText), nil
}
