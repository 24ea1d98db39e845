package worker_test

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/config"
	"github.com/sabouaram/staticd/internal/logger"
	"github.com/sabouaram/staticd/internal/stats"
	"github.com/sabouaram/staticd/internal/worker"
)

var testLogger = logger.New(io.Discard, logger.ErrorLevel)

func startWorker(t *testing.T, cfg config.Config) (addr string, rec *stats.Record, stop func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpLn := ln.(*net.TCPListener)

	backing := make([]byte, stats.Size)
	rec, ok := stats.Attach(backing)
	require.True(t, ok)
	rec.Init(time.Now())

	w := worker.New(1, cfg, tcpLn, rec, testLogger)

	done := make(chan struct{})
	go func() {
		_ = w.Run()
		close(done)
	}()

	return tcpLn.Addr().String(), rec, func() {
		w.Shutdown()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
}

func baseConfig(root string) config.Config {
	return config.Config{
		Port:             0,
		DocumentRoot:     root,
		NumWorkers:       1,
		ThreadsPerWorker: 4,
		TimeoutSeconds:   2,
		CacheSizeMB:      1,
	}
}

func doRequest(t *testing.T, addr, method, target string) (status int, headers map[string]string, body []byte) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte(method + " " + target + " HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)

	var reason string
	_, _ = fscan(statusLine, &status, &reason)

	headers = map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 {
			headers[parts[0]] = parts[1]
		}
	}

	body, _ = io.ReadAll(r)
	return status, headers, body
}

func fscan(line string, status *int, reason *string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	n := 0
	for _, c := range fields[1] {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	*status = n
	if len(fields) > 2 {
		*reason = strings.Join(fields[2:], " ")
	}
	return 1, nil
}

func TestGetExistingFileAndCacheHit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644))

	addr, _, stop := startWorker(t, baseConfig(root))
	defer stop()

	status, headers, body := doRequest(t, addr, "GET", "/")
	require.Equal(t, 200, status)
	require.Equal(t, "5", headers["Content-Length"])
	require.Equal(t, "hello", string(body))
	require.Equal(t, "MISS", headers["X-Cache"])

	status, headers, body = doRequest(t, addr, "GET", "/")
	require.Equal(t, 200, status)
	require.Equal(t, "HIT", headers["X-Cache"])
	require.Equal(t, "hello", string(body))
}

func TestGetAbsentFile(t *testing.T) {
	root := t.TempDir()
	addr, _, stop := startWorker(t, baseConfig(root))
	defer stop()

	status, _, body := doRequest(t, addr, "GET", "/no-such")
	require.Equal(t, 404, status)
	require.Contains(t, string(body), "<h1>404")
}

func TestPathTraversalForbidden(t *testing.T) {
	root := t.TempDir()
	addr, _, stop := startWorker(t, baseConfig(root))
	defer stop()

	status, _, _ := doRequest(t, addr, "GET", "/../etc/passwd")
	require.Equal(t, 403, status)
}

func TestHeadSemantics(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello"), 0o644))

	addr, _, stop := startWorker(t, baseConfig(root))
	defer stop()

	status, headers, body := doRequest(t, addr, "HEAD", "/index.html")
	require.Equal(t, 200, status)
	require.Equal(t, "5", headers["Content-Length"])
	require.Empty(t, body)
}

func TestHealthEndpointBypassesQueue(t *testing.T) {
	root := t.TempDir()
	addr, _, stop := startWorker(t, baseConfig(root))
	defer stop()

	status, headers, body := doRequest(t, addr, "GET", "/health")
	require.Equal(t, 200, status)
	require.Equal(t, "application/json", headers["Content-Type"])
	require.Contains(t, string(body), `"status":"healthy"`)
}
