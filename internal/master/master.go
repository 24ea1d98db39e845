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

//go:build linux

// Package master is the supervisor that loads configuration, maps the
// shared statistics region, forks the worker fleet, and reports on and
// reaps it until a shutdown signal arrives. Go cannot fork() a running
// multi-goroutine process safely, so "fork" here is re-exec: the master
// launches copies of its own binary with a marker environment variable,
// exactly as the teacher's process-pool code launches sibling servers —
// each copy takes the worker branch in cmd/staticd instead of the master
// branch.
package master

import (
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sabouaram/staticd/internal/config"
	"github.com/sabouaram/staticd/internal/logger"
	"github.com/sabouaram/staticd/internal/shm"
	"github.com/sabouaram/staticd/internal/stats"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// EnvWorkerFlag, present in the environment, marks a re-exec'd process as a
// worker rather than the master; EnvWorkerIndex carries its 1-based fleet
// position, used only to tag its logs. The inherited region fd is always
// statsRegionFD, whatever the index.
const (
	EnvWorkerFlag  = "STATICD_WORKER"
	EnvWorkerIndex = "STATICD_WORKER_INDEX"

	statsRegionFD = 3

	summaryEveryTicks = 30
	tickInterval       = time.Second
	shutdownGrace      = 10 * time.Second
)

// IsWorkerProcess reports whether the current process was re-exec'd as a
// worker.
func IsWorkerProcess() bool {
	return os.Getenv(EnvWorkerFlag) == "1"
}

// Master owns the shared statistics region and the worker fleet.
type Master struct {
	cfg       config.Config
	cfgPath   string
	log       logger.Logger
	region    *shm.Region
	rec       *stats.Record
	startTime time.Time
	procs     []*exec.Cmd
}

// Run loads cfg (already read from cfgPath by the caller), maps the shared
// statistics region, forks the worker fleet, and blocks until a shutdown
// signal, reporting periodically in between.
func Run(cfgPath string, cfg config.Config, log logger.Logger) liberr.Error {
	m := &Master{cfg: cfg, cfgPath: cfgPath, log: log, startTime: time.Now()}

	region, err := shm.Create(stats.Size)
	if err != nil {
		return ErrorSharedRegion.Error(err)
	}
	m.region = region

	rec, ok := stats.Attach(region.Bytes())
	if !ok {
		return ErrorSharedRegion.Error(nil)
	}
	rec.Init(m.startTime)
	m.rec = rec

	m.log.Info("master starting: pid=%d port=%d workers=%d threads_per_worker=%d cache_size_mb=%d document_root=%s", nil,
		os.Getpid(), cfg.Port, cfg.NumWorkers, cfg.ThreadsPerWorker, cfg.CacheSizeMB, cfg.DocumentRoot)

	if err := m.forkFleet(); err != nil {
		m.teardown()
		return err
	}

	return m.superviseLoop()
}

// forkFleet re-execs the current binary NumWorkers times, each inheriting
// the shared statistics region's fd as fd 3.
func (m *Master) forkFleet() liberr.Error {
	self, err := os.Executable()
	if err != nil {
		return ErrorForkWorker.Error(err)
	}

	for i := 1; i <= m.cfg.NumWorkers; i++ {
		cmd := exec.Command(self, m.cfgPath)
		cmd.Env = append(os.Environ(), EnvWorkerFlag+"=1", EnvWorkerIndex+"="+strconv.Itoa(i))
		cmd.ExtraFiles = []*os.File{m.region.File()}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return ErrorForkWorker.Error(err)
		}
		m.procs = append(m.procs, cmd)
		m.log.Info("forked worker %d: pid=%d", nil, i, cmd.Process.Pid)
	}
	return nil
}

// superviseLoop is the once-per-second tick: reap exited children
// opportunistically, emit a statistics summary every 30 ticks, and react
// to a termination signal by running the shutdown sequence.
func (m *Master) superviseLoop() liberr.Error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-sigCh:
			m.log.Info("shutdown signal received", nil)
			m.shutdown()
			m.teardown()
			return nil

		case <-ticker.C:
			m.reapExited()
			ticks++
			if ticks%summaryEveryTicks == 0 {
				m.logSummary()
			}
		}
	}
}

// reapExited performs a non-blocking wait on every tracked worker pid,
// dropping any that have already exited. It never blocks the tick.
func (m *Master) reapExited() {
	alive := m.procs[:0]
	for _, cmd := range m.procs {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
		if err == nil && pid == cmd.Process.Pid {
			m.log.Warning("worker exited: pid=%d status=%d", nil, pid, ws.ExitStatus())
			continue
		}
		alive = append(alive, cmd)
	}
	m.procs = alive
}

func (m *Master) logSummary() {
	s := m.rec.Snapshot()
	sinceLastMs, sinceLastCount := m.rec.SnapshotDelta()
	m.log.Info(
		"stats: uptime=%ds requests=%d bytes=%d active=%d avg_ms=%.2f avg_ms_since_last=%.2f (n=%d) codes={200:%d 400:%d 403:%d 404:%d 500:%d 501:%d 503:%d}",
		nil,
		s.UptimeSeconds, s.TotalRequests, s.BytesSent, s.ActiveConnections, s.AvgResponseTimeMs,
		sinceLastMs, sinceLastCount,
		s.Code200, s.Code400, s.Code403, s.Code404, s.Code500, s.Code501, s.Code503,
	)
}

// shutdown sends SIGTERM to every worker and waits up to shutdownGrace for
// each to exit, force-killing any straggler.
func (m *Master) shutdown() {
	for _, cmd := range m.procs {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(shutdownGrace)
	for len(m.procs) > 0 && time.Now().Before(deadline) {
		m.reapExited()
		if len(m.procs) > 0 {
			time.Sleep(50 * time.Millisecond)
		}
	}

	for _, cmd := range m.procs {
		m.log.Warning("force-killing worker past shutdown grace: pid=%d", nil, cmd.Process.Pid)
		_ = cmd.Process.Kill()
	}
}

func (m *Master) teardown() {
	if m.region != nil {
		_ = m.region.Close()
	}
}
