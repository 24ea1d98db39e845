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

package master

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sabouaram/staticd/internal/config"
	"github.com/sabouaram/staticd/internal/logger"
	"github.com/sabouaram/staticd/internal/shm"
	"github.com/sabouaram/staticd/internal/stats"
	"github.com/sabouaram/staticd/internal/worker"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// WorkerIndex reads this process's 1-based fleet position, set by the
// master that forked it.
func WorkerIndex() int {
	i, _ := strconv.Atoi(os.Getenv(EnvWorkerIndex))
	return i
}

// RunWorkerProcess is the entry point taken by every re-exec'd worker: it
// opens the shared statistics region inherited at fd 3, builds its own
// SO_REUSEPORT listener on the configured port, traps the same shutdown
// signals the master does, and runs the accept loop until one arrives.
func RunWorkerProcess(cfg config.Config, log logger.Logger) liberr.Error {
	index := WorkerIndex()
	log = log.WithField("worker", index)

	region, err := shm.OpenFD(statsRegionFD, stats.Size)
	if err != nil {
		return ErrorSharedRegion.Error(err)
	}
	defer func() { _ = region.Close() }()

	rec, ok := stats.Attach(region.Bytes())
	if !ok {
		return ErrorSharedRegion.Error(nil)
	}

	ln, lerr := NewReusePortListener(cfg.Port)
	if lerr != nil {
		return lerr
	}

	w := worker.New(index, cfg, ln, rec, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info("worker shutting down", nil)
		w.Shutdown()
	}()

	return w.Run()
}
