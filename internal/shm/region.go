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

// Package shm creates the anonymous, cross-process memory region backing
// the shared statistics record: an unnamed file created with memfd_create(2)
// so it has no path any other process could open by name, sized with
// ftruncate(2), and mapped MAP_SHARED with mmap(2) so every forked worker's
// mapping stays coherent with the master's.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// Region is a fixed-size block of memory shared between the master and
// every worker it forks, via MAP_SHARED over a common memfd.
type Region struct {
	fd   int
	data []byte
}

// Create allocates a new anonymous shared region of size bytes. Call before
// forking: each child inherits the fd and independently mmaps it, since
// MAP_SHARED mappings of the same underlying file stay coherent across
// processes without the fd itself needing to be re-shared explicitly (fork
// already duplicates it).
func Create(size int) (*Region, liberr.Error) {
	fd, err := unix.MemfdCreate("staticd-stats", 0)
	if err != nil {
		return nil, ErrorMemfdCreate.Error(err)
	}

	if err = unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorTruncate.Error(err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, ErrorMmap.Error(err)
	}

	return &Region{fd: fd, data: data}, nil
}

// OpenFD maps an existing region from an inherited file descriptor — the
// path a forked worker takes, given the fd number its master passed down.
func OpenFD(fd int, size int) (*Region, liberr.Error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, ErrorMmap.Error(err)
	}
	return &Region{fd: fd, data: data}, nil
}

// Bytes returns the mapped memory. Callers are expected to interpret it
// through a fixed binary layout (see internal/stats) guarded by a
// process-shared primitive; Region itself has no opinion on contents.
func (r *Region) Bytes() []byte {
	return r.data
}

// FD returns the underlying memfd, to be inherited by forked workers as an
// extra file in os/exec.Cmd.ExtraFiles.
func (r *Region) FD() int {
	return r.fd
}

// File wraps the region's fd as an *os.File suitable for os/exec.Cmd.ExtraFiles.
func (r *Region) File() *os.File {
	return os.NewFile(uintptr(r.fd), fmt.Sprintf("staticd-stats-%d", r.fd))
}

// Close unmaps the region. It does not close the fd, which may still be
// mapped by other processes.
func (r *Region) Close() error {
	return unix.Munmap(r.data)
}
