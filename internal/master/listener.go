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
	"net"
	"os"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/staticd/internal/errors"
)

// listenBacklog matches the data model's fixed listen backlog.
const listenBacklog = 128

// NewReusePortListener creates a TCP listener bound to port with
// SO_REUSEPORT and SO_REUSEADDR set before bind, so every worker process
// can independently bind the same address and port; the kernel load
// balances accepted connections across every process holding such a
// socket. This is the per-process counterpart to fd inheritance: the
// listening endpoint is shared by configuration, not by a common fd.
func NewReusePortListener(port int) (*net.TCPListener, liberr.Error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, ErrorListen.Error(err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListen.Error(err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListen.Error(err)
	}

	addr := unix.SockaddrInet4{Port: port}
	if err = unix.Bind(fd, &addr); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListen.Error(err)
	}
	if err = unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, ErrorListen.Error(err)
	}

	f := os.NewFile(uintptr(fd), "staticd-listener")
	ln, lerr := net.FileListener(f)
	_ = f.Close()
	if lerr != nil {
		return nil, ErrorListen.Error(lerr)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, ErrorListen.Error(nil)
	}
	return tcpLn, nil
}
