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

package errors

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	pathSeparator = "/"
	pathVendor    = "vendor"
	pathMod       = "mod"
	pathPkg       = "pkg"
)

// filterPkg is this package's own import path, trimmed of any vendor
// prefix, so getFrame can skip frames still inside the errors package
// itself when walking the call stack for the first external caller.
var filterPkg = currentPackagePath()

func currentPackagePath() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	p := convPathFromLocal(filepath.Dir(file))
	if i := strings.LastIndex(p, pathSeparator+pathVendor+pathSeparator); i != -1 {
		p = p[i+1:]
	}
	return p
}

func convPathFromLocal(str string) string {
	return strings.Replace(str, string(filepath.Separator), pathSeparator, -1)
}

// getFrame walks the call stack from the caller of the errors package's own
// constructors and returns the first frame outside this package.
func getFrame() runtime.Frame {
	programCounters := make([]uintptr, 20)
	n := runtime.Callers(2, programCounters)

	if n > 0 {
		frames := runtime.CallersFrames(programCounters[:n])
		more := true
		for more {
			var frame runtime.Frame
			frame, more = frames.Next()

			if strings.Contains(convPathFromLocal(frame.File), filterPkg) {
				continue
			}

			return runtime.Frame{Function: frame.Function, File: frame.File, Line: frame.Line}
		}
	}

	return getNilFrame()
}

func getNilFrame() runtime.Frame {
	return runtime.Frame{}
}

func filterPath(pathname string) string {
	filterMod := pathSeparator + pathPkg + pathSeparator + pathMod + pathSeparator
	filterVendor := pathSeparator + pathVendor + pathSeparator

	pathname = convPathFromLocal(pathname)

	if i := strings.LastIndex(pathname, filterMod); i != -1 {
		pathname = pathname[i+len(filterMod):]
	}
	if i := strings.LastIndex(pathname, filterVendor); i != -1 {
		pathname = pathname[i+len(filterVendor):]
	}

	return strings.Trim(path.Clean(pathname), pathSeparator)
}
