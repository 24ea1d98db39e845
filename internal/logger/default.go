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

package logger

import "os"

// defaultLogger backs Default and Level.Logf. It is separate from the logger
// cmd/staticd builds and hands to the master and workers, which log only
// through that one.
var defaultLogger = New(os.Stdout, InfoLevel)

// Default returns the process-wide default logger.
func Default() Logger {
	return defaultLogger
}

// Logf logs message at level lvl on the default logger, formatted with
// args, with no structured data payload. Named after the teacher's
// `liblog.InfoLevel.Logf(...)` convenience so call sites read the same way.
func (lvl Level) Logf(message string, args ...interface{}) {
	switch lvl {
	case DebugLevel:
		defaultLogger.Debug(message, nil, args...)
	case InfoLevel:
		defaultLogger.Info(message, nil, args...)
	case WarnLevel:
		defaultLogger.Warning(message, nil, args...)
	case ErrorLevel:
		defaultLogger.Error(message, nil, args...)
	case FatalLevel, PanicLevel:
		defaultLogger.Fatal(message, nil, args...)
	default:
		defaultLogger.Info(message, nil, args...)
	}
}
