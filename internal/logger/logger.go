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

// Package logger is the structured logging surface shared by the master and
// every worker: a thin wrapper over logrus exposing leveled calls that take
// an optional structured data payload alongside the message, the way
// nabbar-golib's logger package shapes its entry points.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus.Level so callers of this package never import logrus
// directly.
type Level uint32

const (
	PanicLevel Level = Level(logrus.PanicLevel)
	FatalLevel Level = Level(logrus.FatalLevel)
	ErrorLevel Level = Level(logrus.ErrorLevel)
	WarnLevel  Level = Level(logrus.WarnLevel)
	InfoLevel  Level = Level(logrus.InfoLevel)
	DebugLevel Level = Level(logrus.DebugLevel)
)

// Logger is the leveled logging surface. Each method accepts an optional
// data payload (added as a "data" field when non-nil) in addition to a
// format string and its args.
type Logger interface {
	Debug(message string, data interface{}, args ...interface{})
	Info(message string, data interface{}, args ...interface{})
	Warning(message string, data interface{}, args ...interface{})
	Error(message string, data interface{}, args ...interface{})
	Fatal(message string, data interface{}, args ...interface{})

	// WithField returns a Logger that attaches key/val to every entry it
	// logs, used to tag a worker's output with its fleet index and
	// instance id.
	WithField(key string, val interface{}) Logger

	SetLevel(lvl Level)
	GetLevel() Level
}

type logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing to w. When w is a terminal (os.Stdout by
// convention), a text formatter is used; otherwise JSON, mirroring the
// teacher's TTY/structured output split without the syslog hook machinery
// that split originally fed.
func New(w io.Writer, lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.Level(lvl))

	if f, ok := w.(*os.File); ok && isTerminal(f) {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &logger{entry: logrus.NewEntry(l)}
}

func (o *logger) log(lvl logrus.Level, message string, data interface{}, args []interface{}) {
	e := o.entry
	if data != nil {
		e = e.WithField("data", data)
	}
	e.Log(lvl, fmt.Sprintf(message, args...))
}

func (o *logger) Debug(message string, data interface{}, args ...interface{}) {
	o.log(logrus.DebugLevel, message, data, args)
}

func (o *logger) Info(message string, data interface{}, args ...interface{}) {
	o.log(logrus.InfoLevel, message, data, args)
}

func (o *logger) Warning(message string, data interface{}, args ...interface{}) {
	o.log(logrus.WarnLevel, message, data, args)
}

func (o *logger) Error(message string, data interface{}, args ...interface{}) {
	o.log(logrus.ErrorLevel, message, data, args)
}

func (o *logger) Fatal(message string, data interface{}, args ...interface{}) {
	o.log(logrus.FatalLevel, message, data, args)
}

func (o *logger) WithField(key string, val interface{}) Logger {
	return &logger{entry: o.entry.WithField(key, val)}
}

func (o *logger) SetLevel(lvl Level) {
	o.entry.Logger.SetLevel(logrus.Level(lvl))
}

func (o *logger) GetLevel() Level {
	return Level(o.entry.Logger.GetLevel())
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
