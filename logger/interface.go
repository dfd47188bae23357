/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package logger wraps logrus the way the rest of this driver's ambient
// stack wraps its dependencies: a small interface, a default fields set
// carried on every entry, and per-call field overrides.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Level mirrors logrus.Level with the driver's own naming so call sites
// never import logrus directly.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (l Level) logrus() logrus.Level {
	return logrus.Level(l)
}

// Fields carries structured key/value context attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging surface used by every component of the driver:
// conn, pool, control, session. Nothing in the driver logs directly to
// stdout; everything goes through an injected Logger.
type Logger interface {
	// SetLevel changes the minimal severity that is actually emitted.
	SetLevel(lvl Level)

	// GetLevel returns the minimal severity that is actually emitted.
	GetLevel() Level

	// SetFields replaces the default fields attached to every entry.
	SetFields(f Fields)

	// GetFields returns the default fields attached to every entry.
	GetFields() Fields

	// WithFields returns a derived Logger carrying the given fields in
	// addition to the default ones, leaving the receiver untouched.
	WithFields(f Fields) Logger

	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, err error, f Fields)
	Fatal(msg string, err error, f Fields)
}

// New returns a Logger writing through logrus's standard logger, with
// InfoLevel as the default severity.
func New() Logger {
	l := &lgr{log: logrus.StandardLogger()}
	l.SetLevel(InfoLevel)
	return l
}

// NewWithLogrus wraps a caller-provided *logrus.Logger instead of the
// package-level standard logger, e.g. to route through a file or syslog
// hook configured by the embedding application.
func NewWithLogrus(base *logrus.Logger) Logger {
	l := &lgr{log: base}
	l.SetLevel(InfoLevel)
	return l
}
