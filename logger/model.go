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

package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type lgr struct {
	mu  sync.RWMutex
	log *logrus.Logger
	flt Fields
}

func (l *lgr) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.SetLevel(lvl.logrus())
}

func (l *lgr) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Level(l.log.GetLevel())
}

func (l *lgr) SetFields(f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flt = f
}

func (l *lgr) GetFields() Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.flt
}

func (l *lgr) WithFields(f Fields) Logger {
	l.mu.RLock()
	merged := mergeFields(l.flt, f)
	base := l.log
	l.mu.RUnlock()

	n := &lgr{log: base, flt: merged}
	return n
}

func mergeFields(base, add Fields) Fields {
	out := make(Fields, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}

func (l *lgr) entry(f Fields) *logrus.Entry {
	l.mu.RLock()
	base := l.log
	merged := mergeFields(l.flt, f)
	l.mu.RUnlock()

	return base.WithFields(logrus.Fields(merged))
}

func (l *lgr) Debug(msg string, f Fields) {
	l.entry(f).Debug(msg)
}

func (l *lgr) Info(msg string, f Fields) {
	l.entry(f).Info(msg)
}

func (l *lgr) Warn(msg string, f Fields) {
	l.entry(f).Warn(msg)
}

func (l *lgr) Error(msg string, err error, f Fields) {
	e := l.entry(f)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func (l *lgr) Fatal(msg string, err error, f Fields) {
	e := l.entry(f)
	if err != nil {
		e = e.WithError(err)
	}
	e.Fatal(msg)
}
