/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package logging is a trimmed adaptation of the teacher's logger
// package: a structured Logger over github.com/sirupsen/logrus with
// level filtering and attachable fields, injected into the reactor, the
// dispatch worker pool and server.Server at construction instead of a
// global logger (see SPEC_FULL.md §10.1 and DESIGN.md's grounding ledger
// for what of the teacher's 80-file logger package this replaces).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value context attached to one log entry,
// mirroring the teacher's logger/fields.Fields shape but as a plain map
// rather than a dedicated atomic-map type: this package's fields are
// always entry-scoped and short-lived, never shared across goroutines.
type Fields map[string]interface{}

// Logger is the interface every core component depends on. Kept
// deliberately small next to the teacher's (io.WriteCloser + a dozen
// level methods + gin/hclog/jww bridges): this repository only ever
// needs leveled structured entries.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields, err error)
	// With returns a child Logger that merges f into every entry it logs,
	// the way the teacher's logger.Entry composes default fields with
	// per-call fields.
	With(f Fields) Logger
}

type logger struct {
	l      *logrus.Logger
	fields logrus.Fields
}

// New builds a Logger writing structured entries to out at the given
// level. An optional file hook can be added with AddFileHook.
func New(out io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	return &logger{l: l, fields: logrus.Fields{}}
}

// NewStdout is the common case: JSON entries to os.Stdout.
func NewStdout(level logrus.Level) Logger {
	return New(os.Stdout, level)
}

// AddFileHook additionally mirrors every entry to path, truncating
// nothing and rotating nothing — the teacher's hookfile package adds
// buffered async rotation via a now-deleted ioutils aggregator; this
// trimmed hook is a plain append-only *os.File sink, which is all a
// single-process chat server needs.
func AddFileHook(l Logger, path string) (Logger, error) {
	lg, ok := l.(*logger)
	if !ok {
		return l, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return l, err
	}
	lg.l.AddHook(&fileHook{w: f})
	return lg, nil
}

type fileHook struct{ w io.Writer }

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := e.Bytes()
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

func (l *logger) entry() *logrus.Entry {
	return l.l.WithFields(l.fields)
}

func (l *logger) Debug(msg string, f Fields) { l.entry().WithFields(logrus.Fields(f)).Debug(msg) }
func (l *logger) Info(msg string, f Fields)  { l.entry().WithFields(logrus.Fields(f)).Info(msg) }
func (l *logger) Warn(msg string, f Fields)  { l.entry().WithFields(logrus.Fields(f)).Warn(msg) }

func (l *logger) Error(msg string, f Fields, err error) {
	e := l.entry().WithFields(logrus.Fields(f))
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func (l *logger) With(f Fields) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(f))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}
	return &logger{l: l.l, fields: merged}
}
