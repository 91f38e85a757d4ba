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
 */

// Package logger wraps logrus with the console/file hook split the service
// and its CLI need: informational output on stdout, errors on stderr, and an
// optional rotating-free file sink.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	LevelDebug Level = logrus.DebugLevel
	LevelInfo  Level = logrus.InfoLevel
	LevelWarn  Level = logrus.WarnLevel
	LevelError Level = logrus.ErrorLevel
)

// Logger is the logging facade used by every supervisor component.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	WithField(key string, value interface{}) Logger
	Close() error
}

type Options struct {
	Level        Level
	LogToConsole bool
	LogToFile    bool
	LogDir       string
}

type logger struct {
	entry *logrus.Entry
	file  io.Closer
}

// New builds a Logger per Options: a stdout hook for Info/Debug, a stderr
// hook for Warn/Error, and an optional file sink receiving everything.
func New(component string, opt Options) (Logger, error) {
	l := logrus.New()
	l.SetLevel(opt.Level)
	l.SetOutput(io.Discard)
	l.Out = io.Discard

	var closer io.Closer

	if opt.LogToConsole {
		l.AddHook(&consoleHook{out: os.Stdout, err: os.Stderr, minLevel: opt.Level})
	}

	if opt.LogToFile && opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opt.LogDir+"/"+component+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.AddHook(&fileHook{out: f, minLevel: opt.Level})
		closer = f
	}

	return &logger{entry: l.WithField("component", component), file: closer}, nil
}

func (l *logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value), file: l.file}
}

func (l *logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// consoleHook splits output between stdout (debug/info) and stderr (warn/error/fatal/panic).
type consoleHook struct {
	out, err io.Writer
	minLevel Level
}

func (h *consoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleHook) Fire(e *logrus.Entry) error {
	if e.Level > h.minLevel {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	if e.Level <= logrus.WarnLevel {
		_, err = h.err.Write([]byte(line))
	} else {
		_, err = h.out.Write([]byte(line))
	}
	return err
}

type fileHook struct {
	out      io.Writer
	minLevel Level
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(e *logrus.Entry) error {
	if e.Level > h.minLevel {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.out.Write([]byte(line))
	return err
}
