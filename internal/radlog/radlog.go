// Copyright 2024 The Radiam Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package radlog defines the agent's logging interface. A StdLogger from
// NewStdLogger writes leveled, timestamped lines to a log file and mirrors
// info-and-above messages to the console (stdout, or stderr for warnings
// and errors); any Logger can be installed via SetLogger.
package radlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is a log severity.
type Level int

// Severities, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps a CLI/config string ("debug", "info", "warning", "error")
// to a Level, defaulting to LevelInfo for anything else.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the agent's logging interface.
type Logger interface {
	Errorf(format string, args ...any)
	Error(args ...any)
	Warnf(format string, args ...any)
	Warn(args ...any)
	Infof(format string, args ...any)
	Info(args ...any)
	Debugf(format string, args ...any)
	Debug(args ...any)
}

var (
	mu     sync.Mutex
	logger Logger = &StdLogger{level: LevelInfo, out: log.New(os.Stdout, "", log.LstdFlags)}
)

// SetLogger overwrites the default logger with a user-specified one.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Errorf is the static formatted error logging function.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

// Error is the static error logging function.
func Error(args ...any) { current().Error(args...) }

// Warnf is the static formatted warning logging function.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Warn is the static warning logging function.
func Warn(args ...any) { current().Warn(args...) }

// Infof is the static formatted info logging function.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Info is the static info logging function.
func Info(args ...any) { current().Info(args...) }

// Debugf is the static formatted debug logging function.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Debug is the static debug logging function.
func Debug(args ...any) { current().Debug(args...) }

// StdLogger is the default Logger implementation: it writes full detail
// (including debug) to an underlying writer (normally the agent's log
// file), and mirrors info-and-above to stdout/stderr so the user sees a
// clean one-line summary as required by the error handling design.
type StdLogger struct {
	mu      sync.Mutex
	level   Level
	out     *log.Logger
	console *log.Logger
}

// NewStdLogger builds a StdLogger that writes full detail to fileOut and a
// terse mirror of info/warn/error to stdout/stderr.
func NewStdLogger(level Level, fileOut io.Writer) *StdLogger {
	return &StdLogger{
		level:   level,
		out:     log.New(fileOut, "", log.LstdFlags|log.Lmicroseconds),
		console: log.New(os.Stdout, "", 0),
	}
}

func (l *StdLogger) logf(lvl Level, tag, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.out != nil {
		l.out.Printf("[%s] %s", tag, msg)
	}
	if lvl >= l.level && lvl >= LevelInfo {
		dst := os.Stdout
		if lvl >= LevelWarning {
			dst = os.Stderr
		}
		fmt.Fprintf(dst, "%s\n", msg)
	}
}

// Errorf logs a formatted error.
func (l *StdLogger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR", format, args...) }

// Error logs an error.
func (l *StdLogger) Error(args ...any) { l.logf(LevelError, "ERROR", "%s", fmt.Sprint(args...)) }

// Warnf logs a formatted warning.
func (l *StdLogger) Warnf(format string, args ...any) { l.logf(LevelWarning, "WARN", format, args...) }

// Warn logs a warning.
func (l *StdLogger) Warn(args ...any) { l.logf(LevelWarning, "WARN", "%s", fmt.Sprint(args...)) }

// Infof logs a formatted info message.
func (l *StdLogger) Infof(format string, args ...any) { l.logf(LevelInfo, "INFO", format, args...) }

// Info logs an info message.
func (l *StdLogger) Info(args ...any) { l.logf(LevelInfo, "INFO", "%s", fmt.Sprint(args...)) }

// Debugf logs a formatted debug message. Debug output never reaches the console mirror.
func (l *StdLogger) Debugf(format string, args ...any) {
	if l.level > LevelDebug {
		return
	}
	l.logf(LevelDebug, "DEBUG", format, args...)
}

// Debug logs a debug message.
func (l *StdLogger) Debug(args ...any) {
	if l.level > LevelDebug {
		return
	}
	l.logf(LevelDebug, "DEBUG", "%s", fmt.Sprint(args...))
}
