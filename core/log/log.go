// Copyright (C) 2017 Google Inc.
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

// Package log provides context-carried structured logging.
//
// Loggers are not passed around directly; a Handler, a severity filter and an
// optional tag are attached to a context.Context and the package-level
// functions log through whatever the context carries.
package log

import (
	"context"
	"fmt"
	"time"
)

// Logger is a snapshot of the logging state of a context.
type Logger struct {
	handler Handler
	filter  Severity
	tag     string
}

// From returns a new Logger from the context ctx.
func From(ctx context.Context) *Logger {
	return &Logger{
		handler: GetHandler(ctx),
		filter:  GetFilter(ctx),
		tag:     GetTag(ctx),
	}
}

// V logs a verbose message to the logging target.
func V(ctx context.Context, fmt string, args ...interface{}) { From(ctx).V(fmt, args...) }

// D logs a debug message to the logging target.
func D(ctx context.Context, fmt string, args ...interface{}) { From(ctx).D(fmt, args...) }

// I logs an info message to the logging target.
func I(ctx context.Context, fmt string, args ...interface{}) { From(ctx).I(fmt, args...) }

// W logs a warning message to the logging target.
func W(ctx context.Context, fmt string, args ...interface{}) { From(ctx).W(fmt, args...) }

// E logs an error message to the logging target.
func E(ctx context.Context, fmt string, args ...interface{}) { From(ctx).E(fmt, args...) }

// F logs a fatal message to the logging target.
// If stopProcess is true then the message indicates the process should stop.
func F(ctx context.Context, stopProcess bool, fmt string, args ...interface{}) {
	From(ctx).F(fmt, stopProcess, args...)
}

// V logs a verbose message to the logging target.
func (l *Logger) V(fmt string, args ...interface{}) { l.Logf(Verbose, false, fmt, args...) }

// D logs a debug message to the logging target.
func (l *Logger) D(fmt string, args ...interface{}) { l.Logf(Debug, false, fmt, args...) }

// I logs an info message to the logging target.
func (l *Logger) I(fmt string, args ...interface{}) { l.Logf(Info, false, fmt, args...) }

// W logs a warning message to the logging target.
func (l *Logger) W(fmt string, args ...interface{}) { l.Logf(Warning, false, fmt, args...) }

// E logs an error message to the logging target.
func (l *Logger) E(fmt string, args ...interface{}) { l.Logf(Error, false, fmt, args...) }

// F logs a fatal message to the logging target.
func (l *Logger) F(fmt string, stopProcess bool, args ...interface{}) {
	l.Logf(Fatal, stopProcess, fmt, args...)
}

// Logf logs a printf-style message at severity s to the logging target.
func (l *Logger) Logf(s Severity, stopProcess bool, f string, args ...interface{}) {
	if l.handler == nil || s < l.filter {
		return
	}
	l.handler.Handle(l.Messagef(s, stopProcess, f, args...))
}

// Messagef returns a new Message with the given severity and text.
func (l *Logger) Messagef(s Severity, stopProcess bool, f string, args ...interface{}) *Message {
	return &Message{
		Text:        fmt.Sprintf(f, args...),
		Time:        time.Now(),
		Severity:    s,
		Tag:         l.tag,
		StopProcess: stopProcess,
	}
}
