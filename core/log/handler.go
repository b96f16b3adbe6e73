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

package log

import (
	"fmt"
	"io"
	"sync"
)

// Handler is the interface implemented by types that consume log messages.
type Handler interface {
	Handle(*Message)
	Close()
}

type handler struct {
	handle func(*Message)
	close  func()
}

func (h *handler) Handle(m *Message) { h.handle(m) }
func (h *handler) Close() {
	if h.close != nil {
		h.close()
	}
}

// NewHandler returns a Handler that calls handle for each message and close
// (if not nil) when the handler is closed.
func NewHandler(handle func(*Message), close func()) Handler {
	return &handler{handle, close}
}

// Writer returns a Handler that writes plain-text messages to w, serialized
// by an internal mutex.
func Writer(w io.Writer) Handler {
	mutex := sync.Mutex{}
	return NewHandler(func(m *Message) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprintln(w, m.String())
	}, nil)
}

var ansiColors = map[Severity]string{
	Debug:   "\033[0;36m",
	Warning: "\033[0;33m",
	Error:   "\033[0;31m",
	Fatal:   "\033[0;31m",
}

// ColorWriter returns a Handler that writes ANSI-colored messages to w.
func ColorWriter(w io.Writer) Handler {
	mutex := sync.Mutex{}
	return NewHandler(func(m *Message) {
		mutex.Lock()
		defer mutex.Unlock()
		if c, ok := ansiColors[m.Severity]; ok {
			fmt.Fprintf(w, "%s%s\033[0m\n", c, m.String())
		} else {
			fmt.Fprintln(w, m.String())
		}
	}, nil)
}

// Channel returns a Handler that forwards messages to out on a separate
// goroutine. Close blocks until all pending messages are delivered.
func Channel(out Handler, size int) Handler {
	c := make(chan *Message, size)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range c {
			out.Handle(m)
		}
	}()
	return NewHandler(func(m *Message) { c <- m }, func() {
		close(c)
		<-done
		out.Close()
	})
}
