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

// Package stacktrace captures the callstack of the current goroutine as a
// list of program counters, in the form they are stored in capture logs.
package stacktrace

import (
	"fmt"
	"runtime"
)

// Callstack is a list of program counters, outermost frame last.
type Callstack []uint64

const stackLimit = 50

// Capture returns the callstack of the calling goroutine, not including the
// call to Capture itself.
func Capture() Callstack {
	callers := make([]uintptr, stackLimit)
	count := runtime.Callers(2, callers)
	stack := make(Callstack, count)
	for i, pc := range callers[:count] {
		stack[i] = uint64(pc)
	}
	return stack
}

// Entry returns a human readable description of the frame at index i, or a
// placeholder when the program counter cannot be resolved.
func (c Callstack) Entry(i int) string {
	fn := runtime.FuncForPC(uintptr(c[i]))
	if fn == nil {
		return fmt.Sprintf("0x%x", c[i])
	}
	file, line := fn.FileLine(uintptr(c[i]))
	return fmt.Sprintf("%s (%s:%d)", fn.Name(), file, line)
}
