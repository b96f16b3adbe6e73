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
	"bytes"
	"fmt"
	"time"
)

// Message is a single log entry as passed to a Handler.
type Message struct {
	// Text is the formatted message text.
	Text string
	// Time is the time the message was logged.
	Time time.Time
	// Severity is the message severity.
	Severity Severity
	// Tag is the tag bound to the logging context, if any.
	Tag string
	// StopProcess is true if the message indicates the process should stop.
	StopProcess bool
}

func (m *Message) String() string {
	buf := bytes.Buffer{}
	fmt.Fprintf(&buf, "%s: ", m.Severity.Short())
	if m.Tag != "" {
		fmt.Fprintf(&buf, "[%s] ", m.Tag)
	}
	buf.WriteString(m.Text)
	return buf.String()
}
