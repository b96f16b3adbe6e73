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

// Package frame holds the queryable event and drawcall index built while
// walking a captured frame.
package frame

import "sort"

// APIEvent is one recorded API call located in the log.
type APIEvent struct {
	// EventID is the per-frame event number. Root events and each command
	// buffer's internal events count on separate, dense counters starting
	// at 1.
	EventID uint32
	// FileOffset is the chunk's offset in the log stream.
	FileOffset uint64
	// Description is the human readable form of the call.
	Description string
	// Callstack is the captured callstack, if callstack capture was on.
	Callstack []uint64
}

// Events is the per-frame event list, sorted by EventID once reading
// completes.
type Events []APIEvent

// Sort orders the list by ascending EventID.
func (e Events) Sort() {
	sort.SliceStable(e, func(i, j int) bool { return e[i].EventID < e[j].EventID })
}

// Find returns the event with the greatest EventID not greater than
// eventID. The list must be sorted. When every event is above eventID the
// first event is returned with ok false; with the dense IDs the walker
// produces this only happens for eventID zero.
func (e Events) Find(eventID uint32) (APIEvent, bool) {
	if len(e) == 0 {
		return APIEvent{}, false
	}
	// first index with EventID > eventID
	i := sort.Search(len(e), func(i int) bool { return e[i].EventID > eventID })
	if i == 0 {
		return e[0], false
	}
	return e[i-1], true
}
