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

// Package resource tracks the identity, metadata and contents of every
// object the capture layer wraps.
package resource

import (
	"fmt"
	"sync/atomic"

	"github.com/deM-on/renderdoc/serialise"
)

// ID is a stable, globally unique resource identifier. IDs are allocated
// monotonically and never reused.
type ID uint64

// NilID is the null resource identifier.
const NilID ID = 0

// FirstReplayID is the base of the identifier range used by a replaying
// process, disjoint from any identifier a capture can allocate.
const FirstReplayID ID = 1 << 62

var nextID = uint64(1)

// NewID allocates the next unique identifier.
func NewID() ID {
	return ID(atomic.AddUint64(&nextID, 1) - 1)
}

// SetReplayIDs moves the identifier generator into the replay range so that
// identifiers created during replay never collide with identifiers read
// from a log.
func SetReplayIDs() {
	atomic.StoreUint64(&nextID, uint64(FirstReplayID))
}

// IsValid returns true if the id is not the null identifier.
func (id ID) IsValid() bool { return id != NilID }

func (id ID) String() string {
	if id == NilID {
		return "(nil)"
	}
	return fmt.Sprintf("res<%d>", uint64(id))
}

// Serialise reads or writes the identifier as a u64 element.
func Serialise(s *serialise.Serialiser, name string, id *ID) {
	v := uint64(*id)
	s.SerialiseUint64(name, &v)
	*id = ID(v)
}
