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

package serialise

import "context"

// Type identifies the kind of a chunk. Values below FirstChunkID are system
// kinds shared by every driver; values from FirstChunkID up are allocated by
// the driver layer.
type Type uint32

const (
	// NilType is the zero chunk type.
	NilType Type = 0

	// InitialContents is the system chunk carrying a resource snapshot taken
	// at capture start.
	InitialContents Type = 1

	// FirstChunkID is the first driver-allocated chunk type.
	FirstChunkID Type = 1000
)

// Flags stored in the chunk header byte.
const (
	// ChunkHasCallstack marks a chunk followed by a callstack block.
	ChunkHasCallstack uint8 = 1 << 0
)

// Chunk is a closed, immutable chunk: a kind, its payload bytes and an
// optional captured callstack.
type Chunk struct {
	Kind      Type
	Payload   []byte
	Callstack []uint64
}

// Handler re-executes a chunk of a given kind from the serialiser.
type Handler func(ctx context.Context, s *Serialiser) error

type registration struct {
	name    string
	handler Handler
}

// Registry maps chunk kinds to their name and handler.
type Registry struct {
	entries map[Type]registration
}

// NewRegistry returns an empty chunk registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[Type]registration{}}
}

// Register binds the name and handler for the given kind.
func (r *Registry) Register(kind Type, name string, handler Handler) {
	r.entries[kind] = registration{name, handler}
}

// Name returns the registered name for kind, or "<unknown>".
func (r *Registry) Name(kind Type) string {
	if e, ok := r.entries[kind]; ok {
		return e.name
	}
	return "<unknown>"
}

// Handler returns the registered handler for kind, or nil.
func (r *Registry) Handler(kind Type) Handler {
	return r.entries[kind].handler
}
