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

package resource

import (
	"sync"
	"sync/atomic"

	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/serialise"
)

// nextOrdinal is the shared key that orders chunks across records. Every
// chunk added to any record takes the next value, so merging record chunk
// lists by ordinal reproduces the original recording order.
var nextOrdinal = int32(0)

// Kind classifies a resource for snapshot purposes.
type Kind int

const (
	// KindOther is a resource with no readable contents.
	KindOther Kind = iota
	// KindBuffer is a buffer object.
	KindBuffer
	// KindImage is an image object.
	KindImage
)

// SwapchainInfo is the bookkeeping a swapchain record carries.
type SwapchainInfo struct {
	Format      driver.Format
	Extent      driver.Extent2D
	Images      []driver.Image
	LastPresent int
	Window      uintptr
}

// MemMapState watches a live memory mapping. For coherent mappings RefData
// holds a shadow copy of the mapped range, diffed at capture start to emit
// flush chunks.
type MemMapState struct {
	MappedPtr []byte
	RefData   []byte
	Offset    uint64
	Size      uint64
	Coherent  bool
}

type recordedChunk struct {
	ordinal int32
	chunk   *serialise.Chunk
}

// Record is the per-resource metadata object. A record exclusively owns its
// chunk list; wrappers share it by reference count.
type Record struct {
	id     ID
	Parent *Record

	mu     sync.Mutex
	chunks []recordedChunk

	Length           uint64
	refCount         int32
	DataInSerialiser bool
	SubResources     []*Record
	SpecialResource  bool
	SwapInfo         *SwapchainInfo
	MemState         *MemMapState

	// Snapshot bookkeeping.
	ResKind    Kind
	BufferSize uint64
	ImageInfo  *driver.ImageCreateInfo
}

func newRecord(id ID) *Record {
	return &Record{id: id, refCount: 1}
}

// ResourceID returns the identifier the record was created for.
func (r *Record) ResourceID() ID { return r.id }

// AddRef increments the record's reference count.
func (r *Record) AddRef() {
	atomic.AddInt32(&r.refCount, 1)
}

// RefCount returns the current reference count.
func (r *Record) RefCount() int32 {
	return atomic.LoadInt32(&r.refCount)
}

// Delete decrements the reference count, removing the record from the
// manager when it hits zero.
func (r *Record) Delete(m *Manager) {
	if atomic.AddInt32(&r.refCount, -1) > 0 {
		return
	}
	for _, sub := range r.SubResources {
		sub.Delete(m)
	}
	if m != nil {
		m.removeRecord(r.id)
	}
}

// AddChunk appends a closed chunk to the record, assigning it the next
// shared ordinal.
func (r *Record) AddChunk(c *serialise.Chunk) {
	ord := atomic.AddInt32(&nextOrdinal, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, recordedChunk{ordinal: ord, chunk: c})
	r.Length += uint64(len(c.Payload))
}

// HasChunks returns true while the record owns at least one chunk.
func (r *Record) HasChunks() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks) > 0
}

// NumChunks returns the number of chunks the record owns.
func (r *Record) NumChunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// PopChunk removes and returns the most recently added chunk.
func (r *Record) PopChunk() *serialise.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.chunks)
	if n == 0 {
		return nil
	}
	c := r.chunks[n-1]
	r.chunks = r.chunks[:n-1]
	r.Length -= uint64(len(c.chunk.Payload))
	return c.chunk
}

// Insert merges the record's chunks, and those of its parent chain, into
// the ordinal-keyed map. Parents are walked first so creation chunks of
// dependencies keep their earlier ordinals.
func (r *Record) Insert(into map[int32]*serialise.Chunk) {
	if r.Parent != nil {
		r.Parent.Insert(into)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.chunks {
		into[rc.ordinal] = rc.chunk
	}
}
