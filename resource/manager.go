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
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/deM-on/renderdoc/core/fault"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/serialise"
)

// ErrMissingResource is returned when a live handle or record is required
// for an identifier the manager does not know. At replay this means the
// resource was leaked at capture time or the log is truncated.
const ErrMissingResource = fault.Const("Missing resource")

// FrameRefType records how a frame uses a resource. Once a resource is
// marked read-before-write it stays so; a complete write following a
// partial write replaces it, since no pre-frame contents survive.
type FrameRefType int

const (
	// RefNone marks an unreferenced resource.
	RefNone FrameRefType = iota
	// RefRead marks a resource whose current contents are read.
	RefRead
	// RefPartialWrite marks a resource partially overwritten, so untouched
	// regions carry pre-frame contents.
	RefPartialWrite
	// RefWrite marks a resource completely overwritten before any read.
	RefWrite
	// RefReadBeforeWrite marks a resource read and then written; its
	// pre-frame contents must be captured.
	RefReadBeforeWrite
)

// composeRefs merges a new reference kind into an existing one.
func composeRefs(old, new FrameRefType) FrameRefType {
	switch {
	case old == RefNone:
		return new
	case old == new:
		return old
	case old == RefReadBeforeWrite || new == RefReadBeforeWrite:
		return RefReadBeforeWrite
	case old == RefRead && (new == RefWrite || new == RefPartialWrite):
		return RefReadBeforeWrite
	case new == RefRead && (old == RefWrite || old == RefPartialWrite):
		// the write came first, the pre-frame contents are already gone
		return old
	case old == RefPartialWrite && new == RefWrite:
		return RefWrite
	case old == RefWrite && new == RefPartialWrite:
		return RefWrite
	default:
		return RefReadBeforeWrite
	}
}

// NeedsContents returns true when the reference kind requires the
// resource's pre-frame contents in the log.
func (r FrameRefType) NeedsContents() bool {
	return r == RefRead || r == RefReadBeforeWrite || r == RefPartialWrite
}

// Core is the slice of the frame controller the manager needs for readback
// work: the driver dispatch table and the internal command pool.
type Core interface {
	Driver() driver.Driver
	GetNextCmd(ctx context.Context) (driver.CommandBuffer, error)
	SubmitCmds(ctx context.Context)
	FlushQ(ctx context.Context)
}

// ImageRegionState is the recorded layout of one subresource range.
type ImageRegionState struct {
	Range  driver.SubresourceRange
	Layout driver.ImageLayout
}

// initialContents is a stored resource snapshot. During capture Data holds
// the raw bytes; at replay Compressed holds the zstd payload read from the
// log and decompression goes through the manager's cache.
type initialContents struct {
	Kind       Kind
	Data       []byte
	Compressed []byte
}

const initialContentsCacheSize = 64

// Manager maintains the identity map between live handles and stable
// resource identifiers, the per-resource records, the initial-contents
// store and the image layout bookkeeping.
type Manager struct {
	core Core

	mu        sync.Mutex
	liveToID  map[uint64]ID
	idToLive  map[ID]uint64
	records   map[ID]*Record
	frameRefs map[ID]FrameRefType
	initial   map[ID]*initialContents

	dirty        map[ID]bool
	pendingDirty map[ID]bool

	inFrame []ID

	cache *lru.Cache
}

// NewManager returns an empty manager bound to core.
func NewManager(core Core) *Manager {
	cache, _ := lru.New(initialContentsCacheSize)
	return &Manager{
		core:         core,
		liveToID:     map[uint64]ID{},
		idToLive:     map[ID]uint64{},
		records:      map[ID]*Record{},
		frameRefs:    map[ID]FrameRefType{},
		initial:      map[ID]*initialContents{},
		dirty:        map[ID]bool{},
		pendingDirty: map[ID]bool{},
		cache:        cache,
	}
}

// AddResource registers the bijection between a live handle and its
// identifier.
func (m *Manager) AddResource(id ID, live uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveToID[live] = id
	m.idToLive[id] = live
}

// AddInFrameResource registers a live resource created while a frame is
// replaying, so ReleaseInFrameResources can destroy it before the next
// replay pass.
func (m *Manager) AddInFrameResource(id ID, live uint64) {
	m.AddResource(id, live)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFrame = append(m.inFrame, id)
}

// GetID returns the identifier for a live handle.
func (m *Manager) GetID(live uint64) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveToID[live]
}

// GetLive returns the live handle for an identifier.
func (m *Manager) GetLive(id ID) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live, ok := m.idToLive[id]
	return live, ok
}

// AddRecord creates and returns the record for id. Capture only.
func (m *Manager) AddRecord(id ID) *Record {
	r := newRecord(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = r
	return r
}

// GetRecord returns the record for id, or nil.
func (m *Manager) GetRecord(id ID) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *Manager) removeRecord(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

// MarkFrameReferenced records that the frame uses id with the given
// reference kind, upgrading any previous kind monotonically.
func (m *Manager) MarkFrameReferenced(id ID, ref FrameRefType) {
	if id == NilID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameRefs[id] = composeRefs(m.frameRefs[id], ref)
}

// FrameRef returns the recorded reference kind for id.
func (m *Manager) FrameRef(id ID) FrameRefType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameRefs[id]
}

// ClearReferenced wipes the referenced-resource set.
func (m *Manager) ClearReferenced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameRefs = map[ID]FrameRefType{}
}

// MarkDirty marks id as modified outside a capture frame.
func (m *Manager) MarkDirty(id ID) {
	if id == NilID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty[id] = true
}

// MarkPendingDirty marks id to become dirty at the next FlushPendingDirty.
func (m *Manager) MarkPendingDirty(id ID) {
	if id == NilID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingDirty[id] = true
}

// FlushPendingDirty promotes every pending-dirty resource to dirty.
func (m *Manager) FlushPendingDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.pendingDirty {
		m.dirty[id] = true
	}
	m.pendingDirty = map[ID]bool{}
}

// MarkUnwrittenResources marks every record whose data is not in the
// serialiser as dirty, so the next capture snapshots it.
func (m *Manager) MarkUnwrittenResources() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if !r.DataInSerialiser {
			m.dirty[id] = true
		}
	}
}

// ReleaseInFrameResources destroys every live resource created during a
// replayed frame and forgets it.
func (m *Manager) ReleaseInFrameResources(ctx context.Context) {
	m.mu.Lock()
	inFrame := m.inFrame
	m.inFrame = nil
	m.mu.Unlock()

	d := m.core.Driver()
	for _, id := range inFrame {
		m.mu.Lock()
		live, ok := m.idToLive[id]
		rec := m.records[id]
		delete(m.idToLive, id)
		delete(m.liveToID, live)
		m.mu.Unlock()
		if !ok {
			continue
		}
		kind := KindOther
		if rec != nil {
			kind = rec.ResKind
		}
		switch kind {
		case KindBuffer:
			d.DestroyBuffer(driver.Buffer(live))
		case KindImage:
			d.DestroyImage(driver.Image(live))
		}
	}
}

// ClearWithoutReleasing drops every map without destroying any live object.
// This is the shutdown safety path for applications that leaked handles.
func (m *Manager) ClearWithoutReleasing(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) > 0 {
		log.W(ctx, "%d leaked resource records at shutdown", len(m.records))
	}
	m.liveToID = map[uint64]ID{}
	m.idToLive = map[ID]uint64{}
	m.records = map[ID]*Record{}
	m.frameRefs = map[ID]FrameRefType{}
	m.initial = map[ID]*initialContents{}
	m.dirty = map[ID]bool{}
	m.pendingDirty = map[ID]bool{}
	m.cache.Purge()
}

// InsertReferencedChunks inserts the creation chunks of every referenced
// resource into the file serialiser. Records are merged by their shared
// chunk ordinals, which reproduces creation order; since an object is
// always created after its dependencies, the emitted order is topological.
func (m *Manager) InsertReferencedChunks(fileSer *serialise.Serialiser) {
	m.mu.Lock()
	merged := map[int32]*serialise.Chunk{}
	for id, ref := range m.frameRefs {
		if ref == RefNone {
			continue
		}
		if r := m.records[id]; r != nil {
			r.Insert(merged)
		}
	}
	m.mu.Unlock()

	InsertOrdered(fileSer, merged)
}

// InsertOrdered inserts the merged chunks into the file serialiser in
// ordinal order.
func InsertOrdered(fileSer *serialise.Serialiser, merged map[int32]*serialise.Chunk) {
	keys := make([]int, 0, len(merged))
	for k := range merged {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	for _, k := range keys {
		fileSer.InsertChunk(merged[int32(k)])
	}
}
