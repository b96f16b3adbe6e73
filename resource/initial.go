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

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/serialise"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// PrepareInitialContents snapshots every resource whose pre-frame contents
// the capture needs: resources already referenced with a kind that needs
// contents (read, partial write, read-before-write), and resources written
// outside the frame (dirty). Snapshots go through the
// internal command pool: a transient readback buffer, a device-to-host
// copy, then a blocking queue flush.
func (m *Manager) PrepareInitialContents(ctx context.Context) {
	m.mu.Lock()
	need := map[ID]bool{}
	for id, ref := range m.frameRefs {
		if ref.NeedsContents() {
			need[id] = true
		}
	}
	for id := range m.dirty {
		need[id] = true
	}
	todo := []*Record{}
	for id := range need {
		if _, done := m.initial[id]; done {
			continue
		}
		if r := m.records[id]; r != nil && r.ResKind != KindOther {
			todo = append(todo, r)
		}
	}
	m.mu.Unlock()

	for _, r := range todo {
		data, err := m.snapshot(ctx, r)
		if err != nil {
			log.E(ctx, "Failed to snapshot %v: %v", r.ResourceID(), err)
			continue
		}
		m.mu.Lock()
		m.initial[r.ResourceID()] = &initialContents{Kind: r.ResKind, Data: data}
		m.mu.Unlock()
	}
}

func (m *Manager) snapshot(ctx context.Context, r *Record) ([]byte, error) {
	live, ok := m.GetLive(r.ResourceID())
	if !ok {
		return nil, ErrMissingResource
	}

	d := m.core.Driver()

	var size uint64
	switch r.ResKind {
	case KindBuffer:
		size = r.BufferSize
	case KindImage:
		info := r.ImageInfo
		size = uint64(info.Extent.Width) * uint64(info.Extent.Height) * uint64(info.Format.BytesPerPixel())
	}
	if size == 0 {
		return nil, nil
	}

	readback, err := d.CreateBuffer(driver.BufferCreateInfo{Size: size})
	if err != nil {
		return nil, errors.Wrap(err, "creating readback buffer")
	}
	defer d.DestroyBuffer(readback)

	mem, err := d.AllocMemory(size, true)
	if err != nil {
		return nil, errors.Wrap(err, "allocating readback memory")
	}
	defer d.FreeMemory(mem)

	if err := d.BindBufferMemory(readback, mem, 0); err != nil {
		return nil, err
	}

	cmd, err := m.core.GetNextCmd(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.BeginCommandBuffer(cmd); err != nil {
		return nil, err
	}
	switch r.ResKind {
	case KindBuffer:
		d.CmdCopyBuffer(cmd, driver.Buffer(live), readback, []driver.BufferCopy{{Size: size}})
	case KindImage:
		d.CmdCopyImageToBuffer(cmd, driver.Image(live), driver.LayoutTransferSrc, readback,
			[]driver.BufferImageCopy{{ImageExtent: r.ImageInfo.Extent}})
	}
	if err := d.EndCommandBuffer(cmd); err != nil {
		return nil, err
	}

	m.core.SubmitCmds(ctx)
	m.core.FlushQ(ctx)

	mapped, err := d.MapMemory(mem)
	if err != nil {
		return nil, errors.Wrap(err, "mapping readback memory")
	}
	data := make([]byte, size)
	copy(data, mapped)
	d.UnmapMemory(mem)
	return data, nil
}

// CreateInitialContents runs at reading time when a capture scope names
// resources that were referenced but carry no snapshot in the log: their
// initial contents are default-initialised.
func (m *Manager) CreateInitialContents(ids []ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.initial[id]; !ok {
			m.initial[id] = &initialContents{}
		}
	}
}

// contentsData returns the raw snapshot bytes for ic, decompressing through
// the manager's cache when the contents came from a log.
func (m *Manager) contentsData(id ID, ic *initialContents) ([]byte, error) {
	if ic.Data != nil {
		return ic.Data, nil
	}
	if ic.Compressed == nil {
		return nil, nil
	}
	if cached, ok := m.cache.Get(id); ok {
		return cached.([]byte), nil
	}
	data, err := zstdDecoder.DecodeAll(ic.Compressed, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing initial contents of %v", id)
	}
	m.cache.Add(id, data)
	return data, nil
}

// ApplyInitialContents writes every stored snapshot back into the live
// resources, through a staging buffer and the internal command pool.
func (m *Manager) ApplyInitialContents(ctx context.Context) {
	m.mu.Lock()
	ids := make([]ID, 0, len(m.initial))
	for id := range m.initial {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		ic := m.initial[id]
		rec := m.records[id]
		m.mu.Unlock()
		if ic == nil {
			continue
		}
		data, err := m.contentsData(id, ic)
		if err != nil {
			log.E(ctx, "%v", err)
			continue
		}
		if data == nil {
			continue
		}
		if err := m.apply(ctx, id, rec, ic.Kind, data); err != nil {
			log.E(ctx, "Failed to apply initial contents of %v: %v", id, err)
		}
	}
}

func (m *Manager) apply(ctx context.Context, id ID, rec *Record, kind Kind, data []byte) error {
	live, ok := m.GetLive(id)
	if !ok {
		// leaked at capture time, or the log is truncated
		return ErrMissingResource
	}

	d := m.core.Driver()
	cmd, err := m.core.GetNextCmd(ctx)
	if err != nil {
		return err
	}
	if err := d.BeginCommandBuffer(cmd); err != nil {
		return err
	}

	switch kind {
	case KindBuffer:
		d.CmdUpdateBuffer(cmd, driver.Buffer(live), 0, data)
	case KindImage:
		staging, err := d.CreateBuffer(driver.BufferCreateInfo{Size: uint64(len(data))})
		if err != nil {
			return err
		}
		defer d.DestroyBuffer(staging)
		mem, err := d.AllocMemory(uint64(len(data)), true)
		if err != nil {
			return err
		}
		defer d.FreeMemory(mem)
		if err := d.BindBufferMemory(staging, mem, 0); err != nil {
			return err
		}
		mapped, err := d.MapMemory(mem)
		if err != nil {
			return err
		}
		copy(mapped, data)
		d.UnmapMemory(mem)
		var extent driver.Extent2D
		if rec != nil && rec.ImageInfo != nil {
			extent = rec.ImageInfo.Extent
		}
		d.CmdCopyBufferToImage(cmd, staging, driver.Image(live), driver.LayoutTransferDst,
			[]driver.BufferImageCopy{{ImageExtent: extent}})
	}

	if err := d.EndCommandBuffer(cmd); err != nil {
		return err
	}
	m.core.SubmitCmds(ctx)
	m.core.FlushQ(ctx)
	return nil
}

// FreeInitialContents drops every stored snapshot.
func (m *Manager) FreeInitialContents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initial = map[ID]*initialContents{}
	m.cache.Purge()
}

// ContentsNeeded returns the identifiers of referenced resources whose
// pre-frame contents the frame needs, sorted for deterministic output.
func (m *Manager) ContentsNeeded() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []ID{}
	for id, ref := range m.frameRefs {
		if ref.NeedsContents() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// InsertInitialContentsChunks builds an InitialContents chunk for every
// stored snapshot and inserts them into the file serialiser in identifier
// order. Snapshot payloads are zstd compressed.
func (m *Manager) InsertInitialContentsChunks(fileSer *serialise.Serialiser) {
	m.mu.Lock()
	ids := make([]ID, 0, len(m.initial))
	for id := range m.initial {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		m.mu.Lock()
		ic := m.initial[id]
		m.mu.Unlock()
		if ic == nil || ic.Data == nil {
			continue
		}
		compressed := zstdEncoder.EncodeAll(ic.Data, nil)

		w := serialise.NewWriter()
		w.PushContext(serialise.InitialContents)
		rid := id
		Serialise(w, "id", &rid)
		kind := uint32(ic.Kind)
		w.SerialiseUint32("kind", &kind)
		w.SerialiseBytes("contents", &compressed)
		w.PopContext(serialise.InitialContents)
		fileSer.InsertChunk(w.ExtractChunk())
	}
}

// SerialiseInitialState is the replay-side handler for an InitialContents
// chunk: it stores the compressed snapshot for ApplyInitialContents.
func (m *Manager) SerialiseInitialState(ctx context.Context, s *serialise.Serialiser) error {
	var id ID
	Serialise(s, "id", &id)
	var kind uint32
	s.SerialiseUint32("kind", &kind)
	var compressed []byte
	s.SerialiseBytes("contents", &compressed)
	if err := s.Error(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initial[id] = &initialContents{Kind: Kind(kind), Compressed: compressed}
	return nil
}
