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
	"testing"

	"github.com/deM-on/renderdoc/core/assert"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/driver/fake"
	"github.com/deM-on/renderdoc/serialise"
)

// testCore services the manager's readback path with the fake driver and a
// single transient command buffer.
type testCore struct {
	d *fake.Driver
}

func (c *testCore) Driver() driver.Driver { return c.d }

func (c *testCore) GetNextCmd(ctx context.Context) (driver.CommandBuffer, error) {
	return c.d.CreateCommandBuffer()
}

func (c *testCore) SubmitCmds(ctx context.Context) {}
func (c *testCore) FlushQ(ctx context.Context)     {}

func newTestManager() (*Manager, *fake.Driver) {
	d := fake.New()
	return NewManager(&testCore{d}), d
}

func TestIDDisjointness(t *testing.T) {
	captureID := NewID()
	SetReplayIDs()
	replayID := NewID()
	if captureID >= FirstReplayID {
		t.Errorf("capture id %v inside the replay range", captureID)
	}
	if replayID < FirstReplayID {
		t.Errorf("replay id %v outside the replay range", replayID)
	}
}

func TestFrameRefUpgrades(t *testing.T) {
	for _, test := range []struct {
		old, new, want FrameRefType
	}{
		{RefNone, RefRead, RefRead},
		{RefNone, RefWrite, RefWrite},
		{RefRead, RefRead, RefRead},
		{RefRead, RefWrite, RefReadBeforeWrite},
		{RefRead, RefPartialWrite, RefReadBeforeWrite},
		{RefWrite, RefRead, RefWrite},
		{RefPartialWrite, RefWrite, RefWrite},
		{RefReadBeforeWrite, RefWrite, RefReadBeforeWrite},
		{RefReadBeforeWrite, RefRead, RefReadBeforeWrite},
	} {
		got := composeRefs(test.old, test.new)
		if got != test.want {
			t.Errorf("compose(%v, %v) = %v, want %v", test.old, test.new, got, test.want)
		}
	}
}

func TestMarkFrameReferencedMonotonic(t *testing.T) {
	m, _ := newTestManager()
	id := NewID()
	m.MarkFrameReferenced(id, RefRead)
	m.MarkFrameReferenced(id, RefWrite)
	assert.For(t, "upgraded").That(m.FrameRef(id)).Equals(RefReadBeforeWrite)
	// upgrades never downgrade
	m.MarkFrameReferenced(id, RefRead)
	assert.For(t, "sticky").That(m.FrameRef(id)).Equals(RefReadBeforeWrite)
}

func TestRecordOrdinalMerge(t *testing.T) {
	m, _ := newTestManager()
	a := m.AddRecord(NewID())
	b := m.AddRecord(NewID())

	mkChunk := func(v uint32) *serialise.Chunk {
		w := serialise.NewWriter()
		w.PushContext(serialise.FirstChunkID)
		w.SerialiseUint32("v", &v)
		w.PopContext(serialise.FirstChunkID)
		return w.ExtractChunk()
	}

	// interleave chunk creation across the two records
	a.AddChunk(mkChunk(1))
	b.AddChunk(mkChunk(2))
	a.AddChunk(mkChunk(3))
	b.AddChunk(mkChunk(4))

	merged := map[int32]*serialise.Chunk{}
	a.Insert(merged)
	b.Insert(merged)
	assert.For(t, "merged count").That(len(merged)).Equals(4)

	out := serialise.NewWriter()
	InsertOrdered(out, merged)

	r := serialise.NewReader(out.Data())
	got := []uint32{}
	for !r.AtEnd() {
		r.PushContext(serialise.FirstChunkID)
		var v uint32
		r.SerialiseUint32("v", &v)
		r.PopContext(serialise.FirstChunkID)
		got = append(got, v)
	}
	assert.For(t, "recording order preserved").That(got).DeepEquals([]uint32{1, 2, 3, 4})
}

func TestRecordParentInsert(t *testing.T) {
	m, _ := newTestManager()
	parent := m.AddRecord(NewID())
	child := m.AddRecord(NewID())
	child.Parent = parent

	mkChunk := func() *serialise.Chunk {
		w := serialise.NewWriter()
		w.PushContext(serialise.FirstChunkID)
		w.PopContext(serialise.FirstChunkID)
		return w.ExtractChunk()
	}
	parent.AddChunk(mkChunk())
	child.AddChunk(mkChunk())

	merged := map[int32]*serialise.Chunk{}
	child.Insert(merged)
	assert.For(t, "parent chunks included").That(len(merged)).Equals(2)
}

func TestInitialContentsRoundTrip(t *testing.T) {
	ctx := log.Testing(t)
	m, d := newTestManager()

	// a live buffer with known contents
	buf, err := d.CreateBuffer(driver.BufferCreateInfo{Size: 16})
	assert.For(t, "create").ThatError(err).Succeeded()
	mem, _ := d.AllocMemory(16, true)
	d.BindBufferMemory(buf, mem, 0)
	mapped, _ := d.MapMemory(mem)
	for i := range mapped {
		mapped[i] = byte(i * 3)
	}
	d.UnmapMemory(mem)

	id := NewID()
	m.AddResource(id, uint64(buf))
	rec := m.AddRecord(id)
	rec.ResKind = KindBuffer
	rec.BufferSize = 16
	m.MarkFrameReferenced(id, RefReadBeforeWrite)

	m.PrepareInitialContents(ctx)

	// write the snapshot out as chunks and load them into a fresh manager
	fileSer := serialise.NewWriter()
	m.InsertInitialContentsChunks(fileSer)

	m2, d2 := newTestManager()
	buf2, _ := d2.CreateBuffer(driver.BufferCreateInfo{Size: 16})
	m2.AddResource(id, uint64(buf2))
	rec2 := m2.AddRecord(id)
	rec2.ResKind = KindBuffer
	rec2.BufferSize = 16

	r := serialise.NewReader(fileSer.Data())
	kind := r.PushContext(serialise.NilType)
	assert.For(t, "chunk kind").That(kind).Equals(serialise.InitialContents)
	assert.For(t, "load").ThatError(m2.SerialiseInitialState(ctx, r)).Succeeded()
	r.PopContext(serialise.InitialContents)

	m2.ApplyInitialContents(ctx)

	// read the applied contents back through a readback copy
	rb, _ := d2.CreateBuffer(driver.BufferCreateInfo{Size: 16})
	rbMem, _ := d2.AllocMemory(16, true)
	d2.BindBufferMemory(rb, rbMem, 0)
	cmd, _ := d2.CreateCommandBuffer()
	d2.BeginCommandBuffer(cmd)
	d2.CmdCopyBuffer(cmd, buf2, rb, []driver.BufferCopy{{Size: 16}})
	d2.EndCommandBuffer(cmd)
	got, _ := d2.MapMemory(rbMem)
	want := make([]byte, 16)
	for i := range want {
		want[i] = byte(i * 3)
	}
	assert.For(t, "contents restored").That(append([]byte{}, got...)).DeepEquals(want)
}

func TestImageStatesRoundTrip(t *testing.T) {
	m, d := newTestManager()
	img, _ := d.CreateImage(driver.ImageCreateInfo{
		Format: driver.FormatR8G8B8A8Unorm,
		Extent: driver.Extent2D{Width: 4, Height: 4},
	})
	id := NewID()
	m.AddResource(id, uint64(img))

	layouts := map[ID][]ImageRegionState{
		id: {{
			Range:  driver.SubresourceRange{LevelCount: 1, LayerCount: 1},
			Layout: driver.LayoutColorAttachment,
		}},
	}

	w := serialise.NewWriter()
	w.PushContext(serialise.FirstChunkID)
	toGeneral := []driver.ImageMemoryBarrier{}
	err := SerialiseImageStates(w, layouts, &toGeneral, func(ID) (driver.Image, bool) { return img, true })
	assert.For(t, "write").ThatError(err).Succeeded()
	w.PopContext(serialise.FirstChunkID)
	assert.For(t, "write barriers").ThatSlice(toGeneral).IsLength(1)
	assert.For(t, "to general").That(toGeneral[0].NewLayout).Equals(driver.LayoutGeneral)

	r := serialise.NewReader(w.Data())
	r.PushContext(serialise.FirstChunkID)
	gotLayouts := map[ID][]ImageRegionState{}
	fromGeneral := []driver.ImageMemoryBarrier{}
	err = SerialiseImageStates(r, gotLayouts, &fromGeneral, func(ID) (driver.Image, bool) { return img, true })
	assert.For(t, "read").ThatError(err).Succeeded()
	r.PopContext(serialise.FirstChunkID)

	// layout conservation: the decoded map matches the recorded one, and the
	// replay barriers restore the recorded layout
	assert.For(t, "layouts").That(gotLayouts).DeepEquals(layouts)
	assert.For(t, "read barriers").ThatSlice(fromGeneral).IsLength(1)
	assert.For(t, "restored").That(fromGeneral[0].NewLayout).Equals(driver.LayoutColorAttachment)
	assert.For(t, "inverse").That(fromGeneral[0].OldLayout).Equals(driver.LayoutGeneral)
}

func TestClearWithoutReleasing(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	id := NewID()
	m.AddResource(id, 42)
	m.AddRecord(id)
	m.MarkFrameReferenced(id, RefRead)
	m.ClearWithoutReleasing(ctx)
	assert.For(t, "record gone").That(m.GetRecord(id)).IsNil()
	_, ok := m.GetLive(id)
	assert.For(t, "live gone").That(ok).IsFalse()
}
