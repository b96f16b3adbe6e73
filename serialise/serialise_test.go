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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deM-on/renderdoc/core/assert"
)

func readFile(path string) ([]byte, error) { return os.ReadFile(path) }

const (
	testChunkA = FirstChunkID + 1
	testChunkB = FirstChunkID + 2
)

func TestChunkRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	count, name := uint32(3), "triangle"
	w.SerialiseUint32("count", &count)
	w.SerialiseString("name", &name)
	w.PopContext(testChunkA)

	w.PushContext(testChunkB)
	id := uint64(42)
	w.SerialiseUint64("id", &id)
	w.PopContext(testChunkB)

	assert.For(t, "write error").ThatError(w.Error()).Succeeded()

	r := NewReader(w.Data())
	assert.For(t, "first kind").That(r.PushContext(NilType)).Equals(Type(testChunkA))
	var gotCount uint32
	var gotName string
	r.SerialiseUint32("count", &gotCount)
	r.SerialiseString("name", &gotName)
	r.PopContext(testChunkA)
	assert.For(t, "count").That(gotCount).Equals(uint32(3))
	assert.For(t, "name").That(gotName).Equals("triangle")

	assert.For(t, "second kind").That(r.PushContext(NilType)).Equals(Type(testChunkB))
	var gotID uint64
	r.SerialiseUint64("id", &gotID)
	r.PopContext(testChunkB)
	assert.For(t, "id").That(gotID).Equals(uint64(42))
	assert.For(t, "at end").That(r.AtEnd()).IsTrue()
	assert.For(t, "read error").ThatError(r.Error()).Succeeded()
}

func TestNestedContexts(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	outer := uint32(1)
	w.SerialiseUint32("outer", &outer)
	w.PushContext(testChunkB)
	inner := uint32(2)
	w.SerialiseUint32("inner", &inner)
	w.PopContext(testChunkB)
	w.PopContext(testChunkA)
	assert.For(t, "write error").ThatError(w.Error()).Succeeded()

	r := NewReader(w.Data())
	r.PushContext(testChunkA)
	var gotOuter, gotInner uint32
	r.SerialiseUint32("outer", &gotOuter)
	assert.For(t, "inner kind").That(r.PushContext(NilType)).Equals(Type(testChunkB))
	r.SerialiseUint32("inner", &gotInner)
	r.PopContext(testChunkB)
	r.PopContext(testChunkA)
	assert.For(t, "outer").That(gotOuter).Equals(uint32(1))
	assert.For(t, "inner").That(gotInner).Equals(uint32(2))
	assert.For(t, "read error").ThatError(r.Error()).Succeeded()
}

func TestCallstack(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	v := uint32(7)
	w.SerialiseUint32("v", &v)
	w.AddCallstack([]uint64{0x1000, 0x2000, 0x3000})
	w.PopContext(testChunkA)

	r := NewReader(w.Data())
	r.PushContext(testChunkA)
	r.SkipCurrentChunk()
	r.PopContext(testChunkA)
	assert.For(t, "callstack").That(r.LastCallstack()).DeepEquals([]uint64{0x1000, 0x2000, 0x3000})
	assert.For(t, "at end").That(r.AtEnd()).IsTrue()
}

func TestSkipToChunk(t *testing.T) {
	w := NewWriter()
	for i, kind := range []Type{testChunkA, testChunkA, testChunkB, testChunkA} {
		w.PushContext(kind)
		v := uint32(i)
		w.SerialiseUint32("v", &v)
		w.PopContext(kind)
	}

	r := NewReader(w.Data())
	r.SkipToChunk(testChunkB)
	assert.For(t, "found").That(r.AtEnd()).IsFalse()
	assert.For(t, "kind").That(r.PushContext(NilType)).Equals(Type(testChunkB))
	var v uint32
	r.SerialiseUint32("v", &v)
	r.PopContext(testChunkB)
	assert.For(t, "value").That(v).Equals(uint32(2))

	r.SkipToChunk(testChunkB)
	assert.For(t, "no second match").That(r.AtEnd()).IsTrue()
}

func TestExtractAndInsert(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	v := uint32(9)
	w.SerialiseUint32("v", &v)
	w.PopContext(testChunkA)
	chunk := w.ExtractChunk()
	assert.For(t, "chunk").That(chunk).IsNotNil()
	assert.For(t, "kind").That(chunk.Kind).Equals(Type(testChunkA))
	assert.For(t, "buffer emptied").That(len(w.Data())).Equals(0)

	out := NewWriter()
	out.InsertChunk(chunk)
	r := NewReader(out.Data())
	assert.For(t, "reinserted kind").That(r.PushContext(NilType)).Equals(Type(testChunkA))
	var got uint32
	r.SerialiseUint32("v", &got)
	r.PopContext(testChunkA)
	assert.For(t, "value").That(got).Equals(uint32(9))
}

func TestTruncatedChunk(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	blob := make([]byte, 64)
	w.SerialiseBytes("blob", &blob)
	w.PopContext(testChunkA)

	r := NewReader(w.Data()[:20])
	r.PushContext(NilType)
	assert.For(t, "truncated").ThatError(r.Error()).Equals(ErrCorruptLog)
}

func TestMismatchedPop(t *testing.T) {
	w := NewWriter()
	w.PushContext(testChunkA)
	w.PopContext(testChunkB)
	assert.For(t, "mismatch").ThatError(w.Error()).Equals(ErrInvalidState)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.rdc")

	w := NewWriter()
	w.PushContext(testChunkA)
	v := uint32(123)
	w.SerialiseUint32("v", &v)
	w.PopContext(testChunkA)

	params := &InitParams{
		AppName:    "cube",
		EngineName: "handmade",
		AppVersion: 3, EngineVersion: 7, APIVersion: 1,
		Layers:     []string{"validation"},
		Extensions: []string{"swapchain", "surface"},
		InstanceID: 11,
	}
	thumb := []byte{0xff, 0xd8, 0xff, 0xd9}
	assert.For(t, "flush").ThatError(w.FlushToDisk(path, params, thumb)).Succeeded()

	got, gotThumb, r, err := Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()
	assert.For(t, "header").That(got).DeepEquals(params)
	assert.For(t, "thumbnail").That(gotThumb).DeepEquals(thumb)
	assert.For(t, "kind").That(r.PushContext(NilType)).Equals(Type(testChunkA))
	var gotV uint32
	r.SerialiseUint32("v", &gotV)
	r.PopContext(testChunkA)
	assert.For(t, "value").That(gotV).Equals(uint32(123))
}

func TestIncompatibleVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.rdc")
	w := NewWriter()
	assert.For(t, "flush").ThatError(w.FlushToDisk(path, &InitParams{}, nil)).Succeeded()

	data, err := readFile(path)
	assert.For(t, "reread").ThatError(err).Succeeded()
	// corrupt the version field
	data[4] = 0x01
	_, _, _, err = Load(data)
	assert.For(t, "version").ThatError(err).Equals(ErrIncompatibleVersion)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(testChunkA, "vkCmdDraw", nil)
	assert.For(t, "registered").That(r.Name(testChunkA)).Equals("vkCmdDraw")
	assert.For(t, "unregistered").That(r.Name(testChunkB)).Equals("<unknown>")
}
