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

package vulkan

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/core/assert"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/driver/fake"
	"github.com/deM-on/renderdoc/serialise"
)

func TestThreadSerialisersAreDistinct(t *testing.T) {
	w := NewCapture(fake.New(), fake.Queue)

	main := w.GetThreadSerialiser()
	assert.For(t, "stable per goroutine").That(w.GetThreadSerialiser()).Equals(main)

	done := make(chan *serialise.Serialiser)
	go func() { done <- w.GetThreadSerialiser() }()
	other := <-done
	assert.For(t, "distinct per goroutine").That(other).NotEquals(main)
}

func TestTempMemoryGrows(t *testing.T) {
	w := NewCapture(fake.New(), fake.Queue)
	small := w.GetTempMemory(16)
	assert.For(t, "small").That(len(small)).Equals(16)
	big := w.GetTempMemory(1024)
	assert.For(t, "grown").That(len(big)).Equals(1024)
	again := w.GetTempMemory(64)
	assert.For(t, "kept capacity").That(len(again)).Equals(64)
}

// Two threads record one command buffer each; both are submitted in a
// single queue submission. The replayed event tree must have two sibling
// command-buffer subtrees ordered like the submission.
func TestConcurrentCommandBufferRecording(t *testing.T) {
	ctx := log.Testing(t)
	config.Set(config.Options{LogPath: filepath.Join(t.TempDir(), "f%d.rdc")})

	d := fake.New()
	w := NewCapture(d, fake.Queue)
	w.SetInitParams(serialise.InitParams{AppName: "threads"})

	cb1, err := w.AllocateCommandBuffer(ctx)
	assert.For(t, "cb1").ThatError(err).Succeeded()
	cb2, err := w.AllocateCommandBuffer(ctx)
	assert.For(t, "cb2").ThatError(err).Succeeded()

	assert.For(t, "start").ThatError(w.StartFrameCapture(ctx)).Succeeded()

	record := func(cb driver.CommandBuffer, vertices uint32, wg *sync.WaitGroup) {
		defer wg.Done()
		w.BeginCommandBuffer(ctx, cb)
		w.CmdDraw(ctx, cb, vertices, 1, 0, 0)
		w.EndCommandBuffer(ctx, cb)
	}

	wg := &sync.WaitGroup{}
	wg.Add(2)
	go record(cb1, 3, wg)
	go record(cb2, 6, wg)
	wg.Wait()

	assert.For(t, "submit").ThatError(w.QueueSubmit(ctx, []driver.CommandBuffer{cb1, cb2})).Succeeded()
	path, err := w.EndFrameCapture(ctx, 0)
	assert.For(t, "end").ThatError(err).Succeeded()

	params, _, ser, err := serialise.Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()
	d2 := fake.New()
	r := NewReplay(d2, fake.Queue, params, ser)
	assert.For(t, "read").ThatError(r.ReadLogInitialisation(ctx)).Succeeded()

	// tree shape: submit with two sibling command-buffer subtrees, in the
	// submission's order
	draws := r.FrameRecords()[0].DrawcallList
	submit := draws[0]
	assert.For(t, "cmd buffer subtrees").ThatSlice(submit.Children).IsLength(2)

	firstDraw := submit.Children[0].Children[0]
	secondDraw := submit.Children[1].Children[0]
	assert.For(t, "first subtree draw").That(firstDraw.Name).Equals("vkCmdDraw(3, 1)")
	assert.For(t, "second subtree draw").That(secondDraw.Name).Equals("vkCmdDraw(6, 1)")
	assert.For(t, "sibling order").That(firstDraw.EventID < secondDraw.EventID).IsTrue()

	// event identifiers stay dense across the merged buffers
	for i, ev := range r.Events() {
		assert.For(t, "dense event %d", i).That(ev.EventID).Equals(uint32(i + 1))
	}

	// replaying executes both draws in submission order
	assert.For(t, "replay").ThatError(r.ReplayLog(ctx, 0, 0, ^uint32(0), ReplayFull)).Succeeded()
	var seen []string
	for _, c := range d2.SubmittedCommands() {
		if strings.HasPrefix(c, "Draw(") {
			seen = append(seen, c)
		}
	}
	assert.For(t, "draws").That(seen).DeepEquals([]string{"Draw(3, 1, 0, 0)", "Draw(6, 1, 0, 0)"})
}
