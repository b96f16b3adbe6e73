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
	"context"
	"strings"
	"testing"

	"github.com/deM-on/renderdoc/core/assert"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/driver/fake"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/serialise"
)

// openTriangleReplay captures a triangle frame and opens it for replay.
func openTriangleReplay(ctx context.Context, t *testing.T) (*Wrapped, *fake.Driver) {
	t.Helper()
	path := triangleCapture(ctx, t, false)

	params, _, ser, err := serialise.Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()

	d := fake.New()
	w := NewReplay(d, fake.Queue, params, ser)
	assert.For(t, "read log").ThatError(w.ReadLogInitialisation(ctx)).Succeeded()
	return w, d
}

func countDraws(cmds []string) int {
	n := 0
	for _, c := range cmds {
		if strings.HasPrefix(c, "Draw(") || strings.HasPrefix(c, "DrawIndexed(") {
			n++
		}
	}
	return n
}

// findDrawEvent returns the frame-global event identifier of the triangle
// draw.
func findDrawEvent(t *testing.T, w *Wrapped) uint32 {
	t.Helper()
	for _, ev := range w.Events() {
		if strings.HasPrefix(ev.Description, "vkCmdDraw(") {
			return ev.EventID
		}
	}
	t.Fatal("no draw event in the frame")
	return 0
}

func TestEventIDDensity(t *testing.T) {
	ctx := log.Testing(t)
	w, _ := openTriangleReplay(ctx, t)

	events := w.Events()
	assert.For(t, "events").ThatSlice(events).IsNotEmpty()
	for i, ev := range events {
		assert.For(t, "event %d dense", i).That(ev.EventID).Equals(uint32(i + 1))
	}
}

func TestDrawcallTree(t *testing.T) {
	ctx := log.Testing(t)
	w, _ := openTriangleReplay(ctx, t)

	recs := w.FrameRecords()
	assert.For(t, "frame records").ThatSlice(recs).IsLength(1)
	draws := recs[0].DrawcallList

	// submit marker and present at the top level
	assert.For(t, "top level").ThatSlice(draws).IsLength(2)
	assert.For(t, "submit flags").That(draws[0].Flags & frame.DrawCmdList).NotEquals(frame.DrawFlags(0))
	assert.For(t, "present flags").That(draws[1].Flags & frame.DrawPresent).NotEquals(frame.DrawFlags(0))

	// one command buffer subtree, carrying the draw
	assert.For(t, "cmd buffers").ThatSlice(draws[0].Children).IsLength(1)
	cmdNode := draws[0].Children[0]
	found := false
	for _, d := range cmdNode.Children {
		if d.Flags&frame.DrawDrawcall != 0 {
			found = true
			assert.For(t, "draw name").That(strings.HasPrefix(d.Name, "vkCmdDraw")).IsTrue()
			assert.For(t, "draw topology").That(d.Topology).Equals(driver.TopologyTriangleList)
		}
	}
	assert.For(t, "draw in tree").That(found).IsTrue()
}

func TestReplayFull(t *testing.T) {
	ctx := log.Testing(t)
	w, d := openTriangleReplay(ctx, t)

	before := countDraws(d.SubmittedCommands())
	assert.For(t, "no draws during reading").That(before).Equals(0)

	err := w.ReplayLog(ctx, 0, 0, ^uint32(0), ReplayFull)
	assert.For(t, "replay").ThatError(err).Succeeded()

	cmds := d.SubmittedCommands()
	assert.For(t, "one draw").That(countDraws(cmds)).Equals(1)
	for _, c := range cmds {
		if strings.HasPrefix(c, "Draw(") {
			assert.For(t, "draw args").That(c).Equals("Draw(3, 1, 0, 0)")
		}
	}
}

func TestReplayFullIdempotent(t *testing.T) {
	ctx := log.Testing(t)
	w, d := openTriangleReplay(ctx, t)

	assert.For(t, "first replay").ThatError(w.ReplayLog(ctx, 0, 0, ^uint32(0), ReplayFull)).Succeeded()
	first := countDraws(d.SubmittedCommands())

	assert.For(t, "second replay").ThatError(w.ReplayLog(ctx, 0, 0, ^uint32(0), ReplayFull)).Succeeded()
	second := countDraws(d.SubmittedCommands())

	// the second pass issues exactly the same work again
	assert.For(t, "draw per pass").That(second - first).Equals(first)
}

func TestReplayWithoutDraw(t *testing.T) {
	ctx := log.Testing(t)
	w, d := openTriangleReplay(ctx, t)
	drawEvent := findDrawEvent(t, w)

	err := w.ReplayLog(ctx, 0, 0, drawEvent, ReplayWithoutDraw)
	assert.For(t, "replay").ThatError(err).Succeeded()

	cmds := d.SubmittedCommands()
	assert.For(t, "no draw issued").That(countDraws(cmds)).Equals(0)

	// everything before the draw still replays
	foundBegin, foundBind := false, false
	for _, c := range cmds {
		if strings.HasPrefix(c, "BeginRenderPass(") {
			foundBegin = true
		}
		if strings.HasPrefix(c, "BindPipeline(") {
			foundBind = true
		}
	}
	assert.For(t, "render pass begun").That(foundBegin).IsTrue()
	assert.For(t, "pipeline bound").That(foundBind).IsTrue()
}

func TestReplayOnlyDraw(t *testing.T) {
	ctx := log.Testing(t)
	w, d := openTriangleReplay(ctx, t)
	drawEvent := findDrawEvent(t, w)

	// the UI flow: state up to the draw, then just the draw
	assert.For(t, "without draw").ThatError(w.ReplayLog(ctx, 0, 0, drawEvent, ReplayWithoutDraw)).Succeeded()
	submitsBefore := len(d.Submits())

	assert.For(t, "only draw").ThatError(w.ReplayLog(ctx, 0, 0, drawEvent, ReplayOnlyDraw)).Succeeded()

	submits := d.Submits()
	assert.For(t, "one extra submit").That(len(submits)).Equals(submitsBefore + 1)

	last := submits[len(submits)-1]
	// containment: exactly one command buffer in the queue submission
	assert.For(t, "single command buffer").ThatSlice(last).IsLength(1)

	cmds := d.Commands(last[0])
	assert.For(t, "single draw").That(countDraws(cmds)).Equals(1)

	// the render pass is begun with load ops, so the earlier clear result
	// is preserved, and the draw is the last command before the pass ends
	assert.For(t, "begins render pass").That(strings.HasPrefix(cmds[0], "BeginRenderPass(")).IsTrue()
	assert.For(t, "ends render pass").That(cmds[len(cmds)-1]).Equals("EndRenderPass()")
	assert.For(t, "draw last").That(strings.HasPrefix(cmds[len(cmds)-2], "Draw(")).IsTrue()

	// the load-op render pass is a different object than the recorded one
	full := d.SubmittedCommands()
	recordedBegin := ""
	for _, c := range full[:len(full)-len(cmds)] {
		if strings.HasPrefix(c, "BeginRenderPass(") {
			recordedBegin = c
			break
		}
	}
	assert.For(t, "recorded pass seen").That(recordedBegin).NotEquals("")
	assert.For(t, "load-op variant used").That(cmds[0]).NotEquals(recordedBegin)
}

func TestGetEventLookup(t *testing.T) {
	ctx := log.Testing(t)
	w, _ := openTriangleReplay(ctx, t)

	events := w.Events()
	last := events[len(events)-1]

	got, ok := w.GetEvent(last.EventID)
	assert.For(t, "exact").That(ok).IsTrue()
	assert.For(t, "exact id").That(got.EventID).Equals(last.EventID)

	got, ok = w.GetEvent(last.EventID + 100)
	assert.For(t, "nearest").That(ok).IsTrue()
	assert.For(t, "nearest id").That(got.EventID).Equals(last.EventID)
}
