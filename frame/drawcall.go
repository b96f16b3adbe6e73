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

package frame

import (
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/resource"
)

// DrawFlags classify a drawcall node.
type DrawFlags uint32

const (
	// DrawClear marks a clear operation.
	DrawClear DrawFlags = 1 << iota
	// DrawDrawcall marks a rasterization draw.
	DrawDrawcall
	// DrawDispatch marks a compute dispatch.
	DrawDispatch
	// DrawCopy marks a copy or blit.
	DrawCopy
	// DrawPushMarker marks a debug marker region begin.
	DrawPushMarker
	// DrawPresent marks the frame present.
	DrawPresent
	// DrawCmdList marks a command buffer boundary node.
	DrawCmdList
)

// Drawcall is one node of the frame's drawcall tree.
type Drawcall struct {
	EventID    uint32
	DrawcallID uint32

	Name  string
	Flags DrawFlags

	Topology       driver.Topology
	IndexByteWidth uint32

	Outputs  [8]resource.ID
	DepthOut resource.ID

	CopyDestination resource.ID

	// Events are the non-draw events since the previous drawcall, ending
	// with this draw's own event.
	Events []APIEvent

	Children []Drawcall
}

// TreeNode is a mutable drawcall tree under construction.
type TreeNode struct {
	Draw     Drawcall
	Children []*TreeNode
}

// AddChild appends d as the last child and returns its node.
func (n *TreeNode) AddChild(d Drawcall) *TreeNode {
	child := &TreeNode{Draw: d}
	n.Children = append(n.Children, child)
	return child
}

// LastChild returns the most recently added child, or nil.
func (n *TreeNode) LastChild() *TreeNode {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// Bake flattens the tree into immutable Drawcall values.
func (n *TreeNode) Bake() []Drawcall {
	out := make([]Drawcall, len(n.Children))
	for i, c := range n.Children {
		d := c.Draw
		d.Children = c.Bake()
		out[i] = d
	}
	return out
}

// Shift offsets every event and drawcall identifier in the subtree,
// including the identifiers of attached events. Used when a command
// buffer's baked subtree is spliced into the root tree at submit time.
func (n *TreeNode) Shift(eventOffset, drawOffset uint32) {
	n.Draw.EventID += eventOffset
	n.Draw.DrawcallID += drawOffset
	for i := range n.Draw.Events {
		n.Draw.Events[i].EventID += eventOffset
	}
	for _, c := range n.Children {
		c.Shift(eventOffset, drawOffset)
	}
}

// Clone deep-copies the subtree.
func (n *TreeNode) Clone() *TreeNode {
	out := &TreeNode{Draw: n.Draw}
	out.Draw.Events = append([]APIEvent{}, n.Draw.Events...)
	out.Children = make([]*TreeNode, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = c.Clone()
	}
	return out
}

// Record is the per-frame record: where the frame lives in the log and the
// baked drawcall tree built for it.
type Record struct {
	FrameNumber  uint32
	CaptureTime  int64
	FileOffset   uint64
	FirstEvent   uint32
	DrawcallList []Drawcall
}

// BakedCmdBufferInfo is the accounting accumulated for one recorded
// command buffer while walking the log: its internal event and draw
// counters, the events seen since the last draw, and its drawcall subtree.
type BakedCmdBufferInfo struct {
	CurEventID uint32
	DrawCount  uint32
	EventCount uint32
	DrawTotal  uint32
	// BaseEvent is the root event identifier the buffer's internal events
	// were remapped onto at submit time.
	BaseEvent uint32
	CurEvents  []APIEvent
	EventList  []APIEvent
	Draws      *TreeNode
	DrawStack  []*TreeNode
}
