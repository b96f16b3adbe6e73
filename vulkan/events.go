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
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/resource"
)

// addEvent records an API event at the current walk position. Events inside
// a command buffer count on the buffer's own counter; root events count on
// the frame counter and enter the global event list directly.
func (w *Wrapped) addEvent(desc string) {
	ev := frame.APIEvent{
		FileOffset:  w.curChunkOffset,
		Description: desc,
		Callstack:   w.ser.LastCallstack(),
	}

	if w.lastCmdBufferID != resource.NilID {
		baked := w.bakedInfo(w.lastCmdBufferID)
		ev.EventID = baked.CurEventID
		baked.CurEvents = append(baked.CurEvents, ev)
		baked.EventList = append(baked.EventList, ev)
		return
	}

	ev.EventID = w.rootEventID
	w.rootEvents = append(w.rootEvents, ev)
	w.events = append(w.events, ev)
}

// addDrawcall appends a drawcall node at the current drawcall stack top,
// assigning it the current event and draw identifiers. When hasEvents is
// set the events accumulated since the previous drawcall are attached.
func (w *Wrapped) addDrawcall(d frame.Drawcall, hasEvents bool) {
	w.addedDrawcall = true

	if w.lastCmdBufferID != resource.NilID {
		baked := w.bakedInfo(w.lastCmdBufferID)
		d.EventID = baked.CurEventID
		d.DrawcallID = baked.DrawCount
		baked.DrawCount++
		if hasEvents {
			d.Events = baked.CurEvents
			baked.CurEvents = nil
		}
	} else {
		d.EventID = w.rootEventID
		d.DrawcallID = w.rootDrawcallID
		w.rootDrawcallID++
		if hasEvents {
			d.Events = w.rootEvents
			w.rootEvents = nil
		}
	}

	if pipe := w.partial.state.graphicsPipeline; pipe != resource.NilID {
		if info := w.creation.pipelines[pipe]; info != nil {
			d.Topology = info.topology
		}
	}
	d.IndexByteWidth = w.partial.state.ibuffer.bytewidth

	stack := *w.drawStack()
	if len(stack) == 0 {
		return
	}
	stack[len(stack)-1].AddChild(d)
}

// pushDrawcallStack descends into the most recently added drawcall.
func (w *Wrapped) pushDrawcallStack() {
	stack := w.drawStack()
	top := (*stack)[len(*stack)-1]
	if child := top.LastChild(); child != nil {
		*stack = append(*stack, child)
	}
}

// popDrawcallStack ascends one level, refusing to pop the root off.
func (w *Wrapped) popDrawcallStack() {
	stack := w.drawStack()
	if len(*stack) > 1 {
		*stack = (*stack)[:len(*stack)-1]
	}
}
