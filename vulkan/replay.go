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
	"time"

	"github.com/pkg/errors"

	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// processChunk dispatches one chunk to its registered handler. Unknown
// system chunks are skipped silently; unknown driver chunks are logged and
// skipped. A handler failure skips the chunk's remaining payload so the
// walk can continue.
func (w *Wrapped) processChunk(ctx context.Context, chunk serialise.Type) {
	if chunk == serialise.InitialContents {
		if err := w.rm.SerialiseInitialState(ctx, w.ser); err != nil {
			log.E(ctx, "Failed to load initial contents: %v", err)
			w.ser.SkipCurrentChunk()
		}
		return
	}

	if h := w.registry.Handler(chunk); h != nil {
		if err := h(ctx, w.ser); err != nil {
			log.E(ctx, "Failed to process %s chunk: %v", ChunkName(chunk), err)
			w.ser.SkipCurrentChunk()
		}
		return
	}

	if chunk < serialise.FirstChunkID {
		// system chunks from a newer format are skipped for forward compat
		w.ser.SkipCurrentChunk()
		return
	}

	log.E(ctx, "%v: type %d", serialise.ErrUnknownChunk, chunk)
	w.ser.SkipCurrentChunk()
}

type chunkStats struct {
	count     int
	totalSize uint64
	total     time.Duration
}

// ReadLogInitialisation performs the initial scan of an opened log: it
// locates every capture scope, replays the creation chunks, loads initial
// contents, and walks each captured frame in Reading to build the event
// and drawcall index.
func (w *Wrapped) ReadLogInitialisation(ctx context.Context) error {
	w.ser.SetDebugText(true)
	defer w.ser.SetDebugText(false)

	w.ser.Rewind()

	var firstFrame, lastFrame uint64
	for !w.ser.AtEnd() {
		w.ser.SkipToChunk(CaptureScope)
		if !w.ser.AtEnd() {
			lastFrame = w.ser.GetOffset()
			if firstFrame == 0 {
				firstFrame = w.ser.GetOffset()
			}
			w.ser.PushContext(serialise.NilType)
			w.ser.SkipCurrentChunk()
			w.ser.PopContext(CaptureScope)
		}
	}

	w.ser.Rewind()

	stats := map[serialise.Type]*chunkStats{}

	for {
		start := time.Now()
		offset := w.ser.GetOffset()

		chunk := w.ser.PushContext(serialise.NilType)
		if err := w.ser.Error(); err != nil {
			return errors.Wrap(err, "reading log")
		}

		if chunk == CaptureScope {
			// the rest of the log is walked repeatedly by replays; keep it
			// resident from here
			w.ser.SetPersistentBlock(offset)
		}

		w.curChunkOffset = offset
		w.processChunk(ctx, chunk)
		w.ser.PopContext(chunk)
		if err := w.ser.Error(); err != nil {
			return errors.Wrap(err, "reading log")
		}

		if chunk == CaptureScope {
			w.rm.ApplyInitialContents(ctx)
			w.SubmitCmds(ctx)
			w.FlushQ(ctx)

			if err := w.contextReplayLog(ctx, Reading, 0, 0, false); err != nil {
				return err
			}
		}

		st := stats[chunk]
		if st == nil {
			st = &chunkStats{}
			stats[chunk] = st
		}
		st.count++
		st.totalSize += w.ser.GetOffset() - offset
		st.total += time.Since(start)

		if chunk == CaptureScope && w.ser.GetOffset() > lastFrame {
			break
		}
		if w.ser.AtEnd() {
			break
		}
	}

	for kind, st := range stats {
		log.D(ctx, "% 5d chunks - Time: %v total - Size: %d bytes total - %s (%d)",
			st.count, st.total, st.totalSize, ChunkName(kind), uint32(kind))
	}
	log.D(ctx, "Keeping %d persistent bytes of log resident", w.ser.GetSize()-firstFrame)

	return nil
}

// contextReplayLog walks one captured frame, from the capture header to the
// footer. In Reading it builds the event and drawcall index without
// executing; in Executing it re-executes the chunks in the requested event
// range through the driver.
func (w *Wrapped) contextReplayLog(ctx context.Context, readType State, startEventID, endEventID uint32, partial bool) error {
	w.state = readType
	w.inFrameWalk = true
	defer func() { w.inFrameWalk = false }()

	header := w.ser.PushContext(serialise.NilType)
	if header != ContextCaptureHeader {
		return serialise.ErrCorruptLog
	}
	if err := w.serialiseBeginCaptureFrame(ctx, w.ser, !partial); err != nil {
		return err
	}
	if err := w.device.DeviceWaitIdle(); err != nil {
		log.E(ctx, "Device wait failed before frame walk: %v", err)
	}
	w.ser.PopContext(ContextCaptureHeader)

	w.rootEvents = nil

	if w.state == Executing {
		ev, _ := w.events.Find(startEventID)
		w.rootEventID = ev.EventID

		// when not partial we must replay past the command buffer records,
		// so we cannot skip to the file offset of the first event
		if partial {
			w.ser.SetOffset(ev.FileOffset)
			if w.partial.partialParent != resource.NilID {
				baked := w.bakedInfo(w.partial.partialParent)
				if startEventID > baked.BaseEvent {
					baked.CurEventID = startEventID - baked.BaseEvent
				}
			}
		}

		w.firstEventID = startEventID
		w.lastEventID = endEventID
	} else {
		w.rootEventID = 1
		w.rootDrawcallID = 1
		w.firstEventID = 0
		w.lastEventID = ^uint32(0)
	}

	for {
		if w.state == Executing && w.rootEventID > endEventID {
			// done with the desired events; command buffer events are not
			// root events, we blaze through them
			break
		}

		offset := w.ser.GetOffset()
		chunk := w.ser.PushContext(serialise.NilType)
		if err := w.ser.Error(); err != nil {
			return errors.Wrap(err, "walking frame")
		}

		w.lastCmdBufferID = resource.NilID

		w.contextProcessChunk(ctx, offset, chunk, false)

		if chunk == ContextCaptureFooter {
			break
		}
		if w.state == Executing && startEventID == endEventID {
			break
		}

		if w.lastCmdBufferID != resource.NilID {
			// begin/end command buffer chunks are omitted entirely; they are
			// synthesized in-line at queue submit time
			if chunk != BeginCmdBuffer && chunk != EndCmdBuffer {
				w.bakedInfo(w.lastCmdBufferID).CurEventID++
			}
		} else {
			w.rootEventID++
		}

		if w.ser.AtEnd() {
			break
		}
	}

	if w.state == Reading {
		rec := w.frameRecords[len(w.frameRecords)-1]
		rec.DrawcallList = w.parentDrawcall.Bake()
		w.events.Sort()
		w.parentDrawcall.Children = nil
		w.drawcallStack = []*frame.TreeNode{&w.parentDrawcall}
	}

	if w.partial.resultPartialCmdBuffer != 0 {
		if err := w.device.DeviceWaitIdle(); err != nil {
			log.E(ctx, "Device wait failed destroying partial command buffer: %v", err)
		}
		w.device.DestroyCommandBuffer(w.partial.resultPartialCmdBuffer)
		w.partial.resultPartialCmdBuffer = 0
	}

	w.state = Reading
	return nil
}

// contextProcessChunk processes one chunk of a frame walk and, in Reading,
// maintains the event list and the drawcall stack.
func (w *Wrapped) contextProcessChunk(ctx context.Context, offset uint64, chunk serialise.Type, forceExecute bool) {
	w.curChunkOffset = offset

	saved := w.state
	if forceExecute {
		w.state = Executing
	}

	w.addedDrawcall = false

	w.processChunk(ctx, chunk)
	w.ser.PopContext(chunk)

	if w.state == Reading {
		switch chunk {
		case BeginCmdBuffer, EndCmdBuffer:
			// omitted; synthesized at queue submit
		default:
			if !w.addedDrawcall {
				w.addEvent(w.chunkDescription(chunk))
			}
		}
		switch chunk {
		case BeginEvent:
			// descend to the marker drawcall just added
			w.pushDrawcallStack()
		case EndEvent:
			// refuse to pop further than the root drawcall, for mismatched
			// begin/end events
			w.popDrawcallStack()
		}
	}

	w.addedDrawcall = false

	if forceExecute {
		w.state = saved
	}
}

func (w *Wrapped) chunkDescription(chunk serialise.Type) string {
	if desc := strings.TrimSpace(w.ser.DebugStr()); desc != "" {
		if i := strings.IndexByte(desc, '\n'); i > 0 {
			return desc[:i] + "()"
		}
		return desc + "()"
	}
	return ChunkName(chunk) + "()"
}

// ReplayLog re-executes a captured frame in the requested mode.
//
// A replay with startEventID zero in Full or WithoutDraw mode is
// non-partial: the partial state is reset, initial contents are re-applied
// and the in-frame resources of the previous replay are released before the
// frame is walked from its start. Any other combination is partial and
// relies on the state left by a previous non-partial pass.
func (w *Wrapped) ReplayLog(ctx context.Context, frameID, startEventID, endEventID uint32, mode ReplayMode) error {
	if int(frameID) >= len(w.frameRecords) {
		return errors.Errorf("frame %d out of range", frameID)
	}

	w.ser.SetOffset(w.frameRecords[frameID].FileOffset)

	partial := true
	if startEventID == 0 && (mode == ReplayFull || mode == ReplayWithoutDraw) {
		startEventID = w.frameRecords[frameID].FirstEvent
		partial = false
	}

	header := w.ser.PushContext(serialise.NilType)
	if header != CaptureScope {
		return serialise.ErrCorruptLog
	}
	w.ser.SkipCurrentChunk()
	w.ser.PopContext(CaptureScope)

	if !partial {
		w.rm.ApplyInitialContents(ctx)
		w.SubmitCmds(ctx)
		w.FlushQ(ctx)
		w.rm.ReleaseInFrameResources(ctx)

		w.partial.renderPassActive = false
		w.partial.partialParent = resource.NilID
		w.partial.baseEvent = 0
		w.partial.state = stateVector{}
		w.replayCmdBufs = map[resource.ID]driver.CommandBuffer{}
	}
	w.replayPartial = partial
	w.inFrame = true
	defer func() { w.inFrame = false }()

	switch mode {
	case ReplayFull:
		return w.contextReplayLog(ctx, Executing, startEventID, endEventID, partial)

	case ReplayWithoutDraw:
		end := endEventID
		if end < 1 {
			end = 1
		}
		return w.contextReplayLog(ctx, Executing, startEventID, end-1, partial)

	case ReplayOnlyDraw:
		return w.replayOnlyDraw(ctx, endEventID)
	}
	return errors.Errorf("unexpected replay mode %d", mode)
}

// replayOnlyDraw builds a fresh command buffer, reconstructs the state
// vector captured at the partial boundary, executes just the target event,
// and submits.
func (w *Wrapped) replayOnlyDraw(ctx context.Context, eventID uint32) error {
	cmd, err := w.GetNextCmd(ctx)
	if err != nil {
		return err
	}
	w.partial.singleDrawCmdBuffer = cmd
	defer func() { w.partial.singleDrawCmdBuffer = 0 }()

	if err := w.device.BeginCommandBuffer(cmd); err != nil {
		return err
	}

	if w.partial.renderPassActive {
		if err := w.bindPartialState(ctx, cmd); err != nil {
			return err
		}
	}

	if err := w.contextReplayLog(ctx, Executing, eventID, eventID, true); err != nil {
		return err
	}

	if w.partial.renderPassActive {
		w.device.CmdEndRenderPass(cmd)
	}
	if err := w.device.EndCommandBuffer(cmd); err != nil {
		return err
	}
	w.SubmitCmds(ctx)
	return nil
}

// bindPartialState begins the load-op variant of the recorded render pass
// and replays the partial state vector into cmd.
func (w *Wrapped) bindPartialState(ctx context.Context, cmd driver.CommandBuffer) error {
	s := &w.partial.state

	rpInfo := w.creation.renderPasses[s.renderPass]
	if rpInfo == nil {
		return resource.ErrMissingResource
	}
	fb, ok := w.rm.GetLive(s.framebuffer)
	if !ok {
		return resource.ErrMissingResource
	}

	// clear values don't matter: the load render pass has every load op set
	// to load, since partially written targets cannot just be cleared
	empty := make([]driver.ClearValue, len(rpInfo.attachments))
	w.device.CmdBeginRenderPass(cmd, driver.RenderPassBeginInfo{
		RenderPass:  rpInfo.loadRP,
		Framebuffer: driver.Framebuffer(fb),
		RenderArea:  s.renderArea,
		ClearValues: empty,
	})

	if s.graphicsPipeline != resource.NilID {
		if err := w.bindPartialPipeline(ctx, cmd, driver.BindGraphics, s.graphicsPipeline, s.graphicsDescSets); err != nil {
			return err
		}
	}
	if s.computePipeline != resource.NilID {
		if err := w.bindPartialPipeline(ctx, cmd, driver.BindCompute, s.computePipeline, s.computeDescSets); err != nil {
			return err
		}
	}

	if len(s.viewports) > 0 {
		w.device.CmdSetViewport(cmd, s.viewports)
	}
	if len(s.scissors) > 0 {
		w.device.CmdSetScissor(cmd, s.scissors)
	}

	w.device.CmdSetBlendConstants(cmd, s.blendConst)
	w.device.CmdSetDepthBounds(cmd, s.minDepth, s.maxDepth)
	w.device.CmdSetLineWidth(cmd, s.lineWidth)
	w.device.CmdSetDepthBias(cmd, s.biasDepth, s.biasClamp, s.biasSlope)

	w.device.CmdSetStencilReference(cmd, driver.StencilBack, s.back.ref)
	w.device.CmdSetStencilCompareMask(cmd, driver.StencilBack, s.back.compare)
	w.device.CmdSetStencilWriteMask(cmd, driver.StencilBack, s.back.write)

	w.device.CmdSetStencilReference(cmd, driver.StencilFront, s.front.ref)
	w.device.CmdSetStencilCompareMask(cmd, driver.StencilFront, s.front.compare)
	w.device.CmdSetStencilWriteMask(cmd, driver.StencilFront, s.front.write)

	if s.ibuffer.buf != resource.NilID {
		if live, ok := w.rm.GetLive(s.ibuffer.buf); ok {
			ty := driver.IndexUint16
			if s.ibuffer.bytewidth == 4 {
				ty = driver.IndexUint32
			}
			w.device.CmdBindIndexBuffer(cmd, driver.Buffer(live), s.ibuffer.offs, ty)
		}
	}
	for i, vb := range s.vbuffers {
		if vb.buf == resource.NilID {
			continue
		}
		if live, ok := w.rm.GetLive(vb.buf); ok {
			w.device.CmdBindVertexBuffers(cmd, uint32(i), []driver.Buffer{driver.Buffer(live)}, []uint64{vb.offs})
		}
	}
	return nil
}

// bindPartialPipeline binds one pipeline and the descriptor sets its layout
// actually uses, passing dynamic offsets only when the set layout declares
// dynamic descriptors.
func (w *Wrapped) bindPartialPipeline(ctx context.Context, cmd driver.CommandBuffer, bindPoint driver.PipelineBindPoint, pipe resource.ID, bound []boundDescSet) error {
	live, ok := w.rm.GetLive(pipe)
	if !ok {
		return resource.ErrMissingResource
	}
	w.device.CmdBindPipeline(cmd, bindPoint, driver.Pipeline(live))

	pipeInfo := w.creation.pipelines[pipe]
	if pipeInfo == nil {
		return nil
	}
	layoutInfo := w.creation.pipelineLayouts[pipeInfo.layout]
	if layoutInfo == nil {
		return nil
	}

	// only iterate the descriptor sets this layout uses, not all bound
	for i, dsl := range layoutInfo.setLayouts {
		descLayout := w.creation.descSetLayouts[dsl]
		if i >= len(bound) || bound[i].set == resource.NilID {
			log.W(ctx, "Descriptor set %d is not bound but pipeline layout expects one", i)
			continue
		}
		setLive, ok := w.rm.GetLive(bound[i].set)
		if !ok {
			return resource.ErrMissingResource
		}
		var offsets []uint32
		if descLayout != nil && descLayout.dynamicCount > 0 {
			offsets = bound[i].offsets
		}
		w.device.CmdBindDescriptorSets(cmd, bindPoint, layoutInfo.handle, uint32(i),
			[]driver.DescriptorSet{driver.DescriptorSet(setLive)}, offsets)
	}
	return nil
}
