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
	"fmt"

	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// rerecordCmd returns the live command buffer a replayed command should be
// recorded into, or false when the command lies outside the replayed range.
//
// During a full replay every command goes into the buffer re-recorded for
// its recorded command-buffer id. During a partial replay only the partial
// parent's prefix is re-recorded, into the transient partial buffer; and
// when a single-draw buffer is active every executed command targets it.
func (w *Wrapped) rerecordCmd(ctx context.Context, cmdid resource.ID) (driver.CommandBuffer, bool) {
	if w.partial.singleDrawCmdBuffer != 0 {
		return w.partial.singleDrawCmdBuffer, true
	}

	// prefix gating: the command's frame-global event identifier is its
	// buffer's submit-time base plus the buffer-local walk counter
	baked := w.bakedInfo(cmdid)
	if baked.BaseEvent+baked.CurEventID > w.lastEventID {
		return 0, false
	}

	if !w.replayPartial {
		cb, ok := w.replayCmdBufs[cmdid]
		return cb, ok
	}

	if cmdid != w.partial.partialParent && w.partial.partialParent != resource.NilID {
		return 0, false
	}
	if w.partial.resultPartialCmdBuffer == 0 {
		cmd, err := w.GetNextCmd(ctx)
		if err != nil {
			log.E(ctx, "Failed to allocate partial replay command buffer: %v", err)
			return 0, false
		}
		if err := w.device.BeginCommandBuffer(cmd); err != nil {
			log.E(ctx, "Failed to begin partial replay command buffer: %v", err)
			return 0, false
		}
		w.partial.resultPartialCmdBuffer = cmd
		if w.partial.partialParent == resource.NilID {
			w.partial.partialParent = cmdid
		}
	}
	return w.partial.resultPartialCmdBuffer, true
}

// cmdTarget resolves where a replayed command's state updates and driver
// call should go. In Reading the state vector updates but nothing executes;
// in Executing an out-of-range command neither updates state nor executes.
func (w *Wrapped) cmdTarget(ctx context.Context, cmdid resource.ID) (cb driver.CommandBuffer, exec, track bool) {
	w.lastCmdBufferID = cmdid
	if w.state != Executing {
		return 0, false, true
	}
	cb, exec = w.rerecordCmd(ctx, cmdid)
	return cb, exec, exec
}

func (w *Wrapped) serialiseBeginCmdBuffer(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	w.lastCmdBufferID = cmdid
	baked := w.bakedInfo(cmdid)
	baked.CurEventID = 1
	baked.DrawCount = 1

	switch w.state {
	case Reading:
		baked.CurEvents = nil
		baked.EventList = nil
		baked.Draws = &frame.TreeNode{}
		baked.DrawStack = []*frame.TreeNode{baked.Draws}
	case Executing:
		if !w.replayPartial {
			cb, err := w.device.CreateCommandBuffer()
			if err != nil {
				return err
			}
			w.replayCmdBufs[cmdid] = cb
			if err := w.device.BeginCommandBuffer(cb); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Wrapped) serialiseEndCmdBuffer(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	w.lastCmdBufferID = cmdid
	baked := w.bakedInfo(cmdid)

	switch w.state {
	case Reading:
		baked.EventCount = baked.CurEventID - 1
		baked.DrawTotal = baked.DrawCount - 1
	case Executing:
		if !w.replayPartial {
			if cb, ok := w.replayCmdBufs[cmdid]; ok {
				if err := w.device.EndCommandBuffer(cb); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type renderPassBeginParams struct {
	renderPass  resource.ID
	framebuffer resource.ID
	renderArea  driver.Rect2D
	clearValues []driver.ClearValue
}

func (w *Wrapped) serialiseCmdBeginRenderPass(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, p renderPassBeginParams) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	resource.Serialise(s, "RenderPass", &p.renderPass)
	resource.Serialise(s, "Framebuffer", &p.framebuffer)
	s.SerialiseInt32("AreaX", &p.renderArea.Offset.X)
	s.SerialiseInt32("AreaY", &p.renderArea.Offset.Y)
	s.SerialiseUint32("AreaWidth", &p.renderArea.Extent.Width)
	s.SerialiseUint32("AreaHeight", &p.renderArea.Extent.Height)
	count := uint32(len(p.clearValues))
	s.SerialiseUint32("ClearValueCount", &count)
	if reading(s) {
		p.clearValues = make([]driver.ClearValue, count)
	}
	for i := range p.clearValues {
		cv := &p.clearValues[i]
		for c := 0; c < 4; c++ {
			s.SerialiseFloat32("Color", &cv.Color[c])
		}
		s.SerialiseFloat32("Depth", &cv.Depth)
		s.SerialiseUint32("Stencil", &cv.Stencil)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		st := &w.partial.state
		st.renderPass = p.renderPass
		st.framebuffer = p.framebuffer
		st.renderArea = p.renderArea
		w.partial.renderPassActive = true
	}
	if exec {
		rp, rpOK := w.rm.GetLive(p.renderPass)
		fb, fbOK := w.rm.GetLive(p.framebuffer)
		if !rpOK || !fbOK {
			return resource.ErrMissingResource
		}
		w.device.CmdBeginRenderPass(cb, driver.RenderPassBeginInfo{
			RenderPass:  driver.RenderPass(rp),
			Framebuffer: driver.Framebuffer(fb),
			RenderArea:  p.renderArea,
			ClearValues: p.clearValues,
		})
	}
	return nil
}

func (w *Wrapped) serialiseCmdEndRenderPass(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.renderPassActive = false
	}
	if exec {
		w.device.CmdEndRenderPass(cb)
	}
	return nil
}

func (w *Wrapped) serialiseCmdBindPipeline(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, bindPoint driver.PipelineBindPoint, pipe resource.ID) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	bindPoint = driver.PipelineBindPoint(serialiseEnum(s, "BindPoint", uint32(bindPoint)))
	resource.Serialise(s, "Pipeline", &pipe)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		if bindPoint == driver.BindGraphics {
			w.partial.state.graphicsPipeline = pipe
		} else {
			w.partial.state.computePipeline = pipe
		}
	}
	if exec {
		live, ok := w.rm.GetLive(pipe)
		if !ok {
			return resource.ErrMissingResource
		}
		w.device.CmdBindPipeline(cb, bindPoint, driver.Pipeline(live))
	}
	return nil
}

func (w *Wrapped) serialiseCmdBindDescriptorSets(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, bindPoint driver.PipelineBindPoint, layout resource.ID, first uint32, sets []resource.ID, dynamicOffsets []uint32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	bindPoint = driver.PipelineBindPoint(serialiseEnum(s, "BindPoint", uint32(bindPoint)))
	resource.Serialise(s, "Layout", &layout)
	s.SerialiseUint32("First", &first)
	count := uint32(len(sets))
	s.SerialiseUint32("SetCount", &count)
	if reading(s) {
		sets = make([]resource.ID, count)
	}
	for i := range sets {
		resource.Serialise(s, "Set", &sets[i])
	}
	s.SerialiseUint32s("DynamicOffsets", &dynamicOffsets)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		bound := &w.partial.state.graphicsDescSets
		if bindPoint == driver.BindCompute {
			bound = &w.partial.state.computeDescSets
		}
		for i, set := range sets {
			slot := int(first) + i
			for len(*bound) <= slot {
				*bound = append(*bound, boundDescSet{})
			}
			(*bound)[slot] = boundDescSet{set: set, offsets: append([]uint32{}, dynamicOffsets...)}
		}
	}
	if exec {
		layoutLive, ok := w.rm.GetLive(layout)
		if !ok {
			return resource.ErrMissingResource
		}
		liveSets := make([]driver.DescriptorSet, len(sets))
		for i, set := range sets {
			live, ok := w.rm.GetLive(set)
			if !ok {
				return resource.ErrMissingResource
			}
			liveSets[i] = driver.DescriptorSet(live)
		}
		w.device.CmdBindDescriptorSets(cb, bindPoint, driver.PipelineLayout(layoutLive), first, liveSets, dynamicOffsets)
	}
	return nil
}

func (w *Wrapped) serialiseCmdBindVertexBuffers(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, first uint32, buffers []resource.ID, offsets []uint64) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseUint32("First", &first)
	count := uint32(len(buffers))
	s.SerialiseUint32("BufferCount", &count)
	if reading(s) {
		buffers = make([]resource.ID, count)
	}
	for i := range buffers {
		resource.Serialise(s, "Buffer", &buffers[i])
	}
	s.SerialiseUint64s("Offsets", &offsets)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		vb := &w.partial.state.vbuffers
		for i, buf := range buffers {
			slot := int(first) + i
			for len(*vb) <= slot {
				*vb = append(*vb, boundVertexBuffer{})
			}
			offs := uint64(0)
			if i < len(offsets) {
				offs = offsets[i]
			}
			(*vb)[slot] = boundVertexBuffer{buf: buf, offs: offs}
		}
	}
	if exec {
		liveBufs := make([]driver.Buffer, len(buffers))
		for i, buf := range buffers {
			live, ok := w.rm.GetLive(buf)
			if !ok {
				return resource.ErrMissingResource
			}
			liveBufs[i] = driver.Buffer(live)
		}
		w.device.CmdBindVertexBuffers(cb, first, liveBufs, offsets)
	}
	return nil
}

func (w *Wrapped) serialiseCmdBindIndexBuffer(ctx context.Context, s *serialise.Serialiser, cmdid, buffer resource.ID, offset uint64, indexType driver.IndexType) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	resource.Serialise(s, "Buffer", &buffer)
	s.SerialiseUint64("Offset", &offset)
	indexType = driver.IndexType(serialiseEnum(s, "IndexType", uint32(indexType)))
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		ib := &w.partial.state.ibuffer
		ib.buf = buffer
		ib.offs = offset
		if indexType == driver.IndexUint32 {
			ib.bytewidth = 4
		} else {
			ib.bytewidth = 2
		}
	}
	if exec {
		live, ok := w.rm.GetLive(buffer)
		if !ok {
			return resource.ErrMissingResource
		}
		w.device.CmdBindIndexBuffer(cb, driver.Buffer(live), offset, indexType)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetViewport(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, viewports []driver.Viewport) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	count := uint32(len(viewports))
	s.SerialiseUint32("ViewportCount", &count)
	if reading(s) {
		viewports = make([]driver.Viewport, count)
	}
	for i := range viewports {
		v := &viewports[i]
		s.SerialiseFloat32("X", &v.X)
		s.SerialiseFloat32("Y", &v.Y)
		s.SerialiseFloat32("Width", &v.Width)
		s.SerialiseFloat32("Height", &v.Height)
		s.SerialiseFloat32("MinDepth", &v.MinDepth)
		s.SerialiseFloat32("MaxDepth", &v.MaxDepth)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.state.viewports = viewports
	}
	if exec {
		w.device.CmdSetViewport(cb, viewports)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetScissor(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, scissors []driver.Rect2D) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	count := uint32(len(scissors))
	s.SerialiseUint32("ScissorCount", &count)
	if reading(s) {
		scissors = make([]driver.Rect2D, count)
	}
	for i := range scissors {
		r := &scissors[i]
		s.SerialiseInt32("X", &r.Offset.X)
		s.SerialiseInt32("Y", &r.Offset.Y)
		s.SerialiseUint32("Width", &r.Extent.Width)
		s.SerialiseUint32("Height", &r.Extent.Height)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.state.scissors = scissors
	}
	if exec {
		w.device.CmdSetScissor(cb, scissors)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetBlendConstants(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, consts [4]float32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	for i := range consts {
		s.SerialiseFloat32("Constant", &consts[i])
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.state.blendConst = consts
	}
	if exec {
		w.device.CmdSetBlendConstants(cb, consts)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetDepthBounds(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, min, max float32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseFloat32("MinDepth", &min)
	s.SerialiseFloat32("MaxDepth", &max)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.state.minDepth, w.partial.state.maxDepth = min, max
	}
	if exec {
		w.device.CmdSetDepthBounds(cb, min, max)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetLineWidth(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, width float32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseFloat32("LineWidth", &width)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		w.partial.state.lineWidth = width
	}
	if exec {
		w.device.CmdSetLineWidth(cb, width)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetDepthBias(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, depth, clamp, slope float32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseFloat32("Depth", &depth)
	s.SerialiseFloat32("Clamp", &clamp)
	s.SerialiseFloat32("Slope", &slope)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		st := &w.partial.state
		st.biasDepth, st.biasClamp, st.biasSlope = depth, clamp, slope
	}
	if exec {
		w.device.CmdSetDepthBias(cb, depth, clamp, slope)
	}
	return nil
}

func (w *Wrapped) serialiseCmdSetStencil(ctx context.Context, s *serialise.Serialiser, kind serialise.Type, cmdid resource.ID, face driver.StencilFace, value uint32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	face = driver.StencilFace(serialiseEnum(s, "Face", uint32(face)))
	s.SerialiseUint32("Value", &value)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, track := w.cmdTarget(ctx, cmdid)
	if track {
		st := &w.partial.state.front
		if face == driver.StencilBack {
			st = &w.partial.state.back
		}
		switch kind {
		case SetStencilCompMask:
			st.compare = value
		case SetStencilWriteMask:
			st.write = value
		case SetStencilRef:
			st.ref = value
		}
	}
	if exec {
		switch kind {
		case SetStencilCompMask:
			w.device.CmdSetStencilCompareMask(cb, face, value)
		case SetStencilWriteMask:
			w.device.CmdSetStencilWriteMask(cb, face, value)
		case SetStencilRef:
			w.device.CmdSetStencilReference(cb, face, value)
		}
	}
	return nil
}

func (w *Wrapped) serialiseCmdDraw(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseUint32("VertexCount", &vertexCount)
	s.SerialiseUint32("InstanceCount", &instanceCount)
	s.SerialiseUint32("FirstVertex", &firstVertex)
	s.SerialiseUint32("FirstInstance", &firstInstance)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		w.device.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
	}
	if w.state == Reading {
		name := fmt.Sprintf("vkCmdDraw(%d, %d)", vertexCount, instanceCount)
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawDrawcall}, true)
	}
	return nil
}

func (w *Wrapped) serialiseCmdDrawIndexed(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseUint32("IndexCount", &indexCount)
	s.SerialiseUint32("InstanceCount", &instanceCount)
	s.SerialiseUint32("FirstIndex", &firstIndex)
	s.SerialiseInt32("VertexOffset", &vertexOffset)
	s.SerialiseUint32("FirstInstance", &firstInstance)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		w.device.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	}
	if w.state == Reading {
		name := fmt.Sprintf("vkCmdDrawIndexed(%d, %d)", indexCount, instanceCount)
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawDrawcall}, true)
	}
	return nil
}

func (w *Wrapped) serialiseCmdDispatch(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, x, y, z uint32) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	s.SerialiseUint32("X", &x)
	s.SerialiseUint32("Y", &y)
	s.SerialiseUint32("Z", &z)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		w.device.CmdDispatch(cb, x, y, z)
	}
	if w.state == Reading {
		name := fmt.Sprintf("vkCmdDispatch(%d, %d, %d)", x, y, z)
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawDispatch}, true)
	}
	return nil
}

func (w *Wrapped) serialiseCmdCopyBuffer(ctx context.Context, s *serialise.Serialiser, cmdid, src, dst resource.ID, regions []driver.BufferCopy) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	resource.Serialise(s, "Source", &src)
	resource.Serialise(s, "Destination", &dst)
	count := uint32(len(regions))
	s.SerialiseUint32("RegionCount", &count)
	if reading(s) {
		regions = make([]driver.BufferCopy, count)
	}
	for i := range regions {
		s.SerialiseUint64("SrcOffset", &regions[i].SrcOffset)
		s.SerialiseUint64("DstOffset", &regions[i].DstOffset)
		s.SerialiseUint64("Size", &regions[i].Size)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		srcLive, srcOK := w.rm.GetLive(src)
		dstLive, dstOK := w.rm.GetLive(dst)
		if !srcOK || !dstOK {
			return resource.ErrMissingResource
		}
		w.device.CmdCopyBuffer(cb, driver.Buffer(srcLive), driver.Buffer(dstLive), regions)
	}
	if w.state == Reading {
		name := "vkCmdCopyBuffer()"
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawCopy, CopyDestination: dst}, true)
	}
	return nil
}

func (w *Wrapped) serialiseCmdCopyImage(ctx context.Context, s *serialise.Serialiser, cmdid, src, dst resource.ID, srcLayout, dstLayout driver.ImageLayout) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	resource.Serialise(s, "Source", &src)
	resource.Serialise(s, "Destination", &dst)
	srcLayout = driver.ImageLayout(serialiseEnum(s, "SrcLayout", uint32(srcLayout)))
	dstLayout = driver.ImageLayout(serialiseEnum(s, "DstLayout", uint32(dstLayout)))
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		srcLive, srcOK := w.rm.GetLive(src)
		dstLive, dstOK := w.rm.GetLive(dst)
		if !srcOK || !dstOK {
			return resource.ErrMissingResource
		}
		w.device.CmdCopyImage(cb, driver.Image(srcLive), srcLayout, driver.Image(dstLive), dstLayout, nil)
	}
	if w.state == Reading {
		name := "vkCmdCopyImage()"
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawCopy, CopyDestination: dst}, true)
	}
	return nil
}

func (w *Wrapped) serialiseCmdUpdateBuffer(ctx context.Context, s *serialise.Serialiser, cmdid, dst resource.ID, offset uint64, data []byte) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	resource.Serialise(s, "Destination", &dst)
	s.SerialiseUint64("Offset", &offset)
	s.SerialiseBytes("Data", &data)
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		live, ok := w.rm.GetLive(dst)
		if !ok {
			return resource.ErrMissingResource
		}
		w.device.CmdUpdateBuffer(cb, driver.Buffer(live), offset, data)
	}
	return nil
}

type imageBarrier struct {
	oldLayout driver.ImageLayout
	newLayout driver.ImageLayout
	image     resource.ID
	srange    driver.SubresourceRange
}

func (w *Wrapped) serialiseCmdPipelineBarrier(ctx context.Context, s *serialise.Serialiser, cmdid resource.ID, barriers []imageBarrier) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	count := uint32(len(barriers))
	s.SerialiseUint32("BarrierCount", &count)
	if reading(s) {
		barriers = make([]imageBarrier, count)
	}
	for i := range barriers {
		b := &barriers[i]
		b.oldLayout = driver.ImageLayout(serialiseEnum(s, "OldLayout", uint32(b.oldLayout)))
		b.newLayout = driver.ImageLayout(serialiseEnum(s, "NewLayout", uint32(b.newLayout)))
		resource.Serialise(s, "Image", &b.image)
		s.SerialiseUint32("BaseMipLevel", &b.srange.BaseMipLevel)
		s.SerialiseUint32("LevelCount", &b.srange.LevelCount)
		s.SerialiseUint32("BaseArrayLayer", &b.srange.BaseArrayLayer)
		s.SerialiseUint32("LayerCount", &b.srange.LayerCount)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		out := make([]driver.ImageMemoryBarrier, 0, len(barriers))
		for _, b := range barriers {
			live, ok := w.rm.GetLive(b.image)
			if !ok {
				continue
			}
			out = append(out, driver.ImageMemoryBarrier{
				OldLayout: b.oldLayout,
				NewLayout: b.newLayout,
				Image:     driver.Image(live),
				Range:     b.srange,
			})
		}
		w.device.CmdPipelineBarrier(cb, out)
	}
	return nil
}

func (w *Wrapped) serialiseDbgMarker(ctx context.Context, s *serialise.Serialiser, kind serialise.Type, cmdid resource.ID, name string) error {
	resource.Serialise(s, "CommandBuffer", &cmdid)
	if kind != EndEvent {
		s.SerialiseString("Name", &name)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	cb, exec, _ := w.cmdTarget(ctx, cmdid)
	if exec {
		switch kind {
		case BeginEvent:
			w.device.CmdDbgMarkerBegin(cb, name)
		case EndEvent:
			w.device.CmdDbgMarkerEnd(cb)
		}
	}
	if w.state == Reading && kind == BeginEvent {
		w.addEvent(name)
		w.addDrawcall(frame.Drawcall{Name: name, Flags: frame.DrawPushMarker}, true)
	}
	// SetMarker and EndEvent take the generic event path
	return nil
}

func (w *Wrapped) serialiseQueueSubmit(ctx context.Context, s *serialise.Serialiser, cmdIDs []resource.ID) error {
	count := uint32(len(cmdIDs))
	s.SerialiseUint32("CommandBufferCount", &count)
	if reading(s) {
		cmdIDs = make([]resource.ID, count)
	}
	for i := range cmdIDs {
		resource.Serialise(s, "CommandBuffer", &cmdIDs[i])
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	switch w.state {
	case Reading:
		w.queueSubmitReading(cmdIDs)
	case Executing:
		w.queueSubmitExecuting(ctx, cmdIDs)
	}
	return nil
}

// queueSubmitReading splices the baked subtree of every submitted command
// buffer into the root tree, remapping the buffers' internal event and draw
// identifiers onto the root counters. The begin/end command-buffer chunks
// omitted during the walk are represented by one boundary node per buffer.
func (w *Wrapped) queueSubmitReading(cmdIDs []resource.ID) {
	desc := fmt.Sprintf("vkQueueSubmit(%d)", len(cmdIDs))
	w.addEvent(desc)
	w.addDrawcall(frame.Drawcall{Name: desc, Flags: frame.DrawCmdList | frame.DrawPushMarker}, true)

	stack := w.drawcallStack
	submitNode := stack[len(stack)-1].LastChild()
	if submitNode == nil {
		return
	}

	eventShift := w.rootEventID
	drawShift := w.rootDrawcallID - 1

	for _, id := range cmdIDs {
		baked := w.bakedCmdBuffers[id]
		if baked == nil || baked.Draws == nil {
			continue
		}

		baked.BaseEvent = eventShift

		node := submitNode.AddChild(frame.Drawcall{
			Name:       fmt.Sprintf("=> Command Buffer %v", id),
			Flags:      frame.DrawCmdList,
			EventID:    eventShift + 1,
			DrawcallID: drawShift + 1,
		})
		sub := baked.Draws.Clone()
		sub.Shift(eventShift, drawShift)
		node.Children = sub.Children

		for _, ev := range baked.EventList {
			ev.EventID += eventShift
			w.events = append(w.events, ev)
		}

		eventShift += baked.EventCount
		drawShift += baked.DrawTotal
		w.rootEventID += baked.EventCount
		w.rootDrawcallID += baked.DrawTotal
	}
}

// queueSubmitExecuting submits the re-recorded command buffers and keeps
// the root event counter aligned with the reading pass. The submit also
// remembers which command buffer holds the last replayed event, so a
// following partial replay knows its parent and event base.
func (w *Wrapped) queueSubmitExecuting(ctx context.Context, cmdIDs []resource.ID) {
	base := w.rootEventID

	var submit []driver.CommandBuffer
	for _, id := range cmdIDs {
		baked := w.bakedCmdBuffers[id]
		if baked == nil {
			continue
		}

		if w.lastEventID > base && w.lastEventID <= base+baked.EventCount {
			w.partial.partialParent = id
			w.partial.baseEvent = base
		}

		if !w.replayPartial {
			if cb, ok := w.replayCmdBufs[id]; ok {
				submit = append(submit, cb)
			}
		}

		base += baked.EventCount
		w.rootEventID += baked.EventCount
		w.rootDrawcallID += baked.DrawTotal
	}

	if w.replayPartial {
		if w.partial.resultPartialCmdBuffer != 0 {
			if err := w.device.EndCommandBuffer(w.partial.resultPartialCmdBuffer); err != nil {
				log.E(ctx, "Failed to end partial command buffer: %v", err)
			}
			if err := w.device.QueueSubmit(w.queue, []driver.CommandBuffer{w.partial.resultPartialCmdBuffer}); err != nil {
				log.E(ctx, "Failed to submit partial command buffer: %v", err)
			}
		}
		return
	}

	if len(submit) > 0 {
		if err := w.device.QueueSubmit(w.queue, submit); err != nil {
			log.E(ctx, "Queue submit failed during replay: %v", err)
		}
	}
}
