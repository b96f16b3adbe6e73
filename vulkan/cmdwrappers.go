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

	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// recordCmdChunk serialises one command-recording call and appends the
// closed chunk to the command buffer's record, never the frame record.
func (w *Wrapped) recordCmdChunk(ctx context.Context, kind serialise.Type, cb driver.CommandBuffer, fill func(*serialise.Serialiser)) {
	if rec := w.cmdRecord(cb); rec != nil {
		w.recordChunk(ctx, kind, rec, fill)
	}
}

// CmdBeginRenderPass wraps a render pass begin, marking the pass, the
// framebuffer and its attachments frame-referenced.
func (w *Wrapped) CmdBeginRenderPass(ctx context.Context, cb driver.CommandBuffer, info driver.RenderPassBeginInfo) {
	w.device.CmdBeginRenderPass(cb, info)

	cmdid := w.rm.GetID(uint64(cb))
	p := renderPassBeginParams{
		renderPass:  w.rm.GetID(uint64(info.RenderPass)),
		framebuffer: w.rm.GetID(uint64(info.Framebuffer)),
		renderArea:  info.RenderArea,
		clearValues: info.ClearValues,
	}

	w.markRef(p.renderPass, resource.RefRead)
	w.markRef(p.framebuffer, resource.RefRead)
	for _, att := range w.fbAttachments[p.framebuffer] {
		w.markRef(att, resource.RefPartialWrite)
	}

	w.recordCmdChunk(ctx, BeginRenderPass, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdBeginRenderPass(ctx, s, cmdid, p)
	})
}

// CmdEndRenderPass wraps a render pass end.
func (w *Wrapped) CmdEndRenderPass(ctx context.Context, cb driver.CommandBuffer) {
	w.device.CmdEndRenderPass(cb)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, EndRenderPass, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdEndRenderPass(ctx, s, cmdid)
	})
}

// CmdBindPipeline wraps a pipeline bind.
func (w *Wrapped) CmdBindPipeline(ctx context.Context, cb driver.CommandBuffer, bindPoint driver.PipelineBindPoint, pipe driver.Pipeline) {
	w.device.CmdBindPipeline(cb, bindPoint, pipe)
	cmdid := w.rm.GetID(uint64(cb))
	pipeID := w.rm.GetID(uint64(pipe))
	w.markRef(pipeID, resource.RefRead)
	if info := w.creation.pipelines[pipeID]; info != nil {
		w.markRef(info.renderPass, resource.RefRead)
		w.markRef(info.vertexShader, resource.RefRead)
		w.markRef(info.fragmentShader, resource.RefRead)
		w.markRef(info.computeShader, resource.RefRead)
	}
	w.recordCmdChunk(ctx, BindPipeline, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdBindPipeline(ctx, s, cmdid, bindPoint, pipeID)
	})
}

// CmdBindDescriptorSets wraps a descriptor set bind.
func (w *Wrapped) CmdBindDescriptorSets(ctx context.Context, cb driver.CommandBuffer, bindPoint driver.PipelineBindPoint, layout driver.PipelineLayout, first uint32, sets []driver.DescriptorSet, dynamicOffsets []uint32) {
	w.device.CmdBindDescriptorSets(cb, bindPoint, layout, first, sets, dynamicOffsets)

	cmdid := w.rm.GetID(uint64(cb))
	layoutID := w.rm.GetID(uint64(layout))
	setIDs := make([]resource.ID, len(sets))
	for i, set := range sets {
		setIDs[i] = w.rm.GetID(uint64(set))
		w.markRef(setIDs[i], resource.RefRead)
	}
	w.markRef(layoutID, resource.RefRead)

	w.recordCmdChunk(ctx, BindDescriptorSet, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdBindDescriptorSets(ctx, s, cmdid, bindPoint, layoutID, first, setIDs, dynamicOffsets)
	})
}

// CmdBindVertexBuffers wraps a vertex buffer bind.
func (w *Wrapped) CmdBindVertexBuffers(ctx context.Context, cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	w.device.CmdBindVertexBuffers(cb, first, buffers, offsets)

	cmdid := w.rm.GetID(uint64(cb))
	bufIDs := make([]resource.ID, len(buffers))
	for i, buf := range buffers {
		bufIDs[i] = w.rm.GetID(uint64(buf))
		w.markRef(bufIDs[i], resource.RefRead)
	}

	w.recordCmdChunk(ctx, BindVertexBuffers, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdBindVertexBuffers(ctx, s, cmdid, first, bufIDs, offsets)
	})
}

// CmdBindIndexBuffer wraps an index buffer bind.
func (w *Wrapped) CmdBindIndexBuffer(ctx context.Context, cb driver.CommandBuffer, buf driver.Buffer, offset uint64, ty driver.IndexType) {
	w.device.CmdBindIndexBuffer(cb, buf, offset, ty)
	cmdid := w.rm.GetID(uint64(cb))
	bufID := w.rm.GetID(uint64(buf))
	w.markRef(bufID, resource.RefRead)
	w.recordCmdChunk(ctx, BindIndexBuffer, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdBindIndexBuffer(ctx, s, cmdid, bufID, offset, ty)
	})
}

// CmdSetViewport wraps a viewport set.
func (w *Wrapped) CmdSetViewport(ctx context.Context, cb driver.CommandBuffer, vps []driver.Viewport) {
	w.device.CmdSetViewport(cb, vps)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetViewport, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetViewport(ctx, s, cmdid, vps)
	})
}

// CmdSetScissor wraps a scissor set.
func (w *Wrapped) CmdSetScissor(ctx context.Context, cb driver.CommandBuffer, rects []driver.Rect2D) {
	w.device.CmdSetScissor(cb, rects)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetScissor, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetScissor(ctx, s, cmdid, rects)
	})
}

// CmdSetBlendConstants wraps a blend constant set.
func (w *Wrapped) CmdSetBlendConstants(ctx context.Context, cb driver.CommandBuffer, consts [4]float32) {
	w.device.CmdSetBlendConstants(cb, consts)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetBlendConst, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetBlendConstants(ctx, s, cmdid, consts)
	})
}

// CmdSetDepthBounds wraps a depth bounds set.
func (w *Wrapped) CmdSetDepthBounds(ctx context.Context, cb driver.CommandBuffer, min, max float32) {
	w.device.CmdSetDepthBounds(cb, min, max)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetDepthBounds, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetDepthBounds(ctx, s, cmdid, min, max)
	})
}

// CmdSetLineWidth wraps a line width set.
func (w *Wrapped) CmdSetLineWidth(ctx context.Context, cb driver.CommandBuffer, width float32) {
	w.device.CmdSetLineWidth(cb, width)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetLineWidth, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetLineWidth(ctx, s, cmdid, width)
	})
}

// CmdSetDepthBias wraps a depth bias set.
func (w *Wrapped) CmdSetDepthBias(ctx context.Context, cb driver.CommandBuffer, depth, clamp, slope float32) {
	w.device.CmdSetDepthBias(cb, depth, clamp, slope)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetDepthBias, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetDepthBias(ctx, s, cmdid, depth, clamp, slope)
	})
}

// CmdSetStencilCompareMask wraps a stencil compare mask set.
func (w *Wrapped) CmdSetStencilCompareMask(ctx context.Context, cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	w.device.CmdSetStencilCompareMask(cb, face, v)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetStencilCompMask, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetStencil(ctx, s, SetStencilCompMask, cmdid, face, v)
	})
}

// CmdSetStencilWriteMask wraps a stencil write mask set.
func (w *Wrapped) CmdSetStencilWriteMask(ctx context.Context, cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	w.device.CmdSetStencilWriteMask(cb, face, v)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetStencilWriteMask, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetStencil(ctx, s, SetStencilWriteMask, cmdid, face, v)
	})
}

// CmdSetStencilReference wraps a stencil reference set.
func (w *Wrapped) CmdSetStencilReference(ctx context.Context, cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	w.device.CmdSetStencilReference(cb, face, v)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, SetStencilRef, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdSetStencil(ctx, s, SetStencilRef, cmdid, face, v)
	})
}

// CmdDraw wraps a draw.
func (w *Wrapped) CmdDraw(ctx context.Context, cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	w.device.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, Draw, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdDraw(ctx, s, cmdid, vertexCount, instanceCount, firstVertex, firstInstance)
	})
}

// CmdDrawIndexed wraps an indexed draw.
func (w *Wrapped) CmdDrawIndexed(ctx context.Context, cb driver.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	w.device.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, DrawIndexed, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdDrawIndexed(ctx, s, cmdid, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	})
}

// CmdDispatch wraps a compute dispatch.
func (w *Wrapped) CmdDispatch(ctx context.Context, cb driver.CommandBuffer, x, y, z uint32) {
	w.device.CmdDispatch(cb, x, y, z)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, Dispatch, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdDispatch(ctx, s, cmdid, x, y, z)
	})
}

// CmdCopyBuffer wraps a buffer copy.
func (w *Wrapped) CmdCopyBuffer(ctx context.Context, cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	w.device.CmdCopyBuffer(cb, src, dst, regions)
	cmdid := w.rm.GetID(uint64(cb))
	srcID := w.rm.GetID(uint64(src))
	dstID := w.rm.GetID(uint64(dst))
	w.markRef(srcID, resource.RefRead)
	w.markRef(dstID, resource.RefPartialWrite)
	if w.state == WritingIdle {
		w.rm.MarkDirty(dstID)
	}
	w.recordCmdChunk(ctx, CopyBuffer, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdCopyBuffer(ctx, s, cmdid, srcID, dstID, regions)
	})
}

// CmdCopyImage wraps an image copy.
func (w *Wrapped) CmdCopyImage(ctx context.Context, cb driver.CommandBuffer, src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout) {
	w.device.CmdCopyImage(cb, src, srcLayout, dst, dstLayout, nil)
	cmdid := w.rm.GetID(uint64(cb))
	srcID := w.rm.GetID(uint64(src))
	dstID := w.rm.GetID(uint64(dst))
	w.markRef(srcID, resource.RefRead)
	w.markRef(dstID, resource.RefPartialWrite)
	if w.state == WritingIdle {
		w.rm.MarkDirty(dstID)
	}
	w.recordCmdChunk(ctx, CopyImage, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdCopyImage(ctx, s, cmdid, srcID, dstID, srcLayout, dstLayout)
	})
}

// CmdUpdateBuffer wraps an inline buffer update.
func (w *Wrapped) CmdUpdateBuffer(ctx context.Context, cb driver.CommandBuffer, dst driver.Buffer, offset uint64, data []byte) {
	w.device.CmdUpdateBuffer(cb, dst, offset, data)
	cmdid := w.rm.GetID(uint64(cb))
	dstID := w.rm.GetID(uint64(dst))
	w.markRef(dstID, resource.RefPartialWrite)
	if w.state == WritingIdle {
		w.rm.MarkDirty(dstID)
	}
	w.recordCmdChunk(ctx, UpdateBuffer, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdUpdateBuffer(ctx, s, cmdid, dstID, offset, data)
	})
}

// CmdPipelineBarrier wraps a pipeline barrier, updating the tracked layout
// of every transitioned image.
func (w *Wrapped) CmdPipelineBarrier(ctx context.Context, cb driver.CommandBuffer, barriers []driver.ImageMemoryBarrier) {
	w.device.CmdPipelineBarrier(cb, barriers)

	cmdid := w.rm.GetID(uint64(cb))
	wire := make([]imageBarrier, len(barriers))
	for i, b := range barriers {
		imgID := w.rm.GetID(uint64(b.Image))
		wire[i] = imageBarrier{
			oldLayout: b.OldLayout,
			newLayout: b.NewLayout,
			image:     imgID,
			srange:    b.Range,
		}

		// the layout map always reflects the last recorded layout
		w.imageLayoutsLock.Lock()
		w.imageLayouts[imgID] = []resource.ImageRegionState{{Range: b.Range, Layout: b.NewLayout}}
		w.imageLayoutsLock.Unlock()
	}

	w.recordCmdChunk(ctx, PipelineBarrier, cb, func(s *serialise.Serialiser) {
		w.serialiseCmdPipelineBarrier(ctx, s, cmdid, wire)
	})
}

// CmdDbgMarkerBegin wraps a debug marker region begin.
func (w *Wrapped) CmdDbgMarkerBegin(ctx context.Context, cb driver.CommandBuffer, name string) {
	w.device.CmdDbgMarkerBegin(cb, name)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, BeginEvent, cb, func(s *serialise.Serialiser) {
		w.serialiseDbgMarker(ctx, s, BeginEvent, cmdid, name)
	})
}

// CmdDbgMarkerEnd wraps a debug marker region end.
func (w *Wrapped) CmdDbgMarkerEnd(ctx context.Context, cb driver.CommandBuffer) {
	w.device.CmdDbgMarkerEnd(cb)
	cmdid := w.rm.GetID(uint64(cb))
	w.recordCmdChunk(ctx, EndEvent, cb, func(s *serialise.Serialiser) {
		w.serialiseDbgMarker(ctx, s, EndEvent, cmdid, "")
	})
}
