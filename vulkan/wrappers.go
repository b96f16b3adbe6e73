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

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/core/fault/stacktrace"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// The entry-point wrappers below follow the interception contract: call the
// real driver, serialise the call through the calling thread's serialiser,
// register any produced resource, and append the closed chunk to the right
// record — the command buffer's record for command-recording calls, the
// frame capture record for frame-scope calls, the resource's own record for
// creations.

// recordChunk serialises one call on the calling thread's serialiser and
// appends the closed chunk to rec.
func (w *Wrapped) recordChunk(ctx context.Context, kind serialise.Type, rec *resource.Record, fill func(*serialise.Serialiser)) {
	ts := w.GetThreadSerialiser()
	ts.PushContext(kind)
	fill(ts)
	if config.Get().CaptureCallstacks {
		ts.AddCallstack(stacktrace.Capture())
	}
	ts.PopContext(kind)
	rec.AddChunk(ts.ExtractChunk())
}

// cmdRecord returns the record of a wrapped command buffer.
func (w *Wrapped) cmdRecord(cb driver.CommandBuffer) *resource.Record {
	return w.rm.GetRecord(w.rm.GetID(uint64(cb)))
}

func (w *Wrapped) markRef(id resource.ID, ref resource.FrameRefType) {
	if w.state == WritingCapFrame {
		w.rm.MarkFrameReferenced(id, ref)
	}
}

// CreateBuffer wraps buffer creation.
func (w *Wrapped) CreateBuffer(ctx context.Context, info driver.BufferCreateInfo) (driver.Buffer, error) {
	live, err := w.device.CreateBuffer(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.ResKind = resource.KindBuffer
	rec.BufferSize = info.Size

	w.recordChunk(ctx, CreateBuffer, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateBuffer(ctx, s, id, info)
	})
	w.markRef(id, resource.RefRead)
	return live, nil
}

// CreateImage wraps image creation and starts tracking the image's layout.
func (w *Wrapped) CreateImage(ctx context.Context, info driver.ImageCreateInfo) (driver.Image, error) {
	live, err := w.device.CreateImage(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.ResKind = resource.KindImage
	infoCopy := info
	rec.ImageInfo = &infoCopy

	w.imageLayoutsLock.Lock()
	w.imageLayouts[id] = []resource.ImageRegionState{{
		Range:  driver.SubresourceRange{LevelCount: info.MipLevels, LayerCount: info.ArrayLayers},
		Layout: info.Layout,
	}}
	w.imageLayoutsLock.Unlock()

	w.recordChunk(ctx, CreateImage, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateImage(ctx, s, id, info)
	})
	w.markRef(id, resource.RefRead)
	return live, nil
}

// CreateRenderPass wraps render pass creation.
func (w *Wrapped) CreateRenderPass(ctx context.Context, info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	live, err := w.device.CreateRenderPass(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)

	w.recordChunk(ctx, CreateRenderPass, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateRenderPass(ctx, s, id, info)
	})
	return live, nil
}

// CreateFramebuffer wraps framebuffer creation. The render pass record
// parents the framebuffer's record so its creation chunks are emitted with
// it.
func (w *Wrapped) CreateFramebuffer(ctx context.Context, info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	live, err := w.device.CreateFramebuffer(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.Parent = w.rm.GetRecord(w.rm.GetID(uint64(info.RenderPass)))

	attIDs := make([]resource.ID, len(info.Attachments))
	for i, att := range info.Attachments {
		attIDs[i] = w.rm.GetID(uint64(att))
	}
	w.fbAttachments[id] = attIDs

	rpID := w.rm.GetID(uint64(info.RenderPass))
	w.recordChunk(ctx, CreateFramebuffer, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateFramebuffer(ctx, s, id, rpID, attIDs, info.Extent)
	})
	return live, nil
}

// CreateShaderModule wraps shader module creation.
func (w *Wrapped) CreateShaderModule(ctx context.Context, code []byte) (driver.ShaderModule, error) {
	live, err := w.device.CreateShaderModule(code)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)

	w.recordChunk(ctx, CreateShaderModule, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateShaderModule(ctx, s, id, code)
	})
	return live, nil
}

// CreateDescriptorSetLayout wraps descriptor set layout creation.
func (w *Wrapped) CreateDescriptorSetLayout(ctx context.Context, info driver.DescriptorSetLayoutCreateInfo) (driver.DescriptorSetLayout, error) {
	live, err := w.device.CreateDescriptorSetLayout(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)

	w.recordChunk(ctx, CreateDescSetLayout, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateDescSetLayout(ctx, s, id, info)
	})
	return live, nil
}

// CreatePipelineLayout wraps pipeline layout creation.
func (w *Wrapped) CreatePipelineLayout(ctx context.Context, info driver.PipelineLayoutCreateInfo) (driver.PipelineLayout, error) {
	live, err := w.device.CreatePipelineLayout(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)

	setIDs := make([]resource.ID, len(info.SetLayouts))
	for i, sl := range info.SetLayouts {
		setIDs[i] = w.rm.GetID(uint64(sl))
		if i == 0 {
			rec.Parent = w.rm.GetRecord(setIDs[i])
		}
	}

	w.recordChunk(ctx, CreatePipeLayout, rec, func(s *serialise.Serialiser) {
		w.serialiseCreatePipeLayout(ctx, s, id, setIDs)
	})
	return live, nil
}

// CreateGraphicsPipeline wraps graphics pipeline creation.
func (w *Wrapped) CreateGraphicsPipeline(ctx context.Context, info driver.GraphicsPipelineCreateInfo) (driver.Pipeline, error) {
	live, err := w.device.CreateGraphicsPipeline(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.Parent = w.rm.GetRecord(w.rm.GetID(uint64(info.Layout)))

	p := graphicsPipeParams{
		layout:             w.rm.GetID(uint64(info.Layout)),
		renderPass:         w.rm.GetID(uint64(info.RenderPass)),
		topology:           info.Topology,
		patchControlPoints: info.PatchControlPoints,
		vertexShader:       w.rm.GetID(uint64(info.VertexShader)),
		fragmentShader:     w.rm.GetID(uint64(info.FragmentShader)),
	}
	w.creation.pipelines[id] = &pipelineInfo{
		handle:             live,
		layout:             p.layout,
		renderPass:         p.renderPass,
		vertexShader:       p.vertexShader,
		fragmentShader:     p.fragmentShader,
		topology:           info.Topology,
		patchControlPoints: info.PatchControlPoints,
	}

	w.recordChunk(ctx, CreateGraphicsPipe, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateGraphicsPipe(ctx, s, id, p)
	})
	return live, nil
}

// CreateComputePipeline wraps compute pipeline creation.
func (w *Wrapped) CreateComputePipeline(ctx context.Context, info driver.ComputePipelineCreateInfo) (driver.Pipeline, error) {
	live, err := w.device.CreateComputePipeline(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.Parent = w.rm.GetRecord(w.rm.GetID(uint64(info.Layout)))

	layoutID := w.rm.GetID(uint64(info.Layout))
	shaderID := w.rm.GetID(uint64(info.ComputeShader))
	w.creation.pipelines[id] = &pipelineInfo{handle: live, layout: layoutID, computeShader: shaderID}

	w.recordChunk(ctx, CreateComputePipe, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateComputePipe(ctx, s, id, layoutID, shaderID)
	})
	return live, nil
}

// CreateSwapchain wraps swapchain creation, registering every backbuffer
// image and the window lookup used when a capture ends.
func (w *Wrapped) CreateSwapchain(ctx context.Context, info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	live, err := w.device.CreateSwapchain(info)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.SpecialResource = true

	imgs, err := w.device.GetSwapchainImages(live)
	if err != nil {
		return 0, err
	}

	imgIDs := make([]resource.ID, len(imgs))
	for i, img := range imgs {
		imgID := resource.NewID()
		imgIDs[i] = imgID
		w.rm.AddResource(imgID, uint64(img))
		imgRec := w.rm.AddRecord(imgID)
		imgRec.ResKind = resource.KindImage
		imgRec.ImageInfo = &driver.ImageCreateInfo{Format: info.Format, Extent: info.Extent}
		imgRec.Parent = rec

		w.imageLayoutsLock.Lock()
		w.imageLayouts[imgID] = []resource.ImageRegionState{{
			Range:  driver.SubresourceRange{LevelCount: 1, LayerCount: 1},
			Layout: driver.LayoutPresentSource,
		}}
		w.imageLayoutsLock.Unlock()
	}

	rec.SwapInfo = &resource.SwapchainInfo{
		Format: info.Format,
		Extent: info.Extent,
		Images: imgs,
		Window: info.Window,
	}

	w.swapLookupLock.Lock()
	w.swapLookup[info.Window] = live
	w.swapLookupLock.Unlock()

	w.recordChunk(ctx, CreateSwapchain, rec, func(s *serialise.Serialiser) {
		w.serialiseCreateSwapchain(ctx, s, id, info, imgIDs)
	})
	return live, nil
}

// AllocDescriptorSet wraps descriptor set allocation.
func (w *Wrapped) AllocDescriptorSet(ctx context.Context, layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	live, err := w.device.AllocDescriptorSet(layout)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	layoutID := w.rm.GetID(uint64(layout))
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.Parent = w.rm.GetRecord(layoutID)

	w.recordChunk(ctx, AllocDescSet, rec, func(s *serialise.Serialiser) {
		w.serialiseAllocDescSet(ctx, s, id, layoutID)
	})
	return live, nil
}

// UpdateDescriptorSets wraps descriptor updates. During a frame capture the
// chunk goes to the frame record, ordered by the shared ordinal relative to
// the submits that consume the set.
func (w *Wrapped) UpdateDescriptorSets(ctx context.Context, set driver.DescriptorSet, writes []driver.DescriptorWrite) error {
	err := w.device.UpdateDescriptorSet(set, writes)
	w.logDriverErr(ctx, err, "vkUpdateDescriptorSets")

	setID := w.rm.GetID(uint64(set))
	ws := make([]descWrite, len(writes))
	for i, wr := range writes {
		ws[i] = descWrite{
			binding: wr.Binding,
			buffer:  w.rm.GetID(uint64(wr.Buffer)),
			image:   w.rm.GetID(uint64(wr.Image)),
		}
	}

	rec := w.rm.GetRecord(setID)
	if w.state == WritingCapFrame {
		rec = w.frameCaptureRecord
		w.markRef(setID, resource.RefWrite)
	}
	if rec != nil {
		w.recordChunk(ctx, UpdateDescSet, rec, func(s *serialise.Serialiser) {
			w.serialiseUpdateDescSet(ctx, s, setID, ws)
		})
	}
	return err
}

// AllocMemory wraps a memory allocation.
func (w *Wrapped) AllocMemory(ctx context.Context, size uint64, hostVisible bool) (driver.DeviceMemory, error) {
	live, err := w.device.AllocMemory(size, hostVisible)
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.BufferSize = size

	w.recordChunk(ctx, AllocMem, rec, func(s *serialise.Serialiser) {
		w.serialiseAllocMem(ctx, s, id, size, hostVisible)
	})
	return live, nil
}

// MapMemory wraps a memory mapping, installing the live mapping watcher on
// the record. Coherent mappings keep a shadow copy diffed at capture start.
func (w *Wrapped) MapMemory(ctx context.Context, mem driver.DeviceMemory) ([]byte, error) {
	data, err := w.device.MapMemory(mem)
	if err != nil {
		return nil, err
	}

	id := w.rm.GetID(uint64(mem))
	if rec := w.rm.GetRecord(id); rec != nil {
		rec.MemState = &resource.MemMapState{
			MappedPtr: data,
			Size:      rec.BufferSize,
			Coherent:  true,
		}
		w.coherentMapsLock.Lock()
		w.coherentMaps = append(w.coherentMaps, rec)
		w.coherentMapsLock.Unlock()
	}
	return data, nil
}

// UnmapMemory wraps a memory unmap, flushing the mapped contents as a chunk
// when a capture is active.
func (w *Wrapped) UnmapMemory(ctx context.Context, mem driver.DeviceMemory) {
	id := w.rm.GetID(uint64(mem))
	rec := w.rm.GetRecord(id)
	if rec != nil && rec.MemState != nil {
		if w.state == WritingCapFrame {
			data := append([]byte{}, rec.MemState.MappedPtr...)
			w.recordChunk(ctx, FlushMem, w.frameCaptureRecord, func(s *serialise.Serialiser) {
				w.serialiseFlushMem(ctx, s, id, rec.MemState.Offset, data)
			})
		} else {
			w.rm.MarkDirty(id)
		}

		w.coherentMapsLock.Lock()
		for i, r := range w.coherentMaps {
			if r == rec {
				w.coherentMaps = append(w.coherentMaps[:i], w.coherentMaps[i+1:]...)
				break
			}
		}
		w.coherentMapsLock.Unlock()
		rec.MemState = nil
	}

	w.device.UnmapMemory(mem)
}

// FlushMappedMemoryRanges wraps an explicit flush of mapped memory.
func (w *Wrapped) FlushMappedMemoryRanges(ctx context.Context, mem driver.DeviceMemory, offset, size uint64) {
	id := w.rm.GetID(uint64(mem))
	rec := w.rm.GetRecord(id)
	if rec == nil || rec.MemState == nil {
		return
	}
	end := offset + size
	if end > uint64(len(rec.MemState.MappedPtr)) {
		end = uint64(len(rec.MemState.MappedPtr))
	}
	data := append([]byte{}, rec.MemState.MappedPtr[offset:end]...)

	target := rec
	if w.state == WritingCapFrame {
		target = w.frameCaptureRecord
		w.markRef(id, resource.RefWrite)
	} else {
		w.rm.MarkDirty(id)
	}
	w.recordChunk(ctx, FlushMem, target, func(s *serialise.Serialiser) {
		w.serialiseFlushMem(ctx, s, id, offset, data)
	})
}

// AllocateCommandBuffer wraps command buffer allocation.
func (w *Wrapped) AllocateCommandBuffer(ctx context.Context) (driver.CommandBuffer, error) {
	live, err := w.device.CreateCommandBuffer()
	if err != nil {
		return 0, err
	}

	id := resource.NewID()
	w.rm.AddResource(id, uint64(live))
	rec := w.rm.AddRecord(id)
	rec.SpecialResource = true
	return live, nil
}

// BeginCommandBuffer wraps the start of command buffer recording, wiping
// the buffer's previous chunks.
func (w *Wrapped) BeginCommandBuffer(ctx context.Context, cb driver.CommandBuffer) error {
	err := w.device.BeginCommandBuffer(cb)
	w.logDriverErr(ctx, err, "vkBeginCommandBuffer")

	id := w.rm.GetID(uint64(cb))
	rec := w.rm.GetRecord(id)
	if rec == nil {
		return err
	}
	for rec.HasChunks() {
		rec.PopChunk()
	}
	w.recordChunk(ctx, BeginCmdBuffer, rec, func(s *serialise.Serialiser) {
		w.serialiseBeginCmdBuffer(ctx, s, id)
	})
	return err
}

// EndCommandBuffer wraps the end of command buffer recording.
func (w *Wrapped) EndCommandBuffer(ctx context.Context, cb driver.CommandBuffer) error {
	err := w.device.EndCommandBuffer(cb)
	w.logDriverErr(ctx, err, "vkEndCommandBuffer")

	id := w.rm.GetID(uint64(cb))
	if rec := w.rm.GetRecord(id); rec != nil {
		w.recordChunk(ctx, EndCmdBuffer, rec, func(s *serialise.Serialiser) {
			w.serialiseEndCmdBuffer(ctx, s, id)
		})
	}
	return err
}

// QueueSubmit wraps a queue submission. During a frame capture the
// submitted command buffers' records are retained for the flush, and the
// submit chunk enters the frame record under the shared ordinal so the
// original interleaving is preserved.
func (w *Wrapped) QueueSubmit(ctx context.Context, cbs []driver.CommandBuffer) error {
	err := w.device.QueueSubmit(w.queue, cbs)
	w.logDriverErr(ctx, err, "vkQueueSubmit")

	if w.state != WritingCapFrame {
		return err
	}

	// command buffer records flow through the record list merge below, not
	// through the referenced-resource creation section
	ids := make([]resource.ID, len(cbs))
	for i, cb := range cbs {
		ids[i] = w.rm.GetID(uint64(cb))
		if rec := w.rm.GetRecord(ids[i]); rec != nil {
			rec.AddRef()
			w.cmdBufferRecords = append(w.cmdBufferRecords, rec)
		}
	}

	w.recordChunk(ctx, QueueSubmit, w.frameCaptureRecord, func(s *serialise.Serialiser) {
		w.serialiseQueueSubmit(ctx, s, ids)
	})
	return err
}

// Present wraps a present: it records which backbuffer was last shown and
// advances the frame counter.
func (w *Wrapped) Present(ctx context.Context, wnd uintptr) error {
	w.swapLookupLock.Lock()
	swap := w.swapLookup[wnd]
	w.swapLookupLock.Unlock()

	err := w.device.QueuePresent(w.queue, swap)
	w.logDriverErr(ctx, err, "vkQueuePresentKHR")

	if rec := w.rm.GetRecord(w.rm.GetID(uint64(swap))); rec != nil && rec.SwapInfo != nil {
		rec.SwapInfo.LastPresent = (rec.SwapInfo.LastPresent + 1) % len(rec.SwapInfo.Images)
	}

	w.frameCounter++
	return err
}
