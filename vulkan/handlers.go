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

// Each serialise method below is used from both sides: a capture wrapper
// calls it with a writing serialiser to record the call, and the replay
// engine calls it with the reading serialiser, where it decodes the same
// fields and acts on them according to the current state.

func (w *Wrapped) registerHandlers() {
	r := w.registry
	handle := func(kind serialise.Type, h serialise.Handler) {
		r.Register(kind, ChunkName(kind), h)
	}

	handle(DeviceInit, func(ctx context.Context, s *serialise.Serialiser) error { return nil })

	handle(CreateBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateBuffer(ctx, s, resource.NilID, driver.BufferCreateInfo{})
	})
	handle(CreateImage, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateImage(ctx, s, resource.NilID, driver.ImageCreateInfo{})
	})
	handle(CreateRenderPass, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateRenderPass(ctx, s, resource.NilID, driver.RenderPassCreateInfo{})
	})
	handle(CreateFramebuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateFramebuffer(ctx, s, resource.NilID, resource.NilID, nil, driver.Extent2D{})
	})
	handle(CreateShaderModule, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateShaderModule(ctx, s, resource.NilID, nil)
	})
	handle(CreateDescSetLayout, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateDescSetLayout(ctx, s, resource.NilID, driver.DescriptorSetLayoutCreateInfo{})
	})
	handle(CreatePipeLayout, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreatePipeLayout(ctx, s, resource.NilID, nil)
	})
	handle(CreateGraphicsPipe, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateGraphicsPipe(ctx, s, resource.NilID, graphicsPipeParams{})
	})
	handle(CreateComputePipe, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateComputePipe(ctx, s, resource.NilID, resource.NilID, resource.NilID)
	})
	handle(CreateSwapchain, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCreateSwapchain(ctx, s, resource.NilID, driver.SwapchainCreateInfo{}, nil)
	})
	handle(AllocDescSet, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseAllocDescSet(ctx, s, resource.NilID, resource.NilID)
	})
	handle(UpdateDescSet, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseUpdateDescSet(ctx, s, resource.NilID, nil)
	})
	handle(AllocMem, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseAllocMem(ctx, s, resource.NilID, 0, false)
	})
	handle(FlushMem, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseFlushMem(ctx, s, resource.NilID, 0, nil)
	})

	handle(BeginCmdBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseBeginCmdBuffer(ctx, s, resource.NilID)
	})
	handle(EndCmdBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseEndCmdBuffer(ctx, s, resource.NilID)
	})

	handle(BeginRenderPass, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdBeginRenderPass(ctx, s, resource.NilID, renderPassBeginParams{})
	})
	handle(EndRenderPass, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdEndRenderPass(ctx, s, resource.NilID)
	})
	handle(BindPipeline, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdBindPipeline(ctx, s, resource.NilID, driver.BindGraphics, resource.NilID)
	})
	handle(BindDescriptorSet, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdBindDescriptorSets(ctx, s, resource.NilID, driver.BindGraphics, resource.NilID, 0, nil, nil)
	})
	handle(BindVertexBuffers, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdBindVertexBuffers(ctx, s, resource.NilID, 0, nil, nil)
	})
	handle(BindIndexBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdBindIndexBuffer(ctx, s, resource.NilID, resource.NilID, 0, driver.IndexUint16)
	})
	handle(SetViewport, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetViewport(ctx, s, resource.NilID, nil)
	})
	handle(SetScissor, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetScissor(ctx, s, resource.NilID, nil)
	})
	handle(SetBlendConst, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetBlendConstants(ctx, s, resource.NilID, [4]float32{})
	})
	handle(SetDepthBounds, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetDepthBounds(ctx, s, resource.NilID, 0, 0)
	})
	handle(SetLineWidth, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetLineWidth(ctx, s, resource.NilID, 0)
	})
	handle(SetDepthBias, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetDepthBias(ctx, s, resource.NilID, 0, 0, 0)
	})
	handle(SetStencilCompMask, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetStencil(ctx, s, SetStencilCompMask, resource.NilID, driver.StencilFront, 0)
	})
	handle(SetStencilWriteMask, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetStencil(ctx, s, SetStencilWriteMask, resource.NilID, driver.StencilFront, 0)
	})
	handle(SetStencilRef, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdSetStencil(ctx, s, SetStencilRef, resource.NilID, driver.StencilFront, 0)
	})

	handle(Draw, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdDraw(ctx, s, resource.NilID, 0, 0, 0, 0)
	})
	handle(DrawIndexed, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdDrawIndexed(ctx, s, resource.NilID, 0, 0, 0, 0, 0)
	})
	handle(Dispatch, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdDispatch(ctx, s, resource.NilID, 0, 0, 0)
	})
	handle(CopyBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdCopyBuffer(ctx, s, resource.NilID, resource.NilID, resource.NilID, nil)
	})
	handle(CopyImage, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdCopyImage(ctx, s, resource.NilID, resource.NilID, resource.NilID, driver.LayoutGeneral, driver.LayoutGeneral)
	})
	handle(UpdateBuffer, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdUpdateBuffer(ctx, s, resource.NilID, resource.NilID, 0, nil)
	})
	handle(PipelineBarrier, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCmdPipelineBarrier(ctx, s, resource.NilID, nil)
	})

	handle(QueueSubmit, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseQueueSubmit(ctx, s, nil)
	})

	handle(BeginEvent, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseDbgMarker(ctx, s, BeginEvent, resource.NilID, "")
	})
	handle(SetMarker, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseDbgMarker(ctx, s, SetMarker, resource.NilID, "")
	})
	handle(EndEvent, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseDbgMarker(ctx, s, EndEvent, resource.NilID, "")
	})

	handle(CaptureScope, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCaptureScope(ctx, s)
	})
	handle(ContextCaptureHeader, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseBeginCaptureFrame(ctx, s, true)
	})
	handle(ContextCaptureFooter, func(ctx context.Context, s *serialise.Serialiser) error {
		return w.serialiseCaptureFooter(ctx, s, resource.NilID, nil)
	})
}

func reading(s *serialise.Serialiser) bool { return s.Mode() == serialise.Reading }

// registerReplayResource binds a recorded identifier to a freshly created
// live handle, tracking it as in-frame when created inside the frame.
func (w *Wrapped) registerReplayResource(id resource.ID, live uint64) {
	if w.inFrame {
		w.rm.AddInFrameResource(id, live)
	} else {
		w.rm.AddResource(id, live)
	}
}

func serialiseEnum(s *serialise.Serialiser, name string, v uint32) uint32 {
	s.SerialiseUint32(name, &v)
	return v
}

func (w *Wrapped) serialiseCreateBuffer(ctx context.Context, s *serialise.Serialiser, id resource.ID, info driver.BufferCreateInfo) error {
	resource.Serialise(s, "Buffer", &id)
	s.SerialiseUint64("Size", &info.Size)

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateBuffer(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		rec := w.rm.AddRecord(id)
		rec.ResKind = resource.KindBuffer
		rec.BufferSize = info.Size
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateImage(ctx context.Context, s *serialise.Serialiser, id resource.ID, info driver.ImageCreateInfo) error {
	resource.Serialise(s, "Image", &id)
	info.Format = driver.Format(serialiseEnum(s, "Format", uint32(info.Format)))
	s.SerialiseUint32("Width", &info.Extent.Width)
	s.SerialiseUint32("Height", &info.Extent.Height)
	s.SerialiseUint32("MipLevels", &info.MipLevels)
	s.SerialiseUint32("ArrayLayers", &info.ArrayLayers)
	s.SerialiseBool("LinearTiling", &info.LinearTiling)
	info.Layout = driver.ImageLayout(serialiseEnum(s, "Layout", uint32(info.Layout)))

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateImage(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		rec := w.rm.AddRecord(id)
		rec.ResKind = resource.KindImage
		infoCopy := info
		rec.ImageInfo = &infoCopy
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateRenderPass(ctx context.Context, s *serialise.Serialiser, id resource.ID, info driver.RenderPassCreateInfo) error {
	resource.Serialise(s, "RenderPass", &id)
	count := uint32(len(info.Attachments))
	s.SerialiseUint32("AttachmentCount", &count)
	if reading(s) {
		info.Attachments = make([]driver.AttachmentDescription, count)
	}
	for i := range info.Attachments {
		a := &info.Attachments[i]
		a.Format = driver.Format(serialiseEnum(s, "Format", uint32(a.Format)))
		a.LoadOp = driver.LoadOp(serialiseEnum(s, "LoadOp", uint32(a.LoadOp)))
		a.StoreOp = driver.StoreOp(serialiseEnum(s, "StoreOp", uint32(a.StoreOp)))
		a.InitialLayout = driver.ImageLayout(serialiseEnum(s, "InitialLayout", uint32(a.InitialLayout)))
		a.FinalLayout = driver.ImageLayout(serialiseEnum(s, "FinalLayout", uint32(a.FinalLayout)))
	}

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateRenderPass(info)
		if err != nil {
			return err
		}

		// build the load-op variant used by partial replay: targets may be
		// partially written, so nothing may clear on begin
		loadInfo := driver.RenderPassCreateInfo{
			Attachments: append([]driver.AttachmentDescription{}, info.Attachments...),
		}
		for i := range loadInfo.Attachments {
			loadInfo.Attachments[i].LoadOp = driver.LoadOpLoad
		}
		loadRP, err := w.device.CreateRenderPass(loadInfo)
		if err != nil {
			return err
		}

		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
		w.creation.renderPasses[id] = &renderPassInfo{
			handle:      live,
			loadRP:      loadRP,
			attachments: info.Attachments,
		}
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateFramebuffer(ctx context.Context, s *serialise.Serialiser, id, rpID resource.ID, attachments []resource.ID, extent driver.Extent2D) error {
	resource.Serialise(s, "Framebuffer", &id)
	resource.Serialise(s, "RenderPass", &rpID)
	count := uint32(len(attachments))
	s.SerialiseUint32("AttachmentCount", &count)
	if reading(s) {
		attachments = make([]resource.ID, count)
	}
	for i := range attachments {
		resource.Serialise(s, "Attachment", &attachments[i])
	}
	s.SerialiseUint32("Width", &extent.Width)
	s.SerialiseUint32("Height", &extent.Height)

	if reading(s) && s.Error() == nil {
		rp, ok := w.rm.GetLive(rpID)
		if !ok {
			return resource.ErrMissingResource
		}
		imgs := make([]driver.Image, len(attachments))
		for i, att := range attachments {
			img, ok := w.rm.GetLive(att)
			if !ok {
				return resource.ErrMissingResource
			}
			imgs[i] = driver.Image(img)
		}
		live, err := w.device.CreateFramebuffer(driver.FramebufferCreateInfo{
			RenderPass:  driver.RenderPass(rp),
			Attachments: imgs,
			Extent:      extent,
		})
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateShaderModule(ctx context.Context, s *serialise.Serialiser, id resource.ID, code []byte) error {
	resource.Serialise(s, "ShaderModule", &id)
	s.SerialiseBytes("Code", &code)

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateShaderModule(code)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateDescSetLayout(ctx context.Context, s *serialise.Serialiser, id resource.ID, info driver.DescriptorSetLayoutCreateInfo) error {
	resource.Serialise(s, "DescriptorSetLayout", &id)
	s.SerialiseUint32("BindingCount", &info.BindingCount)
	s.SerialiseUint32("DynamicCount", &info.DynamicCount)

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateDescriptorSetLayout(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
		w.creation.descSetLayouts[id] = &descSetLayoutInfo{handle: live, dynamicCount: info.DynamicCount}
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreatePipeLayout(ctx context.Context, s *serialise.Serialiser, id resource.ID, setLayouts []resource.ID) error {
	resource.Serialise(s, "PipelineLayout", &id)
	count := uint32(len(setLayouts))
	s.SerialiseUint32("SetLayoutCount", &count)
	if reading(s) {
		setLayouts = make([]resource.ID, count)
	}
	for i := range setLayouts {
		resource.Serialise(s, "SetLayout", &setLayouts[i])
	}

	if reading(s) && s.Error() == nil {
		layouts := make([]driver.DescriptorSetLayout, len(setLayouts))
		for i, sl := range setLayouts {
			live, ok := w.rm.GetLive(sl)
			if !ok {
				return resource.ErrMissingResource
			}
			layouts[i] = driver.DescriptorSetLayout(live)
		}
		live, err := w.device.CreatePipelineLayout(driver.PipelineLayoutCreateInfo{SetLayouts: layouts})
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
		w.creation.pipelineLayouts[id] = &pipelineLayoutInfo{handle: live, setLayouts: setLayouts}
	}
	return s.Error()
}

type graphicsPipeParams struct {
	layout             resource.ID
	renderPass         resource.ID
	topology           driver.Topology
	patchControlPoints uint32
	vertexShader       resource.ID
	fragmentShader     resource.ID
}

func (w *Wrapped) serialiseCreateGraphicsPipe(ctx context.Context, s *serialise.Serialiser, id resource.ID, p graphicsPipeParams) error {
	resource.Serialise(s, "Pipeline", &id)
	resource.Serialise(s, "Layout", &p.layout)
	resource.Serialise(s, "RenderPass", &p.renderPass)
	p.topology = driver.Topology(serialiseEnum(s, "Topology", uint32(p.topology)))
	s.SerialiseUint32("PatchControlPoints", &p.patchControlPoints)
	resource.Serialise(s, "VertexShader", &p.vertexShader)
	resource.Serialise(s, "FragmentShader", &p.fragmentShader)

	if reading(s) && s.Error() == nil {
		layout, ok := w.rm.GetLive(p.layout)
		if !ok {
			return resource.ErrMissingResource
		}
		info := driver.GraphicsPipelineCreateInfo{
			Layout:             driver.PipelineLayout(layout),
			Topology:           p.topology,
			PatchControlPoints: p.patchControlPoints,
		}
		if rp, ok := w.rm.GetLive(p.renderPass); ok {
			info.RenderPass = driver.RenderPass(rp)
		}
		if vs, ok := w.rm.GetLive(p.vertexShader); ok {
			info.VertexShader = driver.ShaderModule(vs)
		}
		if fs, ok := w.rm.GetLive(p.fragmentShader); ok {
			info.FragmentShader = driver.ShaderModule(fs)
		}
		live, err := w.device.CreateGraphicsPipeline(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
		w.creation.pipelines[id] = &pipelineInfo{
			handle:             live,
			layout:             p.layout,
			renderPass:         p.renderPass,
			vertexShader:       p.vertexShader,
			fragmentShader:     p.fragmentShader,
			topology:           p.topology,
			patchControlPoints: p.patchControlPoints,
		}
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateComputePipe(ctx context.Context, s *serialise.Serialiser, id, layoutID, shader resource.ID) error {
	resource.Serialise(s, "Pipeline", &id)
	resource.Serialise(s, "Layout", &layoutID)
	resource.Serialise(s, "ComputeShader", &shader)

	if reading(s) && s.Error() == nil {
		layout, ok := w.rm.GetLive(layoutID)
		if !ok {
			return resource.ErrMissingResource
		}
		info := driver.ComputePipelineCreateInfo{Layout: driver.PipelineLayout(layout)}
		if cs, ok := w.rm.GetLive(shader); ok {
			info.ComputeShader = driver.ShaderModule(cs)
		}
		live, err := w.device.CreateComputePipeline(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)
		w.creation.pipelines[id] = &pipelineInfo{handle: live, layout: layoutID}
	}
	return s.Error()
}

func (w *Wrapped) serialiseCreateSwapchain(ctx context.Context, s *serialise.Serialiser, id resource.ID, info driver.SwapchainCreateInfo, imageIDs []resource.ID) error {
	resource.Serialise(s, "Swapchain", &id)
	info.Format = driver.Format(serialiseEnum(s, "Format", uint32(info.Format)))
	s.SerialiseUint32("Width", &info.Extent.Width)
	s.SerialiseUint32("Height", &info.Extent.Height)
	s.SerialiseUint32("ImageCount", &info.ImageCount)
	count := uint32(len(imageIDs))
	s.SerialiseUint32("Images", &count)
	if reading(s) {
		imageIDs = make([]resource.ID, count)
	}
	for i := range imageIDs {
		resource.Serialise(s, "Image", &imageIDs[i])
	}

	if reading(s) && s.Error() == nil {
		live, err := w.device.CreateSwapchain(info)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		w.rm.AddRecord(id)

		imgs, err := w.device.GetSwapchainImages(live)
		if err != nil {
			return err
		}
		for i, imgID := range imageIDs {
			if i >= len(imgs) {
				break
			}
			w.registerReplayResource(imgID, uint64(imgs[i]))
			rec := w.rm.AddRecord(imgID)
			rec.ResKind = resource.KindImage
			rec.ImageInfo = &driver.ImageCreateInfo{Format: info.Format, Extent: info.Extent}
		}
	}
	return s.Error()
}

func (w *Wrapped) serialiseAllocDescSet(ctx context.Context, s *serialise.Serialiser, id, layoutID resource.ID) error {
	resource.Serialise(s, "DescriptorSet", &id)
	resource.Serialise(s, "Layout", &layoutID)

	if reading(s) && s.Error() == nil {
		layout, ok := w.rm.GetLive(layoutID)
		if !ok {
			return resource.ErrMissingResource
		}
		live, err := w.device.AllocDescriptorSet(driver.DescriptorSetLayout(layout))
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		rec := w.rm.AddRecord(id)
		rec.Parent = w.rm.GetRecord(layoutID)
	}
	return s.Error()
}

func (w *Wrapped) serialiseUpdateDescSet(ctx context.Context, s *serialise.Serialiser, set resource.ID, writes []descWrite) error {
	resource.Serialise(s, "DescriptorSet", &set)
	count := uint32(len(writes))
	s.SerialiseUint32("WriteCount", &count)
	if reading(s) {
		writes = make([]descWrite, count)
	}
	for i := range writes {
		s.SerialiseUint32("Binding", &writes[i].binding)
		resource.Serialise(s, "Buffer", &writes[i].buffer)
		resource.Serialise(s, "Image", &writes[i].image)
	}

	if reading(s) && s.Error() == nil && w.shouldExecute() {
		live, ok := w.rm.GetLive(set)
		if !ok {
			return resource.ErrMissingResource
		}
		out := make([]driver.DescriptorWrite, len(writes))
		for i, wr := range writes {
			out[i].Binding = wr.binding
			if b, ok := w.rm.GetLive(wr.buffer); ok {
				out[i].Buffer = driver.Buffer(b)
			}
			if im, ok := w.rm.GetLive(wr.image); ok {
				out[i].Image = driver.Image(im)
			}
		}
		if err := w.device.UpdateDescriptorSet(driver.DescriptorSet(live), out); err != nil {
			return err
		}
	}
	return s.Error()
}

type descWrite struct {
	binding uint32
	buffer  resource.ID
	image   resource.ID
}

func (w *Wrapped) serialiseAllocMem(ctx context.Context, s *serialise.Serialiser, id resource.ID, size uint64, hostVisible bool) error {
	resource.Serialise(s, "Memory", &id)
	s.SerialiseUint64("Size", &size)
	s.SerialiseBool("HostVisible", &hostVisible)

	if reading(s) && s.Error() == nil {
		live, err := w.device.AllocMemory(size, hostVisible)
		if err != nil {
			return err
		}
		w.registerReplayResource(id, uint64(live))
		rec := w.rm.AddRecord(id)
		rec.BufferSize = size
	}
	return s.Error()
}

func (w *Wrapped) serialiseFlushMem(ctx context.Context, s *serialise.Serialiser, id resource.ID, offset uint64, data []byte) error {
	resource.Serialise(s, "Memory", &id)
	s.SerialiseUint64("Offset", &offset)
	s.SerialiseBytes("Data", &data)

	if reading(s) && s.Error() == nil && w.shouldExecute() {
		live, ok := w.rm.GetLive(id)
		if !ok {
			return resource.ErrMissingResource
		}
		mapped, err := w.device.MapMemory(driver.DeviceMemory(live))
		if err != nil {
			return err
		}
		copy(mapped[offset:], data)
		w.device.UnmapMemory(driver.DeviceMemory(live))
	}
	return s.Error()
}
