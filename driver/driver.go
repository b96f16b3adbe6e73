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

// Package driver declares the dispatch-table surface the capture and replay
// core calls into. A real implementation thunks to an installed GPU driver;
// the fake sub-package provides an in-memory one for tests and offline log
// inspection.
package driver

// Driver is the set of device entry points the core dispatches to.
//
// Object creation returns the zero handle together with an error on failure.
// During capture the core logs driver errors and carries on; the recorded
// chunk is written regardless so replay observes the same call sequence.
type Driver interface {
	// Object creation.
	CreateBuffer(BufferCreateInfo) (Buffer, error)
	CreateImage(ImageCreateInfo) (Image, error)
	CreateRenderPass(RenderPassCreateInfo) (RenderPass, error)
	CreateFramebuffer(FramebufferCreateInfo) (Framebuffer, error)
	CreateShaderModule(code []byte) (ShaderModule, error)
	CreateDescriptorSetLayout(DescriptorSetLayoutCreateInfo) (DescriptorSetLayout, error)
	CreatePipelineLayout(PipelineLayoutCreateInfo) (PipelineLayout, error)
	CreateGraphicsPipeline(GraphicsPipelineCreateInfo) (Pipeline, error)
	CreateComputePipeline(ComputePipelineCreateInfo) (Pipeline, error)
	CreateSwapchain(SwapchainCreateInfo) (Swapchain, error)
	GetSwapchainImages(Swapchain) ([]Image, error)
	AllocDescriptorSet(DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSet(DescriptorSet, []DescriptorWrite) error
	DestroyBuffer(Buffer)
	DestroyImage(Image)

	// Memory.
	AllocMemory(size uint64, hostVisible bool) (DeviceMemory, error)
	FreeMemory(DeviceMemory)
	BindBufferMemory(Buffer, DeviceMemory, uint64) error
	BindImageMemory(Image, DeviceMemory, uint64) error
	MapMemory(DeviceMemory) ([]byte, error)
	UnmapMemory(DeviceMemory)
	GetImageSubresourceLayout(Image) SubresourceLayout

	// Command buffer lifetime.
	CreateCommandBuffer() (CommandBuffer, error)
	DestroyCommandBuffer(CommandBuffer)
	ResetCommandBuffer(CommandBuffer) error
	BeginCommandBuffer(CommandBuffer) error
	EndCommandBuffer(CommandBuffer) error

	// Command recording.
	CmdBeginRenderPass(CommandBuffer, RenderPassBeginInfo)
	CmdEndRenderPass(CommandBuffer)
	CmdBindPipeline(CommandBuffer, PipelineBindPoint, Pipeline)
	CmdBindDescriptorSets(cb CommandBuffer, bindPoint PipelineBindPoint, layout PipelineLayout, first uint32, sets []DescriptorSet, dynamicOffsets []uint32)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, offset uint64, indexType IndexType)
	CmdSetViewport(CommandBuffer, []Viewport)
	CmdSetScissor(CommandBuffer, []Rect2D)
	CmdSetBlendConstants(CommandBuffer, [4]float32)
	CmdSetDepthBounds(cb CommandBuffer, min, max float32)
	CmdSetLineWidth(CommandBuffer, float32)
	CmdSetDepthBias(cb CommandBuffer, depth, clamp, slope float32)
	CmdSetStencilCompareMask(CommandBuffer, StencilFace, uint32)
	CmdSetStencilWriteMask(CommandBuffer, StencilFace, uint32)
	CmdSetStencilReference(CommandBuffer, StencilFace, uint32)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDispatch(cb CommandBuffer, x, y, z uint32)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyImage(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageCopy)
	CmdCopyImageToBuffer(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Buffer, regions []BufferImageCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, dstLayout ImageLayout, regions []BufferImageCopy)
	CmdUpdateBuffer(cb CommandBuffer, dst Buffer, offset uint64, data []byte)
	CmdPipelineBarrier(CommandBuffer, []ImageMemoryBarrier)
	CmdDbgMarkerBegin(CommandBuffer, string)
	CmdDbgMarkerEnd(CommandBuffer)

	// Queue operations. QueueWaitIdle and DeviceWaitIdle block until the
	// device drains; they have no timeout.
	QueueSubmit(Queue, []CommandBuffer) error
	QueueWaitIdle(Queue) error
	DeviceWaitIdle() error
	QueuePresent(Queue, Swapchain) error
}
