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

import "github.com/deM-on/renderdoc/serialise"

// The closed set of chunk kinds this driver records.
const (
	DeviceInit serialise.Type = serialise.FirstChunkID + iota

	CreateBuffer
	CreateImage
	CreateRenderPass
	CreateFramebuffer
	CreateShaderModule
	CreateDescSetLayout
	CreatePipeLayout
	CreateGraphicsPipe
	CreateComputePipe
	CreateSwapchain
	AllocDescSet
	UpdateDescSet

	AllocMem
	FlushMem

	BeginCmdBuffer
	EndCmdBuffer

	BeginRenderPass
	EndRenderPass
	BindPipeline
	BindDescriptorSet
	BindVertexBuffers
	BindIndexBuffer
	SetViewport
	SetScissor
	SetBlendConst
	SetDepthBounds
	SetLineWidth
	SetDepthBias
	SetStencilCompMask
	SetStencilWriteMask
	SetStencilRef

	Draw
	DrawIndexed
	Dispatch
	CopyBuffer
	CopyImage
	CopyImageToBuffer
	CopyBufferToImage
	UpdateBuffer
	PipelineBarrier

	QueueSubmit

	BeginEvent
	SetMarker
	EndEvent

	CaptureScope
	ContextCaptureHeader
	ContextCaptureFooter

	NumChunks
)

var chunkNames = [...]string{
	"WrappedVulkan::Initialisation",

	"vkCreateBuffer",
	"vkCreateImage",
	"vkCreateRenderPass",
	"vkCreateFramebuffer",
	"vkCreateShaderModule",
	"vkCreateDescriptorSetLayout",
	"vkCreatePipelineLayout",
	"vkCreateGraphicsPipelines",
	"vkCreateComputePipelines",
	"vkCreateSwapchainKHR",
	"vkAllocDescriptorSets",
	"vkUpdateDescriptorSets",

	"vkAllocMemory",
	"vkFlushMappedMemoryRanges",

	"vkBeginCommandBuffer",
	"vkEndCommandBuffer",

	"vkCmdBeginRenderPass",
	"vkCmdEndRenderPass",
	"vkCmdBindPipeline",
	"vkCmdBindDescriptorSet",
	"vkCmdBindVertexBuffers",
	"vkCmdBindIndexBuffer",
	"vkCmdSetViewport",
	"vkCmdSetScissor",
	"vkCmdSetBlendConstants",
	"vkCmdSetDepthBounds",
	"vkCmdSetLineWidth",
	"vkCmdSetDepthBias",
	"vkCmdSetStencilCompareMask",
	"vkCmdSetStencilWriteMask",
	"vkCmdSetStencilReference",

	"vkCmdDraw",
	"vkCmdDrawIndexed",
	"vkCmdDispatch",
	"vkCmdCopyBuffer",
	"vkCmdCopyImage",
	"vkCmdCopyImageToBuffer",
	"vkCmdCopyBufferToImage",
	"vkCmdUpdateBuffer",
	"vkCmdPipelineBarrier",

	"vkQueueSubmit",

	"vkCmdDbgMarkerBegin",
	"vkCmdDbgMarker",
	"vkCmdDbgMarkerEnd",

	"Capture",
	"BeginCapture",
	"EndCapture",
}

// ChunkName returns the name of a driver chunk kind, "InitialContents" for
// the initial-contents system kind, or "<unknown>" for any other kind
// outside the driver range.
func ChunkName(t serialise.Type) string {
	if t == serialise.InitialContents {
		return "InitialContents"
	}
	if t < serialise.FirstChunkID || t >= NumChunks {
		return "<unknown>"
	}
	return chunkNames[t-serialise.FirstChunkID]
}
