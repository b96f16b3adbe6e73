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

package driver

// Handles are opaque driver object identifiers. The zero value is the null
// handle for every handle type.
type (
	// Queue is a device queue handle.
	Queue uint64
	// CommandBuffer is a command buffer handle.
	CommandBuffer uint64
	// Buffer is a buffer object handle.
	Buffer uint64
	// Image is an image object handle.
	Image uint64
	// DeviceMemory is a memory allocation handle.
	DeviceMemory uint64
	// Pipeline is a graphics or compute pipeline handle.
	Pipeline uint64
	// PipelineLayout is a pipeline layout handle.
	PipelineLayout uint64
	// DescriptorSet is a descriptor set handle.
	DescriptorSet uint64
	// DescriptorSetLayout is a descriptor set layout handle.
	DescriptorSetLayout uint64
	// RenderPass is a render pass handle.
	RenderPass uint64
	// Framebuffer is a framebuffer handle.
	Framebuffer uint64
	// Swapchain is a swapchain handle.
	Swapchain uint64
	// ShaderModule is a shader module handle.
	ShaderModule uint64
)

// Format is an image or vertex data format.
type Format uint32

const (
	// FormatUndefined is the zero format.
	FormatUndefined Format = iota
	// FormatR8G8B8A8Unorm is 8-bit-per-channel RGBA.
	FormatR8G8B8A8Unorm
	// FormatB8G8R8A8Unorm is 8-bit-per-channel BGRA.
	FormatB8G8R8A8Unorm
	// FormatR10G10B10A2Unorm is packed 10:10:10:2 RGBA.
	FormatR10G10B10A2Unorm
	// FormatR16G16B16A16Float is half-float RGBA.
	FormatR16G16B16A16Float
	// FormatD32Float is 32-bit depth.
	FormatD32Float
)

// BytesPerPixel returns the texel stride of the format.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR10G10B10A2Unorm, FormatD32Float:
		return 4
	case FormatR16G16B16A16Float:
		return 8
	default:
		return 0
	}
}

// ImageLayout is the layout state of an image subresource.
type ImageLayout uint32

const (
	// LayoutUndefined is the initial layout of a newly created image.
	LayoutUndefined ImageLayout = iota
	// LayoutGeneral supports every access kind.
	LayoutGeneral
	// LayoutColorAttachment is optimal for color attachment writes.
	LayoutColorAttachment
	// LayoutDepthStencilAttachment is optimal for depth/stencil writes.
	LayoutDepthStencilAttachment
	// LayoutTransferSrc is optimal for transfer reads.
	LayoutTransferSrc
	// LayoutTransferDst is optimal for transfer writes.
	LayoutTransferDst
	// LayoutPresentSource is the layout required for presentation.
	LayoutPresentSource
)

// PipelineBindPoint selects the pipeline type a bind applies to.
type PipelineBindPoint uint32

const (
	// BindGraphics binds to the graphics pipeline.
	BindGraphics PipelineBindPoint = iota
	// BindCompute binds to the compute pipeline.
	BindCompute
)

// StencilFace selects the stencil state face a set applies to.
type StencilFace uint32

const (
	// StencilFront selects the front-facing stencil state.
	StencilFront StencilFace = iota
	// StencilBack selects the back-facing stencil state.
	StencilBack
)

// IndexType is the width of index buffer elements.
type IndexType uint32

const (
	// IndexUint16 is 16-bit indices.
	IndexUint16 IndexType = iota
	// IndexUint32 is 32-bit indices.
	IndexUint32
)

// Topology is the primitive topology of a graphics pipeline.
type Topology uint32

const (
	// TopologyUnknown is the zero topology.
	TopologyUnknown Topology = iota
	// TopologyPointList draws points.
	TopologyPointList
	// TopologyLineList draws line lists.
	TopologyLineList
	// TopologyTriangleList draws triangle lists.
	TopologyTriangleList
	// TopologyTriangleStrip draws triangle strips.
	TopologyTriangleStrip
	// TopologyPatchList draws tessellation patches.
	TopologyPatchList
)

// LoadOp is an attachment load operation.
type LoadOp uint32

const (
	// LoadOpLoad preserves the previous attachment contents.
	LoadOpLoad LoadOp = iota
	// LoadOpClear clears the attachment at render pass begin.
	LoadOpClear
	// LoadOpDontCare leaves the attachment contents undefined.
	LoadOpDontCare
)

// StoreOp is an attachment store operation.
type StoreOp uint32

const (
	// StoreOpStore writes the attachment contents out.
	StoreOpStore StoreOp = iota
	// StoreOpDontCare discards the attachment contents.
	StoreOpDontCare
)

// Extent2D is a two dimensional size.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Offset2D is a two dimensional offset.
type Offset2D struct {
	X int32
	Y int32
}

// Rect2D is an offset and extent pair.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport is a viewport transform.
type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// ClearValue is a clear color or depth/stencil value.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// SubresourceRange identifies a set of image subresources.
type SubresourceRange struct {
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// SubresourceLayout describes the memory layout of a linear image
// subresource.
type SubresourceLayout struct {
	Offset   uint64
	RowPitch uint64
}

// ImageMemoryBarrier transitions an image subresource range between layouts.
type ImageMemoryBarrier struct {
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     Image
	Range     SubresourceRange
}

// BufferCreateInfo describes a buffer object.
type BufferCreateInfo struct {
	Size uint64
}

// ImageCreateInfo describes an image object.
type ImageCreateInfo struct {
	Format       Format
	Extent       Extent2D
	MipLevels    uint32
	ArrayLayers  uint32
	LinearTiling bool
	Layout       ImageLayout
}

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Format        Format
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// RenderPassCreateInfo describes a render pass.
type RenderPassCreateInfo struct {
	Attachments []AttachmentDescription
}

// FramebufferCreateInfo describes a framebuffer.
type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []Image
	Extent      Extent2D
}

// RenderPassBeginInfo starts a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	RenderArea  Rect2D
	ClearValues []ClearValue
}

// DescriptorSetLayoutCreateInfo describes a descriptor set layout.
type DescriptorSetLayoutCreateInfo struct {
	BindingCount uint32
	// DynamicCount is the number of dynamic buffer bindings in the layout.
	DynamicCount uint32
}

// PipelineLayoutCreateInfo describes a pipeline layout.
type PipelineLayoutCreateInfo struct {
	SetLayouts []DescriptorSetLayout
}

// GraphicsPipelineCreateInfo describes a graphics pipeline.
type GraphicsPipelineCreateInfo struct {
	Layout             PipelineLayout
	RenderPass         RenderPass
	Topology           Topology
	PatchControlPoints uint32
	VertexShader       ShaderModule
	FragmentShader     ShaderModule
}

// ComputePipelineCreateInfo describes a compute pipeline.
type ComputePipelineCreateInfo struct {
	Layout        PipelineLayout
	ComputeShader ShaderModule
}

// SwapchainCreateInfo describes a swapchain.
type SwapchainCreateInfo struct {
	Format     Format
	Extent     Extent2D
	ImageCount uint32
	Window     uintptr
}

// DescriptorWrite updates one binding of a descriptor set.
type DescriptorWrite struct {
	Binding uint32
	Buffer  Buffer
	Image   Image
}

// BufferCopy is one buffer-to-buffer copy region.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// ImageCopy is one image-to-image copy region.
type ImageCopy struct {
	SrcOffset Offset2D
	DstOffset Offset2D
	Extent    Extent2D
}

// BufferImageCopy is one image-to-buffer or buffer-to-image copy region.
type BufferImageCopy struct {
	BufferOffset uint64
	ImageOffset  Offset2D
	ImageExtent  Extent2D
}
