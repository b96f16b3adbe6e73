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

// Package fake implements driver.Driver in memory.
//
// Every recorded command is journalled as a formatted string on its command
// buffer and copies execute immediately at record time, so tests can assert
// on the exact command stream a capture or replay produced. Nothing ever
// blocks.
package fake

import (
	"fmt"
	"sync"

	"github.com/deM-on/renderdoc/core/fault"
	"github.com/deM-on/renderdoc/driver"
)

// ErrUnknownHandle is returned when an operation names a handle the driver
// never created.
const ErrUnknownHandle = fault.Const("Unknown driver handle")

type image struct {
	info     driver.ImageCreateInfo
	data     []byte
	rowPitch uint64
}

type buffer struct {
	size uint64
	data []byte
}

type memory struct {
	data   []byte
	mapped bool
}

type cmdBuffer struct {
	recording bool
	commands  []string
}

type swapchain struct {
	info   driver.SwapchainCreateInfo
	images []driver.Image
}

// Driver is an in-memory driver.Driver.
type Driver struct {
	mu   sync.Mutex
	next uint64

	images      map[driver.Image]*image
	buffers     map[driver.Buffer]*buffer
	memories    map[driver.DeviceMemory]*memory
	cmdBuffers  map[driver.CommandBuffer]*cmdBuffer
	swapchains  map[driver.Swapchain]*swapchain
	descLayouts map[driver.DescriptorSetLayout]driver.DescriptorSetLayoutCreateInfo
	renderPass  map[driver.RenderPass]driver.RenderPassCreateInfo

	submits [][]driver.CommandBuffer

	failNext error
}

// New returns an empty fake driver.
func New() *Driver {
	return &Driver{
		next:        1,
		images:      map[driver.Image]*image{},
		buffers:     map[driver.Buffer]*buffer{},
		memories:    map[driver.DeviceMemory]*memory{},
		cmdBuffers:  map[driver.CommandBuffer]*cmdBuffer{},
		swapchains:  map[driver.Swapchain]*swapchain{},
		descLayouts: map[driver.DescriptorSetLayout]driver.DescriptorSetLayoutCreateInfo{},
		renderPass:  map[driver.RenderPass]driver.RenderPassCreateInfo{},
	}
}

// Queue is the single device queue exposed by the fake driver.
const Queue = driver.Queue(1)

// FailNext makes the next object creation return err.
func (d *Driver) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

func (d *Driver) handle() uint64 {
	h := d.next
	d.next++
	return h
}

func (d *Driver) creationErr() error {
	err := d.failNext
	d.failNext = nil
	return err
}

// Commands returns the journalled command stream of cb.
func (d *Driver) Commands(cb driver.CommandBuffer) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.cmdBuffers[cb]
	if !ok {
		return nil
	}
	out := make([]string, len(b.commands))
	copy(out, b.commands)
	return out
}

// Submits returns every queue submission in order.
func (d *Driver) Submits() [][]driver.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]driver.CommandBuffer, len(d.submits))
	for i, s := range d.submits {
		out[i] = append([]driver.CommandBuffer{}, s...)
	}
	return out
}

// SubmittedCommands returns the concatenated command streams of every
// submitted command buffer, in submission order.
func (d *Driver) SubmittedCommands() []string {
	out := []string{}
	for _, s := range d.Submits() {
		for _, cb := range s {
			out = append(out, d.Commands(cb)...)
		}
	}
	return out
}

// SetImagePixels replaces the backing store of img.
func (d *Driver) SetImagePixels(img driver.Image, pixels []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if im, ok := d.images[img]; ok {
		copy(im.data, pixels)
	}
}

// ImagePixels returns a copy of the backing store of img.
func (d *Driver) ImagePixels(img driver.Image) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if im, ok := d.images[img]; ok {
		return append([]byte{}, im.data...)
	}
	return nil
}

func (d *Driver) record(cb driver.CommandBuffer, f string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.cmdBuffers[cb]; ok {
		b.commands = append(b.commands, fmt.Sprintf(f, args...))
	}
}

// CreateBuffer implements driver.Driver.
func (d *Driver) CreateBuffer(info driver.BufferCreateInfo) (driver.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.Buffer(d.handle())
	d.buffers[h] = &buffer{size: info.Size, data: make([]byte, info.Size)}
	return h, nil
}

// CreateImage implements driver.Driver.
func (d *Driver) CreateImage(info driver.ImageCreateInfo) (driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.Image(d.handle())
	pitch := uint64(info.Extent.Width * info.Format.BytesPerPixel())
	d.images[h] = &image{
		info:     info,
		data:     make([]byte, pitch*uint64(info.Extent.Height)),
		rowPitch: pitch,
	}
	return h, nil
}

// CreateRenderPass implements driver.Driver.
func (d *Driver) CreateRenderPass(info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.RenderPass(d.handle())
	d.renderPass[h] = info
	return h, nil
}

// CreateFramebuffer implements driver.Driver.
func (d *Driver) CreateFramebuffer(info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.Framebuffer(d.handle()), nil
}

// CreateShaderModule implements driver.Driver.
func (d *Driver) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.ShaderModule(d.handle()), nil
}

// CreateDescriptorSetLayout implements driver.Driver.
func (d *Driver) CreateDescriptorSetLayout(info driver.DescriptorSetLayoutCreateInfo) (driver.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.DescriptorSetLayout(d.handle())
	d.descLayouts[h] = info
	return h, nil
}

// CreatePipelineLayout implements driver.Driver.
func (d *Driver) CreatePipelineLayout(info driver.PipelineLayoutCreateInfo) (driver.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.PipelineLayout(d.handle()), nil
}

// CreateGraphicsPipeline implements driver.Driver.
func (d *Driver) CreateGraphicsPipeline(info driver.GraphicsPipelineCreateInfo) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.Pipeline(d.handle()), nil
}

// CreateComputePipeline implements driver.Driver.
func (d *Driver) CreateComputePipeline(info driver.ComputePipelineCreateInfo) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.Pipeline(d.handle()), nil
}

// CreateSwapchain implements driver.Driver.
func (d *Driver) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	d.mu.Lock()
	if err := d.creationErr(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	h := driver.Swapchain(d.handle())
	d.swapchains[h] = &swapchain{info: info}
	d.mu.Unlock()

	imgs := make([]driver.Image, info.ImageCount)
	for i := range imgs {
		img, err := d.CreateImage(driver.ImageCreateInfo{
			Format: info.Format,
			Extent: info.Extent,
			Layout: driver.LayoutPresentSource,
		})
		if err != nil {
			return 0, err
		}
		imgs[i] = img
	}
	d.mu.Lock()
	d.swapchains[h].images = imgs
	d.mu.Unlock()
	return h, nil
}

// GetSwapchainImages implements driver.Driver.
func (d *Driver) GetSwapchainImages(sc driver.Swapchain) ([]driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return append([]driver.Image{}, s.images...), nil
}

// AllocDescriptorSet implements driver.Driver.
func (d *Driver) AllocDescriptorSet(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	return driver.DescriptorSet(d.handle()), nil
}

// UpdateDescriptorSet implements driver.Driver.
func (d *Driver) UpdateDescriptorSet(set driver.DescriptorSet, writes []driver.DescriptorWrite) error {
	return nil
}

// DestroyBuffer implements driver.Driver.
func (d *Driver) DestroyBuffer(b driver.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, b)
}

// DestroyImage implements driver.Driver.
func (d *Driver) DestroyImage(im driver.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, im)
}

// AllocMemory implements driver.Driver.
func (d *Driver) AllocMemory(size uint64, hostVisible bool) (driver.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.DeviceMemory(d.handle())
	d.memories[h] = &memory{data: make([]byte, size)}
	return h, nil
}

// FreeMemory implements driver.Driver.
func (d *Driver) FreeMemory(m driver.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memories, m)
}

// BindBufferMemory implements driver.Driver. The buffer adopts the memory's
// backing store.
func (d *Driver) BindBufferMemory(b driver.Buffer, m driver.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	mem, mok := d.memories[m]
	if !ok || !mok {
		return ErrUnknownHandle
	}
	buf.data = mem.data[offset : offset+buf.size]
	return nil
}

// BindImageMemory implements driver.Driver. The memory adopts the image's
// backing store so mapping it observes image writes.
func (d *Driver) BindImageMemory(im driver.Image, m driver.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[im]
	mem, mok := d.memories[m]
	if !ok || !mok {
		return ErrUnknownHandle
	}
	mem.data = img.data
	return nil
}

// MapMemory implements driver.Driver.
func (d *Driver) MapMemory(m driver.DeviceMemory) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.memories[m]
	if !ok {
		return nil, ErrUnknownHandle
	}
	mem.mapped = true
	return mem.data, nil
}

// UnmapMemory implements driver.Driver.
func (d *Driver) UnmapMemory(m driver.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mem, ok := d.memories[m]; ok {
		mem.mapped = false
	}
}

// GetImageSubresourceLayout implements driver.Driver.
func (d *Driver) GetImageSubresourceLayout(im driver.Image) driver.SubresourceLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[im]; ok {
		return driver.SubresourceLayout{Offset: 0, RowPitch: img.rowPitch}
	}
	return driver.SubresourceLayout{}
}

// CreateCommandBuffer implements driver.Driver.
func (d *Driver) CreateCommandBuffer() (driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.creationErr(); err != nil {
		return 0, err
	}
	h := driver.CommandBuffer(d.handle())
	d.cmdBuffers[h] = &cmdBuffer{}
	return h, nil
}

// DestroyCommandBuffer implements driver.Driver.
func (d *Driver) DestroyCommandBuffer(cb driver.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cmdBuffers, cb)
}

// ResetCommandBuffer implements driver.Driver.
func (d *Driver) ResetCommandBuffer(cb driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.cmdBuffers[cb]
	if !ok {
		return ErrUnknownHandle
	}
	b.commands = nil
	b.recording = false
	return nil
}

// BeginCommandBuffer implements driver.Driver.
func (d *Driver) BeginCommandBuffer(cb driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.cmdBuffers[cb]
	if !ok {
		return ErrUnknownHandle
	}
	b.recording = true
	b.commands = nil
	return nil
}

// EndCommandBuffer implements driver.Driver.
func (d *Driver) EndCommandBuffer(cb driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.cmdBuffers[cb]
	if !ok {
		return ErrUnknownHandle
	}
	b.recording = false
	return nil
}

// CmdBeginRenderPass implements driver.Driver.
func (d *Driver) CmdBeginRenderPass(cb driver.CommandBuffer, info driver.RenderPassBeginInfo) {
	d.record(cb, "BeginRenderPass(rp: %d, fb: %d)", info.RenderPass, info.Framebuffer)
}

// CmdEndRenderPass implements driver.Driver.
func (d *Driver) CmdEndRenderPass(cb driver.CommandBuffer) {
	d.record(cb, "EndRenderPass()")
}

// CmdBindPipeline implements driver.Driver.
func (d *Driver) CmdBindPipeline(cb driver.CommandBuffer, bp driver.PipelineBindPoint, p driver.Pipeline) {
	d.record(cb, "BindPipeline(%d, %d)", bp, p)
}

// CmdBindDescriptorSets implements driver.Driver.
func (d *Driver) CmdBindDescriptorSets(cb driver.CommandBuffer, bp driver.PipelineBindPoint, layout driver.PipelineLayout, first uint32, sets []driver.DescriptorSet, dynamicOffsets []uint32) {
	d.record(cb, "BindDescriptorSets(%d, %d, %v, %v)", bp, first, sets, dynamicOffsets)
}

// CmdBindVertexBuffers implements driver.Driver.
func (d *Driver) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	d.record(cb, "BindVertexBuffers(%d, %v, %v)", first, buffers, offsets)
}

// CmdBindIndexBuffer implements driver.Driver.
func (d *Driver) CmdBindIndexBuffer(cb driver.CommandBuffer, b driver.Buffer, offset uint64, ty driver.IndexType) {
	d.record(cb, "BindIndexBuffer(%d, %d, %d)", b, offset, ty)
}

// CmdSetViewport implements driver.Driver.
func (d *Driver) CmdSetViewport(cb driver.CommandBuffer, vps []driver.Viewport) {
	d.record(cb, "SetViewport(%v)", vps)
}

// CmdSetScissor implements driver.Driver.
func (d *Driver) CmdSetScissor(cb driver.CommandBuffer, rects []driver.Rect2D) {
	d.record(cb, "SetScissor(%v)", rects)
}

// CmdSetBlendConstants implements driver.Driver.
func (d *Driver) CmdSetBlendConstants(cb driver.CommandBuffer, consts [4]float32) {
	d.record(cb, "SetBlendConstants(%v)", consts)
}

// CmdSetDepthBounds implements driver.Driver.
func (d *Driver) CmdSetDepthBounds(cb driver.CommandBuffer, min, max float32) {
	d.record(cb, "SetDepthBounds(%v, %v)", min, max)
}

// CmdSetLineWidth implements driver.Driver.
func (d *Driver) CmdSetLineWidth(cb driver.CommandBuffer, w float32) {
	d.record(cb, "SetLineWidth(%v)", w)
}

// CmdSetDepthBias implements driver.Driver.
func (d *Driver) CmdSetDepthBias(cb driver.CommandBuffer, depth, clamp, slope float32) {
	d.record(cb, "SetDepthBias(%v, %v, %v)", depth, clamp, slope)
}

// CmdSetStencilCompareMask implements driver.Driver.
func (d *Driver) CmdSetStencilCompareMask(cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	d.record(cb, "SetStencilCompareMask(%d, %d)", face, v)
}

// CmdSetStencilWriteMask implements driver.Driver.
func (d *Driver) CmdSetStencilWriteMask(cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	d.record(cb, "SetStencilWriteMask(%d, %d)", face, v)
}

// CmdSetStencilReference implements driver.Driver.
func (d *Driver) CmdSetStencilReference(cb driver.CommandBuffer, face driver.StencilFace, v uint32) {
	d.record(cb, "SetStencilReference(%d, %d)", face, v)
}

// CmdDraw implements driver.Driver.
func (d *Driver) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cb, "Draw(%d, %d, %d, %d)", vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdDrawIndexed implements driver.Driver.
func (d *Driver) CmdDrawIndexed(cb driver.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cb, "DrawIndexed(%d, %d, %d, %d, %d)", indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// CmdDispatch implements driver.Driver.
func (d *Driver) CmdDispatch(cb driver.CommandBuffer, x, y, z uint32) {
	d.record(cb, "Dispatch(%d, %d, %d)", x, y, z)
}

// CmdCopyBuffer implements driver.Driver. The copy executes immediately.
func (d *Driver) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	d.record(cb, "CopyBuffer(%d, %d)", src, dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.buffers[src]
	t, tok := d.buffers[dst]
	if !sok || !tok {
		return
	}
	for _, r := range regions {
		copy(t.data[r.DstOffset:r.DstOffset+r.Size], s.data[r.SrcOffset:r.SrcOffset+r.Size])
	}
}

// CmdCopyImage implements driver.Driver. The copy executes immediately and
// transfers the whole backing store.
func (d *Driver) CmdCopyImage(cb driver.CommandBuffer, src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, regions []driver.ImageCopy) {
	d.record(cb, "CopyImage(%d, %d)", src, dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.images[src]
	t, tok := d.images[dst]
	if sok && tok {
		copy(t.data, s.data)
	}
}

// CmdCopyImageToBuffer implements driver.Driver. The copy executes
// immediately and transfers the whole backing store.
func (d *Driver) CmdCopyImageToBuffer(cb driver.CommandBuffer, src driver.Image, srcLayout driver.ImageLayout, dst driver.Buffer, regions []driver.BufferImageCopy) {
	d.record(cb, "CopyImageToBuffer(%d, %d)", src, dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.images[src]
	t, tok := d.buffers[dst]
	if sok && tok {
		copy(t.data, s.data)
	}
}

// CmdCopyBufferToImage implements driver.Driver. The copy executes
// immediately and transfers the whole backing store.
func (d *Driver) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, dstLayout driver.ImageLayout, regions []driver.BufferImageCopy) {
	d.record(cb, "CopyBufferToImage(%d, %d)", src, dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.buffers[src]
	t, tok := d.images[dst]
	if sok && tok {
		copy(t.data, s.data)
	}
}

// CmdUpdateBuffer implements driver.Driver. The write executes immediately.
func (d *Driver) CmdUpdateBuffer(cb driver.CommandBuffer, dst driver.Buffer, offset uint64, data []byte) {
	d.record(cb, "UpdateBuffer(%d, %d, %d bytes)", dst, offset, len(data))
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.buffers[dst]; ok {
		copy(t.data[offset:], data)
	}
}

// CmdPipelineBarrier implements driver.Driver.
func (d *Driver) CmdPipelineBarrier(cb driver.CommandBuffer, barriers []driver.ImageMemoryBarrier) {
	d.record(cb, "PipelineBarrier(%d barriers)", len(barriers))
}

// CmdDbgMarkerBegin implements driver.Driver.
func (d *Driver) CmdDbgMarkerBegin(cb driver.CommandBuffer, name string) {
	d.record(cb, "DbgMarkerBegin(%s)", name)
}

// CmdDbgMarkerEnd implements driver.Driver.
func (d *Driver) CmdDbgMarkerEnd(cb driver.CommandBuffer) {
	d.record(cb, "DbgMarkerEnd()")
}

// QueueSubmit implements driver.Driver.
func (d *Driver) QueueSubmit(q driver.Queue, cbs []driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submits = append(d.submits, append([]driver.CommandBuffer{}, cbs...))
	return nil
}

// QueueWaitIdle implements driver.Driver.
func (d *Driver) QueueWaitIdle(q driver.Queue) error { return nil }

// DeviceWaitIdle implements driver.Driver.
func (d *Driver) DeviceWaitIdle() error { return nil }

// QueuePresent implements driver.Driver.
func (d *Driver) QueuePresent(q driver.Queue, sc driver.Swapchain) error { return nil }
