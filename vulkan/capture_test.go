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
	"path/filepath"
	"testing"

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/core/assert"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/driver/fake"
	"github.com/deM-on/renderdoc/serialise"
)

const testWindow = uintptr(0xb00)

// triangleCapture drives a one-triangle frame through the capture side and
// returns the written log path.
func triangleCapture(ctx context.Context, t *testing.T, callstacks bool) string {
	t.Helper()

	dir := t.TempDir()
	config.Set(config.Options{
		CaptureCallstacks: callstacks,
		LogPath:           filepath.Join(dir, "frame%d.rdc"),
		ThumbnailQuality:  40,
	})

	d := fake.New()
	w := NewCapture(d, fake.Queue)
	w.SetInitParams(serialise.InitParams{
		AppName:    "triangle",
		EngineName: "handmade",
		AppVersion: 1, EngineVersion: 1, APIVersion: 1,
		Layers:     []string{"capture"},
		Extensions: []string{"swapchain"},
	})

	sc, err := w.CreateSwapchain(ctx, driver.SwapchainCreateInfo{
		Format:     driver.FormatB8G8R8A8Unorm,
		Extent:     driver.Extent2D{Width: 64, Height: 64},
		ImageCount: 2,
		Window:     testWindow,
	})
	assert.For(t, "swapchain").ThatError(err).Succeeded()
	backbuffers, err := d.GetSwapchainImages(sc)
	assert.For(t, "swapchain images").ThatError(err).Succeeded()

	rp, err := w.CreateRenderPass(ctx, driver.RenderPassCreateInfo{
		Attachments: []driver.AttachmentDescription{{
			Format:        driver.FormatB8G8R8A8Unorm,
			LoadOp:        driver.LoadOpClear,
			StoreOp:       driver.StoreOpStore,
			InitialLayout: driver.LayoutPresentSource,
			FinalLayout:   driver.LayoutPresentSource,
		}},
	})
	assert.For(t, "renderpass").ThatError(err).Succeeded()

	fb, err := w.CreateFramebuffer(ctx, driver.FramebufferCreateInfo{
		RenderPass:  rp,
		Attachments: []driver.Image{backbuffers[0]},
		Extent:      driver.Extent2D{Width: 64, Height: 64},
	})
	assert.For(t, "framebuffer").ThatError(err).Succeeded()

	vs, err := w.CreateShaderModule(ctx, []byte{1, 2, 3, 4})
	assert.For(t, "vertex shader").ThatError(err).Succeeded()
	fs, err := w.CreateShaderModule(ctx, []byte{5, 6, 7, 8})
	assert.For(t, "fragment shader").ThatError(err).Succeeded()

	dsl, err := w.CreateDescriptorSetLayout(ctx, driver.DescriptorSetLayoutCreateInfo{BindingCount: 1})
	assert.For(t, "descriptor set layout").ThatError(err).Succeeded()
	pl, err := w.CreatePipelineLayout(ctx, driver.PipelineLayoutCreateInfo{
		SetLayouts: []driver.DescriptorSetLayout{dsl},
	})
	assert.For(t, "pipeline layout").ThatError(err).Succeeded()

	pipe, err := w.CreateGraphicsPipeline(ctx, driver.GraphicsPipelineCreateInfo{
		Layout:         pl,
		RenderPass:     rp,
		Topology:       driver.TopologyTriangleList,
		VertexShader:   vs,
		FragmentShader: fs,
	})
	assert.For(t, "pipeline").ThatError(err).Succeeded()

	vb, err := w.CreateBuffer(ctx, driver.BufferCreateInfo{Size: 9 * 4})
	assert.For(t, "vertex buffer").ThatError(err).Succeeded()

	set, err := w.AllocDescriptorSet(ctx, dsl)
	assert.For(t, "descriptor set").ThatError(err).Succeeded()
	assert.For(t, "descriptor update").ThatError(
		w.UpdateDescriptorSets(ctx, set, []driver.DescriptorWrite{{Binding: 0, Buffer: vb}})).Succeeded()

	cb, err := w.AllocateCommandBuffer(ctx)
	assert.For(t, "command buffer").ThatError(err).Succeeded()

	assert.For(t, "start").ThatError(w.StartFrameCapture(ctx)).Succeeded()

	assert.For(t, "begin cmd").ThatError(w.BeginCommandBuffer(ctx, cb)).Succeeded()
	w.CmdBeginRenderPass(ctx, cb, driver.RenderPassBeginInfo{
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea:  driver.Rect2D{Extent: driver.Extent2D{Width: 64, Height: 64}},
		ClearValues: []driver.ClearValue{{Color: [4]float32{0, 0, 0, 1}}},
	})
	w.CmdBindPipeline(ctx, cb, driver.BindGraphics, pipe)
	w.CmdBindDescriptorSets(ctx, cb, driver.BindGraphics, pl, 0, []driver.DescriptorSet{set}, nil)
	w.CmdBindVertexBuffers(ctx, cb, 0, []driver.Buffer{vb}, []uint64{0})
	w.CmdDraw(ctx, cb, 3, 1, 0, 0)
	w.CmdEndRenderPass(ctx, cb)
	assert.For(t, "end cmd").ThatError(w.EndCommandBuffer(ctx, cb)).Succeeded()

	assert.For(t, "submit").ThatError(w.QueueSubmit(ctx, []driver.CommandBuffer{cb})).Succeeded()

	path, err := w.EndFrameCapture(ctx, testWindow)
	assert.For(t, "end capture").ThatError(err).Succeeded()
	assert.For(t, "idle again").That(w.CaptureState()).Equals(WritingIdle)
	return path
}

// chunkKinds lists the top-level chunk kinds of a log stream in order.
func chunkKinds(t *testing.T, path string) []serialise.Type {
	t.Helper()
	_, _, r, err := serialise.Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()
	kinds := []serialise.Type{}
	for !r.AtEnd() {
		kind := r.PushContext(serialise.NilType)
		r.SkipCurrentChunk()
		r.PopContext(kind)
		kinds = append(kinds, kind)
	}
	assert.For(t, "scan").ThatError(r.Error()).Succeeded()
	return kinds
}

func TestCaptureChunkStream(t *testing.T) {
	ctx := log.Testing(t)
	path := triangleCapture(ctx, t, false)

	kinds := chunkKinds(t, path)

	// the creation section leads, in recording order
	assert.For(t, "first chunk").That(kinds[0]).Equals(DeviceInit)
	for _, want := range []serialise.Type{
		CreateSwapchain, CreateRenderPass, CreateShaderModule,
		CreateDescSetLayout, CreatePipeLayout, CreateGraphicsPipe, CreateBuffer,
	} {
		found := false
		for _, k := range kinds {
			if k == want {
				found = true
				break
			}
		}
		assert.For(t, "creation chunk %s", ChunkName(want)).That(found).IsTrue()
	}

	// from the capture scope on, order is exact
	scopeAt := -1
	for i, k := range kinds {
		if k == CaptureScope {
			scopeAt = i
			break
		}
	}
	assert.For(t, "capture scope present").That(scopeAt >= 0).IsTrue()
	want := []serialise.Type{
		CaptureScope, ContextCaptureHeader,
		BeginCmdBuffer, BeginRenderPass, BindPipeline, BindDescriptorSet,
		BindVertexBuffers, Draw, EndRenderPass, EndCmdBuffer,
		QueueSubmit, ContextCaptureFooter,
	}
	got := kinds[scopeAt:]
	assert.For(t, "frame chunk count").That(len(got)).Equals(len(want))
	for i := range want {
		assert.For(t, "frame chunk %d", i).That(got[i]).Equals(want[i])
	}

	// nothing frame-scoped leaks before the capture scope
	for i, k := range kinds[:scopeAt] {
		assert.For(t, "chunk %d in creation section", i).That(k < BeginCmdBuffer).IsTrue()
	}
}

func TestCaptureThumbnailWritten(t *testing.T) {
	ctx := log.Testing(t)
	path := triangleCapture(ctx, t, false)

	params, thumbnail, _, err := serialise.Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()
	assert.For(t, "app name").That(params.AppName).Equals("triangle")
	assert.For(t, "thumbnail present").ThatSlice(thumbnail).IsNotEmpty()
	// JPEG SOI marker
	assert.For(t, "jpeg magic").That(thumbnail[0]).Equals(byte(0xff))
	assert.For(t, "jpeg magic 2").That(thumbnail[1]).Equals(byte(0xd8))
}

func TestEndCaptureWhileIdle(t *testing.T) {
	ctx := log.Testing(t)
	w := NewCapture(fake.New(), fake.Queue)
	_, err := w.EndFrameCapture(ctx, 0)
	assert.For(t, "invalid state").ThatError(err).Equals(ErrInvalidState)
}

func TestStartCaptureTwice(t *testing.T) {
	ctx := log.Testing(t)
	config.Set(config.Options{LogPath: filepath.Join(t.TempDir(), "f%d.rdc")})
	w := NewCapture(fake.New(), fake.Queue)
	w.SetInitParams(serialise.InitParams{AppName: "app"})
	assert.For(t, "first start").ThatError(w.StartFrameCapture(ctx)).Succeeded()
	assert.For(t, "second start").ThatError(w.StartFrameCapture(ctx)).Equals(ErrInvalidState)
}

func TestCaptureCallstacks(t *testing.T) {
	ctx := log.Testing(t)
	path := triangleCapture(ctx, t, true)

	_, _, ser, err := serialise.Open(path)
	assert.For(t, "open").ThatError(err).Succeeded()
	r := NewReplay(fake.New(), fake.Queue, nil, ser)
	assert.For(t, "read").ThatError(r.ReadLogInitialisation(ctx)).Succeeded()

	events := r.Events()
	assert.For(t, "events").ThatSlice(events).IsNotEmpty()
	for _, ev := range events {
		assert.For(t, "callstack for event %d", ev.EventID).ThatSlice(ev.Callstack).IsNotEmpty()
	}
}
