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

// Package vulkan implements the capture-and-replay core for a Vulkan-like
// explicit GPU API: the frame capture state machine, the per-thread
// recording pools, the replay engine with partial command-buffer replay,
// and the event and drawcall index.
package vulkan

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/deM-on/renderdoc/core/fault"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// ErrInvalidState is returned for operations that do not apply to the
// current capture state, for example ending a capture while idle.
const ErrInvalidState = fault.Const("Invalid capture state")

// State is the capture/replay state machine.
type State int

const (
	// Reading is the replay state while scanning a log without executing.
	Reading State = iota
	// Executing is the replay state while re-executing log chunks.
	Executing
	// WritingIdle is the capture state between frame captures.
	WritingIdle
	// WritingCapFrame is the capture state while a frame capture is active.
	WritingCapFrame
)

// IsWriting returns true for the capture-side states.
func (s State) IsWriting() bool { return s == WritingIdle || s == WritingCapFrame }

// ReplayMode selects what ReplayLog executes.
type ReplayMode int

const (
	// ReplayFull re-executes every event in the range.
	ReplayFull ReplayMode = iota
	// ReplayWithoutDraw re-executes everything up to but excluding the last
	// event.
	ReplayWithoutDraw
	// ReplayOnlyDraw re-executes just the last event inside a freshly built
	// command buffer carrying the reconstructed state vector.
	ReplayOnlyDraw
)

type boundDescSet struct {
	set     resource.ID
	offsets []uint32
}

type stencilState struct {
	ref     uint32
	compare uint32
	write   uint32
}

type boundVertexBuffer struct {
	buf  resource.ID
	offs uint64
}

// stateVector is the pipeline/descriptor/dynamic state tracked while
// walking a frame, used to reconstruct the state at a partial replay
// boundary.
type stateVector struct {
	graphicsPipeline resource.ID
	computePipeline  resource.ID

	graphicsDescSets []boundDescSet
	computeDescSets  []boundDescSet

	viewports  []driver.Viewport
	scissors   []driver.Rect2D
	blendConst [4]float32
	minDepth   float32
	maxDepth   float32
	lineWidth  float32

	biasDepth float32
	biasClamp float32
	biasSlope float32

	front stencilState
	back  stencilState

	ibuffer struct {
		buf       resource.ID
		offs      uint64
		bytewidth uint32
	}
	vbuffers []boundVertexBuffer

	renderPass  resource.ID
	framebuffer resource.ID
	renderArea  driver.Rect2D
}

type partialReplayData struct {
	renderPassActive       bool
	resultPartialCmdBuffer driver.CommandBuffer
	singleDrawCmdBuffer    driver.CommandBuffer
	partialParent          resource.ID
	baseEvent              uint32
	state                  stateVector
}

type renderPassInfo struct {
	handle      driver.RenderPass
	loadRP      driver.RenderPass
	attachments []driver.AttachmentDescription
}

type pipelineInfo struct {
	handle             driver.Pipeline
	layout             resource.ID
	renderPass         resource.ID
	vertexShader       resource.ID
	fragmentShader     resource.ID
	computeShader      resource.ID
	topology           driver.Topology
	patchControlPoints uint32
}

type pipelineLayoutInfo struct {
	handle     driver.PipelineLayout
	setLayouts []resource.ID
}

type descSetLayoutInfo struct {
	handle       driver.DescriptorSetLayout
	dynamicCount uint32
}

// creationInfo caches the creation parameters replay needs when rebuilding
// state, keyed by recorded identifier.
type creationInfo struct {
	renderPasses    map[resource.ID]*renderPassInfo
	pipelines       map[resource.ID]*pipelineInfo
	pipelineLayouts map[resource.ID]*pipelineLayoutInfo
	descSetLayouts  map[resource.ID]*descSetLayoutInfo
}

// Wrapped is the central capture/replay object: it owns the main
// serialiser, the resource manager, the frame capture state machine and the
// replay engine.
type Wrapped struct {
	device driver.Driver
	queue  driver.Queue

	rm       *resource.Manager
	registry *serialise.Registry
	ser      *serialise.Serialiser

	state        State
	frameCounter uint32

	appControlledCapture bool

	initParams serialise.InitParams
	instanceID resource.ID

	// Capture-side records.
	frameCaptureRecord *resource.Record
	cmdBufferRecords   []*resource.Record
	headerChunk        *serialise.Chunk

	// Per-thread recording pools.
	threadSerialisersLock sync.Mutex
	threadSerialisers     map[int64]*serialise.Serialiser
	threadTempMemLock     sync.Mutex
	threadTempMem         map[int64]*[]byte

	// Shared-resource locks. The capture-transition lock is always
	// outermost.
	capTransitionLock sync.Mutex
	imageLayoutsLock  sync.Mutex
	coherentMapsLock  sync.Mutex
	swapLookupLock    sync.Mutex

	imageLayouts map[resource.ID][]resource.ImageRegionState
	coherentMaps []*resource.Record
	swapLookup   map[uintptr]driver.Swapchain

	// fbAttachments maps a framebuffer to its attachment images, used to
	// mark render targets referenced when a render pass begins.
	fbAttachments map[resource.ID][]resource.ID

	internalCmds internalCmds

	// Replay bookkeeping.
	frameRecords    []*frame.Record
	events          frame.Events
	rootEvents      []frame.APIEvent
	rootEventID     uint32
	rootDrawcallID  uint32
	firstEventID    uint32
	lastEventID     uint32
	curChunkOffset  uint64
	addedDrawcall   bool
	replayPartial   bool
	lastCmdBufferID resource.ID
	bakedCmdBuffers map[resource.ID]*frame.BakedCmdBufferInfo
	replayCmdBufs   map[resource.ID]driver.CommandBuffer
	parentDrawcall  frame.TreeNode
	drawcallStack   []*frame.TreeNode
	partial         partialReplayData
	creation        creationInfo
	inFrame         bool
	inFrameWalk     bool
}

// shouldExecute reports whether a state-mutating non-command chunk should
// act on the driver: always while executing, and during the initial log
// scan, but not while walking a frame to build the event index.
func (w *Wrapped) shouldExecute() bool {
	return w.state == Executing || (w.state == Reading && !w.inFrameWalk)
}

// NewCapture returns a Wrapped in WritingIdle, ready to record.
func NewCapture(d driver.Driver, q driver.Queue) *Wrapped {
	w := newWrapped(d, q)
	w.state = WritingIdle
	w.ser = serialise.NewWriter()

	w.frameCaptureRecord = w.rm.AddRecord(resource.NewID())
	w.frameCaptureRecord.SpecialResource = true

	return w
}

// NewReplay returns a Wrapped in Reading over the supplied log stream.
// Identifier generation moves to the replay range so replay-created
// resources never collide with recorded ones.
func NewReplay(d driver.Driver, q driver.Queue, params *serialise.InitParams, ser *serialise.Serialiser) *Wrapped {
	w := newWrapped(d, q)
	w.state = Reading
	w.ser = ser
	if params != nil {
		w.initParams = *params
		w.instanceID = resource.ID(params.InstanceID)
	}
	ser.SetChunkNames(ChunkName)
	resource.SetReplayIDs()
	return w
}

func newWrapped(d driver.Driver, q driver.Queue) *Wrapped {
	w := &Wrapped{
		device:            d,
		queue:             q,
		registry:          serialise.NewRegistry(),
		threadSerialisers: map[int64]*serialise.Serialiser{},
		threadTempMem:     map[int64]*[]byte{},
		imageLayouts:      map[resource.ID][]resource.ImageRegionState{},
		swapLookup:        map[uintptr]driver.Swapchain{},
		fbAttachments:     map[resource.ID][]resource.ID{},
		bakedCmdBuffers:   map[resource.ID]*frame.BakedCmdBufferInfo{},
		replayCmdBufs:     map[resource.ID]driver.CommandBuffer{},
		rootEventID:       1,
		rootDrawcallID:    1,
		lastEventID:       ^uint32(0),
		creation: creationInfo{
			renderPasses:    map[resource.ID]*renderPassInfo{},
			pipelines:       map[resource.ID]*pipelineInfo{},
			pipelineLayouts: map[resource.ID]*pipelineLayoutInfo{},
			descSetLayouts:  map[resource.ID]*descSetLayoutInfo{},
		},
	}
	w.rm = resource.NewManager(w)
	w.drawcallStack = []*frame.TreeNode{&w.parentDrawcall}
	w.registerHandlers()
	return w
}

// Shutdown tears the core down, tolerating handles the application leaked.
func (w *Wrapped) Shutdown(ctx context.Context) {
	if w.frameCaptureRecord != nil {
		w.frameCaptureRecord.Delete(w.rm)
		w.frameCaptureRecord = nil
	}
	w.rm.ClearWithoutReleasing(ctx)

	w.threadSerialisersLock.Lock()
	w.threadSerialisers = map[int64]*serialise.Serialiser{}
	w.threadSerialisersLock.Unlock()

	w.threadTempMemLock.Lock()
	w.threadTempMem = map[int64]*[]byte{}
	w.threadTempMemLock.Unlock()
}

// Driver returns the dispatch table the core calls into.
func (w *Wrapped) Driver() driver.Driver { return w.device }

// ResourceManager returns the resource manager.
func (w *Wrapped) ResourceManager() *resource.Manager { return w.rm }

// CaptureState returns the current state machine state.
func (w *Wrapped) CaptureState() State { return w.state }

// FrameRecords returns the frame records accumulated by replay.
func (w *Wrapped) FrameRecords() []*frame.Record { return w.frameRecords }

// Events returns the sorted per-frame event list built by replay.
func (w *Wrapped) Events() frame.Events { return w.events }

// GetEvent returns the event with the greatest identifier not above
// eventID.
func (w *Wrapped) GetEvent(eventID uint32) (frame.APIEvent, bool) {
	return w.events.Find(eventID)
}

func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseInt(fields[1], 10, 64)
	return id
}

// GetThreadSerialiser returns the recording serialiser owned by the calling
// goroutine, lazily creating it and registering it for shutdown.
func (w *Wrapped) GetThreadSerialiser() *serialise.Serialiser {
	gid := goroutineID()

	w.threadSerialisersLock.Lock()
	defer w.threadSerialisersLock.Unlock()
	if ser, ok := w.threadSerialisers[gid]; ok {
		return ser
	}
	ser := serialise.NewWriter()
	ser.SetChunkNames(ChunkName)
	w.threadSerialisers[gid] = ser
	return ser
}

// GetTempMemory returns the calling goroutine's scratch buffer, grown to at
// least size bytes. Contents are not preserved across growth.
func (w *Wrapped) GetTempMemory(size int) []byte {
	gid := goroutineID()

	w.threadTempMemLock.Lock()
	defer w.threadTempMemLock.Unlock()
	mem, ok := w.threadTempMem[gid]
	if !ok {
		buf := make([]byte, size)
		w.threadTempMem[gid] = &buf
		return buf
	}
	if len(*mem) < size {
		*mem = make([]byte, size)
	}
	return (*mem)[:size]
}

func (w *Wrapped) bakedInfo(id resource.ID) *frame.BakedCmdBufferInfo {
	info, ok := w.bakedCmdBuffers[id]
	if !ok {
		info = &frame.BakedCmdBufferInfo{CurEventID: 1, DrawCount: 1, Draws: &frame.TreeNode{}}
		info.DrawStack = []*frame.TreeNode{info.Draws}
		w.bakedCmdBuffers[id] = info
	}
	return info
}

// drawStack returns the drawcall stack chunks currently append to: the
// command buffer's own stack while walking its commands, the root stack
// otherwise.
func (w *Wrapped) drawStack() *[]*frame.TreeNode {
	if w.lastCmdBufferID != resource.NilID {
		return &w.bakedInfo(w.lastCmdBufferID).DrawStack
	}
	return &w.drawcallStack
}

func (w *Wrapped) logDriverErr(ctx context.Context, err error, call string) {
	if err != nil {
		// capture never aborts on driver errors; the chunk is still written
		// so replay sees the same sequence
		log.E(ctx, "Driver error in %s: %v", call, err)
	}
}
