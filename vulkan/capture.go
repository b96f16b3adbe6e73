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
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/core/fault/stacktrace"
	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/frame"
	"github.com/deM-on/renderdoc/resource"
	"github.com/deM-on/renderdoc/serialise"
)

// SetInitParams installs the application identity written to log headers.
func (w *Wrapped) SetInitParams(params serialise.InitParams) {
	if params.InstanceID == 0 {
		w.instanceID = resource.NewID()
		params.InstanceID = uint64(w.instanceID)
		w.rm.AddRecord(w.instanceID)
	} else {
		w.instanceID = resource.ID(params.InstanceID)
	}
	w.initParams = params
}

// serialiseCaptureScope reads or writes the capture scope chunk: the frame
// number plus the set of referenced resources whose pre-frame contents the
// frame needs.
func (w *Wrapped) serialiseCaptureScope(ctx context.Context, s *serialise.Serialiser) error {
	frameNumber := w.frameCounter
	s.SerialiseUint32("FrameNumber", &frameNumber)

	if !reading(s) {
		needed := w.rm.ContentsNeeded()
		count := uint32(len(needed))
		s.SerialiseUint32("InitialContentsNeeded", &count)
		for i := range needed {
			resource.Serialise(s, "Resource", &needed[i])
		}
		return s.Error()
	}

	var count uint32
	s.SerialiseUint32("InitialContentsNeeded", &count)
	ids := make([]resource.ID, count)
	for i := range ids {
		resource.Serialise(s, "Resource", &ids[i])
	}
	if err := s.Error(); err != nil {
		return err
	}

	w.frameRecords = append(w.frameRecords, &frame.Record{
		FrameNumber: frameNumber,
		FileOffset:  w.curChunkOffset,
		FirstEvent:  1,
	})
	w.rm.CreateInitialContents(ids)
	return nil
}

// serialiseBeginCaptureFrame reads or writes the capture header: the image
// layout map at the capture boundary. When applying, the decoded inverse
// barriers are issued through the internal command pool so every image
// starts the frame in its recorded layout.
func (w *Wrapped) serialiseBeginCaptureFrame(ctx context.Context, s *serialise.Serialiser, apply bool) error {
	if reading(s) && !apply {
		s.SkipCurrentChunk()
		return nil
	}

	var transitions []driver.ImageMemoryBarrier

	w.imageLayoutsLock.Lock()
	err := resource.SerialiseImageStates(s, w.imageLayouts, &transitions, func(id resource.ID) (driver.Image, bool) {
		live, ok := w.rm.GetLive(id)
		return driver.Image(live), ok
	})
	w.imageLayoutsLock.Unlock()
	if err != nil {
		return err
	}

	if reading(s) && apply && len(transitions) > 0 {
		cmd, err := w.GetNextCmd(ctx)
		if err != nil {
			return err
		}
		if err := w.device.BeginCommandBuffer(cmd); err != nil {
			return err
		}
		w.device.CmdPipelineBarrier(cmd, transitions)
		if err := w.device.EndCommandBuffer(cmd); err != nil {
			return err
		}
		w.SubmitCmds(ctx)
		// no flush needed here
	}
	return nil
}

// serialiseCaptureFooter reads or writes the capture footer: the backbuffer
// identifier and, when callstack capture is on, the capture callstack. On
// reading it synthesizes the frame's Present drawcall.
func (w *Wrapped) serialiseCaptureFooter(ctx context.Context, s *serialise.Serialiser, bbid resource.ID, callstack []uint64) error {
	resource.Serialise(s, "Backbuffer", &bbid)
	hasCallstack := len(callstack) > 0
	s.SerialiseBool("HasCallstack", &hasCallstack)
	if hasCallstack {
		s.SerialiseUint64s("Callstack", &callstack)
	}
	if !reading(s) || s.Error() != nil {
		return s.Error()
	}

	if w.state == Reading {
		desc := "vkQueuePresentKHR()"
		w.addEvent(desc)
		if hasCallstack && len(w.events) > 0 {
			w.events[len(w.events)-1].Callstack = callstack
			w.rootEvents[len(w.rootEvents)-1].Callstack = callstack
		}
		w.addDrawcall(frame.Drawcall{
			Name:            desc,
			Flags:           frame.DrawPresent,
			CopyDestination: bbid,
		}, true)
	}
	return nil
}

// attemptCapture wipes any stale chunks left on the frame capture record by
// an earlier, abandoned capture.
func (w *Wrapped) attemptCapture(ctx context.Context) {
	log.D(ctx, "Attempting capture")
	for w.frameCaptureRecord.HasChunks() {
		w.frameCaptureRecord.PopChunk()
	}
}

// beginCaptureFrame builds the capture header chunk. It is held aside so it
// can be inserted right after the capture scope, before any command-buffer
// chunks.
func (w *Wrapped) beginCaptureFrame(ctx context.Context) {
	w.ser.PushContext(ContextCaptureHeader)
	w.serialiseBeginCaptureFrame(ctx, w.ser, false)
	w.ser.PopContext(ContextCaptureHeader)
	w.headerChunk = w.ser.ExtractChunk()
}

// endCaptureFrame writes the capture footer into the frame record.
func (w *Wrapped) endCaptureFrame(ctx context.Context, bbid resource.ID) {
	var callstack []uint64
	if config.Get().CaptureCallstacks {
		callstack = stacktrace.Capture()
	}

	w.ser.PushContext(ContextCaptureFooter)
	w.serialiseCaptureFooter(ctx, w.ser, bbid, callstack)
	if len(callstack) > 0 {
		w.ser.AddCallstack(callstack)
	}
	w.ser.PopContext(ContextCaptureFooter)
	w.frameCaptureRecord.AddChunk(w.ser.ExtractChunk())
}

// finishCapture transitions back to idle and releases the coherent-map
// shadow copies.
func (w *Wrapped) finishCapture(ctx context.Context) {
	w.state = WritingIdle

	if err := w.device.DeviceWaitIdle(); err != nil {
		log.E(ctx, "Device wait failed finishing capture: %v", err)
	}

	w.coherentMapsLock.Lock()
	for _, rec := range w.coherentMaps {
		if rec.MemState != nil {
			rec.MemState.RefData = nil
		}
	}
	w.coherentMapsLock.Unlock()
}

// emitCoherentMapDiffs compares every live coherent mapping with its shadow
// copy and, when they differ or no copy exists yet, records the whole mapped
// contents as a flush chunk and refreshes the copy, so replay observes
// the writes the application made without an explicit flush.
func (w *Wrapped) emitCoherentMapDiffs(ctx context.Context) {
	w.coherentMapsLock.Lock()
	defer w.coherentMapsLock.Unlock()

	for _, rec := range w.coherentMaps {
		ms := rec.MemState
		if ms == nil || !ms.Coherent || ms.MappedPtr == nil {
			continue
		}
		if ms.RefData != nil && bytes.Equal(ms.RefData, ms.MappedPtr) {
			continue
		}
		ms.RefData = append([]byte{}, ms.MappedPtr...)

		ts := w.GetThreadSerialiser()
		ts.PushContext(FlushMem)
		w.serialiseFlushMem(ctx, ts, rec.ResourceID(), ms.Offset, ms.RefData)
		ts.PopContext(FlushMem)
		w.frameCaptureRecord.AddChunk(ts.ExtractChunk())
	}
}

// StartFrameCapture transitions WritingIdle to WritingCapFrame: it clears
// the referenced set, snapshots initial contents, wipes stale capture
// chunks and builds the capture header, all under the capture-transition
// lock so no other thread can queue chunks across the boundary.
func (w *Wrapped) StartFrameCapture(ctx context.Context) error {
	if w.state != WritingIdle {
		return ErrInvalidState
	}

	config.SetCurrentDriver("Vulkan")
	w.appControlledCapture = true

	w.frameRecords = append(w.frameRecords, &frame.Record{
		FrameNumber: w.frameCounter + 1,
		CaptureTime: time.Now().Unix(),
	})

	// everything below must be atomic with the state transition, so no
	// other thread can mark dirty state that straddles the boundary
	w.capTransitionLock.Lock()
	w.rm.ClearReferenced()
	w.rm.MarkFrameReferenced(w.instanceID, resource.RefRead)
	w.rm.PrepareInitialContents(ctx)
	w.attemptCapture(ctx)
	w.beginCaptureFrame(ctx)
	w.emitCoherentMapDiffs(ctx)
	w.state = WritingCapFrame
	w.capTransitionLock.Unlock()

	log.I(ctx, "Starting capture, frame %d", w.frameCounter)
	return nil
}

// EndFrameCapture transitions WritingCapFrame back to WritingIdle, encodes
// the backbuffer thumbnail and flushes the captured frame to a log file.
// It returns the path of the written log.
func (w *Wrapped) EndFrameCapture(ctx context.Context, wnd uintptr) (string, error) {
	if w.state != WritingCapFrame {
		return "", ErrInvalidState
	}

	var swap driver.Swapchain
	if wnd != 0 {
		w.swapLookupLock.Lock()
		swap = w.swapLookup[wnd]
		w.swapLookupLock.Unlock()
		if swap == 0 {
			return "", log.Errf(ctx, nil, "Output window %#x corresponds with no known swap chain", wnd)
		}
	}

	log.I(ctx, "Finished capture, frame %d", w.frameCounter)

	var backbuffer driver.Image
	var swapInfo *resource.SwapchainInfo
	bbid := resource.NilID

	if swap != 0 {
		swapID := w.rm.GetID(uint64(swap))
		w.rm.MarkFrameReferenced(swapID, resource.RefRead)
		if rec := w.rm.GetRecord(swapID); rec != nil && rec.SwapInfo != nil {
			swapInfo = rec.SwapInfo
			backbuffer = swapInfo.Images[swapInfo.LastPresent]
			bbid = w.rm.GetID(uint64(backbuffer))
		}
	}

	// transition back to idle atomically
	w.capTransitionLock.Lock()
	w.endCaptureFrame(ctx, bbid)
	w.finishCapture(ctx)
	w.capTransitionLock.Unlock()

	var thumbnail []byte
	if swapInfo != nil {
		var err error
		thumbnail, err = w.captureThumbnail(ctx, backbuffer, swapInfo)
		if err != nil {
			log.E(ctx, "Failed to capture thumbnail: %v", err)
			thumbnail = nil
		}
	}

	fileSer := serialise.NewWriter()

	ts := w.GetThreadSerialiser()
	ts.PushContext(DeviceInit)
	ts.PopContext(DeviceInit)
	fileSer.InsertChunk(ts.ExtractChunk())

	log.D(ctx, "Inserting resource serialisers")
	w.rm.InsertReferencedChunks(fileSer)
	w.rm.InsertInitialContentsChunks(fileSer)

	log.D(ctx, "Creating capture scope")
	w.ser.PushContext(CaptureScope)
	w.serialiseCaptureScope(ctx, w.ser)
	w.ser.PopContext(CaptureScope)
	fileSer.InsertChunk(w.ser.ExtractChunk())
	fileSer.InsertChunk(w.headerChunk)

	// no lock needed for the command buffer records: we are no longer in
	// capframe so nothing new can be pushed
	recordlist := map[int32]*serialise.Chunk{}
	for _, rec := range w.cmdBufferRecords {
		rec.Insert(recordlist)
	}
	w.frameCaptureRecord.Insert(recordlist)
	log.D(ctx, "Flushing %d chunks to the file serialiser", len(recordlist))
	resource.InsertOrdered(fileSer, recordlist)

	path := fmt.Sprintf(config.Get().LogPath, w.frameCounter)
	if err := fileSer.FlushToDisk(path, &w.initParams, thumbnail); err != nil {
		return "", err
	}
	w.headerChunk = nil

	// records had to stay alive until the flush
	for _, rec := range w.cmdBufferRecords {
		rec.Delete(w.rm)
	}
	w.cmdBufferRecords = nil

	w.rm.MarkUnwrittenResources()
	w.rm.ClearReferenced()
	w.rm.FreeInitialContents()
	w.rm.FlushPendingDirty()

	return path, nil
}
