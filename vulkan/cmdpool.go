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
	"sync"

	"github.com/deM-on/renderdoc/core/log"
	"github.com/deM-on/renderdoc/driver"
)

// internalCmds recycles the short-lived command buffers used for readbacks
// and state transitions.
type internalCmds struct {
	mu        sync.Mutex
	free      []driver.CommandBuffer
	pending   []driver.CommandBuffer
	submitted []driver.CommandBuffer
}

// GetNextCmd returns a reset command buffer from the free list, allocating
// a new one when the list is empty, and moves it to the pending list.
func (w *Wrapped) GetNextCmd(ctx context.Context) (driver.CommandBuffer, error) {
	c := &w.internalCmds
	c.mu.Lock()
	defer c.mu.Unlock()

	var cmd driver.CommandBuffer
	if n := len(c.free); n > 0 {
		cmd = c.free[n-1]
		c.free = c.free[:n-1]
		if err := w.device.ResetCommandBuffer(cmd); err != nil {
			return 0, err
		}
	} else {
		var err error
		cmd, err = w.device.CreateCommandBuffer()
		if err != nil {
			return 0, err
		}
	}

	c.pending = append(c.pending, cmd)
	return cmd, nil
}

// SubmitCmds submits every pending internal command buffer and moves them
// to the submitted list.
func (w *Wrapped) SubmitCmds(ctx context.Context) {
	c := &w.internalCmds
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return
	}
	if err := w.device.QueueSubmit(w.queue, c.pending); err != nil {
		log.E(ctx, "Internal command submit failed: %v", err)
	}
	c.submitted = append(c.submitted, c.pending...)
	c.pending = nil
}

// FlushQ blocks until the queue drains, then recycles every submitted
// internal command buffer onto the free list.
func (w *Wrapped) FlushQ(ctx context.Context) {
	c := &w.internalCmds
	if err := w.device.QueueWaitIdle(w.queue); err != nil {
		log.E(ctx, "Queue wait failed: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.submitted) > 0 {
		c.free = append(c.free, c.submitted...)
		c.submitted = nil
	}
}
