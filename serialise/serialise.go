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

// Package serialise implements the chunked binary serialiser that drives
// both capture and replay.
//
// A writing serialiser appends chunks to an in-memory stream; a reading
// serialiser gives random access over a loaded log. Each chunk is framed as
//
//	u32 kind, u32 length, u8 flags, payload[length] [, callstack block]
//
// where the callstack block, present when flags has ChunkHasCallstack set,
// is a u16 count followed by count u64 program counters. Byte order inside
// chunks is the serialiser's concern; ordering between chunks is the
// caller's.
package serialise

import (
	eb "encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/deM-on/renderdoc/core/fault"
)

const (
	// ErrIncompatibleVersion is returned when a log's serialise version does
	// not match Version.
	ErrIncompatibleVersion = fault.Const("Incompatible serialise version")
	// ErrCorruptLog is returned when a chunk is truncated or malformed.
	ErrCorruptLog = fault.Const("Corrupt log")
	// ErrUnknownChunk is reported in the log when an unregistered chunk kind
	// at or above FirstChunkID is skipped.
	ErrUnknownChunk = fault.Const("Unknown chunk")
	// ErrInvalidState is returned when an operation does not apply to the
	// serialiser's mode or context stack.
	ErrInvalidState = fault.Const("Invalid serialiser state")
)

// Mode is the direction of a Serialiser.
type Mode int

const (
	// Writing appends chunks to an in-memory stream.
	Writing Mode = iota
	// Reading decodes chunks from a loaded stream.
	Reading
)

const chunkHeaderSize = 9

type stackEntry struct {
	kind       Type
	header     uint64 // writing: offset of the chunk header
	payloadEnd uint64 // reading: offset one past the chunk payload
	fullEnd    uint64 // reading: offset one past the payload and callstack
	flags      uint8
}

// Serialiser reads or writes a stream of chunks.
type Serialiser struct {
	mode   Mode
	buf    []byte
	offset uint64
	stack  []stackEntry

	debug    bool
	debugStr strings.Builder
	names    func(Type) string

	persistent    uint64
	lastCallstack []uint64
	pendingStack  []uint64

	lastChunkStart uint64
	lastChunkEnd   uint64
	hasLastChunk   bool

	err error
}

// NewWriter returns a Serialiser in Writing mode.
func NewWriter() *Serialiser {
	return &Serialiser{mode: Writing}
}

// NewReader returns a Serialiser in Reading mode over data.
func NewReader(data []byte) *Serialiser {
	return &Serialiser{mode: Reading, buf: data}
}

// Mode returns the serialiser direction.
func (s *Serialiser) Mode() Mode { return s.mode }

// SetDebugText enables per-chunk debug text accumulation in reading mode.
func (s *Serialiser) SetDebugText(enabled bool) { s.debug = enabled }

// SetChunkNames installs the lookup used for chunk names in debug text.
func (s *Serialiser) SetChunkNames(names func(Type) string) { s.names = names }

// DebugStr returns the debug text accumulated for the current chunk.
func (s *Serialiser) DebugStr() string { return s.debugStr.String() }

// Error returns the sticky error state of the serialiser.
func (s *Serialiser) Error() error { return s.err }

// SetError sets the error state if it is not already set.
func (s *Serialiser) SetError(err error) {
	if s.err == nil {
		s.err = err
	}
}

// GetOffset returns the current stream offset.
func (s *Serialiser) GetOffset() uint64 { return s.offset }

// SetOffset moves the reading cursor to offset.
func (s *Serialiser) SetOffset(offset uint64) {
	s.offset = offset
	s.stack = s.stack[:0]
}

// GetSize returns the total size of the stream.
func (s *Serialiser) GetSize() uint64 {
	return uint64(len(s.buf))
}

// Rewind moves the reading cursor back to the start of the stream and
// clears the error state.
func (s *Serialiser) Rewind() {
	s.offset = 0
	s.stack = s.stack[:0]
	s.err = nil
	s.lastCallstack = nil
}

// AtEnd reports whether the reading cursor is at the end of the stream.
func (s *Serialiser) AtEnd() bool {
	return s.offset >= uint64(len(s.buf))
}

// SetPersistentBlock marks the stream suffix from offset as required to stay
// resident for the lifetime of the serialiser.
func (s *Serialiser) SetPersistentBlock(offset uint64) {
	s.persistent = offset
}

// PersistentBlock returns the start of the resident suffix.
func (s *Serialiser) PersistentBlock() uint64 { return s.persistent }

// LastCallstack returns the callstack attached to the most recently popped
// chunk, or nil.
func (s *Serialiser) LastCallstack() []uint64 { return s.lastCallstack }

// AddCallstack attaches a callstack to the chunk currently being written.
func (s *Serialiser) AddCallstack(stack []uint64) {
	s.pendingStack = stack
}

// limit returns the read bound imposed by the innermost open chunk.
func (s *Serialiser) limit() uint64 {
	if n := len(s.stack); n > 0 {
		return s.stack[n-1].payloadEnd
	}
	return uint64(len(s.buf))
}

func (s *Serialiser) read(n uint64) []byte {
	if s.err != nil {
		return nil
	}
	if s.offset+n > s.limit() || s.offset+n > uint64(len(s.buf)) {
		s.err = ErrCorruptLog
		return nil
	}
	b := s.buf[s.offset : s.offset+n]
	s.offset += n
	return b
}

// readUnbounded reads past the current payload bound, used for chunk headers
// and trailing callstack blocks.
func (s *Serialiser) readUnbounded(n uint64) []byte {
	if s.err != nil {
		return nil
	}
	if s.offset+n > uint64(len(s.buf)) {
		s.err = ErrCorruptLog
		return nil
	}
	b := s.buf[s.offset : s.offset+n]
	s.offset += n
	return b
}

func (s *Serialiser) put(b []byte) {
	s.buf = append(s.buf, b...)
}

func (s *Serialiser) putUint32(v uint32) {
	var tmp [4]byte
	eb.LittleEndian.PutUint32(tmp[:], v)
	s.put(tmp[:])
}

func (s *Serialiser) putUint64(v uint64) {
	var tmp [8]byte
	eb.LittleEndian.PutUint64(tmp[:], v)
	s.put(tmp[:])
}

func (s *Serialiser) putUint16(v uint16) {
	var tmp [2]byte
	eb.LittleEndian.PutUint16(tmp[:], v)
	s.put(tmp[:])
}

func (s *Serialiser) patchUint32(at uint64, v uint32) {
	eb.LittleEndian.PutUint32(s.buf[at:at+4], v)
}

// PushContext begins a chunk. In writing mode the declared kind is framed
// with a placeholder header and returned; in reading mode the encountered
// kind is parsed and returned. Contexts nest.
func (s *Serialiser) PushContext(kind Type) Type {
	if s.mode == Writing {
		if len(s.stack) == 0 {
			s.pendingStack = nil
		}
		s.stack = append(s.stack, stackEntry{kind: kind, header: uint64(len(s.buf))})
		s.putUint32(uint32(kind))
		s.putUint32(0)
		s.put([]byte{0})
		return kind
	}

	if len(s.stack) == 0 {
		s.lastCallstack = nil
		s.debugStr.Reset()
	}
	hdr := s.readUnbounded(chunkHeaderSize)
	if hdr == nil {
		return NilType
	}
	got := Type(eb.LittleEndian.Uint32(hdr[0:4]))
	length := eb.LittleEndian.Uint32(hdr[4:8])
	flags := hdr[8]
	end := s.offset + uint64(length)
	if end > uint64(len(s.buf)) {
		s.err = ErrCorruptLog
		return NilType
	}
	fullEnd := end
	if flags&ChunkHasCallstack != 0 {
		// the callstack block trails the payload; parse it up front so it
		// is available while the payload is being read
		if end+2 > uint64(len(s.buf)) {
			s.err = ErrCorruptLog
			return NilType
		}
		n := eb.LittleEndian.Uint16(s.buf[end:])
		fullEnd = end + 2 + uint64(n)*8
		if fullEnd > uint64(len(s.buf)) {
			s.err = ErrCorruptLog
			return NilType
		}
		stack := make([]uint64, n)
		for i := range stack {
			stack[i] = eb.LittleEndian.Uint64(s.buf[end+2+uint64(i)*8:])
		}
		s.lastCallstack = stack
	}
	s.stack = append(s.stack, stackEntry{kind: got, payloadEnd: end, fullEnd: fullEnd, flags: flags})
	if s.debug && s.names != nil {
		fmt.Fprintf(&s.debugStr, "%s\n", s.names(got))
	}
	return got
}

// PopContext closes the current chunk, asserting the kind matches.
func (s *Serialiser) PopContext(kind Type) {
	n := len(s.stack)
	if n == 0 {
		s.SetError(ErrInvalidState)
		return
	}
	top := s.stack[n-1]
	if top.kind != kind {
		s.SetError(ErrInvalidState)
		return
	}
	s.stack = s.stack[:n-1]

	if s.mode == Writing {
		if len(s.pendingStack) > 0 && len(s.stack) == 0 {
			s.putUint16(uint16(len(s.pendingStack)))
			for _, pc := range s.pendingStack {
				s.putUint64(pc)
			}
			s.buf[top.header+8] |= ChunkHasCallstack
			// length excludes the callstack block
			s.patchUint32(top.header+4, uint32(uint64(len(s.buf))-top.header-chunkHeaderSize-uint64(2+8*len(s.pendingStack))))
			s.pendingStack = nil
		} else {
			s.patchUint32(top.header+4, uint32(uint64(len(s.buf))-top.header-chunkHeaderSize))
		}
		if len(s.stack) == 0 {
			s.lastChunkStart = top.header
			s.lastChunkEnd = uint64(len(s.buf))
			s.hasLastChunk = true
		}
		return
	}

	s.offset = top.fullEnd
}

// SkipCurrentChunk advances past the payload of the current chunk.
func (s *Serialiser) SkipCurrentChunk() {
	if n := len(s.stack); n > 0 {
		s.offset = s.stack[n-1].payloadEnd
	}
}

// skipChunkAt advances the cursor past the chunk starting at the cursor,
// including any trailing callstack block.
func (s *Serialiser) skipChunkAt() {
	hdr := s.readUnbounded(chunkHeaderSize)
	if hdr == nil {
		return
	}
	length := eb.LittleEndian.Uint32(hdr[4:8])
	flags := hdr[8]
	if s.readUnbounded(uint64(length)) == nil {
		return
	}
	if flags&ChunkHasCallstack != 0 {
		cnt := s.readUnbounded(2)
		if cnt == nil {
			return
		}
		s.readUnbounded(uint64(eb.LittleEndian.Uint16(cnt)) * 8)
	}
}

// PeekChunk returns the kind of the chunk at the cursor without moving it.
func (s *Serialiser) PeekChunk() Type {
	if s.err != nil || s.offset+4 > uint64(len(s.buf)) {
		return NilType
	}
	return Type(eb.LittleEndian.Uint32(s.buf[s.offset:]))
}

// SkipToChunk scans forward until a chunk of the given kind is at the
// cursor, or the end of the stream is reached.
func (s *Serialiser) SkipToChunk(kind Type) {
	for s.err == nil && !s.AtEnd() {
		if s.PeekChunk() == kind {
			return
		}
		s.skipChunkAt()
	}
}

// ExtractChunk removes the most recently completed top-level chunk from the
// written stream and returns it. Used by recording threads to hand finished
// chunks to resource records.
func (s *Serialiser) ExtractChunk() *Chunk {
	if s.mode != Writing || !s.hasLastChunk {
		s.SetError(ErrInvalidState)
		return nil
	}
	c := decodeChunk(s.buf[s.lastChunkStart:s.lastChunkEnd])
	s.buf = s.buf[:s.lastChunkStart]
	s.hasLastChunk = false
	return c
}

// InsertChunk splices a pre-built chunk into the written stream.
func (s *Serialiser) InsertChunk(c *Chunk) {
	if s.mode != Writing {
		s.SetError(ErrInvalidState)
		return
	}
	flags := uint8(0)
	if len(c.Callstack) > 0 {
		flags = ChunkHasCallstack
	}
	s.putUint32(uint32(c.Kind))
	s.putUint32(uint32(len(c.Payload)))
	s.put([]byte{flags})
	s.put(c.Payload)
	if len(c.Callstack) > 0 {
		s.putUint16(uint16(len(c.Callstack)))
		for _, pc := range c.Callstack {
			s.putUint64(pc)
		}
	}
}

// Data returns the written stream bytes.
func (s *Serialiser) Data() []byte { return s.buf }

func decodeChunk(b []byte) *Chunk {
	kind := Type(eb.LittleEndian.Uint32(b[0:4]))
	length := eb.LittleEndian.Uint32(b[4:8])
	flags := b[8]
	payload := make([]byte, length)
	copy(payload, b[chunkHeaderSize:chunkHeaderSize+length])
	c := &Chunk{Kind: kind, Payload: payload}
	if flags&ChunkHasCallstack != 0 {
		rest := b[chunkHeaderSize+length:]
		n := eb.LittleEndian.Uint16(rest)
		c.Callstack = make([]uint64, n)
		for i := range c.Callstack {
			c.Callstack[i] = eb.LittleEndian.Uint64(rest[2+i*8:])
		}
	}
	return c
}

func (s *Serialiser) readCount() uint32 {
	b := s.read(4)
	if b == nil {
		return 0
	}
	return eb.LittleEndian.Uint32(b)
}

func (s *Serialiser) debugf(name, format string, args ...interface{}) {
	if s.debug && s.mode == Reading {
		fmt.Fprintf(&s.debugStr, "  %s: ", name)
		fmt.Fprintf(&s.debugStr, format, args...)
		s.debugStr.WriteByte('\n')
	}
}

// SerialiseBool reads or writes a boolean element.
func (s *Serialiser) SerialiseBool(name string, v *bool) {
	if s.mode == Writing {
		if *v {
			s.put([]byte{1})
		} else {
			s.put([]byte{0})
		}
		return
	}
	b := s.read(1)
	if b != nil {
		*v = b[0] != 0
		s.debugf(name, "%v", *v)
	}
}

// SerialiseUint8 reads or writes an unsigned 8 bit element.
func (s *Serialiser) SerialiseUint8(name string, v *uint8) {
	if s.mode == Writing {
		s.put([]byte{*v})
		return
	}
	b := s.read(1)
	if b != nil {
		*v = b[0]
		s.debugf(name, "%d", *v)
	}
}

// SerialiseUint32 reads or writes an unsigned 32 bit element.
func (s *Serialiser) SerialiseUint32(name string, v *uint32) {
	if s.mode == Writing {
		s.putUint32(*v)
		return
	}
	b := s.read(4)
	if b != nil {
		*v = eb.LittleEndian.Uint32(b)
		s.debugf(name, "%d", *v)
	}
}

// SerialiseInt32 reads or writes a signed 32 bit element.
func (s *Serialiser) SerialiseInt32(name string, v *int32) {
	u := uint32(*v)
	s.SerialiseUint32(name, &u)
	*v = int32(u)
}

// SerialiseUint64 reads or writes an unsigned 64 bit element.
func (s *Serialiser) SerialiseUint64(name string, v *uint64) {
	if s.mode == Writing {
		s.putUint64(*v)
		return
	}
	b := s.read(8)
	if b != nil {
		*v = eb.LittleEndian.Uint64(b)
		s.debugf(name, "%d", *v)
	}
}

// SerialiseFloat32 reads or writes a 32 bit float element.
func (s *Serialiser) SerialiseFloat32(name string, v *float32) {
	u := math.Float32bits(*v)
	s.SerialiseUint32(name, &u)
	*v = math.Float32frombits(u)
}

// SerialiseString reads or writes a length-prefixed UTF-8 string element.
func (s *Serialiser) SerialiseString(name string, v *string) {
	if s.mode == Writing {
		s.putUint32(uint32(len(*v)))
		s.put([]byte(*v))
		return
	}
	n := s.readCount()
	b := s.read(uint64(n))
	if b != nil {
		*v = string(b)
		s.debugf(name, "%q", *v)
	}
}

// SerialiseBytes reads or writes a length-prefixed blob element.
func (s *Serialiser) SerialiseBytes(name string, v *[]byte) {
	if s.mode == Writing {
		s.putUint32(uint32(len(*v)))
		s.put(*v)
		return
	}
	n := s.readCount()
	b := s.read(uint64(n))
	if b != nil {
		*v = make([]byte, n)
		copy(*v, b)
		s.debugf(name, "%d bytes", n)
	}
}

// SerialiseUint32s reads or writes a POD array of unsigned 32 bit elements.
func (s *Serialiser) SerialiseUint32s(name string, v *[]uint32) {
	if s.mode == Writing {
		s.putUint32(uint32(len(*v)))
		for _, e := range *v {
			s.putUint32(e)
		}
		return
	}
	n := s.readCount()
	b := s.read(uint64(n) * 4)
	if b == nil {
		return
	}
	*v = make([]uint32, n)
	for i := range *v {
		(*v)[i] = eb.LittleEndian.Uint32(b[i*4:])
	}
	s.debugf(name, "%v", *v)
}

// SerialiseUint64s reads or writes a POD array of unsigned 64 bit elements.
func (s *Serialiser) SerialiseUint64s(name string, v *[]uint64) {
	if s.mode == Writing {
		s.putUint32(uint32(len(*v)))
		for _, e := range *v {
			s.putUint64(e)
		}
		return
	}
	n := s.readCount()
	b := s.read(uint64(n) * 8)
	if b == nil {
		return
	}
	*v = make([]uint64, n)
	for i := range *v {
		(*v)[i] = eb.LittleEndian.Uint64(b[i*8:])
	}
	s.debugf(name, "%v", *v)
}

// SerialiseStrings reads or writes a list of string elements.
func (s *Serialiser) SerialiseStrings(name string, v *[]string) {
	if s.mode == Writing {
		s.putUint32(uint32(len(*v)))
		for _, e := range *v {
			s.putUint32(uint32(len(e)))
			s.put([]byte(e))
		}
		return
	}
	n := s.readCount()
	out := make([]string, n)
	for i := range out {
		m := s.readCount()
		b := s.read(uint64(m))
		if b == nil {
			return
		}
		out[i] = string(b)
	}
	*v = out
	s.debugf(name, "%v", *v)
}
