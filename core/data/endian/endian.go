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

// Package endian implements the binary.Reader and binary.Writer interfaces
// over io streams in little-endian byte order, the order used by capture
// logs.
package endian

import (
	eb "encoding/binary"
	"io"
	"math"

	"github.com/deM-on/renderdoc/core/data/binary"
)

// Reader creates a binary.Reader that reads from the provided io.Reader.
func Reader(r io.Reader) binary.Reader {
	return &reader{reader: r}
}

// Writer creates a binary.Writer that writes to the supplied stream.
func Writer(w io.Writer) binary.Writer {
	return &writer{writer: w}
}

type reader struct {
	reader io.Reader
	tmp    [8]byte
	err    error
}

type writer struct {
	writer io.Writer
	tmp    [8]byte
	err    error
}

func (r *reader) Data(p []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.reader, p)
}

func (w *writer) Data(data []byte) {
	if w.err != nil {
		return
	}
	n, err := w.writer.Write(data)
	if err != nil {
		w.err = err
	} else if n != len(data) {
		w.err = io.ErrShortWrite
	}
}

func (r *reader) Bool() bool {
	return r.Uint8() != 0
}

func (w *writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (r *reader) Int8() int8 {
	return int8(r.Uint8())
}

func (w *writer) Int8(v int8) {
	w.Uint8(uint8(v))
}

func (r *reader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	_, r.err = io.ReadFull(r.reader, r.tmp[:1])
	return r.tmp[0]
}

func (w *writer) Uint8(v uint8) {
	w.tmp[0] = v
	w.Data(w.tmp[:1])
}

func (r *reader) Int16() int16 {
	return int16(r.Uint16())
}

func (w *writer) Int16(v int16) {
	w.Uint16(uint16(v))
}

func (r *reader) Uint16() uint16 {
	if r.err != nil {
		return 0
	}
	_, r.err = io.ReadFull(r.reader, r.tmp[:2])
	return eb.LittleEndian.Uint16(r.tmp[:])
}

func (w *writer) Uint16(v uint16) {
	eb.LittleEndian.PutUint16(w.tmp[:], v)
	w.Data(w.tmp[:2])
}

func (r *reader) Int32() int32 {
	return int32(r.Uint32())
}

func (w *writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (r *reader) Uint32() uint32 {
	if r.err != nil {
		return 0
	}
	_, r.err = io.ReadFull(r.reader, r.tmp[:4])
	return eb.LittleEndian.Uint32(r.tmp[:])
}

func (w *writer) Uint32(v uint32) {
	eb.LittleEndian.PutUint32(w.tmp[:], v)
	w.Data(w.tmp[:4])
}

func (r *reader) Int64() int64 {
	return int64(r.Uint64())
}

func (w *writer) Int64(v int64) {
	w.Uint64(uint64(v))
}

func (r *reader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	_, r.err = io.ReadFull(r.reader, r.tmp[:8])
	return eb.LittleEndian.Uint64(r.tmp[:])
}

func (w *writer) Uint64(v uint64) {
	eb.LittleEndian.PutUint64(w.tmp[:], v)
	w.Data(w.tmp[:8])
}

func (r *reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

func (w *writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

func (r *reader) Float64() float64 {
	return math.Float64frombits(r.Uint64())
}

func (w *writer) Float64(v float64) {
	w.Uint64(math.Float64bits(v))
}

func (r *reader) String() string {
	n := r.Uint32()
	if r.err != nil || n == 0 {
		return ""
	}
	s := make([]byte, n)
	r.Data(s)
	if r.err != nil {
		return ""
	}
	return string(s)
}

func (w *writer) String(v string) {
	w.Uint32(uint32(len(v)))
	w.Data([]byte(v))
}

func (r *reader) Error() error {
	return r.err
}

func (w *writer) Error() error {
	return w.err
}

func (r *reader) SetError(err error) {
	if r.err != nil {
		return
	}
	r.err = err
}

func (w *writer) SetError(err error) {
	if w.err != nil {
		return
	}
	w.err = err
}
