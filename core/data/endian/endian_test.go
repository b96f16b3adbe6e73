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

package endian

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := Writer(buf)
	w.Bool(true)
	w.Uint8(0xab)
	w.Int16(-12345)
	w.Uint32(0xdeadbeef)
	w.Int64(-1)
	w.Uint64(0x0123456789abcdef)
	w.Float32(1.5)
	w.Float64(-2.25)
	w.String("triangle")
	w.String("")
	w.Data([]byte{1, 2, 3})
	if w.Error() != nil {
		t.Fatalf("write errored: %v", w.Error())
	}

	r := Reader(bytes.NewReader(buf.Bytes()))
	if got := r.Bool(); got != true {
		t.Errorf("Bool: got %v", got)
	}
	if got := r.Uint8(); got != 0xab {
		t.Errorf("Uint8: got %#x", got)
	}
	if got := r.Int16(); got != -12345 {
		t.Errorf("Int16: got %v", got)
	}
	if got := r.Uint32(); got != 0xdeadbeef {
		t.Errorf("Uint32: got %#x", got)
	}
	if got := r.Int64(); got != -1 {
		t.Errorf("Int64: got %v", got)
	}
	if got := r.Uint64(); got != 0x0123456789abcdef {
		t.Errorf("Uint64: got %#x", got)
	}
	if got := r.Float32(); got != 1.5 {
		t.Errorf("Float32: got %v", got)
	}
	if got := r.Float64(); got != -2.25 {
		t.Errorf("Float64: got %v", got)
	}
	if got := r.String(); got != "triangle" {
		t.Errorf("String: got %q", got)
	}
	if got := r.String(); got != "" {
		t.Errorf("empty String: got %q", got)
	}
	data := make([]byte, 3)
	r.Data(data)
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("Data: got %v", data)
	}
	if r.Error() != nil {
		t.Fatalf("read errored: %v", r.Error())
	}
}

func TestReadPastEnd(t *testing.T) {
	r := Reader(bytes.NewReader([]byte{1, 2}))
	r.Uint32()
	if r.Error() == nil {
		t.Error("expected error reading past the end of the stream")
	}
	// once failed, every following read is a zero-value no-op
	if got := r.Uint64(); got != 0 {
		t.Errorf("read after error: got %v", got)
	}
}

func TestLittleEndianLayout(t *testing.T) {
	buf := &bytes.Buffer{}
	w := Writer(buf)
	w.Uint32(0x11223344)
	want := []byte{0x44, 0x33, 0x22, 0x11}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("layout: got %v, want %v", buf.Bytes(), want)
	}
}
