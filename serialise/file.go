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

package serialise

import (
	"bytes"
	eb "encoding/binary"
	"os"

	"github.com/deM-on/renderdoc/core/data/endian"
	"github.com/pkg/errors"
)

// Magic is the log file magic number, "RDCV" little-endian.
const Magic uint32 = 0x56434452

// Version is the serialise version written to and required from log files.
const Version uint32 = 0x12

// InitParams is the log file header: the identity of the captured
// application and the instance configuration it created.
type InitParams struct {
	AppName       string
	EngineName    string
	AppVersion    uint32
	EngineVersion uint32
	APIVersion    uint32
	Layers        []string
	Extensions    []string
	InstanceID    uint64
}

func (p *InitParams) write(w *bytes.Buffer) error {
	bw := endian.Writer(w)
	bw.Uint32(Magic)
	bw.Uint32(Version)
	bw.String(p.AppName)
	bw.String(p.EngineName)
	bw.Uint32(p.AppVersion)
	bw.Uint32(p.EngineVersion)
	bw.Uint32(p.APIVersion)
	bw.Uint32(uint32(len(p.Layers)))
	for _, l := range p.Layers {
		bw.String(l)
	}
	bw.Uint32(uint32(len(p.Extensions)))
	for _, e := range p.Extensions {
		bw.String(e)
	}
	bw.Uint64(p.InstanceID)
	return bw.Error()
}

func (p *InitParams) read(r *bytes.Reader) error {
	br := endian.Reader(r)
	if br.Uint32() != Magic {
		return ErrCorruptLog
	}
	if v := br.Uint32(); v != Version {
		if br.Error() != nil {
			return ErrCorruptLog
		}
		return ErrIncompatibleVersion
	}
	p.AppName = br.String()
	p.EngineName = br.String()
	p.AppVersion = br.Uint32()
	p.EngineVersion = br.Uint32()
	p.APIVersion = br.Uint32()
	p.Layers = make([]string, br.Uint32())
	for i := range p.Layers {
		p.Layers[i] = br.String()
	}
	if br.Error() != nil {
		return ErrCorruptLog
	}
	p.Extensions = make([]string, br.Uint32())
	for i := range p.Extensions {
		p.Extensions[i] = br.String()
	}
	p.InstanceID = br.Uint64()
	if br.Error() != nil {
		return ErrCorruptLog
	}
	return nil
}

// FlushToDisk writes the file header, the thumbnail and the accumulated
// chunk stream to path.
func (s *Serialiser) FlushToDisk(path string, params *InitParams, thumbnail []byte) error {
	if s.mode != Writing {
		return ErrInvalidState
	}
	out := &bytes.Buffer{}
	if err := params.write(out); err != nil {
		return errors.Wrap(err, "writing log header")
	}
	var tmp [4]byte
	eb.LittleEndian.PutUint32(tmp[:], uint32(len(thumbnail)))
	out.Write(tmp[:])
	out.Write(thumbnail)
	out.Write(s.buf)
	if err := os.WriteFile(path, out.Bytes(), 0666); err != nil {
		return errors.Wrapf(err, "writing log %s", path)
	}
	return nil
}

// Open loads the log file at path, validates the magic and version, and
// returns the parsed header, the thumbnail bytes and a reading serialiser
// positioned at the start of the chunk stream. Chunk offsets are relative
// to the stream start.
func Open(path string) (*InitParams, []byte, *Serialiser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "opening log %s", path)
	}
	return Load(data)
}

// Load parses an in-memory log file. See Open.
func Load(data []byte) (*InitParams, []byte, *Serialiser, error) {
	r := bytes.NewReader(data)
	params := &InitParams{}
	if err := params.read(r); err != nil {
		return nil, nil, nil, err
	}
	headerLen := uint64(len(data)) - uint64(r.Len())
	if headerLen+4 > uint64(len(data)) {
		return nil, nil, nil, ErrCorruptLog
	}
	thumbLen := eb.LittleEndian.Uint32(data[headerLen:])
	streamStart := headerLen + 4 + uint64(thumbLen)
	if streamStart > uint64(len(data)) {
		return nil, nil, nil, ErrCorruptLog
	}
	var thumbnail []byte
	if thumbLen > 0 {
		thumbnail = append([]byte{}, data[headerLen+4:streamStart]...)
	}
	return params, thumbnail, NewReader(data[streamStart:]), nil
}
