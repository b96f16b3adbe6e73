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

// Package binary holds the interfaces for low level readers and writers of
// primitive values.
package binary

// Reader provides methods for decoding values.
// Once a read fails every following read is a no-op, and Error returns the
// first failure.
type Reader interface {
	// Data reads the data bytes in their entirety.
	Data([]byte)
	// Bool decodes and returns a boolean value from the Reader.
	Bool() bool
	// Int8 decodes and returns a signed, 8 bit integer from the Reader.
	Int8() int8
	// Uint8 decodes and returns an unsigned, 8 bit integer from the Reader.
	Uint8() uint8
	// Int16 decodes and returns a signed, 16 bit integer from the Reader.
	Int16() int16
	// Uint16 decodes and returns an unsigned, 16 bit integer from the Reader.
	Uint16() uint16
	// Int32 decodes and returns a signed, 32 bit integer from the Reader.
	Int32() int32
	// Uint32 decodes and returns an unsigned, 32 bit integer from the Reader.
	Uint32() uint32
	// Int64 decodes and returns a signed, 64 bit integer from the Reader.
	Int64() int64
	// Uint64 decodes and returns an unsigned, 64 bit integer from the Reader.
	Uint64() uint64
	// Float32 decodes and returns a 32 bit floating-point value from the Reader.
	Float32() float32
	// Float64 decodes and returns a 64 bit floating-point value from the Reader.
	Float64() float64
	// String decodes and returns a length-prefixed UTF-8 string from the Reader.
	String() string
	// Error returns the error state of the reader.
	Error() error
	// SetError sets the error state of the reader if it is not already set.
	SetError(error)
}
