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

package binary

// Writer provides methods for encoding values.
// Once a write fails every following write is a no-op, and Error returns the
// first failure.
type Writer interface {
	// Data writes the data bytes in their entirety.
	Data([]byte)
	// Bool encodes a boolean value to the Writer.
	Bool(bool)
	// Int8 encodes a signed, 8 bit integer to the Writer.
	Int8(int8)
	// Uint8 encodes an unsigned, 8 bit integer to the Writer.
	Uint8(uint8)
	// Int16 encodes a signed, 16 bit integer to the Writer.
	Int16(int16)
	// Uint16 encodes an unsigned, 16 bit integer to the Writer.
	Uint16(uint16)
	// Int32 encodes a signed, 32 bit integer to the Writer.
	Int32(int32)
	// Uint32 encodes an unsigned, 32 bit integer to the Writer.
	Uint32(uint32)
	// Int64 encodes a signed, 64 bit integer to the Writer.
	Int64(int64)
	// Uint64 encodes an unsigned, 64 bit integer to the Writer.
	Uint64(uint64)
	// Float32 encodes a 32 bit floating-point value to the Writer.
	Float32(float32)
	// Float64 encodes a 64 bit floating-point value to the Writer.
	Float64(float64)
	// String encodes a length-prefixed UTF-8 string to the Writer.
	String(string)
	// Error returns the error state of the writer.
	Error() error
	// SetError sets the error state of the writer if it is not already set.
	SetError(error)
}
