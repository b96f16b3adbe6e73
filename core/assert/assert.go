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

// Package assert provides a fluent assertion interface for tests.
//
//	assert.For(t, "chunk count").That(len(chunks)).Equals(3)
package assert

import (
	"fmt"
	"reflect"
)

// Output matches the logging methods of the test host types.
type Output interface {
	Error(...interface{})
	Log(...interface{})
}

// Assertion is the start of an assertion line, created by For.
type Assertion struct {
	out  Output
	name string
}

// For starts a new assertion against t with the supplied title.
func For(t Output, msg string, args ...interface{}) *Assertion {
	return &Assertion{out: t, name: fmt.Sprintf(msg, args...)}
}

func (a *Assertion) fail(format string, args ...interface{}) bool {
	a.out.Error(a.name + ": " + fmt.Sprintf(format, args...))
	return false
}

// That returns a value assertion for v.
func (a *Assertion) That(v interface{}) *OnValue {
	return &OnValue{a, v}
}

// ThatError returns an error assertion for err.
func (a *Assertion) ThatError(err error) *OnError {
	return &OnError{a, err}
}

// ThatSlice returns a slice assertion for v.
func (a *Assertion) ThatSlice(v interface{}) *OnSlice {
	return &OnSlice{a, reflect.ValueOf(v)}
}

// OnValue is an assertion on a generic value.
type OnValue struct {
	a *Assertion
	v interface{}
}

// Equals asserts the value equals expect.
func (o *OnValue) Equals(expect interface{}) bool {
	if o.v != expect {
		return o.a.fail("got %v, expect %v", o.v, expect)
	}
	return true
}

// NotEquals asserts the value does not equal unexpected.
func (o *OnValue) NotEquals(unexpected interface{}) bool {
	if o.v == unexpected {
		return o.a.fail("got unexpected value %v", o.v)
	}
	return true
}

// DeepEquals asserts the value deep-equals expect.
func (o *OnValue) DeepEquals(expect interface{}) bool {
	if !reflect.DeepEqual(o.v, expect) {
		return o.a.fail("got %+v, expect %+v", o.v, expect)
	}
	return true
}

// IsTrue asserts the value is the boolean true.
func (o *OnValue) IsTrue() bool {
	if o.v != true {
		return o.a.fail("got %v, expect true", o.v)
	}
	return true
}

// IsFalse asserts the value is the boolean false.
func (o *OnValue) IsFalse() bool {
	if o.v != false {
		return o.a.fail("got %v, expect false", o.v)
	}
	return true
}

// IsNil asserts the value is nil.
func (o *OnValue) IsNil() bool {
	if !isNil(o.v) {
		return o.a.fail("got %v, expect nil", o.v)
	}
	return true
}

// IsNotNil asserts the value is not nil.
func (o *OnValue) IsNotNil() bool {
	if isNil(o.v) {
		return o.a.fail("got nil")
	}
	return true
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return r.IsNil()
	}
	return false
}

// OnError is an assertion on an error value.
type OnError struct {
	a   *Assertion
	err error
}

// Succeeded asserts the error is nil.
func (o *OnError) Succeeded() bool {
	if o.err != nil {
		return o.a.fail("unexpected error: %v", o.err)
	}
	return true
}

// Failed asserts the error is not nil.
func (o *OnError) Failed() bool {
	if o.err == nil {
		return o.a.fail("expected an error")
	}
	return true
}

// Equals asserts the error equals expect.
func (o *OnError) Equals(expect error) bool {
	if o.err != expect {
		return o.a.fail("got error %v, expect %v", o.err, expect)
	}
	return true
}

// OnSlice is an assertion on a slice value.
type OnSlice struct {
	a *Assertion
	v reflect.Value
}

// IsLength asserts the slice has exactly the given length.
func (o *OnSlice) IsLength(n int) bool {
	if o.v.Len() != n {
		return o.a.fail("got length %d, expect %d", o.v.Len(), n)
	}
	return true
}

// IsEmpty asserts the slice is empty.
func (o *OnSlice) IsEmpty() bool {
	return o.IsLength(0)
}

// IsNotEmpty asserts the slice has at least one element.
func (o *OnSlice) IsNotEmpty() bool {
	if o.v.Len() == 0 {
		return o.a.fail("got an empty slice")
	}
	return true
}
