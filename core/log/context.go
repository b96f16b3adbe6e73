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

package log

import "context"

type handlerKeyTy struct{}
type severityKeyTy struct{}
type tagKeyTy struct{}

var (
	handlerKey  handlerKeyTy
	severityKey severityKeyTy
	tagKey      tagKeyTy
)

// PutHandler returns a new context with the handler assigned to h.
func PutHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey, h)
}

// GetHandler returns the Handler assigned to ctx, or nil.
func GetHandler(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey).(Handler)
	return h
}

// PutFilter returns a new context that only shows messages at or above s.
func PutFilter(ctx context.Context, s Severity) context.Context {
	return context.WithValue(ctx, severityKey, s)
}

// GetFilter returns the minimum severity shown by ctx.
func GetFilter(ctx context.Context) Severity {
	if s, ok := ctx.Value(severityKey).(Severity); ok {
		return s
	}
	return Verbose
}

// PutTag returns a new context with the tag assigned to tag.
func PutTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey, tag)
}

// GetTag returns the tag assigned to ctx, or an empty string.
func GetTag(ctx context.Context) string {
	tag, _ := ctx.Value(tagKey).(string)
	return tag
}
