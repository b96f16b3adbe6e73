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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdc.yaml")
	err := os.WriteFile(path, []byte("captureCallstacks: true\nlogPath: out_%d.rdc\n"), 0666)
	if err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load errored: %v", err)
	}
	if !opts.CaptureCallstacks {
		t.Error("captureCallstacks not parsed")
	}
	if opts.LogPath != "out_%d.rdc" {
		t.Errorf("logPath: got %q", opts.LogPath)
	}
	// defaults survive for unset fields
	if opts.ThumbnailQuality != 40 {
		t.Errorf("thumbnailQuality default: got %d", opts.ThumbnailQuality)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
