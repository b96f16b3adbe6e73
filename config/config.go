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

// Package config carries the process-wide capture options initialised by
// the embedding environment.
package config

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options are the capture options the core consumes.
type Options struct {
	// CaptureCallstacks attaches a callstack to every recorded chunk,
	// including the capture footer.
	CaptureCallstacks bool `yaml:"captureCallstacks"`
	// LogPath is the output path pattern for capture logs. A %d is replaced
	// with the captured frame number.
	LogPath string `yaml:"logPath"`
	// ThumbnailQuality is the JPEG quality of the embedded thumbnail.
	ThumbnailQuality int `yaml:"thumbnailQuality"`
}

// DefaultOptions returns the options used when the host provides none.
func DefaultOptions() Options {
	return Options{
		LogPath:          "capture_frame%d.rdc",
		ThumbnailQuality: 40,
	}
}

// Load reads options from a YAML file.
func Load(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Wrapf(err, "parsing config %s", path)
	}
	return opts, nil
}

var (
	mu            sync.Mutex
	options       = DefaultOptions()
	currentDriver string
)

// Set installs the process-wide capture options.
func Set(o Options) {
	mu.Lock()
	defer mu.Unlock()
	options = o
}

// Get returns the process-wide capture options.
func Get() Options {
	mu.Lock()
	defer mu.Unlock()
	return options
}

// SetCurrentDriver records the driver identifier of the capturing API. Set
// when a capture starts.
func SetCurrentDriver(name string) {
	mu.Lock()
	defer mu.Unlock()
	currentDriver = name
}

// CurrentDriver returns the driver identifier recorded by the last capture
// start, or an empty string.
func CurrentDriver() string {
	mu.Lock()
	defer mu.Unlock()
	return currentDriver
}
