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

package resource

import (
	"sort"

	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/serialise"
)

// SerialiseImageStates reads or writes the image layout map at the capture
// boundary.
//
// Writing: the recorded layouts are emitted and barriers transitioning each
// tracked subresource from its last observed layout to the general layout
// are appended to out, so a replay starts from a canonical state.
//
// Reading: the layouts are decoded into the map and the inverse barriers —
// general back to each recorded layout — are appended to out, restoring the
// pre-frame state.
func SerialiseImageStates(s *serialise.Serialiser, layouts map[ID][]ImageRegionState, out *[]driver.ImageMemoryBarrier, liveImage func(ID) (driver.Image, bool)) error {
	if s.Mode() == serialise.Writing {
		ids := make([]ID, 0, len(layouts))
		for id := range layouts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		count := uint32(len(ids))
		s.SerialiseUint32("NumImages", &count)
		for _, id := range ids {
			rid := id
			Serialise(s, "Image", &rid)
			regions := layouts[id]
			rcount := uint32(len(regions))
			s.SerialiseUint32("NumRegions", &rcount)
			for i := range regions {
				serialiseRegion(s, &regions[i])
			}

			img, ok := driver.Image(0), false
			if liveImage != nil {
				img, ok = liveImage(id)
			}
			for _, reg := range regions {
				if reg.Layout == driver.LayoutGeneral || !ok {
					continue
				}
				*out = append(*out, driver.ImageMemoryBarrier{
					OldLayout: reg.Layout,
					NewLayout: driver.LayoutGeneral,
					Image:     img,
					Range:     reg.Range,
				})
			}
		}
		return s.Error()
	}

	var count uint32
	s.SerialiseUint32("NumImages", &count)
	for i := uint32(0); i < count; i++ {
		var id ID
		Serialise(s, "Image", &id)
		var rcount uint32
		s.SerialiseUint32("NumRegions", &rcount)
		regions := make([]ImageRegionState, rcount)
		for r := range regions {
			serialiseRegion(s, &regions[r])
		}
		if err := s.Error(); err != nil {
			return err
		}
		layouts[id] = regions

		img, ok := driver.Image(0), false
		if liveImage != nil {
			img, ok = liveImage(id)
		}
		for _, reg := range regions {
			if reg.Layout == driver.LayoutGeneral || !ok {
				continue
			}
			*out = append(*out, driver.ImageMemoryBarrier{
				OldLayout: driver.LayoutGeneral,
				NewLayout: reg.Layout,
				Image:     img,
				Range:     reg.Range,
			})
		}
	}
	return s.Error()
}

func serialiseRegion(s *serialise.Serialiser, r *ImageRegionState) {
	s.SerialiseUint32("BaseMipLevel", &r.Range.BaseMipLevel)
	s.SerialiseUint32("LevelCount", &r.Range.LevelCount)
	s.SerialiseUint32("BaseArrayLayer", &r.Range.BaseArrayLayer)
	s.SerialiseUint32("LayerCount", &r.Range.LayerCount)
	layout := uint32(r.Layout)
	s.SerialiseUint32("Layout", &layout)
	r.Layout = driver.ImageLayout(layout)
}
