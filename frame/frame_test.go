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

package frame

import "testing"

func check(t *testing.T, name string, expected, got interface{}) {
	if expected != got {
		t.Errorf("%s was not as expected.\nExpected: %v\nGot:      %v", name, expected, got)
	}
}

func TestEventsSortAndFind(t *testing.T) {
	events := Events{
		{EventID: 5}, {EventID: 1}, {EventID: 3}, {EventID: 2}, {EventID: 4},
	}
	events.Sort()
	for i, ev := range events {
		check(t, "sorted order", uint32(i+1), ev.EventID)
	}

	// exact matches
	for want := uint32(1); want <= 5; want++ {
		got, ok := events.Find(want)
		check(t, "found", true, ok)
		check(t, "exact find", want, got.EventID)
	}

	// nearest below for an identifier past the end
	got, ok := events.Find(100)
	check(t, "found", true, ok)
	check(t, "nearest find", uint32(5), got.EventID)

	// a miss below the first event falls back to the first
	got, ok = events.Find(0)
	check(t, "miss", false, ok)
	check(t, "fallback", uint32(1), got.EventID)
}

func TestFindSparse(t *testing.T) {
	events := Events{{EventID: 10}, {EventID: 20}, {EventID: 30}}
	got, ok := events.Find(25)
	check(t, "found", true, ok)
	check(t, "nearest below", uint32(20), got.EventID)
}

func TestTreeBake(t *testing.T) {
	root := &TreeNode{}
	marker := root.AddChild(Drawcall{Name: "Scene", Flags: DrawPushMarker, EventID: 1, DrawcallID: 1})
	marker.AddChild(Drawcall{Name: "Draw(3, 1)", Flags: DrawDrawcall, EventID: 2, DrawcallID: 2})
	root.AddChild(Drawcall{Name: "Present", Flags: DrawPresent, EventID: 3, DrawcallID: 3})

	baked := root.Bake()
	check(t, "top level count", 2, len(baked))
	check(t, "marker name", "Scene", baked[0].Name)
	check(t, "marker children", 1, len(baked[0].Children))
	check(t, "draw name", "Draw(3, 1)", baked[0].Children[0].Name)
	check(t, "present name", "Present", baked[1].Name)
}

func TestTreeShift(t *testing.T) {
	root := &TreeNode{}
	draw := root.AddChild(Drawcall{EventID: 1, DrawcallID: 1, Events: []APIEvent{{EventID: 1}}})
	draw.AddChild(Drawcall{EventID: 2, DrawcallID: 2})

	root.Shift(10, 5)
	check(t, "root event", uint32(11), root.Children[0].Draw.EventID)
	check(t, "root draw", uint32(6), root.Children[0].Draw.DrawcallID)
	check(t, "attached event", uint32(11), root.Children[0].Draw.Events[0].EventID)
	check(t, "child event", uint32(12), root.Children[0].Children[0].Draw.EventID)
}

func TestTreeClone(t *testing.T) {
	root := &TreeNode{}
	root.AddChild(Drawcall{EventID: 1, Events: []APIEvent{{EventID: 1}}})

	clone := root.Clone()
	clone.Shift(100, 100)
	check(t, "original unchanged", uint32(1), root.Children[0].Draw.EventID)
	check(t, "clone shifted", uint32(101), clone.Children[0].Draw.EventID)
}
