// Copyright 2024 The Radiam Authors
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

package snapshot_test

import (
	"errors"
	"testing"

	"github.com/usask-rc/radiam-agent/internal/snapshot"
)

func TestLoadMissingReturnsErrNoSnapshot(t *testing.T) {
	store := snapshot.New(t.TempDir())
	set, err := store.Load("proj")
	if !errors.Is(err, snapshot.ErrNoSnapshot) {
		t.Fatalf("Load() err = %v, want ErrNoSnapshot", err)
	}
	if len(set) != 0 {
		t.Errorf("set = %v, want empty", set)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := snapshot.New(t.TempDir())
	want := snapshot.NewSet("/r/a", "/r/b", "/r/b/c.txt")

	if err := store.Save("proj", want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load("proj")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	store := snapshot.New(t.TempDir())
	if err := store.Save("proj", snapshot.NewSet("/r/a")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("proj", snapshot.NewSet("/r/b")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load("proj")
	if err != nil {
		t.Fatal(err)
	}
	want := snapshot.NewSet("/r/b")
	if !got.Equal(want) {
		t.Errorf("got = %v, want %v", got, want)
	}
}

func TestSetDiff(t *testing.T) {
	prev := snapshot.NewSet("/r/a", "/r/b", "/r/c")
	cur := snapshot.NewSet("/r/a", "/r/c")

	diff := prev.Diff(cur)
	if len(diff) != 1 || diff[0] != "/r/b" {
		t.Errorf("Diff() = %v, want [/r/b]", diff)
	}
}
