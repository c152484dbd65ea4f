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

package metadata

import (
	"time"

	"github.com/djherbis/times"
)

// statTimes is the subset of a single lstat's monotonically-derived time
// fields that the extractor needs (spec.md §3 invariant: "no interleaved
// restat").
type statTimes struct {
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
}

// lstatTimes reads all three times from a single lstat call via
// github.com/djherbis/times, which exposes ctime/birth-time portably
// across POSIX and Windows from the one underlying syscall.
func lstatTimes(path string) (statTimes, error) {
	ts, err := times.Lstat(path)
	if err != nil {
		return statTimes{}, err
	}
	st := statTimes{
		ModTime:    ts.ModTime(),
		AccessTime: ts.AccessTime(),
	}
	if ts.HasChangeTime() {
		st.ChangeTime = ts.ChangeTime()
	} else {
		// Platforms without a native ctime (notably Windows) fall back to
		// mtime, matching the nearest available "last changed" signal.
		st.ChangeTime = ts.ModTime()
	}
	return st, nil
}
