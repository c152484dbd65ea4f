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

//go:build !windows

package metadata

import (
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/host"
)

// ownerGroup resolves the owner/group of the file at path on POSIX hosts,
// per spec.md §4.2. Resolution failures fall back to numeric ids / the OS
// family name rather than aborting extraction.
func ownerGroup(path string, info os.FileInfo) (owner, group string) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}
	uid := strconv.FormatUint(uint64(stat.Uid), 10)
	gid := strconv.FormatUint(uint64(stat.Gid), 10)

	owner = uid
	if u, err := user.LookupId(uid); err == nil {
		owner = u.Username
	}

	group = osFamilyName()
	if g, err := user.LookupGroupId(gid); err == nil {
		group = stripDomain(g.Name)
	}
	return owner, group
}

// stripDomain removes a "DOMAIN\group" prefix some POSIX/AD-joined hosts
// report, keeping only the group name — mirroring the original agent's
// grp.getgrgid(...).gr_name.split('\\') handling.
func stripDomain(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// osFamilyName returns a human-readable OS family name ("Linux", "Darwin",
// ...) used as the group fallback when gid lookup fails, matching the
// original agent's platform.system() fallback.
func osFamilyName() string {
	info, err := host.Info()
	if err != nil || info.OS == "" {
		return "Unknown"
	}
	return capitalize(info.OS)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
