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

//go:build windows

package metadata

import (
	"os"

	"golang.org/x/sys/windows"
)

// ownerGroup resolves the file owner from the security descriptor on
// Windows hosts, per spec.md §4.2. Group is always the literal "Windows".
// Resolution failures never abort extraction: the empty string is
// returned for owner if the security descriptor can't be read or the SID
// can't be resolved to an account name.
func ownerGroup(path string, info os.FileInfo) (owner, group string) {
	group = "Windows"

	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.OWNER_SECURITY_INFORMATION,
	)
	if err != nil {
		return "", group
	}
	sid, _, err := sd.Owner()
	if err != nil || sid == nil {
		return "", group
	}
	account, domain, _, err := sid.LookupAccount("")
	if err != nil {
		return "", group
	}
	if domain != "" {
		return domain + `\` + account, group
	}
	return account, group
}
