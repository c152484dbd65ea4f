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

// Package filter decides, for a given project's path rules, whether a file
// or directory should be included in crawling, watching, and indexing.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/usask-rc/radiam-agent/internal/model"
)

// NullExt is the sentinel pattern matching files with no extension.
const NullExt = "NULLEXT"

// DotGlob is the sentinel pattern matching any dotfile/dotdir.
const DotGlob = ".*"

// FileExcluded returns true if path should NOT be indexed as a file under
// rules, applying spec.md §4.1's admission rules in order. A whitelist
// match in IncludedFiles always wins.
func FileExcluded(path string, rules model.PathRules) bool {
	base := filepath.Base(path)
	if contains(rules.IncludedFiles, base) || contains(rules.IncludedFiles, path) {
		return false
	}

	if contains(rules.ExcludedFiles, base) {
		return true
	}

	ext := extensionOf(base)
	if ext == "" && contains(rules.ExcludedFiles, NullExt) {
		return true
	}
	if ext != "" && contains(rules.ExcludedFiles, "*."+ext) {
		return true
	}
	if strings.HasPrefix(base, ".") && contains(rules.ExcludedFiles, DotGlob) {
		return true
	}
	if strings.HasSuffix(base, "~") && contains(rules.ExcludedFiles, "*~") {
		return true
	}
	if strings.HasPrefix(base, "~$") && contains(rules.ExcludedFiles, "~$*") {
		return true
	}
	return false
}

// DirExcluded returns true if path should NOT be indexed (and not
// descended into) as a directory under rules.
func DirExcluded(path string, rules model.PathRules) bool {
	base := filepath.Base(path)
	if contains(rules.IncludedDirs, base) || contains(rules.IncludedDirs, path) {
		return false
	}

	if strings.HasPrefix(base, ".") && contains(rules.ExcludedDirs, DotGlob) {
		return true
	}
	if contains(rules.ExcludedDirs, base) || contains(rules.ExcludedDirs, path) {
		return true
	}

	for _, pattern := range rules.ExcludedDirs {
		if pattern == DotGlob {
			continue
		}
		if matchWildcard(pattern, base) || matchWildcard(pattern, path) {
			return true
		}
	}
	return false
}

// IsSidecarYAML returns true iff path's base name equals
// "<parent-basename>.yml" — the metadata sidecar for its parent directory.
func IsSidecarYAML(path string) bool {
	base := filepath.Base(path)
	parent := filepath.Base(filepath.Dir(path))
	return base == parent+".yml"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func extensionOf(base string) string {
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		// No dot, or a leading dot as in ".bashrc" — Python's
		// os.path.splitext treats an all-leading-dot name as having no
		// extension, and the original agent relied on that behavior.
		return ""
	}
	return strings.ToLower(strings.TrimSpace(base[i+1:]))
}

// matchWildcard applies the three wildcard forms from spec.md §3
// (*suffix, prefix*, *middle*) to a single candidate string, using
// gobwas/glob for the actual pattern compilation.
func matchWildcard(pattern, candidate string) bool {
	if !strings.Contains(pattern, "*") {
		return false // exact matches are handled by the caller via contains().
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(candidate)
}
