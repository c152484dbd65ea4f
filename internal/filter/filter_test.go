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

package filter_test

import (
	"testing"

	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/model"
)

func TestFileExcluded(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		rules model.PathRules
		want  bool
	}{
		{
			name:  "extension_match_excluded",
			path:  "/r/a.tmp",
			rules: model.PathRules{ExcludedFiles: []string{"*.tmp"}},
			want:  true,
		},
		{
			name:  "extension_match_case_insensitive",
			path:  "/r/a.TMP",
			rules: model.PathRules{ExcludedFiles: []string{"*.tmp"}},
			want:  true,
		},
		{
			name:  "extension_no_match_admitted",
			path:  "/r/a.txt",
			rules: model.PathRules{ExcludedFiles: []string{"*.tmp"}},
			want:  false,
		},
		{
			name:  "nullext_excluded",
			path:  "/r/README",
			rules: model.PathRules{ExcludedFiles: []string{filter.NullExt}},
			want:  true,
		},
		{
			name:  "dotfile_excluded",
			path:  "/r/.DS_Store",
			rules: model.PathRules{ExcludedFiles: []string{filter.DotGlob}},
			want:  true,
		},
		{
			name:  "tilde_suffix_excluded",
			path:  "/r/notes.txt~",
			rules: model.PathRules{ExcludedFiles: []string{"*~"}},
			want:  true,
		},
		{
			name:  "office_lock_file_excluded",
			path:  "/r/~$budget.xlsx",
			rules: model.PathRules{ExcludedFiles: []string{"~$*"}},
			want:  true,
		},
		{
			name: "whitelist_wins_over_exclude",
			path: "/r/a.tmp",
			rules: model.PathRules{
				IncludedFiles: []string{"a.tmp"},
				ExcludedFiles: []string{"*.tmp"},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.FileExcluded(tt.path, tt.rules); got != tt.want {
				t.Errorf("FileExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDirExcluded(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		rules model.PathRules
		want  bool
	}{
		{
			name:  "dotdir_excluded",
			path:  "/r/.git",
			rules: model.PathRules{ExcludedDirs: []string{filter.DotGlob}},
			want:  true,
		},
		{
			name:  "regular_dir_admitted",
			path:  "/r/docs",
			rules: model.PathRules{ExcludedDirs: []string{filter.DotGlob}},
			want:  false,
		},
		{
			name:  "exact_basename_excluded",
			path:  "/r/tmp",
			rules: model.PathRules{ExcludedDirs: []string{"tmp"}},
			want:  true,
		},
		{
			name:  "prefix_wildcard",
			path:  "/r/cache-build",
			rules: model.PathRules{ExcludedDirs: []string{"cache*"}},
			want:  true,
		},
		{
			name:  "suffix_wildcard",
			path:  "/r/build-cache",
			rules: model.PathRules{ExcludedDirs: []string{"*cache"}},
			want:  true,
		},
		{
			name:  "substring_wildcard",
			path:  "/r/my-cache-dir",
			rules: model.PathRules{ExcludedDirs: []string{"*cache*"}},
			want:  true,
		},
		{
			name: "whitelist_wins_over_exclude",
			path: "/r/.git",
			rules: model.PathRules{
				IncludedDirs: []string{".git"},
				ExcludedDirs: []string{filter.DotGlob},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.DirExcluded(tt.path, tt.rules); got != tt.want {
				t.Errorf("DirExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsSidecarYAML(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/r/proj/proj.yml", true},
		{"/r/proj/other.yml", false},
		{"/r/proj/proj.yaml", false},
	}
	for _, tt := range tests {
		if got := filter.IsSidecarYAML(tt.path); got != tt.want {
			t.Errorf("IsSidecarYAML(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
