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

import "strings"

// normalizeUTF8 recursively walks a decoded JSON-like value (as produced by
// a remote extractor or local parser) and makes every string value safe to
// round-trip: invalid UTF-8 byte sequences are dropped and embedded NUL
// bytes are stripped, per spec.md §4.2. The source agent's equivalent
// helper (object_to_utf8) had a latent bug referencing an undefined name;
// this is the corrected behavior.
func normalizeUTF8(v any) any {
	switch val := v.(type) {
	case string:
		return cleanString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[cleanString(k)] = normalizeUTF8(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeUTF8(item)
		}
		return out
	default:
		return v
	}
}

func cleanString(s string) string {
	s = strings.ToValidUTF8(s, "")
	if strings.ContainsRune(s, 0) {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return s
}
