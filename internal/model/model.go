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

// Package model defines the data types shared across the crawl-and-watch
// indexing engine: project configuration, path rules, and the document
// shape sent to the remote index service.
package model

import (
	"time"
)

// Time wraps time.Time and marshals to UTC ISO-8601 with microsecond
// precision, matching the wire format the index service expects
// (spec.md §3: "all UTC ISO-8601 with microsecond precision").
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time { return Time{Time: t} }

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FormatTime(t.Time) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	s = s[1 : len(s)-1]
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		// Fall back to RFC3339Nano for tolerance of slightly different
		// precision from the remote service.
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// DocType distinguishes the two document variants.
type DocType string

// The two document variants understood by the index service.
const (
	DocTypeFile DocType = "file"
	DocTypeDir  DocType = "directory"
)

// PathRules holds the four include/exclude pattern lists configured for a
// project, per spec.md §3.
type PathRules struct {
	IncludedFiles []string
	ExcludedFiles []string
	IncludedDirs  []string
	ExcludedDirs  []string
}

// Location identifies the host the agent runs on, resolved once at startup
// by the Registrar (spec.md §4.7).
type Location struct {
	Name string
	ID   string
}

// ProjectConfig is immutable for the lifetime of a run.
type ProjectConfig struct {
	Name         string
	RootDir      string
	Endpoint     string
	Rules        PathRules
	TikaHost     string
	RichMetadata bool

	ID       string
	Location string
	Agent    string

	// MinSizeBytes and MTimeDays are agent-wide admission thresholds
	// (spec.md §4.2); they are stored per-project for convenience since
	// each project config is resolved independently after config load.
	MinSizeBytes int64
	MTimeDays    int
}

// Document is the unit of data sent to the index service. Fields that
// don't apply to a given Type are left zero-valued; File and Directory
// carry separate extension fields that are mutually exclusive in
// practice.
type Document struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	PathParent   string    `json:"path_parent"`
	Type         DocType   `json:"type"`
	Owner        string    `json:"owner"`
	Group        string    `json:"group"`
	LastModified Time `json:"last_modified"`
	LastAccess   Time `json:"last_access"`
	LastChange   Time `json:"last_change"`
	IndexingDate Time `json:"indexing_date"`
	IndexedBy    string    `json:"indexed_by"`
	Location     string    `json:"location"`
	Agent        string    `json:"agent"`

	// Directory-only fields.
	Items          int `json:"items,omitempty"`
	FileNumInDir   int `json:"file_num_in_dir,omitempty"`

	// File-only fields.
	Extension string `json:"extension,omitempty"`
	FileSize  int64  `json:"filesize,omitempty"`

	ExtendedMetadata map[string]any `json:"extended_metadata,omitempty"`
}

// timeLayout is the UTC ISO-8601 layout with microsecond precision used for
// all four time fields, per spec.md §3.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t as UTC ISO-8601 with microsecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
