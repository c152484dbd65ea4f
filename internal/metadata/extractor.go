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

// Package metadata implements the Metadata Extractor (spec.md §4.2): it
// turns a filesystem path into a Document, or reports that the path was
// excluded or should be skipped due to a transient error.
package metadata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/model"
)

// Outcome distinguishes "no document" reasons so callers can tell an
// intentional exclusion from a transient failure (spec.md §4.2 "failure
// policy").
type Outcome int

// Possible outcomes of an extraction attempt.
const (
	// OutcomeOK means Extract returned a usable *model.Document.
	OutcomeOK Outcome = iota
	// OutcomeExcluded means the Path Filter (or an admission threshold)
	// rejected the path; this is not an error.
	OutcomeExcluded
	// OutcomeSkip means an IO/OS error occurred; the caller should log and
	// continue, per the "FS missing"/"FS transient" error kinds.
	OutcomeSkip
)

// ContentMetadataParser is the local, format-specific metadata route used
// when a project has rich_metadata enabled. Implementations of real
// parsers (PDF, EXIF, spreadsheet, netCDF, ...) live outside this module;
// the core only depends on this interface.
type ContentMetadataParser interface {
	Parse(ctx context.Context, path string) (map[string]any, error)
}

// RemoteMetadataExtractor is the Tika-like HTTP extraction route used when
// a project has tika_host configured.
type RemoteMetadataExtractor interface {
	// Extract returns the HTTP status code and decoded metadata map. A
	// non-2xx status or a transport error both result in a nil field on
	// the document, never an aborted extraction.
	Extract(ctx context.Context, host, path string) (status int, metadata map[string]any, err error)
}

// noopContentParser never produces extended metadata.
type noopContentParser struct{}

func (noopContentParser) Parse(context.Context, string) (map[string]any, error) { return nil, nil }

// NoopContentMetadataParser is the default ContentMetadataParser used when
// no format-specific parser is wired in.
var NoopContentMetadataParser ContentMetadataParser = noopContentParser{}

// tikaSizeLimit is the byte-size ceiling past which files are never sent
// to the remote extractor, per spec.md §4.2.
const tikaSizeLimit = 500_000

// Extractor produces Documents from filesystem paths.
type Extractor struct {
	ContentParser   ContentMetadataParser
	RemoteExtractor RemoteMetadataExtractor // nil disables the tika_host route.
	// Now returns the indexing timestamp; overridable for tests.
	Now func() time.Time
}

// New builds an Extractor with the noop content parser and no remote
// extractor wired in.
func New() *Extractor {
	return &Extractor{
		ContentParser: NoopContentMetadataParser,
		Now:           time.Now,
	}
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ExtractDir produces a directory Document for path, or reports why it
// didn't.
func (e *Extractor) ExtractDir(ctx context.Context, path string, proj model.ProjectConfig) (*model.Document, Outcome) {
	if filter.DirExcluded(path, proj.Rules) {
		return nil, OutcomeExcluded
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, OutcomeSkip
	}
	st, err := lstatTimes(path)
	if err != nil {
		return nil, OutcomeSkip
	}
	owner, group := ownerGroup(path, info)

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, OutcomeSkip
	}
	fileCount := 0
	for _, ent := range entries {
		if !ent.IsDir() {
			fileCount++
		}
	}

	now := e.now()
	doc := &model.Document{
		Name:         filepath.Base(path),
		Path:         absPath(path),
		PathParent:   absPath(filepath.Dir(path)),
		Type:         model.DocTypeDir,
		Owner:        owner,
		Group:        group,
		LastModified: model.NewTime(st.ModTime),
		LastAccess:   model.NewTime(st.AccessTime),
		LastChange:   model.NewTime(st.ChangeTime),
		IndexingDate: model.NewTime(now),
		IndexedBy:    owner,
		Location:     proj.Location,
		Agent:        proj.Agent,
		Items:        len(entries),
		FileNumInDir: fileCount,
	}

	if ext, ok := e.sidecarMetadata(path); ok {
		doc.ExtendedMetadata = ext
	}
	return doc, OutcomeOK
}

// ExtractFile produces a file Document for path, or reports why it
// didn't, applying the minsize/mtime admission thresholds from spec.md
// §4.2.
func (e *Extractor) ExtractFile(ctx context.Context, path string, proj model.ProjectConfig) (*model.Document, Outcome) {
	if filter.FileExcluded(path, proj.Rules) || filter.IsSidecarYAML(path) {
		return nil, OutcomeExcluded
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, OutcomeSkip
	}
	st, err := lstatTimes(path)
	if err != nil {
		return nil, OutcomeSkip
	}

	size := info.Size()
	if size < proj.MinSizeBytes {
		return nil, OutcomeExcluded
	}
	if proj.MTimeDays > 0 {
		threshold := time.Duration(proj.MTimeDays) * 24 * time.Hour
		if e.now().Sub(st.ModTime) < threshold {
			return nil, OutcomeExcluded
		}
	}

	owner, group := ownerGroup(path, info)
	now := e.now()
	doc := &model.Document{
		Name:         filepath.Base(path),
		Path:         absPath(path),
		PathParent:   absPath(filepath.Dir(path)),
		Type:         model.DocTypeFile,
		Owner:        owner,
		Group:        group,
		LastModified: model.NewTime(st.ModTime),
		LastAccess:   model.NewTime(st.AccessTime),
		LastChange:   model.NewTime(st.ChangeTime),
		IndexingDate: model.NewTime(now),
		IndexedBy:    owner,
		Location:     proj.Location,
		Agent:        proj.Agent,
		Extension:    extension(filepath.Base(path)),
		FileSize:     size,
	}

	if ext := e.extendedMetadata(ctx, path, size, proj); ext != nil {
		doc.ExtendedMetadata = ext
	}
	return doc, OutcomeOK
}

// extendedMetadata routes to the local rich-metadata parser or the remote
// tika_host extractor, per spec.md §4.2. Failures of either route yield a
// nil field rather than aborting the extraction.
func (e *Extractor) extendedMetadata(ctx context.Context, path string, size int64, proj model.ProjectConfig) map[string]any {
	if !proj.RichMetadata && proj.TikaHost == "" {
		return nil
	}
	if proj.RichMetadata {
		parsed, err := e.ContentParser.Parse(ctx, path)
		if err != nil || parsed == nil {
			return nil
		}
		return normalizeUTF8(parsed).(map[string]any)
	}
	if size > tikaSizeLimit || e.RemoteExtractor == nil {
		return nil
	}
	status, parsed, err := e.RemoteExtractor.Extract(ctx, proj.TikaHost, path)
	if err != nil || status < 200 || status >= 300 || parsed == nil {
		return nil
	}
	return normalizeUTF8(parsed).(map[string]any)
}

// sidecarMetadata attaches a sibling "<basename>.yml" file's content as a
// directory's extended_metadata, per spec.md §4.2. Parse failure is
// silent: it simply means no attachment.
func (e *Extractor) sidecarMetadata(dirPath string) (map[string]any, bool) {
	base := filepath.Base(dirPath)
	yamlPath := filepath.Join(dirPath, base+".yml")
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, false
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil || parsed == nil {
		return nil, false
	}
	return normalizeUTF8(parsed).(map[string]any), true
}

func extension(base string) string {
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(base[i+1:]))
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
