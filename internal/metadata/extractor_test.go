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

package metadata_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
)

func testProject(root string) model.ProjectConfig {
	return model.ProjectConfig{
		Name:     "proj",
		RootDir:  root,
		Location: "loc-1",
		Agent:    "agent-1",
	}
}

func TestExtractFileAdmitsPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := metadata.New()
	doc, outcome := ex.ExtractFile(context.Background(), path, testProject(dir))
	if outcome != metadata.OutcomeOK {
		t.Fatalf("ExtractFile outcome = %v, want OutcomeOK", outcome)
	}
	if doc.Name != "notes.txt" || doc.Extension != "txt" || doc.FileSize != 5 {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Type != model.DocTypeFile {
		t.Errorf("Type = %v, want file", doc.Type)
	}
}

func TestExtractFileSidecarNeverEmitted(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "proj")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	yml := filepath.Join(sub, "proj.yml")
	if err := os.WriteFile(yml, []byte("title: X\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := metadata.New()
	_, outcome := ex.ExtractFile(context.Background(), yml, testProject(dir))
	if outcome != metadata.OutcomeExcluded {
		t.Fatalf("ExtractFile(sidecar) outcome = %v, want OutcomeExcluded", outcome)
	}
}

func TestExtractDirSidecarAttachesExtendedMetadata(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "proj")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	yml := filepath.Join(sub, "proj.yml")
	if err := os.WriteFile(yml, []byte("title: X\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := metadata.New()
	doc, outcome := ex.ExtractDir(context.Background(), sub, testProject(dir))
	if outcome != metadata.OutcomeOK {
		t.Fatalf("ExtractDir outcome = %v, want OutcomeOK", outcome)
	}
	if doc.ExtendedMetadata == nil || doc.ExtendedMetadata["title"] != "X" {
		t.Errorf("ExtendedMetadata = %+v, want title=X", doc.ExtendedMetadata)
	}
}

func TestExtractFileMinSizeThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	proj := testProject(dir)
	proj.MinSizeBytes = 100

	ex := metadata.New()
	_, outcome := ex.ExtractFile(context.Background(), path, proj)
	if outcome != metadata.OutcomeExcluded {
		t.Fatalf("ExtractFile outcome = %v, want OutcomeExcluded", outcome)
	}
}

func TestExtractFileSkipsMissingPath(t *testing.T) {
	dir := t.TempDir()
	ex := metadata.New()
	_, outcome := ex.ExtractFile(context.Background(), filepath.Join(dir, "gone.txt"), testProject(dir))
	if outcome != metadata.OutcomeSkip {
		t.Fatalf("ExtractFile outcome = %v, want OutcomeSkip", outcome)
	}
}
