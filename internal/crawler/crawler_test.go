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

package crawler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/usask-rc/radiam-agent/internal/crawler"
	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/queue"
	"github.com/usask-rc/radiam-agent/internal/shipper"
)

// recordingClient is a minimal indexclient.Client stub that records every
// document shipped in a bulk flush.
type recordingClient struct {
	indexclient.Client
	docs []*model.Document
}

func (c *recordingClient) CreateDocumentBulk(ctx context.Context, endpoint string, docs []*model.Document) ([]byte, bool, error) {
	c.docs = append(c.docs, docs...)
	return nil, true, nil
}

func (c *recordingClient) SearchByPath(ctx context.Context, endpoint, path string) (*indexclient.SearchResult, error) {
	return &indexclient.SearchResult{}, nil
}

func TestFullRunVisitsEveryAdmittedPath(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "sub"))
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	mustWrite(t, filepath.Join(root, "sub", "b.txt"), "world")
	mustMkdir(t, filepath.Join(root, ".git"))
	mustWrite(t, filepath.Join(root, ".git", "HEAD"), "ref")

	proj := model.ProjectConfig{
		Name:    "proj",
		RootDir: root,
		Rules:   model.PathRules{ExcludedDirs: []string{".*"}},
	}

	client := &recordingClient{}
	s := shipper.New(client, "http://index/docs/")
	c := crawler.New(metadata.New(), func(project string) (*queue.Queue, error) {
		return queue.Open(filepath.Join(t.TempDir(), project+".db"))
	})

	results, err := c.FullRun(context.Background(), []model.ProjectConfig{proj}, func(model.ProjectConfig) *shipper.Shipper {
		return s
	})
	if err != nil {
		t.Fatal(err)
	}

	set, ok := results["proj"]
	if !ok {
		t.Fatal("no snapshot set returned for proj")
	}

	wantPaths := map[string]bool{
		root:                                  true,
		filepath.Join(root, "sub"):            true,
		filepath.Join(root, "a.txt"):           true,
		filepath.Join(root, "sub", "b.txt"):    true,
	}
	for p := range wantPaths {
		if _, ok := set[p]; !ok {
			t.Errorf("snapshot missing %s", p)
		}
	}
	if _, ok := set[filepath.Join(root, ".git")]; ok {
		t.Error("snapshot should not contain excluded .git directory")
	}

	for _, d := range client.docs {
		if filepath.Base(d.Path) == ".git" || d.Path == filepath.Join(root, ".git", "HEAD") {
			t.Errorf("shipped excluded path: %s", d.Path)
		}
	}
	if len(client.docs) != len(wantPaths) {
		t.Errorf("shipped %d documents, want %d", len(client.docs), len(wantPaths))
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
