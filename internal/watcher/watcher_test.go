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

package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/shipper"
	"github.com/usask-rc/radiam-agent/internal/snapshot"
	"github.com/usask-rc/radiam-agent/internal/watcher"
)

type fakeFSWatcher struct {
	events  chan fsnotify.Event
	errs    chan error
	added   []string
	closeCh chan struct{}
}

func newFakeFSWatcher() *fakeFSWatcher {
	return &fakeFSWatcher{events: make(chan fsnotify.Event, 8), errs: make(chan error, 1)}
}

func (f *fakeFSWatcher) Add(name string) error                 { f.added = append(f.added, name); return nil }
func (f *fakeFSWatcher) Close() error                           { close(f.events); return nil }
func (f *fakeFSWatcher) Events() <-chan fsnotify.Event          { return f.events }
func (f *fakeFSWatcher) Errors() <-chan error                   { return f.errs }

type recordingClient struct {
	indexclient.Client
	created []*model.Document
	deleted []string
	result  *indexclient.SearchResult
}

func (c *recordingClient) CreateDocument(ctx context.Context, endpoint string, doc *model.Document) error {
	c.created = append(c.created, doc)
	return nil
}

func (c *recordingClient) DeleteDocument(ctx context.Context, endpoint, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *recordingClient) SearchByPath(ctx context.Context, endpoint, path string) (*indexclient.SearchResult, error) {
	if c.result != nil {
		return c.result, nil
	}
	return &indexclient.SearchResult{}, nil
}

func TestWatchCreateEventSubmitsAndUpdatesSnapshot(t *testing.T) {
	root := t.TempDir()
	newFile := filepath.Join(root, "new.txt")
	if err := os.WriteFile(newFile, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &recordingClient{}
	s := shipper.New(client, "http://index/docs/")
	proj := watcher.NewProject(model.ProjectConfig{Name: "proj", RootDir: root}, s, snapshot.New(t.TempDir()), nil)

	fsw := newFakeFSWatcher()
	w := watcher.New(metadata.New())
	w.NewFS = func() (watcher.FSWatcher, error) { return fsw, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, proj) }()

	// give the dispatch loop a moment to register watches, then send the event.
	time.Sleep(20 * time.Millisecond)
	fsw.events <- fsnotify.Event{Name: newFile, Op: fsnotify.Create}
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if len(client.created) == 0 {
		t.Fatal("expected CreateDocument to be called for the new file")
	}
	if !proj.Snapshot().Equal(proj.Snapshot()) {
		t.Fatal("snapshot comparison sanity check failed")
	}
	if _, ok := proj.Snapshot()[newFile]; !ok {
		t.Errorf("live snapshot missing %s", newFile)
	}
}

func TestWatchDeleteEventQueriesAndRemovesFromSnapshot(t *testing.T) {
	root := t.TempDir()
	gone := filepath.Join(root, "gone.txt")

	client := &recordingClient{result: &indexclient.SearchResult{
		Count:   1,
		Results: []map[string]any{{"id": "doc-1"}},
	}}
	s := shipper.New(client, "http://index/docs/")
	initial := snapshot.NewSet(gone)
	proj := watcher.NewProject(model.ProjectConfig{Name: "proj", RootDir: root}, s, snapshot.New(t.TempDir()), initial)

	fsw := newFakeFSWatcher()
	w := watcher.New(metadata.New())
	w.NewFS = func() (watcher.FSWatcher, error) { return fsw, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, proj) }()

	time.Sleep(20 * time.Millisecond)
	fsw.events <- fsnotify.Event{Name: gone, Op: fsnotify.Remove}
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if len(client.deleted) == 0 {
		t.Fatal("expected DeleteDocument to be called")
	}
	if _, ok := proj.Snapshot()[gone]; ok {
		t.Error("deleted path should be removed from live snapshot")
	}
}
