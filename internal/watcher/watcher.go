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

// Package watcher implements the Watcher (spec.md §4.6): it subscribes to
// filesystem events under each project's root, translates them into index
// operations via the Path Filter and Metadata Extractor, and keeps a live
// in-memory Snapshot consistent with what has actually been indexed.
//
// Unlike the source agent this was ported from, which accumulated path
// sets on the handler across events (c_set/d_set), every event here builds
// its own local collection: per-event state never leaks across events
// (spec.md §9).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/radlog"
	"github.com/usask-rc/radiam-agent/internal/shipper"
	"github.com/usask-rc/radiam-agent/internal/snapshot"
)

// ReconcileInterval is how often the live Snapshot is compared against the
// persisted Snapshot (spec.md §4.6).
const ReconcileInterval = 30 * time.Second

// FSWatcher abstracts the notification backend so a polling fallback can
// stand in on hosts where native recursive notification is unavailable.
type FSWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsNotifyWatcher struct{ *fsnotify.Watcher }

func (f *fsNotifyWatcher) Events() <-chan fsnotify.Event { return f.Watcher.Events }
func (f *fsNotifyWatcher) Errors() <-chan error          { return f.Watcher.Errors }

// NewFSWatcher builds the native fsnotify-backed watcher.
func NewFSWatcher() (FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsNotifyWatcher{Watcher: w}, nil
}

// Project bundles what the Watcher needs per project: its config, a
// dedicated Shipper, the live Snapshot (mutated by event handlers, read by
// the reconciliation loop) and the Snapshot Store for persistence.
type Project struct {
	Config model.ProjectConfig
	Ship   *shipper.Shipper
	Store  *snapshot.Store

	mu   sync.Mutex
	live snapshot.Set
}

// NewProject seeds a watched project with its starting live Snapshot
// (typically the set just produced by a full crawl, or the reconciled
// current set).
func NewProject(cfg model.ProjectConfig, ship *shipper.Shipper, store *snapshot.Store, initial snapshot.Set) *Project {
	if initial == nil {
		initial = snapshot.Set{}
	}
	return &Project{Config: cfg, Ship: ship, Store: store, live: initial}
}

func (p *Project) insert(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[path] = struct{}{}
}

func (p *Project) remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, path)
}

func (p *Project) has(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.live[path]
	return ok
}

// Snapshot returns a copy of the project's current live Snapshot.
func (p *Project) Snapshot() snapshot.Set {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(snapshot.Set, len(p.live))
	for k := range p.live {
		out[k] = struct{}{}
	}
	return out
}

// Watcher dispatches filesystem events for every watched project and runs
// the periodic live/persisted Snapshot reconciliation.
type Watcher struct {
	Extractor *metadata.Extractor
	NewFS     func() (FSWatcher, error)

	mu       sync.Mutex
	projects map[string]*Project
}

// New builds a Watcher using extractor for per-event metadata extraction.
func New(extractor *metadata.Extractor) *Watcher {
	return &Watcher{Extractor: extractor, NewFS: NewFSWatcher, projects: make(map[string]*Project)}
}

// Watch subscribes to proj.Config.RootDir recursively and runs its
// dispatch loop until ctx is cancelled. It also starts the 30-second
// reconciliation loop for this project. Both stop when ctx is done.
func (w *Watcher) Watch(ctx context.Context, proj *Project) error {
	fsw, err := w.NewFS()
	if err != nil {
		radlog.Warnf("watcher: native notification unavailable for %s, falling back to polling: %v", proj.Config.Name, err)
		return w.watchPolling(ctx, proj)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, proj.Config.RootDir); err != nil {
		return err
	}

	w.mu.Lock()
	w.projects[proj.Config.Name] = proj
	w.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reconcileLoop(ctx, proj)
	}()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case ev, ok := <-fsw.Events():
			if !ok {
				wg.Wait()
				return nil
			}
			w.handleEvent(ctx, proj, ev, fsw)
		case err, ok := <-fsw.Errors():
			if !ok {
				continue
			}
			radlog.Warnf("watcher: fsnotify error for %s: %v", proj.Config.Name, err)
		}
	}
}

// addRecursive walks root and registers a watch on every directory,
// matching fsnotify's non-recursive-by-default semantics.
func addRecursive(fsw FSWatcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			radlog.Warnf("watcher: could not watch %s: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// statPath returns the current FileInfo for path, using Lstat so a
// symlink is classified by its own type rather than its target's
// (matching the Extractor's "never follow symlinks" rule).
func statPath(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

// handleEvent dispatches one fsnotify event. Every branch builds its own
// local path collection; nothing is kept across events.
func (w *Watcher) handleEvent(ctx context.Context, proj *Project, ev fsnotify.Event, fsw FSWatcher) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.handleCreateOrModify(ctx, proj, ev.Name, fsw)
	case ev.Op&fsnotify.Write != 0:
		w.handleCreateOrModify(ctx, proj, ev.Name, fsw)
	case ev.Op&fsnotify.Remove != 0:
		w.handleDelete(ctx, proj, ev.Name)
	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as a Rename event on the source path;
		// the corresponding Create for the destination arrives separately.
		w.handleDelete(ctx, proj, ev.Name)
	}
}

func (w *Watcher) handleCreateOrModify(ctx context.Context, proj *Project, path string, fsw FSWatcher) {
	info, err := statPath(path)
	if err != nil {
		return
	}

	var doc *model.Document
	var outcome metadata.Outcome
	if info.IsDir() {
		if filter.DirExcluded(path, proj.Config.Rules) {
			return
		}
		fsw.Add(path)
		doc, outcome = w.Extractor.ExtractDir(ctx, path, proj.Config)
	} else {
		if filter.FileExcluded(path, proj.Config.Rules) || filter.IsSidecarYAML(path) {
			return
		}
		doc, outcome = w.Extractor.ExtractFile(ctx, path, proj.Config)
	}
	if outcome != metadata.OutcomeOK {
		return
	}

	if err := proj.Ship.EmitSingle(ctx, path, doc); err != nil {
		radlog.Warnf("watcher: emitting %s: %v", path, err)
		return
	}
	proj.insert(doc.Path)
	w.refreshParent(ctx, proj, filepath.Dir(path))
}

func (w *Watcher) handleDelete(ctx context.Context, proj *Project, path string) {
	if err := proj.Ship.EmitSingle(ctx, path, nil); err != nil {
		radlog.Warnf("watcher: deleting %s: %v", path, err)
	}
	proj.remove(path)
	w.refreshParent(ctx, proj, filepath.Dir(path))
}

// refreshParent re-submits the parent directory's document so its
// item/file counts reflect the change just processed.
func (w *Watcher) refreshParent(ctx context.Context, proj *Project, parent string) {
	if filter.DirExcluded(parent, proj.Config.Rules) {
		return
	}
	doc, outcome := w.Extractor.ExtractDir(ctx, parent, proj.Config)
	if outcome != metadata.OutcomeOK {
		return
	}
	if err := proj.Ship.EmitSingle(ctx, parent, doc); err != nil {
		radlog.Warnf("watcher: refreshing parent %s: %v", parent, err)
		return
	}
	proj.insert(doc.Path)
}

// reconcileLoop compares the live Snapshot against the last persisted one
// every ReconcileInterval, persisting and re-baselining on divergence. The
// live in-memory set is always the source of truth (spec.md §9); the
// persisted file is a write-through mirror, never re-read back in.
func (w *Watcher) reconcileLoop(ctx context.Context, proj *Project) {
	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()
	var baseline snapshot.Set
	for {
		select {
		case <-ctx.Done():
			_ = proj.Store.Save(proj.Config.Name, proj.Snapshot())
			return
		case <-ticker.C:
			live := proj.Snapshot()
			if baseline != nil && baseline.Equal(live) {
				continue
			}
			if err := proj.Store.Save(proj.Config.Name, live); err != nil {
				radlog.Warnf("watcher: persisting snapshot for %s: %v", proj.Config.Name, err)
				continue
			}
			baseline = live
		}
	}
}
