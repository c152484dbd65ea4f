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

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/radlog"
)

// pollInterval is used when native recursive notification is unavailable
// (spec.md §4.6: "a polling fallback is acceptable and must be used when
// native notification is not available").
const pollInterval = 5 * time.Second

// watchPolling periodically re-walks the project root, diffing against
// the live Snapshot to synthesize create/delete events, when no native
// filesystem notification backend is available.
func (w *Watcher) watchPolling(ctx context.Context, proj *Project) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	reconcile := time.NewTicker(ReconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = proj.Store.Save(proj.Config.Name, proj.Snapshot())
			return ctx.Err()
		case <-ticker.C:
			w.pollOnce(ctx, proj)
		case <-reconcile.C:
			live := proj.Snapshot()
			persisted, err := proj.Store.Load(proj.Config.Name)
			if err == nil && persisted.Equal(live) {
				continue
			}
			if err := proj.Store.Save(proj.Config.Name, live); err != nil {
				radlog.Warnf("watcher: persisting snapshot for %s: %v", proj.Config.Name, err)
			}
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context, proj *Project) {
	current := make(map[string]struct{})

	err := filepath.Walk(proj.Config.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if filter.DirExcluded(path, proj.Config.Rules) && path != proj.Config.RootDir {
				return filepath.SkipDir
			}
			if doc, outcome := w.Extractor.ExtractDir(ctx, path, proj.Config); outcome == metadata.OutcomeOK {
				current[doc.Path] = struct{}{}
				if !proj.has(doc.Path) {
					if err := proj.Ship.EmitSingle(ctx, path, doc); err == nil {
						proj.insert(doc.Path)
					}
				}
			}
			return nil
		}
		if filter.FileExcluded(path, proj.Config.Rules) || filter.IsSidecarYAML(path) {
			return nil
		}
		doc, outcome := w.Extractor.ExtractFile(ctx, path, proj.Config)
		if outcome != metadata.OutcomeOK {
			return nil
		}
		current[doc.Path] = struct{}{}
		if !proj.has(doc.Path) {
			if err := proj.Ship.EmitSingle(ctx, path, doc); err == nil {
				proj.insert(doc.Path)
			}
		}
		return nil
	})
	if err != nil {
		radlog.Warnf("watcher: polling walk of %s: %v", proj.Config.RootDir, err)
	}

	for _, gone := range proj.Snapshot().Diff(current) {
		if err := proj.Ship.EmitSingle(ctx, gone, nil); err == nil {
			proj.remove(gone)
		}
	}
}
