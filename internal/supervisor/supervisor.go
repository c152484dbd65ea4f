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

// Package supervisor composes the crawl-and-watch engine (spec.md §4.8):
// startup registration, offline-delta reconciliation, an optional full
// crawl, and live watching, all torn down cleanly on SIGINT/SIGTERM.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/usask-rc/radiam-agent/internal/appdir"
	"github.com/usask-rc/radiam-agent/internal/config"
	"github.com/usask-rc/radiam-agent/internal/crawler"
	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/queue"
	"github.com/usask-rc/radiam-agent/internal/radlog"
	"github.com/usask-rc/radiam-agent/internal/registrar"
	"github.com/usask-rc/radiam-agent/internal/shipper"
	"github.com/usask-rc/radiam-agent/internal/snapshot"
	"github.com/usask-rc/radiam-agent/internal/watcher"
)

// Credentials carries the auth bootstrap precedence inputs: username and
// password, if both given, always take precedence over a stored token
// (spec.md §10 "Token bootstrap precedence").
type Credentials struct {
	Username string
	Password string
}

// Options bundles everything the Supervisor needs to boot.
type Options struct {
	DataDir     string
	Client      indexclient.Client
	Credentials Credentials
	QuitAfter   bool
}

// Supervisor boots and runs the crawl-and-watch engine for one agent
// process.
type Supervisor struct {
	opts Options
	cfg  *config.Config
}

// New builds a Supervisor from already-loaded configuration.
func New(cfg *config.Config, opts Options) *Supervisor {
	return &Supervisor{opts: opts, cfg: cfg}
}

// Run executes the full boot sequence and then blocks watching until ctx
// is cancelled (typically tied to SIGINT/SIGTERM via os/signal.NotifyContext
// in cmd/radiam-agent).
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.authenticate(ctx); err != nil {
		return err
	}

	reg := registrar.New(s.opts.Client)
	if err := s.registerAll(ctx, reg); err != nil {
		return err
	}
	if err := s.cfg.Persist(); err != nil {
		radlog.Warnf("supervisor: persisting resolved identifiers: %v", err)
	}

	store := snapshot.New(appdir.SnapshotDir(s.opts.DataDir))
	extractor := metadata.New()

	needsCrawl, initial := s.reconcile(ctx, store)

	shippers := make(map[string]*shipper.Shipper, len(s.cfg.Projects))
	for _, p := range s.cfg.Projects {
		shippers[p.Name] = shipper.New(s.opts.Client, p.Endpoint)
	}

	if needsCrawl || !s.apiStatusOK(ctx) {
		c := crawler.New(extractor, func(project string) (*queue.Queue, error) {
			if err := os.MkdirAll(appdir.QueueDir(s.opts.DataDir), 0o755); err != nil {
				return nil, err
			}
			return queue.Open(appdir.QueueFile(s.opts.DataDir, project))
		})
		results, err := c.FullRun(ctx, s.cfg.Projects, func(p model.ProjectConfig) *shipper.Shipper {
			return shippers[p.Name]
		})
		if err != nil {
			return fmt.Errorf("supervisor: full crawl: %w", err)
		}
		for name, set := range results {
			initial[name] = set
			if err := store.Save(name, set); err != nil {
				radlog.Warnf("supervisor: saving snapshot for %s: %v", name, err)
			}
		}
	}

	if s.opts.QuitAfter {
		radlog.Infof("supervisor: --quitafter set, exiting after crawl")
		return nil
	}

	return s.watch(ctx, store, extractor, shippers, initial)
}

func (s *Supervisor) authenticate(ctx context.Context) error {
	if s.opts.Credentials.Username != "" && s.opts.Credentials.Password != "" {
		if err := s.opts.Client.Login(ctx, s.opts.Credentials.Username, s.opts.Credentials.Password); err != nil {
			return fmt.Errorf("supervisor: unable to obtain a login token, please check the credentials: %w", err)
		}
		radlog.Infof("supervisor: logged in as %s", s.opts.Credentials.Username)
		return nil
	}
	if err := s.opts.Client.LoadAuthFromFile(); err != nil {
		return fmt.Errorf("supervisor: you need to obtain a login token with your username and password the first time you use the app: %w", err)
	}
	radlog.Infof("supervisor: loaded auth token from file")
	return nil
}

func (s *Supervisor) registerAll(ctx context.Context, reg *registrar.Registrar) error {
	if err := reg.EnsureLocation(ctx, &s.cfg.Location); err != nil {
		return err
	}
	agentID, err := reg.EnsureAgent(ctx, s.cfg.AgentID, s.cfg.Location.ID, s.cfg.Projects)
	if err != nil {
		return err
	}
	s.cfg.AgentID = agentID

	for i := range s.cfg.Projects {
		if err := reg.EnsureProject(ctx, s.cfg.Host, &s.cfg.Projects[i]); err != nil {
			return err
		}
		s.cfg.Projects[i].Location = s.cfg.Location.ID
		s.cfg.Projects[i].Agent = s.cfg.AgentID
	}
	return nil
}

// reconcile computes the offline-delta for every project (spec.md §4.5):
// it walks each root under the current filter rules, diffs against the
// persisted snapshot, emits deletes for anything vanished while the agent
// was offline, and reports whether a full crawl is required.
func (s *Supervisor) reconcile(ctx context.Context, store *snapshot.Store) (needsCrawl bool, current map[string]snapshot.Set) {
	current = make(map[string]snapshot.Set, len(s.cfg.Projects))
	for _, p := range s.cfg.Projects {
		live := walkCurrent(p)
		current[p.Name] = live

		prev, err := store.Load(p.Name)
		if err != nil {
			needsCrawl = true
			continue
		}
		if prev.Equal(live) {
			continue
		}

		ship := shipper.New(s.opts.Client, p.Endpoint)
		for _, gone := range prev.Diff(live) {
			if err := ship.EmitSingle(ctx, gone, nil); err != nil {
				radlog.Warnf("supervisor: offline-delete of %s: %v", gone, err)
			}
		}
		needsCrawl = true
	}
	return needsCrawl, current
}

// walkCurrent enumerates the project's root under the current filter
// rules, for the offline-delta comparison (spec.md §4.5 "current =
// walk(root_dir)"). It is a plain walk, not a full crawl: no documents are
// submitted here.
func walkCurrent(p model.ProjectConfig) snapshot.Set {
	set := snapshot.Set{}
	filepath.Walk(p.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != p.RootDir && filter.DirExcluded(path, p.Rules) {
				return filepath.SkipDir
			}
			set[path] = struct{}{}
			return nil
		}
		if !filter.FileExcluded(path, p.Rules) && !filter.IsSidecarYAML(path) {
			set[path] = struct{}{}
		}
		return nil
	})
	return set
}

// apiStatusOK probes every project's endpoint; if any is unreachable, a
// full crawl is forced regardless of reconciliation (spec.md §10 "API
// status pre-check").
func (s *Supervisor) apiStatusOK(ctx context.Context) bool {
	for _, p := range s.cfg.Projects {
		status, err := s.opts.Client.GetStatusCode(ctx, p.Endpoint+"docs/")
		if err != nil || status != 200 {
			return false
		}
	}
	return true
}

func (s *Supervisor) watch(ctx context.Context, store *snapshot.Store, extractor *metadata.Extractor, shippers map[string]*shipper.Shipper, initial map[string]snapshot.Set) error {
	w := watcher.New(extractor)

	var wg sync.WaitGroup
	for _, p := range s.cfg.Projects {
		proj := watcher.NewProject(p, shippers[p.Name], store, initial[p.Name])
		wg.Add(1)
		go func(proj *watcher.Project) {
			defer wg.Done()
			if err := w.Watch(ctx, proj); err != nil && ctx.Err() == nil {
				radlog.Errorf("supervisor: watcher for %s exited: %v", proj.Config.Name, err)
			}
		}(proj)
	}
	wg.Wait()
	return nil
}
